// Package wire frames the messages exchanged between host and client.
//
// Every websocket binary message carries exactly one Envelope. Two codecs are
// available: a protobuf wire-format codec and a msgpack codec. Both peers must
// agree on the codec; the Hello exchange checks the protocol version and the
// species table fingerprint before anything else is sent.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"WaveSiege/internal/game"
)

// ProtocolVersion is bumped whenever a message layout changes incompatibly.
const ProtocolVersion = 1

var (
	ErrUnknownTag      = errors.New("unknown envelope tag")
	ErrMalformed       = errors.New("malformed frame")
	ErrSpeciesMismatch = errors.New("species table mismatch")
	ErrVersionMismatch = errors.New("protocol version mismatch")
	ErrUnknownCodec    = errors.New("unknown codec")
)

// Kind tags the payload of an Envelope.
type Kind uint8

const (
	KindNone Kind = iota
	KindHello
	KindWave
	KindSnapshot
	KindAction
)

func (k Kind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindWave:
		return "wave"
	case KindSnapshot:
		return "snapshot"
	case KindAction:
		return "action"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Hello opens every connection, in both directions.
type Hello struct {
	Version            uint32 `msgpack:"version"`
	SpeciesFingerprint uint64 `msgpack:"species"`
	Role               string `msgpack:"role"`
	Room               string `msgpack:"room"`
}

// NewHello describes the local peer.
func NewHello(species *game.SpeciesTable, role game.Role, room string) Hello {
	return Hello{
		Version:            ProtocolVersion,
		SpeciesFingerprint: species.Fingerprint(),
		Role:               role.String(),
		Room:               room,
	}
}

// CheckHello rejects a remote peer that cannot interoperate with local.
// Both failures are unrecoverable for the session.
func CheckHello(local, remote Hello) error {
	if local.Version != remote.Version {
		return fmt.Errorf("%w: local %d, remote %d", ErrVersionMismatch, local.Version, remote.Version)
	}
	if local.SpeciesFingerprint != remote.SpeciesFingerprint {
		return fmt.Errorf("%w: local %016x, remote %016x", ErrSpeciesMismatch, local.SpeciesFingerprint, remote.SpeciesFingerprint)
	}
	return nil
}

// Envelope holds exactly one payload.
type Envelope struct {
	Hello    *Hello
	Wave     *game.WaveDefinition
	Snapshot *game.Snapshot
	Action   *game.Action
}

// Kind reports which payload is set.
func (e Envelope) Kind() Kind {
	switch {
	case e.Hello != nil:
		return KindHello
	case e.Wave != nil:
		return KindWave
	case e.Snapshot != nil:
		return KindSnapshot
	case e.Action != nil:
		return KindAction
	}
	return KindNone
}

func HelloEnvelope(h Hello) Envelope                  { return Envelope{Hello: &h} }
func WaveEnvelope(def game.WaveDefinition) Envelope   { return Envelope{Wave: &def} }
func SnapshotEnvelope(snap game.Snapshot) Envelope    { return Envelope{Snapshot: &snap} }
func ActionEnvelope(a game.Action) Envelope           { return Envelope{Action: &a} }

// Codec turns envelopes into websocket frames and back.
type Codec interface {
	Name() string
	Encode(env Envelope) ([]byte, error)
	Decode(frame []byte) (Envelope, error)
}

// CodecFor returns the codec registered under name. An empty name selects
// protobuf.
func CodecFor(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "proto", "protobuf":
		return ProtoCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}
