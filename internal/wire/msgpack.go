package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"WaveSiege/internal/game"
)

// MsgpackCodec frames each envelope as {kind, body} where body is the
// msgpack encoding of the payload struct.
type MsgpackCodec struct{}

type msgpackFrame struct {
	Kind Kind               `msgpack:"k"`
	Body msgpack.RawMessage `msgpack:"b"`
}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(env Envelope) ([]byte, error) {
	var payload any
	kind := env.Kind()
	switch kind {
	case KindHello:
		payload = env.Hello
	case KindWave:
		payload = env.Wave
	case KindSnapshot:
		payload = env.Snapshot
	case KindAction:
		payload = env.Action
	default:
		return nil, fmt.Errorf("encode: %w: empty envelope", ErrUnknownTag)
	}
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	data, err := msgpack.Marshal(&msgpackFrame{Kind: kind, Body: body})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return data, nil
}

func (MsgpackCodec) Decode(frame []byte) (Envelope, error) {
	var f msgpackFrame
	if err := msgpack.Unmarshal(frame, &f); err != nil {
		return Envelope{}, fmt.Errorf("decode: %w: %v", ErrMalformed, err)
	}
	var (
		env    Envelope
		target any
	)
	switch f.Kind {
	case KindHello:
		env.Hello = &Hello{}
		target = env.Hello
	case KindWave:
		env.Wave = &game.WaveDefinition{}
		target = env.Wave
	case KindSnapshot:
		env.Snapshot = &game.Snapshot{}
		target = env.Snapshot
	case KindAction:
		env.Action = &game.Action{}
		target = env.Action
	default:
		return Envelope{}, fmt.Errorf("decode: %w: %d", ErrUnknownTag, f.Kind)
	}
	if err := msgpack.Unmarshal(f.Body, target); err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w: %v", f.Kind, ErrMalformed, err)
	}
	return env, nil
}
