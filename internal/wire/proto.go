package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"WaveSiege/internal/game"
)

// ProtoCodec writes the protobuf wire format by hand. Field numbers:
//
//	Envelope       1 hello, 2 wave, 3 snapshot, 4 action (one of)
//	Hello          1 version, 2 species (fixed64), 3 role, 4 room
//	WaveDefinition 1 number, 2 groups, 3 modifier, 4 descriptor, 5 health_scale
//	WaveGroup      1 species, 2 count, 3 interval, 4 delay
//	Snapshot       1 seq, 2 time, 3 entities, 4 world
//	EntityState    1 id, 2 x, 3 y, 4 hp, 5 max_hp, 6 species, 7 alive,
//	               8 waypoint, 9 distance, 10 flying, 11 lane
//	WorldState     1 gold_host, 2 gold_client, 3 lives, 4 wave, 5 score, 6 spawning
//	Action         1 id, 2 kind, 3 owner, 4 tower, 5 target, 6 x, 7 y, 8 speed, 9 reason
//
// Signed integers are zigzag encoded, floats are fixed64 doubles, and zero
// values are omitted. Unknown fields inside a message are skipped; an
// unknown envelope field is an error.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Encode(env Envelope) ([]byte, error) {
	var b []byte
	switch env.Kind() {
	case KindHello:
		b = appendMessage(b, 1, appendHello(nil, env.Hello))
	case KindWave:
		b = appendMessage(b, 2, appendWave(nil, env.Wave))
	case KindSnapshot:
		b = appendMessage(b, 3, appendSnapshot(nil, env.Snapshot))
	case KindAction:
		b = appendMessage(b, 4, appendAction(nil, env.Action))
	default:
		return nil, fmt.Errorf("encode: %w: empty envelope", ErrUnknownTag)
	}
	return b, nil
}

func (ProtoCodec) Decode(frame []byte) (Envelope, error) {
	var env Envelope
	err := walk(frame, func(f field) error {
		if f.typ != protowire.BytesType {
			return fmt.Errorf("%w: envelope field %d has wire type %d", ErrUnknownTag, f.num, f.typ)
		}
		switch f.num {
		case 1:
			h, err := readHello(f.bytes)
			env = Envelope{Hello: &h}
			return err
		case 2:
			def, err := readWave(f.bytes)
			env = Envelope{Wave: &def}
			return err
		case 3:
			snap, err := readSnapshot(f.bytes)
			env = Envelope{Snapshot: &snap}
			return err
		case 4:
			a, err := readAction(f.bytes)
			env = Envelope{Action: &a}
			return err
		}
		return fmt.Errorf("%w: %d", ErrUnknownTag, f.num)
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("decode: %w", err)
	}
	if env.Kind() == KindNone {
		return Envelope{}, fmt.Errorf("decode: %w: no payload", ErrUnknownTag)
	}
	return env, nil
}

/* ------------------------------ Encoding ------------------------------ */

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	return appendUint(b, num, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendHello(b []byte, h *Hello) []byte {
	b = appendUint(b, 1, uint64(h.Version))
	b = protowire.AppendTag(b, 2, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, h.SpeciesFingerprint)
	b = appendString(b, 3, h.Role)
	return appendString(b, 4, h.Room)
}

func appendWave(b []byte, def *game.WaveDefinition) []byte {
	b = appendInt(b, 1, int64(def.Number))
	var group []byte
	for _, g := range def.Groups {
		group = group[:0]
		group = appendUint(group, 1, uint64(g.Species))
		group = appendInt(group, 2, int64(g.Count))
		group = appendDouble(group, 3, g.Interval)
		group = appendDouble(group, 4, g.Delay)
		b = appendMessage(b, 2, group)
	}
	b = appendString(b, 3, def.Modifier)
	b = appendString(b, 4, def.Descriptor)
	return appendDouble(b, 5, def.HealthScale)
}

func appendSnapshot(b []byte, snap *game.Snapshot) []byte {
	b = appendUint(b, 1, snap.Seq)
	b = appendDouble(b, 2, snap.Time)
	var ent []byte
	for i := range snap.Entities {
		ent = appendEntity(ent[:0], &snap.Entities[i])
		b = appendMessage(b, 3, ent)
	}
	w := snap.World
	var world []byte
	world = appendInt(world, 1, int64(w.GoldHost))
	world = appendInt(world, 2, int64(w.GoldClient))
	world = appendInt(world, 3, int64(w.Lives))
	world = appendInt(world, 4, int64(w.Wave))
	world = appendInt(world, 5, int64(w.Score))
	world = appendBool(world, 6, w.Spawning)
	return appendMessage(b, 4, world)
}

func appendEntity(b []byte, e *game.EntityState) []byte {
	b = appendInt(b, 1, int64(e.ID))
	b = appendDouble(b, 2, e.X)
	b = appendDouble(b, 3, e.Y)
	b = appendDouble(b, 4, e.Health)
	b = appendDouble(b, 5, e.MaxHealth)
	b = appendUint(b, 6, uint64(e.Species))
	b = appendBool(b, 7, e.Alive)
	b = appendInt(b, 8, int64(e.Waypoint))
	b = appendDouble(b, 9, e.Distance)
	b = appendBool(b, 10, e.Flying)
	return appendUint(b, 11, uint64(e.Lane))
}

func appendAction(b []byte, a *game.Action) []byte {
	b = appendUint(b, 1, uint64(a.ID))
	b = appendUint(b, 2, uint64(a.Kind))
	b = appendUint(b, 3, uint64(a.Owner))
	b = appendUint(b, 4, uint64(a.Tower))
	b = appendUint(b, 5, a.Target)
	b = appendDouble(b, 6, a.X)
	b = appendDouble(b, 7, a.Y)
	b = appendInt(b, 8, int64(a.Speed))
	return appendString(b, 9, a.Reason)
}

/* ------------------------------ Decoding ------------------------------ */

type field struct {
	num   protowire.Number
	typ   protowire.Type
	v     uint64 // varint and fixed values
	bytes []byte
}

func (f field) int() int        { return int(protowire.DecodeZigZag(f.v)) }
func (f field) double() float64 { return math.Float64frombits(f.v) }
func (f field) bool() bool      { return protowire.DecodeBool(f.v) }

// walk calls fn for every field of msg in order.
func walk(msg []byte, fn func(f field) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		msg = msg[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(msg)
		case protowire.Fixed32Type:
			var v32 uint32
			v32, n = protowire.ConsumeFixed32(msg)
			f.v = uint64(v32)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		msg = msg[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func readHello(b []byte) (Hello, error) {
	var h Hello
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			h.Version = uint32(f.v)
		case 2:
			h.SpeciesFingerprint = f.v
		case 3:
			h.Role = string(f.bytes)
		case 4:
			h.Room = string(f.bytes)
		}
		return nil
	})
	return h, err
}

func readWave(b []byte) (game.WaveDefinition, error) {
	var def game.WaveDefinition
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			def.Number = f.int()
		case 2:
			var g game.WaveGroup
			err := walk(f.bytes, func(f field) error {
				switch f.num {
				case 1:
					g.Species = game.SpeciesID(f.v)
				case 2:
					g.Count = f.int()
				case 3:
					g.Interval = f.double()
				case 4:
					g.Delay = f.double()
				}
				return nil
			})
			if err != nil {
				return err
			}
			def.Groups = append(def.Groups, g)
		case 3:
			def.Modifier = string(f.bytes)
		case 4:
			def.Descriptor = string(f.bytes)
		case 5:
			def.HealthScale = f.double()
		}
		return nil
	})
	return def, err
}

func readSnapshot(b []byte) (game.Snapshot, error) {
	var snap game.Snapshot
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			snap.Seq = f.v
		case 2:
			snap.Time = f.double()
		case 3:
			e, err := readEntity(f.bytes)
			if err != nil {
				return err
			}
			snap.Entities = append(snap.Entities, e)
		case 4:
			return walk(f.bytes, func(f field) error {
				w := &snap.World
				switch f.num {
				case 1:
					w.GoldHost = f.int()
				case 2:
					w.GoldClient = f.int()
				case 3:
					w.Lives = f.int()
				case 4:
					w.Wave = f.int()
				case 5:
					w.Score = f.int()
				case 6:
					w.Spawning = f.bool()
				}
				return nil
			})
		}
		return nil
	})
	return snap, err
}

func readEntity(b []byte) (game.EntityState, error) {
	var e game.EntityState
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			e.ID = game.EntityID(protowire.DecodeZigZag(f.v))
		case 2:
			e.X = f.double()
		case 3:
			e.Y = f.double()
		case 4:
			e.Health = f.double()
		case 5:
			e.MaxHealth = f.double()
		case 6:
			if f.v > math.MaxUint8 {
				// Out of range for the table; the reconciler skips it.
				e.Species = math.MaxUint8
				return nil
			}
			e.Species = game.SpeciesID(f.v)
		case 7:
			e.Alive = f.bool()
		case 8:
			e.Waypoint = f.int()
		case 9:
			e.Distance = f.double()
		case 10:
			e.Flying = f.bool()
		case 11:
			e.Lane = uint8(f.v)
		}
		return nil
	})
	return e, err
}

func readAction(b []byte) (game.Action, error) {
	var a game.Action
	err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			a.ID = game.ActionID(f.v)
		case 2:
			a.Kind = game.ActionKind(f.v)
		case 3:
			a.Owner = game.Owner(f.v)
		case 4:
			a.Tower = game.TowerKind(f.v)
		case 5:
			a.Target = f.v
		case 6:
			a.X = f.double()
		case 7:
			a.Y = f.double()
		case 8:
			a.Speed = f.int()
		case 9:
			a.Reason = string(f.bytes)
		}
		return nil
	})
	return a, err
}
