package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"WaveSiege/internal/config"
	"WaveSiege/internal/observability"
	"WaveSiege/internal/telemetry"
	"WaveSiege/internal/wire"
)

// ErrSendQueueFull is reported when a peer cannot keep up with outbound
// messages. The connection is closed.
var ErrSendQueueFull = errors.New("send queue full")

// Options configures both ends of the transport.
type Options struct {
	Room         string
	Codec        wire.Codec
	SnapshotHz   float64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	SendQueue    int

	Logger  *slog.Logger
	Metrics *observability.RoomCollector
	Waves   *telemetry.WaveWriter
}

// OptionsFrom derives transport options from a loaded configuration.
func OptionsFrom(cfg *config.Config) (Options, error) {
	codec, err := wire.CodecFor(cfg.Network.Codec)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Room:         cfg.Server.Room,
		Codec:        codec,
		SnapshotHz:   cfg.Network.SnapshotHz,
		ReadTimeout:  cfg.Network.ReadTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
		PingInterval: cfg.Network.PingInterval,
		SendQueue:    cfg.Network.SendQueue,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.Room == "" {
		o.Room = "default"
	}
	if o.Codec == nil {
		o.Codec = wire.ProtoCodec{}
	}
	if o.SnapshotHz <= 0 {
		o.SnapshotHz = 10
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.ReadTimeout {
		o.PingInterval = o.ReadTimeout * 3 / 10
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// liveConn is one websocket with a single writer goroutine. Everything that
// wants to send goes through send, which never blocks.
type liveConn struct {
	conn  *websocket.Conn
	codec wire.Codec
	opts  Options
	out   chan wire.Envelope

	closeOnce sync.Once
	done      chan struct{}
}

func newLiveConn(conn *websocket.Conn, opts Options) *liveConn {
	return &liveConn{
		conn:  conn,
		codec: opts.Codec,
		opts:  opts,
		out:   make(chan wire.Envelope, opts.SendQueue),
		done:  make(chan struct{}),
	}
}

// send queues env. A full queue closes the connection.
func (lc *liveConn) send(env wire.Envelope) error {
	select {
	case <-lc.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case lc.out <- env:
		return nil
	default:
		lc.close()
		return fmt.Errorf("send %s: %w", env.Kind(), ErrSendQueueFull)
	}
}

func (lc *liveConn) close() {
	lc.closeOnce.Do(func() {
		close(lc.done)
		_ = lc.conn.Close()
	})
}

// writeNow encodes and writes env directly. Only used before the writer
// goroutine starts.
func (lc *liveConn) writeNow(env wire.Envelope) error {
	frame, err := lc.codec.Encode(env)
	if err != nil {
		return err
	}
	_ = lc.conn.SetWriteDeadline(time.Now().Add(lc.opts.WriteTimeout))
	return lc.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// writeLoop drains the send queue and keeps the connection alive with pings.
func (lc *liveConn) writeLoop(ctx context.Context) {
	ping := time.NewTicker(lc.opts.PingInterval)
	defer ping.Stop()
	defer lc.close()
	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(lc.opts.WriteTimeout)
			_ = lc.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case <-lc.done:
			return
		case env := <-lc.out:
			if err := lc.writeNow(env); err != nil {
				lc.opts.Logger.Warn("websocket write failed", "kind", env.Kind().String(), "err", err)
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(lc.opts.WriteTimeout)
			if err := lc.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// armReadDeadline extends the read deadline on every pong.
func (lc *liveConn) armReadDeadline() {
	_ = lc.conn.SetReadDeadline(time.Now().Add(lc.opts.ReadTimeout))
	lc.conn.SetPongHandler(func(string) error {
		return lc.conn.SetReadDeadline(time.Now().Add(lc.opts.ReadTimeout))
	})
}

// droppedError marks a single inbound message that could not be decoded.
// The connection itself is still usable.
type droppedError struct{ err error }

func (e droppedError) Error() string { return e.err.Error() }
func (e droppedError) Unwrap() error { return e.err }

// read returns the next decoded envelope. Decode failures come back as
// droppedError; anything else is a transport failure.
func (lc *liveConn) read() (wire.Envelope, error) {
	msgType, data, err := lc.conn.ReadMessage()
	if err != nil {
		return wire.Envelope{}, err
	}
	_ = lc.conn.SetReadDeadline(time.Now().Add(lc.opts.ReadTimeout))
	if msgType != websocket.BinaryMessage {
		return wire.Envelope{}, droppedError{fmt.Errorf("%w: websocket message type %d", wire.ErrMalformed, msgType)}
	}
	env, err := lc.codec.Decode(data)
	if err != nil {
		return wire.Envelope{}, droppedError{err}
	}
	return env, nil
}

// handshake sends local and waits for the peer's Hello.
func (lc *liveConn) handshake(local wire.Hello) (wire.Hello, error) {
	if err := lc.writeNow(wire.HelloEnvelope(local)); err != nil {
		return wire.Hello{}, fmt.Errorf("send hello: %w", err)
	}
	_ = lc.conn.SetReadDeadline(time.Now().Add(lc.opts.ReadTimeout))
	env, err := lc.read()
	if err != nil {
		return wire.Hello{}, fmt.Errorf("read hello: %w", err)
	}
	if env.Hello == nil {
		return wire.Hello{}, fmt.Errorf("read hello: expected hello, got %s", env.Kind())
	}
	if err := wire.CheckHello(local, *env.Hello); err != nil {
		deadline := time.Now().Add(lc.opts.WriteTimeout)
		_ = lc.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseProtocolError, err.Error()), deadline)
		return *env.Hello, err
	}
	return *env.Hello, nil
}

// discardReason maps a decode error to a metrics label.
func discardReason(err error) string {
	switch {
	case errors.Is(err, wire.ErrUnknownTag):
		return "unknown_tag"
	case errors.Is(err, wire.ErrMalformed):
		return "malformed"
	}
	return "decode"
}
