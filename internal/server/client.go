package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"WaveSiege/internal/game"
	"WaveSiege/internal/wire"
)

// Client is the non-authoritative peer: it predicts locally, forwards its
// actions to the host and reconciles host snapshots.
type Client struct {
	opts   Options
	room   *game.Room
	lc     *liveConn
	logger *slog.Logger
}

// Dial connects to the host at rawURL, exchanges Hello messages and returns
// a client ready to Run. A species table mismatch is unrecoverable and
// returned as wire.ErrSpeciesMismatch.
func Dial(ctx context.Context, rawURL string, opts Options, cfg game.RoomConfig) (*Client, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	q := u.Query()
	if q.Get("room") == "" {
		q.Set("room", opts.Room)
	}
	u.RawQuery = q.Encode()

	cfg.Role = game.RoleClient
	cfg.ID = q.Get("room")
	if cfg.Logger == nil {
		cfg.Logger = opts.Logger
	}
	logger := opts.Logger.With("room", cfg.ID, "host", u.Host)
	opts.Logger = logger

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	c := &Client{opts: opts, lc: newLiveConn(conn, opts), logger: logger}
	c.room = game.NewRoom(cfg)

	local := wire.NewHello(c.room.Sim.Species(), game.RoleClient, cfg.ID)
	if _, err := c.lc.handshake(local); err != nil {
		c.lc.close()
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	c.room.SetHooks(game.RoomHooks{
		Listener: opts.Metrics,
		OnAction: func(a game.Action) {
			if err := c.lc.send(wire.ActionEnvelope(a)); err != nil {
				logger.Warn("action not sent", "action", a.Kind.String(), "err", err)
			}
		},
	})
	c.room.SetDiscardHook(opts.Metrics.DiscardHook())
	logger.Info("connected to host", "codec", opts.Codec.Name())
	return c, nil
}

// Room returns the local predicted room.
func (c *Client) Room() *game.Room { return c.room }

// Submit applies a local player action and forwards it to the host.
func (c *Client) Submit(a game.Action) (game.Action, error) {
	return c.room.Submit(a)
}

// Close drops the connection.
func (c *Client) Close() { c.lc.close() }

// Run drives the local prediction loop and applies inbound messages in
// arrival order until ctx ends or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.lc.close()

	go func() {
		defer cancel()
		c.lc.writeLoop(ctx)
	}()

	readErr := make(chan error, 1)
	go func() {
		defer cancel()
		readErr <- c.readLoop()
	}()

	step := time.NewTicker(time.Duration(float64(time.Second) / game.SimHz))
	defer step.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			select {
			case err := <-readErr:
				return err
			default:
				return nil
			}
		case now := <-step.C:
			start := time.Now()
			steps := c.room.Advance(now.Sub(last).Seconds())
			last = now
			live, wave := roomGauges(c.room)
			c.opts.Metrics.ObserveAdvance(steps, time.Since(start), live, wave)
		}
	}
}

func (c *Client) readLoop() error {
	c.lc.armReadDeadline()
	for {
		env, err := c.lc.read()
		if err != nil {
			var dropped droppedError
			if errors.As(err, &dropped) {
				c.logger.Warn("dropping inbound message", "err", err)
				c.opts.Metrics.DiscardHook()(discardReason(err))
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.apply(env)
	}
}

func (c *Client) apply(env wire.Envelope) {
	switch env.Kind() {
	case wire.KindSnapshot:
		if _, err := c.room.ApplySnapshot(*env.Snapshot); err != nil {
			// Stale snapshots are already counted by the discard hook.
			if !errors.Is(err, game.ErrStaleSnapshot) {
				c.logger.Warn("snapshot not applied", "seq", env.Snapshot.Seq, "err", err)
			}
			return
		}
		c.opts.Metrics.SnapshotApplied()
	case wire.KindWave:
		c.room.ApplyWaveDefinition(*env.Wave)
	case wire.KindAction:
		if _, err := c.room.Receive(*env.Action); err != nil {
			c.logger.Warn("host action not applied", "action", env.Action.Kind.String(), "id", env.Action.ID, "err", err)
		}
	default:
		c.opts.Metrics.DiscardHook()("unexpected_" + env.Kind().String())
	}
}
