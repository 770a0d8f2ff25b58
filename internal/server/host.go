package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"WaveSiege/internal/game"
	"WaveSiege/internal/telemetry"
	"WaveSiege/internal/wire"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Host serves authoritative rooms to one remote client each.
type Host struct {
	opts   Options
	hub    *game.Hub
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one hosted room plus its connected client, if any.
type session struct {
	room *game.Room

	mu   sync.Mutex
	peer *liveConn
}

// send forwards env to the connected client. It runs inside room hooks, so
// it never blocks.
func (s *session) send(env wire.Envelope) {
	s.mu.Lock()
	peer := s.peer
	s.mu.Unlock()
	if peer == nil {
		return
	}
	if err := peer.send(env); err != nil {
		peer.opts.Logger.Warn("dropping client", "room", s.room.ID, "err", err)
	}
}

func (s *session) attach(lc *liveConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer != nil {
		return false
	}
	s.peer = lc
	return true
}

func (s *session) detach(lc *liveConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == lc {
		s.peer = nil
	}
}

func (s *session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peer != nil
}

// NewHost builds a host. base is the template for every room it creates.
func NewHost(opts Options, base game.RoomConfig) *Host {
	opts = opts.withDefaults()
	base.Role = game.RoleHost
	if base.Logger == nil {
		base.Logger = opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		opts:     opts,
		hub:      game.NewHub(base),
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Room returns the room with id, creating it and starting its loop on first
// use.
func (h *Host) Room(id string) *game.Room {
	return h.session(id).room
}

func (h *Host) session(id string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s
	}
	s := &session{room: h.hub.GetRoom(id)}
	s.room.SetHooks(game.RoomHooks{
		Listener: h.opts.Metrics,
		OnWaveStart: func(def game.WaveDefinition) {
			s.send(wire.WaveEnvelope(def))
		},
		OnWaveComplete: func(rep game.WaveReport) {
			s.send(wire.WaveEnvelope(rep.Next))
			if err := h.opts.Waves.Write(telemetry.RecordFor(id, rep)); err != nil {
				h.logger.Warn("wave telemetry", "room", id, "err", err)
			}
		},
		OnAction: func(a game.Action) {
			s.send(wire.ActionEnvelope(a))
		},
	})
	h.sessions[id] = s
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runRoom(s)
	}()
	return s
}

// runRoom advances the room on wall-clock time and publishes snapshots at
// the configured rate while a client is connected.
func (h *Host) runRoom(s *session) {
	step := time.NewTicker(time.Duration(float64(time.Second) / game.SimHz))
	defer step.Stop()
	snap := time.NewTicker(time.Duration(float64(time.Second) / h.opts.SnapshotHz))
	defer snap.Stop()

	last := time.Now()
	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-step.C:
			start := time.Now()
			steps := s.room.Advance(now.Sub(last).Seconds())
			last = now
			live, wave := roomGauges(s.room)
			h.opts.Metrics.ObserveAdvance(steps, time.Since(start), live, wave)
		case <-snap.C:
			if !s.connected() {
				continue
			}
			s.send(wire.SnapshotEnvelope(s.room.Snapshot()))
			h.opts.Metrics.SnapshotSent()
		}
	}
}

func roomGauges(r *game.Room) (live, wave int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.Sim.LiveCount(), r.World.Wave
}

// Submit applies an action from the host player.
func (h *Host) Submit(roomID string, a game.Action) (game.Action, error) {
	a.Owner = game.OwnerHost
	return h.Room(roomID).Submit(a)
}

// Close stops every room loop and waits for them.
func (h *Host) Close() {
	h.cancel()
	h.wg.Wait()
}

func (h *Host) serveWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = h.opts.Room
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "err", err)
		return
	}
	logger := h.logger.With("room", roomID, "remote", r.RemoteAddr)
	opts := h.opts
	opts.Logger = logger
	lc := newLiveConn(conn, opts)
	defer lc.close()

	s := h.session(roomID)
	if s.connected() {
		rejectFull(conn, opts, logger)
		return
	}
	local := wire.NewHello(s.room.Sim.Species(), game.RoleHost, roomID)
	remote, err := lc.handshake(local)
	if err != nil {
		logger.Warn("handshake failed", "err", err)
		return
	}
	if !s.attach(lc) {
		rejectFull(conn, opts, logger)
		return
	}
	defer s.detach(lc)
	logger.Info("client joined", "role", remote.Role, "codec", opts.Codec.Name())

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	go func() {
		defer cancel()
		lc.writeLoop(ctx)
	}()

	if def, ok := s.room.Preview(); ok {
		_ = lc.send(wire.WaveEnvelope(def))
	}
	_ = lc.send(wire.SnapshotEnvelope(s.room.Snapshot()))

	lc.armReadDeadline()
	for {
		env, err := lc.read()
		if err != nil {
			var dropped droppedError
			if errors.As(err, &dropped) {
				logger.Warn("dropping inbound message", "err", err)
				h.opts.Metrics.DiscardHook()(discardReason(err))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("client connection lost", "err", err)
			}
			break
		}
		switch env.Kind() {
		case wire.KindAction:
			if _, err := s.room.Receive(*env.Action); err != nil {
				logger.Debug("client action not applied", "action", env.Action.Kind.String(), "err", err)
			}
		default:
			h.opts.Metrics.DiscardHook()("unexpected_" + env.Kind().String())
		}
	}
	logger.Info("client left")
}

func rejectFull(conn *websocket.Conn, opts Options, logger *slog.Logger) {
	logger.Warn("room full, rejecting client")
	deadline := time.Now().Add(opts.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "room full"), deadline)
}
