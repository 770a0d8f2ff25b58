package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
)

var ErrInsufficientGold = errors.New("insufficient gold")

// Role says whether a room is authoritative.
type Role uint8

const (
	RoleHost Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "host"
}

// WaveReport summarises a completed wave.
type WaveReport struct {
	Wave       int
	Modifier   string
	Groups     int
	Spawned    int
	Killed     int
	Leaked     int
	Duration   float64
	GoldHost   int
	GoldClient int
	Lives      int
	Score      int
	Next       WaveDefinition
}

// RoomHooks are outward notifications. They run with the room lock held and
// must not block or call back into the room.
type RoomHooks struct {
	Listener       SimListener
	OnWaveStart    func(def WaveDefinition)
	OnWaveComplete func(report WaveReport)
	OnAction       func(a Action)
}

// RoomConfig configures a new room.
type RoomConfig struct {
	ID            string
	Role          Role
	Seed          int64
	Sim           SimConfig
	Species       *SpeciesTable
	Paths         []*Path
	StartingLives int
	GoldHost      int
	GoldClient    int
	WaveClearGold int
	Logger        *slog.Logger
	Hooks         RoomHooks
}

// DefaultRoomConfig returns a host room configuration with built-in tables.
func DefaultRoomConfig(id string) RoomConfig {
	return RoomConfig{
		ID:            id,
		Role:          RoleHost,
		Seed:          1,
		Sim:           DefaultSimConfig(),
		StartingLives: StartingLives,
		GoldHost:      StartingGoldHost,
		GoldClient:    StartingGoldClient,
		WaveClearGold: WaveClearGold,
	}
}

type waveStats struct {
	started float64
	spawned int
	killed  int
	leaked  int
}

// Room is one co-op match: the enemy simulation, its wave timeline, the
// towers and the shared scalar state. All exported methods take Mu.
type Room struct {
	ID       string
	Role     Role
	Now      float64
	Sim      *Simulation
	Waves    *Scheduler
	Towers   *Towers
	World    WorldState
	Ledger   *ActionLedger
	Clock    *FixedStep
	Speed    int
	GameOver bool
	// Upcoming is the next wave as last announced by the host. Client only.
	Upcoming WaveDefinition

	Mu sync.Mutex

	cfg        RoomConfig
	hooks      RoomHooks
	logger     *slog.Logger
	ids        *ActionIDs
	publisher  SnapshotPublisher
	reconciler *Reconciler
	stats      waveStats
}

// NewRoom builds a room ready to tick.
func NewRoom(cfg RoomConfig) *Room {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("room", cfg.ID, "role", cfg.Role.String())
	if cfg.Species == nil {
		cfg.Species = NewSpeciesTable(nil, logger)
	}
	simCfg := cfg.Sim
	simCfg.Authoritative = cfg.Role == RoleHost
	owner := OwnerHost
	if cfg.Role == RoleClient {
		owner = OwnerClient
	}

	r := &Room{
		ID:     cfg.ID,
		Role:   cfg.Role,
		Towers: NewTowers(),
		World: WorldState{
			GoldHost:   cfg.GoldHost,
			GoldClient: cfg.GoldClient,
			Lives:      cfg.StartingLives,
		},
		Ledger: NewActionLedger(0),
		Clock:  NewFixedStep(),
		Speed:  1,
		cfg:    cfg,
		hooks:  cfg.Hooks,
		logger: logger,
		ids:    NewActionIDs(owner),
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	r.Sim = NewSimulation(simCfg, cfg.Species, cfg.Paths, r, rng, logger)
	r.Waves = NewScheduler(NewWaveGenerator(cfg.Seed, logger), logger)
	if cfg.Role == RoleClient {
		r.reconciler = NewReconciler(r.Sim, logger)
	}
	return r
}

// SetHooks replaces the outward notifications.
func (r *Room) SetHooks(h RoomHooks) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.hooks = h
}

// SetDiscardHook registers a callback for dropped snapshots. Client only.
func (r *Room) SetDiscardHook(fn func(reason string)) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.reconciler != nil {
		r.reconciler.OnDiscard = fn
	}
}

// Hub maps room ids to rooms, creating them on first use.
type Hub struct {
	Rooms map[string]*Room
	Mu    sync.Mutex

	base RoomConfig
}

func NewHub(base RoomConfig) *Hub {
	return &Hub{Rooms: map[string]*Room{}, base: base}
}

func (h *Hub) GetRoom(id string) *Room {
	h.Mu.Lock()
	defer h.Mu.Unlock()
	r, ok := h.Rooms[id]
	if !ok {
		cfg := h.base
		cfg.ID = id
		r = NewRoom(cfg)
		h.Rooms[id] = r
	}
	return r
}

// Tick runs exactly one fixed step.
func (r *Room) Tick() {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	r.step(Dt)
}

// Advance feeds wall-clock time into the fixed-step clock and runs the due
// steps, multiplied by the game speed. It returns the steps run.
func (r *Room) Advance(elapsed float64) int {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	steps := r.Clock.Advance(elapsed) * r.Speed
	for i := 0; i < steps; i++ {
		r.step(Dt)
	}
	return steps
}

func (r *Room) step(dt float64) {
	if r.GameOver {
		return
	}
	r.Now += dt
	if r.Role == RoleHost {
		r.Waves.Tick(dt, r.spawnFromWave)
	}
	r.Sim.Tick(dt)
	if r.Role != RoleHost {
		return
	}
	r.Towers.Tick(dt, r.Sim)
	r.World.Spawning = r.Waves.Active() && !r.Waves.Exhausted()
	if r.Waves.Active() && r.Waves.Exhausted() && r.Sim.LiveCount() == 0 {
		r.completeWave()
	}
}

func (r *Room) spawnFromWave(def *WaveDefinition, group int, g WaveGroup) {
	r.Sim.Spawn(g.Species, def.HealthScale, ModifierFor(def.Modifier), group)
}

func (r *Room) completeWave() {
	current := r.Waves.Current()
	next, ok := r.Waves.Complete()
	if !ok {
		return
	}
	r.World.Spawning = false
	r.World.AddGold(OwnerHost, r.cfg.WaveClearGold)
	r.World.AddGold(OwnerClient, r.cfg.WaveClearGold)
	report := WaveReport{
		Wave:       current.Number,
		Modifier:   current.Modifier,
		Groups:     len(current.Groups),
		Spawned:    r.stats.spawned,
		Killed:     r.stats.killed,
		Leaked:     r.stats.leaked,
		Duration:   r.Now - r.stats.started,
		GoldHost:   r.World.GoldHost,
		GoldClient: r.World.GoldClient,
		Lives:      r.World.Lives,
		Score:      r.World.Score,
		Next:       next,
	}
	r.Towers.ResetStats()
	r.logger.Info("wave cleared", "wave", report.Wave, "killed", report.Killed, "leaked", report.Leaked, "duration", report.Duration)
	if r.hooks.OnWaveComplete != nil {
		r.hooks.OnWaveComplete(report)
	}
}

// StartWave starts the cached next wave. Host only.
func (r *Room) StartWave() (WaveDefinition, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.startWave()
}

func (r *Room) startWave() (WaveDefinition, error) {
	if r.Role != RoleHost {
		return WaveDefinition{}, fmt.Errorf("start wave: room %s is not authoritative", r.ID)
	}
	if r.GameOver {
		return WaveDefinition{}, fmt.Errorf("start wave: game over")
	}
	def, ok := r.Waves.StartNext()
	if !ok {
		return def, nil
	}
	r.stats = waveStats{started: r.Now}
	r.World.Wave = def.Number
	r.World.Spawning = true
	if r.hooks.OnWaveStart != nil {
		r.hooks.OnWaveStart(def)
	}
	return def, nil
}

// Preview returns the next wave definition. On the host this is the
// scheduler's cached value. On the client it is the last one the host
// announced, or the local scheduler's value once that announcement is behind
// the host's wave.
func (r *Room) Preview() (WaveDefinition, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.Role == RoleClient && r.Upcoming.Number > r.World.Wave {
		return r.Upcoming, true
	}
	return r.Waves.Preview()
}

// Snapshot captures the host state for the client.
func (r *Room) Snapshot() Snapshot {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.publisher.Publish(r.Now, r.Sim, r.World)
}

// ApplySnapshot reconciles a host snapshot into a client room.
func (r *Room) ApplySnapshot(snap Snapshot) (ReconcileResult, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if r.reconciler == nil {
		return ReconcileResult{}, fmt.Errorf("apply snapshot: room %s is authoritative", r.ID)
	}
	res, err := r.reconciler.Apply(snap)
	if err != nil {
		return res, err
	}
	if snap.World.Wave > r.World.Wave {
		r.Waves.Restore(snap.World.Wave)
	}
	r.World = snap.World
	return res, nil
}

// ApplyWaveDefinition records a wave announced by the host. Client only.
func (r *Room) ApplyWaveDefinition(def WaveDefinition) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if def.Number > r.Upcoming.Number || def.Number > r.World.Wave {
		r.Upcoming = def
	}
}

// WaveCounts reports the current wave's tallies.
func (r *Room) WaveCounts() (spawned, killed, leaked int) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.stats.spawned, r.stats.killed, r.stats.leaked
}

// OnSpawn implements SimListener.
func (r *Room) OnSpawn(e *Enemy) {
	r.stats.spawned++
	if r.hooks.Listener != nil {
		r.hooks.Listener.OnSpawn(e)
	}
}

// OnKilled pays the reward to the owner of the tower that landed the last
// hit, or splits it when the killer is unknown.
func (r *Room) OnKilled(e *Enemy) {
	r.stats.killed++
	r.World.Score += e.Reward
	if t := r.Towers.Get(uint64(e.LastHit.ID)); t != nil {
		r.World.AddGold(t.Owner, e.Reward)
	} else {
		half := e.Reward / 2
		r.World.AddGold(OwnerHost, e.Reward-half)
		r.World.AddGold(OwnerClient, half)
	}
	if r.hooks.Listener != nil {
		r.hooks.Listener.OnKilled(e)
	}
}

// OnLeaked costs lives; running out ends the game.
func (r *Room) OnLeaked(e *Enemy) {
	r.stats.leaked++
	cost := 1
	if e.Boss {
		cost = BossLeakCost
	}
	r.World.Lives -= cost
	if r.World.Lives < 0 {
		r.World.Lives = 0
	}
	if r.hooks.Listener != nil {
		r.hooks.Listener.OnLeaked(e)
	}
	if r.World.Lives == 0 && !r.GameOver {
		r.GameOver = true
		r.World.Spawning = false
		r.logger.Info("game over", "wave", r.World.Wave, "score", r.World.Score)
		r.emit(Action{ID: r.ids.Next(), Kind: ActionGameOver, Reason: "lives exhausted"})
	}
}

// OnDamageDealt implements SimListener.
func (r *Room) OnDamageDealt(sourceType string, amount float64, sourceID EntityID) {
	r.Towers.RecordDamage(sourceID, amount)
	if r.hooks.Listener != nil {
		r.hooks.Listener.OnDamageDealt(sourceType, amount, sourceID)
	}
}

func (r *Room) emit(a Action) {
	if r.hooks.OnAction != nil {
		r.hooks.OnAction(a)
	}
}

// Submit applies an action originating at this peer. A zero id is filled in.
// On the host the applied action is broadcast; on the client it is applied
// optimistically where possible and forwarded to the host.
func (r *Room) Submit(a Action) (Action, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	if a.ID == 0 {
		a.ID = r.ids.Next()
	}
	if r.Role == RoleClient {
		a.Owner = OwnerClient
		// Reasons mark host rollbacks only.
		a.Reason = ""
		if a.Kind == ActionTowerPlace {
			a.Kind = ActionTowerPlaceRequest
		}
		switch a.Kind {
		case ActionTowerPlaceRequest, ActionTowerSell, ActionTowerUpgrade:
			r.Ledger.Record(a.ID)
			if err := r.execute(a); err != nil {
				return a, err
			}
		}
		r.emit(a)
		return a, nil
	}
	_, err := r.receive(a)
	return a, err
}

// Receive applies an action that arrived from the peer. Already-applied ids
// are skipped and reported as not applied.
func (r *Room) Receive(a Action) (bool, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.receive(a)
}

func (r *Room) receive(a Action) (bool, error) {
	if !a.Kind.Valid() {
		return false, fmt.Errorf("receive action %d: unknown kind %d", a.ID, a.Kind)
	}
	if !r.Ledger.Record(a.ID) {
		return false, nil
	}
	if r.Role == RoleClient {
		return true, r.execute(a)
	}

	if a.Kind == ActionTowerPlaceRequest {
		a.Kind = ActionTowerPlace
	}
	if err := r.execute(a); err != nil {
		r.logger.Warn("action rejected", "action", a.Kind.String(), "id", a.ID, "owner", a.Owner.String(), "err", err)
		if a.Kind == ActionTowerPlace && a.Owner == OwnerClient {
			r.emit(Action{ID: r.ids.Next(), Kind: ActionTowerSell, Owner: OwnerClient, Target: uint64(a.ID), Reason: err.Error()})
		}
		return false, err
	}
	r.emit(a)
	return true, nil
}

func (r *Room) execute(a Action) error {
	switch a.Kind {
	case ActionTowerPlace, ActionTowerPlaceRequest:
		spec, err := TowerSpecFor(a.Tower)
		if err != nil {
			return err
		}
		if r.Role == RoleClient && a.Kind == ActionTowerPlace {
			// Confirmed by the host; local spacing and gold may be stale.
			if _, err := r.Towers.Insert(uint64(a.ID), a.Tower, a.Owner, Vec2{X: a.X, Y: a.Y}); err != nil {
				return fmt.Errorf("place %s: %w", spec.Name, err)
			}
			r.World.AddGold(a.Owner, -spec.Cost)
			return nil
		}
		if r.World.Gold(a.Owner) < spec.Cost {
			return fmt.Errorf("place %s: %w", spec.Name, ErrInsufficientGold)
		}
		if _, err := r.Towers.Place(uint64(a.ID), a.Tower, a.Owner, Vec2{X: a.X, Y: a.Y}); err != nil {
			return fmt.Errorf("place %s: %w", spec.Name, err)
		}
		r.World.AddGold(a.Owner, -spec.Cost)
	case ActionTowerSell:
		t := r.Towers.Get(a.Target)
		if t == nil {
			return fmt.Errorf("sell: %w: %d", ErrUnknownTower, a.Target)
		}
		if t.Owner != a.Owner {
			return fmt.Errorf("sell %d: %w", a.Target, ErrNotTowerOwner)
		}
		removed, refund, err := r.Towers.Remove(a.Target)
		if err != nil {
			return fmt.Errorf("sell: %w", err)
		}
		if r.Role == RoleClient && a.Reason != "" {
			// Host rollback of a placement it never accepted.
			refund = removed.Invested
		}
		r.World.AddGold(a.Owner, refund)
	case ActionTowerUpgrade:
		t := r.Towers.Get(a.Target)
		if t == nil {
			return fmt.Errorf("upgrade: %w: %d", ErrUnknownTower, a.Target)
		}
		if t.Owner != a.Owner {
			return fmt.Errorf("upgrade %d: %w", a.Target, ErrNotTowerOwner)
		}
		if t.Level >= MaxTowerLevel {
			return fmt.Errorf("upgrade %d: %w", a.Target, ErrTowerMaxLevel)
		}
		if cost := UpgradeCost(t.Kind, t.Level); r.World.Gold(a.Owner) < cost {
			return fmt.Errorf("upgrade %d: %w", a.Target, ErrInsufficientGold)
		}
		_, cost, err := r.Towers.Upgrade(a.Target)
		if err != nil {
			return fmt.Errorf("upgrade: %w", err)
		}
		r.World.AddGold(a.Owner, -cost)
	case ActionSpeedChange:
		r.Speed = normalizeSpeed(a.Speed)
	case ActionWaveStartRequest:
		if r.Role == RoleHost {
			if _, err := r.startWave(); err != nil {
				return err
			}
		}
	case ActionGameOver:
		r.GameOver = true
		r.World.Spawning = false
	default:
		return fmt.Errorf("execute: unknown action kind %d", a.Kind)
	}
	return nil
}

func normalizeSpeed(s int) int {
	switch {
	case s >= 4:
		return 4
	case s >= 2:
		return 2
	default:
		return 1
	}
}
