package game

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"
)

// DamageSource attributes a hit for statistics.
type DamageSource struct {
	Type string
	ID   EntityID
}

// SimListener receives simulation events. OnKilled and OnLeaked fire exactly
// once per enemy, during the sweep that removes it.
type SimListener interface {
	OnSpawn(e *Enemy)
	OnKilled(e *Enemy)
	OnLeaked(e *Enemy)
	OnDamageDealt(sourceType string, amount float64, sourceID EntityID)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnSpawn(*Enemy)                          {}
func (NopListener) OnKilled(*Enemy)                         {}
func (NopListener) OnLeaked(*Enemy)                         {}
func (NopListener) OnDamageDealt(string, float64, EntityID) {}

// WaveModifier adjusts every enemy of a wave at creation time.
type WaveModifier struct {
	Key             string
	BonusArmor      float64
	SpeedMultiplier float64
	Regen           float64
}

// SimConfig holds the tunables of a Simulation.
type SimConfig struct {
	WorldW        float64
	WorldH        float64
	CellSize      float64
	DeathDelay    float64
	MaxPopulation int
	// Authoritative simulations own spawning, splitting, cloning and payouts.
	// Client-side prediction runs with this false and learns those outcomes
	// from snapshots.
	Authoritative bool
}

// DefaultSimConfig returns the host configuration.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		WorldW:        WorldW,
		WorldH:        WorldH,
		CellSize:      GridCellSize,
		DeathDelay:    DeathDelay,
		MaxPopulation: MaxPopulation,
		Authoritative: true,
	}
}

type pendingSpawn struct {
	rec       Species
	scale     float64
	mod       *WaveModifier
	lane      int
	pos       Vec2
	waypoint  int
	distance  float64
	maxHealth float64
	cloned    bool
}

// Simulation owns the enemy population and advances it in fixed steps.
type Simulation struct {
	cfg      SimConfig
	species  *SpeciesTable
	paths    []*Path
	listener SimListener
	logger   *slog.Logger
	rng      *rand.Rand
	grid     *SpatialGrid

	enemies []*Enemy // ordered by id
	byID    map[EntityID]*Enemy
	nextID  EntityID
	pending []pendingSpawn
	scratch []*Enemy

	Now   float64
	Ticks uint64
}

// NewSimulation creates an empty population walking the given paths.
func NewSimulation(cfg SimConfig, species *SpeciesTable, paths []*Path, listener SimListener, rng *rand.Rand, logger *slog.Logger) *Simulation {
	if species == nil {
		species = NewSpeciesTable(nil, logger)
	}
	if len(paths) == 0 {
		paths = DefaultPaths()
	}
	if listener == nil {
		listener = NopListener{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPopulation <= 0 {
		cfg.MaxPopulation = MaxPopulation
	}
	if cfg.DeathDelay < 0 {
		cfg.DeathDelay = 0
	}
	return &Simulation{
		cfg:      cfg,
		species:  species,
		paths:    paths,
		listener: listener,
		logger:   logger,
		rng:      rng,
		grid:     NewSpatialGrid(cfg.WorldW, cfg.WorldH, cfg.CellSize),
		byID:     make(map[EntityID]*Enemy),
	}
}

// Species exposes the species table.
func (s *Simulation) Species() *SpeciesTable { return s.species }

func (s *Simulation) lane(variant int) (*Path, int) {
	n := len(s.paths)
	idx := ((variant % n) + n) % n
	return s.paths[idx], idx
}

// Spawn creates one enemy at the start of a lane. Unknown species fall back to
// the default record; a full population makes this a no-op returning nil.
func (s *Simulation) Spawn(species SpeciesID, healthScale float64, modifier *WaveModifier, pathVariant int) *Enemy {
	rec, ok := s.species.Get(species)
	if !ok {
		s.logger.Warn("unknown species, using default", "species", int(species))
	}
	path, lane := s.lane(pathVariant)
	return s.spawn(pendingSpawn{
		rec:      rec,
		scale:    healthScale,
		mod:      modifier,
		lane:     lane,
		pos:      path.Start(),
		waypoint: 1,
	}, true)
}

func (s *Simulation) spawn(p pendingSpawn, notify bool) *Enemy {
	if len(s.enemies) >= s.cfg.MaxPopulation {
		s.logger.Debug("population cap reached, spawn dropped", "species", p.rec.Name, "cap", s.cfg.MaxPopulation)
		return nil
	}
	s.nextID++
	e := s.newEnemy(s.nextID, p)
	s.insert(e)
	if notify {
		s.listener.OnSpawn(e)
	}
	return e
}

func (s *Simulation) newEnemy(id EntityID, p pendingSpawn) *Enemy {
	rec := p.rec
	scale := Clamp(p.scale, 0.1, 1000)
	if p.scale == 0 || math.IsNaN(p.scale) {
		scale = 1
	}
	path, lane := s.lane(p.lane)
	maxHealth := rec.Health * scale
	if p.maxHealth > 0 {
		maxHealth = p.maxHealth
	}
	e := &Enemy{
		ID:        id,
		Species:   rec.ID,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		Pos:       p.pos,
		Path:      path,
		PathIndex: lane,
		Waypoint:  p.waypoint,
		Distance:  p.distance,
		BaseSpeed: rec.Speed,
		Armor:     rec.Armor,
		Radius:    rec.Radius,
		Reward:    rec.Reward,
		Boss:      rec.Boss,
		Dodge:     rec.Dodge,
		HealAura:  rec.HealAura,
		HasteAura: rec.HasteAura,
		scale:     scale,
		mod:       p.mod,
	}
	if p.mod != nil {
		e.Armor = Clamp(e.Armor+p.mod.BonusArmor, 0, 0.9)
		if p.mod.SpeedMultiplier > 0 {
			e.BaseSpeed *= p.mod.SpeedMultiplier
		}
		if p.mod.Regen > 0 {
			e.Effects.Regen = p.mod.Regen
		}
	}
	if rec.Shield > 0 {
		pool := rec.Shield * scale
		e.Shield = &Shield{Points: pool, Max: pool}
	}
	if rec.Invuln != nil {
		e.Invuln = &Cycle{Spec: *rec.Invuln}
	}
	if rec.Burrow != nil {
		e.Burrow = &Cycle{Spec: *rec.Burrow}
	}
	if rec.Split != nil {
		e.Split = &Split{Spec: *rec.Split}
	}
	if rec.CloneOnHalf {
		e.Clone = &Clone{AlreadySplit: p.cloned}
	}
	if rec.Flight != nil && e.Waypoint < path.Len() {
		land := e.Waypoint - 1 + rec.Flight.LandAhead
		if s.cfg.Authoritative && rec.Flight.LandAhead > 1 {
			land += s.rng.Intn(2)
		}
		if land >= path.Len() {
			land = path.Len() - 1
		}
		if land < e.Waypoint {
			land = e.Waypoint
		}
		e.Flight = &Flight{
			From:         e.Pos,
			FromDistance: e.Distance,
			LandIndex:    land,
			Amplitude:    rec.Flight.Amplitude,
			Waves:        rec.Flight.Waves,
		}
		e.Waypoint = land
	}
	e.clampHealth()
	return e
}

func (s *Simulation) insert(e *Enemy) {
	s.byID[e.ID] = e
	n := len(s.enemies)
	if n == 0 || s.enemies[n-1].ID < e.ID {
		s.enemies = append(s.enemies, e)
		return
	}
	i := sort.Search(n, func(i int) bool { return s.enemies[i].ID >= e.ID })
	s.enemies = append(s.enemies, nil)
	copy(s.enemies[i+1:], s.enemies[i:])
	s.enemies[i] = e
}

// Enemy looks up a tracked enemy.
func (s *Simulation) Enemy(id EntityID) *Enemy {
	return s.byID[id]
}

// Enemies returns the tracked population in id order. The slice is owned by
// the simulation and only valid until the next Tick.
func (s *Simulation) Enemies() []*Enemy { return s.enemies }

// LiveCount is the number of tracked entities, including those still
// playing their death animation.
func (s *Simulation) LiveCount() int { return len(s.enemies) }


// QueryNear returns enemies within radius of point. Results reflect positions
// at the last grid rebuild.
func (s *Simulation) QueryNear(point Vec2, radius float64, filter QueryFilter) []*Enemy {
	return s.grid.Query(point, radius, filter)
}

// QueryNearInto is the allocation-free form of QueryNear.
func (s *Simulation) QueryNearInto(dst []*Enemy, point Vec2, radius float64, filter QueryFilter) []*Enemy {
	return s.grid.QueryInto(dst, point, radius, filter)
}

// RebuildIndex refreshes the spatial grid outside the tick, e.g. right after
// a snapshot was reconciled.
func (s *Simulation) RebuildIndex() {
	s.grid.Rebuild(s.enemies)
}

// ApplyDamage deals a hit and returns the effective damage dealt. Dead or
// departed enemies, invulnerability windows and dodge charges all yield 0, as
// do non-positive or non-finite amounts. The enemy stays tracked; removal
// happens in a later sweep.
func (s *Simulation) ApplyDamage(e *Enemy, amount float64, src DamageSource) float64 {
	if e == nil || !e.Alive() || e.removed || !positiveFinite(amount) {
		return 0
	}
	if e.Invulnerable() {
		return 0
	}
	if e.Dodge > 0 {
		e.Dodge--
		return 0
	}
	effective := amount * (1 - e.EffectiveArmor())
	dealt := 0.0
	if e.Shield != nil && e.Shield.Points > 0 {
		absorbed := effective
		if absorbed > e.Shield.Points {
			absorbed = e.Shield.Points
		}
		e.Shield.Points -= absorbed
		effective -= absorbed
		dealt += absorbed
	}
	dealt += s.drainHealth(e, effective)
	if dealt > 0 {
		e.LastHit = src
		s.listener.OnDamageDealt(src.Type, dealt, src.ID)
	}
	return dealt
}

// drainHealth removes up to amount health and flips the enemy to dead at zero.
func (s *Simulation) drainHealth(e *Enemy, amount float64) float64 {
	if !positiveFinite(amount) {
		return 0
	}
	if amount > e.Health {
		amount = e.Health
	}
	e.Health -= amount
	e.clampHealth()
	if e.Health <= 0 {
		e.Dead = true
	}
	return amount
}

// Heal restores health to a living enemy, clamped to its maximum.
func (s *Simulation) Heal(e *Enemy, amount float64) {
	if e == nil || !e.Alive() || !positiveFinite(amount) {
		return
	}
	e.Health += amount
	e.clampHealth()
}

// ApplySlow slows a living enemy; see StatusEffects.ApplySlow.
func (s *Simulation) ApplySlow(e *Enemy, factor, duration float64) {
	if e != nil && e.Alive() {
		e.Effects.ApplySlow(factor, duration)
	}
}

// ApplyFreeze stops a living enemy for duration.
func (s *Simulation) ApplyFreeze(e *Enemy, duration float64) {
	if e != nil && e.Alive() {
		e.Effects.ApplyFreeze(duration)
	}
}

// ApplyShock stops a living enemy for duration, independently of freeze.
func (s *Simulation) ApplyShock(e *Enemy, duration float64) {
	if e != nil && e.Alive() {
		e.Effects.ApplyShock(duration)
	}
}

// ApplyBurn sets a living enemy on fire.
func (s *Simulation) ApplyBurn(e *Enemy, dps, duration float64, src DamageSource) {
	if e == nil || !e.Alive() || !positiveFinite(dps) || !positiveFinite(duration) {
		return
	}
	if dps >= e.Effects.Burn.DPS || e.Effects.Burn.Remaining <= 0 {
		e.burnSource = src
	}
	e.Effects.ApplyBurn(dps, duration)
}

// ApplyShred adds an armor-shred stack to a living enemy.
func (s *Simulation) ApplyShred(e *Enemy, perStack, duration float64) {
	if e != nil && e.Alive() {
		e.Effects.ApplyShred(perStack, duration)
	}
}

// Tick advances the population by one fixed step.
//
// Order: sweep finished entities (payout fires here, once), rebuild the
// spatial grid, apply auras, advance every live enemy, start death timers for
// anything that died, then admit queued children.
func (s *Simulation) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	s.Now += dt
	s.Ticks++

	if s.cfg.Authoritative {
		s.sweep()
	}
	s.grid.Rebuild(s.enemies)
	s.applyAuras(dt)

	for _, e := range s.enemies {
		if e.ReachedGoal {
			continue
		}
		if e.Dead {
			s.advanceDeath(e, dt)
			continue
		}
		s.advance(e, dt)
		if e.Dead {
			s.advanceDeath(e, 0)
		}
	}

	s.flushPending()
}

func (s *Simulation) advanceDeath(e *Enemy, dt float64) {
	if !e.deathStarted {
		e.deathStarted = true
		e.DeathTimer = s.cfg.DeathDelay
		e.Effects = StatusEffects{}
		if s.cfg.Authoritative {
			s.queueSplit(e)
		}
		return
	}
	e.DeathTimer -= dt
	if e.DeathTimer < 0 {
		e.DeathTimer = 0
	}
}

// sweep removes enemies whose death animation finished or who reached the
// goal, firing the terminal callback exactly once.
func (s *Simulation) sweep() {
	kept := s.enemies[:0]
	for _, e := range s.enemies {
		finished := e.ReachedGoal || (e.Dead && e.deathStarted && e.DeathTimer <= 0)
		if !finished {
			kept = append(kept, e)
			continue
		}
		if !e.processed {
			e.processed = true
			if e.Dead {
				s.listener.OnKilled(e)
			} else {
				s.listener.OnLeaked(e)
			}
		}
		e.removed = true
		delete(s.byID, e.ID)
	}
	clear(s.enemies[len(kept):])
	s.enemies = kept
}

func (s *Simulation) flushPending() {
	if len(s.pending) == 0 {
		return
	}
	queued := s.pending
	s.pending = nil
	for _, p := range queued {
		s.spawn(p, true)
	}
}

// Adopt creates an enemy announced by the host under the host's id, without
// spawn-time callbacks. Used by client reconciliation only.
func (s *Simulation) Adopt(st EntityState) *Enemy {
	if existing := s.byID[st.ID]; existing != nil {
		return existing
	}
	rec, _ := s.species.Get(st.Species)
	e := s.newEnemy(st.ID, pendingSpawn{
		rec:      rec,
		scale:    1,
		lane:     int(st.Lane),
		pos:      Vec2{X: st.X, Y: st.Y},
		waypoint: st.Waypoint,
		distance: st.Distance,
	})
	s.applyState(e, st)
	if st.ID > s.nextID {
		s.nextID = st.ID
	}
	s.insert(e)
	return e
}

// Remove drops an enemy immediately without callbacks. Used by client
// reconciliation when the host no longer reports it.
func (s *Simulation) Remove(id EntityID) bool {
	e := s.byID[id]
	if e == nil {
		return false
	}
	e.removed = true
	delete(s.byID, id)
	i := sort.Search(len(s.enemies), func(i int) bool { return s.enemies[i].ID >= id })
	if i < len(s.enemies) && s.enemies[i] == e {
		copy(s.enemies[i:], s.enemies[i+1:])
		s.enemies[len(s.enemies)-1] = nil
		s.enemies = s.enemies[:len(s.enemies)-1]
	}
	return true
}
