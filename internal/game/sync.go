package game

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrStaleSnapshot  = errors.New("stale snapshot")
	ErrUnknownSpecies = errors.New("unknown species index")
)

// EntityState is the networked view of one enemy. Cosmetic status effects
// are never transmitted.
type EntityState struct {
	ID        EntityID  `msgpack:"id"`
	X         float64   `msgpack:"x"`
	Y         float64   `msgpack:"y"`
	Health    float64   `msgpack:"hp"`
	MaxHealth float64   `msgpack:"max_hp"`
	Species   SpeciesID `msgpack:"species"`
	Alive     bool      `msgpack:"alive"`
	Waypoint  int       `msgpack:"waypoint"`
	Distance  float64   `msgpack:"distance"`
	Flying    bool      `msgpack:"flying"`
	Lane      uint8     `msgpack:"lane"`
}

// WorldState is the scalar game state the host owns.
type WorldState struct {
	GoldHost   int  `msgpack:"gold_host"`
	GoldClient int  `msgpack:"gold_client"`
	Lives      int  `msgpack:"lives"`
	Wave       int  `msgpack:"wave"`
	Score      int  `msgpack:"score"`
	Spawning   bool `msgpack:"spawning"`
}

// Gold returns the pool owned by o.
func (w *WorldState) Gold(o Owner) int {
	if o == OwnerClient {
		return w.GoldClient
	}
	return w.GoldHost
}

// AddGold changes the pool owned by o.
func (w *WorldState) AddGold(o Owner, delta int) {
	if o == OwnerClient {
		w.GoldClient += delta
		return
	}
	w.GoldHost += delta
}

// Snapshot is one host to client state push. Entity order carries no meaning.
type Snapshot struct {
	Seq      uint64        `msgpack:"seq"`
	Time     float64       `msgpack:"time"`
	Entities []EntityState `msgpack:"entities"`
	World    WorldState    `msgpack:"world"`
}

// StateOf captures the networked fields of e.
func StateOf(e *Enemy) EntityState {
	return EntityState{
		ID:        e.ID,
		X:         e.Pos.X,
		Y:         e.Pos.Y,
		Health:    e.Health,
		MaxHealth: e.MaxHealth,
		Species:   e.Species,
		Alive:     e.Alive(),
		Waypoint:  e.Waypoint,
		Distance:  e.Distance,
		Flying:    e.Flying(),
		Lane:      uint8(e.PathIndex),
	}
}

// SnapshotPublisher stamps outgoing snapshots with a strictly increasing
// sequence number.
type SnapshotPublisher struct {
	seq uint64
}

// Publish captures sim and world into a new snapshot.
func (p *SnapshotPublisher) Publish(now float64, sim *Simulation, world WorldState) Snapshot {
	p.seq++
	enemies := sim.Enemies()
	snap := Snapshot{
		Seq:      p.seq,
		Time:     now,
		Entities: make([]EntityState, 0, len(enemies)),
		World:    world,
	}
	for _, e := range enemies {
		snap.Entities = append(snap.Entities, StateOf(e))
	}
	return snap
}

// ReconcileResult summarises one applied snapshot.
type ReconcileResult struct {
	Updated int
	Created int
	Removed int
}

// Reconciler applies host snapshots to a client simulation by entity-id set
// comparison: update in place, adopt remote-only, remove local-only.
type Reconciler struct {
	sim     *Simulation
	logger  *slog.Logger
	lastSeq uint64
	hasSeq  bool

	seen map[EntityID]struct{}
	gone []EntityID

	// OnDiscard is called with a reason whenever a snapshot is dropped.
	OnDiscard func(reason string)
}

func NewReconciler(sim *Simulation, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{sim: sim, logger: logger, seen: make(map[EntityID]struct{})}
}

// LastSeq returns the sequence number of the last applied snapshot.
func (r *Reconciler) LastSeq() uint64 { return r.lastSeq }

func (r *Reconciler) discard(reason string) {
	if r.OnDiscard != nil {
		r.OnDiscard(reason)
	}
}

// Apply reconciles snap into the simulation. Snapshots that are not newer
// than the last applied one are rejected with ErrStaleSnapshot, and snapshots
// naming an unknown species with ErrUnknownSpecies. Either way nothing
// changes.
func (r *Reconciler) Apply(snap Snapshot) (ReconcileResult, error) {
	var res ReconcileResult
	if r.hasSeq && snap.Seq <= r.lastSeq {
		r.logger.Warn("discarding out-of-order snapshot", "seq", snap.Seq, "last", r.lastSeq)
		r.discard("stale")
		return res, ErrStaleSnapshot
	}
	for _, st := range snap.Entities {
		if !r.sim.species.Valid(st.Species) {
			r.logger.Warn("discarding snapshot with unknown species", "seq", snap.Seq, "id", st.ID, "species", int(st.Species))
			r.discard("unknown_species")
			return res, fmt.Errorf("snapshot %d entity %d: %w %d", snap.Seq, st.ID, ErrUnknownSpecies, st.Species)
		}
	}
	r.lastSeq = snap.Seq
	r.hasSeq = true

	clear(r.seen)
	for _, st := range snap.Entities {
		r.seen[st.ID] = struct{}{}
		e := r.sim.Enemy(st.ID)
		if e != nil {
			r.sim.applyState(e, st)
			res.Updated++
		} else {
			e = r.sim.Adopt(st)
			res.Created++
		}
		if e.Interp == nil {
			e.Interp = newHistory(HistoryKeepS, SnapshotHz)
		}
		e.Interp.push(Sample{T: snap.Time, Pos: e.Pos})
	}

	r.gone = r.gone[:0]
	for _, e := range r.sim.Enemies() {
		if _, ok := r.seen[e.ID]; !ok {
			r.gone = append(r.gone, e.ID)
		}
	}
	for _, id := range r.gone {
		if r.sim.Remove(id) {
			res.Removed++
		}
	}
	r.sim.RebuildIndex()
	return res, nil
}

// applyState overwrites the authoritative fields of e from the host view.
func (s *Simulation) applyState(e *Enemy, st EntityState) {
	if int(st.Lane) != e.PathIndex {
		e.Path, e.PathIndex = s.lane(int(st.Lane))
	}
	e.Pos = Vec2{X: st.X, Y: st.Y}
	e.MaxHealth = st.MaxHealth
	e.Health = st.Health
	e.clampHealth()
	e.Waypoint = st.Waypoint
	e.Distance = st.Distance
	if !st.Alive && !e.Dead && !e.ReachedGoal {
		// Only a leaked enemy has a cursor past the last waypoint.
		if st.Waypoint >= e.Path.Len() {
			e.ReachedGoal = true
		} else {
			e.Dead = true
			e.deathStarted = true
			e.DeathTimer = s.cfg.DeathDelay
		}
		e.Effects = StatusEffects{}
	}

	switch {
	case st.Flying && (!e.Flying() || e.Flight.LandIndex != st.Waypoint):
		rec, _ := s.species.Get(e.Species)
		f := &Flight{From: e.Pos, FromDistance: e.Distance, LandIndex: st.Waypoint}
		if rec.Flight != nil {
			f.Amplitude = rec.Flight.Amplitude
			f.Waves = rec.Flight.Waves
		}
		e.Flight = f
	case !st.Flying && e.Flying():
		e.Flight.Landed = true
	}
}
