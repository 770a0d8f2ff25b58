package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnknownTowerKind = errors.New("unknown tower kind")
	ErrUnknownTower     = errors.New("unknown tower")
	ErrTowerBlocked     = errors.New("tower position blocked")
	ErrTowerMaxLevel    = errors.New("tower at max level")
	ErrNotTowerOwner    = errors.New("tower belongs to the other player")
)

// Owner identifies which participant's gold pool pays for something.
type Owner uint8

const (
	OwnerHost Owner = iota
	OwnerClient
)

func (o Owner) String() string {
	if o == OwnerClient {
		return "client"
	}
	return "host"
}

type TowerKind uint8

const (
	TowerArrow TowerKind = iota
	TowerFrost
	TowerFlame
	TowerTesla
	TowerAcid
	TowerSniper

	towerKindCount
)

// TowerSpec is the static definition of a tower kind at level 1.
type TowerSpec struct {
	Name     string
	Cost     int
	Range    float64
	Cooldown float64 // seconds between shots
	Damage   float64
	Flying   FilterMode

	SlowFactor   float64
	SlowDuration float64
	BurnDPS      float64
	BurnDuration float64
	ChainJumps   int
	ChainRange   float64
	ShockTime    float64
	ShredPer     float64
	ShredTime    float64
}

var towerSpecs = [towerKindCount]TowerSpec{
	TowerArrow:  {Name: "arrow", Cost: 50, Range: 140, Cooldown: 0.6, Damage: 18},
	TowerFrost:  {Name: "frost", Cost: 70, Range: 120, Cooldown: 1.0, Damage: 6, SlowFactor: 0.55, SlowDuration: 2},
	TowerFlame:  {Name: "flame", Cost: 80, Range: 110, Cooldown: 1.2, Damage: 4, BurnDPS: 12, BurnDuration: 3, Flying: FilterNever},
	TowerTesla:  {Name: "tesla", Cost: 110, Range: 130, Cooldown: 1.5, Damage: 22, ChainJumps: 3, ChainRange: 90, ShockTime: 0.4},
	TowerAcid:   {Name: "acid", Cost: 90, Range: 120, Cooldown: 1.1, Damage: 8, ShredPer: 0.1, ShredTime: 4},
	TowerSniper: {Name: "sniper", Cost: 120, Range: 320, Cooldown: 2.2, Damage: 90, Flying: FilterOnly},
}

const (
	MaxTowerLevel   = 3
	TowerSpacing    = 28.0
	SellRefundRatio = 0.7
)

// TowerSpecFor returns the definition of kind.
func TowerSpecFor(kind TowerKind) (TowerSpec, error) {
	if kind >= towerKindCount {
		return TowerSpec{}, fmt.Errorf("%w: %d", ErrUnknownTowerKind, kind)
	}
	return towerSpecs[kind], nil
}

// ParseTowerKind resolves a tower kind by name.
func ParseTowerKind(name string) (TowerKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, spec := range towerSpecs {
		if spec.Name == name {
			return TowerKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTowerKind, name)
}

// UpgradeCost is the price of raising a tower from level to level+1.
func UpgradeCost(kind TowerKind, level int) int {
	spec, err := TowerSpecFor(kind)
	if err != nil {
		return 0
	}
	return spec.Cost * (level + 1) * 3 / 4
}

// Tower is a placed defensive structure. Its ID is the id of the action that
// placed it, so both peers agree on it without a round trip.
type Tower struct {
	ID       uint64
	Kind     TowerKind
	Owner    Owner
	Pos      Vec2
	Level    int
	Invested int

	cooldown float64
	Dealt    float64 // damage dealt during the current wave
	Kills    int
}

func (t *Tower) scaled() TowerSpec {
	spec := towerSpecs[t.Kind]
	for l := 1; l < t.Level; l++ {
		spec.Damage *= 1.35
		spec.Range *= 1.1
		spec.BurnDPS *= 1.3
		spec.ShredPer += 0.03
		spec.ChainJumps++
	}
	return spec
}

func (t *Tower) source() DamageSource {
	return DamageSource{Type: towerSpecs[t.Kind].Name, ID: EntityID(t.ID)}
}

// Towers is the set of placed towers.
type Towers struct {
	byID  map[uint64]*Tower
	order []uint64

	scratch []*Enemy
	hit     map[EntityID]struct{}
}

func NewTowers() *Towers {
	return &Towers{byID: make(map[uint64]*Tower), hit: make(map[EntityID]struct{})}
}

// Get returns a tower by id.
func (ts *Towers) Get(id uint64) *Tower { return ts.byID[id] }

// Len returns the number of towers.
func (ts *Towers) Len() int { return len(ts.order) }

// CanPlace checks bounds and spacing.
func (ts *Towers) CanPlace(pos Vec2) error {
	if pos.X < 0 || pos.Y < 0 || pos.X > WorldW || pos.Y > WorldH {
		return fmt.Errorf("%w: out of bounds", ErrTowerBlocked)
	}
	for _, t := range ts.byID {
		if t.Pos.DistSq(pos) < TowerSpacing*TowerSpacing {
			return fmt.Errorf("%w: too close to tower %d", ErrTowerBlocked, t.ID)
		}
	}
	return nil
}

// Place validates the position and adds a level-1 tower. Gold is the
// caller's concern.
func (ts *Towers) Place(id uint64, kind TowerKind, owner Owner, pos Vec2) (*Tower, error) {
	if err := ts.CanPlace(pos); err != nil {
		return nil, err
	}
	return ts.Insert(id, kind, owner, pos)
}

// Insert adds a tower without position checks. Clients use it for
// placements the host already validated.
func (ts *Towers) Insert(id uint64, kind TowerKind, owner Owner, pos Vec2) (*Tower, error) {
	spec, err := TowerSpecFor(kind)
	if err != nil {
		return nil, err
	}
	if _, exists := ts.byID[id]; exists {
		return nil, fmt.Errorf("%w: duplicate id %d", ErrTowerBlocked, id)
	}
	t := &Tower{ID: id, Kind: kind, Owner: owner, Pos: pos, Level: 1, Invested: spec.Cost}
	ts.byID[id] = t
	ts.order = append(ts.order, id)
	return t, nil
}

// Remove deletes a tower and returns the gold refund.
func (ts *Towers) Remove(id uint64) (*Tower, int, error) {
	t := ts.byID[id]
	if t == nil {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownTower, id)
	}
	delete(ts.byID, id)
	for i, oid := range ts.order {
		if oid == id {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			break
		}
	}
	return t, int(float64(t.Invested) * SellRefundRatio), nil
}

// Upgrade raises a tower's level and returns the cost paid.
func (ts *Towers) Upgrade(id uint64) (*Tower, int, error) {
	t := ts.byID[id]
	if t == nil {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownTower, id)
	}
	if t.Level >= MaxTowerLevel {
		return t, 0, ErrTowerMaxLevel
	}
	cost := UpgradeCost(t.Kind, t.Level)
	t.Level++
	t.Invested += cost
	return t, cost, nil
}

// RecordDamage credits damage to a tower's per-wave tally.
func (ts *Towers) RecordDamage(id EntityID, amount float64) {
	if t := ts.byID[uint64(id)]; t != nil {
		t.Dealt += amount
	}
}

// ResetStats clears per-wave tallies.
func (ts *Towers) ResetStats() {
	for _, t := range ts.byID {
		t.Dealt = 0
		t.Kills = 0
	}
}

// Tick fires every ready tower at the furthest-along enemy in range.
func (ts *Towers) Tick(dt float64, sim *Simulation) {
	for _, id := range ts.order {
		t := ts.byID[id]
		t.cooldown -= dt
		if t.cooldown > 0 {
			continue
		}
		spec := t.scaled()
		filter := QueryFilter{Flying: spec.Flying, Burrowed: FilterNever}
		ts.scratch = sim.QueryNearInto(ts.scratch[:0], t.Pos, spec.Range, filter)
		target := furthestAlong(ts.scratch)
		if target == nil {
			t.cooldown = 0
			continue
		}
		ts.fire(t, spec, target, sim)
		t.cooldown = spec.Cooldown
	}
	clear(ts.scratch)
	ts.scratch = ts.scratch[:0]
}

// furthestAlong picks the enemy with the greatest path distance, breaking ties
// by lower id so the choice is deterministic.
func furthestAlong(candidates []*Enemy) *Enemy {
	var best *Enemy
	for _, e := range candidates {
		if !e.Alive() {
			continue
		}
		if best == nil || e.Distance > best.Distance || (e.Distance == best.Distance && e.ID < best.ID) {
			best = e
		}
	}
	return best
}

func (ts *Towers) fire(t *Tower, spec TowerSpec, target *Enemy, sim *Simulation) {
	src := t.source()
	ts.strike(t, spec, target, sim, src)
	if spec.ChainJumps <= 0 {
		return
	}
	clear(ts.hit)
	ts.hit[target.ID] = struct{}{}
	filter := QueryFilter{Flying: spec.Flying, Burrowed: FilterNever, Exclude: ts.hit}
	from := target.Pos
	for jump := 0; jump < spec.ChainJumps; jump++ {
		near := sim.QueryNear(from, spec.ChainRange, filter)
		if len(near) == 0 {
			return
		}
		sort.Slice(near, func(i, j int) bool {
			di, dj := near[i].Pos.DistSq(from), near[j].Pos.DistSq(from)
			if di != dj {
				return di < dj
			}
			return near[i].ID < near[j].ID
		})
		next := near[0]
		ts.hit[next.ID] = struct{}{}
		ts.strike(t, spec, next, sim, src)
		from = next.Pos
	}
}

func (ts *Towers) strike(t *Tower, spec TowerSpec, e *Enemy, sim *Simulation, src DamageSource) {
	sim.ApplyDamage(e, spec.Damage, src)
	if spec.SlowDuration > 0 {
		sim.ApplySlow(e, spec.SlowFactor, spec.SlowDuration)
	}
	if spec.BurnDuration > 0 {
		sim.ApplyBurn(e, spec.BurnDPS, spec.BurnDuration, src)
	}
	if spec.ShockTime > 0 {
		sim.ApplyShock(e, spec.ShockTime)
	}
	if spec.ShredTime > 0 {
		sim.ApplyShred(e, spec.ShredPer, spec.ShredTime)
	}
	if e.Dead {
		t.Kills++
	}
}
