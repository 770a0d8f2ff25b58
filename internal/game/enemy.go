package game

type EntityID int64

// Shield absorbs post-armor damage before health.
type Shield struct {
	Points float64
	Max    float64
}

// Cycle tracks a periodic window (invulnerability, burrowing).
type Cycle struct {
	Spec   CycleSpec
	Clock  float64
	Active bool
}

func (c *Cycle) advance(dt float64) {
	if c.Spec.Period <= 0 {
		c.Active = false
		return
	}
	c.Clock += dt
	for c.Clock >= c.Spec.Period {
		c.Clock -= c.Spec.Period
	}
	c.Active = c.Clock >= c.Spec.Period-c.Spec.Window
}

// Flight is the curved approach of a flying enemy from its launch point to a
// landing waypoint, after which it walks the path normally.
type Flight struct {
	From         Vec2
	FromDistance float64
	LandIndex    int
	Amplitude    float64
	Waves        float64
	Progress     float64 // travelled distance along the straight chord
	Landed       bool
}

// Split spawns children when the carrier dies.
type Split struct {
	Spec SplitSpec
}

// Clone spawns one half-health copy the first time health drops to half.
type Clone struct {
	AlreadySplit bool
}

// Enemy is one hostile entity. Optional capabilities are nil when the
// species does not have them.
type Enemy struct {
	ID        EntityID
	Species   SpeciesID
	Health    float64
	MaxHealth float64
	Pos       Vec2
	Path      *Path
	PathIndex int // variant index into the simulation's path set
	Waypoint  int // next waypoint to walk towards
	Distance  float64
	BaseSpeed float64
	Armor     float64
	Radius    float64
	Reward    int
	Boss      bool

	Effects StatusEffects

	Shield    *Shield
	Invuln    *Cycle
	Flight    *Flight
	Dodge     int
	Split     *Split
	Clone     *Clone
	HealAura  *AuraSpec
	HasteAura *AuraSpec
	Burrow    *Cycle

	Dead        bool
	ReachedGoal bool
	DeathTimer  float64
	LastHit     DamageSource

	deathStarted bool
	processed    bool
	removed      bool

	scale      float64
	mod        *WaveModifier
	burnSource DamageSource

	// Interp holds client-side interpolation samples. Host enemies leave it nil.
	Interp *History
}

// Alive reports whether the enemy is neither dead nor at the goal.
func (e *Enemy) Alive() bool {
	return !e.Dead && !e.ReachedGoal
}

// Dying reports whether the enemy is playing its death animation.
func (e *Enemy) Dying() bool {
	return e.Dead && !e.removed
}

// Flying reports whether the enemy is still airborne.
func (e *Enemy) Flying() bool {
	return e.Flight != nil && !e.Flight.Landed
}

// Burrowed reports whether the enemy is currently underground.
func (e *Enemy) Burrowed() bool {
	return e.Burrow != nil && e.Burrow.Active
}

// Invulnerable reports whether the periodic invulnerability window is open.
func (e *Enemy) Invulnerable() bool {
	return e.Invuln != nil && e.Invuln.Active
}

// EffectiveArmor is base armor minus shred, floored at zero.
func (e *Enemy) EffectiveArmor() float64 {
	a := e.Armor - e.Effects.ArmorReduction()
	if a < 0 {
		return 0
	}
	return a
}

func (e *Enemy) clampHealth() {
	if e.MaxHealth < 1 {
		e.MaxHealth = 1
	}
	e.Health = Clamp(e.Health, 0, e.MaxHealth)
}
