package game

import (
	"math"
	"math/rand"
	"testing"
)

type recordingListener struct {
	spawned []EntityID
	killed  []EntityID
	leaked  []EntityID
	damage  float64
}

func (l *recordingListener) OnSpawn(e *Enemy)  { l.spawned = append(l.spawned, e.ID) }
func (l *recordingListener) OnKilled(e *Enemy) { l.killed = append(l.killed, e.ID) }
func (l *recordingListener) OnLeaked(e *Enemy) { l.leaked = append(l.leaked, e.ID) }
func (l *recordingListener) OnDamageDealt(_ string, amount float64, _ EntityID) {
	l.damage += amount
}

func straightPath(length float64) []*Path {
	return []*Path{NewPath([]Vec2{{X: 0, Y: 100}, {X: length, Y: 100}})}
}

func newTestSim(t *testing.T, paths []*Path) (*Simulation, *recordingListener) {
	t.Helper()
	l := &recordingListener{}
	sim := NewSimulation(DefaultSimConfig(), NewSpeciesTable(nil, nil), paths, l, rand.New(rand.NewSource(42)), nil)
	return sim, l
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestHealthStaysClamped(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	rng := rand.New(rand.NewSource(9))
	var enemies []*Enemy
	for i := 0; i < 20; i++ {
		e := sim.Spawn(SpeciesID(rng.Intn(int(speciesCount))), 1+rng.Float64(), nil, 0)
		if e == nil {
			t.Fatalf("spawn %d returned nil", i)
		}
		enemies = append(enemies, e)
	}
	for step := 0; step < 400; step++ {
		e := enemies[rng.Intn(len(enemies))]
		switch rng.Intn(5) {
		case 0:
			sim.ApplyDamage(e, rng.Float64()*300, DamageSource{Type: "test"})
		case 1:
			sim.Heal(e, rng.Float64()*500)
		case 2:
			sim.ApplyBurn(e, rng.Float64()*80, rng.Float64()*3, DamageSource{})
		case 3:
			sim.ApplyShred(e, rng.Float64()*0.4, 2)
		case 4:
			sim.ApplyDamage(e, -rng.Float64()*100, DamageSource{})
		}
		sim.Tick(Dt)
		for _, e := range sim.Enemies() {
			if e.Health < 0 || e.Health > e.MaxHealth {
				t.Fatalf("enemy %d health %.3f outside [0, %.3f]", e.ID, e.Health, e.MaxHealth)
			}
		}
	}
}

func TestNonFiniteInputsAreIgnored(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	tests := []struct {
		name  string
		apply func(sim *Simulation, e *Enemy)
	}{
		{"damage NaN", func(sim *Simulation, e *Enemy) { sim.ApplyDamage(e, nan, DamageSource{}) }},
		{"damage +Inf", func(sim *Simulation, e *Enemy) { sim.ApplyDamage(e, inf, DamageSource{}) }},
		{"damage -Inf", func(sim *Simulation, e *Enemy) { sim.ApplyDamage(e, -inf, DamageSource{}) }},
		{"heal NaN", func(sim *Simulation, e *Enemy) { sim.Heal(e, nan) }},
		{"heal +Inf", func(sim *Simulation, e *Enemy) { sim.Heal(e, inf) }},
		{"slow NaN factor", func(sim *Simulation, e *Enemy) { sim.ApplySlow(e, nan, 2) }},
		{"slow NaN duration", func(sim *Simulation, e *Enemy) { sim.ApplySlow(e, 0.5, nan) }},
		{"slow +Inf duration", func(sim *Simulation, e *Enemy) { sim.ApplySlow(e, 0.5, inf) }},
		{"freeze +Inf", func(sim *Simulation, e *Enemy) { sim.ApplyFreeze(e, inf) }},
		{"shock NaN", func(sim *Simulation, e *Enemy) { sim.ApplyShock(e, nan) }},
		{"burn NaN dps", func(sim *Simulation, e *Enemy) { sim.ApplyBurn(e, nan, 2, DamageSource{}) }},
		{"burn +Inf dps", func(sim *Simulation, e *Enemy) { sim.ApplyBurn(e, inf, 2, DamageSource{}) }},
		{"shred NaN", func(sim *Simulation, e *Enemy) { sim.ApplyShred(e, nan, 2) }},
		{"shred -Inf duration", func(sim *Simulation, e *Enemy) { sim.ApplyShred(e, 0.1, -inf) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, _ := newTestSim(t, straightPath(5000))
			e := sim.Spawn(SpeciesGrunt, 1, nil, 0)
			sim.ApplyDamage(e, 10, DamageSource{})
			health, pos, effects := e.Health, e.Pos, e.Effects

			tt.apply(sim, e)
			if e.Health != health || e.Effects != effects {
				t.Fatalf("invalid input changed enemy: health %v -> %v, effects %+v", health, e.Health, e.Effects)
			}
			sim.Tick(Dt)
			if math.IsNaN(e.Health) || e.Health < 0 || e.Health > e.MaxHealth || !e.Alive() {
				t.Fatalf("health %v outside [0, %v]", e.Health, e.MaxHealth)
			}
			if math.IsNaN(e.Pos.X) || math.IsNaN(e.Pos.Y) || e.Pos.X <= pos.X {
				t.Fatalf("enemy should keep walking normally, pos %+v", e.Pos)
			}
		})
	}
}

func TestSpawnIgnoresNaNHealthScale(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesGrunt, math.NaN(), nil, 0)
	rec, _ := sim.Species().Get(SpeciesGrunt)
	if e == nil || e.MaxHealth != rec.Health || e.Health != rec.Health {
		t.Fatalf("NaN scale should fall back to 1")
	}
}

func TestTerminalStateRemovedOnce(t *testing.T) {
	sim, l := newTestSim(t, straightPath(60))
	victim := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	leaker := sim.Spawn(SpeciesRunner, 1, nil, 0)

	dealt := sim.ApplyDamage(victim, 1e6, DamageSource{Type: "test"})
	if dealt != victim.MaxHealth {
		t.Fatalf("expected damage capped at max health %.1f, got %.1f", victim.MaxHealth, dealt)
	}
	if !victim.Dead || sim.Enemy(victim.ID) == nil {
		t.Fatalf("killed enemy must stay tracked until a later sweep")
	}
	if again := sim.ApplyDamage(victim, 50, DamageSource{}); again != 0 {
		t.Fatalf("damage to a dead enemy should be a no-op, got %.1f", again)
	}

	for i := 0; i < 100; i++ {
		sim.Tick(Dt)
		if victim.Dead && victim.ReachedGoal {
			t.Fatalf("dead and reached-goal are exclusive")
		}
	}
	if len(l.killed) != 1 || l.killed[0] != victim.ID {
		t.Fatalf("expected exactly one kill callback for %d, got %v", victim.ID, l.killed)
	}
	if len(l.leaked) != 1 || l.leaked[0] != leaker.ID {
		t.Fatalf("expected exactly one leak callback for %d, got %v", leaker.ID, l.leaked)
	}
	if sim.LiveCount() != 0 {
		t.Fatalf("expected empty population, got %d", sim.LiveCount())
	}
	if sim.Enemy(victim.ID) != nil || sim.Enemy(leaker.ID) != nil {
		t.Fatalf("removed enemies must not be found by id")
	}
}

func TestDeathRemovalWaitsForDelay(t *testing.T) {
	sim, l := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.ApplyDamage(e, 1000, DamageSource{})
	ticks := 0
	for sim.LiveCount() > 0 {
		sim.Tick(Dt)
		ticks++
		if ticks > 100 {
			t.Fatalf("dead enemy never removed")
		}
	}
	minTicks := int(DeathDelay/Dt) + 1
	if ticks < minTicks {
		t.Fatalf("removed after %d ticks, expected at least %d", ticks, minTicks)
	}
	if len(l.killed) != 1 {
		t.Fatalf("expected one kill, got %d", len(l.killed))
	}
}

func TestSlowMergeOrderIndependent(t *testing.T) {
	tests := []struct {
		name  string
		first [2]float64
		next  [2]float64
	}{
		{name: "strong then weak", first: [2]float64{0.4, 2}, next: [2]float64{0.8, 1}},
		{name: "weak then strong", first: [2]float64{0.8, 1}, next: [2]float64{0.4, 2}},
		{name: "strong short weak long", first: [2]float64{0.3, 0.5}, next: [2]float64{0.9, 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var a, b StatusEffects
			a.ApplySlow(tc.first[0], tc.first[1])
			a.ApplySlow(tc.next[0], tc.next[1])
			b.ApplySlow(tc.next[0], tc.next[1])
			b.ApplySlow(tc.first[0], tc.first[1])
			if a.Slow != b.Slow {
				t.Fatalf("merge depends on order: %+v vs %+v", a.Slow, b.Slow)
			}
			wantFactor := math.Min(tc.first[0], tc.next[0])
			wantDur := math.Max(tc.first[1], tc.next[1])
			if a.Slow.Factor != wantFactor || a.Slow.Remaining != wantDur {
				t.Fatalf("expected factor %.2f for %.2fs, got %+v", wantFactor, wantDur, a.Slow)
			}
		})
	}
}

func TestWeakerEffectsNeverOverwrite(t *testing.T) {
	var s StatusEffects
	s.ApplyBurn(20, 3)
	s.ApplyBurn(5, 1)
	if s.Burn.DPS != 20 || s.Burn.Remaining != 3 {
		t.Fatalf("weaker burn overwrote stronger one: %+v", s.Burn)
	}
	s.ApplyFreeze(2)
	s.ApplyFreeze(0.5)
	if s.Freeze != 2 {
		t.Fatalf("shorter freeze shortened active freeze: %.2f", s.Freeze)
	}
	for i := 0; i < 5; i++ {
		s.ApplyShred(0.05, 2)
	}
	if s.Shred.Stacks != MaxShredStacks {
		t.Fatalf("expected shred capped at %d stacks, got %d", MaxShredStacks, s.Shred.Stacks)
	}
}

func TestFreezeAndShockGateMovement(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.ApplyFreeze(e, 0.5)
	sim.ApplyShock(e, 1.0)
	start := e.Pos
	for i := 0; i < 10; i++ {
		sim.Tick(Dt)
	}
	if e.Pos != start {
		t.Fatalf("frozen and shocked enemy moved from %+v to %+v", start, e.Pos)
	}
	for i := 0; i < 20; i++ {
		sim.Tick(Dt)
	}
	if e.Pos == start {
		t.Fatalf("enemy should move once freeze and shock expire")
	}
}

func TestSlowScalesMovement(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	fast := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	slow := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.ApplySlow(slow, 0.5, 10)
	for i := 0; i < 20; i++ {
		sim.Tick(Dt)
	}
	if !approx(slow.Distance*2, fast.Distance) {
		t.Fatalf("expected slowed enemy at half distance: fast %.3f slow %.3f", fast.Distance, slow.Distance)
	}
}

func TestArmorAndShred(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	brute := sim.Spawn(SpeciesBrute, 1, nil, 0)
	if brute.Armor != 0.27 {
		t.Fatalf("expected brute armor 0.27, got %.2f", brute.Armor)
	}
	dealt := sim.ApplyDamage(brute, 100, DamageSource{})
	if !approx(dealt, 73) {
		t.Fatalf("expected 73 effective damage, got %.4f", dealt)
	}

	other := sim.Spawn(SpeciesBrute, 1, nil, 0)
	sim.ApplyShred(other, 0.1, 5)
	sim.ApplyShred(other, 0.1, 5)
	if !approx(other.EffectiveArmor(), 0.07) {
		t.Fatalf("expected effective armor 0.07, got %.4f", other.EffectiveArmor())
	}
	dealt = sim.ApplyDamage(other, 100, DamageSource{})
	if !approx(dealt, 93) {
		t.Fatalf("expected 93 effective damage with two shred stacks, got %.4f", dealt)
	}

	third := sim.Spawn(SpeciesBrute, 1, nil, 0)
	for i := 0; i < 3; i++ {
		sim.ApplyShred(third, 0.2, 5)
	}
	if third.EffectiveArmor() != 0 {
		t.Fatalf("armor must floor at zero, got %.4f", third.EffectiveArmor())
	}
}

func TestShieldAbsorbsFirst(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	w := sim.Spawn(SpeciesWarden, 1, nil, 0)
	eff := 1 - w.Armor
	dealt := sim.ApplyDamage(w, 50, DamageSource{})
	if w.Health != w.MaxHealth {
		t.Fatalf("health should be untouched while shield holds, got %.2f", w.Health)
	}
	if !approx(w.Shield.Points, w.Shield.Max-50*eff) || !approx(dealt, 50*eff) {
		t.Fatalf("unexpected shield state %+v after dealing %.2f", *w.Shield, dealt)
	}
	sim.ApplyDamage(w, 200, DamageSource{})
	if w.Shield.Points != 0 || w.Health >= w.MaxHealth {
		t.Fatalf("overflow should break the shield and hit health: shield %.2f health %.2f", w.Shield.Points, w.Health)
	}
}

func TestBurnBypassesArmorAndShield(t *testing.T) {
	sim, l := newTestSim(t, straightPath(5000))
	w := sim.Spawn(SpeciesWarden, 1, nil, 0)
	sim.ApplyBurn(w, 10, 1, DamageSource{Type: "flame", ID: 7})
	for i := 0; i < 20; i++ {
		sim.Tick(Dt)
	}
	if !approx(w.MaxHealth-w.Health, 10) {
		t.Fatalf("expected 10 burn damage straight to health, lost %.4f", w.MaxHealth-w.Health)
	}
	if w.Shield.Points != w.Shield.Max {
		t.Fatalf("burn must not touch the shield")
	}
	if !approx(l.damage, 10) || w.LastHit.ID != 7 {
		t.Fatalf("burn damage should be attributed: total %.3f last hit %+v", l.damage, w.LastHit)
	}
}

func TestDodgeConsumesCharges(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesTrickster, 1, nil, 0)
	for i := 0; i < 3; i++ {
		if d := sim.ApplyDamage(e, 10, DamageSource{}); d != 0 {
			t.Fatalf("hit %d should be dodged, dealt %.2f", i, d)
		}
	}
	if d := sim.ApplyDamage(e, 10, DamageSource{}); d != 10 {
		t.Fatalf("charges exhausted, expected 10 damage, got %.2f", d)
	}
}

func TestInvulnerabilityWindow(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesWraith, 1, nil, 0)
	spec := e.Invuln.Spec
	for sim.Now < spec.Period-spec.Window/2 {
		sim.Tick(Dt)
	}
	if !e.Invulnerable() {
		t.Fatalf("expected invulnerability window open at %.2fs", sim.Now)
	}
	if d := sim.ApplyDamage(e, 50, DamageSource{}); d != 0 {
		t.Fatalf("invulnerable enemy took %.2f", d)
	}
	for e.Invulnerable() {
		sim.Tick(Dt)
	}
	if d := sim.ApplyDamage(e, 50, DamageSource{}); d != 50 {
		t.Fatalf("expected 50 damage after window closed, got %.2f", d)
	}
}

func TestSplitChildrenSpawnAfterDeath(t *testing.T) {
	sim, l := newTestSim(t, straightPath(5000))
	mother := sim.Spawn(SpeciesBroodmother, 1, nil, 0)
	for i := 0; i < 10; i++ {
		sim.Tick(Dt)
	}
	sim.ApplyDamage(mother, 1e6, DamageSource{})
	if sim.LiveCount() != 1 {
		t.Fatalf("children must not appear inside the damage call")
	}
	sim.Tick(Dt)
	children := 0
	for _, e := range sim.Enemies() {
		if e.Species == SpeciesBroodling {
			children++
			if e.Waypoint != mother.Waypoint {
				t.Fatalf("child should continue from the parent's waypoint")
			}
		}
	}
	if children != 3 {
		t.Fatalf("expected 3 broodlings, got %d", children)
	}
	if len(l.spawned) != 4 {
		t.Fatalf("children should fire spawn callbacks, got %d", len(l.spawned))
	}
}

func TestCloneSplitsOnce(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	mimic := sim.Spawn(SpeciesMimic, 1, nil, 0)
	sim.ApplyDamage(mimic, mimic.MaxHealth*0.6, DamageSource{})
	sim.Tick(Dt)
	sim.Tick(Dt)
	if sim.LiveCount() != 2 {
		t.Fatalf("expected one clone, population %d", sim.LiveCount())
	}
	var clone *Enemy
	for _, e := range sim.Enemies() {
		if e != mimic {
			clone = e
		}
	}
	if !approx(clone.MaxHealth, mimic.MaxHealth/2) || !clone.Clone.AlreadySplit {
		t.Fatalf("clone should have half max health and the split guard set: %+v", clone.Clone)
	}
	sim.ApplyDamage(clone, clone.MaxHealth*0.8, DamageSource{})
	for i := 0; i < 3; i++ {
		sim.Tick(Dt)
	}
	if sim.LiveCount() != 2 {
		t.Fatalf("clone must not clone again, population %d", sim.LiveCount())
	}
}

func TestFlightLandsAndWalks(t *testing.T) {
	sim, _ := newTestSim(t, DefaultPaths())
	wasp := sim.Spawn(SpeciesWasp, 1, nil, 0)
	if !wasp.Flying() {
		t.Fatalf("wasp should start airborne")
	}
	land := wasp.Flight.LandIndex
	offPath := false
	for i := 0; i < 2000 && wasp.Flying(); i++ {
		sim.Tick(Dt)
		if wasp.Flying() && math.Abs(wasp.Pos.Y-150) > 1 && wasp.Pos.X < 400 {
			offPath = true
		}
	}
	if wasp.Flying() {
		t.Fatalf("wasp never landed")
	}
	if wasp.Waypoint != land+1 {
		t.Fatalf("expected walking towards waypoint %d after landing, got %d", land+1, wasp.Waypoint)
	}
	if !offPath {
		t.Fatalf("flight should curve away from the straight chord")
	}
}

func TestFlyingFilter(t *testing.T) {
	sim, _ := newTestSim(t, DefaultPaths())
	wasp := sim.Spawn(SpeciesWasp, 1, nil, 0)
	grunt := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.Tick(Dt)
	ground := sim.QueryNear(grunt.Pos, 200, QueryFilter{Flying: FilterNever})
	for _, e := range ground {
		if e == wasp {
			t.Fatalf("ground-only query returned a flyer")
		}
	}
	air := sim.QueryNear(grunt.Pos, 200, QueryFilter{Flying: FilterOnly})
	if len(air) != 1 || air[0] != wasp {
		t.Fatalf("air-only query should return just the wasp, got %d results", len(air))
	}
}

func TestAurasHealAndHaste(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	mender := sim.Spawn(SpeciesMender, 1, nil, 0)
	hurt := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.ApplyDamage(hurt, 30, DamageSource{})
	before := hurt.Health
	sim.Tick(Dt)
	if hurt.Health <= before {
		t.Fatalf("mender should heal nearby allies")
	}
	_ = mender

	sim2, _ := newTestSim(t, straightPath(5000))
	sim2.Spawn(SpeciesHerald, 1, nil, 0)
	boosted := sim2.Spawn(SpeciesGrunt, 1, nil, 0)
	lone, _ := newTestSim(t, straightPath(5000))
	plain := lone.Spawn(SpeciesGrunt, 1, nil, 0)
	sim2.Tick(Dt)
	lone.Tick(Dt)
	if boosted.Distance <= plain.Distance {
		t.Fatalf("herald haste should speed up allies: %.3f vs %.3f", boosted.Distance, plain.Distance)
	}
}

func TestWaveModifierAppliedAtSpawn(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	mod := ModifierFor("armored")
	e := sim.Spawn(SpeciesGrunt, 2, mod, 0)
	if !approx(e.Armor, 0.15) {
		t.Fatalf("expected bonus armor, got %.3f", e.Armor)
	}
	if e.MaxHealth != DefaultSpecies.Health*2 {
		t.Fatalf("health scale not applied: %.1f", e.MaxHealth)
	}
	regen := sim.Spawn(SpeciesGrunt, 1, ModifierFor("regenerating"), 0)
	sim.ApplyDamage(regen, 20, DamageSource{})
	hp := regen.Health
	sim.Tick(Dt)
	if regen.Health <= hp {
		t.Fatalf("regenerating modifier should restore health")
	}
}

func TestUnknownSpeciesFallsBack(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesID(200), 1, nil, 0)
	if e == nil || e.Species != DefaultSpecies.ID {
		t.Fatalf("unknown species should spawn the default record")
	}
}

func TestPopulationCap(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.MaxPopulation = 3
	sim := NewSimulation(cfg, nil, straightPath(5000), nil, nil, nil)
	for i := 0; i < 3; i++ {
		if sim.Spawn(SpeciesGrunt, 1, nil, 0) == nil {
			t.Fatalf("spawn %d under the cap failed", i)
		}
	}
	if sim.Spawn(SpeciesGrunt, 1, nil, 0) != nil {
		t.Fatalf("spawn over the cap should be a no-op")
	}
}

func TestIDsNeverReused(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(30))
	seen := map[EntityID]bool{}
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			e := sim.Spawn(SpeciesRunner, 1, nil, 0)
			if seen[e.ID] {
				t.Fatalf("id %d reused", e.ID)
			}
			seen[e.ID] = true
		}
		for sim.LiveCount() > 0 {
			sim.Tick(Dt)
		}
	}
}

func TestClientSimulationSkipsHostEffects(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Authoritative = false
	l := &recordingListener{}
	sim := NewSimulation(cfg, nil, straightPath(5000), l, nil, nil)
	mother := sim.Adopt(EntityState{ID: 10, X: 0, Y: 100, Health: 180, MaxHealth: 180, Species: SpeciesBroodmother, Alive: true, Waypoint: 1})
	sim.ApplyDamage(mother, 1e6, DamageSource{})
	for i := 0; i < 40; i++ {
		sim.Tick(Dt)
	}
	if sim.LiveCount() != 1 {
		t.Fatalf("client must neither split nor sweep, population %d", sim.LiveCount())
	}
	if len(l.spawned)+len(l.killed) != 0 {
		t.Fatalf("client simulation fired host-owned callbacks")
	}
}
