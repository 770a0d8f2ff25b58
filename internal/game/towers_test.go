package game

import (
	"errors"
	"testing"
)

func placeTower(t *testing.T, ts *Towers, id uint64, kind TowerKind, pos Vec2) *Tower {
	t.Helper()
	tower, err := ts.Place(id, kind, OwnerHost, pos)
	if err != nil {
		t.Fatalf("place %d: %v", kind, err)
	}
	return tower
}

func TestTowerTargetsFurthestAlong(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	behind := sim.Spawn(SpeciesBrute, 1, nil, 0)
	ahead := sim.Spawn(SpeciesRunner, 1, nil, 0)
	for i := 0; i < 10; i++ {
		sim.Tick(Dt)
	}
	ts := NewTowers()
	placeTower(t, ts, 1, TowerArrow, Vec2{X: 40, Y: 130})
	ts.Tick(Dt, sim)
	if ahead.Health == ahead.MaxHealth {
		t.Fatalf("arrow should hit the enemy furthest along the path")
	}
	if behind.Health != behind.MaxHealth {
		t.Fatalf("only one target per shot")
	}
	if ts.Get(1).Dealt != 0 {
		t.Fatalf("damage tallies come from the room listener, not the tower")
	}
}

func TestTeslaChainSkipsHitEnemies(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	var chain []*Enemy
	for i := 0; i < 5; i++ {
		chain = append(chain, sim.Spawn(SpeciesBrute, 1, nil, 0))
	}
	sim.Tick(Dt)
	ts := NewTowers()
	placeTower(t, ts, 1, TowerTesla, Vec2{X: 20, Y: 120})
	ts.Tick(Dt, sim)
	hit := 0
	for _, e := range chain {
		if e.Health < e.MaxHealth {
			hit++
			if e.Effects.Shock <= 0 {
				t.Fatalf("every chained enemy should be shocked")
			}
		}
	}
	if want := 1 + towerSpecs[TowerTesla].ChainJumps; hit != want {
		t.Fatalf("expected %d distinct enemies hit, got %d", want, hit)
	}
}

func TestSniperIgnoresGround(t *testing.T) {
	sim, _ := newTestSim(t, DefaultPaths())
	grunt := sim.Spawn(SpeciesGrunt, 1, nil, 0)
	sim.Tick(Dt)
	ts := NewTowers()
	placeTower(t, ts, 1, TowerSniper, Vec2{X: 100, Y: 200})
	ts.Tick(Dt, sim)
	if grunt.Health != grunt.MaxHealth {
		t.Fatalf("sniper must not shoot ground enemies")
	}
	wasp := sim.Spawn(SpeciesWasp, 1, nil, 0)
	sim.Tick(Dt)
	ts.Tick(Dt, sim)
	if wasp.Health == wasp.MaxHealth {
		t.Fatalf("sniper should hit the flyer")
	}
}

func TestFrostAndAcidApplyStatus(t *testing.T) {
	sim, _ := newTestSim(t, straightPath(5000))
	e := sim.Spawn(SpeciesBrute, 1, nil, 0)
	sim.Tick(Dt)
	ts := NewTowers()
	placeTower(t, ts, 1, TowerFrost, Vec2{X: 10, Y: 140})
	placeTower(t, ts, 2, TowerAcid, Vec2{X: 60, Y: 140})
	ts.Tick(Dt, sim)
	if e.Effects.Slow.Remaining <= 0 || e.Effects.Slow.Factor != towerSpecs[TowerFrost].SlowFactor {
		t.Fatalf("frost should slow: %+v", e.Effects.Slow)
	}
	if e.Effects.Shred.Stacks != 1 {
		t.Fatalf("acid should add a shred stack, got %d", e.Effects.Shred.Stacks)
	}
}

func TestTowerPlacementRules(t *testing.T) {
	ts := NewTowers()
	placeTower(t, ts, 1, TowerArrow, Vec2{X: 100, Y: 100})
	if _, err := ts.Place(2, TowerArrow, OwnerHost, Vec2{X: 110, Y: 100}); !errors.Is(err, ErrTowerBlocked) {
		t.Fatalf("expected blocked placement, got %v", err)
	}
	if _, err := ts.Place(3, TowerArrow, OwnerHost, Vec2{X: -5, Y: 100}); !errors.Is(err, ErrTowerBlocked) {
		t.Fatalf("expected out of bounds error, got %v", err)
	}
	if _, err := ts.Place(4, TowerKind(99), OwnerHost, Vec2{X: 300, Y: 300}); !errors.Is(err, ErrUnknownTowerKind) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
	for i := 1; i < MaxTowerLevel; i++ {
		if _, _, err := ts.Upgrade(1); err != nil {
			t.Fatalf("upgrade %d: %v", i, err)
		}
	}
	if _, _, err := ts.Upgrade(1); !errors.Is(err, ErrTowerMaxLevel) {
		t.Fatalf("expected max level error, got %v", err)
	}
	kind, err := ParseTowerKind(" Tesla ")
	if err != nil || kind != TowerTesla {
		t.Fatalf("parse tesla: %v %v", kind, err)
	}
}
