package game

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSelectRespectsUnlockWave(t *testing.T) {
	table, err := SpawnTableByID("standard")
	if err != nil {
		t.Fatalf("expected spawn table, got error: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		entry, err := table.Select(1, 0, false, rng)
		if err != nil {
			t.Fatalf("unexpected error selecting species: %v", err)
		}
		if entry.MinWave > 1 {
			t.Fatalf("wave 1 drew %d which unlocks at wave %d", entry.Species, entry.MinWave)
		}
	}
}

func TestSelectNeverRepeatsPrevious(t *testing.T) {
	table, err := SpawnTableByID("standard")
	if err != nil {
		t.Fatalf("expected spawn table, got error: %v", err)
	}
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		entry, err := table.Select(20, SpeciesGrunt, true, rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Species == SpeciesGrunt {
			t.Fatalf("selection repeated the previous species")
		}
	}
}

func TestSelectSingleCandidateFallsBack(t *testing.T) {
	table := &SpawnTable{ID: "solo", Entries: []SpawnEntry{{Species: SpeciesRunner, Weight: 1, MinWave: 1}}}
	entry, err := table.Select(1, SpeciesRunner, true, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Species != SpeciesRunner {
		t.Fatalf("expected the only entry, got %d", entry.Species)
	}
}

func TestSelectErrors(t *testing.T) {
	for _, id := range []string{"", "missing"} {
		if _, err := SpawnTableByID(id); !errors.Is(err, ErrUnknownSpawnTable) {
			t.Fatalf("table %q: expected ErrUnknownSpawnTable, got %v", id, err)
		}
	}
	empty := &SpawnTable{ID: "late", Entries: []SpawnEntry{{Species: SpeciesBrute, Weight: 5, MinWave: 10}}}
	if _, err := empty.Select(2, 0, false, nil); !errors.Is(err, ErrNoUnlockedSpecies) {
		t.Fatalf("expected ErrNoUnlockedSpecies, got %v", err)
	}
	var nilTable *SpawnTable
	if _, err := nilTable.Select(1, 0, false, nil); !errors.Is(err, ErrUnknownSpawnTable) {
		t.Fatalf("expected ErrUnknownSpawnTable for nil table, got %v", err)
	}
}
