package game

import (
	"errors"
	"fmt"
	"math/rand"
)

var (
	ErrUnknownSpawnTable = errors.New("unknown spawn table")
	ErrNoUnlockedSpecies = errors.New("no species unlocked")
)

// SpawnTable lists the species procedural waves may draw from.
type SpawnTable struct {
	ID          string
	DisplayName string
	Entries     []SpawnEntry
}

// SpawnEntry is one weighted species choice. The entry unlocks at MinWave;
// group size is BaseCount plus Growth per wave number.
type SpawnEntry struct {
	Species   SpeciesID
	Weight    int
	MinWave   int
	BaseCount int
	Growth    float64
	Interval  float64 // seconds between spawns before wave scaling
}

// SpawnTableRegistry holds all spawn tables keyed by identifier.
var SpawnTableRegistry = map[string]SpawnTable{
	"standard": {
		ID:          "standard",
		DisplayName: "Standard Siege",
		Entries: []SpawnEntry{
			{Species: SpeciesGrunt, Weight: 30, MinWave: 1, BaseCount: 8, Growth: 0.6, Interval: 0.8},
			{Species: SpeciesRunner, Weight: 22, MinWave: 1, BaseCount: 8, Growth: 0.7, Interval: 0.5},
			{Species: SpeciesBrute, Weight: 14, MinWave: 3, BaseCount: 3, Growth: 0.25, Interval: 1.8},
			{Species: SpeciesWasp, Weight: 12, MinWave: 4, BaseCount: 4, Growth: 0.35, Interval: 1.1},
			{Species: SpeciesWarden, Weight: 10, MinWave: 6, BaseCount: 3, Growth: 0.25, Interval: 1.6},
			{Species: SpeciesTrickster, Weight: 10, MinWave: 6, BaseCount: 4, Growth: 0.3, Interval: 1.0},
			{Species: SpeciesBurrower, Weight: 9, MinWave: 7, BaseCount: 4, Growth: 0.3, Interval: 1.2},
			{Species: SpeciesWraith, Weight: 8, MinWave: 8, BaseCount: 3, Growth: 0.25, Interval: 1.4},
			{Species: SpeciesMimic, Weight: 7, MinWave: 9, BaseCount: 2, Growth: 0.2, Interval: 1.8},
			{Species: SpeciesBroodmother, Weight: 6, MinWave: 10, BaseCount: 2, Growth: 0.15, Interval: 2.2},
			{Species: SpeciesMender, Weight: 5, MinWave: 11, BaseCount: 2, Growth: 0.12, Interval: 2.0},
			{Species: SpeciesHerald, Weight: 5, MinWave: 12, BaseCount: 2, Growth: 0.12, Interval: 2.0},
		},
	},
}

// SpawnTableByID returns a copy of the registered table.
func SpawnTableByID(id string) (*SpawnTable, error) {
	table, ok := SpawnTableRegistry[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownSpawnTable, id)
	}
	return &table, nil
}

// Select picks a weighted entry unlocked at wave, skipping the previous
// group's species when another choice exists.
func (table *SpawnTable) Select(wave int, previous SpeciesID, hasPrevious bool, rng *rand.Rand) (SpawnEntry, error) {
	if table == nil {
		return SpawnEntry{}, fmt.Errorf("select: %w: nil table", ErrUnknownSpawnTable)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	unlocked := make([]SpawnEntry, 0, len(table.Entries))
	for _, entry := range table.Entries {
		if entry.Weight <= 0 || entry.MinWave > wave {
			continue
		}
		unlocked = append(unlocked, entry)
	}
	if len(unlocked) == 0 {
		return SpawnEntry{}, fmt.Errorf("spawn table %s wave %d: %w", table.ID, wave, ErrNoUnlockedSpecies)
	}

	candidates := unlocked
	if hasPrevious && len(unlocked) > 1 {
		candidates = make([]SpawnEntry, 0, len(unlocked))
		for _, entry := range unlocked {
			if entry.Species != previous {
				candidates = append(candidates, entry)
			}
		}
		if len(candidates) == 0 {
			candidates = unlocked
		}
	}

	totalWeight := 0
	for _, entry := range candidates {
		totalWeight += entry.Weight
	}
	roll := rng.Intn(totalWeight)
	cumulative := 0
	for _, entry := range candidates {
		cumulative += entry.Weight
		if roll < cumulative {
			return entry, nil
		}
	}
	// Unreachable while weights are positive.
	return candidates[0], nil
}
