package game

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
)

// WaveGroup is a single-species sub-batch produced at a fixed interval after
// an initial delay from the wave start.
type WaveGroup struct {
	Species  SpeciesID `msgpack:"species"`
	Count    int       `msgpack:"count"`
	Interval float64   `msgpack:"interval"`
	Delay    float64   `msgpack:"delay"`
}

// run is the time between the group's first and last spawn.
func (g WaveGroup) run() float64 {
	if g.Count <= 1 {
		return 0
	}
	return float64(g.Count-1) * g.Interval
}

// WaveDefinition is immutable once committed to the scheduler.
type WaveDefinition struct {
	Number      int         `msgpack:"number"`
	Groups      []WaveGroup `msgpack:"groups"`
	Modifier    string      `msgpack:"modifier"`
	Descriptor  string      `msgpack:"descriptor"`
	HealthScale float64     `msgpack:"health_scale"`
}

// Total is the number of enemies the wave produces, excluding split children.
func (d WaveDefinition) Total() int {
	n := 0
	for _, g := range d.Groups {
		n += g.Count
	}
	return n
}

// Equal compares two definitions field by field.
func (d WaveDefinition) Equal(o WaveDefinition) bool {
	if d.Number != o.Number || d.Modifier != o.Modifier || d.Descriptor != o.Descriptor ||
		d.HealthScale != o.HealthScale || len(d.Groups) != len(o.Groups) {
		return false
	}
	for i := range d.Groups {
		if d.Groups[i] != o.Groups[i] {
			return false
		}
	}
	return true
}

// WaveModifiers maps modifier keys to their effect.
var WaveModifiers = map[string]WaveModifier{
	"armored":      {Key: "armored", BonusArmor: 0.15},
	"swift":        {Key: "swift", SpeedMultiplier: 1.2},
	"regenerating": {Key: "regenerating", Regen: 3},
}

var modifierOrder = []string{"armored", "swift", "regenerating"}

// ModifierFor resolves a modifier key. Empty or unknown keys yield nil.
func ModifierFor(key string) *WaveModifier {
	if key == "" {
		return nil
	}
	m, ok := WaveModifiers[key]
	if !ok {
		return nil
	}
	return &m
}

// handAuthoredWaves are the opening waves, indexed by wave number - 1.
var handAuthoredWaves = [][]WaveGroup{
	{
		{Species: SpeciesGrunt, Count: 8, Interval: 0.85, Delay: 0},
	},
	{
		{Species: SpeciesGrunt, Count: 10, Interval: 0.8, Delay: 0},
		{Species: SpeciesRunner, Count: 6, Interval: 0.6, Delay: 4},
	},
	{
		{Species: SpeciesGrunt, Count: 8, Interval: 0.75, Delay: 0},
		{Species: SpeciesBrute, Count: 3, Interval: 2.0, Delay: 3},
		{Species: SpeciesRunner, Count: 8, Interval: 0.5, Delay: 6},
	},
	{
		{Species: SpeciesRunner, Count: 10, Interval: 0.45, Delay: 0},
		{Species: SpeciesWasp, Count: 5, Interval: 1.2, Delay: 3},
		{Species: SpeciesBrute, Count: 3, Interval: 1.8, Delay: 6},
	},
	{
		{Species: SpeciesGrunt, Count: 12, Interval: 0.6, Delay: 0},
		{Species: SpeciesBrute, Count: 4, Interval: 1.6, Delay: 4},
		{Species: SpeciesColossus, Count: 1, Interval: 2, Delay: 10},
	},
}

// WaveGenerator produces wave definitions. Generate is a pure function of
// (Seed, wave number): every wave draws from its own seeded source, so the
// result does not depend on which waves were generated before.
type WaveGenerator struct {
	Seed        int64
	Table       *SpawnTable
	HandAuthor  int // waves 1..HandAuthor come from the authored list
	MinInterval float64
	Logger      *slog.Logger
}

// NewWaveGenerator returns a generator over the standard spawn table.
func NewWaveGenerator(seed int64, logger *slog.Logger) *WaveGenerator {
	table, _ := SpawnTableByID("standard")
	if logger == nil {
		logger = slog.Default()
	}
	return &WaveGenerator{
		Seed:        seed,
		Table:       table,
		HandAuthor:  HandAuthoredWaves,
		MinInterval: MinSpawnInterval,
		Logger:      logger,
	}
}

func (g *WaveGenerator) rngFor(n int) *rand.Rand {
	return rand.New(rand.NewSource(g.Seed ^ (int64(n) * 1_000_003)))
}

// HealthScale is the wave-wide health multiplier.
func HealthScale(n int) float64 {
	if n < 1 {
		n = 1
	}
	return 1 + 0.12*float64(n-1)
}

// Generate returns the definition for wave n (1-based; lower values clamp to 1).
func (g *WaveGenerator) Generate(n int) WaveDefinition {
	if n < 1 {
		n = 1
	}
	def := WaveDefinition{Number: n, HealthScale: HealthScale(n)}
	if n <= g.HandAuthor && n <= len(handAuthoredWaves) {
		def.Groups = append([]WaveGroup(nil), handAuthoredWaves[n-1]...)
	} else {
		def.Groups, def.Modifier = g.procedural(n)
	}
	def.Descriptor = describe(def)
	return def
}

func (g *WaveGenerator) procedural(n int) ([]WaveGroup, string) {
	rng := g.rngFor(n)
	groupCount := 2 + n/4
	if groupCount > MaxGroupsPerWave {
		groupCount = MaxGroupsPerWave
	}

	groups := make([]WaveGroup, 0, groupCount+1)
	var prev WaveGroup
	for i := 0; i < groupCount; i++ {
		entry, err := g.Table.Select(n, prev.Species, i > 0, rng)
		if err != nil {
			g.Logger.Warn("procedural wave fell back to default species", "wave", n, "err", err)
			entry = SpawnEntry{Species: DefaultSpecies.ID, BaseCount: 8, Growth: 0.5, Interval: 0.8}
		}
		group := WaveGroup{
			Species:  entry.Species,
			Count:    entry.BaseCount + int(math.Round(entry.Growth*float64(n))),
			Interval: math.Max(entry.Interval*math.Pow(0.97, float64(n)), g.MinInterval),
		}
		if group.Count < 1 {
			group.Count = 1
		}
		if i > 0 {
			group.Delay = prev.Delay + prev.run()*GroupOverlapFrac + rng.Float64()*GroupMaxGapS
		}
		groups = append(groups, group)
		prev = group
	}

	if n%BossEveryNWaves == 0 {
		end := 0.0
		for _, grp := range groups {
			if e := grp.Delay + grp.run(); e > end {
				end = e
			}
		}
		groups = append(groups, WaveGroup{
			Species:  SpeciesColossus,
			Count:    1 + n/(BossEveryNWaves*4),
			Interval: 3,
			Delay:    end + 2,
		})
	}

	modifier := ""
	if (n-g.HandAuthor)%ModifierEveryNWave == 0 {
		modifier = modifierOrder[rng.Intn(len(modifierOrder))]
	}
	return groups, modifier
}

func describe(def WaveDefinition) string {
	desc := fmt.Sprintf("Wave %d: %d enemies in %d groups", def.Number, def.Total(), len(def.Groups))
	for _, g := range def.Groups {
		if g.Species == SpeciesColossus {
			desc += ", boss"
			break
		}
	}
	if def.Modifier != "" {
		desc += ", " + def.Modifier
	}
	return desc
}
