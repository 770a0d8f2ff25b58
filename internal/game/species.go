package game

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// SpeciesID is the stable ordinal used on the wire. Host and client must agree
// on the whole ordered table; see SpeciesTable.Fingerprint.
type SpeciesID uint8

const (
	SpeciesGrunt SpeciesID = iota
	SpeciesRunner
	SpeciesBrute
	SpeciesWasp
	SpeciesWarden
	SpeciesWraith
	SpeciesTrickster
	SpeciesBroodmother
	SpeciesBroodling
	SpeciesMimic
	SpeciesMender
	SpeciesHerald
	SpeciesBurrower
	SpeciesColossus

	speciesCount
)

// CycleSpec describes a repeating window: active for Window seconds out of
// every Period seconds.
type CycleSpec struct {
	Period float64
	Window float64
}

// FlightSpec parameterises the curved approach of flying species.
type FlightSpec struct {
	Amplitude float64 // sideways sine offset in world units
	Waves     float64 // number of half-oscillations over the whole flight
	LandAhead int     // waypoints skipped before landing
}

// SplitSpec spawns Count children of Species when the parent dies.
type SplitSpec struct {
	Species SpeciesID
	Count   int
}

// AuraSpec is a radius plus a magnitude (HP/s for heal, speed factor for haste).
type AuraSpec struct {
	Radius float64
	Amount float64
}

// Species is the static template selected by an enemy's species tag.
type Species struct {
	ID     SpeciesID
	Name   string
	Health float64
	Speed  float64
	Radius float64
	Reward int
	Armor  float64 // fraction of incoming damage ignored, [0, 0.9]

	Shield      float64
	Invuln      *CycleSpec
	Flight      *FlightSpec
	Dodge       int
	Split       *SplitSpec
	CloneOnHalf bool
	HealAura    *AuraSpec
	HasteAura   *AuraSpec
	Burrow      *CycleSpec
	Boss        bool
}

// DefaultSpecies is the fallback record for unknown or malformed species data.
var DefaultSpecies = Species{
	ID:     SpeciesGrunt,
	Name:   "grunt",
	Health: 60,
	Speed:  60,
	Radius: 10,
	Reward: 5,
}

func defaultSpeciesRecords() []Species {
	return []Species{
		DefaultSpecies,
		{ID: SpeciesRunner, Name: "runner", Health: 35, Speed: 115, Radius: 8, Reward: 4},
		{ID: SpeciesBrute, Name: "brute", Health: 220, Speed: 42, Radius: 14, Reward: 12, Armor: 0.27},
		{ID: SpeciesWasp, Name: "wasp", Health: 50, Speed: 90, Radius: 9, Reward: 7,
			Flight: &FlightSpec{Amplitude: 60, Waves: 3, LandAhead: 4}},
		{ID: SpeciesWarden, Name: "warden", Health: 110, Speed: 50, Radius: 12, Reward: 10, Armor: 0.1, Shield: 80},
		{ID: SpeciesWraith, Name: "wraith", Health: 90, Speed: 65, Radius: 10, Reward: 10,
			Invuln: &CycleSpec{Period: 4, Window: 1.2}},
		{ID: SpeciesTrickster, Name: "trickster", Health: 70, Speed: 80, Radius: 9, Reward: 9, Dodge: 3},
		{ID: SpeciesBroodmother, Name: "broodmother", Health: 180, Speed: 45, Radius: 15, Reward: 14, Armor: 0.1,
			Split: &SplitSpec{Species: SpeciesBroodling, Count: 3}},
		{ID: SpeciesBroodling, Name: "broodling", Health: 25, Speed: 95, Radius: 6, Reward: 1},
		{ID: SpeciesMimic, Name: "mimic", Health: 120, Speed: 55, Radius: 11, Reward: 8, CloneOnHalf: true},
		{ID: SpeciesMender, Name: "mender", Health: 80, Speed: 55, Radius: 10, Reward: 11,
			HealAura: &AuraSpec{Radius: 90, Amount: 8}},
		{ID: SpeciesHerald, Name: "herald", Health: 90, Speed: 60, Radius: 10, Reward: 11,
			HasteAura: &AuraSpec{Radius: 100, Amount: 1.25}},
		{ID: SpeciesBurrower, Name: "burrower", Health: 100, Speed: 58, Radius: 11, Reward: 10, Armor: 0.15,
			Burrow: &CycleSpec{Period: 5, Window: 1.8}},
		{ID: SpeciesColossus, Name: "colossus", Health: 2400, Speed: 30, Radius: 24, Reward: 120, Armor: 0.35,
			Shield: 400, Boss: true},
	}
}

// SpeciesTuning is a partial override of the numeric fields of a species,
// loaded from configuration. Nil fields keep the built-in value.
type SpeciesTuning struct {
	Health *float64 `yaml:"health"`
	Speed  *float64 `yaml:"speed"`
	Radius *float64 `yaml:"radius"`
	Reward *int     `yaml:"reward"`
	Armor  *float64 `yaml:"armor"`
	Shield *float64 `yaml:"shield"`
}

// SpeciesTable is the ordered, index-addressable species library.
type SpeciesTable struct {
	records []Species
	byName  map[string]SpeciesID
}

// NewSpeciesTable builds the built-in table and applies tuning overrides keyed
// by species name. Unknown names are reported and skipped; out-of-range
// values are clamped.
func NewSpeciesTable(tuning map[string]SpeciesTuning, logger *slog.Logger) *SpeciesTable {
	if logger == nil {
		logger = slog.Default()
	}
	t := &SpeciesTable{records: defaultSpeciesRecords(), byName: make(map[string]SpeciesID)}
	for _, rec := range t.records {
		t.byName[rec.Name] = rec.ID
	}
	for name, tune := range tuning {
		id, err := t.Lookup(name)
		if err != nil {
			logger.Warn("species override ignored", "err", err)
			continue
		}
		rec := t.records[id]
		if tune.Health != nil {
			rec.Health = *tune.Health
		}
		if tune.Speed != nil {
			rec.Speed = *tune.Speed
		}
		if tune.Radius != nil {
			rec.Radius = *tune.Radius
		}
		if tune.Reward != nil {
			rec.Reward = *tune.Reward
		}
		if tune.Armor != nil {
			rec.Armor = *tune.Armor
		}
		if tune.Shield != nil {
			rec.Shield = *tune.Shield
		}
		t.records[id] = SanitizeSpecies(rec)
	}
	return t
}

// SanitizeSpecies clamps every numeric field into its playable range.
func SanitizeSpecies(s Species) Species {
	if s.Health < 1 {
		s.Health = 1
	}
	s.Speed = Clamp(s.Speed, 0, 600)
	s.Radius = Clamp(s.Radius, 2, 64)
	if s.Reward < 0 {
		s.Reward = 0
	}
	s.Armor = Clamp(s.Armor, 0, 0.9)
	if s.Shield < 0 {
		s.Shield = 0
	}
	if s.Dodge < 0 {
		s.Dodge = 0
	}
	return s
}

// Get returns the record for id, falling back to DefaultSpecies.
func (t *SpeciesTable) Get(id SpeciesID) (Species, bool) {
	if t == nil || int(id) >= len(t.records) {
		return DefaultSpecies, false
	}
	return t.records[id], true
}

// Valid reports whether id indexes the table.
func (t *SpeciesTable) Valid(id SpeciesID) bool {
	return t != nil && int(id) < len(t.records)
}

// Lookup resolves a species by name.
func (t *SpeciesTable) Lookup(name string) (SpeciesID, error) {
	id, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown species %q", name)
	}
	return id, nil
}

// Names returns species names in ordinal order.
func (t *SpeciesTable) Names() []string {
	names := make([]string, len(t.records))
	for i, rec := range t.records {
		names[i] = rec.Name
	}
	return names
}

// Fingerprint hashes the ordinal->name mapping. Tuning values are host-owned
// and deliberately excluded.
func (t *SpeciesTable) Fingerprint() uint64 {
	return SpeciesFingerprint(t.Names())
}

// SpeciesFingerprint hashes an ordered list of species names.
func SpeciesFingerprint(names []string) uint64 {
	d := xxhash.New()
	for _, name := range names {
		_, _ = d.WriteString(name)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}
