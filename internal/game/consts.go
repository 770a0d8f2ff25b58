package game

const (
	SimHz          = 20.0 // fixed simulation rate
	Dt             = 1.0 / SimHz
	SnapshotHz     = 10.0 // host -> client state pushes
	MaxStepsPerRun = 8    // fixed steps drained per wall-clock advance before dropping time
	HistoryKeepS   = 2.0  // seconds of interpolation history kept per enemy on the client

	WorldW       = 1600.0
	WorldH       = 900.0
	GridCellSize = 64.0

	DeathDelay     = 0.6 // seconds a dead enemy lingers for its death animation
	MaxPopulation  = 600
	MaxShredStacks = 3

	StartingLives      = 20
	StartingGoldHost   = 250
	StartingGoldClient = 250
	BossLeakCost       = 5
	WaveClearGold      = 25
	MinSpawnInterval   = 0.18
	BossEveryNWaves    = 5
	HandAuthoredWaves  = 5
	MaxGroupsPerWave   = 6
	GroupOverlapFrac   = 0.6
	GroupMaxGapS       = 1.5
	ModifierEveryNWave = 3
)
