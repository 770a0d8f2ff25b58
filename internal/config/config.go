// Package config loads the YAML configuration for host and client processes.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"WaveSiege/internal/game"
	"WaveSiege/internal/logging"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable of a process.
type Config struct {
	Server    ServerConfig                  `yaml:"server"`
	Network   NetworkConfig                 `yaml:"network"`
	Game      GameConfig                    `yaml:"game"`
	Species   map[string]game.SpeciesTuning `yaml:"species"`
	Logging   logging.Config                `yaml:"logging"`
	Telemetry TelemetryConfig               `yaml:"telemetry"`
}

type ServerConfig struct {
	Mode    string `yaml:"mode"` // host or client
	Addr    string `yaml:"addr"`
	Room    string `yaml:"room"`
	HostURL string `yaml:"host_url"` // client only
}

type NetworkConfig struct {
	Codec        string        `yaml:"codec"`
	SnapshotHz   float64       `yaml:"snapshot_hz"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	SendQueue    int           `yaml:"send_queue"`
}

type GameConfig struct {
	Seed          int64   `yaml:"seed"`
	StartingLives int     `yaml:"starting_lives"`
	GoldHost      int     `yaml:"gold_host"`
	GoldClient    int     `yaml:"gold_client"`
	WaveClearGold int     `yaml:"wave_clear_gold"`
	MaxPopulation int     `yaml:"max_population"`
	DeathDelay    float64 `yaml:"death_delay"`
	CellSize      float64 `yaml:"cell_size"`
	WorldWidth    float64 `yaml:"world_width"`
	WorldHeight   float64 `yaml:"world_height"`
}

type TelemetryConfig struct {
	Dir string `yaml:"dir"` // wave CSV output; empty disables it
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load reads the embedded defaults and, when path is non-empty, merges the
// user file over them. The result is sanitized.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if path != "" {
		cleanPath := filepath.Clean(path)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("reading config %q: %w", cleanPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %q: %w", cleanPath, err)
		}
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize clamps every value into a usable range.
func (c *Config) Sanitize() {
	c.Server.Mode = strings.ToLower(strings.TrimSpace(c.Server.Mode))
	if c.Server.Mode != "client" {
		c.Server.Mode = "host"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.Room == "" {
		c.Server.Room = "default"
	}

	n := &c.Network
	n.SnapshotHz = game.Clamp(n.SnapshotHz, 1, game.SimHz)
	if n.ReadTimeout <= 0 {
		n.ReadTimeout = 10 * time.Second
	}
	if n.WriteTimeout <= 0 {
		n.WriteTimeout = 2 * time.Second
	}
	if n.PingInterval <= 0 || n.PingInterval >= n.ReadTimeout {
		n.PingInterval = n.ReadTimeout * 3 / 10
	}
	if n.SendQueue < 16 {
		n.SendQueue = 16
	}

	g := &c.Game
	if g.StartingLives < 1 {
		g.StartingLives = 1
	}
	if g.GoldHost < 0 {
		g.GoldHost = 0
	}
	if g.GoldClient < 0 {
		g.GoldClient = 0
	}
	if g.WaveClearGold < 0 {
		g.WaveClearGold = 0
	}
	if g.MaxPopulation < 1 {
		g.MaxPopulation = game.MaxPopulation
	}
	g.DeathDelay = game.Clamp(g.DeathDelay, 0, 5)
	g.CellSize = game.Clamp(g.CellSize, 8, 512)
	if g.WorldWidth <= 0 {
		g.WorldWidth = game.WorldW
	}
	if g.WorldHeight <= 0 {
		g.WorldHeight = game.WorldH
	}
}

// RoomConfig builds the game room configuration for this process.
func (c *Config) RoomConfig(logger *slog.Logger) game.RoomConfig {
	role := game.RoleHost
	if c.Server.Mode == "client" {
		role = game.RoleClient
	}
	rc := game.DefaultRoomConfig(c.Server.Room)
	rc.Role = role
	rc.Seed = c.Game.Seed
	rc.StartingLives = c.Game.StartingLives
	rc.GoldHost = c.Game.GoldHost
	rc.GoldClient = c.Game.GoldClient
	rc.WaveClearGold = c.Game.WaveClearGold
	rc.Sim.WorldW = c.Game.WorldWidth
	rc.Sim.WorldH = c.Game.WorldHeight
	rc.Sim.CellSize = c.Game.CellSize
	rc.Sim.DeathDelay = c.Game.DeathDelay
	rc.Sim.MaxPopulation = c.Game.MaxPopulation
	rc.Species = game.NewSpeciesTable(c.Species, logger)
	rc.Logger = logger
	return rc
}

// Overrides are optional command-line values that win over the file.
type Overrides struct {
	Mode    *string
	Addr    *string
	Room    *string
	HostURL *string
	Codec   *string
	Seed    *int64
	Level   *string
}

// Apply copies every set override into c and re-sanitizes.
func (o Overrides) Apply(c *Config) {
	if o.Mode != nil {
		c.Server.Mode = *o.Mode
	}
	if o.Addr != nil {
		c.Server.Addr = *o.Addr
	}
	if o.Room != nil {
		c.Server.Room = *o.Room
	}
	if o.HostURL != nil {
		c.Server.HostURL = *o.HostURL
	}
	if o.Codec != nil {
		c.Network.Codec = *o.Codec
	}
	if o.Seed != nil {
		c.Game.Seed = *o.Seed
	}
	if o.Level != nil {
		c.Logging.Level = *o.Level
	}
	c.Sanitize()
}
