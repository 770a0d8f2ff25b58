package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"WaveSiege/internal/game"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wavesiege.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Mode != "host" || cfg.Server.Room != "default" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Network.Codec != "proto" || cfg.Network.SnapshotHz != game.SnapshotHz {
		t.Fatalf("unexpected network defaults %+v", cfg.Network)
	}
	if cfg.Network.ReadTimeout != 10*time.Second || cfg.Network.PingInterval != 3*time.Second {
		t.Fatalf("durations not parsed: %+v", cfg.Network)
	}
	if cfg.Game.StartingLives != game.StartingLives || cfg.Game.GoldHost != game.StartingGoldHost {
		t.Fatalf("unexpected game defaults %+v", cfg.Game)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  mode: CLIENT
game:
  seed: 99
species:
  brute:
    health: 321
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Mode != "client" || cfg.Game.Seed != 99 {
		t.Fatalf("overrides not applied: %+v %+v", cfg.Server, cfg.Game)
	}
	if cfg.Server.Addr != ":8080" || cfg.Game.StartingLives != game.StartingLives {
		t.Fatalf("untouched keys lost their defaults")
	}
	rc := cfg.RoomConfig(nil)
	if rc.Role != game.RoleClient || rc.Seed != 99 {
		t.Fatalf("room config not derived: %+v", rc)
	}
	brute, ok := rc.Species.Get(game.SpeciesBrute)
	if !ok || brute.Health != 321 {
		t.Fatalf("species override not applied: %+v", brute)
	}
}

func TestSanitizeClamps(t *testing.T) {
	path := writeConfig(t, `
network:
  snapshot_hz: 500
  read_timeout: 4s
  ping_interval: 9s
  send_queue: 1
game:
  starting_lives: -3
  gold_host: -10
  death_delay: 30
  cell_size: 1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	n, g := cfg.Network, cfg.Game
	if n.SnapshotHz != game.SimHz {
		t.Errorf("snapshot rate %.1f should clamp to the simulation rate", n.SnapshotHz)
	}
	if n.PingInterval >= n.ReadTimeout {
		t.Errorf("ping interval %v must be shorter than read timeout %v", n.PingInterval, n.ReadTimeout)
	}
	if n.SendQueue != 16 {
		t.Errorf("send queue %d", n.SendQueue)
	}
	if g.StartingLives != 1 || g.GoldHost != 0 || g.DeathDelay != 5 || g.CellSize != 8 {
		t.Errorf("game values not clamped: %+v", g)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
	if _, err := Load(writeConfig(t, "game: [not, a, map]")); err == nil {
		t.Fatalf("malformed yaml should fail")
	}
}

func TestOverridesApply(t *testing.T) {
	cfg := Default()
	mode, codec, seed := "client", "msgpack", int64(5)
	Overrides{Mode: &mode, Codec: &codec, Seed: &seed}.Apply(cfg)
	if cfg.Server.Mode != "client" || cfg.Network.Codec != "msgpack" || cfg.Game.Seed != 5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.Room != "default" {
		t.Fatalf("unset override changed room to %q", cfg.Server.Room)
	}
}
