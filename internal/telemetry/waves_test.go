package telemetry

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"WaveSiege/internal/game"
)

func TestWaveWriterHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	ww := NewWaveWriter(&buf)
	next := game.NewWaveGenerator(1, nil).Generate(2)
	for i := 1; i <= 3; i++ {
		rep := game.WaveReport{Wave: i, Spawned: 8, Killed: 7, Leaked: 1, Lives: 20 - i, Next: next}
		if err := ww.Write(RecordFor("r", rep)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if n := strings.Count(buf.String(), "duration_s"); n != 1 {
		t.Fatalf("header written %d times", n)
	}
	recs, err := ReadWaveLog(&buf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 3 || recs[2].Wave != 3 || recs[2].Lives != 17 || recs[0].NextTotal != next.Total() {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestRoomWaveLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	ww, err := OpenWaveLog(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cfg := game.DefaultRoomConfig("csv")
	cfg.Hooks.OnWaveComplete = func(rep game.WaveReport) {
		if err := ww.Write(RecordFor(cfg.ID, rep)); err != nil {
			t.Errorf("write: %v", err)
		}
	}
	room := game.NewRoom(cfg)
	room.Waves.Start(game.WaveDefinition{Number: 1, Groups: []game.WaveGroup{{Species: game.SpeciesGrunt, Count: 2, Interval: 0.5}}})
	for i := 0; i < 400 && room.Waves.Completed() == 0; i++ {
		room.Tick()
		for _, e := range room.Sim.Enemies() {
			if e.Alive() {
				room.Sim.ApplyDamage(e, 1e6, game.DamageSource{Type: "test"})
			}
		}
	}
	if err := ww.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "waves.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	recs, err := ReadWaveLog(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 || recs[0].Killed != 2 || recs[0].Room != "csv" || recs[0].NextWave != 2 {
		t.Fatalf("unexpected records %+v", recs)
	}
}

func TestNilWriterDisabled(t *testing.T) {
	ww, err := OpenWaveLog("")
	if err != nil || ww != nil {
		t.Fatalf("empty dir should disable output, got %v %v", ww, err)
	}
	if err := ww.Write(WaveRecord{Wave: 1}); err != nil {
		t.Fatalf("nil writer should drop records: %v", err)
	}
	if err := ww.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}
