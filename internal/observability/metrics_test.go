package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"WaveSiege/internal/game"
)

func newCollector(t *testing.T) (*RoomCollector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewRoomCollector(reg, game.NewSpeciesTable(nil, nil))
	if err != nil {
		t.Fatalf("NewRoomCollector: %v", err)
	}
	return c, reg
}

func TestRoomFeedsCollector(t *testing.T) {
	c, _ := newCollector(t)
	cfg := game.DefaultRoomConfig("metrics")
	cfg.Hooks.Listener = c
	room := game.NewRoom(cfg)

	e := room.Sim.Spawn(game.SpeciesGrunt, 1, nil, 0)
	room.Sim.Spawn(game.SpeciesGrunt, 1, nil, 0)
	room.Sim.ApplyDamage(e, 1e6, game.DamageSource{Type: "arrow"})
	for i := 0; i < 20; i++ {
		room.Tick()
	}

	if got := testutil.ToFloat64(c.Spawned.WithLabelValues("grunt")); got != 2 {
		t.Fatalf("spawned{grunt} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Killed.WithLabelValues("grunt")); got != 1 {
		t.Fatalf("killed{grunt} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.Damage.WithLabelValues("arrow")); got <= 0 {
		t.Fatalf("damage{arrow} = %v, want > 0", got)
	}
}

func TestAdvanceAndDiscard(t *testing.T) {
	c, reg := newCollector(t)
	c.ObserveAdvance(3, 2*time.Millisecond, 12, 4)
	c.ObserveAdvance(0, time.Millisecond, 11, 4)
	c.DiscardHook()("stale")
	c.DiscardHook()("stale")
	c.SnapshotsSent.Inc()

	if got := testutil.ToFloat64(c.Ticks); got != 3 {
		t.Fatalf("ticks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.LiveEnemies); got != 11 {
		t.Fatalf("live = %v, want 11", got)
	}
	if got := testutil.ToFloat64(c.Discarded.WithLabelValues("stale")); got != 2 {
		t.Fatalf("discarded{stale} = %v, want 2", got)
	}
	if n, err := testutil.GatherAndCount(reg, "wavesiege_tick_duration_seconds"); err != nil || n != 1 {
		t.Fatalf("tick histogram count = %d, err %v", n, err)
	}
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRoomCollector(reg, nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewRoomCollector(reg, nil)
	if err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}
	first.SnapshotsSent.Inc()
	if got := testutil.ToFloat64(second.SnapshotsSent); got != 1 {
		t.Fatalf("collectors not shared, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c, _ := newCollector(t)
	c.SnapshotsApplied.Inc()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "wavesiege_snapshots_applied_total 1") {
		t.Fatalf("metric missing from output:\n%s", rr.Body.String())
	}
}
