// Package observability exposes Prometheus metrics for a room.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"WaveSiege/internal/game"
)

// RoomCollector bundles the simulation and sync metrics of one process. It
// implements game.SimListener so a room can feed it directly.
type RoomCollector struct {
	gatherer prometheus.Gatherer
	species  *game.SpeciesTable

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	LiveEnemies  prometheus.Gauge
	Wave         prometheus.Gauge

	Spawned *prometheus.CounterVec
	Killed  *prometheus.CounterVec
	Leaked  *prometheus.CounterVec
	Damage  *prometheus.CounterVec

	SnapshotsSent    prometheus.Counter
	SnapshotsApplied prometheus.Counter
	Discarded        *prometheus.CounterVec
}

// NewRoomCollector registers the metrics against reg, defaulting to the
// global registry when nil. Registering twice returns the existing
// collectors.
func NewRoomCollector(reg prometheus.Registerer, species *game.SpeciesTable) (*RoomCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &RoomCollector{gatherer: gatherer, species: species}

	var err error
	if c.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wavesiege_ticks_total",
		Help: "Fixed simulation steps run.",
	}), "wavesiege_ticks_total"); err != nil {
		return nil, err
	}
	if c.TickDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wavesiege_tick_duration_seconds",
		Help:    "Wall-clock time spent per clock advance.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "wavesiege_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.LiveEnemies, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wavesiege_live_enemies",
		Help: "Enemies currently in the simulation, dying ones included.",
	}), "wavesiege_live_enemies"); err != nil {
		return nil, err
	}
	if c.Wave, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wavesiege_wave",
		Help: "Number of the current wave.",
	}), "wavesiege_wave"); err != nil {
		return nil, err
	}
	if c.Spawned, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavesiege_enemies_spawned_total",
		Help: "Enemies spawned, by species.",
	}, []string{"species"}), "wavesiege_enemies_spawned_total"); err != nil {
		return nil, err
	}
	if c.Killed, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavesiege_enemies_killed_total",
		Help: "Enemies killed, by species.",
	}, []string{"species"}), "wavesiege_enemies_killed_total"); err != nil {
		return nil, err
	}
	if c.Leaked, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavesiege_enemies_leaked_total",
		Help: "Enemies that reached the goal, by species.",
	}, []string{"species"}), "wavesiege_enemies_leaked_total"); err != nil {
		return nil, err
	}
	if c.Damage, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavesiege_damage_total",
		Help: "Damage applied to enemies after armor, by source type.",
	}, []string{"source"}), "wavesiege_damage_total"); err != nil {
		return nil, err
	}
	if c.SnapshotsSent, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wavesiege_snapshots_sent_total",
		Help: "Snapshots published by the host.",
	}), "wavesiege_snapshots_sent_total"); err != nil {
		return nil, err
	}
	if c.SnapshotsApplied, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wavesiege_snapshots_applied_total",
		Help: "Snapshots reconciled by the client.",
	}), "wavesiege_snapshots_applied_total"); err != nil {
		return nil, err
	}
	if c.Discarded, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wavesiege_sync_discarded_total",
		Help: "Inbound messages or entities dropped, by reason.",
	}, []string{"reason"}), "wavesiege_sync_discarded_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// SnapshotSent counts one published snapshot.
func (c *RoomCollector) SnapshotSent() {
	if c != nil {
		c.SnapshotsSent.Inc()
	}
}

// SnapshotApplied counts one reconciled snapshot.
func (c *RoomCollector) SnapshotApplied() {
	if c != nil {
		c.SnapshotsApplied.Inc()
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RoomCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *RoomCollector) speciesName(id game.SpeciesID) string {
	rec, _ := c.species.Get(id)
	return rec.Name
}

func (c *RoomCollector) OnSpawn(e *game.Enemy) {
	if c == nil {
		return
	}
	c.Spawned.WithLabelValues(c.speciesName(e.Species)).Inc()
}

func (c *RoomCollector) OnKilled(e *game.Enemy) {
	if c == nil {
		return
	}
	c.Killed.WithLabelValues(c.speciesName(e.Species)).Inc()
}

func (c *RoomCollector) OnLeaked(e *game.Enemy) {
	if c == nil {
		return
	}
	c.Leaked.WithLabelValues(c.speciesName(e.Species)).Inc()
}

func (c *RoomCollector) OnDamageDealt(sourceType string, amount float64, _ game.EntityID) {
	if c == nil || amount <= 0 {
		return
	}
	if sourceType == "" {
		sourceType = "unknown"
	}
	c.Damage.WithLabelValues(sourceType).Add(amount)
}

// ObserveAdvance records one clock advance that ran steps fixed steps.
func (c *RoomCollector) ObserveAdvance(steps int, took time.Duration, live, wave int) {
	if c == nil {
		return
	}
	if steps > 0 {
		c.Ticks.Add(float64(steps))
		c.TickDuration.Observe(took.Seconds())
	}
	c.LiveEnemies.Set(float64(live))
	c.Wave.Set(float64(wave))
}

// DiscardHook returns a callback suitable for game.Room.SetDiscardHook.
func (c *RoomCollector) DiscardHook() func(reason string) {
	if c == nil {
		return func(string) {}
	}
	return func(reason string) { c.Discarded.WithLabelValues(reason).Inc() }
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
