package game

import "log/slog"

// SpawnFunc is called once per produced enemy. group is the index of the
// producing group within the definition.
type SpawnFunc func(def *WaveDefinition, group int, g WaveGroup)

type groupCursor struct {
	produced  int
	countdown float64
}

// Scheduler owns the remaining-to-spawn timeline of the current wave and the
// cached definition of the next one.
type Scheduler struct {
	gen    *WaveGenerator
	logger *slog.Logger

	current WaveDefinition
	cursors []groupCursor
	active  bool
	elapsed float64

	next      WaveDefinition
	hasNext   bool
	completed int
}

// NewScheduler creates an idle scheduler with wave 1 already cached as the
// preview.
func NewScheduler(gen *WaveGenerator, logger *slog.Logger) *Scheduler {
	if gen == nil {
		gen = NewWaveGenerator(1, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{gen: gen, logger: logger}
	s.cacheNext(1)
	return s
}

func (s *Scheduler) cacheNext(n int) {
	s.next = s.gen.Generate(n)
	s.hasNext = true
}

// Preview returns the cached next wave. It is exactly what StartNext will run.
func (s *Scheduler) Preview() (WaveDefinition, bool) {
	return s.next, s.hasNext
}

// Current returns the wave being produced or last produced.
func (s *Scheduler) Current() WaveDefinition { return s.current }

// Active reports whether a wave has been started and not yet completed.
func (s *Scheduler) Active() bool { return s.active }

// Completed is the number of the last completed wave.
func (s *Scheduler) Completed() int { return s.completed }

// Start commits def as the current wave. Starting while another wave is
// active is ignored.
func (s *Scheduler) Start(def WaveDefinition) bool {
	if s.active {
		s.logger.Debug("wave start ignored, wave already active", "current", s.current.Number, "requested", def.Number)
		return false
	}
	groups := make([]WaveGroup, len(def.Groups))
	copy(groups, def.Groups)
	def.Groups = groups
	for i := range def.Groups {
		if def.Groups[i].Interval < s.gen.MinInterval {
			def.Groups[i].Interval = s.gen.MinInterval
		}
		if def.Groups[i].Delay < 0 {
			def.Groups[i].Delay = 0
		}
		if def.Groups[i].Count < 0 {
			def.Groups[i].Count = 0
		}
	}
	s.current = def
	s.cursors = make([]groupCursor, len(def.Groups))
	for i, g := range def.Groups {
		s.cursors[i].countdown = g.Delay
	}
	s.active = true
	s.elapsed = 0
	if s.hasNext && s.next.Number == def.Number {
		s.hasNext = false
	}
	s.logger.Info("wave started", "wave", def.Number, "groups", len(def.Groups), "enemies", def.Total(), "modifier", def.Modifier)
	return true
}

// StartNext starts the cached preview wave and returns it.
func (s *Scheduler) StartNext() (WaveDefinition, bool) {
	if s.active {
		return s.current, false
	}
	if !s.hasNext {
		s.cacheNext(s.completed + 1)
	}
	def := s.next
	if !s.Start(def) {
		return def, false
	}
	return s.current, true
}

// Tick counts down every unexhausted group and calls spawn for each enemy
// whose time arrived. It returns the number produced. Ticking an exhausted
// or inactive wave does nothing.
func (s *Scheduler) Tick(dt float64, spawn SpawnFunc) int {
	if !s.active || dt <= 0 {
		return 0
	}
	s.elapsed += dt
	produced := 0
	for i := range s.cursors {
		c := &s.cursors[i]
		g := s.current.Groups[i]
		if c.produced >= g.Count {
			continue
		}
		c.countdown -= dt
		for c.countdown <= 0 && c.produced < g.Count {
			c.produced++
			produced++
			if spawn != nil {
				spawn(&s.current, i, g)
			}
			c.countdown += g.Interval
		}
	}
	return produced
}

// Exhausted reports whether every group has produced its full count.
func (s *Scheduler) Exhausted() bool {
	for i, c := range s.cursors {
		if c.produced < s.current.Groups[i].Count {
			return false
		}
	}
	return true
}

// Complete closes the current wave and caches the next definition. The
// cached value is never regenerated.
func (s *Scheduler) Complete() (WaveDefinition, bool) {
	if !s.active {
		return s.next, false
	}
	s.active = false
	s.completed = s.current.Number
	s.cacheNext(s.completed + 1)
	s.logger.Info("wave complete", "wave", s.completed, "next", s.next.Descriptor)
	return s.next, true
}

// Restore treats every wave up to and including wave as handled elsewhere and
// caches wave+1 as the preview. Clients call it when a host snapshot reports
// a newer wave.
func (s *Scheduler) Restore(wave int) {
	s.active = false
	s.cursors = nil
	s.completed = wave
	s.cacheNext(wave + 1)
}
