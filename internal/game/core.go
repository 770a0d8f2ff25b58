package game

import (
	"math"
	"sync"
)

type Vec2 struct{ X, Y float64 }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Len() float64         { return math.Hypot(a.X, a.Y) }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }

func (a Vec2) DistSq(b Vec2) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

func lerpVec(a, b Vec2, t float64) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sample is one timestamped position observed for an entity.
type Sample struct {
	T   float64
	Pos Vec2
}

// History is a bounded ring of position samples. The client keeps one per
// reconciled enemy so a renderer can interpolate between snapshots.
type History struct {
	buf   []Sample
	head  int
	size  int
	mu    sync.RWMutex
	limit int
}

func newHistory(seconds float64, hz float64) *History {
	n := int(seconds*hz) + 4
	return &History{buf: make([]Sample, n), limit: n}
}

func (h *History) push(s Sample) {
	h.mu.Lock()
	h.buf[h.head] = s
	h.head = (h.head + 1) % h.limit
	if h.size < h.limit {
		h.size++
	}
	h.mu.Unlock()
}

// Len reports how many samples are buffered.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// GetAt returns the position at time t, interpolated between the two nearest
// samples and clamped to the oldest/newest sample outside the buffered range.
func (h *History) GetAt(t float64) (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.size == 0 {
		return Sample{}, false
	}
	bestAfter := -1
	bestBefore := -1
	var sAfter, sBefore Sample
	for i := 0; i < h.size; i++ {
		idx := (h.head - 1 - i + h.limit) % h.limit
		s := h.buf[idx]
		if s.T >= t {
			sAfter = s
			bestAfter = idx
		}
		if s.T <= t {
			sBefore = s
			bestBefore = idx
			break
		}
	}
	if bestBefore == -1 {
		earliest := h.buf[(h.head-h.size+h.limit)%h.limit]
		return earliest, true
	}
	if bestAfter == -1 {
		latest := h.buf[(h.head-1+h.limit)%h.limit]
		return latest, true
	}
	if sAfter.T == sBefore.T {
		return sBefore, true
	}
	alpha := (t - sBefore.T) / (sAfter.T - sBefore.T)
	return Sample{T: t, Pos: lerpVec(sBefore.Pos, sAfter.Pos, alpha)}, true
}
