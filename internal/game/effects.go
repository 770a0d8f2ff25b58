package game

import "math"

// SlowEffect multiplies movement speed by Factor while Remaining > 0.
type SlowEffect struct {
	Factor    float64
	Remaining float64
}

// BurnEffect deals DPS directly to health, ignoring armor and shield.
type BurnEffect struct {
	DPS       float64
	Remaining float64
}

// ShredEffect lowers armor by PerStack for each of Stacks.
type ShredEffect struct {
	Stacks    int
	PerStack  float64
	Remaining float64
}

// StatusEffects holds every timed modifier independently. Each apply merges
// magnitude and duration separately (strongest magnitude, longest duration),
// so a weaker hit can never shorten or weaken an active effect. The merged
// pair may not match any single application.
type StatusEffects struct {
	Slow   SlowEffect
	Freeze float64 // remaining seconds
	Shock  float64 // remaining seconds
	Burn   BurnEffect
	Shred  ShredEffect
	Regen  float64 // HP/s, set only by wave modifiers

	haste float64 // aura speed factor, recomputed every tick
}

// ApplySlow merges a slow. Lower factors are stronger.
func (s *StatusEffects) ApplySlow(factor, duration float64) {
	if math.IsNaN(factor) || !positiveFinite(duration) {
		return
	}
	factor = Clamp(factor, 0, 1)
	if s.Slow.Remaining <= 0 {
		s.Slow = SlowEffect{Factor: factor, Remaining: duration}
		return
	}
	if factor < s.Slow.Factor {
		s.Slow.Factor = factor
	}
	if duration > s.Slow.Remaining {
		s.Slow.Remaining = duration
	}
}

// ApplyFreeze extends the freeze to the longer of the two durations.
func (s *StatusEffects) ApplyFreeze(duration float64) {
	if positiveFinite(duration) && duration > s.Freeze {
		s.Freeze = duration
	}
}

// ApplyShock extends the shock to the longer of the two durations.
func (s *StatusEffects) ApplyShock(duration float64) {
	if positiveFinite(duration) && duration > s.Shock {
		s.Shock = duration
	}
}

// ApplyBurn merges a burn: highest DPS, longest duration.
func (s *StatusEffects) ApplyBurn(dps, duration float64) {
	if !positiveFinite(dps) || !positiveFinite(duration) {
		return
	}
	if s.Burn.Remaining <= 0 {
		s.Burn = BurnEffect{DPS: dps, Remaining: duration}
		return
	}
	if dps > s.Burn.DPS {
		s.Burn.DPS = dps
	}
	if duration > s.Burn.Remaining {
		s.Burn.Remaining = duration
	}
}

// ApplyShred adds one stack (capped), keeping the largest per-stack
// reduction and the longest duration.
func (s *StatusEffects) ApplyShred(perStack, duration float64) {
	if !positiveFinite(perStack) || !positiveFinite(duration) {
		return
	}
	if s.Shred.Remaining <= 0 {
		s.Shred = ShredEffect{}
	}
	if s.Shred.Stacks < MaxShredStacks {
		s.Shred.Stacks++
	}
	if perStack > s.Shred.PerStack {
		s.Shred.PerStack = perStack
	}
	if duration > s.Shred.Remaining {
		s.Shred.Remaining = duration
	}
}

// positiveFinite rejects zero, negatives, NaN and infinities.
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Immobile reports whether freeze or shock currently gates movement.
func (s *StatusEffects) Immobile() bool {
	return s.Freeze > 0 || s.Shock > 0
}

// SpeedFactor combines slow and aura haste.
func (s *StatusEffects) SpeedFactor() float64 {
	if s.Immobile() {
		return 0
	}
	f := 1.0
	if s.Slow.Remaining > 0 {
		f *= s.Slow.Factor
	}
	if s.haste > 1 {
		f *= s.haste
	}
	return f
}

// ArmorReduction is the total armor removed by shred stacks.
func (s *StatusEffects) ArmorReduction() float64 {
	if s.Shred.Remaining <= 0 {
		return 0
	}
	return float64(s.Shred.Stacks) * s.Shred.PerStack
}

// decay advances every timer by dt and clears expired effects. It returns the
// burn damage accrued over the step.
func (s *StatusEffects) decay(dt float64) float64 {
	var burn float64
	if s.Burn.Remaining > 0 {
		step := dt
		if s.Burn.Remaining < step {
			step = s.Burn.Remaining
		}
		burn = s.Burn.DPS * step
		s.Burn.Remaining -= dt
		if s.Burn.Remaining <= 0 {
			s.Burn = BurnEffect{}
		}
	}
	if s.Slow.Remaining > 0 {
		s.Slow.Remaining -= dt
		if s.Slow.Remaining <= 0 {
			s.Slow = SlowEffect{}
		}
	}
	if s.Freeze > 0 {
		s.Freeze -= dt
		if s.Freeze < 0 {
			s.Freeze = 0
		}
	}
	if s.Shock > 0 {
		s.Shock -= dt
		if s.Shock < 0 {
			s.Shock = 0
		}
	}
	if s.Shred.Remaining > 0 {
		s.Shred.Remaining -= dt
		if s.Shred.Remaining <= 0 {
			s.Shred = ShredEffect{}
		}
	}
	return burn
}
