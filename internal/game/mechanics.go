package game

import "math"

// advance runs one step of per-enemy mechanics for a living enemy.
func (s *Simulation) advance(e *Enemy, dt float64) {
	if e.Invuln != nil {
		e.Invuln.advance(dt)
	}
	if e.Burrow != nil {
		e.Burrow.advance(dt)
	}

	if burn := e.Effects.decay(dt); burn > 0 && !e.Invulnerable() {
		if dealt := s.drainHealth(e, burn); dealt > 0 {
			e.LastHit = e.burnSource
			s.listener.OnDamageDealt(burnSourceType(e.burnSource), dealt, e.burnSource.ID)
		}
		if e.Dead {
			return
		}
	}
	if e.Effects.Regen > 0 {
		e.Health += e.Effects.Regen * dt
		e.clampHealth()
	}

	speed := e.BaseSpeed * e.Effects.SpeedFactor()
	if speed > 0 {
		if e.Flying() {
			s.fly(e, speed*dt)
		} else {
			s.walk(e, speed*dt)
		}
	}

	if s.cfg.Authoritative && e.Clone != nil && !e.Clone.AlreadySplit && e.Health <= e.MaxHealth/2 {
		e.Clone.AlreadySplit = true
		s.queueClone(e)
	}
}

func burnSourceType(src DamageSource) string {
	if src.Type == "" {
		return "burn"
	}
	return src.Type
}

// walk moves the enemy budget units along its path, crossing as many
// waypoints as the budget allows.
func (s *Simulation) walk(e *Enemy, budget float64) {
	path := e.Path
	for budget > 0 && e.Waypoint < path.Len() {
		target := path.Waypoint(e.Waypoint)
		gap := target.Sub(e.Pos)
		d := gap.Len()
		if d <= budget {
			e.Pos = target
			e.Distance = path.DistanceAt(e.Waypoint)
			e.Waypoint++
			budget -= d
			continue
		}
		e.Pos = e.Pos.Add(gap.Scale(budget / d))
		e.Distance += budget
		budget = 0
	}
	if e.Waypoint >= path.Len() {
		e.ReachedGoal = true
		e.Pos = path.Goal()
		e.Distance = path.Length()
	}
}

// fly advances a flyer along a sine-offset chord towards its landing
// waypoint. On landing it resumes normal walking from the next waypoint.
func (s *Simulation) fly(e *Enemy, budget float64) {
	f := e.Flight
	path := e.Path
	land := path.Waypoint(f.LandIndex)
	chord := land.Sub(f.From)
	length := chord.Len()
	f.Progress += budget
	if length <= 0 || f.Progress >= length {
		f.Landed = true
		e.Pos = land
		e.Distance = path.DistanceAt(f.LandIndex)
		e.Waypoint = f.LandIndex + 1
		if e.Waypoint >= path.Len() {
			e.ReachedGoal = true
		}
		return
	}
	t := f.Progress / length
	normal := Vec2{X: -chord.Y / length, Y: chord.X / length}
	offset := f.Amplitude * math.Sin(math.Pi*f.Waves*t)
	e.Pos = lerpVec(f.From, land, t).Add(normal.Scale(offset))
	e.Distance = f.FromDistance + (path.DistanceAt(f.LandIndex)-f.FromDistance)*t
}

// applyAuras recomputes haste and applies healing from every living aura
// carrier. Carriers do not affect themselves.
func (s *Simulation) applyAuras(dt float64) {
	for _, e := range s.enemies {
		e.Effects.haste = 1
	}
	filter := QueryFilter{Flying: FilterAny, Burrowed: FilterAny}
	for _, src := range s.enemies {
		if !src.Alive() {
			continue
		}
		if a := src.HasteAura; a != nil && a.Amount > 1 {
			s.scratch = s.grid.QueryInto(s.scratch[:0], src.Pos, a.Radius, filter)
			for _, e := range s.scratch {
				if e != src && a.Amount > e.Effects.haste {
					e.Effects.haste = a.Amount
				}
			}
		}
		if a := src.HealAura; a != nil && a.Amount > 0 {
			s.scratch = s.grid.QueryInto(s.scratch[:0], src.Pos, a.Radius, filter)
			for _, e := range s.scratch {
				if e != src {
					s.Heal(e, a.Amount*dt)
				}
			}
		}
	}
	clear(s.scratch)
	s.scratch = s.scratch[:0]
}

func (s *Simulation) childOf(e *Enemy, rec Species) pendingSpawn {
	return pendingSpawn{
		rec:      rec,
		scale:    e.scale,
		mod:      e.mod,
		lane:     e.PathIndex,
		pos:      e.Pos,
		waypoint: e.Waypoint,
		distance: e.Distance,
	}
}

// queueSplit schedules the children of a dying splitter. They enter the
// population after the current tick's iteration.
func (s *Simulation) queueSplit(e *Enemy) {
	if e.Split == nil || e.Split.Spec.Count <= 0 {
		return
	}
	rec, ok := s.species.Get(e.Split.Spec.Species)
	if !ok {
		return
	}
	for i := 0; i < e.Split.Spec.Count; i++ {
		child := s.childOf(e, rec)
		// Fan children out slightly behind the parent so they do not stack.
		back := float64(i) * rec.Radius
		if back > child.distance {
			back = child.distance
		}
		child.distance -= back
		s.pending = append(s.pending, child)
	}
}

func (s *Simulation) queueClone(e *Enemy) {
	rec, _ := s.species.Get(e.Species)
	child := s.childOf(e, rec)
	child.maxHealth = e.MaxHealth / 2
	child.cloned = true
	s.pending = append(s.pending, child)
}
