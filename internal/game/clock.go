package game

// FixedStep converts wall-clock time into a whole number of simulation steps.
type FixedStep struct {
	Step     float64
	MaxSteps int

	acc     float64
	dropped float64
}

// NewFixedStep returns an accumulator at the simulation rate.
func NewFixedStep() *FixedStep {
	return &FixedStep{Step: Dt, MaxSteps: MaxStepsPerRun}
}

// Advance adds elapsed seconds and returns how many fixed steps are due.
// Time beyond MaxSteps is discarded so a long stall cannot cause a spiral of
// catch-up work.
func (f *FixedStep) Advance(elapsed float64) int {
	if f.Step <= 0 {
		return 0
	}
	if elapsed > 0 {
		f.acc += elapsed
	}
	steps := int(f.acc/f.Step + 1e-9)
	f.acc -= float64(steps) * f.Step
	if f.acc < 0 {
		f.acc = 0
	}
	if f.MaxSteps > 0 && steps > f.MaxSteps {
		f.dropped += float64(steps-f.MaxSteps) * f.Step
		steps = f.MaxSteps
	}
	return steps
}

// Dropped reports the total simulated time discarded so far.
func (f *FixedStep) Dropped() float64 { return f.dropped }
