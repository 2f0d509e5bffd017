package kestrel

import (
	"math"
	"time"
)

// FixedStep is the fixed-phase step size H (spec §4.1).
const FixedStep = 1.0 / 60.0

// maxFixedIterations caps the fixed-phase loop per frame at 8 iterations
// (spec §4.1, §8 "Fixed-step spiral"): beyond that, surplus accumulator is
// discarded and a stutter event is recorded instead of spiraling.
const maxFixedIterations = 8

// Clock yields a monotonic (dt_variable, elapsed) pair once per frame.
type Clock struct {
	start   time.Time
	last    time.Time
	elapsed time.Duration
}

// NewClock starts a clock at the current instant.
func NewClock() *Clock {
	now := time.Now()
	return &Clock{start: now, last: now}
}

// Tick advances the clock and returns the variable frame delta in seconds.
// A non-finite or negative delta is clamped to 0. Tick does not report
// that a clamp happened, and such a clamp is not counted as a stutter.
func (c *Clock) Tick() (dtVariable float64, elapsed time.Duration) {
	now := time.Now()
	dt := now.Sub(c.last).Seconds()
	c.last = now
	c.elapsed = now.Sub(c.start)

	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		dt = 0
	}
	return dt, c.elapsed
}

// FixedStepAccumulator converts a variable frame delta into zero or more
// fixed-size ticks of FixedStep seconds, capping the iteration count to
// avoid the spiral-of-death on long hitches.
type FixedStepAccumulator struct {
	StepSize   float64
	accumulator float64
	StutterCount int
}

func NewFixedStepAccumulator() *FixedStepAccumulator {
	return &FixedStepAccumulator{StepSize: FixedStep}
}

// Advance feeds a variable dt in and returns the number of fixed ticks to
// run this frame. Iterations beyond maxFixedIterations are dropped and the
// accumulator is reset, recording a stutter.
func (a *FixedStepAccumulator) Advance(dtVariable float64) int {
	if a.StepSize <= 0 {
		a.StepSize = FixedStep
	}
	a.accumulator += dtVariable

	ticks := 0
	for a.accumulator >= a.StepSize && ticks < maxFixedIterations {
		a.accumulator -= a.StepSize
		ticks++
	}

	if a.accumulator >= a.StepSize {
		// Still over budget after the cap: drop the remainder and log a
		// stutter rather than ever running more than maxFixedIterations
		// fixed phases in one frame.
		a.accumulator = 0
		a.StutterCount++
	}
	return ticks
}

// Time is the per-frame timing resource systems read dt/elapsed from.
type Time struct {
	Dt          float64 // variable-phase delta, seconds
	FixedDt     float64 // fixed-phase delta, seconds (always FixedStep)
	Elapsed     time.Duration
	FrameCount  uint64
	FixedTicks  int
	StutterTotal int
}
