package realtime

import "time"

// Cadence describes an escalating tick interval: every Cycle of elapsed time the
// interval shrinks by Step, starting at Base and never going below Floor.
// It holds no game state; loops ask it for the interval to wait next.
type Cadence struct {
	Base  time.Duration
	Step  time.Duration
	Floor time.Duration
	Cycle time.Duration
}

// DefaultCadence starts at one tick per second and speeds up every 10s.
var DefaultCadence = Cadence{
	Base:  time.Second,
	Step:  100 * time.Millisecond,
	Floor: 100 * time.Millisecond,
	Cycle: 10 * time.Second,
}

// Level returns the number of completed cycles after elapsed.
func (c Cadence) Level(elapsed time.Duration) int {
	if c.Cycle <= 0 || elapsed <= 0 {
		return 0
	}
	return int(elapsed / c.Cycle)
}

// Interval returns the tick interval in effect after elapsed.
func (c Cadence) Interval(elapsed time.Duration) time.Duration {
	interval := c.Base - time.Duration(c.Level(elapsed))*c.Step
	if interval < c.Floor {
		interval = c.Floor
	}
	if interval <= 0 {
		// A zero floor would spin the loop.
		interval = time.Millisecond
	}
	return interval
}

// Next returns the next wake time given the previous deadline and the moment
// the cadence started.
func (c Cadence) Next(prev time.Time, started time.Time) time.Time {
	return prev.Add(c.Interval(prev.Sub(started)))
}
