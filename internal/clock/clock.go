// Package clock implements the monotone simulation clock shared by every venue
// simulator and the engine's tick loop (spec §4.2).
package clock

import "sort"

// SimClock is a cursor over a sorted, deduplicated set of unix-second timestamps.
// Direct port of original_source/src/engine/clock.rs.
type SimClock struct {
	timestamps []int64
	currentIdx int
}

// New builds a SimClock from an arbitrary timestamp slice, sorting and
// deduplicating it first.
func New(timestamps []int64) *SimClock {
	ts := append([]int64(nil), timestamps...)
	sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	deduped := ts[:0]
	var last int64
	first := true
	for _, t := range ts {
		if first || t != last {
			deduped = append(deduped, t)
			last = t
			first = false
		}
	}
	return &SimClock{timestamps: deduped}
}

// Uniform builds a SimClock over [start, end] stepped by step seconds.
func Uniform(start, end, step int64) *SimClock {
	if step <= 0 {
		step = 1
	}
	var ts []int64
	for t := start; t <= end; t += step {
		ts = append(ts, t)
	}
	return New(ts)
}

// CurrentTimestamp returns 0 if the cursor is out of bounds (empty clock).
func (c *SimClock) CurrentTimestamp() int64 {
	if c.currentIdx < 0 || c.currentIdx >= len(c.timestamps) {
		return 0
	}
	return c.timestamps[c.currentIdx]
}

// Advance moves the cursor forward one step, returning false once exhausted.
func (c *SimClock) Advance() bool {
	if c.currentIdx+1 >= len(c.timestamps) {
		return false
	}
	c.currentIdx++
	return true
}

// TickIndex returns the current cursor position.
func (c *SimClock) TickIndex() int { return c.currentIdx }

// TotalTicks returns the number of distinct timestamps in the clock.
func (c *SimClock) TotalTicks() int { return len(c.timestamps) }

// DtSeconds is 0 at the first tick, else the gap to the previous timestamp.
func (c *SimClock) DtSeconds() int64 {
	if c.currentIdx <= 0 || c.currentIdx >= len(c.timestamps) {
		return 0
	}
	return c.timestamps[c.currentIdx] - c.timestamps[c.currentIdx-1]
}

// DtYears converts DtSeconds to a fraction of a 365-day year, used by simulators
// that accrue yield continuously (spec §4.8's dt_years).
func (c *SimClock) DtYears() float64 {
	const secondsPerYear = 365.0 * 24 * 3600
	return float64(c.DtSeconds()) / secondsPerYear
}

// FirstTimestamp and LastTimestamp return 0 if the clock is empty.
func (c *SimClock) FirstTimestamp() int64 {
	if len(c.timestamps) == 0 {
		return 0
	}
	return c.timestamps[0]
}

func (c *SimClock) LastTimestamp() int64 {
	if len(c.timestamps) == 0 {
		return 0
	}
	return c.timestamps[len(c.timestamps)-1]
}
