// internal/playback/clock.go

// Package playback holds the replay clock: the current timeline position,
// the play/pause state and the speed multiplier. The clock never fails;
// out-of-range seeks clamp and running off either end of the timeline
// pauses playback instead of looping.
package playback

import (
	"time"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

// State is the clock's play state.
type State int

const (
	Stopped State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// DefaultSpeeds is the speed multiplier set offered when the configuration
// does not provide one.
var DefaultSpeeds = []float64{1, 2, 5, 10, 30, 60}

// DefaultPadMs is the margin added around narrowed timeline bounds so a
// filtered track does not start at the very edge of the scrub bar.
const DefaultPadMs = 30000

// Clock is the playback state machine. It is driven from the animation
// goroutine only.
type Clock struct {
	state    State
	timeline core.TimelineState
	speeds   []float64
	speed    float64
	padMs    int64
	fracMs   float64 // sub-millisecond remainder carried between ticks
}

// NewClock creates a stopped clock spanning [startMs, endMs] with the
// current position at the start. speeds may be nil for DefaultSpeeds;
// padMs <= 0 selects DefaultPadMs.
func NewClock(startMs, endMs int64, speeds []float64, padMs int64) *Clock {
	if endMs < startMs {
		endMs = startMs
	}
	if len(speeds) == 0 {
		speeds = DefaultSpeeds
	}
	if padMs <= 0 {
		padMs = DefaultPadMs
	}
	return &Clock{
		state: Stopped,
		timeline: core.TimelineState{
			OriginalStartMs: startMs,
			OriginalEndMs:   endMs,
			StartMs:         startMs,
			EndMs:           endMs,
			CurrentMs:       startMs,
		},
		speeds: speeds,
		speed:  speeds[0],
		padMs:  padMs,
	}
}

// Play starts advancing time. No-op while already playing.
func (c *Clock) Play() { c.state = Playing }

// Pause stops advancing time. The current position is kept.
func (c *Clock) Pause() { c.state = Stopped }

// Playing reports whether the clock advances on ticks.
func (c *Clock) Playing() bool { return c.state == Playing }

// State returns the current play state.
func (c *Clock) State() State { return c.state }

// CurrentMs returns the current timeline position.
func (c *Clock) CurrentMs() int64 { return c.timeline.CurrentMs }

// Timeline returns a snapshot of the timeline state.
func (c *Clock) Timeline() core.TimelineState { return c.timeline }

// Speed returns the active speed multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// Speeds returns the configured multiplier set.
func (c *Clock) Speeds() []float64 { return c.speeds }

// SetSpeed selects a multiplier. The value snaps to the nearest configured
// speed by magnitude; a negative argument keeps its sign, which makes the
// clock run backwards until it clamps at the timeline start. Takes effect
// on the next tick.
func (c *Clock) SetSpeed(mult float64) {
	mag := mult
	if mag < 0 {
		mag = -mag
	}
	best := c.speeds[0]
	for _, s := range c.speeds[1:] {
		if diff(mag, s) < diff(mag, best) {
			best = s
		}
	}
	if mult < 0 {
		best = -best
	}
	c.speed = best
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Seek moves the current position, clamped into [start, end]. Works in
// either play state and never fails.
func (c *Clock) Seek(tMs int64) {
	c.timeline.CurrentMs = clamp(tMs, c.timeline.StartMs, c.timeline.EndMs)
	c.fracMs = 0
}

// Rewind jumps back to the timeline start.
func (c *Clock) Rewind() { c.Seek(c.timeline.StartMs) }

// Advance moves the current position by elapsed wall time scaled by the
// speed multiplier. Ticks shorter than a millisecond do not lose time:
// the fractional part of each delta carries over to the next tick.
// Overrunning either bound clamps there and stops playback. No-op unless
// playing.
func (c *Clock) Advance(elapsed time.Duration) {
	if c.state != Playing {
		return
	}
	delta := float64(elapsed)/float64(time.Millisecond)*c.speed + c.fracMs
	deltaMs := int64(delta)
	c.fracMs = delta - float64(deltaMs)
	next := c.timeline.CurrentMs + deltaMs

	switch {
	case next >= c.timeline.EndMs:
		c.timeline.CurrentMs = c.timeline.EndMs
		c.state = Stopped
		c.fracMs = 0
	case next <= c.timeline.StartMs:
		c.timeline.CurrentMs = c.timeline.StartMs
		c.state = Stopped
		c.fracMs = 0
	default:
		c.timeline.CurrentMs = next
	}
}

// NarrowTo shrinks the scrubbing bounds to [startMs, endMs] padded by the
// configured margin and clamped into the original bounds. The current
// position is re-clamped into the new range.
func (c *Clock) NarrowTo(startMs, endMs int64) {
	if endMs < startMs {
		return
	}
	c.timeline.StartMs = clamp(startMs-c.padMs, c.timeline.OriginalStartMs, c.timeline.OriginalEndMs)
	c.timeline.EndMs = clamp(endMs+c.padMs, c.timeline.OriginalStartMs, c.timeline.OriginalEndMs)
	c.timeline.CurrentMs = clamp(c.timeline.CurrentMs, c.timeline.StartMs, c.timeline.EndMs)
}

// RestoreBounds resets the scrubbing bounds to the full dataset interval.
func (c *Clock) RestoreBounds() {
	c.timeline.StartMs = c.timeline.OriginalStartMs
	c.timeline.EndMs = c.timeline.OriginalEndMs
	c.timeline.CurrentMs = clamp(c.timeline.CurrentMs, c.timeline.StartMs, c.timeline.EndMs)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
