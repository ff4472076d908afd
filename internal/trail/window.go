// internal/trail/window.go

// Package trail computes which contiguous sub-range of an object's samples
// is visible as its historical trail at the current playback time. Windows
// cache their previous scan positions, so advancing time only inspects the
// few samples that entered or left the range instead of rescanning the
// whole trajectory every tick.
package trail

import "github.com/Changplay12345/flight-animation/pkg/core"

// Mode selects how much history stays visible.
type Mode int

const (
	// ModeFull keeps the entire history up to the current time.
	ModeFull Mode = iota
	// ModeDecay keeps only the trailing decay window.
	ModeDecay
)

// DefaultDecayMs is the decaying-trail span used when the configuration
// does not provide one.
const DefaultDecayMs = 60000

// Range is an inclusive index range into a sample sequence.
type Range struct {
	Start int
	End   int
}

// Empty reports whether the range holds no samples. This is the
// fully-decayed condition: right after a seek into a gap the newest sample
// can be older than the whole decay window, leaving Start > End. The
// renderer must remove the trail rather than draw a zero-length one.
func (r Range) Empty() bool { return r.Start > r.End }

// Len returns the number of samples in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Window is the per-object cached scan state. The zero value is ready to
// use. A Window is only valid for the sample sequence it was first updated
// with; Reset it when the trajectory is replaced.
type Window struct {
	end        int
	start      int
	lastTimeMs int64
	primed     bool
}

// Reset discards all cached scan positions.
func (w *Window) Reset() {
	*w = Window{}
}

// Update returns the visible sample range at currentMs. decayMs <= 0
// selects DefaultDecayMs. Calling Update again with an unchanged time
// returns the identical range.
func (w *Window) Update(samples []core.Sample, currentMs int64, mode Mode, decayMs int64) Range {
	if len(samples) == 0 {
		return Range{Start: 0, End: -1}
	}
	if decayMs <= 0 {
		decayMs = DefaultDecayMs
	}

	// The start scan is forward-only; once time moves backwards its cached
	// position may sit past the correct answer and must restart from zero.
	// The end scan walks in both directions and needs no such reset.
	if w.primed && currentMs < w.lastTimeMs {
		w.start = 0
	}

	w.updateEnd(samples, currentMs)

	if mode == ModeFull {
		w.start = 0
	} else {
		w.updateStart(samples, currentMs-decayMs)
	}

	w.lastTimeMs = currentMs
	w.primed = true
	return Range{Start: w.start, End: w.end}
}

// updateEnd moves the cached end index so it is the largest index with
// sample time <= currentMs, or -1 when even the first sample is still in
// the future. Walks from the previous position in either direction, which
// handles forward playback and backward seeks alike.
func (w *Window) updateEnd(samples []core.Sample, currentMs int64) {
	end := w.end
	if !w.primed || end < -1 || end >= len(samples) {
		end = -1
	}
	for end+1 < len(samples) && samples[end+1].TimeMs <= currentMs {
		end++
	}
	for end >= 0 && samples[end].TimeMs > currentMs {
		end--
	}
	w.end = end
}

// updateStart moves the cached start index to the smallest index with
// sample time >= cutoffMs. Only ever advances; Update resets it to zero
// first when time jumped backwards.
func (w *Window) updateStart(samples []core.Sample, cutoffMs int64) {
	start := w.start
	if !w.primed || start < 0 || start > len(samples) {
		start = 0
	}
	for start < len(samples) && samples[start].TimeMs < cutoffMs {
		start++
	}
	w.start = start
}
