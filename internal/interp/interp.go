// internal/interp/interp.go

// Package interp maps a trajectory and a query time to an instantaneous
// object state. It is pure computation on the animation goroutine's hot
// path: no allocation beyond the returned value, no errors. Degenerate
// inputs (empty sequence, single sample, zero-length bracket) fall back to
// defined values instead of failing.
package interp

import (
	"sort"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

// DefaultGraceMs is how far outside an object's active interval a query may
// fall while the endpoint state is still considered presentable. Beyond it
// the caller hides the marker instead of pinning it to the track end.
const DefaultGraceMs = 30000

// maxForwardScan bounds the linear bracket search. Monotonically advancing
// playback resolves in a step or two; anything further means the clock
// jumped, and a binary search is cheaper than walking the sequence.
const maxForwardScan = 32

// Cursor caches the last bracket index for one object. Queries with
// monotonically increasing time are then amortized O(1). A Cursor is only
// an optimization: the zero value is always valid, and Reset returns it to
// that state.
type Cursor struct {
	idx int
}

// Reset discards the cached bracket position.
func (c *Cursor) Reset() { c.idx = 0 }

// Interpolate returns the instantaneous state of an object at queryMs.
// ok is false only for an empty sequence.
//
// Outside the active interval the nearest endpoint sample is returned with
// AtEdge set; WithinGrace says whether the overshoot is within graceMs
// (pass <= 0 to use DefaultGraceMs). Inside the interval lat/lon are
// linearly interpolated across the bracketing pair, while heading and
// altitude step from the earlier sample: headings are directional legs and
// altitude reporting is discrete, so blending either just manufactures
// values that were never observed.
func Interpolate(samples []core.Sample, queryMs int64, graceMs int64, cur *Cursor) (core.InstantState, bool) {
	if len(samples) == 0 {
		return core.InstantState{}, false
	}
	if graceMs <= 0 {
		graceMs = DefaultGraceMs
	}

	first, last := samples[0], samples[len(samples)-1]
	if queryMs <= first.TimeMs {
		st := edgeState(first, queryMs, first.TimeMs-queryMs, graceMs)
		if cur != nil {
			cur.idx = 0
		}
		return st, true
	}
	if queryMs >= last.TimeMs {
		st := edgeState(last, queryMs, queryMs-last.TimeMs, graceMs)
		if cur != nil {
			cur.idx = len(samples) - 1
		}
		return st, true
	}

	i := bracket(samples, queryMs, cur)
	a, b := samples[i], samples[i+1]

	var ratio float64
	if dt := b.TimeMs - a.TimeMs; dt > 0 {
		ratio = float64(queryMs-a.TimeMs) / float64(dt)
	}

	st := core.InstantState{
		TimeMs:          queryMs,
		Lat:             a.Lat + ratio*(b.Lat-a.Lat),
		Lon:             a.Lon + ratio*(b.Lon-a.Lon),
		Heading:         a.Heading,
		Altitude:        a.Altitude,
		HasAltitude:     a.HasAltitude,
		Callsign:        a.Callsign,
		GroundSpeed:     a.GroundSpeed,
		MagneticHeading: a.MagneticHeading,
		VerticalRate:    a.VerticalRate,
		VerticalTrend:   a.VerticalTrend,
	}

	// Sparse event-like fields may be legitimately absent at one endpoint
	// of the bracket. Take the earlier sample's value and fall back to the
	// later one when it is zero/unset — never the other way around, or
	// climb/descend indication inverts while crossing the bracket.
	if st.VerticalRate == 0 {
		st.VerticalRate = b.VerticalRate
	}
	if st.VerticalTrend == core.TrendUnknown {
		st.VerticalTrend = b.VerticalTrend
	}
	if st.Callsign == "" {
		st.Callsign = b.Callsign
	}
	if st.GroundSpeed == 0 {
		st.GroundSpeed = b.GroundSpeed
	}
	if st.MagneticHeading == 0 {
		st.MagneticHeading = b.MagneticHeading
	}
	if !st.HasAltitude && b.HasAltitude {
		st.Altitude = b.Altitude
		st.HasAltitude = true
	}
	return st, true
}

func edgeState(s core.Sample, queryMs, overshootMs, graceMs int64) core.InstantState {
	return core.InstantState{
		TimeMs:          queryMs,
		Lat:             s.Lat,
		Lon:             s.Lon,
		Heading:         s.Heading,
		Altitude:        s.Altitude,
		HasAltitude:     s.HasAltitude,
		Callsign:        s.Callsign,
		GroundSpeed:     s.GroundSpeed,
		MagneticHeading: s.MagneticHeading,
		VerticalRate:    s.VerticalRate,
		VerticalTrend:   s.VerticalTrend,
		AtEdge:          true,
		WithinGrace:     overshootMs <= graceMs,
	}
}

// bracket locates i such that samples[i].TimeMs <= q < samples[i+1].TimeMs.
// The caller has already excluded queries at or beyond the endpoints.
func bracket(samples []core.Sample, q int64, cur *Cursor) int {
	i := 0
	if cur != nil {
		i = cur.idx
	}
	if i < 0 || i > len(samples)-2 {
		i = 0
	}

	if samples[i].TimeMs > q {
		// Time moved backwards past the cache; reseek from scratch.
		i = searchBracket(samples, q)
	} else {
		steps := 0
		for samples[i+1].TimeMs <= q {
			i++
			steps++
			if steps > maxForwardScan {
				i = searchBracket(samples, q)
				break
			}
		}
	}

	if cur != nil {
		cur.idx = i
	}
	return i
}

func searchBracket(samples []core.Sample, q int64) int {
	// First index with time > q, minus one.
	i := sort.Search(len(samples), func(k int) bool {
		return samples[k].TimeMs > q
	})
	if i == 0 {
		return 0
	}
	return i - 1
}
