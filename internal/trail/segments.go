// internal/trail/segments.go
package trail

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/Changplay12345/flight-animation/internal/geo"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// altitudeBands is the low-to-high color ramp for altitude-banded trail
// segments.
var altitudeBands = []string{
	"#2c7bb6", "#00a6ca", "#00ccbc", "#90eb9d",
	"#ffff8c", "#f9d057", "#f29e2e", "#e76818", "#d7191c",
}

// AltitudeColorScale returns a colorer that maps a segment to its altitude
// band, normalized over the dataset extrema. Segments without altitude get
// the lowest band. A degenerate extrema span maps everything to one band.
func AltitudeColorScale(extrema core.GlobalExtrema) func(a, b core.Sample) string {
	span := extrema.MaxAltitude - extrema.MinAltitude
	return func(a, b core.Sample) string {
		alt, ok := segmentAltitude(a, b)
		if !ok || span <= 0 {
			return altitudeBands[0]
		}
		norm := (alt - extrema.MinAltitude) / span
		idx := int(norm * float64(len(altitudeBands)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(altitudeBands) {
			idx = len(altitudeBands) - 1
		}
		return altitudeBands[idx]
	}
}

// segmentAltitude picks the altitude attributed to the pair, preferring the
// earlier sample.
func segmentAltitude(a, b core.Sample) (float64, bool) {
	if a.HasAltitude {
		return a.Altitude, true
	}
	if b.HasAltitude {
		return b.Altitude, true
	}
	return 0, false
}

// Segment is one renderable trail piece covering the consecutive sample
// pair (Index, Index+1).
type Segment struct {
	Index int
	Color string
	Line  geom.LineString
}

// ID returns the surface handle suffix for this segment.
func (s *Segment) ID() string { return fmt.Sprintf("seg-%d", s.Index) }

// SegmentCache lazily materializes trail segments for one object. A
// segment's geometry and color never change once built, so the window
// manager only attaches and detaches cached segments as the visible range
// slides; nothing is ever recomputed.
type SegmentCache struct {
	samples []core.Sample
	colorer func(a, b core.Sample) string
	built   map[int]*Segment
}

// NewSegmentCache creates an empty cache over a trajectory. colorer may be
// nil, in which case every segment gets the lowest altitude band.
func NewSegmentCache(samples []core.Sample, colorer func(a, b core.Sample) string) *SegmentCache {
	if colorer == nil {
		colorer = func(a, b core.Sample) string { return altitudeBands[0] }
	}
	return &SegmentCache{
		samples: samples,
		colorer: colorer,
		built:   make(map[int]*Segment),
	}
}

// Segment returns the segment for pair (i, i+1), building it on first use.
// Returns nil for an out-of-range index.
func (c *SegmentCache) Segment(i int) *Segment {
	if i < 0 || i+1 >= len(c.samples) {
		return nil
	}
	if s, ok := c.built[i]; ok {
		return s
	}
	a, b := c.samples[i], c.samples[i+1]
	s := &Segment{
		Index: i,
		Color: c.colorer(a, b),
		Line:  geo.SegmentLine(a, b),
	}
	c.built[i] = s
	return s
}

// BuiltCount returns how many segments have been materialized so far.
func (c *SegmentCache) BuiltCount() int { return len(c.built) }
