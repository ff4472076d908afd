// internal/store/store.go

// Package store holds the loaded trajectory data: one time-ordered sample
// sequence per object key, per-object display metadata, and dataset-wide
// extrema. A Store is built once per dataset load and its trajectories are
// never mutated afterwards; only ObjectMeta changes in response to
// visibility and filter commands. All access happens on the animation
// goroutine, so there is no locking here.
package store

import (
	"sort"

	"github.com/Changplay12345/flight-animation/internal/geo"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// MinSeparationMeters is the minimum projected distance between two
// consecutive kept samples. Closer samples are dropped at load time to
// bound sequence length without losing track shape. The first and last
// sample of every object are always kept.
const MinSeparationMeters = 200.0

// palette is the fixed marker color cycle. Objects are colored by load
// order, so a reloaded dataset gets identical colors.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	"#aaffc3", "#808000", "#ffd8b1", "#000075", "#808080",
}

// Trajectory is the cleaned, time-ordered sample history of one object.
type Trajectory []core.Sample

// StartMs returns the time of the first sample.
func (t Trajectory) StartMs() int64 { return t[0].TimeMs }

// EndMs returns the time of the last sample.
func (t Trajectory) EndMs() int64 { return t[len(t)-1].TimeMs }

// LoadSummary counts what the cleaning pass did. It is informational only;
// malformed rows are never surfaced as errors.
type LoadSummary struct {
	Objects        int
	Samples        int
	DroppedSamples int
	DroppedObjects int
}

// Store is the immutable-per-load trajectory aggregate.
type Store struct {
	trajectories map[string]Trajectory
	meta         map[string]*core.ObjectMeta
	order        []string
	extrema      core.GlobalExtrema
}

// Load builds a Store from raw ingestion records. Records may arrive in any
// order; they are grouped by key and sorted by time (stable, so equal times
// keep their input order). Rows with non-finite coordinates are dropped,
// objects left with zero valid samples are omitted, and an input with zero
// valid objects yields an empty but usable Store.
func Load(records []core.SampleRecord) (*Store, LoadSummary) {
	groups := make(map[string][]core.SampleRecord)
	var order []string
	for _, r := range records {
		if r.Key == "" {
			continue
		}
		if _, seen := groups[r.Key]; !seen {
			order = append(order, r.Key)
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	s := &Store{
		trajectories: make(map[string]Trajectory, len(groups)),
		meta:         make(map[string]*core.ObjectMeta, len(groups)),
		extrema: core.GlobalExtrema{
			MinAltitude: 0,
			MaxAltitude: 0,
		},
	}

	var summary LoadSummary
	altSeen := false

	for _, key := range order {
		recs := groups[key]
		traj, dropped := buildTrajectory(recs)
		summary.DroppedSamples += dropped
		if len(traj) == 0 {
			summary.DroppedObjects++
			continue
		}

		idx := len(s.order)
		s.order = append(s.order, key)
		s.trajectories[key] = traj
		s.meta[key] = buildMeta(recs, palette[idx%len(palette)])

		summary.Samples += len(traj)
		for _, smp := range traj {
			if !smp.HasAltitude {
				continue
			}
			if !altSeen || smp.Altitude < s.extrema.MinAltitude {
				s.extrema.MinAltitude = smp.Altitude
			}
			if !altSeen || smp.Altitude > s.extrema.MaxAltitude {
				s.extrema.MaxAltitude = smp.Altitude
			}
			altSeen = true
		}
	}

	summary.Objects = len(s.order)
	s.extrema.TotalSampleCount = summary.Samples
	return s, summary
}

// buildTrajectory cleans, sorts, deduplicates and converts one object's
// records. Returns the trajectory and the number of dropped rows.
func buildTrajectory(recs []core.SampleRecord) (Trajectory, int) {
	valid := make([]core.SampleRecord, 0, len(recs))
	for _, r := range recs {
		if !geo.IsFinite(r.Lat) || !geo.IsFinite(r.Lon) {
			continue
		}
		valid = append(valid, r)
	}
	dropped := len(recs) - len(valid)

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].TimeMs < valid[j].TimeMs
	})

	// Distance dedup: keep a sample only when it has moved at least
	// MinSeparationMeters from the last kept one. Endpoints always survive
	// so the active interval [t0, tN] is preserved.
	kept := make([]core.SampleRecord, 0, len(valid))
	for i, r := range valid {
		if i == 0 || i == len(valid)-1 {
			kept = append(kept, r)
			continue
		}
		last := kept[len(kept)-1]
		if geo.DistanceMeters(last.Lat, last.Lon, r.Lat, r.Lon) >= MinSeparationMeters {
			kept = append(kept, r)
		} else {
			dropped++
		}
	}

	traj := make(Trajectory, len(kept))
	for i, r := range kept {
		traj[i] = recordToSample(r)
	}
	fillHeadings(traj, kept)
	return traj, dropped
}

func recordToSample(r core.SampleRecord) core.Sample {
	s := core.Sample{
		TimeMs: r.TimeMs,
		Lat:    r.Lat,
		Lon:    r.Lon,
	}
	if r.Altitude != nil && geo.IsFinite(*r.Altitude) {
		s.Altitude = *r.Altitude
		s.HasAltitude = true
	}
	if r.Callsign != nil {
		s.Callsign = *r.Callsign
	}
	if r.GroundSpeed != nil {
		s.GroundSpeed = *r.GroundSpeed
	}
	if r.MagneticHeading != nil {
		s.MagneticHeading = *r.MagneticHeading
	}
	if r.VerticalRate != nil {
		s.VerticalRate = *r.VerticalRate
	}
	if r.VerticalTrend != nil {
		s.VerticalTrend = core.ParseVerticalTrend(*r.VerticalTrend)
	}
	return s
}

// fillHeadings assigns each sample a heading: the reported one when present,
// otherwise the bearing to the next sample. The last sample inherits the
// heading before it, so the marker does not spin on the final leg.
func fillHeadings(traj Trajectory, recs []core.SampleRecord) {
	prev := 0.0
	for i := range traj {
		switch {
		case recs[i].Heading != nil && geo.IsFinite(*recs[i].Heading):
			traj[i].Heading = geo.NormalizeHeading(*recs[i].Heading)
		case i < len(traj)-1:
			traj[i].Heading = geo.Bearing(
				traj[i].Lat, traj[i].Lon, traj[i+1].Lat, traj[i+1].Lon)
		default:
			traj[i].Heading = prev
		}
		prev = traj[i].Heading
	}
}

func buildMeta(recs []core.SampleRecord, color string) *core.ObjectMeta {
	m := &core.ObjectMeta{
		Color:   color,
		Visible: true,
	}
	for _, r := range recs {
		if m.AircraftType == "" && r.AircraftType != nil {
			m.AircraftType = *r.AircraftType
		}
		if m.Origin == "" && r.Origin != nil {
			m.Origin = *r.Origin
		}
		if m.Destination == "" && r.Destination != nil {
			m.Destination = *r.Destination
		}
	}
	return m
}

// Objects returns all object keys in load order.
func (s *Store) Objects() []string { return s.order }

// Len returns the number of loaded objects.
func (s *Store) Len() int { return len(s.order) }

// Trajectory returns the sample sequence for a key.
func (s *Store) Trajectory(key string) (Trajectory, bool) {
	t, ok := s.trajectories[key]
	return t, ok
}

// Meta returns the mutable display metadata for a key, or nil.
func (s *Store) Meta(key string) *core.ObjectMeta {
	return s.meta[key]
}

// Extrema returns the dataset-wide aggregates.
func (s *Store) Extrema() core.GlobalExtrema { return s.extrema }

// SetVisible sets one object's visibility. Unknown keys are ignored.
func (s *Store) SetVisible(key string, visible bool) {
	if m, ok := s.meta[key]; ok {
		m.Visible = visible
	}
}

// SetAllVisible sets every object's visibility.
func (s *Store) SetAllVisible(visible bool) {
	for _, m := range s.meta {
		m.Visible = visible
	}
}

// InvertVisible flips every object's visibility.
func (s *Store) InvertVisible() {
	for _, m := range s.meta {
		m.Visible = !m.Visible
	}
}

// ApplyFilter shows exactly the given keys and hides everything else.
func (s *Store) ApplyFilter(keys []string) {
	match := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		match[k] = struct{}{}
	}
	for key, m := range s.meta {
		_, ok := match[key]
		m.Visible = ok
	}
}

// VisibleBounds returns the union of the visible objects' active intervals.
// ok is false when nothing is visible.
func (s *Store) VisibleBounds() (startMs, endMs int64, ok bool) {
	for _, key := range s.order {
		if !s.meta[key].Visible {
			continue
		}
		t := s.trajectories[key]
		if !ok || t.StartMs() < startMs {
			startMs = t.StartMs()
		}
		if !ok || t.EndMs() > endMs {
			endMs = t.EndMs()
		}
		ok = true
	}
	return startMs, endMs, ok
}

// Bounds returns the full dataset time bounds. ok is false for an empty
// Store.
func (s *Store) Bounds() (startMs, endMs int64, ok bool) {
	for _, key := range s.order {
		t := s.trajectories[key]
		if !ok || t.StartMs() < startMs {
			startMs = t.StartMs()
		}
		if !ok || t.EndMs() > endMs {
			endMs = t.EndMs()
		}
		ok = true
	}
	return startMs, endMs, ok
}
