// internal/render/dispatcher.go

// Package render reconciles the desired visual state of every object
// against what is currently on the rendering surface and emits only the
// differences. Marker motion and trail geometry run at two independent
// cadences gated inside a single frame callback, so per-frame cost stays
// proportional to what actually changed rather than to dataset size.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Changplay12345/flight-animation/internal/geo"
	"github.com/Changplay12345/flight-animation/internal/interp"
	"github.com/Changplay12345/flight-animation/internal/playback"
	"github.com/Changplay12345/flight-animation/internal/store"
	"github.com/Changplay12345/flight-animation/internal/trail"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// FocusColor overrides the palette color of objects matched by an active
// focus filter.
const FocusColor = "#ffd700"

// Config holds the dispatcher cadences and trail behavior.
type Config struct {
	MarkerHz  float64
	TrailHz   float64
	GraceMs   int64
	DecayMs   int64
	TrailMode trail.Mode
}

// DefaultConfig matches the configuration defaults: markers near display
// rate, trails at a fraction of it.
func DefaultConfig() Config {
	return Config{
		MarkerHz:  120,
		TrailHz:   20,
		GraceMs:   interp.DefaultGraceMs,
		DecayMs:   trail.DefaultDecayMs,
		TrailMode: trail.ModeDecay,
	}
}

// Context is the per-frame view of the world handed to both cadences. It
// is assembled by the frame driver each tick; the dispatcher holds no
// reference to it between frames.
type Context struct {
	Clock *playback.Clock
	Store *store.Store
	View  ViewTransform
}

// objectState is the dispatcher's per-object cache: interpolation cursor,
// window scan state, lazily built segments, and the visual state last
// pushed to the surface.
type objectState struct {
	cursor interp.Cursor
	window trail.Window
	segs   *trail.SegmentCache

	markerShown bool
	hasPos      bool
	lastLat     float64
	lastLon     float64
	lastStyle   MarkerStyle
	styleEpoch  uint64
	styleSent   bool

	attached     trail.Range // currently attached segment index range
	trailOnGPU   bool
	fullTrailEnd int    // last end index pushed in full-trail mode
	trailEpoch   uint64 // epoch the full-trail line was pushed under
}

// Dispatcher diffs desired against rendered state and pushes deltas to a
// Surface.
type Dispatcher struct {
	surface Surface
	log     *slog.Logger
	cfg     Config

	epoch   uint64
	focus   string // airport code; empty = no focus
	objects map[string]*objectState

	markerInterval time.Duration
	trailInterval  time.Duration
	lastMarkerRun  time.Time
	lastTrailRun   time.Time

	// OTel metrics
	markerMoves    metric.Int64Counter
	styleSkips     metric.Int64Counter
	segmentDeltas  metric.Int64Counter
	framesRendered metric.Int64Counter

	// Cumulative counts mirroring the instruments above, readable from
	// outside the frame goroutine by the status monitor.
	markerMoveCount   atomic.Uint64
	segmentDeltaCount atomic.Uint64
	frameCount        atomic.Uint64
}

// Counters is a snapshot of the cumulative delta counts.
type Counters struct {
	MarkerMoves   uint64
	SegmentDeltas uint64
	Frames        uint64
}

// Counters returns the cumulative delta counts since creation or Reset.
func (d *Dispatcher) Counters() Counters {
	return Counters{
		MarkerMoves:   d.markerMoveCount.Load(),
		SegmentDeltas: d.segmentDeltaCount.Load(),
		Frames:        d.frameCount.Load(),
	}
}

// New creates a Dispatcher writing to the given surface. Metrics use the
// global OTel meter (no-op when not configured).
func New(surface Surface, log *slog.Logger, cfg Config) (*Dispatcher, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MarkerHz <= 0 {
		cfg.MarkerHz = DefaultConfig().MarkerHz
	}
	if cfg.TrailHz <= 0 {
		cfg.TrailHz = DefaultConfig().TrailHz
	}

	d := &Dispatcher{
		surface:        surface,
		log:            log,
		cfg:            cfg,
		objects:        make(map[string]*objectState),
		markerInterval: time.Duration(float64(time.Second) / cfg.MarkerHz),
		trailInterval:  time.Duration(float64(time.Second) / cfg.TrailHz),
	}

	m := meter()
	var err error

	d.markerMoves, err = m.Int64Counter(
		"render.marker.moves",
		metric.WithDescription("Marker position deltas emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating marker move counter: %w", err)
	}

	d.styleSkips, err = m.Int64Counter(
		"render.marker.style_skips",
		metric.WithDescription("Icon regenerations avoided by the style cache"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating style skip counter: %w", err)
	}

	d.segmentDeltas, err = m.Int64Counter(
		"render.trail.segment_deltas",
		metric.WithDescription("Trail segment attach/detach operations emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating segment delta counter: %w", err)
	}

	d.framesRendered, err = m.Int64Counter(
		"render.frames",
		metric.WithDescription("Frame callbacks that performed marker work"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frame counter: %w", err)
	}

	return d, nil
}

// Epoch returns the current style cache epoch.
func (d *Dispatcher) Epoch() uint64 { return d.epoch }

// BumpEpoch invalidates every cached marker style and segment color
// decision at once. Cheap bulk invalidation for theme or palette changes.
func (d *Dispatcher) BumpEpoch() { d.epoch++ }

// SetFocus force-hides all objects not touching the given airport and
// recolors the matching ones. Passing the active focus again is a no-op.
func (d *Dispatcher) SetFocus(airport string) {
	if d.focus == airport {
		return
	}
	d.focus = airport
	d.BumpEpoch()
}

// ClearFocus removes the focus override.
func (d *Dispatcher) ClearFocus() { d.SetFocus("") }

// Focus returns the active focus airport, or empty.
func (d *Dispatcher) Focus() string { return d.focus }

// Reset drops every per-object cache and detaches all surface handles.
// Call when the trajectory store is replaced.
func (d *Dispatcher) Reset() {
	d.Teardown()
	d.objects = make(map[string]*objectState)
	d.lastMarkerRun = time.Time{}
	d.lastTrailRun = time.Time{}
	d.markerMoveCount.Store(0)
	d.segmentDeltaCount.Store(0)
	d.frameCount.Store(0)
}

// Frame runs one callback invocation at wall time now. The clock must
// already be advanced for this tick, so every object renders against a
// single consistent timestamp. Marker work runs when its (short) interval
// has elapsed, trail work when its longer one has; neither ever runs
// concurrently with the other.
func (d *Dispatcher) Frame(ctx Context, now time.Time) {
	if ctx.Clock == nil || ctx.Store == nil {
		return
	}
	currentMs := ctx.Clock.CurrentMs()

	if now.Sub(d.lastMarkerRun) >= d.markerInterval {
		d.updateMarkers(ctx, currentMs)
		d.lastMarkerRun = now
		d.framesRendered.Add(context.Background(), 1)
		d.frameCount.Add(1)
	}
	if now.Sub(d.lastTrailRun) >= d.trailInterval {
		d.updateTrails(ctx, currentMs)
		d.lastTrailRun = now
	}
}

// state returns the per-object cache, creating it on first sight.
func (d *Dispatcher) state(ctx Context, key string) *objectState {
	st, ok := d.objects[key]
	if !ok {
		traj, _ := ctx.Store.Trajectory(key)
		st = &objectState{
			segs:         trail.NewSegmentCache(traj, trail.AltitudeColorScale(ctx.Store.Extrema())),
			attached:     trail.Range{Start: 0, End: -1},
			fullTrailEnd: -1,
		}
		d.objects[key] = st
	}
	return st
}

// renderable decides whether an object produces geometry at all, taking
// the focus override and the visibility flag into account.
func (d *Dispatcher) renderable(meta *core.ObjectMeta) bool {
	if meta == nil || !meta.Visible {
		return false
	}
	if d.focus != "" && meta.Origin != d.focus && meta.Destination != d.focus {
		return false
	}
	return true
}

// objectColor is the marker/trail color honoring the focus override.
func (d *Dispatcher) objectColor(meta *core.ObjectMeta) string {
	if d.focus != "" {
		return FocusColor
	}
	return meta.Color
}

func (d *Dispatcher) updateMarkers(ctx Context, currentMs int64) {
	for _, key := range ctx.Store.Objects() {
		meta := ctx.Store.Meta(key)
		st := d.state(ctx, key)

		if !d.renderable(meta) {
			d.hideMarker(key, st)
			continue
		}

		traj, ok := ctx.Store.Trajectory(key)
		if !ok {
			d.hideMarker(key, st)
			continue
		}

		inst, ok := interp.Interpolate(traj, currentMs, d.cfg.GraceMs, &st.cursor)
		if !ok || (inst.AtEdge && !inst.WithinGrace) {
			d.hideMarker(key, st)
			continue
		}

		if !st.hasPos || inst.Lat != st.lastLat || inst.Lon != st.lastLon {
			d.try("move marker", d.surface.MoveMarker(key, inst.Lat, inst.Lon))
			st.lastLat, st.lastLon = inst.Lat, inst.Lon
			st.hasPos = true
			d.markerMoves.Add(context.Background(), 1)
			d.markerMoveCount.Add(1)
		}

		style := MarkerStyle{
			Color:       d.objectColor(meta),
			RotationDeg: geo.NormalizeHeading(inst.Heading + ctx.View.RotationDeg),
			Label:       inst.Callsign,
		}
		if !st.styleSent || st.styleEpoch != d.epoch || style != st.lastStyle {
			d.try("style marker", d.surface.StyleMarker(key, style))
			st.lastStyle = style
			st.styleEpoch = d.epoch
			st.styleSent = true
		} else {
			d.styleSkips.Add(context.Background(), 1)
		}

		if !st.markerShown {
			d.try("show marker", d.surface.ShowMarker(key))
			st.markerShown = true
		}
	}
}

func (d *Dispatcher) hideMarker(key string, st *objectState) {
	if !st.markerShown {
		return
	}
	d.try("hide marker", d.surface.HideMarker(key))
	st.markerShown = false
}

func (d *Dispatcher) updateTrails(ctx Context, currentMs int64) {
	for _, key := range ctx.Store.Objects() {
		meta := ctx.Store.Meta(key)
		st := d.state(ctx, key)

		if !d.renderable(meta) {
			d.clearTrail(key, st)
			continue
		}

		traj, ok := ctx.Store.Trajectory(key)
		if !ok {
			d.clearTrail(key, st)
			continue
		}

		r := st.window.Update(traj, currentMs, d.cfg.TrailMode, d.cfg.DecayMs)
		if r.Empty() {
			// Fully decayed: remove rather than draw a zero-length trail.
			d.clearTrail(key, st)
			continue
		}

		if d.cfg.TrailMode == trail.ModeFull {
			d.updateFullTrail(key, st, meta, traj, r)
		} else {
			d.updateDecayTrail(key, st, r)
		}
	}
}

// updateFullTrail pushes the complete pre-materialized vertex list, but
// only when the visible end has moved or the epoch changed since the last
// push. The epoch is tracked separately from the marker cadence's stamp:
// markers run first within a frame and would otherwise absorb the bump
// before trail work sees it.
func (d *Dispatcher) updateFullTrail(key string, st *objectState, meta *core.ObjectMeta, traj store.Trajectory, r trail.Range) {
	if st.trailOnGPU && st.fullTrailEnd == r.End && st.trailEpoch == d.epoch {
		return
	}
	line := geo.LineString(traj[:r.End+1])
	d.try("set trail line", d.surface.SetTrailLine(key, line, d.objectColor(meta)))
	st.trailOnGPU = true
	st.fullTrailEnd = r.End
	st.trailEpoch = d.epoch
}

// updateDecayTrail diffs the attached segment range against the new window
// and emits only attach/detach deltas. Segment geometry comes from the
// per-object cache and is never recomputed. Segments keep their altitude
// band colors under an active focus; the focus recolor applies to markers
// and full-trail lines only.
func (d *Dispatcher) updateDecayTrail(key string, st *objectState, r trail.Range) {
	// Sample range [Start,End] renders as segment indices [Start, End-1].
	newSegs := trail.Range{Start: r.Start, End: r.End - 1}
	old := st.attached

	if newSegs.Empty() {
		d.clearTrail(key, st)
		return
	}

	if old.Empty() || old.End < newSegs.Start-1 || old.Start > newSegs.End+1 {
		// Disjoint ranges: replace wholesale.
		if st.trailOnGPU {
			d.try("clear trail", d.surface.ClearTrail(key))
		}
		for i := newSegs.Start; i <= newSegs.End; i++ {
			d.attachSegment(key, st, i)
		}
	} else {
		for i := old.Start; i < newSegs.Start; i++ {
			d.try("detach segment", d.surface.DetachSegment(key, i))
			d.segmentDeltas.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", "detach")))
			d.segmentDeltaCount.Add(1)
		}
		for i := newSegs.End + 1; i <= old.End; i++ {
			d.try("detach segment", d.surface.DetachSegment(key, i))
			d.segmentDeltas.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", "detach")))
			d.segmentDeltaCount.Add(1)
		}
		for i := newSegs.Start; i < old.Start; i++ {
			d.attachSegment(key, st, i)
		}
		for i := old.End + 1; i <= newSegs.End; i++ {
			d.attachSegment(key, st, i)
		}
	}

	st.attached = newSegs
	st.trailOnGPU = true
}

func (d *Dispatcher) attachSegment(key string, st *objectState, i int) {
	seg := st.segs.Segment(i)
	if seg == nil {
		return
	}
	d.try("attach segment", d.surface.AttachSegment(key, seg))
	d.segmentDeltas.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", "attach")))
	d.segmentDeltaCount.Add(1)
}

func (d *Dispatcher) clearTrail(key string, st *objectState) {
	if !st.trailOnGPU {
		return
	}
	d.try("clear trail", d.surface.ClearTrail(key))
	st.trailOnGPU = false
	st.attached = trail.Range{Start: 0, End: -1}
	st.fullTrailEnd = -1
}

// Teardown detaches every marker and trail this dispatcher has put on the
// surface. Surface errors are ignored: during teardown the surface may
// already have dropped handles on its own.
func (d *Dispatcher) Teardown() {
	for key, st := range d.objects {
		if st.markerShown {
			d.try("hide marker", d.surface.HideMarker(key))
			st.markerShown = false
		}
		d.clearTrail(key, st)
	}
}

// try logs and swallows a surface error. Core state and surface state may
// transiently disagree; a failed delta must never take down the frame loop.
func (d *Dispatcher) try(op string, err error) {
	if err != nil {
		d.log.Debug("surface operation failed", "op", op, "error", err)
	}
}
