package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Changplay12345/flight-animation/internal/playback"
	"github.com/Changplay12345/flight-animation/internal/store"
	"github.com/Changplay12345/flight-animation/internal/trail"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

func ptr[T any](v T) *T { return &v }

// flightRecords builds a straight-line track for one flight: samples every
// 10s, far enough apart that deduplication never drops any.
func flightRecords(key string, n int, origin, dest string) []core.SampleRecord {
	recs := make([]core.SampleRecord, n)
	for i := range recs {
		recs[i] = core.SampleRecord{
			Key:         key,
			TimeMs:      int64(i) * 10000,
			Lat:         40.0 + 0.1*float64(i),
			Lon:         -74.0,
			Altitude:    ptr(10000.0 + 100*float64(i)),
			Callsign:    ptr("TST" + key),
			Origin:      ptr(origin),
			Destination: ptr(dest),
		}
	}
	return recs
}

func testWorld(t *testing.T, recs []core.SampleRecord) (*store.Store, *playback.Clock) {
	t.Helper()
	s, _ := store.Load(recs)
	startMs, endMs, ok := s.Bounds()
	require.True(t, ok)
	return s, playback.NewClock(startMs, endMs, nil, 0)
}

// immediateConfig removes cadence gating so every Frame call does both
// marker and trail work. Tests drive frames explicitly.
func immediateConfig() Config {
	cfg := DefaultConfig()
	cfg.MarkerHz = 1e9
	cfg.TrailHz = 1e9
	return cfg
}

func newTestDispatcher(t *testing.T, surface Surface, cfg Config) *Dispatcher {
	t.Helper()
	d, err := New(surface, nil, cfg)
	require.NoError(t, err)
	return d
}

// frameAt seeks the clock and renders one frame at a fresh wall instant.
func frameAt(d *Dispatcher, clk *playback.Clock, s *store.Store, tMs int64) {
	clk.Seek(tMs)
	d.Frame(Context{Clock: clk, Store: s}, time.Now())
}

func TestFrame_ShowsAndMovesMarker(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 15000)

	m := surface.Markers["f1"]
	require.NotNil(t, m)
	assert.True(t, m.Visible)
	assert.InDelta(t, 40.15, m.Lat, 1e-9)
	assert.Equal(t, "TSTf1", m.Style.Label)
	assert.NotEmpty(t, m.Style.Color)
}

func TestFrame_NoRedundantDeltas(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 15000)
	moves, styles, shows := surface.Ops["move"], surface.Ops["style"], surface.Ops["show"]

	// Same timestamp again: position, style and visibility are unchanged,
	// so nothing may be re-sent.
	frameAt(d, clk, s, 15000)
	assert.Equal(t, moves, surface.Ops["move"])
	assert.Equal(t, styles, surface.Ops["style"])
	assert.Equal(t, shows, surface.Ops["show"])
}

func TestFrame_StyleReusedAcrossMoves(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	// Straight-line track: heading, color and label never change, so the
	// expensive style delta goes out exactly once while moves keep flowing.
	for tMs := int64(0); tMs <= 40000; tMs += 1000 {
		frameAt(d, clk, s, tMs)
	}
	assert.Equal(t, 1, surface.Ops["style"])
	assert.Greater(t, surface.Ops["move"], 10)
}

func TestFrame_EpochBumpResendsStyle(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 15000)
	require.Equal(t, 1, surface.Ops["style"])

	d.BumpEpoch()
	frameAt(d, clk, s, 15000)
	assert.Equal(t, 2, surface.Ops["style"])
}

func TestFrame_HiddenObjectRemoved(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 15000)
	require.True(t, surface.Markers["f1"].Visible)

	s.SetVisible("f1", false)
	frameAt(d, clk, s, 15000)
	assert.False(t, surface.Markers["f1"].Visible)
	assert.Empty(t, surface.SegmentIndices("f1"))
}

func TestFrame_GraceWindow(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.GraceMs = 30000
	d := newTestDispatcher(t, surface, cfg)

	// Track ends at 90s. The timeline must extend past the data so Seek
	// does not clamp onto the last sample.
	clk = playback.NewClock(0, 200000, nil, 0)

	// Within grace past the last sample: marker holds at the endpoint.
	frameAt(d, clk, s, 90000+20000)
	assert.True(t, surface.Markers["f1"].Visible)
	assert.InDelta(t, 40.9, surface.Markers["f1"].Lat, 1e-9)

	// Beyond grace: marker disappears.
	frameAt(d, clk, s, 90000+30001)
	assert.False(t, surface.Markers["f1"].Visible)
}

func TestFrame_DecayTrailDeltas(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.TrailMode = trail.ModeDecay
	cfg.DecayMs = 30000
	d := newTestDispatcher(t, surface, cfg)

	// At t=50s with 30s decay: samples 2..5 visible, segments 2..4.
	frameAt(d, clk, s, 50000)
	assert.Equal(t, []int{2, 3, 4}, surface.SegmentIndices("f1"))

	// Advance one step: segment 5 attaches, segment 2 detaches. Exactly
	// two deltas, not a rebuild.
	attaches, detaches := surface.Ops["attach"], surface.Ops["detach"]
	frameAt(d, clk, s, 60000)
	assert.Equal(t, []int{3, 4, 5}, surface.SegmentIndices("f1"))
	assert.Equal(t, attaches+1, surface.Ops["attach"])
	assert.Equal(t, detaches+1, surface.Ops["detach"])
}

func TestFrame_FullyDecayedTrailCleared(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.TrailMode = trail.ModeDecay
	cfg.DecayMs = 30000
	d := newTestDispatcher(t, surface, cfg)

	frameAt(d, clk, s, 50000)
	require.NotEmpty(t, surface.SegmentIndices("f1"))

	// Seek far past the end: everything decays and the trail is removed.
	clk = playback.NewClock(0, 500000, nil, 0)
	frameAt(d, clk, s, 300000)
	assert.Empty(t, surface.SegmentIndices("f1"))
}

func TestFrame_FullTrailMode(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.TrailMode = trail.ModeFull
	d := newTestDispatcher(t, surface, cfg)

	frameAt(d, clk, s, 35000)
	tr := surface.Trails["f1"]
	require.NotNil(t, tr)
	assert.True(t, tr.HasLine)
	assert.Equal(t, 4, tr.Line.Coordinates().Length())

	// Unchanged end index: no re-push.
	sets := surface.Ops["setline"]
	frameAt(d, clk, s, 36000)
	assert.Equal(t, sets, surface.Ops["setline"])

	frameAt(d, clk, s, 45000)
	assert.Equal(t, sets+1, surface.Ops["setline"])
	assert.Equal(t, 5, surface.Trails["f1"].Line.Coordinates().Length())
}

func TestFrame_FullTrailRecoloredOnFocus(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.TrailMode = trail.ModeFull
	d := newTestDispatcher(t, surface, cfg)

	frameAt(d, clk, s, 35000)
	require.True(t, surface.Trails["f1"].HasLine)
	require.NotEqual(t, FocusColor, surface.Trails["f1"].Color)

	// Focus while the window end is unchanged: markers run first in the
	// frame, but the line must still be re-sent with the focus color.
	d.SetFocus("KJFK")
	frameAt(d, clk, s, 35000)
	assert.Equal(t, FocusColor, surface.Trails["f1"].Color)

	d.ClearFocus()
	frameAt(d, clk, s, 35000)
	assert.NotEqual(t, FocusColor, surface.Trails["f1"].Color)
}

func TestFrame_BackwardSeekRebuildsTrail(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 20, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := immediateConfig()
	cfg.TrailMode = trail.ModeDecay
	cfg.DecayMs = 30000
	d := newTestDispatcher(t, surface, cfg)

	frameAt(d, clk, s, 150000)
	frameAt(d, clk, s, 50000)
	assert.Equal(t, []int{2, 3, 4}, surface.SegmentIndices("f1"))
}

func TestSetFocus(t *testing.T) {
	recs := append(
		flightRecords("f1", 10, "KJFK", "KBOS"),
		flightRecords("f2", 10, "KLAX", "KSFO")...)
	s, clk := testWorld(t, recs)
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 15000)
	require.True(t, surface.Markers["f1"].Visible)
	require.True(t, surface.Markers["f2"].Visible)

	d.SetFocus("KJFK")
	frameAt(d, clk, s, 15000)
	assert.True(t, surface.Markers["f1"].Visible)
	assert.Equal(t, FocusColor, surface.Markers["f1"].Style.Color)
	assert.False(t, surface.Markers["f2"].Visible)

	d.ClearFocus()
	frameAt(d, clk, s, 15000)
	assert.True(t, surface.Markers["f2"].Visible)
	assert.NotEqual(t, FocusColor, surface.Markers["f1"].Style.Color)
}

func TestSetFocus_SameValueNoEpochBump(t *testing.T) {
	d := newTestDispatcher(t, NewMemorySurface(), immediateConfig())
	d.SetFocus("KJFK")
	epoch := d.Epoch()
	d.SetFocus("KJFK")
	assert.Equal(t, epoch, d.Epoch())
}

func TestTeardown(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())

	frameAt(d, clk, s, 50000)
	require.True(t, surface.Markers["f1"].Visible)
	require.NotEmpty(t, surface.SegmentIndices("f1"))

	d.Teardown()
	assert.False(t, surface.Markers["f1"].Visible)
	assert.Empty(t, surface.SegmentIndices("f1"))
}

func TestReset_StoreReplacement(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	d := newTestDispatcher(t, surface, immediateConfig())
	frameAt(d, clk, s, 50000)

	s2, clk2 := testWorld(t, flightRecords("f9", 5, "EGLL", "EHAM"))
	d.Reset()
	frameAt(d, clk2, s2, 15000)

	assert.False(t, surface.Markers["f1"].Visible)
	assert.True(t, surface.Markers["f9"].Visible)
}

func TestFrame_CadenceGating(t *testing.T) {
	s, clk := testWorld(t, flightRecords("f1", 10, "KJFK", "KBOS"))
	surface := NewMemorySurface()
	cfg := DefaultConfig()
	cfg.MarkerHz = 100 // 10ms interval
	cfg.TrailHz = 10   // 100ms interval
	d := newTestDispatcher(t, surface, cfg)

	base := time.Now()
	ctx := Context{Clock: clk, Store: s}
	clk.Seek(50000)

	d.Frame(ctx, base)
	moves, attaches := surface.Ops["move"], surface.Ops["attach"]
	require.Greater(t, moves, 0)
	require.Greater(t, attaches, 0)

	// 1ms later: neither cadence is due.
	d.Frame(ctx, base.Add(time.Millisecond))
	assert.Equal(t, moves, surface.Ops["move"])
	assert.Equal(t, attaches, surface.Ops["attach"])

	// 11ms later: marker cadence fires, trail cadence still waits.
	clk.Seek(51000)
	d.Frame(ctx, base.Add(11*time.Millisecond))
	assert.Greater(t, surface.Ops["move"], moves)
	assert.Equal(t, attaches, surface.Ops["attach"])
}
