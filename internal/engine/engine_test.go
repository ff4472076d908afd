// internal/engine/engine_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Changplay12345/flight-animation/internal/dispatcher"
	"github.com/Changplay12345/flight-animation/internal/render"
	"github.com/Changplay12345/flight-animation/internal/store"
	"github.com/Changplay12345/flight-animation/internal/trail"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

func ptr[T any](v T) *T { return &v }

func flightRecords(key string, origin, dest string, n int) []core.SampleRecord {
	recs := make([]core.SampleRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, core.SampleRecord{
			Key:         key,
			TimeMs:      int64(i) * 10000,
			Lat:         40.0 + float64(i)*0.1,
			Lon:         -74.0,
			Callsign:    ptr("TST" + key),
			Origin:      ptr(origin),
			Destination: ptr(dest),
		})
	}
	return recs
}

func newTestEngine(t *testing.T) (*Engine, *render.MemorySurface) {
	t.Helper()

	recs := append(
		flightRecords("f1", "KJFK", "KBOS", 10),
		flightRecords("f2", "KLGA", "KORD", 10)...,
	)
	st, _ := store.Load(recs)

	surface := render.NewMemorySurface()
	rd, err := render.New(surface, nil, render.Config{
		MarkerHz:  1e9,
		TrailHz:   1e9,
		GraceMs:   30000,
		DecayMs:   60000,
		TrailMode: trail.ModeDecay,
	})
	require.NoError(t, err)

	return New(st, rd, nil, Config{TickHz: 120}), surface
}

func TestStep_AppliesCommandsBeforeAdvance(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Play()
	e.SetSpeed(10)
	e.step(time.Now(), time.Second)

	snap := e.Snapshot()
	assert.True(t, snap.Playing)
	assert.Equal(t, float64(10), snap.Speed)
	// The same frame that applied play already advanced: 1 s wall at x10.
	assert.Equal(t, int64(10000), snap.Timeline.CurrentMs)
}

func TestStep_PausedClockHoldsStill(t *testing.T) {
	e, surface := newTestEngine(t)

	e.Play()
	e.step(time.Now(), time.Second)
	e.Pause()
	e.step(time.Now(), time.Second)
	held := e.Snapshot().Timeline.CurrentMs

	// Static frame: the loop keeps rendering but time does not move.
	e.step(time.Now(), time.Second)
	snap := e.Snapshot()
	assert.False(t, snap.Playing)
	assert.Equal(t, held, snap.Timeline.CurrentMs)
	assert.True(t, surface.Markers["f1"].Visible)
}

func TestSeekAndRewind(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Seek(50000)
	e.step(time.Now(), 0)
	assert.Equal(t, int64(50000), e.Snapshot().Timeline.CurrentMs)

	e.Rewind()
	e.step(time.Now(), 0)
	assert.Equal(t, e.Snapshot().Timeline.StartMs, e.Snapshot().Timeline.CurrentMs)
}

func TestFocusAirport_NarrowsAndRecolors(t *testing.T) {
	e, surface := newTestEngine(t)

	e.Seek(30000)
	e.FocusAirport("KJFK")
	e.step(time.Now(), 0)

	assert.True(t, surface.Markers["f1"].Visible)
	assert.Equal(t, render.FocusColor, surface.Markers["f1"].Style.Color)
	if m, ok := surface.Markers["f2"]; ok {
		assert.False(t, m.Visible)
	}

	e.ClearFilter()
	e.step(time.Now(), 0)
	assert.True(t, surface.Markers["f2"].Visible)
	assert.NotEqual(t, render.FocusColor, surface.Markers["f2"].Style.Color)
}

func TestApplyFilter_NarrowsBounds(t *testing.T) {
	e, _ := newTestEngine(t)

	e.ApplyFilter([]string{"f1"})
	e.step(time.Now(), 0)
	narrowed := e.Snapshot().Timeline
	assert.GreaterOrEqual(t, narrowed.StartMs, narrowed.OriginalStartMs)

	e.ClearFilter()
	e.step(time.Now(), 0)
	restored := e.Snapshot().Timeline
	assert.Equal(t, restored.OriginalStartMs, restored.StartMs)
	assert.Equal(t, restored.OriginalEndMs, restored.EndMs)
}

func TestRegisterHandlers_RoutesCommands(t *testing.T) {
	e, _ := newTestEngine(t)

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	e.RegisterHandlers(d)

	_, err = d.Dispatch(dispatcher.NewEvent("playback:seek", "40000"))
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.NewEvent("playback:speed", "5"))
	require.NoError(t, err)

	e.step(time.Now(), 0)
	snap := e.Snapshot()
	assert.Equal(t, int64(40000), snap.Timeline.CurrentMs)
	assert.Equal(t, float64(5), snap.Speed)
}

func TestRegisterHandlers_BadArgs(t *testing.T) {
	e, _ := newTestEngine(t)

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	e.RegisterHandlers(d)

	_, err = d.Dispatch(dispatcher.NewEvent("playback:seek"))
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.NewEvent("playback:seek", "not-a-number"))
	assert.Error(t, err)
	_, err = d.Dispatch(dispatcher.NewEvent("filter:visible", "f1", "maybe"))
	assert.Error(t, err)
}

func TestRun_TeardownOnCancel(t *testing.T) {
	e, surface := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	e.Play()
	assert.Eventually(t, func() bool {
		return e.Snapshot().Frames > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for key, m := range surface.Markers {
		assert.False(t, m.Visible, "marker %s still visible after teardown", key)
	}
}

func TestSnapshot_TracksFrameStats(t *testing.T) {
	e, _ := newTestEngine(t)

	e.Play()
	e.SetSpeed(1)
	e.step(time.Now(), time.Second)
	e.step(time.Now(), time.Second)

	snap := e.Snapshot()
	assert.Equal(t, uint64(2), snap.Frames)
	assert.NotZero(t, snap.MarkerMoves)
	assert.Equal(t, 2, snap.Objects)
}
