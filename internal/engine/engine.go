// internal/engine/engine.go

// Package engine drives the animation. A single goroutine owns the
// playback clock, the trajectory store and the render dispatcher; it
// ticks frames at the marker cadence and applies queued control commands
// at frame boundaries, so every read in a frame sees one consistent
// timestamp and there is never a concurrent writer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Changplay12345/flight-animation/internal/dispatcher"
	"github.com/Changplay12345/flight-animation/internal/playback"
	"github.com/Changplay12345/flight-animation/internal/queue"
	"github.com/Changplay12345/flight-animation/internal/render"
	"github.com/Changplay12345/flight-animation/internal/store"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// Config holds the engine settings taken from the playback configuration.
type Config struct {
	Speeds        []float64
	TimelinePadMs int64
	TickHz        float64 // frame callback rate; render cadences gate themselves below it
}

// Snapshot is the engine state published once per frame for readers
// outside the frame goroutine (status monitor, scrub bar).
type Snapshot struct {
	Timeline      core.TimelineState
	Playing       bool
	Speed         float64
	Objects       int
	Frames        uint64
	MarkerMoves   uint64
	SegmentDeltas uint64
	LastFrame     time.Duration
}

// Engine is the frame loop driver.
type Engine struct {
	clock    *playback.Clock
	store    *store.Store
	renderer *render.Dispatcher
	log      *slog.Logger
	view     render.ViewTransform

	pending *queue.Queue[func()]
	tick    time.Duration

	mu   sync.RWMutex
	snap Snapshot
}

// New creates an engine over a loaded store. The clock spans the store's
// time bounds; an empty store yields a zero-length timeline that still
// runs (static, no geometry).
func New(st *store.Store, renderer *render.Dispatcher, log *slog.Logger, cfg Config) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TickHz <= 0 {
		cfg.TickHz = render.DefaultConfig().MarkerHz
	}

	startMs, endMs, _ := st.Bounds()
	return &Engine{
		clock:    playback.NewClock(startMs, endMs, cfg.Speeds, cfg.TimelinePadMs),
		store:    st,
		renderer: renderer,
		log:      log,
		pending:  queue.New[func()](),
		tick:     time.Duration(float64(time.Second) / cfg.TickHz),
	}
}

// Snapshot returns the state published by the last frame.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// Enqueue schedules fn on the frame goroutine at the start of the next
// frame, before the clock advances. All control mutations go through here.
func (e *Engine) Enqueue(fn func()) { e.pending.Push(fn) }

// Play resumes playback on the next frame.
func (e *Engine) Play() { e.Enqueue(e.clock.Play) }

// Pause stops the clock on the next frame. The render loop keeps running
// and draws a static frame.
func (e *Engine) Pause() { e.Enqueue(e.clock.Pause) }

// Seek moves the timeline position, clamped into the current bounds.
func (e *Engine) Seek(tMs int64) { e.Enqueue(func() { e.clock.Seek(tMs) }) }

// Rewind jumps back to the timeline start.
func (e *Engine) Rewind() { e.Enqueue(e.clock.Rewind) }

// SetSpeed selects a playback speed multiplier.
func (e *Engine) SetSpeed(mult float64) { e.Enqueue(func() { e.clock.SetSpeed(mult) }) }

// SetRotation updates the shared view transform applied to marker icons.
func (e *Engine) SetRotation(deg float64) {
	e.Enqueue(func() { e.view.RotationDeg = deg })
}

// SetVisible toggles one object.
func (e *Engine) SetVisible(key string, visible bool) {
	e.Enqueue(func() { e.store.SetVisible(key, visible) })
}

// SetAllVisible toggles every object.
func (e *Engine) SetAllVisible(visible bool) {
	e.Enqueue(func() { e.store.SetAllVisible(visible) })
}

// InvertVisible flips every object's visibility.
func (e *Engine) InvertVisible() { e.Enqueue(e.store.InvertVisible) }

// ApplyFilter shows only the given keys and narrows the scrub bounds to
// their combined active interval.
func (e *Engine) ApplyFilter(keys []string) {
	e.Enqueue(func() {
		e.store.ApplyFilter(keys)
		e.narrowToVisible()
	})
}

// FocusAirport force-hides objects not touching the airport, recolors the
// rest, and narrows the scrub bounds to the matching traffic.
func (e *Engine) FocusAirport(airport string) {
	e.Enqueue(func() {
		keys := make([]string, 0)
		for _, key := range e.store.Objects() {
			meta := e.store.Meta(key)
			if meta != nil && (meta.Origin == airport || meta.Destination == airport) {
				keys = append(keys, key)
			}
		}
		e.store.ApplyFilter(keys)
		e.renderer.SetFocus(airport)
		e.narrowToVisible()
	})
}

// ClearFilter restores full visibility and the original timeline bounds.
func (e *Engine) ClearFilter() {
	e.Enqueue(func() {
		e.store.SetAllVisible(true)
		e.renderer.ClearFocus()
		e.clock.RestoreBounds()
	})
}

func (e *Engine) narrowToVisible() {
	if startMs, endMs, ok := e.store.VisibleBounds(); ok {
		e.clock.NarrowTo(startMs, endMs)
	} else {
		e.clock.RestoreBounds()
	}
}

// RegisterHandlers wires the engine's control surface into the command
// dispatcher. Handlers only parse and enqueue; the mutation itself runs on
// the frame goroutine.
func (e *Engine) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register("playback:play", func(ev dispatcher.Event) (any, error) {
		e.Play()
		return "queued", nil
	})
	d.Register("playback:pause", func(ev dispatcher.Event) (any, error) {
		e.Pause()
		return "queued", nil
	})
	d.Register("playback:rewind", func(ev dispatcher.Event) (any, error) {
		e.Rewind()
		return "queued", nil
	})
	d.Register("playback:seek", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 1 {
			return nil, fmt.Errorf("playback:seek requires a millisecond timestamp")
		}
		tMs, err := strconv.ParseInt(ev.Args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("playback:seek: bad timestamp %q: %w", ev.Args[0], err)
		}
		e.Seek(tMs)
		return "queued", nil
	})
	d.Register("playback:speed", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 1 {
			return nil, fmt.Errorf("playback:speed requires a multiplier")
		}
		mult, err := strconv.ParseFloat(ev.Args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("playback:speed: bad multiplier %q: %w", ev.Args[0], err)
		}
		e.SetSpeed(mult)
		return "queued", nil
	})
	d.Register("filter:visible", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 2 {
			return nil, fmt.Errorf("filter:visible requires a key and a bool")
		}
		visible, err := strconv.ParseBool(ev.Args[1])
		if err != nil {
			return nil, fmt.Errorf("filter:visible: bad bool %q: %w", ev.Args[1], err)
		}
		e.SetVisible(ev.Args[0], visible)
		return "queued", nil
	})
	d.Register("filter:all", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 1 {
			return nil, fmt.Errorf("filter:all requires a bool")
		}
		visible, err := strconv.ParseBool(ev.Args[0])
		if err != nil {
			return nil, fmt.Errorf("filter:all: bad bool %q: %w", ev.Args[0], err)
		}
		e.SetAllVisible(visible)
		return "queued", nil
	})
	d.Register("filter:invert", func(ev dispatcher.Event) (any, error) {
		e.InvertVisible()
		return "queued", nil
	})
	d.Register("filter:apply", func(ev dispatcher.Event) (any, error) {
		e.ApplyFilter(ev.Args)
		return "queued", nil
	})
	d.Register("filter:airport", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 1 {
			return nil, fmt.Errorf("filter:airport requires an airport code")
		}
		e.FocusAirport(ev.Args[0])
		return "queued", nil
	})
	d.Register("filter:clear", func(ev dispatcher.Event) (any, error) {
		e.ClearFilter()
		return "queued", nil
	})
	d.Register("view:rotate", func(ev dispatcher.Event) (any, error) {
		if len(ev.Args) < 1 {
			return nil, fmt.Errorf("view:rotate requires degrees")
		}
		deg, err := strconv.ParseFloat(ev.Args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("view:rotate: bad degrees %q: %w", ev.Args[0], err)
		}
		e.SetRotation(deg)
		return "queued", nil
	})
}

// Run ticks frames until ctx is cancelled, then detaches everything the
// renderer put on the surface.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("frame loop starting",
		"objects", e.store.Len(),
		"tick", e.tick,
		"startMs", e.clock.Timeline().StartMs,
		"endMs", e.clock.Timeline().EndMs)

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.renderer.Teardown()
			e.log.Info("frame loop stopped")
			return
		case now := <-ticker.C:
			e.step(now, now.Sub(last))
			last = now
		}
	}
}

// step runs one frame: queued commands first, then the clock advance, then
// the render pass, so all objects render against a single timestamp.
func (e *Engine) step(now time.Time, elapsed time.Duration) {
	start := time.Now()

	for _, fn := range e.pending.GetAndEmpty() {
		fn()
	}

	e.clock.Advance(elapsed)
	e.renderer.Frame(render.Context{Clock: e.clock, Store: e.store, View: e.view}, now)

	e.publish(time.Since(start))
}

func (e *Engine) publish(frameDur time.Duration) {
	counts := e.renderer.Counters()

	e.mu.Lock()
	e.snap = Snapshot{
		Timeline:      e.clock.Timeline(),
		Playing:       e.clock.Playing(),
		Speed:         e.clock.Speed(),
		Objects:       e.store.Len(),
		Frames:        counts.Frames,
		MarkerMoves:   counts.MarkerMoves,
		SegmentDeltas: counts.SegmentDeltas,
		LastFrame:     frameDur,
	}
	e.mu.Unlock()
}
