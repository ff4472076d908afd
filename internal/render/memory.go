// internal/render/memory.go
package render

import (
	"fmt"
	"sort"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/Changplay12345/flight-animation/internal/trail"
)

// MemoryMarker is the retained marker state of one object on a
// MemorySurface.
type MemoryMarker struct {
	Visible bool
	Lat     float64
	Lon     float64
	Style   MarkerStyle
}

// MemoryTrail is the retained trail state of one object on a MemorySurface.
type MemoryTrail struct {
	Segments map[int]*trail.Segment
	Line     geom.LineString
	Color    string
	HasLine  bool
}

// MemorySurface retains every delta it receives, so tests and headless
// runs can inspect what an actual renderer would be displaying. It also
// counts operations, which lets tests assert that the dispatcher emitted
// no redundant work.
type MemorySurface struct {
	Markers map[string]*MemoryMarker
	Trails  map[string]*MemoryTrail
	Ops     map[string]int
}

// NewMemorySurface returns an empty in-memory surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		Markers: make(map[string]*MemoryMarker),
		Trails:  make(map[string]*MemoryTrail),
		Ops:     make(map[string]int),
	}
}

func (s *MemorySurface) marker(id string) *MemoryMarker {
	m, ok := s.Markers[id]
	if !ok {
		m = &MemoryMarker{}
		s.Markers[id] = m
	}
	return m
}

func (s *MemorySurface) trail(id string) *MemoryTrail {
	t, ok := s.Trails[id]
	if !ok {
		t = &MemoryTrail{Segments: make(map[int]*trail.Segment)}
		s.Trails[id] = t
	}
	return t
}

func (s *MemorySurface) ShowMarker(id string) error {
	s.Ops["show"]++
	s.marker(id).Visible = true
	return nil
}

func (s *MemorySurface) HideMarker(id string) error {
	s.Ops["hide"]++
	s.marker(id).Visible = false
	return nil
}

func (s *MemorySurface) MoveMarker(id string, lat, lon float64) error {
	s.Ops["move"]++
	m := s.marker(id)
	m.Lat, m.Lon = lat, lon
	return nil
}

func (s *MemorySurface) StyleMarker(id string, style MarkerStyle) error {
	s.Ops["style"]++
	s.marker(id).Style = style
	return nil
}

func (s *MemorySurface) AttachSegment(id string, seg *trail.Segment) error {
	s.Ops["attach"]++
	s.trail(id).Segments[seg.Index] = seg
	return nil
}

func (s *MemorySurface) DetachSegment(id string, segmentIndex int) error {
	s.Ops["detach"]++
	t := s.trail(id)
	if _, ok := t.Segments[segmentIndex]; !ok {
		return fmt.Errorf("segment %d of %q not attached", segmentIndex, id)
	}
	delete(t.Segments, segmentIndex)
	return nil
}

func (s *MemorySurface) SetTrailLine(id string, line geom.LineString, color string) error {
	s.Ops["setline"]++
	t := s.trail(id)
	t.Line, t.Color, t.HasLine = line, color, true
	return nil
}

func (s *MemorySurface) ClearTrail(id string) error {
	s.Ops["clear"]++
	t := s.trail(id)
	t.Segments = make(map[int]*trail.Segment)
	t.HasLine = false
	return nil
}

// SegmentIndices returns the attached segment indices of an object in
// ascending order.
func (s *MemorySurface) SegmentIndices(id string) []int {
	t, ok := s.Trails[id]
	if !ok {
		return nil
	}
	idx := make([]int, 0, len(t.Segments))
	for i := range t.Segments {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}
