// internal/render/surface.go
package render

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/Changplay12345/flight-animation/internal/trail"
)

// MarkerStyle is the visual state of a marker icon. Regenerating an icon is
// the most expensive surface operation, so the dispatcher only emits a
// StyleMarker delta when the style actually differs from the cached one.
type MarkerStyle struct {
	Color       string
	RotationDeg float64 // icon rotation: heading adjusted by the view transform
	Label       string
}

// Surface is the rendering side consumed by the dispatcher. Implementations
// receive only deltas: the dispatcher guarantees it never re-sends an
// unchanged position, style or segment attachment.
//
// Surface state and dispatcher state can transiently diverge during
// teardown, so implementations may be asked to remove handles that are
// already gone; they should treat that as a no-op error at most. The
// dispatcher ignores all returned errors beyond debug logging.
type Surface interface {
	// ShowMarker makes the marker for an object visible.
	ShowMarker(objectID string) error
	// HideMarker hides the marker for an object.
	HideMarker(objectID string) error
	// MoveMarker positions the marker for an object.
	MoveMarker(objectID string, lat, lon float64) error
	// StyleMarker recolors/rotates the marker icon for an object.
	StyleMarker(objectID string, style MarkerStyle) error

	// AttachSegment adds one cached trail segment of an object.
	AttachSegment(objectID string, seg *trail.Segment) error
	// DetachSegment removes one trail segment of an object by index.
	DetachSegment(objectID string, segmentIndex int) error
	// SetTrailLine replaces an object's full trail polyline.
	SetTrailLine(objectID string, line geom.LineString, color string) error
	// ClearTrail removes all trail geometry of an object.
	ClearTrail(objectID string) error
}

// ViewTransform is the shared view state markers render against. It is
// owned by whoever drives the frame loop and passed into every frame
// explicitly rather than read from a global.
type ViewTransform struct {
	RotationDeg float64
}
