// pkg/core/state.go
package core

// InstantState is the interpolated state of one object at a query time.
type InstantState struct {
	TimeMs          int64
	Lat             float64
	Lon             float64
	Heading         float64
	Altitude        float64
	HasAltitude     bool
	Callsign        string
	GroundSpeed     float64
	MagneticHeading float64
	VerticalRate    float64
	VerticalTrend   VerticalTrend

	// AtEdge is set when the query time falls outside the object's active
	// interval and the nearest endpoint sample was returned instead.
	AtEdge bool
	// WithinGrace is set when an out-of-interval query is still within the
	// grace window of the nearest endpoint. Callers hide the marker when
	// AtEdge && !WithinGrace rather than snapping it to the endpoint.
	WithinGrace bool
}

// ObjectMeta is the mutable per-object display state. It is independent of
// the object's trajectory and survives only until the next dataset load.
type ObjectMeta struct {
	Color        string // "#rrggbb"
	Visible      bool
	AircraftType string
	Origin       string
	Destination  string
}

// GlobalExtrema holds dataset-wide aggregates derived once at load.
type GlobalExtrema struct {
	MinAltitude      float64
	MaxAltitude      float64
	TotalSampleCount int
}

// TimelineState is the playback timeline. Start/End may narrow to the span
// of the currently filtered objects; OriginalStart/End keep the unfiltered
// bounds for restoration. All values are unix milliseconds and satisfy
// OriginalStartMs <= StartMs <= CurrentMs <= EndMs <= OriginalEndMs.
type TimelineState struct {
	OriginalStartMs int64
	OriginalEndMs   int64
	StartMs         int64
	EndMs           int64
	CurrentMs       int64
}

// DatasetInfo describes one stored replay dataset.
type DatasetInfo struct {
	Name          string
	Date          string // YYYY-MM-DD
	AirportFilter string // empty when the dataset is unfiltered
	SampleCount   int64
}

// UploadMetadata accompanies a replay file uploaded to the web viewer.
type UploadMetadata struct {
	DatasetName   string
	Date          string
	AirportFilter string
	DurationMs    int64
	Tag           string
}
