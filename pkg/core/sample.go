// pkg/core/sample.go
package core

import "strings"

// VerticalTrend is the reported vertical movement category of a track.
type VerticalTrend int8

const (
	TrendUnknown VerticalTrend = iota
	TrendLevel
	TrendClimb
	TrendDescend
)

// ParseVerticalTrend maps the surveillance feed's vertical movement codes
// ("LEVEL", "CLIMB", "DESCENT"/"DESCEND") to a VerticalTrend. Unrecognized
// or empty input yields TrendUnknown.
func ParseVerticalTrend(s string) VerticalTrend {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEVEL", "0":
		return TrendLevel
	case "CLIMB", "1":
		return TrendClimb
	case "DESCENT", "DESCEND", "2":
		return TrendDescend
	default:
		return TrendUnknown
	}
}

func (t VerticalTrend) String() string {
	switch t {
	case TrendLevel:
		return "level"
	case TrendClimb:
		return "climb"
	case TrendDescend:
		return "descend"
	default:
		return "unknown"
	}
}

// Sample is one cleaned, timestamped observation of an object.
// TimeMs is unix milliseconds. Optional numeric fields use the zero value
// for "not reported"; Altitude carries an explicit validity flag because
// zero feet is a legitimate report.
type Sample struct {
	TimeMs          int64
	Lat             float64
	Lon             float64
	Heading         float64 // degrees [0,360); synthesized from geometry when unreported
	Altitude        float64 // feet
	HasAltitude     bool
	Callsign        string
	GroundSpeed     float64 // knots, 0 = unreported
	MagneticHeading float64 // degrees, 0 = unreported
	VerticalRate    float64 // feet/min, 0 = unreported
	VerticalTrend   VerticalTrend
}

// SampleRecord is one raw ingestion row, before cleaning. Field names follow
// the surveillance dataset columns; pointers mark independently nullable
// values. Only Key, TimeMs, Lat and Lon are required.
type SampleRecord struct {
	Key             string // flight key, the per-object identifier
	TimeMs          int64
	Lat             float64
	Lon             float64
	Altitude        *float64
	Callsign        *string
	GroundSpeed     *float64
	Heading         *float64
	MagneticHeading *float64
	VerticalRate    *float64
	VerticalTrend   *string
	AircraftType    *string
	Origin          *string
	Destination     *string
}
