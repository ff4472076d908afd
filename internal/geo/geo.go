// internal/geo/geo.go
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

// Coordinates arrive as WGS84 (EPSG:4326) degrees. Distance thresholds are
// defined in projected meters, so comparisons go through EPSG:3857. The
// mercator scale distortion away from the equator is acceptable here: the
// projected distance is only used to decide whether two consecutive samples
// are far enough apart to both be kept.

// Project3857 converts longitude/latitude degrees to EPSG:3857 meters.
func Project3857(lon, lat float64) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(lon, lat, 0)
	return x, y
}

// DistanceMeters returns the EPSG:3857 planar distance between two
// lat/lon positions.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	x1, y1 := Project3857(lon1, lat1)
	x2, y2 := Project3857(lon2, lat2)
	return math.Hypot(x2-x1, y2-y1)
}

// Bearing returns the initial great-circle bearing in degrees [0,360)
// from the first position toward the second.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// NormalizeHeading wraps a heading in degrees into [0,360).
func NormalizeHeading(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// Point4326 builds a simplefeatures XY point from a lat/lon position.
func Point4326(lat, lon float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: lon, Y: lat},
		Type: geom.DimXY,
	})
}

// LineString builds a simplefeatures line string from a sample subrange.
// Needs at least two samples; returns an empty LineString otherwise.
func LineString(samples []core.Sample) geom.LineString {
	if len(samples) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(samples)*2)
	for _, s := range samples {
		flat = append(flat, s.Lon, s.Lat)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// SegmentLine builds the two-point line string for one trail segment.
func SegmentLine(a, b core.Sample) geom.LineString {
	return geom.NewLineString(geom.NewSequence(
		[]float64{a.Lon, a.Lat, b.Lon, b.Lat}, geom.DimXY))
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
