package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Changplay12345/flight-animation/pkg/core"
)

func fptr(v float64) *float64 { return &v }
func sptr(v string) *string   { return &v }

// rec builds a minimal valid record. Positions are spread along the equator
// so that 0.01 degrees of longitude is well over MinSeparationMeters.
func rec(key string, timeMs int64, lat, lon float64) core.SampleRecord {
	return core.SampleRecord{Key: key, TimeMs: timeMs, Lat: lat, Lon: lon}
}

func TestLoad_SortsByTimePerObject(t *testing.T) {
	s, _ := Load([]core.SampleRecord{
		rec("a", 3000, 0, 0.02),
		rec("a", 1000, 0, 0),
		rec("a", 2000, 0, 0.01),
	})

	traj, ok := s.Trajectory("a")
	require.True(t, ok)
	require.Len(t, traj, 3)
	assert.Equal(t, int64(1000), traj[0].TimeMs)
	assert.Equal(t, int64(2000), traj[1].TimeMs)
	assert.Equal(t, int64(3000), traj[2].TimeMs)
	assert.Equal(t, int64(1000), traj.StartMs())
	assert.Equal(t, int64(3000), traj.EndMs())
}

func TestLoad_DropsNonFiniteCoordinates(t *testing.T) {
	s, sum := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 2000, math.NaN(), 0.01),
		rec("a", 3000, 0, math.Inf(1)),
		rec("a", 4000, 0, 0.02),
	})

	traj, ok := s.Trajectory("a")
	require.True(t, ok)
	assert.Len(t, traj, 2)
	assert.Equal(t, 2, sum.DroppedSamples)
}

func TestLoad_EmptyObjectOmitted(t *testing.T) {
	s, sum := Load([]core.SampleRecord{
		rec("good", 1000, 0, 0),
		rec("bad", 1000, math.NaN(), math.NaN()),
	})

	_, ok := s.Trajectory("bad")
	assert.False(t, ok)
	assert.Equal(t, 1, sum.DroppedObjects)
	assert.Equal(t, []string{"good"}, s.Objects())
}

func TestLoad_EmptyDatasetIsValid(t *testing.T) {
	s, sum := Load(nil)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, sum.Objects)
	assert.Equal(t, 0, s.Extrema().TotalSampleCount)

	_, _, ok := s.Bounds()
	assert.False(t, ok)
}

func TestLoad_DistanceDedup(t *testing.T) {
	// Middle points ~55 m apart get dropped; endpoints always survive.
	s, _ := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 2000, 0, 0.0005),
		rec("a", 3000, 0, 0.0010),
		rec("a", 4000, 0, 0.1),
	})

	traj, _ := s.Trajectory("a")
	require.Len(t, traj, 2)
	assert.Equal(t, int64(1000), traj[0].TimeMs)
	assert.Equal(t, int64(4000), traj[1].TimeMs)
}

func TestLoad_DedupKeepsSpreadPoints(t *testing.T) {
	// ~1.1 km spacing, everything kept.
	s, _ := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 2000, 0, 0.01),
		rec("a", 3000, 0, 0.02),
		rec("a", 4000, 0, 0.03),
	})

	traj, _ := s.Trajectory("a")
	assert.Len(t, traj, 4)
	assert.Equal(t, 4, s.Extrema().TotalSampleCount)
}

func TestLoad_TotalSampleCountMatchesKeptSamples(t *testing.T) {
	records := []core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 2000, 0, 0.01),
		rec("b", 1000, 1, 0),
		rec("b", 2000, 1, 0.01),
		rec("b", 3000, 1, 0.02),
	}
	s, sum := Load(records)

	want := 0
	for _, key := range s.Objects() {
		traj, _ := s.Trajectory(key)
		want += len(traj)
	}
	assert.Equal(t, want, s.Extrema().TotalSampleCount)
	assert.Equal(t, want, sum.Samples)
}

func TestLoad_DeterministicPaletteColors(t *testing.T) {
	records := []core.SampleRecord{
		rec("first", 1000, 0, 0),
		rec("second", 1000, 1, 0),
	}
	s1, _ := Load(records)
	s2, _ := Load(records)

	assert.Equal(t, palette[0], s1.Meta("first").Color)
	assert.Equal(t, palette[1], s1.Meta("second").Color)
	assert.Equal(t, s1.Meta("first").Color, s2.Meta("first").Color)
}

func TestLoad_SyntheticHeadings(t *testing.T) {
	// Due east legs: heading 90, last sample inherits it.
	s, _ := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 2000, 0, 0.01),
		rec("a", 3000, 0, 0.02),
	})

	traj, _ := s.Trajectory("a")
	assert.InDelta(t, 90, traj[0].Heading, 0.01)
	assert.InDelta(t, 90, traj[1].Heading, 0.01)
	assert.InDelta(t, 90, traj[2].Heading, 0.01)
}

func TestLoad_ReportedHeadingWins(t *testing.T) {
	r := rec("a", 1000, 0, 0)
	r.Heading = fptr(45)
	s, _ := Load([]core.SampleRecord{r, rec("a", 2000, 0, 0.01)})

	traj, _ := s.Trajectory("a")
	assert.Equal(t, 45.0, traj[0].Heading)
}

func TestLoad_AltitudeExtrema(t *testing.T) {
	r1 := rec("a", 1000, 0, 0)
	r1.Altitude = fptr(1000)
	r2 := rec("a", 2000, 0, 0.01)
	r2.Altitude = fptr(35000)
	r3 := rec("b", 1000, 1, 0) // no altitude

	s, _ := Load([]core.SampleRecord{r1, r2, r3})
	assert.Equal(t, 1000.0, s.Extrema().MinAltitude)
	assert.Equal(t, 35000.0, s.Extrema().MaxAltitude)
}

func TestLoad_MetaFromRecords(t *testing.T) {
	r := rec("a", 1000, 0, 0)
	r.AircraftType = sptr("A320")
	r.Origin = sptr("VIE")
	r.Destination = sptr("LHR")
	s, _ := Load([]core.SampleRecord{r})

	m := s.Meta("a")
	require.NotNil(t, m)
	assert.Equal(t, "A320", m.AircraftType)
	assert.Equal(t, "VIE", m.Origin)
	assert.Equal(t, "LHR", m.Destination)
	assert.True(t, m.Visible)
}

func TestVisibilityCommands(t *testing.T) {
	s, _ := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("b", 1000, 1, 0),
		rec("c", 1000, 2, 0),
	})

	s.SetVisible("a", false)
	assert.False(t, s.Meta("a").Visible)
	assert.True(t, s.Meta("b").Visible)

	s.InvertVisible()
	assert.True(t, s.Meta("a").Visible)
	assert.False(t, s.Meta("b").Visible)
	assert.False(t, s.Meta("c").Visible)

	s.SetAllVisible(true)
	assert.True(t, s.Meta("b").Visible)

	s.ApplyFilter([]string{"c"})
	assert.False(t, s.Meta("a").Visible)
	assert.False(t, s.Meta("b").Visible)
	assert.True(t, s.Meta("c").Visible)

	// Unknown keys are ignored, not created.
	s.SetVisible("nope", true)
	assert.Nil(t, s.Meta("nope"))
}

func TestVisibleBounds_FollowsFilter(t *testing.T) {
	s, _ := Load([]core.SampleRecord{
		rec("a", 1000, 0, 0),
		rec("a", 5000, 0, 0.01),
		rec("b", 20000, 1, 0),
		rec("b", 30000, 1, 0.01),
	})

	start, end, ok := s.VisibleBounds()
	require.True(t, ok)
	assert.Equal(t, int64(1000), start)
	assert.Equal(t, int64(30000), end)

	s.ApplyFilter([]string{"b"})
	start, end, ok = s.VisibleBounds()
	require.True(t, ok)
	assert.Equal(t, int64(20000), start)
	assert.Equal(t, int64(30000), end)

	s.SetAllVisible(false)
	_, _, ok = s.VisibleBounds()
	assert.False(t, ok)
}
