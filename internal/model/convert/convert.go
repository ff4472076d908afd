// Package convert provides functions to convert between GORM models and
// core records.
package convert

import (
	"github.com/Changplay12345/flight-animation/internal/model"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// SampleToRecord converts a GORM FlightSample to a core.SampleRecord.
// Optional columns stay pointers on both sides, so NULLs survive the
// round trip.
func SampleToRecord(s model.FlightSample) core.SampleRecord {
	return core.SampleRecord{
		Key:             s.FlightKey,
		TimeMs:          s.TimeMs,
		Lat:             s.Latitude,
		Lon:             s.Longitude,
		Altitude:        s.GeoAlt,
		Callsign:        s.Callsign,
		GroundSpeed:     s.GroundSpeed,
		Heading:         s.Heading,
		MagneticHeading: s.MagHeading,
		VerticalRate:    s.VerticalRate,
		VerticalTrend:   s.VerticalTrend,
		AircraftType:    s.AircraftType,
		Origin:          s.Departure,
		Destination:     s.Destination,
	}
}

// RecordToSample converts a core.SampleRecord to a GORM FlightSample for
// the given dataset.
func RecordToSample(datasetID uint, r core.SampleRecord) model.FlightSample {
	return model.FlightSample{
		DatasetID:     datasetID,
		FlightKey:     r.Key,
		TimeMs:        r.TimeMs,
		Latitude:      r.Lat,
		Longitude:     r.Lon,
		GeoAlt:        r.Altitude,
		Callsign:      r.Callsign,
		GroundSpeed:   r.GroundSpeed,
		Heading:       r.Heading,
		MagHeading:    r.MagneticHeading,
		VerticalRate:  r.VerticalRate,
		VerticalTrend: r.VerticalTrend,
		AircraftType:  r.AircraftType,
		Departure:     r.Origin,
		Destination:   r.Destination,
	}
}

// SamplesToRecords converts a slice of FlightSamples.
func SamplesToRecords(samples []model.FlightSample) []core.SampleRecord {
	records := make([]core.SampleRecord, len(samples))
	for i, s := range samples {
		records[i] = SampleToRecord(s)
	}
	return records
}

// RecordsToSamples converts a slice of SampleRecords for the given dataset.
func RecordsToSamples(datasetID uint, records []core.SampleRecord) []model.FlightSample {
	samples := make([]model.FlightSample, len(records))
	for i, r := range records {
		samples[i] = RecordToSample(datasetID, r)
	}
	return samples
}
