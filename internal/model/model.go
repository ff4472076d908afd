package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent
// tables in the database schema
var DatabaseModels = []interface{}{
	&InstanceInfo{},
	&Dataset{},
	&FlightSample{},
	&PlaybackPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// InstanceInfo contains information about this installation
type InstanceInfo struct {
	gorm.Model
	InstanceName string `json:"instanceName" gorm:"size:127"`
	Description  string `json:"description" gorm:"size:255"`
	Website      string `json:"websiteURL" gorm:"size:255"`
}

func (*InstanceInfo) TableName() string {
	return "instance_infos"
}

// PlaybackPerformance is the model for frame loop performance metrics
type PlaybackPerformance struct {
	Time                time.Time `json:"time" gorm:"type:timestamptz;index:idx_time"`
	DatasetID           uint      `json:"datasetId" gorm:"index:idx_playbackperformance_dataset_id"`
	Dataset             Dataset   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:DatasetID;"`
	FrameDurationMs     float32   `json:"frameDurationMs"`
	MarkerUpdates       uint32    `json:"markerUpdates"`
	TrailSegmentDeltas  uint32    `json:"trailSegmentDeltas"`
	InterpolatedObjects uint32    `json:"interpolatedObjects"`
}

func (*PlaybackPerformance) TableName() string {
	return "playback_performances"
}

////////////////////////
// DATASET MODELS
////////////////////////

// Dataset is one stored day of flight data, optionally filtered to flights
// touching a single airport.
type Dataset struct {
	gorm.Model
	Name          string `json:"name" gorm:"size:127;uniqueIndex"`
	Date          string `json:"date" gorm:"size:10"` // YYYY-MM-DD
	AirportFilter string `json:"airportFilter" gorm:"size:8"`
	SampleCount   int64  `json:"sampleCount"`
}

func (*Dataset) TableName() string {
	return "datasets"
}

// FlightSample is one surveillance position report belonging to a dataset.
// Optional fields are pointers so absent values survive the round trip as
// SQL NULLs rather than zeroes.
type FlightSample struct {
	ID        uint `json:"id" gorm:"primarykey"`
	DatasetID uint `json:"datasetId" gorm:"index:idx_flightsample_dataset_id"`

	FlightKey string  `json:"flightKey" gorm:"size:64;index:idx_flightsample_flight_key"`
	TimeMs    int64   `json:"timeMs" gorm:"index:idx_flightsample_time_ms"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	GeoAlt        *float64 `json:"geoAlt"`
	Callsign      *string  `json:"callsign" gorm:"size:16"`
	GroundSpeed   *float64 `json:"groundSpeed"`
	Heading       *float64 `json:"heading"`
	MagHeading    *float64 `json:"magHeading"`
	VerticalRate  *float64 `json:"verticalRate"`
	VerticalTrend *string  `json:"verticalTrend" gorm:"size:16"`
	AircraftType  *string  `json:"aircraftType" gorm:"size:8"`
	Departure     *string  `json:"departure" gorm:"size:8"`
	Destination   *string  `json:"destination" gorm:"size:8"`

	// Extras carries source fields we store but do not animate, such as
	// raw mode-S downlink values.
	Extras datatypes.JSON `json:"extras"`
}

func (*FlightSample) TableName() string {
	return "flight_samples"
}
