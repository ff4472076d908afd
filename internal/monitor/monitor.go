// internal/monitor/monitor.go

// Package monitor reports engine health while a replay runs: a status file
// refreshed every second, performance rows in the database, and frame
// metrics pushed to InfluxDB when configured.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/Changplay12345/flight-animation/internal/engine"
	"github.com/Changplay12345/flight-animation/internal/influx"
	"github.com/Changplay12345/flight-animation/internal/logging"
	"github.com/Changplay12345/flight-animation/internal/model"
	"github.com/Changplay12345/flight-animation/internal/session"
)

// Dependencies holds all dependencies for the monitor service.
type Dependencies struct {
	DB              *gorm.DB
	LogManager      *logging.Manager
	Session         *session.Context
	Engine          *engine.Engine
	Influx          *influx.Manager
	StatusDir       string
	IsDatabaseValid func() bool
}

// Service manages status monitoring.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	datasetID   uint
	lastFrames  uint64
	lastMarkers uint64
	lastSegs    uint64
}

// NewService creates a new monitor service.
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running.
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// statusReport is the JSON layout of the status file.
type statusReport struct {
	Dataset       string  `json:"dataset"`
	Playing       bool    `json:"playing"`
	Speed         float64 `json:"speed"`
	CurrentMs     int64   `json:"currentMs"`
	StartMs       int64   `json:"startMs"`
	EndMs         int64   `json:"endMs"`
	Objects       int     `json:"objects"`
	Frames        uint64  `json:"frames"`
	MarkerMoves   uint64  `json:"markerMoves"`
	SegmentDeltas uint64  `json:"segmentDeltas"`
	LastFrameMs   float64 `json:"lastFrameMs"`
}

// Status builds the current status report and the performance row holding
// the per-interval delta counts since the previous call.
func (s *Service) Status() (statusReport, model.PlaybackPerformance) {
	snap := s.deps.Engine.Snapshot()

	datasetName := ""
	if ds, ok := s.deps.Session.Dataset(); ok {
		datasetName = ds.Name
	}

	report := statusReport{
		Dataset:       datasetName,
		Playing:       snap.Playing,
		Speed:         snap.Speed,
		CurrentMs:     snap.Timeline.CurrentMs,
		StartMs:       snap.Timeline.StartMs,
		EndMs:         snap.Timeline.EndMs,
		Objects:       snap.Objects,
		Frames:        snap.Frames,
		MarkerMoves:   snap.MarkerMoves,
		SegmentDeltas: snap.SegmentDeltas,
		LastFrameMs:   float64(snap.LastFrame.Microseconds()) / 1000.0,
	}

	perf := model.PlaybackPerformance{
		Time:                time.Now(),
		DatasetID:           s.datasetID,
		FrameDurationMs:     float32(report.LastFrameMs),
		MarkerUpdates:       uint32(snap.MarkerMoves - s.lastMarkers),
		TrailSegmentDeltas:  uint32(snap.SegmentDeltas - s.lastSegs),
		InterpolatedObjects: uint32(snap.Objects),
	}
	s.lastFrames = snap.Frames
	s.lastMarkers = snap.MarkerMoves
	s.lastSegs = snap.SegmentDeltas

	return report, perf
}

// resolveDatasetID looks up the active dataset's row ID once and caches it.
func (s *Service) resolveDatasetID() {
	if s.datasetID != 0 || s.deps.DB == nil {
		return
	}
	ds, ok := s.deps.Session.Dataset()
	if !ok {
		return
	}
	var row model.Dataset
	err := s.deps.DB.Where("name = ?", ds.Name).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.deps.LogManager.Logger().Error("Error resolving dataset ID", "error", err)
		}
		return
	}
	s.datasetID = row.ID
}

// ValidateHypertables converts the given tables to TimescaleDB hypertables
// with compression, when running against a Timescale-enabled Postgres.
// tables maps table name to its compression segmentby columns.
func (s *Service) ValidateHypertables(tables map[string][]string) error {
	logger := s.deps.LogManager.Logger()

	for table := range tables {
		hypertable := any(nil)
		s.deps.DB.Exec(`SELECT x.* FROM timescaledb_information.hypertables x WHERE hypertable_name = ?`, table).Scan(&hypertable)
		if hypertable != nil {
			logger.Info("Hypertable already configured", "table", table)
			continue
		}

		queryCreateHypertable := fmt.Sprintf(`
				SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true);
			`, table)
		err := s.deps.DB.Exec(queryCreateHypertable).Error
		if err != nil {
			logger.Error("Failed to create hypertable", "table", table, "error", err)
			return err
		}
		logger.Info("Created hypertable", "table", table)

		queryCompressHypertable := fmt.Sprintf(`
				ALTER TABLE %s SET (
					timescaledb.compress,
					timescaledb.compress_segmentby = ?);
			`, table)
		err = s.deps.DB.Exec(
			queryCompressHypertable,
			strings.Join(tables[table], ","),
		).Error
		if err != nil {
			logger.Error("Failed to enable compression", "table", table, "error", err)
			return err
		}

		queryCompressAfterHypertable := fmt.Sprintf(`
				SELECT add_compression_policy(
					'%s',
					compress_after => interval '14 day');
			`, table)
		err = s.deps.DB.Exec(queryCompressAfterHypertable).Error
		if err != nil {
			logger.Error("Failed to set compress_after", "table", table, "error", err)
			return err
		}
		logger.Info("Enabled hypertable compression", "table", table)
	}
	return nil
}

// Start starts the status monitor goroutine.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(1000 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if _, ok := s.deps.Session.Dataset(); !ok {
					continue
				}
				s.resolveDatasetID()

				report, perf := s.Status()

				if statusFile != nil {
					statusStr, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(statusStr)
					statusFile.WriteString("\n")
				}

				if s.deps.IsDatabaseValid != nil && s.deps.IsDatabaseValid() {
					err = s.deps.DB.Create(&perf).Error
					if err != nil {
						logger.Error("Error writing performance row", "error", err)
					}
				}

				if s.deps.Influx != nil {
					point := influx.FramePoint(
						report.Dataset,
						time.Duration(report.LastFrameMs*float64(time.Millisecond)),
						int(perf.MarkerUpdates),
						int(perf.TrailSegmentDeltas),
						report.Objects,
					)
					if err := s.deps.Influx.WritePoint(context.Background(), "frame_performance", point); err != nil {
						logger.Error("Error writing frame point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
