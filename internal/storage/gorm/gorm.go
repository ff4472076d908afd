// Package gormstorage implements the storage.Backend interface over any
// GORM dialector. The SQLite and Postgres backends embed it and add only
// their connection-specific concerns.
package gormstorage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Changplay12345/flight-animation/internal/model"
	"github.com/Changplay12345/flight-animation/internal/model/convert"
	"github.com/Changplay12345/flight-animation/internal/queue"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// DefaultFlushInterval is how often the background writer drains the
// pending sample queue.
const DefaultFlushInterval = 3 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch
// writes for streamed sample ingest.
type Backend struct {
	deps     Dependencies
	pending  *queue.Queue[model.FlightSample]
	stopChan chan struct{}
	dbReady  bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:    deps,
		pending: queue.New[model.FlightSample](),
	}
}

// SetDB injects the database connection. Used by wrappers that open their
// connection in Init rather than at construction.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// Init runs schema migration and starts the background writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("no database connection provided")
	}

	b.stopChan = make(chan struct{})

	b.deps.Logger.Info().Msg("Migrating schema")
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.dbReady = true

	go b.writeLoop()
	return nil
}

// Close flushes pending samples and stops the background writer.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		b.stopChan = nil
	}
	return b.Flush()
}

// writeLoop periodically drains the pending queue into the database.
func (b *Backend) writeLoop() {
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("Failed to flush pending samples")
			}
		}
	}
}

// Flush writes all queued samples in one batched insert.
func (b *Backend) Flush() error {
	if !b.dbReady || b.pending.Empty() {
		return nil
	}

	samples := b.pending.GetAndEmpty()
	start := time.Now()

	if err := b.deps.DB.CreateInBatches(samples, 2000).Error; err != nil {
		// Put them back so the next flush retries.
		b.pending.Push(samples...)
		return fmt.Errorf("failed to insert %d samples: %w", len(samples), err)
	}

	b.deps.Logger.Debug().
		Int("samples", len(samples)).
		Dur("duration", time.Since(start)).
		Msg("Flushed sample batch")
	return nil
}

// ListDatasets returns all stored datasets, most recent first.
func (b *Backend) ListDatasets() ([]core.DatasetInfo, error) {
	var datasets []model.Dataset
	if err := b.deps.DB.Order("created_at DESC").Find(&datasets).Error; err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	infos := make([]core.DatasetInfo, len(datasets))
	for i, d := range datasets {
		infos[i] = core.DatasetInfo{
			Name:          d.Name,
			Date:          d.Date,
			AirportFilter: d.AirportFilter,
			SampleCount:   d.SampleCount,
		}
	}
	return infos, nil
}

// CreateDataset stores a new dataset with its samples. The name must be
// unique; creating over an existing name fails rather than overwrites.
func (b *Backend) CreateDataset(name, date, airportFilter string, records []core.SampleRecord) (core.DatasetInfo, error) {
	var existing model.Dataset
	err := b.deps.DB.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return core.DatasetInfo{}, fmt.Errorf("dataset %q already exists", name)
	}
	if err != gorm.ErrRecordNotFound {
		return core.DatasetInfo{}, fmt.Errorf("failed to check dataset %q: %w", name, err)
	}

	ds := model.Dataset{
		Name:          name,
		Date:          date,
		AirportFilter: airportFilter,
		SampleCount:   int64(len(records)),
	}
	if err := b.deps.DB.Create(&ds).Error; err != nil {
		return core.DatasetInfo{}, fmt.Errorf("failed to create dataset %q: %w", name, err)
	}

	b.pending.Push(convert.RecordsToSamples(ds.ID, records)...)
	if err := b.Flush(); err != nil {
		return core.DatasetInfo{}, err
	}

	return core.DatasetInfo{
		Name:          ds.Name,
		Date:          ds.Date,
		AirportFilter: ds.AirportFilter,
		SampleCount:   ds.SampleCount,
	}, nil
}

// AppendSamples queues additional samples for an existing dataset. They
// reach the database on the next flush.
func (b *Backend) AppendSamples(name string, records []core.SampleRecord) error {
	ds, err := b.findDataset(name)
	if err != nil {
		return err
	}

	b.pending.Push(convert.RecordsToSamples(ds.ID, records)...)

	return b.deps.DB.Model(&ds).
		Update("sample_count", gorm.Expr("sample_count + ?", len(records))).Error
}

// DeleteDataset removes a dataset and all its samples.
func (b *Backend) DeleteDataset(name string) error {
	ds, err := b.findDataset(name)
	if err != nil {
		return err
	}

	if err := b.deps.DB.Where("dataset_id = ?", ds.ID).Delete(&model.FlightSample{}).Error; err != nil {
		return fmt.Errorf("failed to delete samples of %q: %w", name, err)
	}
	if err := b.deps.DB.Delete(&ds).Error; err != nil {
		return fmt.Errorf("failed to delete dataset %q: %w", name, err)
	}
	return nil
}

// CountSamples returns the stored sample count of a dataset.
func (b *Backend) CountSamples(name string) (int64, error) {
	ds, err := b.findDataset(name)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := b.deps.DB.Model(&model.FlightSample{}).
		Where("dataset_id = ?", ds.ID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count samples of %q: %w", name, err)
	}
	return count, nil
}

// LoadSamples returns every sample of a dataset ordered by flight and time,
// which matches the grouping the trajectory loader expects.
func (b *Backend) LoadSamples(name string) ([]core.SampleRecord, error) {
	ds, err := b.findDataset(name)
	if err != nil {
		return nil, err
	}

	var samples []model.FlightSample
	if err := b.deps.DB.
		Where("dataset_id = ?", ds.ID).
		Order("flight_key, time_ms").
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to load samples of %q: %w", name, err)
	}
	return convert.SamplesToRecords(samples), nil
}

// PreviewSamples returns up to limit samples of a dataset in time order.
func (b *Backend) PreviewSamples(name string, limit int) ([]core.SampleRecord, error) {
	ds, err := b.findDataset(name)
	if err != nil {
		return nil, err
	}

	var samples []model.FlightSample
	if err := b.deps.DB.
		Where("dataset_id = ?", ds.ID).
		Order("time_ms").
		Limit(limit).
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("failed to preview samples of %q: %w", name, err)
	}
	return convert.SamplesToRecords(samples), nil
}

func (b *Backend) findDataset(name string) (model.Dataset, error) {
	var ds model.Dataset
	err := b.deps.DB.Where("name = ?", name).First(&ds).Error
	if err == gorm.ErrRecordNotFound {
		return ds, fmt.Errorf("dataset %q not found", name)
	}
	if err != nil {
		return ds, fmt.Errorf("failed to find dataset %q: %w", name, err)
	}
	return ds, nil
}
