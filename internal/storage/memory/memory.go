// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/pkg/core"
)

// datasetRecord groups a dataset with its samples
type datasetRecord struct {
	info    core.DatasetInfo
	samples []core.SampleRecord
}

// Backend stores datasets in memory and exports replays to JSON. Useful
// for tests and one-shot export runs where no database is wanted.
type Backend struct {
	cfg config.MemoryConfig

	datasets map[string]*datasetRecord
	order    []string

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		datasets: make(map[string]*datasetRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// ListDatasets returns all stored datasets in creation order.
func (b *Backend) ListDatasets() ([]core.DatasetInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]core.DatasetInfo, 0, len(b.order))
	for _, name := range b.order {
		infos = append(infos, b.datasets[name].info)
	}
	return infos, nil
}

// CreateDataset stores a new dataset. The name must be unique.
func (b *Backend) CreateDataset(name, date, airportFilter string, records []core.SampleRecord) (core.DatasetInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.datasets[name]; ok {
		return core.DatasetInfo{}, fmt.Errorf("dataset %q already exists", name)
	}

	// Keep samples in flight/time order so loads behave like the DB
	// backends.
	sorted := make([]core.SampleRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].TimeMs < sorted[j].TimeMs
	})

	info := core.DatasetInfo{
		Name:          name,
		Date:          date,
		AirportFilter: airportFilter,
		SampleCount:   int64(len(sorted)),
	}
	b.datasets[name] = &datasetRecord{info: info, samples: sorted}
	b.order = append(b.order, name)
	return info, nil
}

// DeleteDataset removes a dataset and its samples.
func (b *Backend) DeleteDataset(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.datasets[name]; !ok {
		return fmt.Errorf("dataset %q not found", name)
	}
	delete(b.datasets, name)
	for i, n := range b.order {
		if n == name {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// CountSamples returns the sample count of a dataset.
func (b *Backend) CountSamples(name string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.datasets[name]
	if !ok {
		return 0, fmt.Errorf("dataset %q not found", name)
	}
	return int64(len(record.samples)), nil
}

// LoadSamples returns every sample of a dataset.
func (b *Backend) LoadSamples(name string) ([]core.SampleRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q not found", name)
	}
	out := make([]core.SampleRecord, len(record.samples))
	copy(out, record.samples)
	return out, nil
}

// PreviewSamples returns up to limit samples of a dataset in time order.
func (b *Backend) PreviewSamples(name string, limit int) ([]core.SampleRecord, error) {
	samples, err := b.LoadSamples(name)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].TimeMs < samples[j].TimeMs
	})
	if limit >= 0 && limit < len(samples) {
		samples = samples[:limit]
	}
	return samples, nil
}

// GetLastExportPath returns the path of the most recent replay export.
func (b *Backend) GetLastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
