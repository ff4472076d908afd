// internal/storage/storage.go
package storage

import "github.com/Changplay12345/flight-animation/pkg/core"

// Backend is the interface all dataset storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Dataset management
	ListDatasets() ([]core.DatasetInfo, error)
	CreateDataset(name, date, airportFilter string, records []core.SampleRecord) (core.DatasetInfo, error)
	DeleteDataset(name string) error

	// Sample access
	CountSamples(name string) (int64, error)
	LoadSamples(name string) ([]core.SampleRecord, error)
	PreviewSamples(name string, limit int) ([]core.SampleRecord, error)
}

// Exportable is an optional interface for storage backends that produce
// replay files suitable for upload to a web viewer.
type Exportable interface {
	ExportReplay(name string) (string, error)
	GetLastExportPath() string
}
