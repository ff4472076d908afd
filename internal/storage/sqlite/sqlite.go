// Package sqlitestorage implements the storage.Backend interface using an
// in-memory SQLite database with periodic disk dumps via VACUUM INTO. It
// wraps the GORM backend via composition; the only SQLite-specific concerns
// are creating the in-memory DB and the periodic dump loop.
package sqlitestorage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/internal/database"
	gormstorage "github.com/Changplay12345/flight-animation/internal/storage/gorm"

	"gorm.io/gorm"
)

// DefaultDumpInterval is how often the in-memory database is snapshotted
// to disk.
const DefaultDumpInterval = 30 * time.Second

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	dumpPath string
	log      zerolog.Logger
	stopChan chan struct{}
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: log,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		dumpPath: cfg.Path,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumpPath != "" {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	close(b.stopChan)
	err := b.Backend.Close()

	// Final snapshot so nothing written since the last tick is lost.
	if b.dumpPath != "" {
		if derr := database.DumpMemoryDBToDisk(b.db, b.dumpPath); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via
// VACUUM INTO. VACUUM INTO creates a point-in-time snapshot, so no pause
// mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(DefaultDumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := database.DumpMemoryDBToDisk(b.db, b.dumpPath); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
