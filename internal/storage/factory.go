// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/internal/storage/memory"
	"github.com/Changplay12345/flight-animation/internal/storage/postgres"
	sqlitestorage "github.com/Changplay12345/flight-animation/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, log), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, log)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
