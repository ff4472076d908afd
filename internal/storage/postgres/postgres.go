// Package postgres implements the storage.Backend interface using
// GORM/PostgreSQL. It wraps the shared GORM backend and owns only the
// connection lifecycle.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/internal/database"
	gormstorage "github.com/Changplay12345/flight-animation/internal/storage/gorm"
)

// Backend wraps the GORM backend with a Postgres connection.
type Backend struct {
	*gormstorage.Backend
	cfg config.PostgresConfig
	log zerolog.Logger
}

// New creates a new Postgres storage backend. The connection is not opened
// until Init.
func New(cfg config.PostgresConfig, log zerolog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: log}),
		cfg:     cfg,
		log:     log,
	}
}

// Init connects to Postgres, validates the connection and initializes the
// embedded GORM backend.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.SetDB(db)
	b.log.Info().
		Str("host", b.cfg.Host).
		Str("database", b.cfg.Database).
		Msg("Connected to Postgres")

	return b.Backend.Init()
}
