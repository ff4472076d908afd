package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/Changplay12345/flight-animation/internal/config"
	"github.com/Changplay12345/flight-animation/internal/database"
	"github.com/Changplay12345/flight-animation/internal/logging"
	"github.com/Changplay12345/flight-animation/internal/monitor"
	intOtel "github.com/Changplay12345/flight-animation/internal/otel"
	"github.com/Changplay12345/flight-animation/internal/session"
	"github.com/Changplay12345/flight-animation/internal/storage"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "flightanim"
)

// global state shared by the subcommands
var (
	SessionStartTime time.Time = time.Now()

	LogFilePath string
	LogFile     *os.File

	// LogManager handles all slog-based logging
	LogManager *logging.Manager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the zerolog-based managers (database, influx, storage)
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// Services
	storageBackend storage.Backend
	sessionCtx     *session.Context = session.NewContext()
	dbManager      *database.Manager
)

func init() {
	var err error

	// Bootstrap logging to stdout until the config tells us where the log
	// file lives.
	LogManager = logging.NewManager()
	LogManager.Setup(nil, "info", nil)
	Logger = LogManager.Logger()

	err = config.Load(".")
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	if viper.GetBool("graylog.enabled") {
		if err := LogManager.EnableGraylog(viper.GetString("graylog.address")); err != nil {
			Logger.Warn("Failed to enable Graylog output", "error", err)
		}
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	LogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = LogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	ZLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func openStorage() error {
	var err error
	storageBackend, err = storage.NewBackend(config.GetStorageConfig(), ZLogger)
	if err != nil {
		return fmt.Errorf("creating storage backend: %w", err)
	}
	if err := storageBackend.Init(); err != nil {
		return fmt.Errorf("initializing storage backend: %w", err)
	}
	return nil
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Warn("Error closing storage backend", "error", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Error shutting down OTel provider", "error", err)
		}
	}
	LogManager.Close(ctx)
}

func setupDatabase() error {
	dbManager = database.NewManager(ZLogger)
	if err := dbManager.Connect(); err != nil {
		return err
	}
	if err := dbManager.Setup(); err != nil {
		return err
	}

	// On Timescale-enabled Postgres, make the performance table a hypertable.
	if dbManager.DB.Dialector.Name() == "postgres" {
		svc := monitor.NewService(monitor.Dependencies{
			DB:         dbManager.DB,
			LogManager: LogManager,
		})
		if err := svc.ValidateHypertables(map[string][]string{
			"playback_performances": {"dataset_id"},
		}); err != nil {
			Logger.Warn("Hypertable setup skipped", "error", err)
		}
	}
	return nil
}

func usage() {
	fmt.Printf("%s %s (built %s)\n\n", AppName, Version, BuildDate)
	fmt.Println("Usage:")
	fmt.Println("  flightanim datasets                              list stored datasets")
	fmt.Println("  flightanim import <name> <date> <file> [airport] create a dataset from a JSON sample file")
	fmt.Println("  flightanim preview <name> [limit]                print the first samples of a dataset")
	fmt.Println("  flightanim delete <name>                         delete a dataset")
	fmt.Println("  flightanim replay <name> [speed]                 play a dataset until it ends or ctrl-c")
	fmt.Println("  flightanim export <name>                         write a replay file for the web viewer")
	fmt.Println("  flightanim upload <name> [tag]                   export and upload to the web viewer")
	fmt.Println("  flightanim setupdb                               migrate the database schema")
}

func main() {
	defer shutdown()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return
	}

	cmd := strings.ToLower(args[0])

	var err error
	switch cmd {
	case "setupdb":
		err = setupDatabase()
	case "datasets", "import", "preview", "delete", "replay", "export", "upload":
		if err = openStorage(); err != nil {
			break
		}
		switch cmd {
		case "datasets":
			err = listDatasets()
		case "import":
			err = importSamples(args[1:])
		case "preview":
			err = previewDataset(args[1:])
		case "delete":
			err = deleteDataset(args[1:])
		case "replay":
			err = runReplay(args[1:])
		case "export":
			err = exportReplay(args[1:])
		case "upload":
			err = uploadReplay(args[1:])
		}
	default:
		usage()
		return
	}

	if err != nil {
		Logger.Error("Command failed", "command", cmd, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		shutdown()
		os.Exit(1)
	}
}
