package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Manager owns the process-wide slog configuration: console, file,
// optional Graylog and optional OTel outputs behind one fan-out handler.
type Manager struct {
	logger *slog.Logger

	gelfWriter *gelf.Writer

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewManager creates an unconfigured logging manager.
func NewManager() *Manager {
	return &Manager{}
}

// Test seams for stdout capture.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with console, file and optional
// OTel output. If provider is nil, OTel logging is disabled.
func (m *Manager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	// Console output only when no log file is configured; a file run stays
	// quiet on stdout.
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if m.gelfWriter != nil {
		handlers = append(handlers, slog.NewJSONHandler(m.gelfWriter, handlerOpts))
	}

	if provider != nil {
		otelHandler := otelslog.NewHandler("flightanim", otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	m.logger = slog.New(NewMultiHandler(handlers...))
	m.logger.Info("Logging initialized", "level", level)
}

// EnableGraylog connects a GELF writer so Setup adds a Graylog output.
// Must be called before Setup.
func (m *Manager) EnableGraylog(address string) error {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return fmt.Errorf("connecting gelf writer to %s: %w", address, err)
	}
	m.gelfWriter = w
	return nil
}

// Logger returns the configured slog.Logger.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *Manager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close flushes and releases external log outputs.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Flush(ctx)
	if m.gelfWriter != nil {
		if cerr := m.gelfWriter.Close(); cerr != nil && err == nil {
			err = cerr
		}
		m.gelfWriter = nil
	}
	return err
}
