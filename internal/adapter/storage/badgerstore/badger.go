package badgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Open opens the embedded store at path. An empty path opens an in-memory
// database, which is what tests use.
func Open(path string, log zerolog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(NewLogger(log))
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Bool("in_memory", path == "").
		Msg("Badger store opened")

	return db, nil
}

// Logger adapts zerolog to badger.Logger. Badger's info output is chatty,
// so it is demoted to debug.
type Logger struct {
	log zerolog.Logger
}

// NewLogger wraps log for badger.
func NewLogger(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "badger").Logger()}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msgf(format, args...)
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf(format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log.Trace().Msgf(format, args...)
}

var errClosed = errors.New("badger database is closed")

// HealthCheck implements ports.HealthChecker for the embedded store.
type HealthCheck struct {
	db *badger.DB
}

// NewHealthCheck creates a Badger health checker.
func NewHealthCheck(db *badger.DB) *HealthCheck {
	return &HealthCheck{db: db}
}

// Ping fails once the database has been closed.
func (h *HealthCheck) Ping(_ context.Context) error {
	if h.db.IsClosed() {
		return errClosed
	}
	return nil
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "badger"
}
