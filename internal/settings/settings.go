// Package settings holds the runtime-adjustable scheduler settings.
//
// The settings file is a small JSON document:
//
//	{"routineCheckIntervalMs": 30000}
//
// The interval is always clamped to [5000, 300000] ms. Edits made to the
// file outside the process are picked up by Watch.
package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-routines/internal/infrastructure/jsonfile"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

type document struct {
	RoutineCheckIntervalMS int `json:"routineCheckIntervalMs"`
}

// Store is the file-backed settings document.
type Store struct {
	path      string
	defaultMS int

	mu         sync.RWMutex
	intervalMS int

	logger Logger
}

// NewStore creates a store at path. defaultMS is used until Load finds a
// value on disk.
func NewStore(path string, defaultMS int) *Store {
	defaultMS = ClampInterval(defaultMS)
	return &Store{
		path:       path,
		defaultMS:  defaultMS,
		intervalMS: defaultMS,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// ClampInterval bounds ms to the allowed check interval range.
func ClampInterval(ms int) int {
	switch {
	case ms < config.MinCheckIntervalMS:
		return config.MinCheckIntervalMS
	case ms > config.MaxCheckIntervalMS:
		return config.MaxCheckIntervalMS
	default:
		return ms
	}
}

// Load reads the interval from disk. A missing file or a zero value keeps
// the default.
func (s *Store) Load(_ context.Context) error {
	ms, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.intervalMS = ms
	s.mu.Unlock()
	return nil
}

// IntervalMS returns the current check interval in milliseconds.
func (s *Store) IntervalMS() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.intervalMS
}

// Interval returns the current check interval.
func (s *Store) Interval() time.Duration {
	return time.Duration(s.IntervalMS()) * time.Millisecond
}

// SetInterval clamps ms, persists it and returns the value applied.
func (s *Store) SetInterval(ms int) (int, error) {
	ms = ClampInterval(ms)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := jsonfile.Save(s.path, document{RoutineCheckIntervalMS: ms}); err != nil {
		return s.intervalMS, fmt.Errorf("saving settings: %w", err)
	}
	s.intervalMS = ms
	s.logger.Info("routine check interval set", "interval_ms", ms)
	return ms, nil
}

func (s *Store) read() (int, error) {
	var doc document
	found, err := jsonfile.Load(s.path, &doc)
	if err != nil {
		return 0, fmt.Errorf("loading settings: %w", err)
	}
	if !found || doc.RoutineCheckIntervalMS == 0 {
		return s.defaultMS, nil
	}
	return ClampInterval(doc.RoutineCheckIntervalMS), nil
}
