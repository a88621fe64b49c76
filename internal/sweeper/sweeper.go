// Package sweeper periodically removes stale scratch directories left behind
// by failed builds. Failed scratch directories are kept for post-mortem
// inspection, but only for a bounded retention window.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/fontbuilder/internal/logfields"
)

const scratchPrefix = "build-"

// Sweeper owns the periodic scratch directory sweep.
type Sweeper struct {
	scratchRoot string
	interval    time.Duration

	mu        sync.RWMutex
	retention time.Duration

	// inFlight reports whether a fingerprint currently has a running task;
	// its scratch directory must never be swept.
	inFlight func(fingerprint string) bool

	scheduler gocron.Scheduler
}

// New creates a sweeper for the given scratch root.
func New(scratchRoot string, interval, retention time.Duration, inFlight func(string) bool) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if inFlight == nil {
		inFlight = func(string) bool { return false }
	}

	return &Sweeper{
		scratchRoot: scratchRoot,
		interval:    interval,
		retention:   retention,
		inFlight:    inFlight,
		scheduler:   s,
	}, nil
}

// Start schedules the periodic sweep and begins the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
		gocron.WithName("scratch-sweep"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sweep job: %w", err)
	}

	slog.Info("Starting scratch sweeper",
		logfields.Path(s.scratchRoot),
		"interval", s.interval,
		"retention", s.Retention())
	s.scheduler.Start()
	return nil
}

// Stop gracefully shuts down the sweeper.
func (s *Sweeper) Stop(_ context.Context) error {
	return s.scheduler.Shutdown()
}

// Retention returns the current retention window.
func (s *Sweeper) Retention() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retention
}

// SetRetention updates the retention window (used by config hot-reload).
func (s *Sweeper) SetRetention(d time.Duration) {
	s.mu.Lock()
	s.retention = d
	s.mu.Unlock()
}

// Sweep removes scratch directories older than the retention window. It
// skips fingerprints with in-flight tasks and anything not matching the
// scratch naming scheme.
func (s *Sweeper) Sweep(_ context.Context) {
	retention := s.Retention()
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(s.scratchRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read scratch root", logfields.Path(s.scratchRoot), logfields.Error(err))
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), scratchPrefix) {
			continue
		}
		fingerprint := strings.TrimPrefix(entry.Name(), scratchPrefix)
		if s.inFlight(fingerprint) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.scratchRoot, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			slog.Warn("Failed to remove stale scratch directory",
				logfields.Path(path), logfields.Error(err))
			continue
		}
		removed++
		slog.Debug("Removed stale scratch directory",
			logfields.Fingerprint(fingerprint), logfields.Path(path))
	}

	if removed > 0 {
		slog.Info("Scratch sweep finished", "removed", removed)
	}
}
