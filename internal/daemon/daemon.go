// Package daemon wires the fontbuilder service together: worker pool,
// scheduler, scratch sweeper, event sinks and config watching, with a
// Start/Stop lifecycle driven by the binary's composition root.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/fontbuilder/internal/builder"
	"git.home.luguber.info/inful/fontbuilder/internal/config"
	"git.home.luguber.info/inful/fontbuilder/internal/eventstore"
	"git.home.luguber.info/inful/fontbuilder/internal/font"
	"git.home.luguber.info/inful/fontbuilder/internal/metrics"
	"git.home.luguber.info/inful/fontbuilder/internal/queue"
	"git.home.luguber.info/inful/fontbuilder/internal/scheduler"
	"git.home.luguber.info/inful/fontbuilder/internal/sweeper"
)

// Status represents the current state of the service
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

// Service is the composition root for the fontbuilder scheduler.
type Service struct {
	config         *config.Config
	configFilePath string
	status         atomic.Value // Status
	startTime      time.Time

	pool      *queue.Pool
	scheduler *scheduler.Scheduler
	sweeper   *sweeper.Sweeper
	store     eventstore.Store
	natsEmit  *NATSEmitter
	watcher   *ConfigWatcher
	registry  *prom.Registry
	stopChan  chan struct{}
	logLevel  *slog.LevelVar
}

// New creates a service instance without config file watching.
func New(cfg *config.Config) (*Service, error) {
	return NewWithConfigFile(cfg, "")
}

// NewWithConfigFile creates a service instance; when configFilePath is
// non-empty the file is watched for hot-reloadable settings.
func NewWithConfigFile(cfg *config.Config, configFilePath string) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	s := &Service{
		config:         cfg,
		configFilePath: configFilePath,
		registry:       prom.NewRegistry(),
		stopChan:       make(chan struct{}),
	}
	s.status.Store(StatusStopped)

	recorder := metrics.NewPrometheusRecorder(s.registry)

	gen := builder.New(cfg.Generator.Path, cfg.Generator.WorkDir)
	s.pool = queue.New(cfg.Queue.Workers, cfg.Queue.MaxSize, gen)
	s.pool.SetRecorder(recorder)

	s.scheduler = scheduler.New(
		&font.GlyphNormalizer{},
		s.pool,
		cfg.Generator.ToolVersion,
		cfg.OutputRoot(),
		cfg.ScratchRoot(),
	)
	s.scheduler.SetRecorder(recorder)

	if cfg.Sweeper.Enabled {
		sw, err := sweeper.New(cfg.ScratchRoot(), cfg.SweepInterval(), cfg.SweepRetention(), s.scheduler.InFlight)
		if err != nil {
			return nil, fmt.Errorf("failed to create sweeper: %w", err)
		}
		s.sweeper = sw
	}

	if configFilePath != "" {
		w, err := NewConfigWatcher(configFilePath, s)
		if err != nil {
			return nil, fmt.Errorf("failed to create config watcher: %w", err)
		}
		s.watcher = w
	}

	return s, nil
}

// SetLogLevelVar hands the service the level var backing the process logger
// so config reloads can adjust verbosity live.
func (s *Service) SetLogLevelVar(v *slog.LevelVar) {
	s.logLevel = v
}

// Scheduler exposes the request entry points for the enclosing service.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Registry returns the Prometheus registry holding the service metrics.
func (s *Service) Registry() *prom.Registry { return s.registry }

// GetStatus returns the current lifecycle status.
func (s *Service) GetStatus() Status {
	return s.status.Load().(Status)
}

// Start brings up event sinks, the worker pool, the sweeper and the config
// watcher. The in-flight task table always starts empty; only the artifact
// cache on disk survives restarts.
func (s *Service) Start(ctx context.Context) error {
	s.status.Store(StatusStarting)
	s.startTime = time.Now()

	for _, dir := range []string{s.config.OutputRoot(), s.config.ScratchRoot()} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			s.status.Store(StatusStopped)
			return fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	emitters := make([]Emitter, 0, 2)
	if s.config.Events.StorePath != "" {
		store, err := eventstore.NewSQLiteStore(s.config.Events.StorePath)
		if err != nil {
			s.status.Store(StatusStopped)
			return fmt.Errorf("failed to open event store: %w", err)
		}
		s.store = store
		emitters = append(emitters, NewStoreEmitter(store))
	}
	if s.config.Events.NATS.Enabled {
		emitter, err := NewNATSEmitter(s.config.Events.NATS)
		if err != nil {
			s.closeSinks()
			s.status.Store(StatusStopped)
			return fmt.Errorf("failed to create NATS emitter: %w", err)
		}
		s.natsEmit = emitter
		emitters = append(emitters, emitter)
	}
	if len(emitters) > 0 {
		composite := NewCompositeEmitter(emitters...)
		s.scheduler.SetEventEmitter(composite)
		s.pool.SetEventEmitter(composite)
	}

	s.pool.Start(ctx)

	if s.sweeper != nil {
		if err := s.sweeper.Start(ctx); err != nil {
			s.pool.Stop(ctx)
			s.closeSinks()
			s.status.Store(StatusStopped)
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			slog.Error("Failed to start config watcher", "error", err)
		} else {
			slog.Info("Config watcher started")
		}
	}

	s.status.Store(StatusRunning)
	slog.Info("fontbuilder service started",
		"workers", s.pool.Workers(),
		"tool_version", s.config.Generator.ToolVersion,
		"output_root", s.config.OutputRoot())

	// Block until stopped, mirroring the caller's run-until-signal shape.
	s.mainLoop(ctx)

	s.status.Store(StatusStopping)
	return nil
}

// mainLoop blocks until the context is cancelled or Stop is called,
// periodically logging queue pressure.
func (s *Service) mainLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Main loop stopped by context cancellation")
			return
		case <-s.stopChan:
			slog.Info("Main loop stopped by stop signal")
			return
		case <-ticker.C:
			slog.Debug("Service status",
				"queued", s.pool.Length(),
				"active", s.pool.ActiveCount(),
				"in_flight", s.scheduler.TaskCount())
		}
	}
}

// Stop shuts the service down. Tasks already admitted to the pool run to
// completion before Stop returns.
func (s *Service) Stop(ctx context.Context) error {
	if st := s.GetStatus(); st == StatusStopped {
		return nil
	}
	s.status.Store(StatusStopping)

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	if s.watcher != nil {
		if err := s.watcher.Stop(ctx); err != nil {
			slog.Warn("Failed to stop config watcher", "error", err)
		}
	}
	if s.sweeper != nil {
		if err := s.sweeper.Stop(ctx); err != nil {
			slog.Warn("Failed to stop sweeper", "error", err)
		}
	}

	s.pool.Stop(ctx)
	s.closeSinks()

	s.status.Store(StatusStopped)
	slog.Info("fontbuilder service stopped", "uptime", time.Since(s.startTime).Round(time.Second))
	return nil
}

func (s *Service) closeSinks() {
	if s.natsEmit != nil {
		_ = s.natsEmit.Close()
		s.natsEmit = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close event store", "error", err)
		}
		s.store = nil
	}
}

// GetConfig returns the active configuration.
func (s *Service) GetConfig() *config.Config {
	return s.config
}

// ReloadConfig applies hot-reloadable settings from a newly loaded config.
// Worker count, directory roots and the tool version tag are fixed at
// startup; only logging level and sweeper retention are applied live.
func (s *Service) ReloadConfig(_ context.Context, newConfig *config.Config) error {
	if s.logLevel != nil && newConfig.Logging.Level != s.config.Logging.Level {
		slog.Info("Applying new log level", "level", newConfig.Logging.Level)
		s.logLevel.Set(parseLogLevel(newConfig.Logging.Level))
	}
	if s.sweeper != nil && newConfig.Sweeper.Retention != s.config.Sweeper.Retention {
		slog.Info("Applying new sweeper retention", "retention", newConfig.Sweeper.Retention)
		s.sweeper.SetRetention(newConfig.SweepRetention())
	}

	if newConfig.Queue.Workers != s.config.Queue.Workers {
		slog.Warn("Worker count change requires restart to take effect")
	}
	if newConfig.Generator.ToolVersion != s.config.Generator.ToolVersion {
		slog.Warn("Tool version change requires restart to take effect")
	}

	s.config = newConfig
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
