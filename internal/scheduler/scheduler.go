// Package scheduler drives periodic sync passes. Passes are single-flight:
// a tick that fires while a pass is still running is dropped, never queued.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vodsync/internal/config"
	"vodsync/internal/logging"
	"vodsync/internal/syncer"
)

// State reports what the scheduler is doing.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// PassFunc executes one full sync pass.
type PassFunc func(ctx context.Context, cfg *config.Config) (syncer.PassResult, error)

// Scheduler re-reads configuration before every pass so source edits take
// effect without a restart.
type Scheduler struct {
	configPath string
	run        PassFunc
	logger     *slog.Logger
	now        func() time.Time

	mu           sync.Mutex
	state        State
	lastRunStart time.Time
	lastCfg      *config.Config

	wg sync.WaitGroup
}

// Option adjusts Scheduler construction.
type Option func(*Scheduler)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Scheduler. The initial configuration seeds the timing
// parameters; configPath is re-loaded before each pass.
func New(configPath string, initial *config.Config, run PassFunc, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		configPath: configPath,
		run:        run,
		logger:     logging.WithComponent(logger, "scheduler"),
		now:        time.Now,
		state:      StateIdle,
		lastCfg:    initial,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run blocks until the context is cancelled. An initial pass starts
// immediately; after that, a pass starts whenever the interval has elapsed
// or the configured daily run time has been crossed. Cancellation waits for
// an in-flight pass to drain before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		logging.Int("interval_hours", s.lastCfg.Scheduler.SyncIntervalHours),
		logging.String("first_run_time", s.lastCfg.Scheduler.FirstRunTime),
		logging.Int("tick_seconds", s.lastCfg.Scheduler.TickSeconds))

	s.maybeStartPass(ctx, true)

	tick := s.tickInterval()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, draining in-flight pass")
			s.wg.Wait()
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.maybeStartPass(ctx, false)
			if next := s.tickInterval(); next != tick {
				tick = next
				ticker.Reset(tick)
			}
		}
	}
}

func (s *Scheduler) tickInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	seconds := s.lastCfg.Scheduler.TickSeconds
	if seconds < 1 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}

// maybeStartPass launches a pass in the background if one is due and none is
// already running.
func (s *Scheduler) maybeStartPass(ctx context.Context, force bool) {
	now := s.now()

	s.mu.Lock()
	if s.state == StateRunning {
		if force || s.dueLocked(now) {
			s.logger.Debug("pass already running, dropping trigger", logging.Bool("forced", force))
		}
		s.mu.Unlock()
		return
	}
	if !force && !s.dueLocked(now) {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.lastRunStart = now
	s.mu.Unlock()

	runID := uuid.New().String()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.state = StateIdle
			s.mu.Unlock()
		}()
		s.executePass(ctx, runID)
	}()
}

// dueLocked decides whether a pass should start now. Callers hold s.mu.
func (s *Scheduler) dueLocked(now time.Time) bool {
	if s.lastRunStart.IsZero() {
		return true
	}
	interval := time.Duration(s.lastCfg.Scheduler.SyncIntervalHours) * time.Hour
	if interval > 0 && now.Sub(s.lastRunStart) >= interval {
		return true
	}
	clock, err := config.ParseClock(s.lastCfg.Scheduler.FirstRunTime)
	if err != nil {
		return false
	}
	anchor := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	return !anchor.After(now) && s.lastRunStart.Before(anchor)
}

func (s *Scheduler) executePass(ctx context.Context, runID string) {
	log := s.logger.With(logging.String(logging.FieldRunID, runID))

	cfg, path, _, err := config.Load(s.configPath)
	if err != nil {
		log.Error("configuration reload failed, skipping pass", logging.Error(err))
		s.mu.Lock()
		s.lastRunStart = time.Time{}
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.lastCfg = cfg
	s.mu.Unlock()

	log.Info("sync pass started",
		logging.String("config", path),
		logging.Int("sources", len(cfg.Sources)))
	start := s.now()
	result, err := s.run(ctx, cfg)
	if err != nil {
		log.Error("sync pass aborted", logging.Error(err))
		return
	}
	log.Info("sync pass finished",
		logging.Duration("elapsed", s.now().Sub(start)),
		logging.Int("downloaded", result.Downloaded()),
		logging.Int("failed", result.Failed()))
}
