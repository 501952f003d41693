// Package daemon coordinates the long-running sync service and enforces
// single-instance execution via an advisory lock in the state directory.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vodsync/internal/config"
	"vodsync/internal/ledger"
	"vodsync/internal/logging"
	"vodsync/internal/scheduler"
	"vodsync/internal/syncer"
	"vodsync/internal/ytdlp"
)

// ErrAlreadyRunning indicates another vodsync process holds the
// state-directory lock.
var ErrAlreadyRunning = errors.New("another vodsync process is already running")

// LockPath returns the advisory lock location for a state directory.
func LockPath(stateDir string) string {
	return filepath.Join(stateDir, "vodsync.lock")
}

// AcquireLock claims the per-state-directory lock shared by the daemon and
// one-shot sync runs, so only one process downloads against a given tracking
// store at a time. Callers must Unlock the returned lock.
func AcquireLock(stateDir string) (*flock.Flock, error) {
	lock := flock.New(LockPath(stateDir))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Daemon owns the tracking store, the scheduler, and the instance lock.
type Daemon struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	store     *ledger.Store
	scheduler *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
}

// New constructs a daemon with initialized dependencies. The store and
// scheduler are created here; nothing external starts until Run.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open tracking store: %w", err)
	}

	client := ytdlp.NewCLI(ytdlp.WithBinary(cfg.Download.YtdlpBinary))
	sync := syncer.New(store, client, logger)
	sched := scheduler.New(configPath, cfg, sync.RunPass, logger)

	return &Daemon{
		cfg:        cfg,
		configPath: configPath,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		scheduler:  sched,
		lockPath:   LockPath(cfg.Paths.StateDir),
	}, nil
}

// Run acquires the instance lock, verifies the environment, and blocks in
// the scheduler loop until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	lock, err := AcquireLock(d.cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	d.lock = lock
	defer func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn("releasing daemon lock", logging.Error(err))
		}
	}()

	if err := d.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("tracking store unhealthy: %w", err)
	}
	client := ytdlp.NewCLI(ytdlp.WithBinary(d.cfg.Download.YtdlpBinary))
	if err := client.CheckInstalled(ctx); err != nil {
		return err
	}

	d.running.Store(true)
	defer d.running.Store(false)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()))

	return d.scheduler.Run(ctx)
}

// Running reports whether the scheduler loop is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Close releases the tracking store.
func (d *Daemon) Close() error {
	return d.store.Close()
}
