package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"vodsync/internal/daemon"
	"vodsync/internal/testsupport"
)

// stubYtdlp writes a fake fetch tool so environment checks pass without the
// real binary.
func stubYtdlp(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Download.YtdlpBinary = stubYtdlp(t)

	d, err := daemon.New(cfg, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	deadline := time.After(10 * time.Second)
	for !d.Running() {
		select {
		case err := <-errCh:
			t.Fatalf("Run returned early: %v", err)
		case <-deadline:
			t.Fatal("daemon never reported running")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
	if d.Running() {
		t.Fatal("daemon should not report running after Run returns")
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Download.YtdlpBinary = stubYtdlp(t)

	holder := flock.New(filepath.Join(cfg.Paths.StateDir, "vodsync.lock"))
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("prelock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	d, err := daemon.New(cfg, "", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if err := d.Run(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	dir := t.TempDir()

	lock, err := daemon.AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := daemon.AcquireLock(dir); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second acquire err = %v, want ErrAlreadyRunning", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	lock, err = daemon.AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire after unlock: %v", err)
	}
	defer lock.Unlock()
}
