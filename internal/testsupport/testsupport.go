// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vodsync/internal/config"
	"vodsync/internal/ledger"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.OutputDir = filepath.Join(base, "videos")
	cfg.Download.TimeoutSeconds = 30

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithSources sets the sources on the test config.
func WithSources(sources ...config.Source) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sources = sources
	}
}

// MustOpenStore opens a tracking store against the config's state directory
// and closes it when the test finishes.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

// Source returns a valid channel source rooted in the config's output dir.
func Source(cfg *config.Config, url string) config.Source {
	return config.Source{
		URL:       url,
		Type:      config.SourceChannel,
		OutputDir: filepath.Join(cfg.Paths.OutputDir, sanitizeForDir(url)),
	}
}

func sanitizeForDir(url string) string {
	out := make([]rune, 0, len(url))
	for _, r := range url {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Completed seeds a completed record for the key, for planner and syncer tests.
func Completed(t testing.TB, store *ledger.Store, sourceID, videoID, path string) {
	t.Helper()

	ctx := context.Background()
	attempt, err := store.BeginAttempt(ctx, sourceID, videoID, videoID, time.Time{})
	if err != nil {
		t.Fatalf("begin attempt: %v", err)
	}
	if err := store.Complete(ctx, attempt, path); err != nil {
		t.Fatalf("complete attempt: %v", err)
	}
}
