package ledger_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vodsync/internal/ledger"
	"vodsync/internal/testsupport"
)

const testSource = "https://www.youtube.com/@example"

func TestAttemptLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	published := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	attempt, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", published)
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	record, err := store.Lookup(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Status != ledger.StatusDownloading {
		t.Fatalf("status = %s, want %s", record.Status, ledger.StatusDownloading)
	}
	if !record.PublishedAt.Equal(published) {
		t.Fatalf("published = %v, want %v", record.PublishedAt, published)
	}

	if err := store.Complete(ctx, attempt, "/videos/first.mp4"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	record, err = store.Lookup(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Status != ledger.StatusCompleted {
		t.Fatalf("status = %s, want %s", record.Status, ledger.StatusCompleted)
	}
	if record.LocalPath != "/videos/first.mp4" {
		t.Fatalf("local path = %q", record.LocalPath)
	}

	known, err := store.IsKnown(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("IsKnown: %v", err)
	}
	if !known {
		t.Fatal("completed record should be known")
	}
}

func TestBeginAttemptAfterCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Completed(t, store, testSource, "vid-1", "/videos/first.mp4")

	if _, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{}); !errors.Is(err, ledger.ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
	}
}

func TestBeginAttemptConcurrentOneWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		declined int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ledger.ErrConcurrentAttempt):
				declined++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
	if declined != attempts-1 {
		t.Fatalf("declined = %d, want %d", declined, attempts-1)
	}
}

func TestCrashedAttemptReclaimable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{}); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	// A fresh store on the same database is what a restart sees: the row is
	// stuck in downloading but nobody holds the claim.
	restarted, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer restarted.Close()

	attempt, err := restarted.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{})
	if err != nil {
		t.Fatalf("BeginAttempt after restart: %v", err)
	}
	if err := restarted.Complete(ctx, attempt, "/videos/first.mp4"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestFailThenRetryUntilExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 0; i < ledger.MaxAttempts; i++ {
		attempt, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{})
		if err != nil {
			t.Fatalf("BeginAttempt %d: %v", i+1, err)
		}
		if err := store.Fail(ctx, attempt, errors.New("network gave out")); err != nil {
			t.Fatalf("Fail %d: %v", i+1, err)
		}
	}

	record, err := store.Lookup(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.AttemptCount != ledger.MaxAttempts {
		t.Fatalf("attempts = %d, want %d", record.AttemptCount, ledger.MaxAttempts)
	}
	if record.Retryable() {
		t.Fatal("exhausted record should not be retryable")
	}

	if _, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{}); !errors.Is(err, ledger.ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
}

func TestFailTruncatesLongMessages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	attempt, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{})
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := store.Fail(ctx, attempt, errors.New(strings.Repeat("x", 2000))); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	record, err := store.Lookup(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(record.ErrorMessage) != 500 {
		t.Fatalf("error message length = %d, want 500", len(record.ErrorMessage))
	}
}

func TestResetFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	attempt, err := store.BeginAttempt(ctx, testSource, "vid-1", "First Video", time.Time{})
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := store.Fail(ctx, attempt, errors.New("boom")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	testsupport.Completed(t, store, testSource, "vid-2", "/videos/second.mp4")

	reset, err := store.ResetFailed(ctx, testSource)
	if err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}

	record, err := store.Lookup(ctx, testSource, "vid-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want %s", record.Status, ledger.StatusPending)
	}
	if record.AttemptCount != 0 {
		t.Fatalf("attempts = %d, want 0", record.AttemptCount)
	}
}

func TestBeginAttemptClaimsPendingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	attempt, err := store.BeginAttempt(ctx, testSource, "vid-pending", "Pending Video", time.Time{})
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := store.Fail(ctx, attempt, errors.New("network hiccup")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := store.ResetFailed(ctx, testSource); err != nil {
		t.Fatalf("ResetFailed: %v", err)
	}

	record, err := store.Lookup(ctx, testSource, "vid-pending")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Status != ledger.StatusPending {
		t.Fatalf("status = %s, want %s", record.Status, ledger.StatusPending)
	}

	if _, err := store.BeginAttempt(ctx, testSource, "vid-pending", "Pending Video", time.Time{}); err != nil {
		t.Fatalf("BeginAttempt on pending record: %v", err)
	}
	record, err = store.Lookup(ctx, testSource, "vid-pending")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record.Status != ledger.StatusDownloading {
		t.Fatalf("status = %s, want %s", record.Status, ledger.StatusDownloading)
	}
}
