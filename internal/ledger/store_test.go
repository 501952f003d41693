package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vodsync/internal/ledger"
	"vodsync/internal/testsupport"
)

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.Completed(t, store, testSource, "vid-1", "/videos/a.mp4")
	testsupport.Completed(t, store, testSource, "vid-2", "/videos/b.mp4")

	attempt, err := store.BeginAttempt(ctx, testSource, "vid-3", "Third", time.Time{})
	if err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if err := store.Fail(ctx, attempt, errors.New("boom")); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Completed != 2 || health.Failed != 1 {
		t.Fatalf("health = %+v", health)
	}
}

func TestStatsBySource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	other := "https://www.youtube.com/@other"
	testsupport.Completed(t, store, testSource, "vid-1", "/videos/a.mp4")
	if _, err := store.BeginAttempt(ctx, other, "vid-2", "Second", time.Time{}); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	stats, err := store.StatsBySource(ctx)
	if err != nil {
		t.Fatalf("StatsBySource: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("sources = %d, want 2", len(stats))
	}
	if stats[0].SourceID != testSource || stats[0].Completed != 1 {
		t.Fatalf("first = %+v", stats[0])
	}
	if stats[1].SourceID != other || stats[1].InFlight != 1 {
		t.Fatalf("second = %+v", stats[1])
	}
}

func TestRecordsBySourceOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	older := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	if _, err := store.BeginAttempt(ctx, testSource, "vid-old", "Old", older); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}
	if _, err := store.BeginAttempt(ctx, testSource, "vid-new", "New", newer); err != nil {
		t.Fatalf("BeginAttempt: %v", err)
	}

	records, err := store.RecordsBySource(ctx, testSource)
	if err != nil {
		t.Fatalf("RecordsBySource: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].VideoID != "vid-new" {
		t.Fatalf("first record = %s, want vid-new", records[0].VideoID)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := store.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
}

func TestLookupMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	record, err := store.Lookup(context.Background(), testSource, "nope")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if record != nil {
		t.Fatalf("record = %+v, want nil", record)
	}
	known, err := store.IsKnown(context.Background(), testSource, "nope")
	if err != nil {
		t.Fatalf("IsKnown: %v", err)
	}
	if known {
		t.Fatal("missing record should not be known")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ledger.ParseStatus("completed"); !ok || status != ledger.StatusCompleted {
		t.Fatalf("ParseStatus(completed) = %s, %v", status, ok)
	}
	if _, ok := ledger.ParseStatus("bogus"); ok {
		t.Fatal("bogus status should not parse")
	}
}
