package ledger

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a tracking record.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// MaxAttempts bounds how often a failed or interrupted download is retried
// before the record is skipped permanently.
const MaxAttempts = 3

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Record is one persisted tracking entry for a (source, video) pair.
type Record struct {
	SourceID      string
	VideoID       string
	Status        Status
	Title         string
	PublishedAt   time.Time
	LocalPath     string
	ErrorMessage  string
	AttemptCount  int
	FirstSeenAt   time.Time
	LastAttemptAt *time.Time
	UpdatedAt     time.Time
}

// Retryable reports whether the record may be attempted again.
func (r *Record) Retryable() bool {
	if r == nil {
		return false
	}
	switch r.Status {
	case StatusDownloading, StatusFailed, StatusPending:
		return r.AttemptCount < MaxAttempts
	default:
		return false
	}
}

// HealthSummary aggregates record counts per lifecycle state.
type HealthSummary struct {
	Total       int
	Pending     int
	Downloading int
	Completed   int
	Failed      int
}

// SourceStats describes per-source ledger counts for status output.
type SourceStats struct {
	SourceID   string
	Completed  int
	Failed     int
	InFlight   int
	LastUpdate time.Time
}
