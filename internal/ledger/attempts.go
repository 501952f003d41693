package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Attempt is the handle returned by BeginAttempt and consumed by Complete or
// Fail. It pins the key so that only one live attempt exists per record.
type Attempt struct {
	SourceID string
	VideoID  string

	released bool
}

// BeginAttempt atomically claims a (source, video) key for downloading.
// A missing record is inserted as pending, then claimed to downloading like
// any other retryable record. A key already claimed by a live attempt yields
// ErrConcurrentAttempt; a completed record yields ErrAlreadyCompleted; a
// failed record at the attempt bound yields ErrAttemptsExhausted.
//
// A row found in downloading without a live claim is a leftover from a
// crashed run and is claimed like a retry.
func (s *Store) BeginAttempt(ctx context.Context, sourceID, videoID, title string, publishedAt time.Time) (*Attempt, error) {
	if sourceID == "" || videoID == "" {
		return nil, errors.New("source and video identifiers are required")
	}

	key := claimKey{sourceID: sourceID, videoID: videoID}
	s.mu.Lock()
	if _, held := s.claims[key]; held {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s/%s", ErrConcurrentAttempt, sourceID, videoID)
	}
	s.claims[key] = struct{}{}
	s.mu.Unlock()

	attempt, err := s.beginAttemptRow(ctx, sourceID, videoID, title, publishedAt)
	if err != nil {
		s.releaseClaim(key)
		return nil, err
	}
	return attempt, nil
}

func (s *Store) beginAttemptRow(ctx context.Context, sourceID, videoID, title string, publishedAt time.Time) (*Attempt, error) {
	now := timestamp(time.Now())

	var published any
	if !publishedAt.IsZero() {
		published = timestamp(publishedAt)
	}

	// New keys enter as pending so fresh rows and retries both go through the
	// guarded transition below.
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO tracking_records (
            source_id, video_id, status, title, published_at,
            attempt_count, first_seen_at, last_attempt_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
        ON CONFLICT (source_id, video_id) DO NOTHING`,
		sourceID, videoID, StatusPending, nullableString(title), published,
		now, now, now,
	); err != nil {
		return nil, fmt.Errorf("insert tracking record: %w", err)
	}

	// The WHERE clause is the transactional guard against completed and
	// exhausted records.
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tracking_records
        SET status = ?, last_attempt_at = ?, updated_at = ?
        WHERE source_id = ? AND video_id = ?
          AND status != ? AND attempt_count < ?`,
		StatusDownloading, now, now,
		sourceID, videoID,
		StatusCompleted, MaxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("claim tracking record: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if affected > 0 {
		return &Attempt{SourceID: sourceID, VideoID: videoID}, nil
	}

	record, err := s.Lookup(ctx, sourceID, videoID)
	if err != nil {
		return nil, err
	}
	switch {
	case record == nil:
		return nil, fmt.Errorf("tracking record vanished for %s/%s", sourceID, videoID)
	case record.Status == StatusCompleted:
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyCompleted, sourceID, videoID)
	default:
		return nil, fmt.Errorf("%w: %s/%s after %d attempts", ErrAttemptsExhausted, sourceID, videoID, record.AttemptCount)
	}
}

// Complete marks the attempt's record as completed and stores the local path.
// Calling Complete twice with the same path is a no-op the second time.
func (s *Store) Complete(ctx context.Context, attempt *Attempt, localPath string) error {
	if attempt == nil {
		return errors.New("attempt is nil")
	}
	if localPath == "" {
		return errors.New("local path is required")
	}

	var existing sql.NullString
	row := s.db.QueryRowContext(
		ctx,
		`SELECT local_path FROM tracking_records WHERE source_id = ? AND video_id = ? AND status = ?`,
		attempt.SourceID, attempt.VideoID, StatusCompleted,
	)
	switch err := row.Scan(&existing); {
	case err == nil:
		s.release(attempt)
		if existing.String != localPath {
			return fmt.Errorf("record %s/%s already completed with path %s", attempt.SourceID, attempt.VideoID, existing.String)
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("check completed record: %w", err)
	}

	now := timestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tracking_records
        SET status = ?, local_path = ?, error_message = NULL, last_attempt_at = ?, updated_at = ?
        WHERE source_id = ? AND video_id = ?`,
		StatusCompleted, localPath, now, now,
		attempt.SourceID, attempt.VideoID,
	)
	if err != nil {
		return fmt.Errorf("complete tracking record: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("no tracking record for %s/%s", attempt.SourceID, attempt.VideoID)
	}

	s.release(attempt)
	return nil
}

// Fail marks the attempt's record as failed, increments the attempt count,
// and records the error message.
func (s *Store) Fail(ctx context.Context, attempt *Attempt, failure error) error {
	if attempt == nil {
		return errors.New("attempt is nil")
	}

	message := "download failed"
	if failure != nil {
		message = failure.Error()
	}
	if len(message) > 500 {
		message = message[:500]
	}

	now := timestamp(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tracking_records
        SET status = ?, attempt_count = attempt_count + 1, error_message = ?,
            last_attempt_at = ?, updated_at = ?
        WHERE source_id = ? AND video_id = ?`,
		StatusFailed, message, now, now,
		attempt.SourceID, attempt.VideoID,
	)
	if err != nil {
		return fmt.Errorf("fail tracking record: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return fmt.Errorf("no tracking record for %s/%s", attempt.SourceID, attempt.VideoID)
	}

	s.release(attempt)
	return nil
}

func (s *Store) release(attempt *Attempt) {
	if attempt.released {
		return
	}
	attempt.released = true
	s.releaseClaim(claimKey{sourceID: attempt.SourceID, videoID: attempt.VideoID})
}

func (s *Store) releaseClaim(key claimKey) {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
}
