package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"vodsync/internal/config"
)

// Store manages tracking-record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	claims map[claimKey]struct{}
}

type claimKey struct {
	sourceID string
	videoID  string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the tracking database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "tracking.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, claims: make(map[claimKey]struct{})}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the tracking database location.
func (s *Store) Path() string {
	return s.path
}

// Lookup fetches a record by key; nil result means the pair was never seen.
func (s *Store) Lookup(ctx context.Context, sourceID, videoID string) (*Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+recordColumns+` FROM tracking_records WHERE source_id = ? AND video_id = ?`,
		sourceID, videoID,
	)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup record: %w", err)
	}
	return record, nil
}

// IsKnown reports whether a completed record exists for the key.
func (s *Store) IsKnown(ctx context.Context, sourceID, videoID string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM tracking_records WHERE source_id = ? AND video_id = ? AND status = ?`,
		sourceID, videoID, StatusCompleted,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check known record: %w", err)
	}
	return count > 0, nil
}

// RecordsBySource returns all records for one source, newest published first.
func (s *Store) RecordsBySource(ctx context.Context, sourceID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+recordColumns+` FROM tracking_records WHERE source_id = ? ORDER BY published_at DESC, video_id`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query records by source: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns a count of records grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tracking_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates ledger state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusDownloading:
			health.Downloading += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// StatsBySource returns per-source aggregate counts ordered by source ID.
func (s *Store) StatsBySource(ctx context.Context) ([]SourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT source_id,
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
               SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END),
               MAX(updated_at)
        FROM tracking_records
        GROUP BY source_id
        ORDER BY source_id`,
		StatusCompleted, StatusFailed, StatusPending, StatusDownloading,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger source stats: %w", err)
	}
	defer rows.Close()

	var out []SourceStats
	for rows.Next() {
		var (
			stats      SourceStats
			updatedRaw sql.NullString
		)
		if err := rows.Scan(&stats.SourceID, &stats.Completed, &stats.Failed, &stats.InFlight, &updatedRaw); err != nil {
			return nil, err
		}
		if updated, err := parseTimeString(updatedRaw.String); err == nil {
			stats.LastUpdate = updated
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

// ResetFailed moves failed records back to pending so future passes retry
// them from a clean attempt count. An empty sourceID resets all sources.
func (s *Store) ResetFailed(ctx context.Context, sourceID string) (int64, error) {
	query := `UPDATE tracking_records
        SET status = ?, attempt_count = 0, error_message = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, timestamp(time.Now()), StatusFailed}
	if sourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, sourceID)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset failed records: %w", err)
	}
	return res.RowsAffected()
}

// CheckHealth returns diagnostic information about the tracking database.
// The ledger is the one dependency the process cannot run without, so a
// failed check is treated as fatal by callers.
func (s *Store) CheckHealth(ctx context.Context) error {
	if s.path == "" {
		return errors.New("tracking database path is unknown")
	}
	if s.db == nil {
		return errors.New("tracking database connection unavailable")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat tracking database: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("tracking database path %q is a directory", s.path)
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		return fmt.Errorf("ping tracking database: %w", err)
	}

	var integrityResult string
	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	if err := row.Scan(&integrityResult); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if !strings.EqualFold(integrityResult, "ok") {
		return fmt.Errorf("tracking database integrity check failed: %s", integrityResult)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

const recordColumns = "source_id, video_id, status, title, published_at, local_path, error_message, attempt_count, first_seen_at, last_attempt_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		sourceID       string
		videoID        string
		statusStr      string
		title          sql.NullString
		publishedRaw   sql.NullString
		localPath      sql.NullString
		errorMessage   sql.NullString
		attemptCount   int
		firstSeenRaw   sql.NullString
		lastAttemptRaw sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&sourceID,
		&videoID,
		&statusStr,
		&title,
		&publishedRaw,
		&localPath,
		&errorMessage,
		&attemptCount,
		&firstSeenRaw,
		&lastAttemptRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		SourceID:     sourceID,
		VideoID:      videoID,
		Status:       Status(statusStr),
		Title:        title.String,
		LocalPath:    localPath.String,
		ErrorMessage: errorMessage.String,
		AttemptCount: attemptCount,
	}
	if published, err := parseTimeString(publishedRaw.String); err == nil {
		record.PublishedAt = published
	}
	if firstSeen, err := parseTimeString(firstSeenRaw.String); err == nil {
		record.FirstSeenAt = firstSeen
	}
	if lastAttemptRaw.Valid {
		if lastAttempt, err := parseTimeString(lastAttemptRaw.String); err == nil {
			record.LastAttemptAt = &lastAttempt
		}
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
