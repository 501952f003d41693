package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the process-level configuration is usable. Per-source
// problems are deliberately not checked here; a malformed source disables
// that source only (see PartitionSources), never the whole process.
func (c *Config) Validate() error {
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownload() error {
	if c.Download.DefaultPeriodDays < 0 {
		return errors.New("download.default_period_days must not be negative")
	}
	if c.Download.MaxItems < 0 {
		return errors.New("download.max_items must not be negative")
	}
	if c.Download.MaxFileSizeMB < 0 {
		return errors.New("download.max_file_size_mb must not be negative")
	}
	if c.Download.MaxDurationSeconds < 0 {
		return errors.New("download.max_duration_seconds must not be negative")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return errors.New("download.timeout_seconds must be positive")
	}
	if c.Download.Concurrency < 1 {
		return errors.New("download.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.SyncIntervalHours <= 0 {
		return errors.New("scheduler.sync_interval_hours must be positive")
	}
	if c.Scheduler.TickSeconds <= 0 {
		return errors.New("scheduler.tick_seconds must be positive")
	}
	if _, err := ParseClock(c.Scheduler.FirstRunTime); err != nil {
		return fmt.Errorf("scheduler.first_run_time: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// ParseClock parses an "HH:MM" wall-clock value.
func ParseClock(value string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return parsed, nil
}

// SourceIssue pairs a rejected source with the reason it was rejected.
type SourceIssue struct {
	Source Source
	Err    error
}

// PartitionSources splits configured sources into usable ones and rejected
// ones. A source is rejected when it is malformed or when its output
// directory collides with an earlier source, which would make downloads from
// the two sources indistinguishable on disk.
func PartitionSources(sources []Source) ([]Source, []SourceIssue) {
	valid := make([]Source, 0, len(sources))
	var issues []SourceIssue
	seenURL := make(map[string]struct{}, len(sources))
	seenDir := make(map[string]string, len(sources))

	for _, src := range sources {
		if err := validateSource(src); err != nil {
			issues = append(issues, SourceIssue{Source: src, Err: err})
			continue
		}
		if _, dup := seenURL[src.URL]; dup {
			issues = append(issues, SourceIssue{Source: src, Err: fmt.Errorf("duplicate source url %s", src.URL)})
			continue
		}
		if prior, dup := seenDir[src.OutputDir]; dup {
			issues = append(issues, SourceIssue{
				Source: src,
				Err:    fmt.Errorf("output dir %s already used by %s", src.OutputDir, prior),
			})
			continue
		}
		seenURL[src.URL] = struct{}{}
		seenDir[src.OutputDir] = src.URL
		valid = append(valid, src)
	}
	return valid, issues
}

func validateSource(src Source) error {
	if src.URL == "" {
		return errors.New("source url must be set")
	}
	if !strings.HasPrefix(src.URL, "http://") && !strings.HasPrefix(src.URL, "https://") {
		return fmt.Errorf("source url %q must be an http(s) URL", src.URL)
	}
	switch src.Type {
	case SourceChannel, SourcePlaylist:
	default:
		return fmt.Errorf("source type must be channel or playlist, got %q", src.Type)
	}
	if src.OutputDir == "" {
		return errors.New("source output_dir must be set")
	}
	for name, value := range map[string]*int{
		"period_days":          src.PeriodDays,
		"max_items":            src.MaxItems,
		"max_file_size_mb":     src.MaxFileSizeMB,
		"max_duration_seconds": src.MaxDurationSeconds,
	} {
		if value != nil && *value < 0 {
			return fmt.Errorf("source %s must not be negative", name)
		}
	}
	return nil
}
