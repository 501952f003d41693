package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeScheduler()
	c.normalizeLogging()
	if err := c.normalizeCookies(); err != nil {
		return err
	}
	return c.normalizeSources()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() {
	if strings.TrimSpace(c.Download.Quality) == "" {
		c.Download.Quality = defaultQuality
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeout
	}
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = defaultConcurrency
	}
	if strings.TrimSpace(c.Download.YtdlpBinary) == "" {
		c.Download.YtdlpBinary = defaultYtdlpBinary
	}
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.SyncIntervalHours == 0 {
		c.Scheduler.SyncIntervalHours = defaultSyncIntervalHours
	}
	if strings.TrimSpace(c.Scheduler.FirstRunTime) == "" {
		c.Scheduler.FirstRunTime = defaultFirstRunTime
	}
	if c.Scheduler.TickSeconds == 0 {
		c.Scheduler.TickSeconds = defaultSchedulerTick
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeCookies() error {
	if c.Cookies.File == "" {
		return nil
	}
	expanded, err := expandPath(c.Cookies.File)
	if err != nil {
		return fmt.Errorf("cookies.file: %w", err)
	}
	c.Cookies.File = expanded
	return nil
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.URL = strings.TrimSpace(src.URL)
		src.Type = SourceType(strings.ToLower(strings.TrimSpace(string(src.Type))))
		if src.Type == "" {
			src.Type = SourceChannel
		}
		if strings.TrimSpace(src.OutputDir) == "" {
			src.OutputDir = c.Paths.OutputDir
		} else {
			expanded, err := expandPath(src.OutputDir)
			if err != nil {
				return fmt.Errorf("sources[%d].output_dir: %w", i, err)
			}
			src.OutputDir = expanded
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
