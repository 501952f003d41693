package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// StateDir holds the tracking database, lock file, and log mirror.
	StateDir string `toml:"state_dir"`
	// OutputDir is the default download destination for sources without an override.
	OutputDir string `toml:"output_dir"`
}

// Download contains global download defaults applied to every source unless
// overridden per source.
type Download struct {
	DefaultPeriodDays  int    `toml:"default_period_days"`
	MaxItems           int    `toml:"max_items"`
	MaxFileSizeMB      int    `toml:"max_file_size_mb"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	Quality            string `toml:"quality"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	Concurrency        int    `toml:"concurrency"`
	YtdlpBinary        string `toml:"ytdlp_binary"`
}

// Cookies contains authentication cookie settings passed to the fetch tool.
type Cookies struct {
	Enabled bool   `toml:"enabled"`
	File    string `toml:"file"`
}

// Scheduler contains sync pass timing.
type Scheduler struct {
	SyncIntervalHours int    `toml:"sync_interval_hours"`
	FirstRunTime      string `toml:"first_run_time"`
	TickSeconds       int    `toml:"tick_seconds"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// SourceType distinguishes channels from playlists.
type SourceType string

const (
	SourceChannel  SourceType = "channel"
	SourcePlaylist SourceType = "playlist"
)

// Source describes one channel or playlist to sync. Optional fields are
// pointers so that an absent value inherits the global default while an
// explicit zero means "unlimited".
type Source struct {
	URL                string     `toml:"url"`
	Type               SourceType `toml:"type"`
	OutputDir          string     `toml:"output_dir"`
	PeriodDays         *int       `toml:"period_days"`
	MaxItems           *int       `toml:"max_items"`
	MaxFileSizeMB      *int       `toml:"max_file_size_mb"`
	MaxDurationSeconds *int       `toml:"max_duration_seconds"`
	Quality            *string    `toml:"quality"`
}

// ID returns the stable source identifier used as the tracking-store key.
func (s Source) ID() string {
	return s.URL
}

// Config encapsulates all configuration values for vodsync.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Download  Download  `toml:"download"`
	Cookies   Cookies   `toml:"cookies"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
	Sources   []Source  `toml:"sources"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vodsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("vodsync.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the state directory tree.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.OutputDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
