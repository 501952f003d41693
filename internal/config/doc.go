// Package config loads, normalizes, and validates vodsync configuration.
//
// Configuration lives in a TOML file with global download defaults, scheduler
// timing, cookie settings, and a list of sources (channels or playlists).
// Per-source fields are optional overrides: a value present on a source
// replaces the global default, an absent value inherits it. The file is
// re-read at the start of every sync pass so edits take effect without a
// restart.
package config
