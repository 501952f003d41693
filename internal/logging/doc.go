// Package logging constructs the slog loggers used across vodsync.
//
// Two output formats are supported: a human-oriented console format for
// interactive use and a JSON format for log collectors. Helpers in this
// package standardize attribute keys so that source URLs, video IDs, and
// sync-run identifiers are searchable across components.
package logging
