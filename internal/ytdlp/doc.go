// Package ytdlp wraps the yt-dlp command-line tool behind a narrow interface.
//
// This is the only loosely-typed boundary in the system: yt-dlp reports
// failures as free-form stderr text, which this package classifies into the
// sentinel errors ErrAccessRestricted, ErrRateLimited, and ErrTransient so
// callers can decide whether to skip a source, wait for the next pass, or
// record a per-item failure.
package ytdlp
