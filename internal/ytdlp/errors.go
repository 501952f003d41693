package ytdlp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInstalled indicates the yt-dlp binary is missing from PATH.
	ErrNotInstalled = errors.New("yt-dlp is not installed or not on PATH")

	// ErrAccessRestricted covers authentication, age, region, membership, and
	// private-video restrictions. Source-level: skip the source this pass.
	ErrAccessRestricted = errors.New("access restricted")

	// ErrRateLimited indicates the remote service is throttling requests.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransient covers network failures and timeouts expected to clear by
	// the next scheduled pass.
	ErrTransient = errors.New("transient failure")
)

// DownloadError is a per-item fetch failure carrying the tool's diagnostic
// output.
type DownloadError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *DownloadError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	}
	if len(detail) > 300 {
		detail = detail[:300]
	}
	return fmt.Sprintf("download %s: %v: %s", e.URL, e.Err, detail)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// accessRestrictedMarkers are stderr fragments that identify source- or
// item-level access restrictions rather than transient faults.
var accessRestrictedMarkers = []string{
	"sign in to confirm your age",
	"sign in to confirm you're not a bot",
	"age-restricted",
	"private video",
	"members-only",
	"join this channel",
	"not available in your country",
	"account associated with this video has been terminated",
	"use --cookies",
}

var rateLimitMarkers = []string{
	"http error 429",
	"rate-limit",
	"rate limit",
	"too many requests",
}

var transientMarkers = []string{
	"http error 400",
	"http error 500",
	"http error 502",
	"http error 503",
	"precondition check failed",
	"timed out",
	"connection reset",
	"temporary failure in name resolution",
	"unable to download webpage",
	"network is unreachable",
}

// classifyStderr maps yt-dlp diagnostic output onto a sentinel error, or nil
// when the output matches no known category.
func classifyStderr(stderr string) error {
	lowered := strings.ToLower(stderr)
	for _, marker := range accessRestrictedMarkers {
		if strings.Contains(lowered, marker) {
			return ErrAccessRestricted
		}
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(lowered, marker) {
			return ErrRateLimited
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(lowered, marker) {
			return ErrTransient
		}
	}
	return nil
}
