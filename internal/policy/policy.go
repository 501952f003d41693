// Package policy merges global download defaults with per-source overrides
// into the effective limits a sync pass applies to one source.
package policy

import (
	"fmt"
	"time"

	"vodsync/internal/config"
)

// Effective is the resolved per-source policy. Zero values for the caps mean
// "unlimited".
type Effective struct {
	PeriodDays         int
	MaxItems           int
	MaxFileSizeMB      int
	MaxDurationSeconds int
	Quality            string
	CookieFile         string
}

// Resolve merges global defaults with per-source overrides. A field present
// on the source replaces the default; an absent field inherits it. Malformed
// values surface as errors, never silently clamp.
func Resolve(defaults config.Download, cookies config.Cookies, src config.Source) (Effective, error) {
	eff := Effective{
		PeriodDays:         defaults.DefaultPeriodDays,
		MaxItems:           defaults.MaxItems,
		MaxFileSizeMB:      defaults.MaxFileSizeMB,
		MaxDurationSeconds: defaults.MaxDurationSeconds,
		Quality:            defaults.Quality,
	}
	if cookies.Enabled {
		eff.CookieFile = cookies.File
	}

	overrides := []struct {
		name  string
		value *int
		dest  *int
	}{
		{"period_days", src.PeriodDays, &eff.PeriodDays},
		{"max_items", src.MaxItems, &eff.MaxItems},
		{"max_file_size_mb", src.MaxFileSizeMB, &eff.MaxFileSizeMB},
		{"max_duration_seconds", src.MaxDurationSeconds, &eff.MaxDurationSeconds},
	}
	for _, override := range overrides {
		if override.value == nil {
			continue
		}
		if *override.value < 0 {
			return Effective{}, fmt.Errorf("source %s: %s must not be negative, got %d", src.URL, override.name, *override.value)
		}
		*override.dest = *override.value
	}

	if src.Quality != nil && *src.Quality != "" {
		eff.Quality = *src.Quality
	}
	if eff.PeriodDays < 0 || eff.MaxItems < 0 || eff.MaxFileSizeMB < 0 || eff.MaxDurationSeconds < 0 {
		return Effective{}, fmt.Errorf("source %s: negative default in download policy", src.URL)
	}

	return eff, nil
}

// Cutoff returns the oldest publish time still inside the period window
// measured from now. The zero time means no window applies.
func (e Effective) Cutoff(now time.Time) time.Time {
	if e.PeriodDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -e.PeriodDays)
}

// ListingCap bounds how many entries are requested from the remote listing.
// An explicit max_items wins; otherwise the window size scales the cap so
// short windows do not page through a channel's full history.
func (e Effective) ListingCap() int {
	if e.MaxItems > 0 {
		return e.MaxItems
	}
	if e.PeriodDays > 0 {
		cap := e.PeriodDays * 3
		if cap < 10 {
			cap = 10
		}
		return cap
	}
	return 50
}
