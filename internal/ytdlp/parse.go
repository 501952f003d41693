package ytdlp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one video as seen from a listing or metadata call.
type Entry struct {
	ID        string
	Title     string
	Uploader  string
	Duration  time.Duration
	Published time.Time
}

// WatchURL returns the canonical video URL for an entry.
func (e Entry) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + e.ID
}

// HasPublishDate reports whether the listing carried a usable publish time.
func (e Entry) HasPublishDate() bool {
	return !e.Published.IsZero()
}

type jsonPlaylist struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Uploader string      `json:"uploader"`
	Entries  []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	UploadDate string  `json:"upload_date"` // YYYYMMDD
	Timestamp  int64   `json:"timestamp"`
}

// parseListing decodes a `--flat-playlist -J` document. A document without an
// entries array describes a single video and is returned as a one-entry list.
func parseListing(data []byte) ([]Entry, error) {
	var playlist jsonPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse listing output: %w", err)
	}

	if playlist.Entries == nil {
		single, err := parseSingle(data)
		if err != nil {
			return nil, err
		}
		if single.ID == "" {
			return nil, nil
		}
		return []Entry{single}, nil
	}

	entries := make([]Entry, 0, len(playlist.Entries))
	for _, raw := range playlist.Entries {
		if raw.ID == "" {
			continue
		}
		entry := toEntry(raw)
		if entry.Uploader == "" {
			entry.Uploader = playlist.Uploader
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseSingle(data []byte) (Entry, error) {
	var raw jsonEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, fmt.Errorf("parse video metadata: %w", err)
	}
	return toEntry(raw), nil
}

func toEntry(raw jsonEntry) Entry {
	entry := Entry{
		ID:       raw.ID,
		Title:    raw.Title,
		Uploader: raw.Uploader,
		Duration: time.Duration(raw.Duration * float64(time.Second)),
	}
	if raw.Timestamp > 0 {
		entry.Published = time.Unix(raw.Timestamp, 0).UTC()
	} else if raw.UploadDate != "" {
		if parsed, err := time.Parse("20060102", raw.UploadDate); err == nil {
			entry.Published = parsed
		}
	}
	return entry
}
