package ytdlp

import (
	"errors"
	"testing"
	"time"
)

func TestParseListingFlatPlaylist(t *testing.T) {
	payload := []byte(`{
		"id": "UC123",
		"title": "Example Channel - Videos",
		"uploader": "Example Channel",
		"entries": [
			{"id": "abc123", "title": "Newest", "duration": 300.5, "upload_date": "20240110"},
			{"id": "def456", "title": "Older", "uploader": "Guest Host", "timestamp": 1704412800},
			{"id": "", "title": "placeholder"}
		]
	}`)

	entries, err := parseListing(payload)
	if err != nil {
		t.Fatalf("parseListing: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	first := entries[0]
	if first.ID != "abc123" {
		t.Fatalf("id = %q", first.ID)
	}
	if first.Uploader != "Example Channel" {
		t.Fatalf("uploader = %q, want playlist uploader", first.Uploader)
	}
	if first.Duration != 300500*time.Millisecond {
		t.Fatalf("duration = %v", first.Duration)
	}
	if want := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC); !first.Published.Equal(want) {
		t.Fatalf("published = %v, want %v", first.Published, want)
	}

	second := entries[1]
	if second.Uploader != "Guest Host" {
		t.Fatalf("uploader = %q, want entry uploader", second.Uploader)
	}
	if want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC); !second.Published.Equal(want) {
		t.Fatalf("published = %v, want %v", second.Published, want)
	}
}

func TestParseListingSingleVideo(t *testing.T) {
	payload := []byte(`{"id": "abc123", "title": "Solo", "uploader": "Example", "duration": 60}`)

	entries, err := parseListing(payload)
	if err != nil {
		t.Fatalf("parseListing: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "abc123" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].HasPublishDate() {
		t.Fatal("entry without dates should report no publish date")
	}
}

func TestParseListingRejectsGarbage(t *testing.T) {
	if _, err := parseListing([]byte("WARNING: not json")); err == nil {
		t.Fatal("garbage input should error")
	}
}

func TestWatchURL(t *testing.T) {
	entry := Entry{ID: "abc123"}
	if got := entry.WatchURL(); got != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("url = %q", got)
	}
}

func TestClassifyStderr(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"private video", "ERROR: [youtube] abc: Private video. Sign in if you've been granted access", ErrAccessRestricted},
		{"members only", "ERROR: Join this channel to get access to members-only content", ErrAccessRestricted},
		{"bot check", "ERROR: Sign in to confirm you're not a bot", ErrAccessRestricted},
		{"http 429", "ERROR: unable to download video data: HTTP Error 429: Too Many Requests", ErrRateLimited},
		{"timeout", "ERROR: unable to download webpage: The read operation timed out", ErrTransient},
		{"connection reset", "ERROR: Connection reset by peer", ErrTransient},
		{"unknown", "ERROR: something novel", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyStderr(tc.stderr); !errors.Is(got, tc.want) {
				t.Fatalf("classify(%q) = %v, want %v", tc.stderr, got, tc.want)
			}
		})
	}
}

func TestApplyFileSizeFilter(t *testing.T) {
	got := applyFileSizeFilter("bestvideo+bestaudio/best", 500)
	want := "bestvideo[filesize<500M]+bestaudio[filesize<500M]/best[filesize<500M]"
	if got != want {
		t.Fatalf("filter = %q, want %q", got, want)
	}
}

func TestLastNonEmptyLine(t *testing.T) {
	out := []byte("[download] info line\n/videos/Season 2024/Example - 2024-01-10 - Newest.mp4\n\n")
	if got := lastNonEmptyLine(out); got != "/videos/Season 2024/Example - 2024-01-10 - Newest.mp4" {
		t.Fatalf("line = %q", got)
	}
	if got := lastNonEmptyLine(nil); got != "" {
		t.Fatalf("line = %q, want empty", got)
	}
}
