// Package outputs builds media-server compatible download paths.
//
// Files are laid out for Plex-style date-based shows:
//
//	<output_dir>/Season 2024/Uploader - 2024-01-10 - Title.mp4
//
// The date component is the video's publish date, never the download date, so
// a retried download lands on exactly the same path.
package outputs

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// Template returns the yt-dlp output template for one video: the full path
// computed here with only the extension left to the tool. Uploader and title
// are sanitized; a missing uploader falls back to "Unknown".
func Template(outputDir, uploader, title string, published time.Time) string {
	return stemPath(outputDir, uploader, title, published) + ".%(ext)s"
}

// ExpectedPath predicts the final file location for a given container
// extension. It matches what Template produces once the tool fills in ext.
func ExpectedPath(outputDir, uploader, title string, published time.Time, ext string) string {
	return stemPath(outputDir, uploader, title, published) + "." + strings.TrimPrefix(ext, ".")
}

func stemPath(outputDir, uploader, title string, published time.Time) string {
	uploader = SanitizeFileName(uploader)
	if uploader == "" {
		uploader = "Unknown"
	}
	title = SanitizeFileName(title)
	if title == "" {
		title = "Untitled"
	}
	season := fmt.Sprintf("Season %04d", published.Year())
	name := fmt.Sprintf("%s - %s - %s", uploader, published.Format("2006-01-02"), title)
	return filepath.Join(outputDir, season, name)
}
