package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ListRequest describes a flat playlist/channel listing call.
type ListRequest struct {
	URL string
	// PlaylistEnd caps how many entries the tool returns; 0 means no cap.
	PlaylistEnd int
	CookieFile  string
}

// DownloadRequest describes a single-video fetch.
type DownloadRequest struct {
	URL            string
	OutputTemplate string
	Quality        string
	MaxFileSizeMB  int
	CookieFile     string
	Timeout        time.Duration
}

// DownloadResult carries the tool's success metadata.
type DownloadResult struct {
	// Path is the final file location after any merge/move postprocessing.
	Path string
}

// Client defines the fetch-tool behaviour the sync engine depends on.
type Client interface {
	List(ctx context.Context, req ListRequest) ([]Entry, error)
	Metadata(ctx context.Context, videoURL, cookieFile string) (Entry, error)
	Download(ctx context.Context, req DownloadRequest) (DownloadResult, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI invokes the yt-dlp command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "yt-dlp"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// CheckInstalled verifies that the tool is available.
func (c *CLI) CheckInstalled(ctx context.Context) error {
	cmd := commandContext(ctx, c.binary, "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return nil
}

// List fetches the current entry list of a channel or playlist, newest first.
func (c *CLI) List(ctx context.Context, req ListRequest) ([]Entry, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("listing URL is required")
	}

	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	if req.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", strconv.Itoa(req.PlaylistEnd))
	}
	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}
	args = append(args, req.URL)

	stdout, err := c.run(ctx, req.URL, args)
	if err != nil {
		return nil, err
	}
	return parseListing(stdout)
}

// Metadata fetches full metadata for one video without downloading it. Flat
// listings omit publish dates, so the syncer hydrates entries through this
// call before applying the period window.
func (c *CLI) Metadata(ctx context.Context, videoURL, cookieFile string) (Entry, error) {
	if strings.TrimSpace(videoURL) == "" {
		return Entry{}, errors.New("video URL is required")
	}

	args := []string{"-J", "--no-warnings", "--no-download"}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	args = append(args, videoURL)

	stdout, err := c.run(ctx, videoURL, args)
	if err != nil {
		return Entry{}, err
	}
	return parseSingle(stdout)
}

// Download fetches one video to the provided output template and reports the
// resulting file path. The template's date fields come from the video's
// publish date, so re-running the same download produces the same path.
func (c *CLI) Download(ctx context.Context, req DownloadRequest) (DownloadResult, error) {
	if strings.TrimSpace(req.URL) == "" {
		return DownloadResult{}, errors.New("download URL is required")
	}
	if strings.TrimSpace(req.OutputTemplate) == "" {
		return DownloadResult{}, errors.New("output template is required")
	}

	format := req.Quality
	if req.MaxFileSizeMB > 0 {
		format = applyFileSizeFilter(format, req.MaxFileSizeMB)
	}

	args := []string{
		"--output", req.OutputTemplate,
		"--format", format,
		"--merge-output-format", "mp4",
		"--embed-metadata",
		"--no-progress",
		"--no-warnings",
		"--print", "after_move:filepath",
		"--no-simulate",
	}
	if req.CookieFile != "" {
		args = append(args, "--cookies", req.CookieFile)
	}
	args = append(args, req.URL)

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	stdout, err := c.run(ctx, req.URL, args)
	if err != nil {
		return DownloadResult{}, err
	}

	path := lastNonEmptyLine(stdout)
	if path == "" {
		return DownloadResult{}, &DownloadError{URL: req.URL, Err: errors.New("tool reported no output path")}
	}
	return DownloadResult{Path: path}, nil
}

func (c *CLI) run(ctx context.Context, url string, args []string) ([]byte, error) {
	cmd := commandContext(ctx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("%w: %v", ErrTransient, ctxErr)}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	stderrText := stderr.String()
	if marker := classifyStderr(stderrText); marker != nil {
		return nil, &DownloadError{URL: url, Stderr: stderrText, Err: marker}
	}
	return nil, &DownloadError{URL: url, Stderr: stderrText, Err: err}
}

// applyFileSizeFilter injects a filesize selector into every alternative of a
// yt-dlp format expression.
func applyFileSizeFilter(format string, maxMB int) string {
	filter := fmt.Sprintf("[filesize<%dM]", maxMB)
	alternatives := strings.Split(format, "/")
	for i, alt := range alternatives {
		parts := strings.Split(alt, "+")
		for j, part := range parts {
			parts[j] = part + filter
		}
		alternatives[i] = strings.Join(parts, "+")
	}
	return strings.Join(alternatives, "/")
}

func lastNonEmptyLine(data []byte) string {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

var _ Client = (*CLI)(nil)
