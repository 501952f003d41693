package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"vodsync/internal/config"
	"vodsync/internal/logging"
	"vodsync/internal/planner"
	"vodsync/internal/policy"
	"vodsync/internal/ytdlp"
)

// execute drains the planned downloads for one source. Failures never abort
// the batch, with one exception: a rate-limit response stops further fetches
// for the source since hammering on would only extend the block.
func (s *Syncer) execute(ctx context.Context, cfg *config.Config, src config.Source, eff policy.Effective, downloads []planner.Decision, log *slog.Logger) (downloaded, failed int) {
	workers := cfg.Download.Concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(downloads) {
		workers = len(downloads)
	}

	var (
		completed   atomic.Int64
		failures    atomic.Int64
		rateLimited atomic.Bool
	)

	work := make(chan planner.Decision)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for decision := range work {
				err := s.downloadOne(ctx, cfg, src, eff, decision.Item, log)
				switch {
				case err == nil:
					completed.Add(1)
				case errors.Is(err, errSkipped):
					// Another worker or run got there first.
				default:
					failures.Add(1)
					s.logDownloadFailure(log, decision.Item.ID, err)
					if errors.Is(err, ytdlp.ErrRateLimited) {
						rateLimited.Store(true)
					}
				}
			}
		}()
	}

feed:
	for _, decision := range downloads {
		if rateLimited.Load() {
			log.Warn("rate limited, deferring remaining items to next pass")
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case work <- decision:
		}
	}
	close(work)
	wg.Wait()

	return int(completed.Load()), int(failures.Load())
}

func (s *Syncer) logDownloadFailure(log *slog.Logger, videoID string, err error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldVideoID, videoID),
		logging.Error(err),
	}
	switch {
	case errors.Is(err, ytdlp.ErrAccessRestricted):
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "private, removed, or members-only; will not retry usefully"))
	case errors.Is(err, ytdlp.ErrRateLimited):
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "remote rate limit; next pass will retry"))
	case errors.Is(err, ytdlp.ErrTransient):
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "transient failure; next pass will retry"))
	case errors.Is(err, ytdlp.ErrNotInstalled):
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "install yt-dlp and ensure it is on PATH"))
	}
	log.Warn("download failed", logging.Args(attrs...)...)
}
