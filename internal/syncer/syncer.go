package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"vodsync/internal/config"
	"vodsync/internal/cookies"
	"vodsync/internal/ledger"
	"vodsync/internal/logging"
	"vodsync/internal/outputs"
	"vodsync/internal/planner"
	"vodsync/internal/policy"
	"vodsync/internal/ytdlp"
)

// Syncer runs sync passes against a tracking store and a fetch tool.
type Syncer struct {
	store  *ledger.Store
	client ytdlp.Client
	logger *slog.Logger

	now    func() time.Time
	jitter func() time.Duration
}

// Option adjusts Syncer construction, mainly for tests.
type Option func(*Syncer)

// WithClock overrides the wall clock used for window cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJitter overrides the pre-listing delay.
func WithJitter(jitter func() time.Duration) Option {
	return func(s *Syncer) {
		if jitter != nil {
			s.jitter = jitter
		}
	}
}

// New constructs a Syncer.
func New(store *ledger.Store, client ytdlp.Client, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Syncer{
		store:  store,
		client: client,
		logger: logging.WithComponent(logger, "syncer"),
		now:    time.Now,
		jitter: defaultJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// defaultJitter spaces listing calls out so back-to-back sources do not hit
// the remote site in a burst.
func defaultJitter() time.Duration {
	return 2*time.Second + time.Duration(rand.Int63n(int64(6*time.Second)))
}

// ListError marks a source-level listing failure. The source is skipped for
// this pass and re-listed on the next one; nothing is recorded in the ledger.
type ListError struct {
	SourceID string
	Err      error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %s: %v", e.SourceID, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// SourceResult summarises one source within a pass.
type SourceResult struct {
	SourceID   string
	Listed     int
	Planned    int
	Downloaded int
	Failed     int
	Skipped    int
	Err        error
}

// PassResult aggregates every source of one pass.
type PassResult struct {
	Sources []SourceResult
}

// Downloaded sums completed downloads across sources.
func (r PassResult) Downloaded() int {
	total := 0
	for _, src := range r.Sources {
		total += src.Downloaded
	}
	return total
}

// Failed sums failed downloads across sources.
func (r PassResult) Failed() int {
	total := 0
	for _, src := range r.Sources {
		total += src.Failed
	}
	return total
}

// RunPass syncs every valid source in the configuration, in order. A source
// that fails to list or download records its error in the result and the pass
// moves on; only context cancellation aborts the pass.
func (s *Syncer) RunPass(ctx context.Context, cfg *config.Config) (PassResult, error) {
	s.checkCookies(cfg)

	sources, issues := config.PartitionSources(cfg.Sources)
	for _, issue := range issues {
		s.logger.Warn("skipping misconfigured source",
			logging.String(logging.FieldSource, issue.Source.URL),
			logging.Error(issue.Err))
	}

	result := PassResult{}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		srcResult := s.syncSource(ctx, cfg, src)
		result.Sources = append(result.Sources, srcResult)
		if srcResult.Err != nil {
			s.logger.Error("source sync failed",
				logging.String(logging.FieldSource, src.ID()),
				logging.Error(srcResult.Err))
		}
	}
	return result, nil
}

// checkCookies verifies the configured cookie file before any listing so a
// bad path surfaces as one actionable warning instead of per-item tool
// failures.
func (s *Syncer) checkCookies(cfg *config.Config) {
	if !cfg.Cookies.Enabled {
		return
	}
	count, err := cookies.Inspect(cfg.Cookies.File)
	switch {
	case err != nil:
		s.logger.Warn("cookie file unusable",
			logging.String("file", cfg.Cookies.File),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restricted downloads will fail until the cookie file is fixed"))
	case count == 0:
		s.logger.Warn("cookie file has no youtube cookies",
			logging.String("file", cfg.Cookies.File),
			logging.String(logging.FieldErrorHint, "re-export cookies from a signed-in browser session"))
	}
}

func (s *Syncer) syncSource(ctx context.Context, cfg *config.Config, src config.Source) SourceResult {
	result := SourceResult{SourceID: src.ID()}
	log := s.logger.With(logging.String(logging.FieldSource, src.ID()))

	eff, err := policy.Resolve(cfg.Download, cfg.Cookies, src)
	if err != nil {
		result.Err = err
		return result
	}

	if err := s.delay(ctx); err != nil {
		result.Err = err
		return result
	}

	entries, err := s.client.List(ctx, ytdlp.ListRequest{
		URL:         src.URL,
		PlaylistEnd: eff.ListingCap(),
		CookieFile:  eff.CookieFile,
	})
	if err != nil {
		result.Err = &ListError{SourceID: src.ID(), Err: err}
		return result
	}
	result.Listed = len(entries)
	log.Info("listed source", logging.Int("entries", len(entries)))

	items := s.windowItems(ctx, log, entries, eff)

	plan, err := planner.Build(ctx, src.ID(), eff, items, s.store)
	if err != nil {
		result.Err = fmt.Errorf("plan source: %w", err)
		return result
	}
	downloads := plan.Downloads()
	result.Planned = len(downloads)
	result.Skipped = len(plan.Decisions) - len(downloads)
	for _, decision := range plan.Decisions {
		if decision.Action.Fetches() {
			continue
		}
		log.Debug("skipping item",
			logging.String(logging.FieldVideoID, decision.Item.ID),
			logging.String("action", string(decision.Action)),
			logging.String("reason", decision.Reason))
	}
	if len(downloads) == 0 {
		log.Info("source up to date")
		return result
	}

	downloaded, failed := s.execute(ctx, cfg, src, eff, downloads, log)
	result.Downloaded = downloaded
	result.Failed = failed
	log.Info("source sync finished",
		logging.Int("downloaded", downloaded),
		logging.Int("failed", failed))
	return result
}

// windowItems hydrates missing publish dates and applies the period cutoff.
// Flat listings often omit dates, so undated entries get a metadata call;
// entries that still have no date stay in the window rather than silently
// dropping new uploads.
func (s *Syncer) windowItems(ctx context.Context, log *slog.Logger, entries []ytdlp.Entry, eff policy.Effective) []planner.Item {
	cutoff := eff.Cutoff(s.now())
	items := make([]planner.Item, 0, len(entries))
	for _, entry := range entries {
		if !cutoff.IsZero() && !entry.HasPublishDate() {
			meta, err := s.client.Metadata(ctx, entry.WatchURL(), eff.CookieFile)
			if err != nil {
				log.Debug("publish date lookup failed",
					logging.String(logging.FieldVideoID, entry.ID),
					logging.Error(err))
			} else {
				entry.Published = meta.Published
				if entry.Duration == 0 {
					entry.Duration = meta.Duration
				}
				if entry.Uploader == "" {
					entry.Uploader = meta.Uploader
				}
			}
		}
		if !cutoff.IsZero() && entry.HasPublishDate() && entry.Published.Before(cutoff) {
			log.Debug("outside sync window",
				logging.String(logging.FieldVideoID, entry.ID),
				logging.Time("published", entry.Published))
			continue
		}
		items = append(items, planner.Item{
			ID:        entry.ID,
			Title:     entry.Title,
			Uploader:  entry.Uploader,
			Published: entry.Published,
			Duration:  entry.Duration,
		})
	}
	return items
}

func (s *Syncer) delay(ctx context.Context) error {
	wait := s.jitter()
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// downloadOne runs the full persisted lifecycle for a single item. The
// returned error is nil when the item completed, errSkipped when the ledger
// declined the attempt, and the failure otherwise.
var errSkipped = errors.New("attempt declined by ledger")

func (s *Syncer) downloadOne(ctx context.Context, cfg *config.Config, src config.Source, eff policy.Effective, item planner.Item, log *slog.Logger) error {
	// Shutdown stops the feed loop, never the item in flight: cancelling the
	// download mid-transfer would kill the subprocess and strand the record in
	// downloading. The detached context stays bounded by the download timeout.
	ctx = context.WithoutCancel(ctx)

	attempt, err := s.store.BeginAttempt(ctx, src.ID(), item.ID, item.Title, item.Published)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAlreadyCompleted),
			errors.Is(err, ledger.ErrAttemptsExhausted),
			errors.Is(err, ledger.ErrConcurrentAttempt):
			log.Debug("attempt declined",
				logging.String(logging.FieldVideoID, item.ID),
				logging.Error(err))
			return errSkipped
		default:
			return fmt.Errorf("begin attempt: %w", err)
		}
	}

	uploader := item.Uploader
	if uploader == "" {
		uploader = src.ID()
	}
	req := ytdlp.DownloadRequest{
		URL:            "https://www.youtube.com/watch?v=" + item.ID,
		OutputTemplate: outputs.Template(src.OutputDir, uploader, item.Title, item.Published),
		Quality:        eff.Quality,
		MaxFileSizeMB:  eff.MaxFileSizeMB,
		CookieFile:     eff.CookieFile,
		Timeout:        time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
	}

	log.Info("downloading", logging.String(logging.FieldVideoID, item.ID), logging.String("title", item.Title))
	res, err := s.client.Download(ctx, req)
	if err != nil {
		if failErr := s.store.Fail(ctx, attempt, err); failErr != nil {
			log.Error("recording failure",
				logging.String(logging.FieldVideoID, item.ID),
				logging.Error(failErr))
		}
		return err
	}

	path := res.Path
	if path == "" {
		// yt-dlp builds without --print after_move support report no path;
		// record the predicted location instead of failing the attempt.
		path = outputs.ExpectedPath(src.OutputDir, uploader, item.Title, item.Published, "mp4")
	}
	if err := s.store.Complete(ctx, attempt, path); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	log.Info("downloaded", logging.String(logging.FieldVideoID, item.ID), logging.String("path", path))
	return nil
}
