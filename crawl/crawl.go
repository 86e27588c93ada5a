// Package crawl fans fetch+extract work out over the pending URLs under a
// fixed concurrency cap, tolerating per-URL failures without aborting the
// run. Results are only handed downstream after every task has finished, so
// the commit step always sees one coherent batch.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/77nimesh/GraysWebScraping/config"
	"github.com/77nimesh/GraysWebScraping/engine"
	"github.com/77nimesh/GraysWebScraping/extract"
	"github.com/77nimesh/GraysWebScraping/identity"
	"github.com/77nimesh/GraysWebScraping/models"
)

// Fetcher abstracts the fetch path so the scheduler works the same against
// a single engine, the escalating dispatcher, or an instrumented test double.
type Fetcher interface {
	Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)
}

// FetchFunc adapts a plain function to the Fetcher interface.
type FetchFunc func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error)

func (f FetchFunc) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	return f(ctx, req)
}

// Summary aggregates one run's outcomes. Record order is unspecified;
// Attempted always equals the submitted URL set.
type Summary struct {
	Records       []models.SaleRecord
	Attempted     []string
	Accepted      int
	Skipped       int
	FetchErrors   int
	ExtractErrors int
}

// Scheduler runs the bounded fan-out. Construct once per run.
type Scheduler struct {
	fetcher   Fetcher
	ids       *identity.Provider
	extractor *extract.Extractor
	cfg       config.CrawlConfig
	limiter   *rate.Limiter

	completed atomic.Int64
	total     atomic.Int64
}

// New creates a Scheduler. A RatePerSecond of zero disables throttling.
func New(fetcher Fetcher, ids *identity.Provider, extractor *extract.Extractor, cfg config.CrawlConfig) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return &Scheduler{
		fetcher:   fetcher,
		ids:       ids,
		extractor: extractor,
		cfg:       cfg,
		limiter:   limiter,
	}
}

// Progress reports how many tasks have reached a terminal state out of the
// total. Monotonically increasing, independent of completion order.
func (s *Scheduler) Progress() (completed, total int) {
	return int(s.completed.Load()), int(s.total.Load())
}

// Run processes every URL and returns only after all tasks are terminal.
// A task failure is counted and treated as a skip; it never cancels
// siblings. The returned summary's Attempted set is exactly urls.
func (s *Scheduler) Run(ctx context.Context, urls []string) *Summary {
	s.total.Store(int64(len(urls)))
	s.completed.Store(0)

	summary := &Summary{Attempted: urls}
	if len(urls) == 0 {
		return summary
	}

	stopProgress := s.logProgress()
	defer stopProgress()

	var mu sync.Mutex
	outcomes := make([]models.Outcome, 0, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, u := range urls {
		u := u
		g.Go(func() error {
			out := s.process(gctx, u)

			mu.Lock()
			outcomes = append(outcomes, out)
			mu.Unlock()

			s.completed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		switch out.Kind {
		case models.OutcomeRecord:
			summary.Records = append(summary.Records, out.Record)
			summary.Accepted++
		case models.OutcomeSkip:
			summary.Skipped++
		case models.OutcomeFetchError:
			summary.FetchErrors++
			slog.Warn("fetch failed", "url", out.URL, "error", out.Err)
		case models.OutcomeExtractError:
			summary.ExtractErrors++
			slog.Warn("extraction failed", "url", out.URL, "error", out.Err)
		}
	}
	return summary
}

// process runs one URL to a terminal outcome. All errors are contained here.
func (s *Scheduler) process(ctx context.Context, url string) models.Outcome {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return models.Outcome{
				URL: url, Kind: models.OutcomeFetchError,
				Err: models.NewScrapeError(models.ErrCodeTimeout, url, "rate limiter wait aborted", err),
			}
		}
	}

	id := s.ids.Next()
	result, err := s.fetcher.Fetch(ctx, &engine.FetchRequest{URL: url, Identity: id})
	if err != nil {
		return models.Outcome{URL: url, Kind: models.OutcomeFetchError, Err: err}
	}

	page, err := extract.NewPage(result.Title, result.HTML)
	if err != nil {
		return models.Outcome{
			URL: url, Kind: models.OutcomeExtractError,
			Err: models.NewScrapeError(models.ErrCodeExtraction, url, "cannot parse rendered document", err),
		}
	}

	out := s.extractor.Extract(page, url)
	if out.Kind == models.OutcomeRecord {
		slog.Info("sale captured", "url", url,
			"price", out.Record.SoldPriceAUD, "vin", out.Record.VIN)
	}
	return out
}

// logProgress emits the completed/total counter at the configured interval
// until the returned stop function is called.
func (s *Scheduler) logProgress() func() {
	interval := s.cfg.ProgressInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				completed, total := s.Progress()
				slog.Info("progress", "completed", completed, "total", total)
			}
		}
	}()
	return func() { close(done) }
}
