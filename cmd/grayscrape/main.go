package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/77nimesh/GraysWebScraping/config"
	"github.com/77nimesh/GraysWebScraping/crawl"
	"github.com/77nimesh/GraysWebScraping/engine"
	"github.com/77nimesh/GraysWebScraping/extract"
	"github.com/77nimesh/GraysWebScraping/identity"
	"github.com/77nimesh/GraysWebScraping/scraper"
	"github.com/77nimesh/GraysWebScraping/store"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("grayscrape starting",
		"pendingFile", cfg.Files.PendingFile,
		"concurrency", cfg.Crawl.Concurrency,
	)

	// ── 3. Open the record store and load run inputs ────────────────
	// Any failure here is fatal: no tasks have been scheduled yet, so
	// there is no partial state to reconcile.
	st, err := store.Open(cfg.Files)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	pending, err := st.LoadPending()
	if err != nil {
		slog.Error("failed to load pending URLs", "error", err)
		os.Exit(1)
	}
	if len(pending) == 0 {
		slog.Info("pending list is empty, nothing to scrape")
		return
	}

	index, err := st.LoadIndex()
	if err != nil {
		slog.Error("failed to load dedup index", "error", err)
		os.Exit(1)
	}
	slog.Info("run inputs loaded", "pending", len(pending), "knownRecords", len(index))

	// ── 4. Launch the browser ───────────────────────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 5. Assemble the fetch escalation ────────────────────────────
	// The rod callback closure avoids a circular import (engine/ never
	// imports scraper/).
	rodFetch := func(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
		result, err := sc.Fetch(ctx, req.URL, req.Identity)
		if err != nil {
			return nil, err
		}
		return &engine.FetchResult{
			HTML:     result.HTML,
			Title:    result.Title,
			FinalURL: result.FinalURL,
		}, nil
	}

	var engines []engine.Engine
	if cfg.Engine.EnableHTTPFirst {
		engines = append(engines, engine.NewHTTPEngine(cfg.Engine.HTTPTimeout))
	}
	engines = append(engines, engine.NewRodEngine(rodFetch))
	dispatcher := engine.NewDispatcher(engines, engine.NewHostMemory())

	// ── 6. Run the bounded crawl ────────────────────────────────────
	// SIGINT/SIGTERM cancels in-flight tasks; an interrupted run commits
	// nothing, so every URL stays pending for the next run.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := crawl.New(
		crawl.FetchFunc(dispatcher.Dispatch),
		identity.NewProvider(cfg.Identity),
		extract.New(index),
		cfg.Crawl,
	)
	summary := sched.Run(ctx, pending)

	if ctx.Err() != nil {
		slog.Warn("run interrupted, nothing committed")
		return
	}

	// ── 7. Commit once, after all tasks are terminal ────────────────
	if err := st.Commit(summary.Records, summary.Attempted); err != nil {
		slog.Error("commit failed", "error", err)
		sc.Close() // os.Exit skips the deferred close
		os.Exit(1)
	}

	slog.Info("scraping completed",
		"attempted", len(summary.Attempted),
		"accepted", summary.Accepted,
		"skipped", summary.Skipped,
		"fetchErrors", summary.FetchErrors,
		"extractErrors", summary.ExtractErrors,
	)
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
