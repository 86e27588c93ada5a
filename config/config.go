package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Files    FilesConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Identity IdentityConfig
	Crawl    CrawlConfig
	Engine   EngineConfig
	Log      LogConfig
}

// FilesConfig names the three CSV files the run reads and writes.
type FilesConfig struct {
	// PendingFile is the single-column list of lot URLs still to scrape.
	PendingFile string // default: "car_links_to_scrape.csv"

	// RecordsFile is the append-only sold-records log.
	RecordsFile string // default: "sold_cars.csv"

	// ProcessedFile is the append-only log of attempted URLs.
	ProcessedFile string // default: "scraped_links.csv"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DefaultProxy is the proxy URL passed to the browser launcher.
	// Plain HTTP fetches do not use it.
	DefaultProxy string
}

// ScraperConfig controls per-fetch behavior.
type ScraperConfig struct {
	// NavigationTimeout bounds page.Navigate plus the load event.
	NavigationTimeout time.Duration // default: 180s

	// ReadyTimeout bounds the post-navigation wait for the content marker.
	ReadyTimeout time.Duration // default: 5s

	// ReadySelector is the minimal content marker waited on after navigation.
	ReadySelector string // default: "body"

	// BlockedResourceTypes lists resource types to block during rendering.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// IdentityConfig bounds the randomized request identity.
type IdentityConfig struct {
	ViewportWidthMin  int     // default: 1280
	ViewportWidthMax  int     // default: 1920
	ViewportHeightMin int     // default: 720
	ViewportHeightMax int     // default: 1080
	ScaleMin          float64 // default: 1.0
	ScaleMax          float64 // default: 2.0
	Locale            string  // default: "en-US"
	Timezone          string  // default: "Australia/Sydney"
}

// CrawlConfig controls the bounded fan-out over pending URLs.
type CrawlConfig struct {
	// Concurrency caps simultaneously in-flight fetch+extract tasks.
	Concurrency int // default: 20

	// RatePerSecond throttles task admission. Zero disables throttling.
	RatePerSecond float64 // default: 0

	// ProgressInterval is how often aggregate progress is logged.
	ProgressInterval time.Duration // default: 10s
}

// EngineConfig controls the HTTP-first fetch escalation.
type EngineConfig struct {
	// EnableHTTPFirst tries a plain utls HTTP fetch before the browser.
	// Leave off for JS-rendered listing pages.
	EnableHTTPFirst bool // default: false

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 10s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Files: FilesConfig{
			PendingFile:   envOr("GRAYS_PENDING_FILE", "car_links_to_scrape.csv"),
			RecordsFile:   envOr("GRAYS_RECORDS_FILE", "sold_cars.csv"),
			ProcessedFile: envOr("GRAYS_PROCESSED_FILE", "scraped_links.csv"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("GRAYS_HEADLESS", true),
			NoSandbox:    envBoolOr("GRAYS_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("GRAYS_BROWSER_BIN"),
			DefaultProxy: os.Getenv("GRAYS_PROXY"),
		},
		Scraper: ScraperConfig{
			NavigationTimeout: envDurationOr("GRAYS_NAV_TIMEOUT", 180*time.Second),
			ReadyTimeout:      envDurationOr("GRAYS_READY_TIMEOUT", 5*time.Second),
			ReadySelector:     envOr("GRAYS_READY_SELECTOR", "body"),
			BlockedResourceTypes: envSliceOr("GRAYS_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Identity: IdentityConfig{
			ViewportWidthMin:  envIntOr("GRAYS_VIEWPORT_WIDTH_MIN", 1280),
			ViewportWidthMax:  envIntOr("GRAYS_VIEWPORT_WIDTH_MAX", 1920),
			ViewportHeightMin: envIntOr("GRAYS_VIEWPORT_HEIGHT_MIN", 720),
			ViewportHeightMax: envIntOr("GRAYS_VIEWPORT_HEIGHT_MAX", 1080),
			ScaleMin:          envFloatOr("GRAYS_SCALE_MIN", 1.0),
			ScaleMax:          envFloatOr("GRAYS_SCALE_MAX", 2.0),
			Locale:            envOr("GRAYS_LOCALE", "en-US"),
			Timezone:          envOr("GRAYS_TIMEZONE", "Australia/Sydney"),
		},
		Crawl: CrawlConfig{
			Concurrency:      envIntOr("GRAYS_CONCURRENCY", 20),
			RatePerSecond:    envFloatOr("GRAYS_RATE_PER_SECOND", 0),
			ProgressInterval: envDurationOr("GRAYS_PROGRESS_INTERVAL", 10*time.Second),
		},
		Engine: EngineConfig{
			EnableHTTPFirst: envBoolOr("GRAYS_HTTP_FIRST", false),
			HTTPTimeout:     envDurationOr("GRAYS_HTTP_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("GRAYS_LOG_LEVEL", "info"),
			Format: envOr("GRAYS_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
