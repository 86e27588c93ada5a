package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/77nimesh/GraysWebScraping/config"
	"github.com/77nimesh/GraysWebScraping/engine"
	"github.com/77nimesh/GraysWebScraping/extract"
	"github.com/77nimesh/GraysWebScraping/identity"
	"github.com/77nimesh/GraysWebScraping/models"
	"github.com/77nimesh/GraysWebScraping/store"
)

const soldHTML = `<html><body>
  <span>Sold for $12,500</span>
  <abbr class="endtime">14:30 AEST 05 Jan 2024</abbr>
  <ul><li>VIN: VIN-%s</li></ul>
</body></html>`

const unsoldHTML = `<html><body><span>Passed in</span></body></html>`

func idProvider() *identity.Provider {
	return identity.NewProvider(config.IdentityConfig{
		ViewportWidthMin: 1280, ViewportWidthMax: 1920,
		ViewportHeightMin: 720, ViewportHeightMax: 1080,
		ScaleMin: 1.0, ScaleMax: 2.0,
		Locale: "en-US", Timezone: "Australia/Sydney",
	})
}

func crawlConfig(concurrency int) config.CrawlConfig {
	return config.CrawlConfig{
		Concurrency:      concurrency,
		ProgressInterval: time.Hour, // keep the log quiet in tests
	}
}

// instrumentedFetcher tracks the number of concurrently executing fetches.
type instrumentedFetcher struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	fetch    func(url string) (*engine.FetchResult, error)
}

func (f *instrumentedFetcher) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxSeen.Load()
		if n <= peak || f.maxSeen.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond) // hold the slot so overlap is observable
	return f.fetch(req.URL)
}

// soldResult renders a sold fixture whose VIN is derived from the lot number,
// so distinct URLs produce distinct dedup keys.
func soldResult(url string) (*engine.FetchResult, error) {
	lot := url[strings.LastIndex(url, "/")+1:]
	return &engine.FetchResult{
		HTML:     fmt.Sprintf(soldHTML, lot),
		Title:    "2019 Toyota Corolla Ascent",
		FinalURL: url,
	}, nil
}

func TestRun_ConcurrencyBound(t *testing.T) {
	const limit = 5
	fetcher := &instrumentedFetcher{fetch: soldResult}
	s := New(fetcher, idProvider(), extract.New(models.RecordIndex{}), crawlConfig(limit))

	urls := make([]string, 60)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a/lot/%d", i)
	}

	s.Run(context.Background(), urls)

	if max := fetcher.maxSeen.Load(); max > limit {
		t.Errorf("observed %d concurrent fetches, cap is %d", max, limit)
	}
}

func TestRun_CollectsRecordsAndAttemptsEverything(t *testing.T) {
	fetcher := &instrumentedFetcher{fetch: func(url string) (*engine.FetchResult, error) {
		switch url {
		case "https://a/lot/1":
			return soldResult(url)
		case "https://a/lot/2":
			return &engine.FetchResult{HTML: unsoldHTML, Title: "2017 Mazda 3"}, nil
		default:
			return nil, errors.New("navigation timeout")
		}
	}}
	s := New(fetcher, idProvider(), extract.New(models.RecordIndex{}), crawlConfig(4))

	urls := []string{"https://a/lot/1", "https://a/lot/2", "https://a/lot/3"}
	summary := s.Run(context.Background(), urls)

	if summary.Accepted != 1 || summary.Skipped != 1 || summary.FetchErrors != 1 {
		t.Errorf("accepted/skipped/fetchErrors = %d/%d/%d, want 1/1/1",
			summary.Accepted, summary.Skipped, summary.FetchErrors)
	}
	if len(summary.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(summary.Records))
	}
	if summary.Records[0].URL != "https://a/lot/1" {
		t.Errorf("record url = %q", summary.Records[0].URL)
	}

	// Every submitted URL is attempted, failures included, none duplicated.
	if len(summary.Attempted) != len(urls) {
		t.Fatalf("attempted = %d urls, want %d", len(summary.Attempted), len(urls))
	}
	seen := map[string]bool{}
	for _, u := range summary.Attempted {
		if seen[u] {
			t.Errorf("url %q attempted twice", u)
		}
		seen[u] = true
	}
	for _, u := range urls {
		if !seen[u] {
			t.Errorf("url %q dropped from attempted set", u)
		}
	}
}

func TestRun_FailureNeverAbortsSiblings(t *testing.T) {
	var served atomic.Int32
	fetcher := &instrumentedFetcher{fetch: func(url string) (*engine.FetchResult, error) {
		served.Add(1)
		return nil, errors.New("boom")
	}}
	s := New(fetcher, idProvider(), extract.New(models.RecordIndex{}), crawlConfig(3))

	urls := make([]string, 20)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a/lot/%d", i)
	}
	summary := s.Run(context.Background(), urls)

	if int(served.Load()) != len(urls) {
		t.Errorf("only %d of %d fetches ran; a failure cancelled siblings", served.Load(), len(urls))
	}
	if summary.FetchErrors != len(urls) {
		t.Errorf("fetchErrors = %d, want %d", summary.FetchErrors, len(urls))
	}
}

func TestRun_DuplicatesFiltered(t *testing.T) {
	idx := models.RecordIndex{}
	idx.Add(models.DedupKey{VIN: "VIN-1", ClosedDate: "05 Jan 2024"})

	fetcher := &instrumentedFetcher{fetch: soldResult}
	s := New(fetcher, idProvider(), extract.New(idx), crawlConfig(2))

	summary := s.Run(context.Background(), []string{"https://a/lot/1", "https://a/lot/2"})

	if summary.Accepted != 1 || summary.Skipped != 1 {
		t.Errorf("accepted/skipped = %d/%d, want 1/1 (duplicate filtered)",
			summary.Accepted, summary.Skipped)
	}
}

func TestRun_SecondRunIdempotent(t *testing.T) {
	// Running the pipeline twice over the same pages must leave the record
	// store unchanged after the second run: every key captured by the first
	// run is filtered as a duplicate by the second.
	dir := t.TempDir()
	files := config.FilesConfig{
		PendingFile:   filepath.Join(dir, "pending.csv"),
		RecordsFile:   filepath.Join(dir, "sold.csv"),
		ProcessedFile: filepath.Join(dir, "scraped.csv"),
	}
	urls := []string{"https://a/lot/1", "https://a/lot/2"}
	pendingBody := "Car Links\n" + strings.Join(urls, "\n") + "\n"
	if err := os.WriteFile(files.PendingFile, []byte(pendingBody), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(files)
	if err != nil {
		t.Fatal(err)
	}

	runOnce := func() *Summary {
		pending, err := st.LoadPending()
		if err != nil {
			t.Fatal(err)
		}
		index, err := st.LoadIndex()
		if err != nil {
			t.Fatal(err)
		}
		fetcher := &instrumentedFetcher{fetch: soldResult}
		s := New(fetcher, idProvider(), extract.New(index), crawlConfig(2))
		summary := s.Run(context.Background(), pending)
		if err := st.Commit(summary.Records, summary.Attempted); err != nil {
			t.Fatal(err)
		}
		return summary
	}

	first := runOnce()
	if first.Accepted != 2 {
		t.Fatalf("first run accepted %d, want 2", first.Accepted)
	}

	recordsAfterFirst, err := os.ReadFile(files.RecordsFile)
	if err != nil {
		t.Fatal(err)
	}

	// Re-arm the pending file as if the same lots were queued again.
	if err := os.WriteFile(files.PendingFile, []byte(pendingBody), 0o644); err != nil {
		t.Fatal(err)
	}

	second := runOnce()
	if second.Accepted != 0 || second.Skipped != 2 {
		t.Errorf("second run accepted/skipped = %d/%d, want 0/2",
			second.Accepted, second.Skipped)
	}

	recordsAfterSecond, err := os.ReadFile(files.RecordsFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(recordsAfterFirst) != string(recordsAfterSecond) {
		t.Error("second run modified the record store")
	}
}

func TestProgress_Monotonic(t *testing.T) {
	var mu sync.Mutex
	fetcher := &instrumentedFetcher{fetch: soldResult}
	s := New(fetcher, idProvider(), extract.New(models.RecordIndex{}), crawlConfig(4))

	stop := make(chan struct{})
	var readings []int
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			completed, _ := s.Progress()
			mu.Lock()
			readings = append(readings, completed)
			mu.Unlock()
			time.Sleep(time.Millisecond)
		}
	}()

	urls := make([]string, 30)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a/lot/%d", i)
	}
	s.Run(context.Background(), urls)
	close(stop)

	mu.Lock()
	defer mu.Unlock()
	prev := 0
	for _, r := range readings {
		if r < prev {
			t.Fatalf("progress went backwards: %d after %d", r, prev)
		}
		prev = r
	}

	completed, total := s.Progress()
	if completed != len(urls) || total != len(urls) {
		t.Errorf("final progress %d/%d, want %d/%d", completed, total, len(urls), len(urls))
	}
}
