package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/77nimesh/GraysWebScraping/config"
	"github.com/77nimesh/GraysWebScraping/models"
)

func testFiles(t *testing.T) config.FilesConfig {
	t.Helper()
	dir := t.TempDir()
	return config.FilesConfig{
		PendingFile:   filepath.Join(dir, "car_links_to_scrape.csv"),
		RecordsFile:   filepath.Join(dir, "sold_cars.csv"),
		ProcessedFile: filepath.Join(dir, "scraped_links.csv"),
	}
}

func writePending(t *testing.T, path string, urls ...string) {
	t.Helper()
	lines := append([]string{"Car Links"}, urls...)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func record(vin, closed, url string) models.SaleRecord {
	r := models.NewSaleRecord(url)
	r.VIN = vin
	r.ClosedDate = closed
	r.SoldPriceAUD = "12500"
	return r
}

func TestOpen_CreatesLogsWithHeaders(t *testing.T) {
	cfg := testFiles(t)
	if _, err := Open(cfg); err != nil {
		t.Fatalf("Open: %v", err)
	}

	records, err := os.ReadFile(cfg.RecordsFile)
	if err != nil {
		t.Fatalf("records file not created: %v", err)
	}
	if !strings.HasPrefix(string(records), "Year,Make,Model,Title,Build date") {
		t.Errorf("records header wrong: %q", string(records))
	}

	processed, err := os.ReadFile(cfg.ProcessedFile)
	if err != nil {
		t.Fatalf("processed file not created: %v", err)
	}
	if strings.TrimSpace(string(processed)) != "URL" {
		t.Errorf("processed header wrong: %q", string(processed))
	}
}

func TestOpen_DoesNotCreatePendingFile(t *testing.T) {
	cfg := testFiles(t)
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.LoadPending(); err == nil {
		t.Fatal("missing pending file should be a load error")
	}
}

func TestLoadPending(t *testing.T) {
	cfg := testFiles(t)
	writePending(t, cfg.PendingFile, "https://a/lot/1", "https://a/lot/2", "", "https://a/lot/3")

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	urls, err := s.LoadPending()
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	want := []string{"https://a/lot/1", "https://a/lot/2", "https://a/lot/3"}
	if len(urls) != len(want) {
		t.Fatalf("got %d urls, want %d: %v", len(urls), len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}
}

func TestCommit_AppendsAndShrinksPending(t *testing.T) {
	cfg := testFiles(t)
	writePending(t, cfg.PendingFile, "https://a/lot/1", "https://a/lot/2", "https://a/lot/3")

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPending(); err != nil {
		t.Fatal(err)
	}

	recs := []models.SaleRecord{record("VIN1", "05 Jan 2024", "https://a/lot/1")}
	attempted := []string{"https://a/lot/1", "https://a/lot/2"}
	if err := s.Commit(recs, attempted); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Records log gained exactly one row.
	rows, err := readCSV(cfg.RecordsFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("records rows = %d, want header + 1", len(rows))
	}
	if rows[1][8] != "VIN1" || rows[1][10] != "12500" {
		t.Errorf("record row wrong: %v", rows[1])
	}

	// Processed log gained both attempted URLs, record or skip alike.
	rows, err = readCSV(cfg.ProcessedFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("processed rows = %d, want header + 2", len(rows))
	}

	// Pending keeps only the unattempted URL, header preserved.
	rows, err = readCSV(cfg.PendingFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "Car Links" || rows[1][0] != "https://a/lot/3" {
		t.Errorf("pending after commit wrong: %v", rows)
	}
}

func TestCommit_Completeness(t *testing.T) {
	// (pending after) ∪ (processed added) == (pending before), no overlap.
	cfg := testFiles(t)
	before := []string{"https://a/lot/1", "https://a/lot/2", "https://a/lot/3", "https://a/lot/4"}
	writePending(t, cfg.PendingFile, before...)

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPending(); err != nil {
		t.Fatal(err)
	}

	attempted := []string{"https://a/lot/2", "https://a/lot/4"}
	if err := s.Commit(nil, attempted); err != nil {
		t.Fatal(err)
	}

	after, err := s.LoadPending()
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]int{}
	for _, u := range after {
		seen[u]++
	}
	for _, u := range attempted {
		seen[u]++
	}
	if len(seen) != len(before) {
		t.Fatalf("partition lost or invented URLs: %v", seen)
	}
	for _, u := range before {
		if seen[u] != 1 {
			t.Errorf("url %q counted %d times, want exactly once", u, seen[u])
		}
	}
}

func TestLoadIndex_RoundTrip(t *testing.T) {
	cfg := testFiles(t)
	writePending(t, cfg.PendingFile, "https://a/lot/1")

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPending(); err != nil {
		t.Fatal(err)
	}

	recs := []models.SaleRecord{
		record("VIN1", "05 Jan 2024", "https://a/lot/1"),
		record("VIN2", "06 Jan 2024", "https://a/lot/1"),
	}
	if err := s.Commit(recs, []string{"https://a/lot/1"}); err != nil {
		t.Fatal(err)
	}

	idx, err := s.LoadIndex()
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if !idx.Has(models.DedupKey{VIN: "VIN1", ClosedDate: "05 Jan 2024"}) {
		t.Error("index missing VIN1")
	}
	if !idx.Has(models.DedupKey{VIN: "VIN2", ClosedDate: "06 Jan 2024"}) {
		t.Error("index missing VIN2")
	}
	if idx.Has(models.DedupKey{VIN: "VIN3", ClosedDate: "05 Jan 2024"}) {
		t.Error("index has phantom key")
	}
}

func TestCommit_EmptyRunKeepsStoreUnchanged(t *testing.T) {
	// Second-run idempotence: committing zero records and zero attempted URLs
	// must leave all three files semantically unchanged.
	cfg := testFiles(t)
	writePending(t, cfg.PendingFile, "https://a/lot/1")

	s, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPending(); err != nil {
		t.Fatal(err)
	}

	beforeRecords, _ := os.ReadFile(cfg.RecordsFile)
	if err := s.Commit(nil, nil); err != nil {
		t.Fatal(err)
	}
	afterRecords, _ := os.ReadFile(cfg.RecordsFile)
	if string(beforeRecords) != string(afterRecords) {
		t.Error("empty commit modified the record store")
	}

	urls, err := s.LoadPending()
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 1 || urls[0] != "https://a/lot/1" {
		t.Errorf("empty commit changed pending set: %v", urls)
	}
}
