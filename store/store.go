// Package store persists run state across three CSV files: the pending-URL
// list, the append-only sold-records log, and the append-only processed-URL
// log. Records and processed URLs are only appended; the pending file is the
// single mutable file and is rewritten last, so a crash mid-commit can only
// cause some URLs to be re-attempted, never lose accepted records.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/77nimesh/GraysWebScraping/config"
	"github.com/77nimesh/GraysWebScraping/models"
)

// recordHeader is the fixed column order of the sold-records file.
var recordHeader = []string{
	"Year", "Make", "Model", "Title", "Build date",
	"Indicated Odometer Reading", "Fuel Type", "No. of Cylinders",
	"VIN", "URL", "Sold price (AUD)", "Closed date",
}

// processedHeader is the single column of the processed-URL log.
var processedHeader = []string{"URL"}

// Store owns the three CSV files for one run.
type Store struct {
	pendingFile   string
	recordsFile   string
	processedFile string

	// pendingHeader preserves the input file's own header row so the
	// end-of-run rewrite keeps the file's original schema.
	pendingHeader []string
}

// Open prepares the store: the records and processed logs are created with
// their headers when absent. The pending file is collaborator-owned and is
// not created here; a missing pending file surfaces later in LoadPending as
// the run's fatal startup error.
func Open(cfg config.FilesConfig) (*Store, error) {
	s := &Store{
		pendingFile:   cfg.PendingFile,
		recordsFile:   cfg.RecordsFile,
		processedFile: cfg.ProcessedFile,
	}
	if err := ensureCSV(s.recordsFile, recordHeader); err != nil {
		return nil, err
	}
	if err := ensureCSV(s.processedFile, processedHeader); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadPending reads the pending-URL file: one header row, then one URL per
// row. Blank rows are ignored. A missing or unreadable file is a fatal
// startup error by design — there is nothing to reconcile yet.
func (s *Store) LoadPending() ([]string, error) {
	rows, err := readCSV(s.pendingFile)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStoreIO, s.pendingFile,
			"cannot read pending-URL file", err)
	}
	if len(rows) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeStoreIO, s.pendingFile,
			"pending-URL file has no header row", nil)
	}
	s.pendingHeader = rows[0]

	urls := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		urls = append(urls, row[0])
	}
	return urls, nil
}

// LoadIndex builds the dedup index from the sold-records log. Loaded once
// before the run; read-only afterwards.
func (s *Store) LoadIndex() (models.RecordIndex, error) {
	rows, err := readCSV(s.recordsFile)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeStoreIO, s.recordsFile,
			"cannot read record store", err)
	}

	vinCol, closedCol := columnIndex(recordHeader, "VIN"), columnIndex(recordHeader, "Closed date")
	idx := models.RecordIndex{}
	if len(rows) == 0 {
		return idx, nil
	}
	for _, row := range rows[1:] {
		if len(row) <= closedCol {
			continue
		}
		idx.Add(models.DedupKey{VIN: row[vinCol], ClosedDate: row[closedCol]})
	}
	return idx, nil
}

// Commit persists one completed run: accepted records and attempted URLs are
// appended to their logs first, then the pending file is rewritten without
// the attempted URLs. The rewrite goes through a temp file and rename so the
// pending list is never observed half-written.
func (s *Store) Commit(records []models.SaleRecord, attempted []string) error {
	recordRows := make([][]string, len(records))
	for i, r := range records {
		recordRows[i] = r.CSVRow()
	}
	if err := appendCSV(s.recordsFile, recordRows); err != nil {
		return models.NewScrapeError(models.ErrCodeStoreIO, s.recordsFile,
			"cannot append sale records", err)
	}

	urlRows := make([][]string, len(attempted))
	for i, u := range attempted {
		urlRows[i] = []string{u}
	}
	if err := appendCSV(s.processedFile, urlRows); err != nil {
		return models.NewScrapeError(models.ErrCodeStoreIO, s.processedFile,
			"cannot append processed URLs", err)
	}

	return s.rewritePending(attempted)
}

// rewritePending overwrites the pending file with pending − attempted.
func (s *Store) rewritePending(attempted []string) error {
	pending, err := s.LoadPending()
	if err != nil {
		return err
	}

	done := make(map[string]struct{}, len(attempted))
	for _, u := range attempted {
		done[u] = struct{}{}
	}

	header := s.pendingHeader
	if len(header) == 0 {
		header = []string{"Car Links"}
	}
	rows := [][]string{header}
	for _, u := range pending {
		if _, ok := done[u]; !ok {
			rows = append(rows, []string{u})
		}
	}

	tmp := s.pendingFile + ".tmp"
	if err := writeCSV(tmp, rows); err != nil {
		return models.NewScrapeError(models.ErrCodeStoreIO, s.pendingFile,
			"cannot write pending rewrite", err)
	}
	if err := os.Rename(tmp, s.pendingFile); err != nil {
		return models.NewScrapeError(models.ErrCodeStoreIO, s.pendingFile,
			"cannot replace pending file", err)
	}
	return nil
}

// --- file helpers ---

// ensureCSV creates the file with a header row if it does not exist yet.
func ensureCSV(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return models.NewScrapeError(models.ErrCodeStoreIO, path, "cannot stat file", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return models.NewScrapeError(models.ErrCodeStoreIO, path, "cannot create directory", err)
		}
	}
	if err := writeCSV(path, [][]string{header}); err != nil {
		return models.NewScrapeError(models.ErrCodeStoreIO, path, "cannot create file", err)
	}
	return nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func appendCSV(path string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	panic(fmt.Sprintf("store: column %q not in header", name))
}
