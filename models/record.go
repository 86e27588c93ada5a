package models

// Field defaults used when a page does not expose a value.
const (
	NotAvailable = "N/A"
	Unknown      = "Unknown"
)

// SaleRecord is one completed vehicle sale extracted from a lot page.
// String fields keep the site's own formatting except SoldPriceAUD,
// which is digits only.
type SaleRecord struct {
	Year         string
	Make         string
	Model        string
	Title        string
	BuildDate    string
	Odometer     string
	FuelType     string
	Cylinders    string
	VIN          string
	URL          string
	SoldPriceAUD string
	ClosedDate   string
}

// NewSaleRecord returns a record with every field set to its default.
func NewSaleRecord(url string) SaleRecord {
	return SaleRecord{
		Year:         Unknown,
		Make:         Unknown,
		Model:        Unknown,
		Title:        NotAvailable,
		BuildDate:    NotAvailable,
		Odometer:     NotAvailable,
		FuelType:     NotAvailable,
		Cylinders:    NotAvailable,
		VIN:          NotAvailable,
		URL:          url,
		SoldPriceAUD: NotAvailable,
		ClosedDate:   NotAvailable,
	}
}

// DedupKey identifies a unique sale. Two scrapes of the same lot close
// share the same (VIN, ClosedDate) pair even when the listing URL differs.
type DedupKey struct {
	VIN        string
	ClosedDate string
}

// Key returns the record's dedup key.
func (r SaleRecord) Key() DedupKey {
	return DedupKey{VIN: r.VIN, ClosedDate: r.ClosedDate}
}

// CSVRow returns the record's fields in the sold-records file column order.
func (r SaleRecord) CSVRow() []string {
	return []string{
		r.Year, r.Make, r.Model, r.Title, r.BuildDate, r.Odometer,
		r.FuelType, r.Cylinders, r.VIN, r.URL, r.SoldPriceAUD, r.ClosedDate,
	}
}

// RecordIndex is the set of dedup keys already present in the record store.
// It is loaded once before the run and is read-only afterwards, so concurrent
// lookups from scraping tasks need no locking.
type RecordIndex map[DedupKey]struct{}

// Has reports whether the key is already known.
func (idx RecordIndex) Has(k DedupKey) bool {
	_, ok := idx[k]
	return ok
}

// Add inserts a key. Only called during the initial load.
func (idx RecordIndex) Add(k DedupKey) {
	idx[k] = struct{}{}
}
