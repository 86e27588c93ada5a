// Package extract turns rendered listing pages into sale records. The rules
// are deliberately tolerant: a field that cannot be resolved keeps its
// default, and a page without a resolved sale price is a skip, not an error.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/77nimesh/GraysWebScraping/models"
)

// soldMarker is the text locator identifying a completed sale. Listings
// without it are unsold or withdrawn lots.
const soldMarker = "Sold for"

var (
	// rePrice captures "$12,500" style amounts, thousands separators optional.
	rePrice = regexp.MustCompile(`\$([\d,]+)`)

	// reTimeOfDay matches the "14:30 AEST" token embedded in close timestamps.
	reTimeOfDay = regexp.MustCompile(`\d{2}:\d{2} [A-Z]+`)
)

// detailLabels maps the bullet-list label prefixes to record fields. A line
// qualifies when it contains the label anywhere; the value is whatever
// follows the last colon. First matching label wins per line.
var detailLabels = []struct {
	label  string
	assign func(*models.SaleRecord, string)
}{
	{"Build Date:", func(r *models.SaleRecord, v string) { r.BuildDate = v }},
	{"Indicated Odometer Reading:", func(r *models.SaleRecord, v string) { r.Odometer = v }},
	{"Fuel Type:", func(r *models.SaleRecord, v string) { r.FuelType = v }},
	{"No. of Cylinders:", func(r *models.SaleRecord, v string) { r.Cylinders = v }},
	{"VIN:", func(r *models.SaleRecord, v string) { r.VIN = v }},
}

// Extractor applies the extraction rules against a read-only index of
// already-captured records.
type Extractor struct {
	index models.RecordIndex
}

// New creates an Extractor. The index is consulted per page so duplicates
// are discarded before they ever reach aggregation.
func New(index models.RecordIndex) *Extractor {
	return &Extractor{index: index}
}

// Extract classifies one rendered page. It returns a record outcome for a
// new sale, a skip for unsold/unpriced/duplicate pages, and an extract-error
// outcome if the document throws the rules off entirely. It never panics:
// parser faults on malformed markup are contained here.
func (e *Extractor) Extract(page *Page, url string) (out models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = models.Outcome{
				URL:  url,
				Kind: models.OutcomeExtractError,
				Err: models.NewScrapeError(models.ErrCodeExtraction, url,
					"extraction panicked on malformed document", fmt.Errorf("%v", r)),
			}
		}
	}()

	title := page.Title()
	if title == "" {
		title = models.NotAvailable
	}

	soldText, ok := page.TextContaining(soldMarker)
	if !ok {
		return models.SkipOutcome(url)
	}
	price := ExtractAUDPrice(soldText)
	if price == models.NotAvailable {
		return models.SkipOutcome(url)
	}

	rec := models.NewSaleRecord(url)
	rec.Title = title
	rec.SoldPriceAUD = price

	if raw, ok := page.ClosedDateText(); ok {
		rec.ClosedDate = StripTimeOfDay(raw)
	}

	if year, mk, model, ok := SplitTitle(title); ok {
		rec.Year, rec.Make, rec.Model = year, mk, model
	}

	for _, line := range page.ListItemTexts() {
		for _, dl := range detailLabels {
			if strings.Contains(line, dl.label) {
				dl.assign(&rec, valueAfterLastColon(line))
				break
			}
		}
	}

	if e.index.Has(rec.Key()) {
		return models.SkipOutcome(url)
	}
	return models.RecordOutcome(url, rec)
}

// ExtractAUDPrice pulls a dollar amount out of free text and strips the
// thousands separators. Returns "N/A" when no "$<digits>" pattern is present.
func ExtractAUDPrice(text string) string {
	m := rePrice.FindStringSubmatch(text)
	if m == nil {
		return models.NotAvailable
	}
	return strings.ReplaceAll(m[1], ",", "")
}

// StripTimeOfDay removes an embedded "HH:MM TZ" token from a close timestamp
// and trims the remainder, so "14:30 AEST 05 Jan 2024" becomes "05 Jan 2024".
func StripTimeOfDay(text string) string {
	return strings.TrimSpace(reTimeOfDay.ReplaceAllString(text, ""))
}

// SplitTitle maps the first three whitespace tokens of a listing title to
// year, make, and model. Titles with fewer than three tokens report false
// and the caller keeps the "Unknown" defaults for all three fields.
func SplitTitle(title string) (year, mk, model string, ok bool) {
	fields := strings.Fields(title)
	if len(fields) < 3 {
		return "", "", "", false
	}
	return fields[0], fields[1], fields[2], true
}

// valueAfterLastColon returns the trimmed substring after the final colon.
// Detail lines sometimes contain colons inside the label or the value, so
// only the last one delimits the field value.
func valueAfterLastColon(line string) string {
	idx := strings.LastIndexByte(line, ':')
	if idx < 0 {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(line[idx+1:])
}
