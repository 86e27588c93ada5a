package models

// OutcomeKind classifies what one fetch+extract task produced.
type OutcomeKind int

const (
	// OutcomeRecord means the page yielded a new, non-duplicate sale record.
	OutcomeRecord OutcomeKind = iota

	// OutcomeSkip means the page was processed but yielded nothing to keep:
	// the lot was unsold, the price could not be resolved, or the record is
	// a duplicate of one already in the store.
	OutcomeSkip

	// OutcomeFetchError means navigation, rendering, or the timeout failed.
	OutcomeFetchError

	// OutcomeExtractError means the rendered document could not be parsed.
	OutcomeExtractError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRecord:
		return "record"
	case OutcomeSkip:
		return "skip"
	case OutcomeFetchError:
		return "fetch_error"
	case OutcomeExtractError:
		return "extract_error"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of one URL's task. Errors are carried as
// values rather than propagated: a failed URL is still an attempted URL, and
// one bad page must never abort its siblings.
type Outcome struct {
	URL    string
	Kind   OutcomeKind
	Record SaleRecord // valid only when Kind == OutcomeRecord
	Err    error      // valid only for the two error kinds
}

// SkipOutcome builds a skip outcome for the URL.
func SkipOutcome(url string) Outcome {
	return Outcome{URL: url, Kind: OutcomeSkip}
}

// RecordOutcome builds a record outcome for the URL.
func RecordOutcome(url string, r SaleRecord) Outcome {
	return Outcome{URL: url, Kind: OutcomeRecord, Record: r}
}
