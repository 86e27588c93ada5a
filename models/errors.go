package models

import "fmt"

// Error codes used in logs and internal error handling.
const (
	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeExtraction   = "EXTRACTION_FAILED"
	ErrCodeBrowserCrash = "BROWSER_CRASH"
	ErrCodeStoreIO      = "STORE_IO"
)

// ScrapeError is the internal error type carrying an error code and the URL
// it occurred on. It implements the error interface and supports error
// wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	URL     string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Code, e.Message, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.URL)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, url, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, URL: url, Message: message, Err: err}
}
