// Package engine abstracts how a listing URL becomes a rendered document:
// a cheap utls-fingerprinted HTTP fetch for pages that arrive fully formed,
// and the headless browser for everything else. The dispatcher tries them in
// order and remembers per host which one actually works.
package engine

import (
	"context"

	"github.com/77nimesh/GraysWebScraping/identity"
)

// Engine is the interface that all fetch engines implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
// Timeouts are owned by each engine's configuration, not the request.
type FetchRequest struct {
	URL      string
	Identity identity.Identity
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}
