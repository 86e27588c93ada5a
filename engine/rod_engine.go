package engine

import (
	"context"
	"fmt"
)

// RodFetchFunc wraps the browser scraper's fetch logic. It is injected from
// main.go to avoid a circular import (engine/ -> scraper/).
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine renders pages in the shared headless browser via the injected
// callback. It is the escalation target for pages the HTTP engine cannot
// serve rendered.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around the injected browser fetch.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("rod: fetchFunc not configured")
	}

	result, err := e.fetchFunc(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rod: %w", err)
	}

	result.EngineName = e.Name()
	return result, nil
}
