// Package identity generates randomized browsing identities so concurrent
// fetches do not share an obvious fingerprint.
package identity

import (
	"math/rand"

	"github.com/77nimesh/GraysWebScraping/config"
)

// userAgents is the rotation pool applied per fetch.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/110.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/110.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/110.0.0.0 Safari/537.36",
}

// Identity is one randomized request identity. Generated fresh per fetch and
// never persisted.
type Identity struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	ScaleFactor    float64
	Locale         string
	Timezone       string
}

// Provider draws identities within configured bounds. Draws go through the
// process-wide math/rand source, which is safe for concurrent callers, so
// Provider itself holds no mutable state.
type Provider struct {
	cfg config.IdentityConfig
}

// NewProvider creates a Provider with the given bounds.
func NewProvider(cfg config.IdentityConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Next returns a fresh identity. It never fails.
func (p *Provider) Next() Identity {
	return Identity{
		UserAgent:      userAgents[rand.Intn(len(userAgents))],
		ViewportWidth:  intBetween(p.cfg.ViewportWidthMin, p.cfg.ViewportWidthMax),
		ViewportHeight: intBetween(p.cfg.ViewportHeightMin, p.cfg.ViewportHeightMax),
		ScaleFactor:    floatBetween(p.cfg.ScaleMin, p.cfg.ScaleMax),
		Locale:         p.cfg.Locale,
		Timezone:       p.cfg.Timezone,
	}
}

// intBetween returns a uniform draw from [min, max] inclusive.
func intBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.Intn(max-min+1)
}

// floatBetween returns a uniform draw from [min, max).
func floatBetween(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rand.Float64()*(max-min)
}
