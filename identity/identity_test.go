package identity

import (
	"strings"
	"sync"
	"testing"

	"github.com/77nimesh/GraysWebScraping/config"
)

func testConfig() config.IdentityConfig {
	return config.IdentityConfig{
		ViewportWidthMin:  1280,
		ViewportWidthMax:  1920,
		ViewportHeightMin: 720,
		ViewportHeightMax: 1080,
		ScaleMin:          1.0,
		ScaleMax:          2.0,
		Locale:            "en-US",
		Timezone:          "Australia/Sydney",
	}
}

func TestNext_WithinBounds(t *testing.T) {
	p := NewProvider(testConfig())

	for i := 0; i < 200; i++ {
		id := p.Next()

		if id.ViewportWidth < 1280 || id.ViewportWidth > 1920 {
			t.Fatalf("viewport width out of bounds: %d", id.ViewportWidth)
		}
		if id.ViewportHeight < 720 || id.ViewportHeight > 1080 {
			t.Fatalf("viewport height out of bounds: %d", id.ViewportHeight)
		}
		if id.ScaleFactor < 1.0 || id.ScaleFactor >= 2.0 {
			t.Fatalf("scale factor out of bounds: %f", id.ScaleFactor)
		}
		if !strings.Contains(id.UserAgent, "Mozilla/5.0") {
			t.Fatalf("unexpected user agent: %q", id.UserAgent)
		}
		if id.Locale != "en-US" || id.Timezone != "Australia/Sydney" {
			t.Fatalf("locale/timezone not applied: %q %q", id.Locale, id.Timezone)
		}
	}
}

func TestNext_DegenerateRanges(t *testing.T) {
	cfg := testConfig()
	cfg.ViewportWidthMin = 1366
	cfg.ViewportWidthMax = 1366
	cfg.ScaleMin = 1.5
	cfg.ScaleMax = 1.5

	p := NewProvider(cfg)
	id := p.Next()

	if id.ViewportWidth != 1366 {
		t.Errorf("collapsed range should pin width, got %d", id.ViewportWidth)
	}
	if id.ScaleFactor != 1.5 {
		t.Errorf("collapsed range should pin scale, got %f", id.ScaleFactor)
	}
}

func TestNext_ConcurrentCallers(t *testing.T) {
	p := NewProvider(testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := p.Next()
				if id.UserAgent == "" {
					t.Error("empty user agent from concurrent draw")
					return
				}
			}
		}()
	}
	wg.Wait()
}
