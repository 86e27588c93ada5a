package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// HostMemory remembers which engine last worked for each host, so a batch
// against one site settles on the right engine after the first few fetches
// instead of re-probing the HTTP path for every URL.
type HostMemory struct {
	store sync.Map // host (string) -> engine name (string)
}

// NewHostMemory creates an empty HostMemory.
func NewHostMemory() *HostMemory {
	return &HostMemory{}
}

// Get returns the remembered engine name for a host, or "".
func (m *HostMemory) Get(host string) string {
	if v, ok := m.store.Load(host); ok {
		return v.(string)
	}
	return ""
}

// Set records which engine succeeded for a host.
func (m *HostMemory) Set(host, engineName string) {
	m.store.Store(host, engineName)
}

// Delete removes the memory for a host after the remembered engine fails.
func (m *HostMemory) Delete(host string) {
	m.store.Delete(host)
}

// Dispatcher tries engines in escalation order (cheapest first) and returns
// the first usable result. An HTTP result whose body still needs JavaScript
// rendering does not count as usable.
type Dispatcher struct {
	engines []Engine
	memory  *HostMemory
}

// NewDispatcher creates a Dispatcher. engines are tried in slice order.
func NewDispatcher(engines []Engine, memory *HostMemory) *Dispatcher {
	return &Dispatcher{engines: engines, memory: memory}
}

// Dispatch fetches the request through the first engine that produces a
// usable rendered document. If all engines fail, it returns the last error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	host := extractHost(req.URL)

	// A remembered engine skips the escalation ladder entirely. When it
	// fails, the fallback pass below must not run it a second time.
	failedRemembered := ""
	var lastErr error
	if remembered := d.memory.Get(host); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			result, err := d.try(ctx, eng, req)
			if err == nil {
				return result, nil
			}
			slog.Debug("remembered engine failed, re-running escalation",
				"host", host, "engine", remembered, "error", err)
			d.memory.Delete(host)
			failedRemembered = remembered
			lastErr = err
			break
		}
	}

	for _, eng := range d.engines {
		if eng.Name() == failedRemembered {
			continue
		}
		result, err := d.try(ctx, eng, req)
		if err != nil {
			lastErr = err
			slog.Debug("engine failed, escalating", "engine", eng.Name(),
				"url", req.URL, "error", err)
			continue
		}
		d.memory.Set(host, eng.Name())
		return result, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: no engines configured for %s", req.URL)
	}
	return nil, lastErr
}

// try runs one engine and rejects HTTP bodies that still need a browser.
func (d *Dispatcher) try(ctx context.Context, eng Engine, req *FetchRequest) (*FetchResult, error) {
	result, err := eng.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if eng.Name() == "http" && NeedsBrowser(result.HTML) {
		return nil, fmt.Errorf("%s: body looks unrendered, needs browser", eng.Name())
	}
	return result, nil
}

// extractHost parses the hostname from a URL string.
func extractHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
