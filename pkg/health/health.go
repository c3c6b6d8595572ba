// Package health serves liveness and readiness probes.
//
// Each check runs on its own ticker. A check turns unhealthy only after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Thresholds applied to every check.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

type probe struct {
	name    string
	kind    Kind
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the ticker goroutine.
	fails int
	oks   int
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.check(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		if p.fails++; p.fails >= FailureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	if p.oks++; p.oks >= SuccessThreshold {
		p.healthy.Store(true)
	}
}

func (p *probe) failure() (string, bool) {
	if p.healthy.Load() {
		return "", false
	}
	if msg := p.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "check is unhealthy", true
}

// Health tracks registered probes and the manual readiness flag.
type Health struct {
	ready atomic.Bool

	mu     sync.Mutex
	probes []*probe
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check. Checks start healthy. Register before Start.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, check CheckFunc) {
	p := &probe{name: name, kind: kind, timeout: timeout, check: check}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Start runs every check immediately and then every interval until ctx is
// done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	for _, p := range probes {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag, cleared during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.Lock()
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	out := make(map[string]string)
	for _, p := range probes {
		if p.kind != kind {
			continue
		}
		if msg, failed := p.failure(); failed {
			out[p.name] = msg
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus writes {"status":"ok"} or 503 with the failing checks.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	var e jx.Encoder
	e.ObjStart()
	e.Field("status", func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Str("ok")
		} else {
			e.Str("unhealthy")
		}
	})
	if len(failures) > 0 {
		e.Field("checks", func(e *jx.Encoder) {
			e.ObjStart()
			for name, msg := range failures {
				e.Field(name, func(e *jx.Encoder) { e.Str(msg) })
			}
			e.ObjEnd()
		})
	}
	e.ObjEnd()

	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
