// Package health serves the /livez and /readyz probes.
//
// Every registered check runs in its own goroutine at a fixed interval. A
// check turns unhealthy only after failureThreshold consecutive failures and
// recovers after successThreshold consecutive successes, so one slow ping
// does not pull the instance out of the load balancer.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
)

// CheckFunc reports whether a component is healthy. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

const (
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1

	notReadyKey = "_readiness"
)

// probe is a registered check. run is only ever called from the probe's own
// goroutine, so fails and oks need no locking; healthy and lastErr are read
// by HTTP handlers.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{
		name:             name,
		timeout:          timeout,
		check:            check,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	p.oks++
	if p.oks >= p.successThreshold {
		p.healthy.Store(true)
	}
}

// status returns the current verdict and the most recent check error. The
// error may be non-nil while the probe is still healthy.
func (p *probe) status() (bool, error) {
	var err error
	if e := p.lastErr.Load(); e != nil {
		err = *e
	}
	return p.healthy.Load(), err
}

func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Health tracks liveness and readiness of the service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check of the process itself, such as the
// goroutine count or GC pauses.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check of a dependency needed to serve
// traffic, such as Postgres or Redis.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Mount registers /livez and /readyz on r.
func (h *Health) Mount(r chi.Router) {
	r.Get("/livez", h.LiveEndpoint)
	r.Get("/readyz", h.ReadyEndpoint)
}

// Start runs every registered check in the background at interval until
// Stop is called or ctx is done. Register checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
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

// SetReady marks the service ready after startup, or not ready during
// graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service was marked ready and every readiness
// check currently passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, p := range h.snapshot(false) {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(liveness bool) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if liveness {
		return slices.Clone(h.liveness)
	}
	return slices.Clone(h.readiness)
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} while every liveness check
// passes, 503 with the failing checks otherwise. With ?verbose every check
// is listed.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	checks, healthy := report(h.snapshot(true), r.URL.Query().Has("verbose"))
	writeResponse(w, healthy, checks)
}

// ReadyEndpoint serves /readyz. It fails while the service is not marked
// ready, reported under the "_readiness" key.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	checks, healthy := report(h.snapshot(false), r.URL.Query().Has("verbose"))
	if !h.ready.Load() {
		checks[notReadyKey] = "service is not ready"
		healthy = false
	}
	writeResponse(w, healthy, checks)
}

// report collects the failing probes, or all probes when verbose. The stored
// result of the last run is used; checks are never executed inline.
func report(probes []*probe, verbose bool) (map[string]string, bool) {
	checks := make(map[string]string)
	healthy := true
	for _, p := range probes {
		ok, err := p.status()
		switch {
		case !ok:
			healthy = false
			if err != nil {
				checks[p.name] = err.Error()
			} else {
				checks[p.name] = "check is unhealthy"
			}
		case verbose:
			checks[p.name] = "ok"
		}
	}
	return checks, healthy
}

func writeResponse(w http.ResponseWriter, healthy bool, checks map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	code := http.StatusOK
	status := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		status = "unhealthy"
	}

	e.ObjStart()
	e.FieldStart("status")
	e.Str(status)
	if len(checks) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range slices.Sorted(maps.Keys(checks)) {
			e.FieldStart(name)
			e.Str(checks[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
