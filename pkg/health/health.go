// Package health implements liveness and readiness probes for the API
// server, modeled on Kubernetes probe semantics. A probe flips to
// unhealthy only after a run of consecutive failures and recovers after
// a consecutive success, so one slow database ping does not take the
// service out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports whether the checked component is healthy. A nil
// return means healthy.
type CheckFunc func(ctx context.Context) error

// Flap damping applied to every probe.
const (
	failureThreshold = 3
	successThreshold = 1
)

// probe wraps a single named check with its flap-damping state.
//
// run is only ever called from the supervisor goroutine, so the
// consecutive counters need no locking. healthy and lastErr cross into
// HTTP handler goroutines and are atomic.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func (p *probe) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(checkCtx)
	p.lastErr.Store(&err)

	if err != nil {
		p.oks = 0
		if p.fails++; p.fails >= failureThreshold {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	if p.oks++; p.oks >= successThreshold {
		p.healthy.Store(true)
	}
}

// failure returns a description of the current failure, or "" when the
// probe is healthy.
func (p *probe) failure() string {
	if p.healthy.Load() {
		return ""
	}
	if errp := p.lastErr.Load(); errp != nil && *errp != nil {
		return (*errp).Error()
	}
	return "check is unhealthy"
}

// Service runs registered probes in the background and serves the
// /livez and /readyz endpoints from their latest results.
type Service struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Probes are registered
	// before Start; handlers take a read lock only to snapshot.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New creates a probe service in the not-ready state. Call SetReady(true)
// once initialization has finished.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a check answering "is this process still
// functioning" (goroutine leaks, GC stalls).
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a check answering "can this process serve
// traffic right now" (database connectivity, dependent services).
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newProbe(name, timeout, check))
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	// Healthy until proven otherwise, so registration order cannot
	// cause a spurious not-ready window.
	p.healthy.Store(true)
	return p
}

// Start launches a single supervisor goroutine driving every registered
// probe at the given interval. Probes run sequentially; each one is
// bounded by its own timeout.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	probes := make([]*probe, 0, len(s.liveness)+len(s.readiness))
	probes = append(probes, s.liveness...)
	probes = append(probes, s.readiness...)
	s.mu.Unlock()

	go supervise(ctx, probes, interval)
}

func supervise(ctx context.Context, probes []*probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runAll := func() {
		for _, p := range probes {
			p.run(ctx)
		}
	}

	runAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAll()
		}
	}
}

// Stop cancels the supervisor. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown so load balancers stop routing new requests here.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness
// probe is passing.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}

	s.mu.RLock()
	probes := s.readiness
	s.mu.RUnlock()

	for _, p := range probes {
		if !p.healthy.Load() {
			return false
		}
	}
	return true
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez: 200 {"status":"ok"} when every liveness
// probe passes, otherwise 503 with the failing probes listed.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	probes := append([]*probe(nil), s.liveness...)
	s.mu.RUnlock()

	writeStatus(w, failures(probes))
}

// ReadyEndpoint serves /readyz: 200 only when the manual gate is open
// AND every readiness probe passes.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready.Load()

	s.mu.RLock()
	probes := append([]*probe(nil), s.readiness...)
	s.mu.RUnlock()

	failed := failures(probes)
	if !ready {
		failed["_readiness"] = "service is not ready"
	}
	writeStatus(w, failed)
}

func failures(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		if msg := p.failure(); msg != "" {
			failed[p.name] = msg
		}
	}
	return failed
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(failed) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failed
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	// Status code is already committed; an encode error here means the
	// client went away.
	_ = json.NewEncoder(w).Encode(resp)
}
