package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

// drive runs a probe n times, the way the supervisor would.
func drive(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func getStatus(t *testing.T, handle http.HandlerFunc, path string) (int, statusResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handle(w, req)

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, passing())
	s.AddLivenessCheck("gc-pause", time.Second, passing())

	// Probes start healthy before their first run.
	code, body := getStatus(t, s.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpoint_FailingProbe(t *testing.T) {
	s := New()
	s.AddLivenessCheck("postgres", time.Second, failing("connection refused"))

	drive(s.liveness[0], failureThreshold)

	code, body := getStatus(t, s.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["postgres"])
}

func TestLiveEndpoint_FailureBelowThreshold(t *testing.T) {
	s := New()
	s.AddLivenessCheck("flaky", time.Second, failing("temporary"))

	// One short of the threshold: flap damping keeps it healthy.
	drive(s.liveness[0], failureThreshold-1)

	code, _ := getStatus(t, s.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyEndpoint_ReadyAndPassing(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, passing())
	s.SetReady(true)

	code, body := getStatus(t, s.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestReadyEndpoint_GateClosed(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, passing())
	// SetReady(true) never called; the manual gate starts closed.

	code, body := getStatus(t, s.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Contains(t, body.Checks, "_readiness")
}

func TestReadyEndpoint_DrainOnShutdown(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, passing())
	s.SetReady(true)

	code, _ := getStatus(t, s.ReadyEndpoint, "/readyz")
	require.Equal(t, http.StatusOK, code)

	s.SetReady(false)

	code, _ = getStatus(t, s.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneProbeFailing(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, passing())
	s.AddReadinessCheck("smtp", time.Second, failing("dial timeout"))
	s.SetReady(true)

	drive(s.readiness[1], failureThreshold)

	code, body := getStatus(t, s.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "smtp")
	assert.NotContains(t, body.Checks, "postgres")
}

func TestIsReady(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, passing())

	assert.False(t, s.IsReady(), "not ready before SetReady")

	s.SetReady(true)
	assert.True(t, s.IsReady())

	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestStopIsIdempotent(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, passing())

	s.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	s.Stop()
	s.Stop()
}

func TestEndpoints_NoProbesRegistered(t *testing.T) {
	s := New()
	s.SetReady(true)

	code, _ := getStatus(t, s.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = getStatus(t, s.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestProbeRecovery(t *testing.T) {
	down := true
	s := New()
	s.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	p := s.liveness[0]

	drive(p, failureThreshold)
	assert.False(t, p.healthy.Load())

	// One pass is enough to recover (successThreshold = 1).
	down = false
	drive(p, successThreshold)
	assert.True(t, p.healthy.Load())
}

func TestProbeFailureMessage(t *testing.T) {
	s := New()
	s.AddLivenessCheck("postgres", time.Second, failing("timeout"))
	p := s.liveness[0]

	assert.Empty(t, p.failure(), "healthy probe reports no failure")

	drive(p, failureThreshold)
	assert.Equal(t, "timeout", p.failure())
}

func TestConcurrentAccess(t *testing.T) {
	// No races between the supervisor and handler goroutines.
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, failing("err"))
	s.AddReadinessCheck("postgres", time.Second, passing())
	s.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.IsReady()
				getStatus(t, s.LiveEndpoint, "/livez")
				getStatus(t, s.ReadyEndpoint, "/readyz")
			}
		}()
	}
	wg.Wait()
	s.Stop()
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck(pingFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck(pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	err := down(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
