package metrics

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/bootonce/pkg/guard"
	"github.com/arthur-debert/bootonce/pkg/types"
)

var _ guard.Observer = (*Metrics)(nil)

func TestObserveTrigger(t *testing.T) {
	m := New()
	m.ObserveTrigger(types.NewTriggerEvent(types.TriggerManual, "manual"))
	m.ObserveTrigger(types.NewTriggerEvent(types.TriggerManual, "manual"))
	m.ObserveTrigger(types.NewTriggerEvent(types.TriggerReady, "ready"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TriggersTotal.WithLabelValues("ready")))
}

func TestGuardObserver(t *testing.T) {
	m := New()
	g := guard.New("backend", func(context.Context, types.TriggerEvent) error { return nil },
		guard.WithObserver(m))

	for i := 0; i < 5; i++ {
		_, err := g.RequestInit(context.Background(), types.NewTriggerEvent(types.TriggerManual, "test"))
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InitRunsTotal.WithLabelValues("backend", ResultSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InitRunsTotal.WithLabelValues("backend", ResultFailure)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SuppressedTotal.WithLabelValues("backend")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.InitDurationSecs))
}

func TestInitFailureResult(t *testing.T) {
	m := New()
	m.InitFinished("backend", 10*time.Millisecond, stderrors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InitRunsTotal.WithLabelValues("backend", ResultFailure)))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveTrigger(types.NewTriggerEvent(types.TriggerAuthState, "auth"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `bootonce_triggers_total{kind="auth_state"} 1`)
}

func TestServeStopsOnCancel(t *testing.T) {
	m := New()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/metrics"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
