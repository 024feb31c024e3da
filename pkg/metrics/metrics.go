package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/bootonce/pkg/errors"
	"github.com/arthur-debert/bootonce/pkg/logging"
	"github.com/arthur-debert/bootonce/pkg/types"
)

const namespace = "bootonce"

// Result label values for init runs
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the startup collectors. It satisfies guard.Observer.
type Metrics struct {
	registry *prometheus.Registry
	logger   zerolog.Logger

	TriggersTotal    *prometheus.CounterVec
	SuppressedTotal  *prometheus.CounterVec
	InitRunsTotal    *prometheus.CounterVec
	InitDurationSecs *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		logger:   logging.GetLogger("metrics"),

		// Labels: kind (auth_state, ready, manual, timer)
		TriggersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Trigger events accepted by the dispatcher",
		}, []string{"kind"}),

		// Labels: guard
		SuppressedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_suppressed_total",
			Help:      "Init requests that arrived after the first and were skipped",
		}, []string{"guard"}),

		// Labels: guard, result (success, failure)
		InitRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "init_runs_total",
			Help:      "Startup procedure executions",
		}, []string{"guard", "result"}),

		// Labels: guard
		InitDurationSecs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "init_duration_seconds",
			Help:      "Startup procedure duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"guard"}),
	}
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTrigger counts an event accepted by the dispatcher
func (m *Metrics) ObserveTrigger(ev types.TriggerEvent) {
	m.TriggersTotal.WithLabelValues(string(ev.Kind)).Inc()
}

// TriggerObserved implements guard.Observer
func (m *Metrics) TriggerObserved(guard string, _ types.TriggerEvent, suppressed bool) {
	if suppressed {
		m.SuppressedTotal.WithLabelValues(guard).Inc()
	}
}

// InitFinished implements guard.Observer
func (m *Metrics) InitFinished(guard string, elapsed time.Duration, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.InitRunsTotal.WithLabelValues(guard, result).Inc()
	m.InitDurationSecs.WithLabelValues(guard).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "listen on %s", addr).WithDetail("addr", addr)
	}
	return m.serve(ctx, ln)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	m.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	select {
	case err := <-errCh:
		return errors.Wrap(err, errors.ErrInternal, "metrics server stopped")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "shutdown metrics server")
	}
	<-errCh
	return nil
}
