package interceptor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rsocket/rsocket-engine/payload"
	"github.com/rsocket/rsocket-engine/rx"
)

// Outcomes of a request.
const (
	OutcomeComplete = "complete"
	OutcomeError    = "error"
	OutcomeCancel   = "cancel"
)

// Metrics collects request counters and latencies of each interaction model.
type Metrics struct {
	requests *prometheus.CounterVec
	inflight *prometheus.GaugeVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rsocket",
			Name:      "requests_total",
			Help:      "Total number of finished requests.",
		}, []string{"role", "model", "outcome"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rsocket",
			Name:      "requests_inflight",
			Help:      "Number of requests in progress.",
		}, []string{"role", "model"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rsocket",
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"role", "model"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.inflight, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register metrics failed")
		}
	}
	return m, nil
}

// Requests returns the counter of finished requests.
func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

// Inflight returns the gauge of requests in progress.
func (m *Metrics) Inflight() *prometheus.GaugeVec {
	return m.inflight
}

// Interceptor observes requests of a role, "requester" or "responder".
func (m *Metrics) Interceptor(role string) RSocketInterceptor {
	return Observe(func(ctx context.Context, req Request) (context.Context, payload.Payload, Finish, error) {
		model := modelName(req)
		start := time.Now()
		gauge := m.inflight.WithLabelValues(role, model)
		gauge.Inc()
		return ctx, nil, func(err error) {
			gauge.Dec()
			outcome := OutcomeComplete
			switch {
			case err == nil:
			case errors.Is(err, rx.ErrCancelled) || errors.Is(err, context.Canceled):
				outcome = OutcomeCancel
			default:
				outcome = OutcomeError
			}
			m.requests.WithLabelValues(role, model, outcome).Inc()
			m.latency.WithLabelValues(role, model).Observe(time.Since(start).Seconds())
		}, nil
	})
}
