package relay

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records Prometheus metrics for requests passing through a chain.
type Metrics struct {
	// RequestsTotal counts requests by status class ("2xx", "4xx", ...) or "error".
	RequestsTotal *prometheus.CounterVec
	// RequestDuration records time spent in the rest of the chain.
	RequestDuration prometheus.Histogram
	// StepsTotal counts middleware invocations made by instrumented dispatchers.
	StepsTotal prometheus.Counter
}

// NewMetrics creates the collectors under namespace and registers them
// with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Requests dispatched, by response status class.",
			},
			[]string{"status"},
		),
		RequestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time spent dispatching a request.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		StepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "middleware_steps_total",
				Help:      "Middleware invocations made by instrumented dispatchers.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.StepsTotal)
	}
	return m
}

// Middleware returns middleware observing the rest of the chain.
func (m *Metrics) Middleware() Middleware {
	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		start := time.Now()
		resp, err := next.Handle(ctx, r)
		m.RequestDuration.Observe(time.Since(start).Seconds())

		status := "error"
		if err == nil && resp != nil {
			status = strconv.Itoa(StatusOf(resp)/100) + "xx"
		}
		m.RequestsTotal.WithLabelValues(status).Inc()
		return resp, err
	})
}

// Instrument makes d count every chain step in StepsTotal. A step hook
// already registered on d keeps running after the count.
func (m *Metrics) Instrument(d *Dispatcher) *Dispatcher {
	prev := d.onStep
	return d.OnStep(func(ctx context.Context, position int) {
		m.StepsTotal.Inc()
		if prev != nil {
			prev(ctx, position)
		}
	})
}
