package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/gf3d/gf3dserver/internal/api/middleware"

// Request outcomes recorded as the gf3d.outcome metric attribute.
// Rejected queries are usually answered with status 200, so the outcome is
// tracked separately from the status code.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "subset_failed"
	OutcomeError    = "error"
)

type outcomeKey struct{}

type outcome struct {
	mu    sync.Mutex
	value string
}

// SetOutcome records the outcome of the current request. The first call wins;
// it is a no-op outside the metrics middleware.
func SetOutcome(ctx context.Context, value string) {
	o, ok := ctx.Value(outcomeKey{}).(*outcome)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.value == "" {
		o.value = value
	}
}

func (o *outcome) resolve(status int) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case o.value != "":
		return o.value
	case status >= http.StatusInternalServerError:
		return OutcomeError
	case status >= http.StatusBadRequest:
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}

// Metrics holds the HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.total, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.size, err = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// Middleware records duration, count, in-flight requests and response size,
// tagged with method, route, status and outcome.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			method := attribute.String("http.request.method", r.Method)
			m.inFlight.Add(ctx, 1, metric.WithAttributes(method))
			defer m.inFlight.Add(ctx, -1, metric.WithAttributes(method))

			o := &outcome{}
			sw := newStatusWriter(w)
			r = r.WithContext(context.WithValue(ctx, outcomeKey{}, o))

			next.ServeHTTP(sw, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			attrs := metric.WithAttributes(
				method,
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", sw.statusCode),
				attribute.String("gf3d.outcome", o.resolve(sw.statusCode)),
			)

			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.total.Add(ctx, 1, attrs)
			m.size.Record(ctx, sw.written, attrs)
		})
	}
}
