package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/scttfrdmn/agenkit/huddle-go/middleware"
)

// InitMetrics creates a meter provider that exports through Prometheus into
// reg.
func InitMetrics(ctx context.Context, serviceName string, reg *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	), nil
}

// RegisterRegistry publishes the call metrics of r as observable
// instruments on meter. Values are read from a snapshot at collection
// time, so r stays the single source of truth.
func RegisterRegistry(meter metric.Meter, r *middleware.Registry) (metric.Registration, error) {
	calls, err := meter.Int64ObservableCounter("huddle.llm.calls",
		metric.WithDescription("Successful model calls"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create calls counter: %w", err)
	}
	failures, err := meter.Int64ObservableCounter("huddle.llm.errors",
		metric.WithDescription("Failed model call attempts"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	retries, err := meter.Int64ObservableCounter("huddle.llm.retries",
		metric.WithDescription("Retries after a retryable failure"),
		metric.WithUnit("{retry}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	cacheHits, err := meter.Int64ObservableCounter("huddle.llm.cache_hits",
		metric.WithDescription("Calls served from the response cache"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}
	tokens, err := meter.Int64ObservableCounter("huddle.llm.tokens",
		metric.WithDescription("Tokens used, by kind"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens counter: %w", err)
	}
	latency, err := meter.Float64ObservableGauge("huddle.llm.latency",
		metric.WithDescription("Model call latency, by statistic"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency gauge: %w", err)
	}

	var (
		prompt     = metric.WithAttributes(attrKind.String("prompt"))
		completion = metric.WithAttributes(attrKind.String("completion"))
		statMin    = metric.WithAttributes(attrStat.String("min"))
		statAvg    = metric.WithAttributes(attrStat.String("avg"))
		statMax    = metric.WithAttributes(attrStat.String("max"))
	)

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := r.Snapshot()
		o.ObserveInt64(calls, s.Calls)
		o.ObserveInt64(failures, s.Errors)
		o.ObserveInt64(retries, s.Retries)
		o.ObserveInt64(cacheHits, s.CacheHits)
		o.ObserveInt64(tokens, s.PromptTokens, prompt)
		o.ObserveInt64(tokens, s.CompletionTokens, completion)
		if s.Calls > 0 {
			o.ObserveFloat64(latency, s.MinLatency.Seconds(), statMin)
			o.ObserveFloat64(latency, s.AverageLatency().Seconds(), statAvg)
			o.ObserveFloat64(latency, s.MaxLatency.Seconds(), statMax)
		}
		return nil
	}, calls, failures, retries, cacheHits, tokens, latency)
}

// MetricsHandler serves reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ServeMetrics exposes /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return ln.Addr(), nil
}
