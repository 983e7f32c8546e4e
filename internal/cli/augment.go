package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/scttfrdmn/agenkit/huddle-go/adapter/llm"
	"github.com/scttfrdmn/agenkit/huddle-go/agents"
	"github.com/scttfrdmn/agenkit/huddle-go/budget"
	"github.com/scttfrdmn/agenkit/huddle-go/cache"
	"github.com/scttfrdmn/agenkit/huddle-go/config"
	"github.com/scttfrdmn/agenkit/huddle-go/credentials"
	"github.com/scttfrdmn/agenkit/huddle-go/dataset"
	"github.com/scttfrdmn/agenkit/huddle-go/driver"
	"github.com/scttfrdmn/agenkit/huddle-go/middleware"
	"github.com/scttfrdmn/agenkit/huddle-go/observability"
	"github.com/scttfrdmn/agenkit/huddle-go/patterns"
)

const serviceName = "huddle"

func newAugmentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "augment",
		Short: "Analyze reservations and write briefings into the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.augment(ctx, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVarP(&a.flags.Workers, "workers", "w", a.flags.Workers, "reservations analyzed at once")
	f.BoolVar(&a.flags.UpcomingOnly, "upcoming-only", a.flags.UpcomingOnly, "skip reservations dated before today")
	f.IntVar(&a.flags.MaxAttempts, "max-attempts", a.flags.MaxAttempts, "attempts per model call")
	f.DurationVar(&a.flags.BaseDelay, "base-delay", a.flags.BaseDelay, "retry backoff base")
	f.DurationVar(&a.flags.MaxDelay, "max-delay", a.flags.MaxDelay, "retry backoff cap")
	f.Float64Var(&a.flags.RateLimit, "rate-limit", a.flags.RateLimit, "model requests per second across all workers (0 disables)")
	f.IntVar(&a.flags.CacheSize, "cache-size", a.flags.CacheSize, "in-memory response cache entries (0 disables)")
	f.DurationVar(&a.flags.CacheTTL, "cache-ttl", a.flags.CacheTTL, "response cache entry lifetime")
	f.StringVar(&a.flags.RedisURL, "redis-url", a.flags.RedisURL, "shared Redis response cache")
	f.StringVar(&a.flags.MetricsAddr, "metrics-addr", a.flags.MetricsAddr, "serve Prometheus metrics on this address")
	f.StringVar(&a.flags.OTLPEndpoint, "otlp-endpoint", a.flags.OTLPEndpoint, "OTLP gRPC endpoint for spans")
	f.BoolVar(&a.flags.TraceConsole, "trace-console", a.flags.TraceConsole, "print spans to stderr")
	return cmd
}

// augment runs the briefing pipeline over the input dataset.
func (a *app) augment(ctx context.Context, out io.Writer) error {
	cfg, logger := a.cfg, a.logger

	// Credentials come first so a misconfigured run does no work.
	pool, err := credentials.FromEnv(nil)
	if err != nil {
		return err
	}
	logger.Info("credential pool ready", "count", pool.Len(), "credentials", pool.Names())

	ds, err := dataset.Load(cfg.Input)
	if err != nil {
		return err
	}

	var console io.Writer
	if cfg.TraceConsole {
		console = os.Stderr
	}
	tp, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, console)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	registry := middleware.NewRegistry()
	if cfg.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(ctx, cfg.MetricsAddr, registry)
		if err != nil {
			return err
		}
		defer stopMetrics()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	respCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	if respCache != nil {
		defer respCache.Close()
	}

	var clientOpts []llm.OpenAIOption
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		if limiter, err = middleware.NewRateLimiter(cfg.RateLimit, 0); err != nil {
			return err
		}
		logger.Info("rate limiting model requests", "rate", cfg.RateLimit, "burst", limiter.Burst())
	}
	factory := func(c credentials.Credential) llm.LLM {
		return middleware.NewCachingLLM(llm.NewOpenAILLM(c.Key, agents.Model, clientOpts...), respCache, logger)
	}
	caller := middleware.NewResilientCaller(pool, factory, registry,
		middleware.WithPolicy(retryPolicy(cfg)),
		middleware.WithLogger(logger),
		middleware.WithRateLimiter(limiter),
	)

	specialists := observability.TraceAnalyzers(
		agents.Specialists(caller, agents.WithLogger(logger)),
		tp.Tracer("huddle/agents"),
	)
	fanOut, err := patterns.NewFanOut(specialists, patterns.WithFanOutLogger(logger))
	if err != nil {
		return err
	}
	pipeline, err := patterns.NewPipeline(fanOut, agents.NewCoordinator(caller, agents.WithLogger(logger)))
	if err != nil {
		return err
	}

	opts := []driver.Option{
		driver.WithWorkers(cfg.Workers),
		driver.WithLogger(logger),
		driver.WithTracer(tp.Tracer("huddle/driver")),
		driver.WithRegistry(registry),
	}
	if cfg.UpcomingOnly {
		opts = append(opts, driver.WithPolicy(driver.UpcomingOnly))
	}

	report, runErr := driver.New(pipeline, opts...).Run(ctx, ds)
	if report == nil {
		return runErr
	}
	if limiter != nil {
		logger.Info("rate limiter stats", "allowed", limiter.Allowed(), "waited", limiter.Waited())
	}
	if lru, ok := respCache.(*cache.LRU); ok {
		st := lru.Stats()
		logger.Info("response cache stats", "hits", st.Hits, "misses", st.Misses,
			"evictions", st.Evictions, "size", st.Size, "hit_rate", st.HitRate())
	}

	if err := dataset.Save(cfg.Output, ds); err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintf(out, "Augmented dataset saved to %s\n", cfg.Output)

	observability.WriteSummary(out, report, budget.NewModelPricing(logger), agents.Model)
	return runErr
}

func retryPolicy(cfg config.Config) middleware.RetryPolicy {
	p := middleware.DefaultRetryPolicy()
	p.MaxAttempts = cfg.MaxAttempts
	p.BaseDelay = cfg.BaseDelay
	p.MaxDelay = cfg.MaxDelay
	p.AttemptTimeout = cfg.AttemptTimeout
	return p
}

// openCache returns the configured response cache, or nil when caching is
// off. Redis takes precedence over the in-memory cache.
func openCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch {
	case cfg.RedisURL != "":
		r, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL, "")
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			_ = r.Close()
			return nil, err
		}
		return r, nil
	case cfg.CacheSize > 0:
		lru, err := cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, err
		}
		return lru, nil
	default:
		return nil, nil
	}
}

// serveMetrics exposes registry on addr until the returned stop is called.
func serveMetrics(ctx context.Context, addr string, registry *middleware.Registry) (func(), error) {
	promReg := prometheus.NewRegistry()
	mp, err := observability.InitMetrics(ctx, serviceName, promReg)
	if err != nil {
		return nil, err
	}
	if _, err := observability.RegisterRegistry(mp.Meter("huddle"), registry); err != nil {
		return nil, err
	}

	srvCtx, cancel := context.WithCancel(ctx)
	if _, err := observability.ServeMetrics(srvCtx, addr, promReg); err != nil {
		cancel()
		return nil, err
	}
	return func() {
		cancel()
		_ = mp.Shutdown(context.Background())
	}, nil
}
