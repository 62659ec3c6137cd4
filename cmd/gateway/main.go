package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/api-gateway/config"
	"github.com/angeloszaimis/api-gateway/internal/aggregator"
	"github.com/angeloszaimis/api-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/api-gateway/internal/dependency"
	"github.com/angeloszaimis/api-gateway/internal/events"
	"github.com/angeloszaimis/api-gateway/internal/handler"
	"github.com/angeloszaimis/api-gateway/internal/healthcheck"
	"github.com/angeloszaimis/api-gateway/internal/httpserver"
	"github.com/angeloszaimis/api-gateway/internal/invoker"
	"github.com/angeloszaimis/api-gateway/internal/metrics"
	"github.com/angeloszaimis/api-gateway/pkg/logger"
)

const (
	usersDependency  = "users"
	ordersDependency = "orders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Gateway stopped with error", slog.Any("err", err))
		cancel()
		os.Exit(1)
	}

	log.Info("Gateway stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	breakerCfg, err := cfg.Breaker.CircuitBreaker()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(1000, log)
	listeners := []circuitbreaker.StateChangeListener{collector}

	if cfg.Events.NATSURL != "" {
		publisher, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject, log)
		if err != nil {
			log.Warn("Circuit events disabled", slog.Any("err", err))
		} else {
			defer publisher.Close()
			listeners = append(listeners, publisher)
		}
	}

	deps, registry, err := initializeDependencies(cfg, breakerCfg, log, listeners...)
	if err != nil {
		return err
	}

	agg, err := aggregator.New(registry, usersDependency, ordersDependency, log)
	if err != nil {
		return err
	}

	gw := handler.NewGateway(log, registry, deps, agg, collector)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(gw, collector, log),
		httpserver.WithTimeouts(0, writeTimeout(breakerCfg)))
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	collector.Start(gctx)

	interval := cfg.HealthCheckInterval()
	for _, dep := range deps {
		g.Go(func() error {
			healthcheck.HealthCheck(gctx, dep, interval, log, func(name string, healthy bool) {
				collector.Emit(metrics.MetricEvent{
					Type:       metrics.EventHealthChanged,
					Dependency: name,
					Healthy:    healthy,
				})
			})
			return nil
		})
	}

	g.Go(func() error {
		log.Info("API Gateway listening",
			slog.String("address", srv.Addr()),
			slog.Any("dependencies", registry.Names()))
		return srv.Run(gctx)
	})

	return g.Wait()
}

// initializeDependencies builds one dependency, invoker and breaker per
// configured entry. Any error is fatal: a gateway with a missing breaker
// would fail requests at random.
func initializeDependencies(
	cfg *config.Config,
	breakerCfg circuitbreaker.Config,
	log *slog.Logger,
	listeners ...circuitbreaker.StateChangeListener,
) ([]*dependency.Dependency, *circuitbreaker.Registry, error) {
	registry := circuitbreaker.NewRegistry(log)
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	opts := make([]circuitbreaker.Option, 0, len(listeners))
	for _, l := range listeners {
		opts = append(opts, circuitbreaker.WithListener(l))
	}

	var deps []*dependency.Dependency

	for _, dc := range cfg.Dependencies {
		u, err := url.Parse(dc.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: dependency %s: %v", circuitbreaker.ErrConfig, dc.Name, err)
		}

		dep := dependency.New(dc.Name, u,
			dependency.WithHealthPath(dc.HealthPath),
			dependency.WithNotFoundAsData(dc.ExpectNotFound()))

		if _, err := registry.Register(dc.Name, invoker.NewHTTPInvoker(dep, client), breakerCfg, opts...); err != nil {
			return nil, nil, err
		}

		deps = append(deps, dep)
	}

	return deps, registry, nil
}

func writeTimeout(cfg circuitbreaker.Config) time.Duration {
	return max(15*time.Second, 2*cfg.RequestTimeout)
}
