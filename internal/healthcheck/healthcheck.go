package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/api-gateway/internal/dependency"
)

// Notifier is told about every health flip.
type Notifier func(dependency string, healthy bool)

// HealthCheck checks dep once right away and then every interval until ctx
// is done. Any answer other than 200 from the health path marks it unhealthy.
func HealthCheck(
	ctx context.Context,
	dep *dependency.Dependency,
	interval time.Duration,
	logger *slog.Logger,
	notify Notifier,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check(ctx, client, dep, logger, notify)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("dependency", dep.Name()))
			return

		case <-ticker.C:
			check(ctx, client, dep, logger, notify)
		}
	}
}

func check(ctx context.Context, client *http.Client, dep *dependency.Dependency, logger *slog.Logger, notify Notifier) {
	healthy := probe(ctx, client, dep)
	if ctx.Err() != nil {
		return
	}

	if !dep.SetHealthy(healthy) {
		return
	}

	if healthy {
		logger.Info("Dependency is back up",
			slog.String("dependency", dep.Name()),
			slog.String("url", dep.HealthURL().String()))
	} else {
		logger.Warn("Dependency is down",
			slog.String("dependency", dep.Name()),
			slog.String("url", dep.HealthURL().String()))
	}

	if notify != nil {
		notify(dep.Name(), healthy)
	}
}

func probe(ctx context.Context, client *http.Client, dep *dependency.Dependency) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.HealthURL().String(), nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode == http.StatusOK
}
