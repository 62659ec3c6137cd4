package service

import (
	"context"
	"log/slog"

	"github.com/angeloszaimis/api-gateway/internal/httpserver"
)

// Run serves resource on addr until ctx is done.
func Run(ctx context.Context, resource Resource, addr string, logger *slog.Logger) error {
	h := NewHandler(resource, NewStore(), logger)

	srv, err := httpserver.New(addr, h.Router())
	if err != nil {
		return err
	}

	logger.Info("Service listening",
		slog.String("service", resource.Plural),
		slog.String("address", addr))

	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("Service stopped", slog.String("service", resource.Plural))
	return nil
}
