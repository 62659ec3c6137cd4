package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/api-gateway/config"
	"github.com/angeloszaimis/api-gateway/internal/service"
	"github.com/angeloszaimis/api-gateway/pkg/logger"
)

func main() {
	cfg, err := config.LoadService("users", ":8001")
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, false, cfg.Server.Environment).
		With(slog.String("service", "users"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := service.Run(ctx, service.Users, cfg.Server.Address, log); err != nil {
		log.Error("Users service stopped with error", slog.Any("err", err))
		cancel()
		os.Exit(1)
	}
}
