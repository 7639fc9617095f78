package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/api"
	"github.com/ddx-ranking-engine/internal/app"
	"github.com/ddx-ranking-engine/internal/config"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Error("Server failed")
		os.Exit(1)
	}
}

func run() error {
	configManager, err := config.NewManager(os.Getenv(config.ConfigFileEnv))
	if err != nil {
		return err
	}
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := configManager.GetConfig()
	logger := app.NewLogger(cfg.Logging)

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ranking engine: %w", err)
	}
	defer application.Close()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting differential diagnosis ranking server")

	server := api.NewServer(configManager, application.Engine, application.Audit, logger)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
