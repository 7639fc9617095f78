package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ddx-ranking-engine/internal/app"
	"github.com/ddx-ranking-engine/internal/config"
	"github.com/ddx-ranking-engine/internal/mcp"
)

func main() {
	// stdout carries the MCP stream
	logrus.SetOutput(os.Stderr)

	if err := run(); err != nil {
		logrus.WithError(err).Error("MCP server failed")
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

	server, err := mcp.NewServer(application.Engine, application.Audit, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("version", mcp.ServerVersion).Info("Starting MCP server on stdio")
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("MCP server stopped")
	return nil
}
