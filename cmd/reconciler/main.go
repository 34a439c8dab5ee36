package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/expense-audit/internal/config"
	"github.com/garyjia/expense-audit/internal/container"
	"github.com/garyjia/expense-audit/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config; empty uses defaults and environment")
	once := flag.Bool("once", false, "run a single reconcile pass and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "expense-audit-reconciler",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *once, logger); err != nil {
		logger.Error("Reconciler exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, once bool, logger *zap.Logger) error {
	logger.Info("Starting expense audit reconciler",
		zap.String("database", cfg.Database.Path),
		zap.Bool("once", once),
		zap.Duration("interval", cfg.Worker.Interval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	if once {
		result, err := c.ReconcileWorker().RunOnce(ctx)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	if err := c.StartWorkers(); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	logger.Info("Shutting down reconciler")
	return nil
}
