package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-audit/internal/infrastructure/worker"
	"github.com/garyjia/expense-audit/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	clock  port.Clock

	// Infrastructure - Data
	db           *DatabaseBundle
	repositories *repository.Repositories

	// Application
	dispatcher dispatcher.Dispatcher
	engine     *service.Engine

	// Workers
	workers         *worker.WorkerManager
	reconcileWorker *worker.ReconcileWorker

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Option customises a Container
type Option func(*Container)

// WithClock overrides the engine clock
func WithClock(clock port.Clock) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components. Workers are created but only started
// by StartWorkers, so one-shot runs can share the same wiring.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Event dispatcher
// 3. Engine (registers the cascade handlers)
// 4. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Initialize dispatcher
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp

	// Step 3: Initialize engine
	engine, err := ProvideEngine(&EngineDeps{
		Repos:      ServiceRepositories(c.repositories),
		TxManager:  c.db.TransactionMgr,
		Dispatcher: c.dispatcher,
		Config:     &c.config.Engine,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	c.engine = engine
	c.logger.Info("Engine initialized")

	// Step 4: Initialize workers
	workers, reconcileWorker, err := ProvideWorkers(c.engine, &c.config.Worker, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.workers = workers
	c.reconcileWorker = reconcileWorker

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// StartWorkers starts the registered background workers.
func (c *Container) StartWorkers() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.workers.StartAll(c.ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	// Step 1: Stop workers (reverse of step 4)
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Step 2: Close dispatcher (reverse of step 2)
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database (reverse of step 1)
	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	switch {
	case c.db == nil:
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	default:
		if err := c.db.SqlDB.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	}

	// Check engine
	if c.engine != nil {
		status.Components["engine"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["engine"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	// Workers are optional; report them without failing the overall status
	if c.reconcileWorker != nil {
		stats := c.reconcileWorker.GetStats()
		status.Components["reconcile_worker"] = ComponentHealth{
			Healthy: stats.LastError == "",
			Message: fmt.Sprintf("running: %t, passes: %d", stats.IsRunning, stats.Passes),
		}
	}

	return status
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle

	repos, err := ProvideRepositories(bundle.SqlDB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) closeDatabase() {
	if c.db == nil {
		return
	}
	if err := c.db.DB.Close(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.db = nil
}

// Getters for accessing container components

// DB returns the raw database wrapper.
func (c *Container) DB() *database.DB {
	return c.db.DB
}

// TransactionManager returns the transaction manager.
func (c *Container) TransactionManager() port.TransactionManager {
	return c.db.TransactionMgr
}

// Repositories returns all repositories.
func (c *Container) Repositories() *repository.Repositories {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the rule engine.
func (c *Container) Engine() *service.Engine {
	return c.engine
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// ReconcileWorker returns the reconcile worker, registered or not.
func (c *Container) ReconcileWorker() *worker.ReconcileWorker {
	return c.reconcileWorker
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
