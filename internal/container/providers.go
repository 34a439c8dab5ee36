package container

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/expense-audit/internal/application/dispatcher"
	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/application/service"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-audit/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-audit/internal/infrastructure/worker"
	"github.com/garyjia/expense-audit/migrations"
	"github.com/garyjia/expense-audit/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies pending migrations,
// from MigrationsDir when set or the embedded set otherwise.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrationsFromDir(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrations(migrations.FS)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*repository.Repositories, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return repository.NewRepositories(sqlDB, logger), nil
}

// ServiceRepositories narrows the SQLite bundle to the engine's ports.
func ServiceRepositories(repos *repository.Repositories) service.Repositories {
	return service.Repositories{
		Reimbursements: repos.Reimbursements,
		WorkOrders:     repos.WorkOrders,
		ExpenseLines:   repos.ExpenseLines,
		Selections:     repos.Selections,
		Catalog:        repos.Catalog,
		StatusChanges:  repos.StatusChanges,
		StatusLog:      repos.StatusLog,
	}
}

// ProvideDispatcher creates the synchronous event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(NewLoggerAdapter(logger.Named("dispatcher")))), nil
}

// EngineDeps holds dependencies for creating the engine.
type EngineDeps struct {
	Repos      service.Repositories
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Config     *EngineConfig
	Clock      port.Clock
	Logger     *zap.Logger
}

// ProvideEngine creates the rule engine and registers its cascade handlers.
func ProvideEngine(deps *EngineDeps) (*service.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("engine dependencies are required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("engine config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := deps.Config.engineOptions()
	opts.Clock = deps.Clock

	return service.NewEngine(deps.Repos, deps.TxManager, deps.Dispatcher, opts,
		NewLoggerAdapter(deps.Logger.Named("engine")))
}

// ProvideWorkers creates the worker manager. A zero interval registers no workers.
func ProvideWorkers(syncer worker.Syncer, cfg *WorkerConfig, logger *zap.Logger) (*worker.WorkerManager, *worker.ReconcileWorker, error) {
	if syncer == nil {
		return nil, nil, fmt.Errorf("syncer is required")
	}
	if cfg == nil {
		return nil, nil, fmt.Errorf("worker config is required")
	}
	if logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	reconciler := worker.NewReconcileWorker(worker.ReconcileWorkerConfig{
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
	}, syncer, logger.Named("reconcile_worker"))

	if cfg.Interval > 0 {
		manager.Register(reconciler)
	}
	return manager, reconciler, nil
}
