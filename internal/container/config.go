// Package container provides dependency injection and lifecycle management
// for the expense audit engine.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/expense-audit/internal/application/service"
)

// Config holds all configuration for the Container.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Engine configuration
	Engine EngineConfig

	// Worker configuration
	Worker WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// EngineConfig holds the rule engine settings.
type EngineConfig struct {
	PaidExternalStatuses []string
	PersonalKeywords     []string
	AcademicKeywords     []string
	BatchSize            int
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// Interval between reconcile passes; zero disables the worker
	Interval time.Duration

	// Timeout bounds a single pass
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/expense_audit.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
		},
		Engine: EngineConfig{
			BatchSize: service.DefaultBatchSize,
		},
		Worker: WorkerConfig{
			Interval: 5 * time.Minute,
			Timeout:  2 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Engine.BatchSize < 0 {
		return fmt.Errorf("engine.batch_size must not be negative")
	}
	if c.Worker.Interval < 0 {
		return fmt.Errorf("worker.interval must not be negative")
	}
	return nil
}

// engineOptions maps the engine settings onto service options
func (c *EngineConfig) engineOptions() service.EngineOptions {
	return service.EngineOptions{
		PaidExternalStatuses: c.PaidExternalStatuses,
		PersonalKeywords:     c.PersonalKeywords,
		AcademicKeywords:     c.AcademicKeywords,
		BatchSize:            c.BatchSize,
	}
}
