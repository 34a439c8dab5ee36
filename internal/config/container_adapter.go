package config

import (
	"github.com/garyjia/expense-audit/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Engine: container.EngineConfig{
			PaidExternalStatuses: append([]string{}, c.Engine.PaidExternalStatuses...),
			PersonalKeywords:     append([]string{}, c.Engine.PersonalDocumentKeywords...),
			AcademicKeywords:     append([]string{}, c.Engine.AcademicDocumentKeywords...),
			BatchSize:            c.Engine.BatchSize,
		},
		Worker: container.WorkerConfig{
			Interval: c.Worker.Interval,
			Timeout:  c.Worker.Timeout,
		},
	}
}
