package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-audit/internal/domain/rules"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// EngineConfig holds the rule engine settings
type EngineConfig struct {
	PaidExternalStatuses     []string `mapstructure:"paid_external_statuses"`
	PersonalDocumentKeywords []string `mapstructure:"personal_document_keywords"`
	AcademicDocumentKeywords []string `mapstructure:"academic_document_keywords"`
	BatchSize                int      `mapstructure:"batch_size"`
}

// WorkerConfig holds the reconcile worker settings
type WorkerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXPENSE_AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults; SQLite allows a single writer
	v.SetDefault("database.path", "data/expense_audit.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.migrations_dir", "")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Engine defaults
	v.SetDefault("engine.paid_external_statuses", rules.DefaultPaidExternalStatuses)
	v.SetDefault("engine.personal_document_keywords", rules.DefaultPersonalKeywords)
	v.SetDefault("engine.academic_document_keywords", rules.DefaultAcademicKeywords)
	v.SetDefault("engine.batch_size", 200)

	// Worker defaults
	v.SetDefault("worker.interval", 5*time.Minute)
	v.SetDefault("worker.timeout", 2*time.Minute)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.path", "EXPENSE_AUDIT_DB_PATH")
	_ = v.BindEnv("logger.level", "EXPENSE_AUDIT_LOG_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxOpenConns < 0 {
		return fmt.Errorf("database.max_open_conns must not be negative")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if len(c.Engine.PaidExternalStatuses) == 0 {
		return fmt.Errorf("engine.paid_external_statuses must not be empty")
	}
	if c.Engine.BatchSize <= 0 {
		return fmt.Errorf("engine.batch_size must be positive")
	}

	if c.Worker.Interval <= 0 {
		return fmt.Errorf("worker.interval must be positive")
	}

	return nil
}
