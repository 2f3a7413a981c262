package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Events    EventsConfig    `mapstructure:"events"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	LogSQL   bool   `mapstructure:"log_sql"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulerConfig tunes the review engine.
type SchedulerConfig struct {
	DefaultMode     string        `mapstructure:"default_mode"`
	SecondsPerItem  int           `mapstructure:"seconds_per_item"`
	ConflictRetries int           `mapstructure:"conflict_retries"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	DashboardTTL    time.Duration `mapstructure:"dashboard_ttl"`
}

// EventsConfig tunes the post-commit event dispatcher.
type EventsConfig struct {
	Workers        int           `mapstructure:"workers"`
	Buffer         int           `mapstructure:"buffer"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
)

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	// --config sets the file explicitly; its extension picks the format.
	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName(".env")
		viper.SetConfigType("env")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("database.driver", DriverSQLite)
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "studyplan")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.log_sql", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	viper.SetDefault("scheduler.default_mode", "balanced")
	viper.SetDefault("scheduler.seconds_per_item", 30)
	viper.SetDefault("scheduler.conflict_retries", 3)
	viper.SetDefault("scheduler.read_timeout", 2*time.Second)
	viper.SetDefault("scheduler.dashboard_ttl", 30*time.Second)

	viper.SetDefault("events.workers", 2)
	viper.SetDefault("events.buffer", 256)
	viper.SetDefault("events.max_attempts", 5)
	viper.SetDefault("events.backoff", 200*time.Millisecond)
	viper.SetDefault("events.publish_timeout", 100*time.Millisecond)
}

// DatabaseDriver returns the normalized database/sql driver name.
func (c *Config) DatabaseDriver() (string, error) {
	driver := strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch driver {
	case "", DriverSQLite:
		return DriverSQLite, nil
	case "postgresql":
		return DriverPostgres, nil
	case DriverPostgres, DriverPgx, DriverSQLite3:
		return driver, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
}

// DatabaseURL returns the connection string for the configured driver.
// An explicit dsn wins; sqlite drivers fall back to a local file.
func (c *Config) DatabaseURL() (string, error) {
	driver, err := c.DatabaseDriver()
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(c.Database.DSN); dsn != "" {
		return dsn, nil
	}

	switch driver {
	case DriverSQLite, DriverSQLite3:
		name := c.Database.Name
		if name == "" {
			name = "studyplan"
		}
		return "file:" + name + ".db", nil
	default:
		if c.Database.Host == "" || c.Database.Name == "" {
			return "", errors.New("database host and name are required")
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Database.User, c.Database.Password),
			Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
			Path:     "/" + c.Database.Name,
			RawQuery: url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode(),
		}
		return u.String(), nil
	}
}
