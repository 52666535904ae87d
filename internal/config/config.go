// Package config loads qshape settings from defaults, an optional
// qshape.yaml, QSHAPE_* environment variables, and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/qshape/internal/logging"
	"github.com/roach88/qshape/internal/querysql"
	"github.com/roach88/qshape/internal/store"
)

// EnvPrefix is prepended to every environment key: database.dsn is read
// from QSHAPE_DATABASE_DSN.
const EnvPrefix = "QSHAPE"

// Config holds all configuration for the application
type Config struct {
	Database        DatabaseConfig `mapstructure:"database"`
	Dialect         string         `mapstructure:"dialect"`
	Workers         int            `mapstructure:"workers"`
	ContinueOnError bool           `mapstructure:"continue_on_error"`
	Log             LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LogConfig selects the logger built by internal/logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	SeqURL string `mapstructure:"seq_url"`
}

// flagKeys maps flag names to config keys. Flags absent from the set
// passed to Load are skipped.
var flagKeys = map[string]string{
	"driver":            "database.driver",
	"dsn":               "database.dsn",
	"dialect":           "dialect",
	"workers":           "workers",
	"continue-on-error": "continue_on_error",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"seq-url":           "log.seq_url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("dialect", "")
	v.SetDefault("workers", 1)
	v.SetDefault("continue_on_error", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.seq_url", "")
}

// Load resolves the configuration. An explicit path must exist; with an
// empty path qshape.yaml is looked up in the working directory and a
// missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("qshape")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Dialect != "" {
		if _, err := querysql.ParseDialect(c.Dialect); err != nil {
			return fmt.Errorf("dialect: %w", err)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers: must be at least 1, got %d", c.Workers)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: invalid log format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// ResolvedDialect is the configured dialect, or the one the driver speaks
// when none is set.
func (c *Config) ResolvedDialect() (querysql.Dialect, error) {
	if c.Dialect != "" {
		return querysql.ParseDialect(c.Dialect)
	}
	return store.DialectFor(c.Database.Driver)
}

// LoggingOptions converts the log section for logging.New.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		SeqURL: c.Log.SeqURL,
	}
}
