// Package conf loads process configuration: listen address, database, encryption
// key, cache backend, job and alerting timing. Runtime business settings (sync
// times, thresholds, AppFolio credentials) live in the settings store instead.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ledgerline/propops/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. PROPOPS_DATABASE_DRIVER.
const EnvPrefix = "PROPOPS"

// Settings is the full process configuration.
type Settings struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Jobs      JobsConfig      `mapstructure:"jobs" yaml:"jobs"`
	Alerting  AlertingConfig  `mapstructure:"alerting" yaml:"alerting"`
	Utilities UtilitiesConfig `mapstructure:"utilities" yaml:"utilities"`
	Sentry    SentryConfig    `mapstructure:"sentry" yaml:"sentry"`
}

type ServerConfig struct {
	Listen       string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins  []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit    float64  `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second per client, 0 disables
	ReadTimeout  Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DatabaseConfig selects the gorm dialect. Path is used by sqlite, DSN by mysql
// and postgres.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	Path         string `mapstructure:"path" yaml:"path"`
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	Debug        bool   `mapstructure:"debug" yaml:"debug"`
}

type SecurityConfig struct {
	// EncryptionKey seeds the key used for encrypted settings. Changing it makes
	// previously stored secrets unreadable.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
}

type CacheConfig struct {
	Backend  string   `mapstructure:"backend" yaml:"backend"` // "memory" or "redis"
	TTL      Duration `mapstructure:"ttl" yaml:"ttl"`
	RedisURL string   `mapstructure:"redis_url" yaml:"redis_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

type JobsConfig struct {
	QueueSize int      `mapstructure:"queue_size" yaml:"queue_size"`
	Timeout   Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AlertingConfig struct {
	EvaluationInterval   Duration `mapstructure:"evaluation_interval" yaml:"evaluation_interval"`
	HistoryRetentionDays int      `mapstructure:"history_retention_days" yaml:"history_retention_days"`
	// NotifyURL is a shoutrrr service URL template; "{recipient}" is replaced
	// by each rule recipient.
	NotifyURL string `mapstructure:"notify_url" yaml:"notify_url"`
}

type UtilitiesConfig struct {
	SuggestionWindowDays int `mapstructure:"suggestion_window_days" yaml:"suggestion_window_days"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn" yaml:"dsn"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "propops.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.debug", false)

	v.SetDefault("security.encryption_key", "")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("jobs.queue_size", 16)
	v.SetDefault("jobs.timeout", "30m")

	v.SetDefault("alerting.evaluation_interval", "5m")
	v.SetDefault("alerting.history_retention_days", 90)
	v.SetDefault("alerting.notify_url", "")

	v.SetDefault("utilities.suggestion_window_days", 90)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Load reads configuration from path (optional, YAML) and PROPOPS_* env vars.
// An empty path searches ./propops.yaml and /etc/propops/propops.yaml.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("propops")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/propops")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (s *Settings) Validate() error {
	switch s.Database.Driver {
	case "sqlite":
		if s.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "mysql", "postgres":
		if s.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for %s", s.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", s.Database.Driver)
	}
	switch s.Cache.Backend {
	case "memory":
	case "redis":
		if s.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache.backend %q", s.Cache.Backend)
	}
	if s.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}
	if s.Jobs.Timeout.Std() <= 0 {
		s.Jobs.Timeout = Duration(30 * time.Minute)
	}
	return nil
}
