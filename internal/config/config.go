// Package config provides configuration management for the service. Values
// come from a YAML file, environment variables and defaults, in that order of
// precedence, all through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/channelscout/internal/api"
	"github.com/jonesrussell/channelscout/internal/collector"
	"github.com/jonesrussell/channelscout/internal/enrich"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
	"github.com/jonesrussell/channelscout/internal/storage"
)

// SourceConfig identifies the external channel source.
type SourceConfig struct {
	// BaseURL is the root of the source site, without a trailing slash.
	BaseURL string `mapstructure:"base_url"`
}

// JobConfig holds orchestrator-level settings.
type JobConfig struct {
	// DrainTimeout bounds the enrichment tail after collection finishes.
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`

	// RetentionWindow is how long terminal jobs stay queryable in memory.
	RetentionWindow time.Duration `mapstructure:"retention_window"`
}

// SessionConfig selects and configures the session backend.
type SessionConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`

	// TTL is how long an idle session survives.
	TTL time.Duration `mapstructure:"ttl"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// Config is the application configuration.
type Config struct {
	Logger        logger.Config    `mapstructure:"logger"`
	Server        api.ServerConfig `mapstructure:"server"`
	Source        SourceConfig     `mapstructure:"source"`
	Fetch         fetch.Config     `mapstructure:"fetch"`
	Collector     collector.Config `mapstructure:"collector"`
	Enrich        enrich.Config    `mapstructure:"enrich"`
	Job           JobConfig        `mapstructure:"job"`
	Session       SessionConfig    `mapstructure:"session"`
	Elasticsearch storage.Config   `mapstructure:"elasticsearch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return errors.New("source.base_url is required")
	}
	if c.Session.Backend != "memory" && c.Session.Backend != "redis" {
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && c.Session.RedisAddr == "" {
		return errors.New("session.redis_addr is required for the redis backend")
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Collector.Validate(); err != nil {
		return fmt.Errorf("collector: %w", err)
	}
	if err := c.Enrich.Validate(); err != nil {
		return fmt.Errorf("enrich: %w", err)
	}
	return nil
}

// Load reads configuration from the given file (optional), the environment
// and defaults.
func Load(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CHANNELSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// The config file is optional; defaults and environment variables
		// carry a missing file, but a malformed one is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && cfgFile != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every default with viper.
func setDefaults() {
	viper.SetDefault("logger.level", string(logger.DefaultLevel))
	viper.SetDefault("logger.development", false)
	viper.SetDefault("logger.encoding", logger.DefaultEncoding)

	server := api.DefaultServerConfig()
	viper.SetDefault("server.address", server.Address)
	viper.SetDefault("server.read_timeout", server.ReadTimeout)
	viper.SetDefault("server.write_timeout", server.WriteTimeout)
	viper.SetDefault("server.idle_timeout", server.IdleTimeout)

	viper.SetDefault("source.base_url", "https://www.youtube.com")

	viper.SetDefault("fetch.request_timeout", 30*time.Second)
	viper.SetDefault("fetch.max_body_size", 10*1024*1024)

	coll := collector.DefaultConfig()
	viper.SetDefault("collector.max_fruitless_fetches", coll.MaxFruitlessFetches)
	viper.SetDefault("collector.fetch_retries", coll.FetchRetries)
	viper.SetDefault("collector.fetch_retry_delay", coll.FetchRetryDelay)
	viper.SetDefault("collector.max_pages", coll.MaxPages)

	pool := enrich.DefaultConfig()
	viper.SetDefault("enrich.pool_size", pool.PoolSize)
	viper.SetDefault("enrich.min_spacing", pool.MinSpacing)
	viper.SetDefault("enrich.spacing_jitter", pool.SpacingJitter)
	viper.SetDefault("enrich.fetch_timeout", pool.FetchTimeout)
	viper.SetDefault("enrich.retries", pool.Retries)
	viper.SetDefault("enrich.retry_delay", pool.RetryDelay)
	viper.SetDefault("enrich.feed_poll_interval", pool.FeedPollInterval)

	viper.SetDefault("job.drain_timeout", 2*time.Minute)
	viper.SetDefault("job.retention_window", 30*time.Minute)

	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.ttl", 24*time.Hour)
	viper.SetDefault("session.redis_addr", "")
	viper.SetDefault("session.redis_db", 0)

	es := storage.DefaultConfig()
	viper.SetDefault("elasticsearch.enabled", es.Enabled)
	viper.SetDefault("elasticsearch.addresses", es.Addresses)
	viper.SetDefault("elasticsearch.index_name", es.IndexName)
}
