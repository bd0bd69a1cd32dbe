// Package storage provides the Elasticsearch archive for terminal jobs.
package storage

import (
	"errors"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/channelscout/internal/logger"
)

// Config holds the Elasticsearch connection settings.
type Config struct {
	// Enabled turns the archive on. When false no client is created and
	// terminal jobs are simply dropped after the retention window.
	Enabled bool `mapstructure:"enabled"`

	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`

	// IndexName is the index terminal job snapshots are written to.
	IndexName string `mapstructure:"index_name"`
}

// DefaultConfig returns the archive defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Addresses: []string{"http://localhost:9200"},
		IndexName: "channelscout-jobs",
	}
}

// NewClient creates and pings an Elasticsearch client.
func NewClient(cfg Config, log logger.Interface) (*es.Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses are required")
	}

	clientConfig := es.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("ping elasticsearch: %s", res.String())
	}

	log.Debug("connected to elasticsearch", "addresses", cfg.Addresses)
	return client, nil
}
