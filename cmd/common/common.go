// Package common wires the shared dependencies used by every command:
// configuration, logging and the fully assembled job orchestrator.
package common

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/channelscout/internal/collector"
	"github.com/jonesrussell/channelscout/internal/config"
	"github.com/jonesrussell/channelscout/internal/contact"
	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/enrich"
	"github.com/jonesrussell/channelscout/internal/extract"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/job"
	"github.com/jonesrussell/channelscout/internal/logger"
	"github.com/jonesrussell/channelscout/internal/session"
	"github.com/jonesrussell/channelscout/internal/storage"
)

// Deps holds the common dependencies for commands.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
}

// NewDeps loads configuration and builds the logger.
func NewDeps(cfgFile string, debug bool) (*Deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logger
	if debug {
		logCfg.Level = logger.DebugLevel
		logCfg.Development = true
	}

	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// BuildOrchestrator assembles the orchestrator from configuration. The
// returned cleanup releases the session backend and background maintenance.
func BuildOrchestrator(ctx context.Context, deps *Deps) (*job.Orchestrator, func(), error) {
	cfg := deps.Config

	fetcher, err := fetch.NewCollyFetcher(cfg.Fetch, deps.Logger.WithComponent("fetch"))
	if err != nil {
		return nil, nil, fmt.Errorf("create fetcher: %w", err)
	}

	sessions, closeSessions, err := buildSessionStore(cfg, deps.Logger)
	if err != nil {
		return nil, nil, err
	}

	archiver, err := buildArchiver(cfg, deps.Logger)
	if err != nil {
		closeSessions()
		return nil, nil, err
	}

	orchestrator, err := job.NewOrchestrator(ctx, job.Params{
		Config: job.Config{
			Collector:       cfg.Collector,
			Enrich:          cfg.Enrich,
			DrainTimeout:    cfg.Job.DrainTimeout,
			RetentionWindow: cfg.Job.RetentionWindow,
		},
		Fetcher:   fetcher,
		Parser:    collector.NewChannelParser(cfg.Source.BaseURL),
		ListURL:   ListingURLBuilder(cfg.Source.BaseURL),
		DetailURL: DetailURLBuilder(),
		Extractor: extract.NewExtractor(deps.Logger.WithComponent("extract")),
		Contacts:  contact.NewResolver(sourceHost(cfg.Source.BaseURL)),
		Sessions:  sessions,
		Archiver:  archiver,
		Logger:    deps.Logger,
	})
	if err != nil {
		closeSessions()
		return nil, nil, fmt.Errorf("create orchestrator: %w", err)
	}

	cleanup := func() {
		orchestrator.Close()
		closeSessions()
	}
	return orchestrator, cleanup, nil
}

// ListingURLBuilder returns the keyword listing URL builder for the source.
func ListingURLBuilder(baseURL string) collector.ListingURLBuilder {
	return func(keyword string, pageNum int) string {
		return fmt.Sprintf("%s/results?search_query=%s&page=%d",
			baseURL, url.QueryEscape(keyword), pageNum)
	}
}

// DetailURLBuilder returns the detail page URL builder. The about page
// carries the stats table and the contact links.
func DetailURLBuilder() enrich.DetailURLBuilder {
	return func(ch *domain.Channel) string {
		return ch.URL + "/about"
	}
}

// sourceHost extracts the bare host from the source base URL so links back
// to the source are never classified as a channel's own website.
func sourceHost(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return baseURL
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// buildSessionStore creates the configured session backend.
func buildSessionStore(cfg *config.Config, log logger.Interface) (job.SessionStore, func(), error) {
	if cfg.Session.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		store := session.NewRedisStore(client, cfg.Session.TTL)
		return store, func() { _ = client.Close() }, nil
	}

	store := session.NewMemoryStore(cfg.Session.TTL, log.WithComponent("session"))
	return store, store.Close, nil
}

// buildArchiver creates the Elasticsearch archiver when enabled. Returns nil
// when archiving is off; the orchestrator treats a nil archiver as "skip".
func buildArchiver(cfg *config.Config, log logger.Interface) (job.Archiver, error) {
	if !cfg.Elasticsearch.Enabled {
		return nil, nil
	}

	client, err := storage.NewClient(cfg.Elasticsearch, log)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return storage.NewJobArchiver(client, cfg.Elasticsearch.IndexName, log.WithComponent("storage"))
}
