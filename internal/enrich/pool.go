// Package enrich implements the bounded worker pool that visits each
// discovered channel's detail page and fills in its field groups.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/extract"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// Feed protocol errors.
var (
	// ErrNoPending means nothing is waiting for enrichment right now but
	// collection may still produce more.
	ErrNoPending = errors.New("no pending channel")

	// ErrDrained means collection has finished and nothing is left to enrich.
	ErrDrained = errors.New("feed drained")
)

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateIdle means the pool has not started.
	PoolStateIdle PoolState = iota

	// PoolStateRunning means workers are processing channels.
	PoolStateRunning

	// PoolStateStopped means the pool has drained or was cancelled.
	PoolStateStopped
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateIdle:
		return "idle"
	case PoolStateRunning:
		return "running"
	case PoolStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Feed supplies pending channels in rank order, lowest rank first, so the
// front of the list fills in before the tail. Returns ErrNoPending or
// ErrDrained when no channel is available.
type Feed interface {
	NextPending() (*domain.Channel, error)
}

// Recorder receives enrichment outcomes. Both outcome calls must be atomic
// with respect to snapshot readers.
type Recorder interface {
	CompleteEnrichment(identity string, metrics *domain.Metrics, contacts *domain.Contacts)
	FailEnrichment(identity string)
	ReleasePending(identity string)
}

// FieldExtractor recovers scalar fields from a detail page's text.
type FieldExtractor interface {
	Extract(text string) extract.Fields
}

// ContactResolver extracts contact identifiers from a detail page.
type ContactResolver interface {
	Resolve(text, html string) (*domain.Contacts, error)
}

// DetailURLBuilder maps a channel to its detail (about) page URL.
type DetailURLBuilder func(ch *domain.Channel) string

// Config configures the worker pool.
type Config struct {
	// PoolSize is the number of concurrent workers. Keep it small; the
	// external source is rate sensitive.
	PoolSize int `mapstructure:"pool_size"`

	// MinSpacing is the minimum interval between successive detail fetches
	// across all workers.
	MinSpacing time.Duration `mapstructure:"min_spacing"`

	// SpacingJitter is the maximum random extra delay added on top of
	// MinSpacing.
	SpacingJitter time.Duration `mapstructure:"spacing_jitter"`

	// FetchTimeout bounds each detail fetch. Mandatory.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// Retries is how many times a failed channel is retried before being
	// marked failed.
	Retries int `mapstructure:"retries"`

	// RetryDelay is the base backoff between retries; it doubles per attempt.
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// FeedPollInterval is how long a worker sleeps when the feed has nothing
	// pending yet.
	FeedPollInterval time.Duration `mapstructure:"feed_poll_interval"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.PoolSize <= 0 {
		return errors.New("pool size must be positive")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout is mandatory")
	}
	if c.Retries < 0 {
		return errors.New("retries cannot be negative")
	}
	if c.FeedPollInterval <= 0 {
		return errors.New("feed poll interval must be positive")
	}
	return nil
}

// DefaultConfig returns the pool defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:         3,
		MinSpacing:       800 * time.Millisecond,
		SpacingJitter:    400 * time.Millisecond,
		FetchTimeout:     20 * time.Second,
		Retries:          2,
		RetryDelay:       2 * time.Second,
		FeedPollInterval: 150 * time.Millisecond,
	}
}

// Pool is the bounded enrichment worker pool for one job.
type Pool struct {
	cfg       Config
	fetcher   fetch.Fetcher
	extractor FieldExtractor
	contacts  ContactResolver
	detailURL DetailURLBuilder
	logger    logger.Interface

	limiter *rate.Limiter
	state   atomic.Int32

	// Stats
	enriched atomic.Int64
	failed   atomic.Int64
}

// NewPool creates a worker pool.
func NewPool(
	cfg Config,
	fetcher fetch.Fetcher,
	extractor FieldExtractor,
	contacts ContactResolver,
	detailURL DetailURLBuilder,
	log logger.Interface,
) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	if fetcher == nil || extractor == nil || contacts == nil || detailURL == nil {
		return nil, errors.New("fetcher, extractor, contact resolver and url builder are required")
	}

	var limiter *rate.Limiter
	if cfg.MinSpacing > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinSpacing), 1)
	}

	p := &Pool{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		contacts:  contacts,
		detailURL: detailURL,
		logger:    log,
		limiter:   limiter,
	}
	p.state.Store(int32(PoolStateIdle))
	return p, nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// Enriched returns how many channels this pool enriched.
func (p *Pool) Enriched() int64 { return p.enriched.Load() }

// Failed returns how many channels this pool marked failed.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Run pulls pending channels from the feed until it drains or ctx is
// cancelled, then blocks until every worker has exited. Workers check
// cancellation before claiming a new channel, never mid-fetch; an in-flight
// fetch finishes or times out on its own.
func (p *Pool) Run(ctx context.Context, feed Feed, recorder Recorder) error {
	if !p.state.CompareAndSwap(int32(PoolStateIdle), int32(PoolStateRunning)) {
		return errors.New("pool already started")
	}
	defer p.state.Store(int32(PoolStateStopped))

	p.logger.Info("enrichment pool started",
		"pool_size", p.cfg.PoolSize,
		"min_spacing", p.cfg.MinSpacing,
	)

	var wg sync.WaitGroup
	for i := range p.cfg.PoolSize {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, feed, recorder)
		}(i)
	}
	wg.Wait()

	p.logger.Info("enrichment pool stopped",
		"enriched", p.enriched.Load(),
		"failed", p.failed.Load(),
	)
	return nil
}

// worker is a single worker loop: claim the lowest pending rank, space the
// fetch politely, process, repeat.
func (p *Pool) worker(ctx context.Context, workerID int, feed Feed, recorder Recorder) {
	for {
		// Cancellation checkpoint: before claiming new work.
		select {
		case <-ctx.Done():
			return
		default:
		}

		ch, err := feed.NextPending()
		switch {
		case errors.Is(err, ErrDrained):
			return
		case errors.Is(err, ErrNoPending):
			if p.sleepOrCancel(ctx, p.cfg.FeedPollInterval) {
				return
			}
			continue
		case err != nil:
			p.logger.Error("feed error",
				"worker_id", workerID,
				"error", err.Error(),
			)
			return
		}

		// Cancellation may land between the checkpoint and the claim; put
		// the channel back instead of starting a fetch for a dead job.
		if p.waitSpacing(ctx) {
			recorder.ReleasePending(ch.Identity)
			return
		}

		p.process(ctx, workerID, ch, recorder)
	}
}

// waitSpacing enforces the inter-request spacing plus jitter. Returns true
// if ctx was cancelled while waiting.
func (p *Pool) waitSpacing(ctx context.Context) bool {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return true
		}
	}
	if p.cfg.SpacingJitter > 0 {
		jitter := time.Duration(rand.Int63n(int64(p.cfg.SpacingJitter)))
		if p.sleepOrCancel(ctx, jitter) {
			return true
		}
	}
	return false
}

// sleepOrCancel sleeps for d or returns true if ctx is cancelled first.
func (p *Pool) sleepOrCancel(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}

// process runs the per-channel procedure: fetch detail page, extract fields,
// resolve contacts, write both groups as one unit. Fetch and extraction
// failures are retried with doubling backoff; exhaustion marks the channel
// failed, never the job.
func (p *Pool) process(ctx context.Context, workerID int, ch *domain.Channel, recorder Recorder) {
	url := p.detailURL(ch)
	delay := p.cfg.RetryDelay

	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			if p.sleepOrCancel(ctx, delay) {
				recorder.ReleasePending(ch.Identity)
				return
			}
			delay *= 2
		}

		metrics, contacts, err := p.enrichOnce(ctx, url)
		if err == nil {
			recorder.CompleteEnrichment(ch.Identity, metrics, contacts)
			p.enriched.Add(1)
			p.logger.Debug("channel enriched",
				"worker_id", workerID,
				"identity", ch.Identity,
				"rank", ch.Rank,
			)
			return
		}

		p.logger.Warn("enrichment attempt failed",
			"worker_id", workerID,
			"identity", ch.Identity,
			"attempt", attempt,
			"error", err.Error(),
		)
	}

	recorder.FailEnrichment(ch.Identity)
	p.failed.Add(1)
}

// enrichOnce performs one fetch-and-extract attempt. The fetch carries its
// own watchdog timeout and survives job cancellation, so an in-flight fetch
// always runs to completion or timeout and the channel ends in a consistent
// state.
func (p *Pool) enrichOnce(ctx context.Context, url string) (*domain.Metrics, *domain.Contacts, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FetchTimeout)
	defer cancel()

	page, err := p.fetcher.FetchRenderedPage(fetchCtx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch detail page: %w", err)
	}

	fields := p.extractor.Extract(page.Text)
	metrics := &domain.Metrics{
		Subscribers: fields.Subscribers,
		Videos:      fields.Videos,
		Views:       fields.Views,
		Joined:      fields.Joined,
	}

	contacts, err := p.contacts.Resolve(page.Text, page.HTML)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve contacts: %w", err)
	}

	return metrics, contacts, nil
}
