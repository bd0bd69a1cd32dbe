// Package collector drives the paginated search listing and turns it into a
// deduplicated, rank-ordered stream of discovered channels.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// ErrNoProgress is returned by Run when the very first fetch attempt fails
// outright, which usually means the fetch capability itself is down.
var ErrNoProgress = errors.New("listing yielded no results and no progress")

// ListingParser parses one listing page into raw channel entries in page
// order. Entries may repeat across pages and within a page.
type ListingParser interface {
	ParseListing(page *fetch.Page) ([]*domain.Channel, error)
}

// ListingURLBuilder builds the URL for one page of the keyword listing.
// Page numbers are 1-based.
type ListingURLBuilder func(keyword string, pageNum int) string

// Config holds the collector's tunables. The convergence threshold and retry
// policy were tuned against a live listing; treat them as configuration, not
// constants.
type Config struct {
	// MaxFruitlessFetches is how many consecutive fetches may yield zero new
	// identities before the listing is considered exhausted.
	MaxFruitlessFetches int `mapstructure:"max_fruitless_fetches"`

	// FetchRetries is how many times a single page fetch is retried before
	// the attempt counts as fruitless.
	FetchRetries int `mapstructure:"fetch_retries"`

	// FetchRetryDelay is the base backoff between fetch retries; it doubles
	// per attempt.
	FetchRetryDelay time.Duration `mapstructure:"fetch_retry_delay"`

	// MaxPages is a hard safety bound on the listing walk.
	MaxPages int `mapstructure:"max_pages"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxFruitlessFetches <= 0 {
		return errors.New("max fruitless fetches must be positive")
	}
	if c.MaxPages <= 0 {
		return errors.New("max pages must be positive")
	}
	if c.FetchRetries < 0 {
		return errors.New("fetch retries cannot be negative")
	}
	return nil
}

// DefaultConfig returns the collector defaults.
func DefaultConfig() Config {
	return Config{
		MaxFruitlessFetches: 3,
		FetchRetries:        2,
		FetchRetryDelay:     2 * time.Second,
		MaxPages:            50,
	}
}

// Result summarises one collection run.
type Result struct {
	// Discovered is how many new channels were appended.
	Discovered int

	// Converged is true when the walk stopped because the listing ran dry,
	// false when it stopped at the target count.
	Converged bool

	// PagesFetched counts fetch attempts that returned a page.
	PagesFetched int
}

// Sink receives newly discovered channels. Append must assign ranks
// sequentially and is the single mutation path into the job record.
type Sink interface {
	Append(channels []*domain.Channel) error
	Count() int
}

// Collector walks the listing sequentially. The listing must be walked in
// order, so there is exactly one driver per job.
type Collector struct {
	cfg      Config
	fetcher  fetch.Fetcher
	parser   ListingParser
	buildURL ListingURLBuilder
	logger   logger.Interface
}

// New creates a collector.
func New(
	cfg Config,
	fetcher fetch.Fetcher,
	parser ListingParser,
	buildURL ListingURLBuilder,
	log logger.Interface,
) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collector config: %w", err)
	}
	if fetcher == nil || parser == nil || buildURL == nil {
		return nil, errors.New("fetcher, parser and url builder are required")
	}
	return &Collector{
		cfg:      cfg,
		fetcher:  fetcher,
		parser:   parser,
		buildURL: buildURL,
		logger:   log,
	}, nil
}

// Run walks the listing for keyword until targetCount distinct channels have
// been appended to the sink or the listing converges. known holds identities
// that must never be re-emitted (session continuation); it is also extended
// with every identity discovered during this run.
func (c *Collector) Run(
	ctx context.Context,
	keyword string,
	targetCount int,
	known map[string]struct{},
	sink Sink,
) (*Result, error) {
	if known == nil {
		known = make(map[string]struct{})
	}

	result := &Result{}
	fruitless := 0

	for pageNum := 1; pageNum <= c.cfg.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if sink.Count() >= targetCount {
			break
		}
		if fruitless >= c.cfg.MaxFruitlessFetches {
			if result.PagesFetched == 0 {
				// Not a single page came back: the fetch capability itself
				// is unreachable, which is the one job-fatal condition.
				return result, ErrNoProgress
			}
			result.Converged = true
			c.logger.Info("listing converged",
				"keyword", keyword,
				"fruitless_fetches", fruitless,
				"discovered", result.Discovered,
			)
			break
		}

		page, err := c.fetchWithRetry(ctx, c.buildURL(keyword, pageNum))
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// An errored fetch is just a non-productive attempt; the
			// no-new-results counter bounds how long we keep trying.
			fruitless++
			c.logger.Warn("listing fetch failed",
				"keyword", keyword,
				"page", pageNum,
				"error", err.Error(),
			)
			continue
		}
		result.PagesFetched++

		entries, parseErr := c.parser.ParseListing(page)
		if parseErr != nil {
			fruitless++
			c.logger.Warn("listing parse failed",
				"page", pageNum,
				"error", parseErr.Error(),
			)
			continue
		}

		fresh := dedupe(entries, known)
		if len(fresh) == 0 {
			fruitless++
			continue
		}
		fruitless = 0

		// Truncate mid-page rather than overshooting the target. No partial
		// entry is ever emitted.
		if room := targetCount - sink.Count(); len(fresh) > room {
			fresh = fresh[:room]
		}

		if appendErr := sink.Append(fresh); appendErr != nil {
			return result, fmt.Errorf("append discovered channels: %w", appendErr)
		}
		result.Discovered += len(fresh)

		c.logger.Debug("listing page collected",
			"page", pageNum,
			"new_channels", len(fresh),
			"total", sink.Count(),
		)
	}

	if sink.Count() < targetCount && !result.Converged {
		// Ran out of pages or attempts without hitting the target.
		result.Converged = true
	}
	return result, nil
}

// fetchWithRetry fetches a listing page, retrying transient failures with
// doubling backoff up to the configured cap.
func (c *Collector) fetchWithRetry(ctx context.Context, url string) (*fetch.Page, error) {
	var lastErr error
	delay := c.cfg.FetchRetryDelay

	for attempt := 0; attempt <= c.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		page, err := c.fetcher.FetchRenderedPage(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// dedupe filters entries against known identities and against earlier
// entries of the same batch, recording every kept identity in known.
func dedupe(entries []*domain.Channel, known map[string]struct{}) []*domain.Channel {
	fresh := make([]*domain.Channel, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || entry.Identity == "" {
			continue
		}
		if _, seen := known[entry.Identity]; seen {
			continue
		}
		known[entry.Identity] = struct{}{}
		fresh = append(fresh, entry)
	}
	return fresh
}
