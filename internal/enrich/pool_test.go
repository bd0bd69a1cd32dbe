package enrich_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/enrich"
	"github.com/jonesrussell/channelscout/internal/extract"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// queueFeed hands out channels in order, then reports drained or no-pending.
type queueFeed struct {
	mu      sync.Mutex
	queue   []*domain.Channel
	drained bool
}

func (f *queueFeed) NextPending() (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) > 0 {
		ch := f.queue[0]
		f.queue = f.queue[1:]
		return ch, nil
	}
	if f.drained {
		return nil, enrich.ErrDrained
	}
	return nil, enrich.ErrNoPending
}

func (f *queueFeed) push(channels ...*domain.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, channels...)
}

func (f *queueFeed) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drained = true
}

// memoryRecorder records enrichment outcomes.
type memoryRecorder struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	released  []string
}

func (r *memoryRecorder) CompleteEnrichment(identity string, _ *domain.Metrics, _ *domain.Contacts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, identity)
}

func (r *memoryRecorder) FailEnrichment(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, identity)
}

func (r *memoryRecorder) ReleasePending(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, identity)
}

func (r *memoryRecorder) counts() (completed, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed), len(r.failed)
}

// countingFetcher counts calls and can fail a fixed number of times.
type countingFetcher struct {
	mu       sync.Mutex
	calls    int
	failures int
	delay    time.Duration
}

func (f *countingFetcher) FetchRenderedPage(ctx context.Context, url string) (*fetch.Page, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if fail {
		return nil, fetch.ErrUnavailable
	}
	return &fetch.Page{URL: url, Text: "Subscribers 1.2K"}, nil
}

func (f *countingFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(_ string) extract.Fields {
	subs := int64(1200)
	return extract.Fields{Subscribers: &subs}
}

type emptyContacts struct{}

func (emptyContacts) Resolve(_, _ string) (*domain.Contacts, error) {
	return &domain.Contacts{}, nil
}

func testChannels(identities ...string) []*domain.Channel {
	channels := make([]*domain.Channel, 0, len(identities))
	for i, id := range identities {
		channels = append(channels, &domain.Channel{Identity: id, Rank: i})
	}
	return channels
}

func fastPoolConfig() enrich.Config {
	return enrich.Config{
		PoolSize:         2,
		MinSpacing:       0,
		SpacingJitter:    0,
		FetchTimeout:     time.Second,
		Retries:          1,
		RetryDelay:       time.Millisecond,
		FeedPollInterval: 5 * time.Millisecond,
	}
}

func newTestPool(t *testing.T, cfg enrich.Config, fetcher fetch.Fetcher) *enrich.Pool {
	t.Helper()
	p, err := enrich.NewPool(
		cfg,
		fetcher,
		fixedExtractor{},
		emptyContacts{},
		func(ch *domain.Channel) string { return "detail://" + ch.Identity },
		logger.NewNoOp(),
	)
	require.NoError(t, err)
	return p
}

func TestPoolDrainsFeed(t *testing.T) {
	feed := &queueFeed{}
	feed.push(testChannels("@a", "@b", "@c", "@d")...)
	feed.finish()
	recorder := &memoryRecorder{}

	p := newTestPool(t, fastPoolConfig(), &countingFetcher{})
	require.NoError(t, p.Run(context.Background(), feed, recorder))

	completed, failed := recorder.counts()
	assert.Equal(t, 4, completed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, int64(4), p.Enriched())
	assert.Equal(t, enrich.PoolStateStopped, p.State())
}

func TestPoolWaitsForLateWork(t *testing.T) {
	// The feed is empty at start; work arrives while workers are polling.
	feed := &queueFeed{}
	recorder := &memoryRecorder{}
	p := newTestPool(t, fastPoolConfig(), &countingFetcher{})

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), feed, recorder) }()

	time.Sleep(20 * time.Millisecond)
	feed.push(testChannels("@late")...)
	feed.finish()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain after late work arrived")
	}

	completed, _ := recorder.counts()
	assert.Equal(t, 1, completed)
}

func TestPoolRetriesThenFails(t *testing.T) {
	feed := &queueFeed{}
	feed.push(testChannels("@flaky")...)
	feed.finish()
	recorder := &memoryRecorder{}

	// More failures than retries allow: 1 attempt + 1 retry, both fail.
	fetcher := &countingFetcher{failures: 10}
	cfg := fastPoolConfig()
	cfg.Retries = 1

	p := newTestPool(t, cfg, fetcher)
	require.NoError(t, p.Run(context.Background(), feed, recorder))

	completed, failed := recorder.counts()
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, fetcher.callCount(), "one attempt plus one retry")
	assert.Equal(t, int64(1), p.Failed())
}

func TestPoolRecoversWithinRetryBudget(t *testing.T) {
	feed := &queueFeed{}
	feed.push(testChannels("@flaky")...)
	feed.finish()
	recorder := &memoryRecorder{}

	fetcher := &countingFetcher{failures: 1}
	cfg := fastPoolConfig()
	cfg.Retries = 2

	p := newTestPool(t, cfg, fetcher)
	require.NoError(t, p.Run(context.Background(), feed, recorder))

	completed, failed := recorder.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)
}

func TestPoolStopsOnCancellation(t *testing.T) {
	feed := &queueFeed{}
	feed.push(testChannels("@a", "@b", "@c", "@d", "@e", "@f")...)
	feed.finish()
	recorder := &memoryRecorder{}

	fetcher := &countingFetcher{delay: 30 * time.Millisecond}
	cfg := fastPoolConfig()
	cfg.PoolSize = 1

	p := newTestPool(t, cfg, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, feed, recorder) }()

	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}

	completed, failed := recorder.counts()
	assert.Less(t, completed+failed, 6, "cancellation must stop the pool before the feed drains")
}

func TestPoolCannotStartTwice(t *testing.T) {
	feed := &queueFeed{}
	feed.finish()

	p := newTestPool(t, fastPoolConfig(), &countingFetcher{})
	require.NoError(t, p.Run(context.Background(), feed, &memoryRecorder{}))

	err := p.Run(context.Background(), feed, &memoryRecorder{})
	assert.Error(t, err)
}

func TestPoolRejectsInvalidConfig(t *testing.T) {
	cfg := fastPoolConfig()
	cfg.FetchTimeout = 0

	_, err := enrich.NewPool(
		cfg,
		&countingFetcher{},
		fixedExtractor{},
		emptyContacts{},
		func(ch *domain.Channel) string { return ch.URL },
		logger.NewNoOp(),
	)
	assert.Error(t, err)
}
