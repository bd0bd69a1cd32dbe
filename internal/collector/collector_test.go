package collector_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channelscout/internal/collector"
	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// fakeFetcher returns canned pages and counts calls.
type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) FetchRenderedPage(ctx context.Context, url string) (*fetch.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Page{URL: url, HTML: "<html></html>"}, nil
}

// fakeParser emits entries per page from a script; pages beyond the script
// are empty.
type fakeParser struct {
	pages [][]string
	page  int
}

func (p *fakeParser) ParseListing(_ *fetch.Page) ([]*domain.Channel, error) {
	if p.page >= len(p.pages) {
		p.page++
		return nil, nil
	}
	identities := p.pages[p.page]
	p.page++

	channels := make([]*domain.Channel, 0, len(identities))
	for _, id := range identities {
		channels = append(channels, &domain.Channel{
			Identity:   id,
			Name:       id,
			URL:        "https://source.example/" + id,
			Enrichment: domain.EnrichmentPending,
		})
	}
	return channels, nil
}

// memorySink collects appended channels and assigns ranks.
type memorySink struct {
	channels []*domain.Channel
}

func (s *memorySink) Append(channels []*domain.Channel) error {
	for _, ch := range channels {
		ch.Rank = len(s.channels)
		s.channels = append(s.channels, ch)
	}
	return nil
}

func (s *memorySink) Count() int { return len(s.channels) }

func buildURL(keyword string, pageNum int) string {
	return fmt.Sprintf("https://source.example/results?q=%s&page=%d", keyword, pageNum)
}

func testConfig() collector.Config {
	cfg := collector.DefaultConfig()
	cfg.FetchRetries = 0
	cfg.FetchRetryDelay = time.Millisecond
	return cfg
}

func newCollector(t *testing.T, cfg collector.Config, fetcher fetch.Fetcher, parser collector.ListingParser) *collector.Collector {
	t.Helper()
	c, err := collector.New(cfg, fetcher, parser, buildURL, logger.NewNoOp())
	require.NoError(t, err)
	return c
}

func TestRun_DeduplicatesAcrossPages(t *testing.T) {
	parser := &fakeParser{pages: [][]string{
		{"@alpha", "@beta", "@alpha"},
		{"@beta", "@gamma"},
	}}
	sink := &memorySink{}

	c := newCollector(t, testConfig(), &fakeFetcher{}, parser)
	result, err := c.Run(context.Background(), "cooking", 10, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	require.Len(t, sink.channels, 3)

	seen := map[string]bool{}
	for i, ch := range sink.channels {
		assert.False(t, seen[ch.Identity], "duplicate identity %s", ch.Identity)
		seen[ch.Identity] = true
		assert.Equal(t, i, ch.Rank, "ranks must be sequential")
	}
}

func TestRun_ConvergesWithinBoundedAttempts(t *testing.T) {
	// Every page returns only already-seen identities after the first.
	parser := &fakeParser{pages: [][]string{
		{"@alpha"},
		{"@alpha"}, {"@alpha"}, {"@alpha"}, {"@alpha"}, {"@alpha"}, {"@alpha"},
	}}
	fetcher := &fakeFetcher{}
	sink := &memorySink{}

	cfg := testConfig()
	cfg.MaxFruitlessFetches = 3

	c := newCollector(t, cfg, fetcher, parser)
	result, err := c.Run(context.Background(), "cooking", 10, nil, sink)
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Discovered)
	assert.LessOrEqual(t, fetcher.calls, cfg.MaxFruitlessFetches+1,
		"collector must stop within N+1 fetches of the last productive one")
}

func TestRun_TruncatesMidPageAtTarget(t *testing.T) {
	parser := &fakeParser{pages: [][]string{
		{"@a", "@b", "@c", "@d", "@e"},
	}}
	sink := &memorySink{}

	c := newCollector(t, testConfig(), &fakeFetcher{}, parser)
	result, err := c.Run(context.Background(), "cooking", 3, nil, sink)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	assert.False(t, result.Converged)
	require.Len(t, sink.channels, 3)
	assert.Equal(t, "@c", sink.channels[2].Identity)
}

func TestRun_SuppressesKnownIdentities(t *testing.T) {
	parser := &fakeParser{pages: [][]string{
		{"@old1", "@old2", "@new1"},
		{"@new2"},
	}}
	sink := &memorySink{}
	known := map[string]struct{}{"@old1": {}, "@old2": {}}

	c := newCollector(t, testConfig(), &fakeFetcher{}, parser)
	result, err := c.Run(context.Background(), "cooking", 2, known, sink)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Discovered)
	for _, ch := range sink.channels {
		assert.NotContains(t, []string{"@old1", "@old2"}, ch.Identity)
	}
}

func TestRun_UnreachableSourceIsFatal(t *testing.T) {
	fetcher := &fakeFetcher{err: fetch.ErrUnavailable}
	sink := &memorySink{}

	cfg := testConfig()
	cfg.MaxFruitlessFetches = 2

	c := newCollector(t, cfg, fetcher, &fakeParser{})
	_, err := c.Run(context.Background(), "cooking", 5, nil, sink)
	assert.ErrorIs(t, err, collector.ErrNoProgress)
}

func TestRun_CancelledContextStopsWalk(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newCollector(t, testConfig(), &fakeFetcher{}, &fakeParser{})
	_, err := c.Run(ctx, "cooking", 5, nil, &memorySink{})
	assert.ErrorIs(t, err, context.Canceled)
}
