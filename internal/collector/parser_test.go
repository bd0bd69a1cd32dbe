package collector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channelscout/internal/collector"
	"github.com/jonesrussell/channelscout/internal/fetch"
)

func TestCanonicalIdentity(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"handle", "https://source.example/@Cooking", "@cooking"},
		{"handle with trailing path", "https://source.example/@Cooking/videos", "@cooking"},
		{"handle with query", "https://source.example/@Cooking?ref=search", "@cooking"},
		{"handle with fragment", "https://source.example/@Cooking#about", "@cooking"},
		{"channel id", "https://source.example/channel/UCabc123", "UCabc123"},
		{"no identity", "https://source.example/results?q=x", ""},
		{"empty", "", ""},
		{"bare at sign", "https://source.example/@", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collector.CanonicalIdentity(tt.url))
		})
	}
}

func TestParseListingChannelCards(t *testing.T) {
	html := `<html><body>
		<div class="channel-card"><a href="/@alpha"><img src="/thumb/a.jpg"><span class="channel-name">Alpha Kitchen</span></a></div>
		<div class="channel-card"><a href="https://source.example/channel/UCbeta"><h3>Beta Builds</h3></a></div>
		<div class="channel-card"><a href="/results?q=x">not a channel</a></div>
	</body></html>`

	parser := collector.NewChannelParser("https://source.example")
	channels, err := parser.ParseListing(&fetch.Page{HTML: html})
	require.NoError(t, err)
	require.Len(t, channels, 2)

	assert.Equal(t, "@alpha", channels[0].Identity)
	assert.Equal(t, "Alpha Kitchen", channels[0].Name)
	assert.Equal(t, "https://source.example/@alpha", channels[0].URL)

	assert.Equal(t, "UCbeta", channels[1].Identity)
	assert.Equal(t, "Beta Builds", channels[1].Name)
}

func TestParseListingLinkFallback(t *testing.T) {
	// No card markup at all: the bare-anchor selector still finds channels.
	html := `<html><body>
		<a href="/@gamma">Gamma</a>
		<a href="/watch?v=123">a video</a>
	</body></html>`

	parser := collector.NewChannelParser("https://source.example")
	channels, err := parser.ParseListing(&fetch.Page{HTML: html})
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "@gamma", channels[0].Identity)
}

func TestParseListingPreservesPageOrder(t *testing.T) {
	html := `<html><body>
		<div class="channel-card"><a href="/@first">First</a></div>
		<div class="channel-card"><a href="/@second">Second</a></div>
		<div class="channel-card"><a href="/@third">Third</a></div>
	</body></html>`

	parser := collector.NewChannelParser("https://source.example")
	channels, err := parser.ParseListing(&fetch.Page{HTML: html})
	require.NoError(t, err)
	require.Len(t, channels, 3)

	assert.Equal(t, "@first", channels[0].Identity)
	assert.Equal(t, "@second", channels[1].Identity)
	assert.Equal(t, "@third", channels[2].Identity)
}

func TestParseListingEmptyPage(t *testing.T) {
	parser := collector.NewChannelParser("https://source.example")
	channels, err := parser.ParseListing(&fetch.Page{HTML: "<html><body><p>no results</p></body></html>"})
	require.NoError(t, err)
	assert.Empty(t, channels)
}
