package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

func newFetcher(t *testing.T) *fetch.CollyFetcher {
	t.Helper()
	f, err := fetch.NewCollyFetcher(fetch.Config{
		RequestTimeout: 5 * time.Second,
	}, logger.NewNoOp())
	require.NoError(t, err)
	return f
}

func TestFetchRenderedPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><script>ignored()</script></head><body>
			<h1>My Channel</h1>
			<p>1.2M subscribers</p>
			<div><span>437 videos</span></div>
		</body></html>`))
	}))
	defer server.Close()

	page, err := newFetcher(t).FetchRenderedPage(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.HTML, "My Channel")
	assert.NotContains(t, page.Text, "ignored()", "script content must not leak into visible text")

	// Visible text keeps document order, one line per leaf element.
	lines := strings.Split(page.Text, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "My Channel", lines[0])
	assert.Equal(t, "1.2M subscribers", lines[1])
	assert.Equal(t, "437 videos", lines[2])
}

func TestFetchRenderedPageBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newFetcher(t).FetchRenderedPage(context.Background(), server.URL)
	assert.ErrorIs(t, err, fetch.ErrBadStatus)
}

func TestFetchRenderedPageUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	_, err := newFetcher(t).FetchRenderedPage(context.Background(), server.URL)
	assert.ErrorIs(t, err, fetch.ErrUnavailable)
}

func TestFetchRenderedPageEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newFetcher(t).FetchRenderedPage(context.Background(), server.URL)
	assert.ErrorIs(t, err, fetch.ErrEmptyBody)
}

func TestConfigValidation(t *testing.T) {
	_, err := fetch.NewCollyFetcher(fetch.Config{}, logger.NewNoOp())
	assert.Error(t, err)
}
