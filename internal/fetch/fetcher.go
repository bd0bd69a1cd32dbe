// Package fetch provides the rendered-page fetch capability consumed by the
// collector and the enrichment workers.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/channelscout/internal/logger"
)

// Page is a fetched document: the raw markup plus its visible text in
// document order.
type Page struct {
	URL        string
	Text       string
	HTML       string
	StatusCode int
	FetchedAt  time.Time
}

// Fetcher fetches a rendered page for a URL. Implementations apply their own
// navigation readiness wait; failures surface as typed fetch errors.
type Fetcher interface {
	FetchRenderedPage(ctx context.Context, url string) (*Page, error)
}

// Config configures the colly-backed fetcher.
type Config struct {
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodySize    int           `mapstructure:"max_body_size"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}

// defaultUserAgent identifies the fetcher when none is configured.
const defaultUserAgent = "channelscout/1.0 (+https://github.com/jonesrussell/channelscout)"

// CollyFetcher fetches pages through a colly collector.
type CollyFetcher struct {
	cfg    Config
	logger logger.Interface
}

// NewCollyFetcher creates a fetcher backed by colly.
func NewCollyFetcher(cfg Config, log logger.Interface) (*CollyFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetch config: %w", err)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &CollyFetcher{cfg: cfg, logger: log}, nil
}

// FetchRenderedPage fetches url and returns its markup and visible text.
// A collector is built per call so the caller's context bounds the request.
func (f *CollyFetcher) FetchRenderedPage(ctx context.Context, url string) (*Page, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.UserAgent(f.cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	}
	if f.cfg.MaxBodySize > 0 {
		opts = append(opts, colly.MaxBodySize(f.cfg.MaxBodySize))
	}

	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(f.cfg.RequestTimeout)

	var (
		body     []byte
		status   int
		visitErr error
	)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		visitErr = err
	})

	if err := collector.Visit(url); err != nil {
		return nil, classifyFetchError(url, err)
	}

	if visitErr != nil {
		return nil, classifyFetchError(url, visitErr)
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d for %s", ErrBadStatus, status, url)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBody, url)
	}

	text, err := visibleText(body)
	if err != nil {
		return nil, fmt.Errorf("parse fetched page: %w", err)
	}

	f.logger.Debug("page fetched",
		"url", url,
		"status", status,
		"bytes", len(body),
	)

	return &Page{
		URL:        url,
		Text:       text,
		HTML:       string(body),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

// classifyFetchError maps transport errors onto the package's typed errors.
func classifyFetchError(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, url)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%w: %s: %s", ErrTimeout, url, msg)
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "connection reset"):
		return fmt.Errorf("%w: %s: %s", ErrUnavailable, url, msg)
	default:
		return fmt.Errorf("fetch %s: %w", url, err)
	}
}

// nonContentSelectors lists elements stripped before extracting visible text.
const nonContentSelectors = "script, style, noscript, template"

// visibleText extracts the document's visible text, one line per element
// block, preserving page order. Line order matters downstream: the field
// extractor's proximity rules are expressed in line distance.
func visibleText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContentSelectors).Remove()

	var lines []string
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		if sel.Children().Length() > 0 {
			return
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})

	if len(lines) == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}
