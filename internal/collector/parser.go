package collector

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/fetch"
)

// ChannelParser parses channel entries out of a search listing page.
// Selectors cover the two renderer variants the source serves: the modern
// channel-renderer cards and the legacy list rows.
type ChannelParser struct {
	baseURL string
}

// NewChannelParser creates a parser. baseURL resolves relative channel links.
func NewChannelParser(baseURL string) *ChannelParser {
	return &ChannelParser{baseURL: strings.TrimRight(baseURL, "/")}
}

// channelSelectors are tried in order; the first selector that matches
// anything on the page wins for the whole page.
var channelSelectors = []string{
	"ytd-channel-renderer, [data-channel-renderer]",
	".channel-card",
	"a[href^='/@'], a[href*='/channel/']",
}

// ParseListing extracts channel entries in page order.
func (p *ChannelParser) ParseListing(page *fetch.Page) ([]*domain.Channel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	for _, selector := range channelSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}
		return p.parseSelection(selection), nil
	}
	return nil, nil
}

// parseSelection builds channel entries from matched elements. Entries
// without a resolvable identity are dropped.
func (p *ChannelParser) parseSelection(selection *goquery.Selection) []*domain.Channel {
	var channels []*domain.Channel

	selection.Each(func(_ int, sel *goquery.Selection) {
		href := firstAttr(sel, "href")
		if href == "" {
			href = firstAttr(sel.Find("a[href]").First(), "href")
		}

		channelURL := p.resolveURL(href)
		identity := CanonicalIdentity(channelURL)
		if identity == "" {
			return
		}

		name := strings.TrimSpace(firstAttr(sel, "title"))
		if name == "" {
			name = strings.TrimSpace(sel.Find(".channel-name, #channel-title, h3").First().Text())
		}
		if name == "" {
			name = identity
		}

		thumbnail := firstAttr(sel.Find("img").First(), "src")

		channels = append(channels, &domain.Channel{
			Identity:     identity,
			Name:         name,
			URL:          channelURL,
			Thumbnail:    thumbnail,
			Enrichment:   domain.EnrichmentPending,
			DiscoveredAt: time.Now(),
		})
	})

	return channels
}

// resolveURL makes href absolute against the parser's base URL.
func (p *ChannelParser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return p.baseURL + "/" + strings.TrimLeft(href, "/")
}

// CanonicalIdentity derives the stable channel identity from its URL: the
// "@handle" path segment when present, otherwise the channel id segment.
// Query strings and fragments never contribute, so the same channel reached
// through different listing links maps to one identity.
func CanonicalIdentity(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, "@") && len(segment) > 1 {
			return strings.ToLower(segment)
		}
		if segment == "channel" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1]
		}
	}
	return ""
}

// firstAttr returns the trimmed attribute value, or "".
func firstAttr(sel *goquery.Selection, name string) string {
	value, _ := sel.Attr(name)
	return strings.TrimSpace(value)
}
