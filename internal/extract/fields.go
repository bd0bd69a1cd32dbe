package extract

import (
	"regexp"
	"strings"

	"github.com/jonesrussell/channelscout/internal/logger"
)

// Fields holds the scalar values recovered from a channel detail page.
// A nil counter means "unknown", which is distinct from a true zero.
type Fields struct {
	Subscribers *int64
	Videos      *int64
	Views       *int64
	Joined      string
}

// DefaultMaxAnchorDistance bounds, in visible-text lines, how far below the
// video-count anchor an aggregate view count may appear and still be
// trusted. Anything farther is assumed to belong to an unrelated element
// (typically a pinned video's own view counter) and is rejected.
const DefaultMaxAnchorDistance = 6

// Extractor applies the field strategy chains to a detail page's text.
type Extractor struct {
	maxAnchorDistance int
	logger            logger.Interface
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxAnchorDistance overrides the anchor proximity bound.
func WithMaxAnchorDistance(lines int) Option {
	return func(e *Extractor) {
		if lines > 0 {
			e.maxAnchorDistance = lines
		}
	}
}

// NewExtractor creates a field extractor.
func NewExtractor(log logger.Interface, opts ...Option) *Extractor {
	e := &Extractor{
		maxAnchorDistance: DefaultMaxAnchorDistance,
		logger:            log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Line patterns for the labeled-value strategies. The source renders counts
// either inline ("1.2M subscribers") or as a label line followed by a value
// line in a stats table.
var (
	subscribersInline = regexp.MustCompile(`(?i)([\d][\d.,\s\x{00a0}]*(?:\.\d+)?\s*[kmb]?)\s*subscribers?\b`)
	videosInline      = regexp.MustCompile(`(?i)([\d][\d.,\s\x{00a0}]*(?:\.\d+)?\s*[kmb]?)\s*videos?\b`)
	viewsInline       = regexp.MustCompile(`(?i)([\d][\d.,\s\x{00a0}]*(?:\.\d+)?\s*[kmb]?)\s*views?\b`)
	joinedLine        = regexp.MustCompile(`(?i)joined\s+(.+)`)
	bareNumber        = regexp.MustCompile(`(?i)^[\d][\d.,\s\x{00a0}]*(?:\.\d+)?\s*[kmb]?$`)
)

// Extract runs every field's strategy chain over the page text. Fields that
// no strategy can resolve are left absent.
func (e *Extractor) Extract(text string) Fields {
	lines := splitLines(text)

	var f Fields
	f.Subscribers = e.extractLabeled(lines, subscribersInline, "subscribers")

	videos, videosAt := e.extractAnchored(lines, videosInline, "videos")
	f.Videos = videos

	f.Views = e.extractViews(lines, videosAt)
	f.Joined = extractJoined(lines)

	return f
}

// extractLabeled resolves a count through the inline chain: first an inline
// "<number> <label>" match anywhere on the page, then a stats-table lookup
// (label line followed closely by a bare number line).
func (e *Extractor) extractLabeled(lines []string, inline *regexp.Regexp, label string) *int64 {
	if v, _, ok := findInline(lines, inline); ok {
		return &v
	}
	if v, ok := findInStatsTable(lines, label); ok {
		return &v
	}
	e.logger.Debug("field not found on page", "field", label)
	return nil
}

// extractAnchored is extractLabeled plus the matched line index, for use as
// a proximity anchor by dependent fields.
func (e *Extractor) extractAnchored(lines []string, inline *regexp.Regexp, label string) (*int64, int) {
	if v, at, ok := findInline(lines, inline); ok {
		return &v, at
	}
	if v, ok := findInStatsTable(lines, label); ok {
		return &v, -1
	}
	e.logger.Debug("field not found on page", "field", label)
	return nil, -1
}

// extractViews resolves the aggregate view count. The naive approach — take
// the first "views" match anywhere below the stats block — picks up a pinned
// video's own view counter on many channel layouts, so a candidate is only
// accepted within maxAnchorDistance lines of the video-count anchor. When
// the anchor is missing or no candidate is near enough, the chain falls
// through to the stats-table strategy instead of returning a wrong value.
func (e *Extractor) extractViews(lines []string, anchorAt int) *int64 {
	if anchorAt >= 0 {
		limit := anchorAt + e.maxAnchorDistance
		if limit >= len(lines) {
			limit = len(lines) - 1
		}
		for i := anchorAt; i <= limit; i++ {
			if match := viewsInline.FindStringSubmatch(lines[i]); match != nil {
				if v, err := ParseCount(match[1]); err == nil {
					return &v
				}
			}
		}
		e.logger.Debug("no view count near anchor, trying stats table",
			"anchor_line", anchorAt,
			"max_distance", e.maxAnchorDistance,
		)
	}

	if v, ok := findInStatsTable(lines, "views"); ok {
		return &v
	}
	return nil
}

// findInline returns the first inline match of pattern across the lines.
func findInline(lines []string, pattern *regexp.Regexp) (int64, int, bool) {
	for i, line := range lines {
		match := pattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if v, err := ParseCount(match[1]); err == nil {
			return v, i, true
		}
	}
	return 0, -1, false
}

// statsTableLookahead is how many lines below a label line the table value
// may sit. Stats tables render label and value as adjacent elements.
const statsTableLookahead = 2

// findInStatsTable looks for a line that is exactly the field label and
// takes the first bare number within the lookahead window below it.
func findInStatsTable(lines []string, label string) (int64, bool) {
	for i, line := range lines {
		if !strings.EqualFold(strings.TrimSpace(line), label) {
			continue
		}
		for j := i + 1; j <= i+statsTableLookahead && j < len(lines); j++ {
			candidate := strings.TrimSpace(lines[j])
			if !bareNumber.MatchString(candidate) {
				continue
			}
			if v, err := ParseCount(candidate); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// extractJoined returns the channel's join date as written on the page.
func extractJoined(lines []string) string {
	for _, line := range lines {
		if match := joinedLine.FindStringSubmatch(line); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return ""
}

// splitLines splits page text into trimmed, non-empty lines.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
