// Package domain provides domain models used across the application.
package domain

import "time"

// EnrichmentState tracks a channel's progress through the detail-page pass.
type EnrichmentState string

const (
	// EnrichmentPending means the channel has been discovered but its detail
	// page has not been visited yet.
	EnrichmentPending EnrichmentState = "pending"

	// EnrichmentEnriching means a worker is currently visiting the detail page.
	EnrichmentEnriching EnrichmentState = "enriching"

	// EnrichmentEnriched means the detail pass completed and the field groups
	// are populated.
	EnrichmentEnriched EnrichmentState = "enriched"

	// EnrichmentFailed means the detail pass exhausted its retries.
	EnrichmentFailed EnrichmentState = "failed"
)

// Channel is one discovered channel. Identity is the canonical handle or id
// derived from the channel URL and is unique within a job. Rank is the
// 0-based discovery position and is never reassigned.
type Channel struct {
	Identity  string `json:"identity"`
	Rank      int    `json:"rank"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`

	Enrichment EnrichmentState `json:"enrichment_state"`

	// Metrics and Contacts are nil until enrichment completes. Each field
	// group is written exactly once, as a unit.
	Metrics  *Metrics  `json:"metrics,omitempty"`
	Contacts *Contacts `json:"contacts,omitempty"`

	DiscoveredAt time.Time `json:"discovered_at"`
}

// Metrics holds the detail-page counters. Pointer fields distinguish an
// unknown value (nil) from a genuine zero.
type Metrics struct {
	Subscribers *int64 `json:"subscribers,omitempty"`
	Videos      *int64 `json:"videos,omitempty"`
	Views       *int64 `json:"views,omitempty"`
	Joined      string `json:"joined,omitempty"`
}

// Contacts holds the extracted contact identifiers for a channel.
type Contacts struct {
	// Emails are deduplicated candidate addresses found in the about text.
	Emails []string `json:"emails,omitempty"`

	// Links maps a platform key (e.g. "instagram") to the first outbound
	// link recognised for that platform.
	Links map[string]string `json:"links,omitempty"`

	// Website is the first outbound link that is neither a recognised
	// platform nor a link back to the source site.
	Website string `json:"website,omitempty"`
}
