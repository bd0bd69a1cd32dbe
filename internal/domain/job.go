package domain

import "time"

// JobState is the lifecycle state of a discovery job.
type JobState string

const (
	// JobPending means the job has been created but collection has not started.
	JobPending JobState = "pending"

	// JobCollecting means the listing walk is in progress.
	JobCollecting JobState = "collecting"

	// JobStreaming means discovered channels are being enriched and streamed
	// to the client.
	JobStreaming JobState = "streaming"

	// JobCompleted means the job finished normally.
	JobCompleted JobState = "completed"

	// JobFailed means an unrecoverable error stopped the job.
	JobFailed JobState = "failed"

	// JobCancelled means the client cancelled the job.
	JobCancelled JobState = "cancelled"
)

// IsTerminal reports whether the state admits no further transitions.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Stats holds the monotonic counters exposed in job snapshots.
type Stats struct {
	Discovered    int `json:"discovered"`
	Enriched      int `json:"enriched"`
	PassingFilter int `json:"passing_filter"`
}

// Filters is the opaque criteria bag carried on a job. The core interprets
// only the min_subscribers key; everything else flows into the session
// fingerprint untouched.
type Filters map[string]any

// Job is one discovery-and-enrichment run.
type Job struct {
	ID          string   `json:"id"`
	Keyword     string   `json:"keyword"`
	TargetCount int      `json:"target_count"`
	Filters     Filters  `json:"filters,omitempty"`
	State       JobState `json:"state"`

	// Channels is append-only; index order is discovery order.
	Channels []*Channel `json:"channels"`

	Stats Stats `json:"stats"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is the read-only view handed to the status API. Channels is a
// copied slice so later appends never race with a reader.
type Snapshot struct {
	ID              string     `json:"id"`
	Keyword         string     `json:"keyword"`
	TargetCount     int        `json:"target_count"`
	State           JobState   `json:"state"`
	Channels        []*Channel `json:"channels"`
	Stats           Stats      `json:"stats"`
	ProgressPercent float64    `json:"progress_percent"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
