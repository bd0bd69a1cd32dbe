// Package job implements the discovery job: its record, state machine and
// orchestrator.
package job

import (
	"sync"
	"time"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/enrich"
)

// minSubscribersKey is the one filter key the core interprets. Everything
// else in the bag only contributes to the session fingerprint.
const minSubscribersKey = "min_subscribers"

// Record wraps a Job behind the single append/update path. All mutation goes
// through Record methods; readers only ever get copied snapshots, so no
// reader can observe a half-written field group.
type Record struct {
	mu             sync.RWMutex
	job            *domain.Job
	minSubscribers int64
	hasMinFilter   bool
	collectionDone bool

	cancelled chan struct{}
	cancelOne sync.Once
}

// NewRecord creates a record for a freshly created job.
func NewRecord(id, keyword string, targetCount int, filters domain.Filters) *Record {
	now := time.Now()
	r := &Record{
		job: &domain.Job{
			ID:          id,
			Keyword:     keyword,
			TargetCount: targetCount,
			Filters:     filters,
			State:       domain.JobPending,
			Channels:    make([]*domain.Channel, 0, targetCount),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		cancelled: make(chan struct{}),
	}
	r.minSubscribers, r.hasMinFilter = minSubscribersFilter(filters)
	return r
}

// minSubscribersFilter reads the min_subscribers key from the filter bag.
func minSubscribersFilter(filters domain.Filters) (int64, bool) {
	raw, ok := filters[minSubscribersKey]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// ID returns the job id.
func (r *Record) ID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.ID
}

// keyword returns the search keyword the job was created with.
func (r *Record) keyword() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.Keyword
}

// targetCount returns the requested number of channels.
func (r *Record) targetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.TargetCount
}

// State returns the current job state.
func (r *Record) State() domain.JobState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.State
}

// SetState transitions the job to state. Transitions out of a terminal
// state are ignored; the first terminal state wins.
func (r *Record) SetState(state domain.JobState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.State.IsTerminal() {
		return
	}
	r.job.State = state
	r.job.UpdatedAt = time.Now()
}

// Fail moves the job to failed with a cause, unless already terminal.
func (r *Record) Fail(cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.State.IsTerminal() {
		return
	}
	r.job.State = domain.JobFailed
	if cause != nil {
		r.job.Error = cause.Error()
	}
	r.job.UpdatedAt = time.Now()
}

// Cancel transitions to cancelled if not already terminal and signals the
// cancellation channel. Idempotent: the second call is a no-op.
func (r *Record) Cancel() {
	r.mu.Lock()
	if !r.job.State.IsTerminal() {
		r.job.State = domain.JobCancelled
		r.job.UpdatedAt = time.Now()
	}
	r.mu.Unlock()

	r.cancelOne.Do(func() { close(r.cancelled) })
}

// Cancelled exposes the cancellation signal for cooperative checks.
func (r *Record) Cancelled() <-chan struct{} {
	return r.cancelled
}

// IsCancelled reports whether cancellation was requested.
func (r *Record) IsCancelled() bool {
	select {
	case <-r.cancelled:
		return true
	default:
		return false
	}
}

// Append adds freshly discovered channels with sequential ranks. This is the
// collector's sink; it is the only way channels enter the record.
func (r *Record) Append(channels []*domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range channels {
		ch.Rank = len(r.job.Channels)
		if ch.Enrichment == "" {
			ch.Enrichment = domain.EnrichmentPending
		}
		r.job.Channels = append(r.job.Channels, ch)
	}
	r.job.Stats.Discovered = len(r.job.Channels)
	r.job.UpdatedAt = time.Now()
	return nil
}

// Count returns how many channels have been discovered.
func (r *Record) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.job.Channels)
}

// FinishCollection marks that no further channels will be appended, letting
// the enrichment feed distinguish "not yet" from "never".
func (r *Record) FinishCollection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectionDone = true
}

// NextPending claims the lowest-ranked pending channel, moving it to
// enriching, so partial results fill in from the front of the list. Returns
// enrich.ErrNoPending while collection may still produce work and
// enrich.ErrDrained once it cannot.
func (r *Record) NextPending() (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.job.Channels {
		if ch.Enrichment == domain.EnrichmentPending {
			ch.Enrichment = domain.EnrichmentEnriching
			// Hand out a shallow copy; workers never touch the shared slice.
			claimed := *ch
			return &claimed, nil
		}
	}

	if r.collectionDone {
		return nil, enrich.ErrDrained
	}
	return nil, enrich.ErrNoPending
}

// CompleteEnrichment writes both field groups and flips the channel to
// enriched in one critical section, so the write is all-or-nothing for any
// reader.
func (r *Record) CompleteEnrichment(identity string, metrics *domain.Metrics, contacts *domain.Contacts) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.findLocked(identity)
	if ch == nil || ch.Enrichment == domain.EnrichmentEnriched {
		return
	}

	ch.Metrics = metrics
	ch.Contacts = contacts
	ch.Enrichment = domain.EnrichmentEnriched

	r.job.Stats.Enriched++
	if r.passesFilterLocked(ch) {
		r.job.Stats.PassingFilter++
	}
	r.job.UpdatedAt = time.Now()
}

// FailEnrichment marks a channel's enrichment as failed after retries were
// exhausted. The field groups stay empty; this is reported, not raised.
func (r *Record) FailEnrichment(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.findLocked(identity)
	if ch == nil || ch.Enrichment == domain.EnrichmentEnriched {
		return
	}
	ch.Enrichment = domain.EnrichmentFailed
	r.job.UpdatedAt = time.Now()
}

// ReleasePending returns a claimed channel to pending, used when a worker
// observes cancellation before starting its fetch.
func (r *Record) ReleasePending(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := r.findLocked(identity)
	if ch != nil && ch.Enrichment == domain.EnrichmentEnriching {
		ch.Enrichment = domain.EnrichmentPending
	}
}

// findLocked locates a channel by identity. Caller holds the lock.
func (r *Record) findLocked(identity string) *domain.Channel {
	for _, ch := range r.job.Channels {
		if ch.Identity == identity {
			return ch
		}
	}
	return nil
}

// passesFilterLocked evaluates the min_subscribers filter for an enriched
// channel. Without the filter every enriched channel passes; with it, a
// channel with an unknown subscriber count does not pass.
func (r *Record) passesFilterLocked(ch *domain.Channel) bool {
	if !r.hasMinFilter {
		return true
	}
	if ch.Metrics == nil || ch.Metrics.Subscribers == nil {
		return false
	}
	return *ch.Metrics.Subscribers >= r.minSubscribers
}

// Snapshot returns a consistent read-only copy for the status API. Channel
// structs are copied so concurrent enrichment writes cannot tear a reader's
// view.
func (r *Record) Snapshot() *domain.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]*domain.Channel, len(r.job.Channels))
	for i, ch := range r.job.Channels {
		copied := *ch
		channels[i] = &copied
	}

	return &domain.Snapshot{
		ID:              r.job.ID,
		Keyword:         r.job.Keyword,
		TargetCount:     r.job.TargetCount,
		State:           r.job.State,
		Channels:        channels,
		Stats:           r.job.Stats,
		ProgressPercent: r.progressLocked(),
		Error:           r.job.Error,
		CreatedAt:       r.job.CreatedAt,
		UpdatedAt:       r.job.UpdatedAt,
	}
}

// Identities returns every discovered identity, for session bookkeeping.
func (r *Record) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.job.Channels))
	for i, ch := range r.job.Channels {
		ids[i] = ch.Identity
	}
	return ids
}

// collectShare is the share of overall progress attributed to discovery;
// the rest tracks enrichment.
const collectShare = 0.4

// progressLocked blends the collection share with the enrichment share.
// Terminal jobs always report 100.
func (r *Record) progressLocked() float64 {
	if r.job.State.IsTerminal() {
		return 100
	}
	if r.job.TargetCount <= 0 {
		return 0
	}

	collected := float64(len(r.job.Channels)) / float64(r.job.TargetCount)
	if collected > 1 {
		collected = 1
	}

	enriched := 0.0
	if len(r.job.Channels) > 0 {
		done := 0
		for _, ch := range r.job.Channels {
			if ch.Enrichment == domain.EnrichmentEnriched || ch.Enrichment == domain.EnrichmentFailed {
				done++
			}
		}
		enriched = float64(done) / float64(len(r.job.Channels))
	}

	return (collectShare*collected + (1-collectShare)*enriched) * 100
}
