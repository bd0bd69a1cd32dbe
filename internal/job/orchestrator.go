package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/channelscout/internal/collector"
	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/enrich"
	"github.com/jonesrussell/channelscout/internal/fetch"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// SessionStore persists continuation records.
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByFingerprint(ctx context.Context, keyword, fingerprint string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
}

// Archiver stores terminal job snapshots durably. Best-effort: archive
// failures are logged, never raised.
type Archiver interface {
	ArchiveJob(ctx context.Context, snapshot *domain.Snapshot) error
}

// ListingParser re-exports the collector's parser dependency for wiring.
type ListingParser = collector.ListingParser

// Config holds the orchestrator tunables.
type Config struct {
	Collector collector.Config
	Enrich    enrich.Config

	// DrainTimeout bounds how long a completed collection waits for the
	// enrichment tail. Channels still pending afterwards stay pending.
	DrainTimeout time.Duration

	// RetentionWindow is how long terminal jobs stay queryable.
	RetentionWindow time.Duration
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		Collector:       collector.DefaultConfig(),
		Enrich:          enrich.DefaultConfig(),
		DrainTimeout:    2 * time.Minute,
		RetentionWindow: 30 * time.Minute,
	}
}

// runningJob couples a record with its run cancellation and session.
type runningJob struct {
	record    *Record
	cancelRun context.CancelFunc
	sessionID string
	doneAt    time.Time
}

// Orchestrator owns the job registry and drives each job through
// collection and enrichment.
type Orchestrator struct {
	cfg       Config
	fetcher   fetch.Fetcher
	parser    ListingParser
	listURL   collector.ListingURLBuilder
	detailURL enrich.DetailURLBuilder
	extractor enrich.FieldExtractor
	contacts  enrich.ContactResolver
	sessions  SessionStore
	archiver  Archiver
	logger    logger.Interface

	rootCtx context.Context

	mu   sync.RWMutex
	jobs map[string]*runningJob

	sweeper *cron.Cron
}

// Params holds the orchestrator's dependencies.
type Params struct {
	Config    Config
	Fetcher   fetch.Fetcher
	Parser    ListingParser
	ListURL   collector.ListingURLBuilder
	DetailURL enrich.DetailURLBuilder
	Extractor enrich.FieldExtractor
	Contacts  enrich.ContactResolver
	Sessions  SessionStore
	Archiver  Archiver
	Logger    logger.Interface
}

// NewOrchestrator creates an orchestrator. Archiver may be nil.
func NewOrchestrator(ctx context.Context, p Params) (*Orchestrator, error) {
	if p.Fetcher == nil || p.Parser == nil || p.ListURL == nil || p.DetailURL == nil {
		return nil, errors.New("fetcher, parser and url builders are required")
	}
	if p.Extractor == nil || p.Contacts == nil {
		return nil, errors.New("extractor and contact resolver are required")
	}
	if p.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	o := &Orchestrator{
		cfg:       p.Config,
		fetcher:   p.Fetcher,
		parser:    p.Parser,
		listURL:   p.ListURL,
		detailURL: p.DetailURL,
		extractor: p.Extractor,
		contacts:  p.Contacts,
		sessions:  p.Sessions,
		archiver:  p.Archiver,
		logger:    p.Logger.WithComponent("orchestrator"),
		rootCtx:   ctx,
		jobs:      make(map[string]*runningJob),
	}

	o.sweeper = cron.New()
	if _, err := o.sweeper.AddFunc("@every 1m", o.sweepTerminalJobs); err != nil {
		return nil, fmt.Errorf("schedule job sweeper: %w", err)
	}
	o.sweeper.Start()

	return o, nil
}

// Close stops background maintenance. Running jobs keep their own contexts.
func (o *Orchestrator) Close() {
	if o.sweeper != nil {
		o.sweeper.Stop()
	}
}

// CreateJob validates the request, registers a new job and starts its run.
func (o *Orchestrator) CreateJob(ctx context.Context, keyword string, targetCount int, filters domain.Filters) (string, error) {
	if keyword == "" {
		return "", ErrEmptyKeyword
	}
	if targetCount <= 0 {
		return "", ErrInvalidTargetCount
	}

	session, err := o.getOrCreateSession(ctx, keyword, filters)
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}

	return o.startJob(keyword, targetCount, filters, session, nil)
}

// Continue resumes a session with a request for additional channels. Either
// sessionID or keyword identifies the session; identities the session has
// already surfaced are never re-emitted.
func (o *Orchestrator) Continue(ctx context.Context, sessionID, keyword string, filters domain.Filters, additionalCount int) (string, error) {
	if additionalCount <= 0 {
		return "", ErrInvalidTargetCount
	}

	var session *domain.Session
	var err error

	switch {
	case sessionID != "":
		session, err = o.sessions.Get(ctx, sessionID)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
	case keyword != "":
		session, err = o.getOrCreateSession(ctx, keyword, filters)
		if err != nil {
			return "", fmt.Errorf("resolve session: %w", err)
		}
	default:
		return "", ErrEmptyKeyword
	}

	known := make(map[string]struct{}, len(session.KnownIdentities))
	for _, id := range session.KnownIdentities {
		known[id] = struct{}{}
	}

	return o.startJob(session.Keyword, additionalCount, filters, session, known)
}

// startJob registers the record and launches the run goroutine.
func (o *Orchestrator) startJob(
	keyword string,
	targetCount int,
	filters domain.Filters,
	session *domain.Session,
	known map[string]struct{},
) (string, error) {
	record := NewRecord(uuid.New().String(), keyword, targetCount, filters)
	runCtx, cancelRun := context.WithCancel(o.rootCtx)

	o.mu.Lock()
	o.jobs[record.ID()] = &runningJob{
		record:    record,
		cancelRun: cancelRun,
		sessionID: session.ID,
	}
	o.mu.Unlock()

	o.logger.Info("job created",
		"job_id", record.ID(),
		"keyword", keyword,
		"target_count", targetCount,
		"session_id", session.ID,
	)

	go o.run(runCtx, record, known)

	return record.ID(), nil
}

// GetStatus returns a snapshot of the job. Never blocks on job progress.
func (o *Orchestrator) GetStatus(jobID string) (*domain.Snapshot, error) {
	entry := o.lookup(jobID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return entry.record.Snapshot(), nil
}

// Cancel requests cooperative cancellation. Idempotent: cancelling a
// terminal job is a no-op, not an error.
func (o *Orchestrator) Cancel(jobID string) error {
	entry := o.lookup(jobID)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if entry.record.State().IsTerminal() {
		return nil
	}

	entry.record.Cancel()
	entry.cancelRun()
	o.logger.Info("job cancelled", "job_id", jobID)
	return nil
}

// Acknowledge records that the client has displayed everything up to rank.
// Only this call moves the session's high-water mark; background enrichment
// never does, so a slow client cannot lose channels.
func (o *Orchestrator) Acknowledge(ctx context.Context, jobID string, rank int) error {
	entry := o.lookup(jobID)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	session, err := o.sessions.Get(ctx, entry.sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	session.AdvanceRank(rank)
	for _, ch := range entry.record.Snapshot().Channels {
		if ch.Rank <= rank {
			session.Remember(ch.Identity)
		}
	}
	session.UpdatedAt = time.Now()

	if err := o.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// lookup finds a running job by id.
func (o *Orchestrator) lookup(jobID string) *runningJob {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.jobs[jobID]
}

// getOrCreateSession finds the session for (keyword, filters) or creates one.
func (o *Orchestrator) getOrCreateSession(ctx context.Context, keyword string, filters domain.Filters) (*domain.Session, error) {
	fingerprint := domain.FingerprintFilters(filters)

	session, err := o.sessions.GetByFingerprint(ctx, keyword, fingerprint)
	if err == nil {
		return session, nil
	}

	now := time.Now()
	session = &domain.Session{
		ID:                 uuid.New().String(),
		Keyword:            keyword,
		FiltersFingerprint: fingerprint,
		LastEmittedRank:    -1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// run drives one job through its phases. The collector walks the listing
// sequentially while the enrichment pool consumes appended channels
// concurrently; clients see the two as named phases.
func (o *Orchestrator) run(ctx context.Context, record *Record, known map[string]struct{}) {
	log := o.logger.With("job_id", record.ID())

	coll, err := collector.New(o.cfg.Collector, o.fetcher, o.parser, o.listURL, log)
	if err != nil {
		record.Fail(err)
		o.finishJob(record)
		return
	}

	pool, err := enrich.NewPool(o.cfg.Enrich, o.fetcher, o.extractor, o.contacts, o.detailURL, log)
	if err != nil {
		record.Fail(err)
		o.finishJob(record)
		return
	}

	record.SetState(domain.JobCollecting)

	g, gctx := errgroup.WithContext(ctx)

	collectDone := make(chan struct{})
	var collectResult *collector.Result
	g.Go(func() error {
		defer close(collectDone)
		defer record.FinishCollection()

		result, runErr := coll.Run(gctx, record.keyword(), record.targetCount(), known, record)
		collectResult = result
		if runErr != nil {
			return runErr
		}
		record.SetState(domain.JobStreaming)
		return nil
	})

	g.Go(func() error {
		// Bound the tail drain so a slow detail source cannot hold a
		// finished collection open forever. The drain clock only starts once
		// collection ends; channels still pending when the window closes are
		// surfaced as pending, not failed.
		drainCtx, cancel := drainContext(gctx, collectDone, o.cfg.DrainTimeout)
		defer cancel()
		return pool.Run(drainCtx, record, record)
	})

	err = g.Wait()

	switch {
	case record.IsCancelled():
		// State already set by Cancel.
		log.Info("job run ended after cancellation")
	case err != nil && errors.Is(err, collector.ErrNoProgress):
		record.Fail(err)
		log.Error("job failed", "error", err.Error())
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		record.SetState(domain.JobCompleted)
	case err != nil:
		record.Fail(err)
		log.Error("job failed", "error", err.Error())
	default:
		record.SetState(domain.JobCompleted)
		if collectResult != nil {
			log.Info("job completed",
				"discovered", collectResult.Discovered,
				"converged", collectResult.Converged,
			)
		}
	}

	o.finishJob(record)
}

// drainContext returns a context that is cancelled once the drain window has
// elapsed after collectDone closes. The enrichment phase itself is unbounded;
// only the tail left over after collection runs on the clock.
func drainContext(parent context.Context, collectDone <-chan struct{}, drain time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if drain <= 0 {
		return ctx, cancel
	}

	go func() {
		select {
		case <-collectDone:
		case <-ctx.Done():
			return
		}

		timer := time.NewTimer(drain)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// finishJob archives the terminal snapshot and stamps the record for GC.
func (o *Orchestrator) finishJob(record *Record) {
	snapshot := record.Snapshot()

	if o.archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(o.rootCtx), 10*time.Second)
		defer cancel()
		if err := o.archiver.ArchiveJob(archiveCtx, snapshot); err != nil {
			o.logger.Warn("job archive failed",
				"job_id", snapshot.ID,
				"error", err.Error(),
			)
		}
	}

	o.mu.Lock()
	if entry, ok := o.jobs[snapshot.ID]; ok {
		entry.doneAt = time.Now()
	}
	o.mu.Unlock()
}

// sweepTerminalJobs drops terminal jobs older than the retention window.
func (o *Orchestrator) sweepTerminalJobs() {
	cutoff := time.Now().Add(-o.cfg.RetentionWindow)

	o.mu.Lock()
	defer o.mu.Unlock()

	for id, entry := range o.jobs {
		if entry.record.State().IsTerminal() && !entry.doneAt.IsZero() && entry.doneAt.Before(cutoff) {
			delete(o.jobs, id)
			o.logger.Debug("job garbage collected", "job_id", id)
		}
	}
}
