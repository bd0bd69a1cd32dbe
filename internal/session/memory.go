package session

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/logger"
)

// DefaultTTL is how long an idle session survives.
const DefaultTTL = 24 * time.Hour

// entry pairs a stored session with its last-touched time for expiry.
type entry struct {
	session *domain.Session
	touched time.Time
}

// MemoryStore keeps sessions in process memory. Suitable for single-instance
// deployments and tests; use RedisStore when jobs must survive restarts.
type MemoryStore struct {
	mu            sync.RWMutex
	byID          map[string]*entry
	byFingerprint map[string]string

	ttl     time.Duration
	logger  logger.Interface
	sweeper *cron.Cron
}

// NewMemoryStore creates an in-memory store with a background expiry sweep.
func NewMemoryStore(ttl time.Duration, log logger.Interface) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &MemoryStore{
		byID:          make(map[string]*entry),
		byFingerprint: make(map[string]string),
		ttl:           ttl,
		logger:        log,
	}

	s.sweeper = cron.New()
	if _, err := s.sweeper.AddFunc("@every 1m", s.sweepExpired); err == nil {
		s.sweeper.Start()
	}

	return s
}

// Close stops the expiry sweeper.
func (s *MemoryStore) Close() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
}

// Get loads a session by id.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	return copySession(e.session), nil
}

// GetByFingerprint loads the session for a keyword and filter fingerprint.
func (s *MemoryStore) GetByFingerprint(_ context.Context, keyword, fingerprint string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byFingerprint[fingerprintKey(keyword, fingerprint)]
	if !ok {
		return nil, ErrNotFound
	}
	e, ok := s.byID[id]
	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	return copySession(e.session), nil
}

// Save upserts a session and resets its expiry clock.
func (s *MemoryStore) Save(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[session.ID] = &entry{
		session: copySession(session),
		touched: time.Now(),
	}
	s.byFingerprint[fingerprintKey(session.Keyword, session.FiltersFingerprint)] = session.ID
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byID[id]; ok {
		delete(s.byFingerprint, fingerprintKey(e.session.Keyword, e.session.FiltersFingerprint))
		delete(s.byID, id)
	}
	return nil
}

// expired reports whether the entry has outlived the TTL. Caller holds a lock.
func (s *MemoryStore) expired(e *entry) bool {
	return time.Since(e.touched) > s.ttl
}

// sweepExpired removes sessions that have outlived the TTL.
func (s *MemoryStore) sweepExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.byID {
		if time.Since(e.touched) > s.ttl {
			delete(s.byFingerprint, fingerprintKey(e.session.Keyword, e.session.FiltersFingerprint))
			delete(s.byID, id)
			if s.logger != nil {
				s.logger.Debug("session expired", "session_id", id)
			}
		}
	}
}

// fingerprintKey joins keyword and fingerprint into one index key.
func fingerprintKey(keyword, fingerprint string) string {
	return keyword + "\x00" + fingerprint
}

// copySession returns a deep enough copy that callers cannot mutate stored
// state through the returned pointer.
func copySession(in *domain.Session) *domain.Session {
	out := *in
	out.KnownIdentities = append([]string(nil), in.KnownIdentities...)
	return &out
}
