// Package session persists continuation state across jobs: which ranks the
// client has acknowledged and which identities it has already been shown.
package session

import (
	"context"
	"errors"

	"github.com/jonesrussell/channelscout/internal/domain"
)

// ErrNotFound is returned when no session matches the lookup.
var ErrNotFound = errors.New("session not found")

// Store is the persistence interface for sessions. Implementations must be
// safe for concurrent use.
type Store interface {
	// Get loads a session by id.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// GetByFingerprint loads the session for a keyword and filter
	// fingerprint. Distinct filter sets never share a session.
	GetByFingerprint(ctx context.Context, keyword, fingerprint string) (*domain.Session, error)

	// Save upserts a session and refreshes its expiry.
	Save(ctx context.Context, session *domain.Session) error

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
