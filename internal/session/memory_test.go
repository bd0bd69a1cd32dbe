package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/logger"
	"github.com/jonesrussell/channelscout/internal/session"
)

func newTestSession(id, keyword string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:                 id,
		Keyword:            keyword,
		FiltersFingerprint: domain.FingerprintFilters(domain.Filters{"min_subscribers": 1000}),
		LastEmittedRank:    -1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, logger.NewNoOp())
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("s1", "cooking")
	sess.Remember("@alpha", "@beta")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "cooking", got.Keyword)
	assert.Equal(t, []string{"@alpha", "@beta"}, got.KnownIdentities)
}

func TestMemoryStore_GetByFingerprint(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, logger.NewNoOp())
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("s1", "cooking")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.GetByFingerprint(ctx, "cooking", sess.FiltersFingerprint)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)

	// A different filter set must not resolve to the same session.
	_, err = store.GetByFingerprint(ctx, "cooking", domain.FingerprintFilters(domain.Filters{"min_subscribers": 5000}))
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, logger.NewNoOp())
	defer store.Close()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, logger.NewNoOp())
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("s1", "cooking")
	sess.Remember("@alpha")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	got.Remember("@mutated")

	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"@alpha"}, again.KnownIdentities,
		"mutating a returned session must not affect stored state")
}

func TestMemoryStore_ExpiredSessionIsGone(t *testing.T) {
	store := session.NewMemoryStore(10*time.Millisecond, logger.NewNoOp())
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("s1", "cooking")
	require.NoError(t, store.Save(ctx, sess))

	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := session.NewMemoryStore(time.Hour, logger.NewNoOp())
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("s1", "cooking")
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Delete(ctx, "s1"))
	require.NoError(t, store.Delete(ctx, "s1"), "double delete must not error")

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = store.GetByFingerprint(ctx, "cooking", sess.FiltersFingerprint)
	assert.ErrorIs(t, err, session.ErrNotFound)
}
