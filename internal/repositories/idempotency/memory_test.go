package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ClaimCompleteLookup(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	ok, err := s.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "k1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	id, found, err := s.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, id, "claim without result is in progress")

	require.NoError(t, s.Complete(ctx, "k1", "pay-1", time.Hour))
	id, found, err = s.Lookup(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "pay-1", id)
}

func TestMemoryStore_ReleaseOnlyDropsPending(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()

	_, _ = s.Claim(ctx, "pending", time.Hour)
	require.NoError(t, s.Release(ctx, "pending"))
	_, found, _ := s.Lookup(ctx, "pending")
	assert.False(t, found)

	_, _ = s.Claim(ctx, "done", time.Hour)
	require.NoError(t, s.Complete(ctx, "done", "pay-2", time.Hour))
	require.NoError(t, s.Release(ctx, "done"))
	id, found, _ := s.Lookup(ctx, "done")
	assert.True(t, found)
	assert.Equal(t, "pay-2", id)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(0)
	defer s.Close()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _ = s.Claim(ctx, "k", time.Minute)
	now = now.Add(2 * time.Minute)

	_, found, _ := s.Lookup(ctx, "k")
	assert.False(t, found)

	ok, _ := s.Claim(ctx, "k", time.Minute)
	assert.True(t, ok, "expired key can be claimed again")

	now = now.Add(2 * time.Minute)
	s.cleanup()
	assert.Equal(t, 0, s.Size())
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
