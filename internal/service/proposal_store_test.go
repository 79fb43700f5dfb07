package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
)

func proposalAt(id string, requestedAt time.Time) timetableProposal {
	return timetableProposal{
		Response: dto.GenerateTimetableResponse{
			ProposalID:  id,
			TermID:      "term-1",
			RequestedAt: requestedAt,
		},
		Days: []string{"Mon"},
	}
}

func TestMemoryProposalStoreRoundTrip(t *testing.T) {
	store := NewMemoryProposalStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, proposalAt("p-1", time.Now().UTC())))

	got, ok, err := store.Get(ctx, "p-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "term-1", got.Response.TermID)
	assert.Equal(t, []string{"Mon"}, got.Days)
}

func TestMemoryProposalStoreMissingID(t *testing.T) {
	store := NewMemoryProposalStore(time.Hour)

	_, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProposalStoreExpiry(t *testing.T) {
	store := NewMemoryProposalStore(time.Minute)
	ctx := context.Background()

	stale := proposalAt("p-old", time.Now().UTC().Add(-2*time.Minute))
	require.NoError(t, store.Save(ctx, stale))

	_, ok, err := store.Get(ctx, "p-old")
	require.NoError(t, err)
	assert.False(t, ok, "expired proposals are dropped on read")

	// The expired entry is also evicted.
	_, ok, _ = store.Get(ctx, "p-old")
	assert.False(t, ok)
}

func TestMemoryProposalStoreDelete(t *testing.T) {
	store := NewMemoryProposalStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, proposalAt("p-2", time.Now().UTC())))
	require.NoError(t, store.Delete(ctx, "p-2"))

	_, ok, err := store.Get(ctx, "p-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProposalStoreDefaultTTL(t *testing.T) {
	store := NewMemoryProposalStore(0)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, proposalAt("p-3", time.Now().UTC())))
	_, ok, err := store.Get(ctx, "p-3")
	require.NoError(t, err)
	assert.True(t, ok, "zero ttl falls back to the default window")
}
