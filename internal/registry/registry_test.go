package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

var base = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func proposal(chatID, creator int64, validFor time.Duration) domain.BetProposal {
	return domain.BetProposal{
		ChatID:    chatID,
		CreatedBy: creator,
		CreatedAt: base,
		ValidTill: base.Add(validFor),
	}
}

func TestAdd_AllocatesSmallestFreeID(t *testing.T) {
	r := New()

	p0, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)
	p1, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)
	p2, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, p0.ID)
	assert.Equal(t, 1, p1.ID)
	assert.Equal(t, 2, p2.ID)

	// Freeing the middle id makes it the next allocation.
	assert.True(t, r.Remove(p1.ID))
	p, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, p.ID)
}

func TestAdd_IDsUniqueAmongPending(t *testing.T) {
	r := New()
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		p, err := r.Add(proposal(1, 10, time.Hour))
		require.NoError(t, err)
		assert.False(t, seen[p.ID], "id %d allocated twice", p.ID)
		seen[p.ID] = true
	}
}

func TestRemove_Idempotent(t *testing.T) {
	r := New()
	p, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)

	assert.True(t, r.Remove(p.ID))
	assert.False(t, r.Remove(p.ID))
	assert.False(t, r.Remove(4242))
}

func TestReinsert(t *testing.T) {
	r := New()
	p, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)

	require.True(t, r.Remove(p.ID))
	assert.True(t, r.Reinsert(p))

	got, ok := r.ByID(p.ID)
	require.True(t, ok)
	assert.Equal(t, p, got)

	// A second reinsert under a taken id is refused.
	assert.False(t, r.Reinsert(p))
}

func TestByChat_PurgesExpired(t *testing.T) {
	r := New()
	fresh, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)
	stale, err := r.Add(proposal(1, 11, time.Minute))
	require.NoError(t, err)
	_, err = r.Add(proposal(2, 12, time.Hour)) // other chat
	require.NoError(t, err)

	now := base.Add(30 * time.Minute)
	live, purged := r.ByChat(1, now)

	require.Len(t, live, 1)
	assert.Equal(t, fresh.ID, live[0].ID)
	assert.Equal(t, []int{stale.ID}, purged)

	// The purge is durable: the expired proposal is gone for every reader.
	_, ok := r.ByID(stale.ID)
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestByUser_MatchesCreatorAndCounterparty(t *testing.T) {
	r := New()
	mine, err := r.Add(proposal(1, 10, time.Hour))
	require.NoError(t, err)

	offered := proposal(1, 11, time.Hour)
	cp := int64(10)
	offered.Counterparty = &cp
	offered, err = r.Add(offered)
	require.NoError(t, err)

	_, err = r.Add(proposal(1, 12, time.Hour)) // unrelated
	require.NoError(t, err)

	live, purged := r.ByUser(10, base)
	assert.Empty(t, purged)
	ids := []int{}
	for _, p := range live {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []int{mine.ID, offered.ID}, ids)
}

func TestByUser_NeverReturnsExpired(t *testing.T) {
	r := New()
	p, err := r.Add(proposal(1, 10, time.Minute))
	require.NoError(t, err)

	live, purged := r.ByUser(10, base.Add(2*time.Minute))
	assert.Empty(t, live)
	assert.Equal(t, []int{p.ID}, purged)
}

func TestAdd_ExhaustedNamespace(t *testing.T) {
	r := New()
	r.alloc.space = 3
	for i := 0; i < 3; i++ {
		_, err := r.Add(proposal(1, 10, time.Hour))
		require.NoError(t, err)
	}
	_, err := r.Add(proposal(1, 10, time.Hour))
	assert.ErrorIs(t, err, domain.ErrIDSpaceExhausted)
}
