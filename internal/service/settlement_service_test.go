package service

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/alanyoungcy/pvpbet/internal/queue"
)

type settlementFixture struct {
	svc      *SettlementService
	queue    *queue.ExpiryQueue
	store    *fakeStore
	ledger   *fakeLedger
	oracle   *fakeOracle
	position *fakePosition
	notifier *fakeNotifier
}

func newSettlementFixture(t *testing.T, position uint64) *settlementFixture {
	t.Helper()
	f := &settlementFixture{
		queue:    queue.New(),
		store:    newFakeStore(),
		ledger:   newFakeLedger(),
		oracle:   &fakeOracle{prices: map[int64]float64{1027: 150}},
		position: &fakePosition{pos: position},
		notifier: &fakeNotifier{},
	}
	f.svc = NewSettlementService(SettlementDeps{
		Queue:    f.queue,
		Store:    f.store,
		Users:    newFakeUsers(domain.User{ID: 1, Name: "alice"}, domain.User{ID: 2, Name: "bob"}),
		Ledger:   f.ledger,
		Position: f.position,
		Oracle:   f.oracle,
		Notifier: f.notifier,
		Logger:   testLogger(),
	})
	return f
}

func activeBet(id uint64, deadline uint64, line float64) domain.ActiveBet {
	price, _ := domain.ParsePriceToFixed(line)
	return domain.ActiveBet{
		ID:            id,
		ChatID:        -500,
		OverUserID:    1,
		UnderUserID:   2,
		Amount:        big.NewInt(1e17),
		Deadline:      deadline,
		Price:         price,
		TokenResolver: domain.ResolverCMCIntID,
		TokenRef:      "1027",
	}
}

func (f *settlementFixture) add(t *testing.T, bet domain.ActiveBet) {
	t.Helper()
	require.NoError(t, f.store.Insert(context.Background(), bet))
	f.queue.Push(bet)
}

func TestSettleOutstanding_DrainsEligibleInOrder(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))
	f.add(t, activeBet(2, 20, 100))
	f.add(t, activeBet(3, 30, 100))

	results, err := f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)

	// Exactly the bets at 10 and 20 settle, in deadline order.
	require.Len(t, results, 2)
	assert.Equal(t, uint64(1), results[0].Bet.ID)
	assert.Equal(t, uint64(2), results[1].Bet.ID)
	assert.True(t, results[0].Settled())
	assert.True(t, results[1].Settled())

	// Bet 3 remains queued and durable.
	assert.Equal(t, 1, f.queue.Len())
	assert.Contains(t, f.store.bets, uint64(3))
	assert.Equal(t, []uint64{1, 2}, f.store.deleted)
}

func TestSettleOutstanding_PositionUnavailableAbortsTick(t *testing.T) {
	f := newSettlementFixture(t, 0)
	f.position.err = domain.ErrPositionUnavailable
	f.add(t, activeBet(1, 10, 100))

	_, err := f.svc.SettleOutstanding(context.Background())
	assert.ErrorIs(t, err, domain.ErrPositionUnavailable)

	// No partial progress: the bet was never popped.
	assert.Equal(t, 1, f.queue.Len())
	assert.Empty(t, f.ledger.settleCalls)
}

func TestSettleOutstanding_FailureRetriedNextTickOnly(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))
	f.oracle.err = domain.ErrPriceUnavailable

	results, err := f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Settled())

	// Requeued after the loop, not retried within the same invocation.
	assert.Equal(t, 1, f.queue.Len())
	assert.Contains(t, f.store.bets, uint64(1))
	assert.Empty(t, f.ledger.settleCalls)

	// Next tick, with the oracle healthy again, the bet settles.
	f.oracle.err = nil
	results, err = f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Settled())
	assert.Equal(t, 0, f.queue.Len())
	assert.NotContains(t, f.store.bets, uint64(1))
}

func TestSettleOutstanding_OneFailureDoesNotBlockOthers(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))
	f.add(t, activeBet(2, 20, 100))
	f.ledger.settleReverts[1] = "something unexpected"

	results, err := f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Settled())
	assert.True(t, results[1].Settled())

	// The failed bet waits for the next tick; the settled one is gone.
	assert.Equal(t, 1, f.queue.Len())
	assert.Contains(t, f.store.bets, uint64(1))
	assert.NotContains(t, f.store.bets, uint64(2))
}

func TestSettleOutstanding_AlreadySettledIsIdempotentSuccess(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))
	f.ledger.settleReverts[1] = "bet has already been settled or invalidated"

	results, err := f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Final state, not requeued, durable row deleted.
	assert.True(t, results[0].Settled())
	assert.True(t, results[0].Duplicate)
	assert.Equal(t, 0, f.queue.Len())
	assert.NotContains(t, f.store.bets, uint64(1))
}

func TestSettleBet_OutcomeAndTiePolicy(t *testing.T) {
	f := newSettlementFixture(t, 25)

	// Resolved 150 against a line of 100: over wins.
	res := f.svc.settleBet(context.Background(), activeBet(1, 10, 100))
	require.NoError(t, res.Err)
	assert.True(t, res.OverWins)

	// Resolved 150 against a line of 200: under wins.
	res = f.svc.settleBet(context.Background(), activeBet(2, 10, 200))
	require.NoError(t, res.Err)
	assert.False(t, res.OverWins)

	// Exact tie settles under: over needs a strict rise.
	res = f.svc.settleBet(context.Background(), activeBet(3, 10, 150))
	require.NoError(t, res.Err)
	assert.False(t, res.OverWins)
}

func TestSettleBet_UnknownResolverIsHardFailure(t *testing.T) {
	f := newSettlementFixture(t, 25)

	bet := activeBet(1, 10, 100)
	bet.TokenResolver = "oracle_v9"
	res := f.svc.settleBet(context.Background(), bet)
	require.Error(t, res.Err)
	assert.Empty(t, f.ledger.settleCalls)
}

func TestSettleOutstanding_NotifiesChat(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))

	_, err := f.svc.SettleOutstanding(context.Background())
	require.NoError(t, err)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, []int64{-500}, f.notifier.chats)
	assert.Contains(t, f.notifier.sent[0], "@alice")
	assert.Contains(t, f.notifier.sent[0], "@bob")
}

func TestLoadActive_RebuildsQueue(t *testing.T) {
	f := newSettlementFixture(t, 0)
	require.NoError(t, f.store.Insert(context.Background(), activeBet(1, 10, 100)))
	require.NoError(t, f.store.Insert(context.Background(), activeBet(2, 30, 100)))

	require.NoError(t, f.svc.LoadActive(context.Background()))
	assert.Equal(t, 2, f.queue.Len())

	deadline, ok := f.queue.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(10), deadline)
}

func TestTick_SkipsWhenLockHeld(t *testing.T) {
	f := newSettlementFixture(t, 25)
	f.add(t, activeBet(1, 10, 100))
	f.svc.locks = lockAlwaysHeld{}

	results, err := f.svc.Tick(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 1, f.queue.Len())
}

type lockAlwaysHeld struct{}

func (lockAlwaysHeld) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}
