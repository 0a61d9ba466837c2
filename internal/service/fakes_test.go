package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// fakeLedger scripts accept/settle behavior per call.
type fakeLedger struct {
	mu sync.Mutex

	params    domain.LedgerParams
	spendable *big.Int
	wallet    *big.Int

	nextBetID    uint64
	acceptErr    error
	acceptRevert string

	settleErr     error
	settleReverts map[uint64]string // betID -> revert reason

	acceptCalls []acceptCall
	settleCalls []settleCall
}

type acceptCall struct {
	over, under string
	amount      *big.Int
	deadline    uint64
}

type settleCall struct {
	betID    uint64
	overWins bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		params: domain.LedgerParams{
			SafetyMargin: 5,
			MaxBetSize:   big.NewInt(1e18),
		},
		spendable:     big.NewInt(1e18),
		wallet:        big.NewInt(1e18),
		nextBetID:     1000,
		settleReverts: map[uint64]string{},
	}
}

func (f *fakeLedger) AcceptBet(_ context.Context, over, under, _ string, amount, _ *big.Int, deadline uint64) (domain.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acceptCalls = append(f.acceptCalls, acceptCall{over: over, under: under, amount: amount, deadline: deadline})
	if f.acceptErr != nil {
		return domain.SubmitResult{}, f.acceptErr
	}
	if f.acceptRevert != "" {
		return domain.SubmitResult{Reverted: true, TxHash: "0xdead", RevertReason: f.acceptRevert}, nil
	}
	f.nextBetID++
	return domain.SubmitResult{TxHash: "0xaccept", BetID: f.nextBetID}, nil
}

func (f *fakeLedger) SettleBet(_ context.Context, betID uint64, overWins bool) (domain.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleCalls = append(f.settleCalls, settleCall{betID: betID, overWins: overWins})
	if f.settleErr != nil {
		return domain.SubmitResult{}, f.settleErr
	}
	if reason, ok := f.settleReverts[betID]; ok {
		return domain.SubmitResult{Reverted: true, TxHash: "0xdead", RevertReason: reason}, nil
	}
	return domain.SubmitResult{TxHash: fmt.Sprintf("0xsettle%d", betID)}, nil
}

func (f *fakeLedger) SpendableBalance(context.Context, string) (*big.Int, error) {
	return new(big.Int).Set(f.spendable), nil
}

func (f *fakeLedger) WalletBalance(context.Context, string) (*big.Int, error) {
	return new(big.Int).Set(f.wallet), nil
}

func (f *fakeLedger) Params() domain.LedgerParams { return f.params }

// fakePosition reports a fixed ledger position, or an error.
type fakePosition struct {
	pos uint64
	err error
}

func (f *fakePosition) CurrentPosition(context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pos, nil
}

// fakeOracle serves fixed prices per token id.
type fakeOracle struct {
	prices map[int64]float64
	err    error
}

func (f *fakeOracle) TokenByID(_ context.Context, id int64) (domain.Token, error) {
	return domain.Token{ID: id, Symbol: "TST", Name: "Test", Rank: 1}, nil
}

func (f *fakeOracle) TokensByExpr(context.Context, string) ([]domain.Token, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeOracle) PriceByID(_ context.Context, id int64) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	p, ok := f.prices[id]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return p, nil
}

// fakeStore is an in-memory BetStore recording call order.
type fakeStore struct {
	mu        sync.Mutex
	bets      map[uint64]domain.ActiveBet
	insertErr error
	deleteErr error
	deleted   []uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{bets: map[uint64]domain.ActiveBet{}}
}

func (f *fakeStore) Insert(_ context.Context, bet domain.ActiveBet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.bets[bet.ID] = bet
	return nil
}

func (f *fakeStore) DeleteByID(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.bets, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) Scan(context.Context) ([]domain.ActiveBet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ActiveBet, 0, len(f.bets))
	for _, b := range f.bets {
		out = append(out, b)
	}
	return out, nil
}

// fakeUsers is an in-memory UserDirectory.
type fakeUsers struct {
	users map[int64]domain.User
}

func newFakeUsers(users ...domain.User) *fakeUsers {
	m := make(map[int64]domain.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUsers{users: m}
}

func (f *fakeUsers) ByID(_ context.Context, id int64) (domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ByName(_ context.Context, name string) (domain.User, error) {
	for _, u := range f.users {
		if u.Name == name {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (f *fakeUsers) Upsert(_ context.Context, u domain.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id int64) error {
	delete(f.users, id)
	return nil
}

// fakeNotifier records delivered summaries.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	chats []int64
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.chats = append(f.chats, chatID)
	return nil
}

// fixedPrice is a PriceSource returning a constant.
type fixedPrice float64

func (p fixedPrice) Price(context.Context) float64 { return float64(p) }
