package domain

import (
	"context"
	"math/big"
	"strings"
)

// SubmitResult is the outcome of a confirmed ledger transaction. Reverted
// transactions still carry a hash; RevertReason holds the decoded reason
// string when one could be extracted, otherwise empty.
type SubmitResult struct {
	Reverted     bool
	TxHash       string
	RevertReason string
	BetID        uint64 // ledger-assigned bet id, set on a successful accept
}

// LedgerParams are contract constants read once at gateway startup.
type LedgerParams struct {
	SafetyMargin      uint64 // minimum blocks between now and a deadline
	MaxBetSize        *big.Int
	MaxAccountBalance *big.Int
	ReleaseVersion    uint64
}

// Ledger submits transactions to the wager contract and answers balance
// queries. Every method is network I/O; a returned error is a transport
// failure, distinct from a ledger-level revert reported via SubmitResult.
type Ledger interface {
	AcceptBet(ctx context.Context, over, under, tokenRef string, amount, price *big.Int, deadline uint64) (SubmitResult, error)
	SettleBet(ctx context.Context, betID uint64, overWins bool) (SubmitResult, error)
	SpendableBalance(ctx context.Context, addr string) (*big.Int, error)
	WalletBalance(ctx context.Context, addr string) (*big.Int, error)
	Params() LedgerParams
}

// ChainPosition reports the current L1 block number, the clock settlement
// deadlines are measured against.
type ChainPosition interface {
	CurrentPosition(ctx context.Context) (uint64, error)
}

// Revert reason fragments emitted by the wager contract.
const (
	revertMarginTooSmall = "bet expiration too soon"
	revertAlreadyDone    = "bet has already been settled or invalidated"
)

// ClassifyRevert maps a decoded revert reason onto a sentinel error that
// drives a specific recovery branch. Unrecognized reasons return nil and are
// handled generically.
func ClassifyRevert(reason string) error {
	switch {
	case strings.Contains(reason, revertMarginTooSmall):
		return ErrMarginTooSmall
	case strings.Contains(reason, revertAlreadyDone):
		return ErrAlreadySettled
	default:
		return nil
	}
}
