package domain

import "context"

// SettlementResult is the outcome of one settlement attempt for one bet.
//
// Err == nil means the ledger-side state is final: either this attempt
// settled the bet, or (Duplicate) some other path already had. In both cases
// the bet must leave the working set and the durable store. A non-nil Err is
// retryable; the caller requeues the bet for the next scheduling tick.
type SettlementResult struct {
	Bet       ActiveBet
	OverWins  bool
	TxHash    string
	Summary   string // human-readable outcome, set only on a fresh settlement
	Duplicate bool   // ledger reported the bet already settled or invalidated
	Err       error
}

// Settled reports whether the bet's ledger state is final.
func (r SettlementResult) Settled() bool { return r.Err == nil }

// SettlementArchiver persists final settlement outcomes to long-term storage
// after the bet has left the working set.
type SettlementArchiver interface {
	Archive(ctx context.Context, res SettlementResult) error
}
