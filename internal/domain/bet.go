package domain

import (
	"math/big"
	"time"
)

// BetProposal is an unaccepted wager offer. It lives only in the proposal
// registry; its id comes from a bounded namespace and is reused once the
// proposal is accepted, withdrawn, or purged.
type BetProposal struct {
	ID           int
	ChatID       int64
	CreatedAt    time.Time
	ValidTill    time.Time
	CreatedBy    int64
	Counterparty *int64 // nil means open to anyone in the same chat
	CreatorOver  bool
	Amount       *big.Int // wager in wei
	Deadline     uint64   // L1 block number at which the bet settles
	DeadlineExpr string   // the expression the deadline was parsed from
	Price        *big.Int // reference price, 1e18 fixed point USD
	Token        Token
}

// Expired reports whether the offer-validity window has passed.
func (p BetProposal) Expired(now time.Time) bool {
	return p.ValidTill.Before(now)
}

// Sides returns the over and under participant ids. It requires a bound
// counterparty; calling it on an open proposal is a programming error, so it
// falls back to the creator on both sides rather than panicking.
func (p BetProposal) Sides() (over, under int64) {
	counterparty := p.CreatedBy
	if p.Counterparty != nil {
		counterparty = *p.Counterparty
	}
	if p.CreatorOver {
		return p.CreatedBy, counterparty
	}
	return counterparty, p.CreatedBy
}

// ActiveBet is a wager accepted on the ledger, pending settlement. Its id is
// assigned by the contract at acceptance time and is never reused.
type ActiveBet struct {
	ID            uint64
	ChatID        int64
	CreatedAt     int64 // unix seconds
	OverUserID    int64
	UnderUserID   int64
	Amount        *big.Int // wei
	Deadline      uint64   // L1 block number
	Price         *big.Int // 1e18 fixed point USD
	TokenResolver string   // how TokenRef maps to a priceable token
	TokenRef      string
	CreationHash  string
}

// Involves reports whether the given user is on either side of the bet.
func (b ActiveBet) Involves(userID int64) bool {
	return b.OverUserID == userID || b.UnderUserID == userID
}
