// Package service contains the two engine orchestrators: the proposal
// lifecycle (request, withdraw, accept) and the settlement engine that drains
// deadline-eligible bets each tick.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/alanyoungcy/pvpbet/internal/queue"
	"github.com/alanyoungcy/pvpbet/internal/registry"
)

// PriceSource supplies the native-asset price used to size fiat-denominated
// wagers. Implementations never fail; a stale price beats no price here.
type PriceSource interface {
	Price(ctx context.Context) float64
}

// RequestInput carries the user-supplied fields of a new wager offer.
type RequestInput struct {
	ChatID       int64
	RequesterID  int64
	CreatorOver  bool
	Counterparty *int64 // nil means open to anyone in the chat
	OfferWindow  string // e.g. "5m", "2h", "10d"
	AmountExpr   string // e.g. "$10", "0.1ETH"
	DeadlineExpr string // e.g. "30m", "12h", "1mo"
	Price        float64
	Token        domain.Token
}

// ProposalService validates, creates, accepts and withdraws wager proposals.
type ProposalService struct {
	registry *registry.Registry
	queue    *queue.ExpiryQueue
	store    domain.BetStore
	users    domain.UserDirectory
	ledger   domain.Ledger
	position domain.ChainPosition
	sizing   PriceSource
	audit    domain.AuditStore
	logger   *slog.Logger
}

// NewProposalService wires a ProposalService. audit may be nil to skip audit
// logging.
func NewProposalService(
	reg *registry.Registry,
	q *queue.ExpiryQueue,
	store domain.BetStore,
	users domain.UserDirectory,
	ledger domain.Ledger,
	position domain.ChainPosition,
	sizing PriceSource,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ProposalService {
	return &ProposalService{
		registry: reg,
		queue:    q,
		store:    store,
		users:    users,
		ledger:   ledger,
		position: position,
		sizing:   sizing,
		audit:    audit,
		logger:   logger.With(slog.String("component", "proposal_service")),
	}
}

// Request validates a new offer and, on success, registers it under the
// smallest free proposal id. Validation short-circuits on the first failure
// and performs no mutation.
func (s *ProposalService) Request(ctx context.Context, in RequestInput) (domain.BetProposal, error) {
	requester, err := s.users.ByID(ctx, in.RequesterID)
	if err != nil {
		return domain.BetProposal{}, domain.Invalid("you need a registered wallet before wagering")
	}
	if !requester.CanWager() {
		return domain.BetProposal{}, domain.Invalid("your wallet is not verified yet")
	}

	if in.Counterparty != nil {
		cp, err := s.users.ByID(ctx, *in.Counterparty)
		if err != nil {
			return domain.BetProposal{}, domain.Invalid("counterparty is not registered")
		}
		if !cp.CanWager() {
			return domain.BetProposal{}, domain.Invalid("counterparty %s has no verified wallet", cp.Name)
		}
	}

	if !in.Token.Valid() {
		return domain.BetProposal{}, domain.Invalid("unrecognized token")
	}

	window, err := domain.ParseOfferWindow(in.OfferWindow)
	if err != nil {
		return domain.BetProposal{}, err
	}
	now := time.Now()
	validTill := now.Add(window)

	current, err := s.position.CurrentPosition(ctx)
	if err != nil {
		return domain.BetProposal{}, fmt.Errorf("proposal_service: request: %w", err)
	}
	deadline, err := domain.ParseDeadlineExpr(current, in.DeadlineExpr)
	if err != nil {
		return domain.BetProposal{}, err
	}
	params := s.ledger.Params()
	if deadline <= current+params.SafetyMargin {
		return domain.BetProposal{}, domain.Invalid(
			"settlement deadline %q is too soon; it must clear the ledger safety margin of %d blocks",
			in.DeadlineExpr, params.SafetyMargin,
		)
	}

	priceFixed, err := domain.ParsePriceToFixed(in.Price)
	if err != nil {
		return domain.BetProposal{}, err
	}

	amount, err := domain.ParseAmountExpr(in.AmountExpr, s.sizing.Price(ctx))
	if err != nil {
		return domain.BetProposal{}, err
	}
	if amount.Sign() <= 0 {
		return domain.BetProposal{}, domain.Invalid("wager amount must be positive")
	}
	balance, err := s.ledger.WalletBalance(ctx, requester.WalletAddr)
	if err != nil {
		return domain.BetProposal{}, fmt.Errorf("proposal_service: wallet balance: %w", err)
	}
	if amount.Cmp(balance) > 0 {
		return domain.BetProposal{}, domain.Invalid("wager exceeds your ledger balance")
	}
	if params.MaxBetSize != nil && amount.Cmp(params.MaxBetSize) > 0 {
		return domain.BetProposal{}, domain.Invalid("wager exceeds the maximum bet size")
	}

	stored, err := s.registry.Add(domain.BetProposal{
		ChatID:       in.ChatID,
		CreatedAt:    now,
		ValidTill:    validTill,
		CreatedBy:    in.RequesterID,
		Counterparty: in.Counterparty,
		CreatorOver:  in.CreatorOver,
		Amount:       amount,
		Deadline:     deadline,
		DeadlineExpr: in.DeadlineExpr,
		Price:        priceFixed,
		Token:        in.Token,
	})
	if err != nil {
		return domain.BetProposal{}, fmt.Errorf("proposal_service: register offer: %w", err)
	}

	s.auditLog(ctx, "proposal.requested", map[string]any{
		"proposal_id": stored.ID,
		"chat_id":     stored.ChatID,
		"creator":     stored.CreatedBy,
		"deadline":    stored.Deadline,
	})
	s.logger.InfoContext(ctx, "proposal registered",
		slog.Int("proposal_id", stored.ID),
		slog.Int64("chat_id", stored.ChatID),
		slog.Uint64("deadline", stored.Deadline),
	)
	return stored, nil
}

// Withdraw removes a pending proposal. It reports false when no proposal with
// that id is pending.
func (s *ProposalService) Withdraw(ctx context.Context, id int) bool {
	removed := s.registry.Remove(id)
	if removed {
		s.auditLog(ctx, "proposal.withdrawn", map[string]any{"proposal_id": id})
		s.logger.InfoContext(ctx, "proposal withdrawn", slog.Int("proposal_id", id))
	}
	return removed
}

// Accept takes a pending proposal onto the ledger on behalf of caller. The
// proposal leaves the registry before the ledger call; on a failed submission
// it is re-inserted, except when the decoded revert shows the deadline no
// longer clears the safety margin, in which case retrying is pointless and
// the offer is dropped.
func (s *ProposalService) Accept(ctx context.Context, callerID, chatID int64, proposalID int) (domain.ActiveBet, error) {
	caller, err := s.users.ByID(ctx, callerID)
	if err != nil {
		return domain.ActiveBet{}, domain.Invalid("you need a registered wallet before wagering")
	}

	p, ok := s.registry.ByID(proposalID)
	if !ok {
		return domain.ActiveBet{}, domain.Invalid("no open wager with id %d", proposalID)
	}
	if p.ChatID != chatID {
		return domain.ActiveBet{}, domain.Invalid("wager %d belongs to a different chat", proposalID)
	}
	if p.Counterparty != nil && *p.Counterparty != callerID {
		return domain.ActiveBet{}, domain.Invalid("wager %d is reserved for someone else", proposalID)
	}
	if p.Expired(time.Now()) {
		s.registry.Remove(p.ID)
		s.auditLog(ctx, "proposal.expired", map[string]any{"proposal_id": p.ID})
		return domain.ActiveBet{}, domain.Invalid("wager %d has expired", proposalID)
	}
	spendable, err := s.ledger.SpendableBalance(ctx, caller.WalletAddr)
	if err != nil {
		return domain.ActiveBet{}, fmt.Errorf("proposal_service: spendable balance: %w", err)
	}
	if p.Amount.Cmp(spendable) > 0 {
		return domain.ActiveBet{}, domain.Invalid("you need %s wei spendable to take this wager", p.Amount.String())
	}
	if !caller.CanWager() {
		return domain.ActiveBet{}, domain.Invalid("your wallet is not verified yet")
	}

	if p.Counterparty == nil {
		p.Counterparty = &callerID
	}
	overID, underID := p.Sides()
	overUser, err := s.users.ByID(ctx, overID)
	if err != nil {
		return domain.ActiveBet{}, fmt.Errorf("proposal_service: resolve over side: %w", err)
	}
	underUser, err := s.users.ByID(ctx, underID)
	if err != nil {
		return domain.ActiveBet{}, fmt.Errorf("proposal_service: resolve under side: %w", err)
	}

	// Remove before submitting: losing a pending offer on a crash is
	// recoverable by re-requesting, a duplicate accept is not.
	if !s.registry.Remove(p.ID) {
		return domain.ActiveBet{}, domain.Invalid("wager %d is no longer available", proposalID)
	}

	tokenRef := strconv.FormatInt(p.Token.ID, 10)
	res, err := s.ledger.AcceptBet(ctx, overUser.WalletAddr, underUser.WalletAddr, tokenRef, p.Amount, p.Price, p.Deadline)
	if err != nil {
		s.recoverProposal(ctx, p)
		return domain.ActiveBet{}, fmt.Errorf("proposal_service: accept submission: %w", err)
	}
	if res.Reverted {
		if cls := domain.ClassifyRevert(res.RevertReason); cls == domain.ErrMarginTooSmall {
			// Time elapsed during submission; the same deadline would
			// revert again, so the offer is gone for good.
			s.auditLog(ctx, "proposal.expired", map[string]any{
				"proposal_id": p.ID,
				"reason":      res.RevertReason,
			})
			return domain.ActiveBet{}, domain.Invalid("the settlement deadline passed the safety margin while accepting; please re-request")
		}
		s.recoverProposal(ctx, p)
		if res.RevertReason != "" {
			return domain.ActiveBet{}, fmt.Errorf("proposal_service: accept reverted: %s", res.RevertReason)
		}
		return domain.ActiveBet{}, fmt.Errorf("proposal_service: accept reverted (tx %s)", res.TxHash)
	}

	bet := domain.ActiveBet{
		ID:            res.BetID,
		ChatID:        p.ChatID,
		CreatedAt:     time.Now().Unix(),
		OverUserID:    overID,
		UnderUserID:   underID,
		Amount:        p.Amount,
		Deadline:      p.Deadline,
		Price:         p.Price,
		TokenResolver: domain.ResolverCMCIntID,
		TokenRef:      tokenRef,
		CreationHash:  res.TxHash,
	}

	if err := s.store.Insert(ctx, bet); err != nil {
		// The bet is live on the ledger regardless; keep it in the working
		// set so this process can still settle it.
		s.logger.ErrorContext(ctx, "CRITICAL: accepted bet not persisted, queue and store have diverged",
			slog.Uint64("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
	}
	s.queue.Push(bet)

	s.auditLog(ctx, "bet.accepted", map[string]any{
		"bet_id":      bet.ID,
		"proposal_id": p.ID,
		"chat_id":     bet.ChatID,
		"over":        overID,
		"under":       underID,
		"tx_hash":     bet.CreationHash,
	})
	s.logger.InfoContext(ctx, "bet accepted",
		slog.Uint64("bet_id", bet.ID),
		slog.Int64("chat_id", bet.ChatID),
		slog.String("tx_hash", bet.CreationHash),
	)
	return bet, nil
}

// ProposalsByChat returns the live proposals in a chat. Expired proposals
// encountered on the way are purged and audited, never returned.
func (s *ProposalService) ProposalsByChat(ctx context.Context, chatID int64) []domain.BetProposal {
	live, purged := s.registry.ByChat(chatID, time.Now())
	s.reportPurged(ctx, purged)
	return live
}

// ProposalsByUser returns the live proposals the user created or is named
// counterparty on, purging expired ones like ProposalsByChat.
func (s *ProposalService) ProposalsByUser(ctx context.Context, userID int64) []domain.BetProposal {
	live, purged := s.registry.ByUser(userID, time.Now())
	s.reportPurged(ctx, purged)
	return live
}

func (s *ProposalService) recoverProposal(ctx context.Context, p domain.BetProposal) {
	if !s.registry.Reinsert(p) {
		s.logger.WarnContext(ctx, "could not restore proposal after failed accept, id was reallocated",
			slog.Int("proposal_id", p.ID),
		)
	}
}

func (s *ProposalService) reportPurged(ctx context.Context, purged []int) {
	for _, id := range purged {
		s.auditLog(ctx, "proposal.expired", map[string]any{"proposal_id": id})
		s.logger.InfoContext(ctx, "expired proposal purged", slog.Int("proposal_id", id))
	}
}

func (s *ProposalService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
