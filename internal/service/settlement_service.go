package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/alanyoungcy/pvpbet/internal/queue"
)

// tickLockKey guards the drain loop across engine instances sharing one
// ledger wallet; two concurrent drains would double-submit settlements.
const tickLockKey = "settle_tick"

// Notifier delivers settlement summaries to the chat a bet was created in.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// SettlementDeps collects the collaborators of a SettlementService. Notifier,
// Archiver, Locks and Audit are optional.
type SettlementDeps struct {
	Queue    *queue.ExpiryQueue
	Store    domain.BetStore
	Users    domain.UserDirectory
	Ledger   domain.Ledger
	Position domain.ChainPosition
	Oracle   domain.Oracle
	Audit    domain.AuditStore
	Notifier Notifier
	Archiver domain.SettlementArchiver
	Locks    domain.LockManager
	Interval time.Duration
	Logger   *slog.Logger
}

// SettlementService drains deadline-eligible bets each scheduling tick,
// resolves outcomes through the price oracle, submits settlement transactions
// and reconciles the queue against the durable store.
type SettlementService struct {
	queue    *queue.ExpiryQueue
	store    domain.BetStore
	users    domain.UserDirectory
	ledger   domain.Ledger
	position domain.ChainPosition
	oracle   domain.Oracle
	audit    domain.AuditStore
	notifier Notifier
	archiver domain.SettlementArchiver
	locks    domain.LockManager
	interval time.Duration
	logger   *slog.Logger
}

// NewSettlementService wires a SettlementService.
func NewSettlementService(d SettlementDeps) *SettlementService {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &SettlementService{
		queue:    d.Queue,
		store:    d.Store,
		users:    d.Users,
		ledger:   d.Ledger,
		position: d.Position,
		oracle:   d.Oracle,
		audit:    d.Audit,
		notifier: d.Notifier,
		archiver: d.Archiver,
		locks:    d.Locks,
		interval: interval,
		logger:   d.Logger.With(slog.String("component", "settlement_service")),
	}
}

// LoadActive rebuilds the in-memory expiry queue from the durable store.
// Called once at startup before the drain loop begins.
func (s *SettlementService) LoadActive(ctx context.Context) error {
	bets, err := s.store.Scan(ctx)
	if err != nil {
		return fmt.Errorf("settlement_service: load active bets: %w", err)
	}
	for _, bet := range bets {
		s.queue.Push(bet)
	}
	s.logger.InfoContext(ctx, "active bets loaded", slog.Int("count", len(bets)))
	return nil
}

// SettleOutstanding drains every bet whose deadline is at or below the
// current ledger position, oldest deadline first. An unavailable position
// aborts the whole tick; nothing is guessed. Failed bets are requeued only
// after the loop so one bet's failure never blocks the others, and a failing
// bet is retried no earlier than the next tick.
func (s *SettlementService) SettleOutstanding(ctx context.Context) ([]domain.SettlementResult, error) {
	current, err := s.position.CurrentPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("settlement_service: %w", err)
	}

	var (
		results []domain.SettlementResult
		failed  []domain.ActiveBet
	)
	for {
		deadline, ok := s.queue.Peek()
		if !ok || deadline > current {
			break
		}
		bet, err := s.queue.Pop()
		if err != nil {
			break
		}

		res := s.settleBet(ctx, bet)
		results = append(results, res)

		if res.Settled() {
			s.finalize(ctx, res)
		} else {
			failed = append(failed, bet)
			s.auditLog(ctx, "bet.requeued", map[string]any{
				"bet_id": bet.ID,
				"error":  res.Err.Error(),
			})
			s.logger.WarnContext(ctx, "settlement failed, will retry next tick",
				slog.Uint64("bet_id", bet.ID),
				slog.String("error", res.Err.Error()),
			)
		}
	}

	for _, bet := range failed {
		s.queue.Push(bet)
	}

	return results, nil
}

// settleBet resolves the outcome of one bet and submits the settlement
// transaction. A nil Err in the result means the ledger-side state is final.
func (s *SettlementService) settleBet(ctx context.Context, bet domain.ActiveBet) domain.SettlementResult {
	res := domain.SettlementResult{Bet: bet}

	if bet.TokenResolver != domain.ResolverCMCIntID {
		res.Err = fmt.Errorf("settlement_service: bet %d: unknown token resolver %q", bet.ID, bet.TokenResolver)
		return res
	}
	tokenID, err := strconv.ParseInt(bet.TokenRef, 10, 64)
	if err != nil {
		res.Err = fmt.Errorf("settlement_service: bet %d: malformed token ref %q", bet.ID, bet.TokenRef)
		return res
	}

	price, err := s.oracle.PriceByID(ctx, tokenID)
	if err != nil {
		res.Err = fmt.Errorf("settlement_service: bet %d: %w", bet.ID, err)
		return res
	}
	currentFixed, err := domain.ParsePriceToFixed(price)
	if err != nil {
		res.Err = fmt.Errorf("settlement_service: bet %d: resolved price: %w", bet.ID, err)
		return res
	}

	// Over wins on a strict rise above the line; an exact tie settles under.
	res.OverWins = bet.Price.Cmp(currentFixed) < 0

	sub, err := s.ledger.SettleBet(ctx, bet.ID, res.OverWins)
	if err != nil {
		res.Err = fmt.Errorf("settlement_service: bet %d: settle submission: %w", bet.ID, err)
		return res
	}
	res.TxHash = sub.TxHash
	if sub.Reverted {
		if errors.Is(domain.ClassifyRevert(sub.RevertReason), domain.ErrAlreadySettled) {
			// Some other path already finalized this bet; the ledger state
			// is correct even though this attempt did not cause it.
			res.Duplicate = true
			return res
		}
		res.Err = fmt.Errorf("settlement_service: bet %d: settle reverted: %s", bet.ID, sub.RevertReason)
		return res
	}

	res.Summary = s.summary(ctx, bet, res.OverWins, price)
	return res
}

// finalize reconciles a settled bet: drop the durable row, archive the
// outcome and deliver the summary. The bet already left the queue.
func (s *SettlementService) finalize(ctx context.Context, res domain.SettlementResult) {
	bet := res.Bet

	if err := s.store.DeleteByID(ctx, bet.ID); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL: settled bet not deleted from store, will resurrect on restart",
			slog.Uint64("bet_id", bet.ID),
			slog.String("error", err.Error()),
		)
	}

	s.auditLog(ctx, "bet.settled", map[string]any{
		"bet_id":    bet.ID,
		"over_wins": res.OverWins,
		"duplicate": res.Duplicate,
		"tx_hash":   res.TxHash,
	})

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, res); err != nil {
			s.logger.WarnContext(ctx, "settlement archive failed",
				slog.Uint64("bet_id", bet.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil && res.Summary != "" {
		if err := s.notifier.Notify(ctx, bet.ChatID, res.Summary); err != nil {
			s.logger.WarnContext(ctx, "settlement notification failed",
				slog.Uint64("bet_id", bet.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "bet settled",
		slog.Uint64("bet_id", bet.ID),
		slog.Bool("over_wins", res.OverWins),
		slog.Bool("duplicate", res.Duplicate),
	)
}

// summary builds the human-readable outcome delivered to the bet's chat.
func (s *SettlementService) summary(ctx context.Context, bet domain.ActiveBet, overWins bool, resolved float64) string {
	winnerID, loserID := bet.OverUserID, bet.UnderUserID
	if !overWins {
		winnerID, loserID = loserID, winnerID
	}

	winner := s.displayName(ctx, winnerID)
	loser := s.displayName(ctx, loserID)
	amountEth := domain.FixedToFloat(bet.Amount)
	line := domain.FixedToFloat(bet.Price)

	return fmt.Sprintf(
		"🎉 %s has vanquished %s, wresting away %.6g ETH! The price came in at $%.6g against a line of $%.6g.",
		winner, loser, amountEth, resolved, line,
	)
}

func (s *SettlementService) displayName(ctx context.Context, userID int64) string {
	u, err := s.users.ByID(ctx, userID)
	if err != nil || u.Name == "" {
		return fmt.Sprintf("user %d", userID)
	}
	return "@" + u.Name
}

// ActiveBetsByChat returns the queued bets created in the given chat.
func (s *SettlementService) ActiveBetsByChat(chatID int64) []domain.ActiveBet {
	return s.queue.Find(func(b domain.ActiveBet) bool { return b.ChatID == chatID })
}

// ActiveBetsByUser returns the queued bets the user is on either side of.
func (s *SettlementService) ActiveBetsByUser(userID int64) []domain.ActiveBet {
	return s.queue.Find(func(b domain.ActiveBet) bool { return b.Involves(userID) })
}

// Tick performs one guarded drain pass. When a lock manager is wired and
// another instance holds the tick lock, the pass is skipped silently.
func (s *SettlementService) Tick(ctx context.Context) ([]domain.SettlementResult, error) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, tickLockKey, s.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.DebugContext(ctx, "tick lock held elsewhere, skipping pass")
				return nil, nil
			}
			return nil, fmt.Errorf("settlement_service: tick lock: %w", err)
		}
		defer unlock()
	}
	return s.SettleOutstanding(ctx)
}

// Run drives Tick on the configured interval until ctx is cancelled. A
// failed tick is logged and retried on the next interval; only context
// cancellation stops the loop.
func (s *SettlementService) Run(ctx context.Context) error {
	s.logger.Info("settlement loop started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement loop stopped")
			return ctx.Err()
		case <-ticker.C:
			results, err := s.Tick(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "tick aborted", slog.String("error", err.Error()))
				continue
			}
			if len(results) > 0 {
				s.logger.InfoContext(ctx, "tick complete", slog.Int("settled_or_retried", len(results)))
			}
		}
	}
}

func (s *SettlementService) auditLog(ctx context.Context, event string, detail map[string]any) {
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
