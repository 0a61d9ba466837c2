package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// settlementRecord is the archived form of a settlement outcome. Amounts are
// serialized as decimal strings since they exceed the safe integer range of
// most JSON consumers.
type settlementRecord struct {
	BetID         uint64    `json:"bet_id"`
	ChatID        int64     `json:"chat_id"`
	OverUserID    int64     `json:"over_user_id"`
	UnderUserID   int64     `json:"under_user_id"`
	Amount        string    `json:"amount"`
	Deadline      uint64    `json:"deadline"`
	RecordedPrice string    `json:"recorded_price"`
	TokenResolver string    `json:"token_resolver"`
	TokenRef      string    `json:"token_ref"`
	OverWins      bool      `json:"over_wins"`
	Duplicate     bool      `json:"duplicate"`
	TxHash        string    `json:"tx_hash,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// Archiver implements domain.SettlementArchiver by uploading one JSON object
// per settled bet, partitioned by settlement date. Each archival is also
// recorded in the audit log.
type Archiver struct {
	writer *Writer
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil to skip audit logging.
func NewArchiver(writer *Writer, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// Archive uploads the settlement outcome. Keys embed a fresh UUID so a
// retried archive never overwrites an earlier record.
func (a *Archiver) Archive(ctx context.Context, res domain.SettlementResult) error {
	now := time.Now().UTC()

	rec := settlementRecord{
		BetID:         res.Bet.ID,
		ChatID:        res.Bet.ChatID,
		OverUserID:    res.Bet.OverUserID,
		UnderUserID:   res.Bet.UnderUserID,
		Amount:        res.Bet.Amount.String(),
		Deadline:      res.Bet.Deadline,
		RecordedPrice: res.Bet.Price.String(),
		TokenResolver: res.Bet.TokenResolver,
		TokenRef:      res.Bet.TokenRef,
		OverWins:      res.OverWins,
		Duplicate:     res.Duplicate,
		TxHash:        res.TxHash,
		Summary:       res.Summary,
		ArchivedAt:    now,
	}

	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("s3blob: marshal settlement %d: %w", res.Bet.ID, err)
	}

	key := fmt.Sprintf("settlements/%s/bet-%d-%s.json",
		now.Format("2006/01/02"), res.Bet.ID, uuid.New().String())

	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive settlement %d: %w", res.Bet.ID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "settlement.archived", map[string]any{
			"bet_id": res.Bet.ID,
			"path":   key,
		}); err != nil {
			return fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}

	return nil
}

// Compile-time interface check.
var _ domain.SettlementArchiver = (*Archiver)(nil)
