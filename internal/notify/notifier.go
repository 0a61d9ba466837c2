// Package notify delivers settlement summaries back to the chat a bet was
// created in. Messages are dispatched to every registered sender; a failing
// channel never blocks the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is a chat-addressable delivery channel.
type Sender interface {
	// Send delivers text to the given chat.
	Send(ctx context.Context, chatID int64, text string) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans a message out to all registered senders.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. An empty
// sender list yields a no-op notifier, useful for headless settle runs.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends text to chatID on every sender. Errors from individual senders
// are collected into a combined error; one failure does not prevent delivery
// on the remaining channels.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, chatID, text); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.Int64("chat_id", chatID),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
