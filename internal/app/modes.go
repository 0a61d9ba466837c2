package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ServeMode runs the full engine: the L1 head feed, the settlement scheduler,
// and the startup queue rebuild. It blocks until the context is cancelled or
// a background loop fails.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	if err := deps.Settlement.LoadActive(ctx); err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.HeadFeed.Run(ctx)
	})
	g.Go(func() error {
		return deps.Settlement.Run(ctx)
	})

	return g.Wait()
}

// SettleMode rebuilds the queue from the durable store, performs a single
// settlement pass, and exits. Intended for cron-style operation and manual
// reconciliation.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	if err := deps.Settlement.LoadActive(ctx); err != nil {
		return fmt.Errorf("settle mode: %w", err)
	}

	results, err := deps.Settlement.Tick(ctx)
	if err != nil {
		return fmt.Errorf("settle mode: %w", err)
	}

	settled := 0
	for _, res := range results {
		if res.Settled() {
			settled++
		}
	}
	a.logger.InfoContext(ctx, "settle pass complete",
		slog.Int("attempted", len(results)),
		slog.Int("settled", settled),
	)
	return nil
}

// MigrateMode applies pending database migrations and exits. Wire already ran
// them for this mode, so there is nothing left to do but report.
func (a *App) MigrateMode(ctx context.Context, _ *Dependencies) error {
	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}
