package oracle

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// Resolver turns a free-form token expression into exactly one token, or a
// ValidationError telling the requester how to disambiguate. It is the entry
// point a chat front-end calls before building a wager request.
type Resolver struct {
	source        domain.Oracle
	rankThreshold int
}

// NewResolver wraps an oracle with the configured rank threshold.
func NewResolver(source domain.Oracle, rankThreshold int) *Resolver {
	return &Resolver{source: source, rankThreshold: rankThreshold}
}

// Resolve looks up expr and applies the disambiguation rule: a slug hit or a
// single symbol candidate wins outright; multiple candidates resolve to the
// best-ranked one only when its rank beats the threshold.
func (r *Resolver) Resolve(ctx context.Context, expr string) (domain.Token, error) {
	tokens, err := r.source.TokensByExpr(ctx, expr)
	if err != nil {
		return domain.Token{}, fmt.Errorf("oracle: resolve %q: %w", expr, err)
	}

	tok, ok := PickUnambiguous(tokens, r.rankThreshold)
	if !ok {
		return domain.Token{}, domain.Invalid(
			"%q matches %d tokens and none is well-known; use the exact slug instead", expr, len(tokens))
	}
	return tok, nil
}
