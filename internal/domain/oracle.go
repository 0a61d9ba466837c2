package domain

import "context"

// Oracle resolves tokens and their current reference prices.
type Oracle interface {
	// TokenByID resolves a token by its exact id.
	TokenByID(ctx context.Context, id int64) (Token, error)
	// TokensByExpr resolves an ambiguous name or symbol to candidate tokens,
	// ordered as returned by the upstream API. The caller disambiguates.
	TokensByExpr(ctx context.Context, expr string) ([]Token, error)
	// PriceByID returns the current USD price for a token id.
	PriceByID(ctx context.Context, id int64) (float64, error)
}

// NativePriceFeed returns the current USD price of the ledger's native
// asset. Used only for sizing fiat-denominated wagers, never for settlement.
type NativePriceFeed interface {
	NativePrice(ctx context.Context) (float64, error)
}
