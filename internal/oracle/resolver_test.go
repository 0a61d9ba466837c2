package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

type stubSource struct {
	tokens []domain.Token
	err    error
}

func (s *stubSource) TokenByID(context.Context, int64) (domain.Token, error) {
	return domain.Token{}, domain.ErrNotFound
}

func (s *stubSource) TokensByExpr(context.Context, string) ([]domain.Token, error) {
	return s.tokens, s.err
}

func (s *stubSource) PriceByID(context.Context, int64) (float64, error) {
	return 0, domain.ErrPriceUnavailable
}

func TestResolver_SingleCandidate(t *testing.T) {
	r := NewResolver(&stubSource{tokens: []domain.Token{{ID: 1027, Symbol: "ETH", Rank: 2}}}, 750)

	tok, err := r.Resolve(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, int64(1027), tok.ID)
}

func TestResolver_AmbiguousIsValidationError(t *testing.T) {
	r := NewResolver(&stubSource{tokens: []domain.Token{
		{ID: 1, Rank: 4200},
		{ID: 2, Rank: 6123},
	}}, 750)

	_, err := r.Resolve(context.Background(), "sui")
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestResolver_LookupErrorPassesThrough(t *testing.T) {
	r := NewResolver(&stubSource{err: domain.ErrNotFound}, 750)

	_, err := r.Resolve(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, domain.IsValidation(err))
}
