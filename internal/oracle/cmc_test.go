package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPickUnambiguous(t *testing.T) {
	single := []domain.Token{{ID: 1, Rank: 9999}}
	tok, ok := PickUnambiguous(single, 750)
	assert.True(t, ok)
	assert.Equal(t, int64(1), tok.ID)

	// Best-ranked candidate wins when it beats the threshold.
	many := []domain.Token{
		{ID: 1, Rank: 4200},
		{ID: 2, Rank: 12},
		{ID: 3, Rank: 900},
	}
	tok, ok = PickUnambiguous(many, 750)
	assert.True(t, ok)
	assert.Equal(t, int64(2), tok.ID)

	// All candidates obscure: refuse to guess.
	obscure := []domain.Token{
		{ID: 1, Rank: 4200},
		{ID: 2, Rank: 800},
	}
	_, ok = PickUnambiguous(obscure, 750)
	assert.False(t, ok)

	_, ok = PickUnambiguous(nil, 750)
	assert.False(t, ok)
}

func TestCMCToken_MarketCapFallbacks(t *testing.T) {
	rank := 5
	price := 2.0
	supply := 1000.0
	reported := 5000.0

	// Reported market cap wins outright.
	raw := cmcToken{ID: 1, Symbol: "X", Name: "X Coin", CMCRank: &rank, SelfReportedMarketCap: &reported}
	tok, ok := raw.toToken()
	require.True(t, ok)
	require.NotNil(t, tok.MarketCap)
	assert.Equal(t, int64(5000), *tok.MarketCap)

	// Otherwise derive from price times circulating supply.
	raw = cmcToken{
		ID: 1, Symbol: "X", Name: "X Coin", CMCRank: &rank,
		CirculatingSupply: &supply,
		Quote:             map[string]cmcQuote{"USD": {Price: &price}},
	}
	tok, ok = raw.toToken()
	require.True(t, ok)
	require.NotNil(t, tok.MarketCap)
	assert.Equal(t, int64(2000), *tok.MarketCap)

	// No cap derivable: field stays nil, token still valid.
	raw = cmcToken{ID: 1, Symbol: "X", Name: "X Coin", CMCRank: &rank}
	tok, ok = raw.toToken()
	require.True(t, ok)
	assert.Nil(t, tok.MarketCap)
}

func TestCMCToken_MissingFields(t *testing.T) {
	rank := 5
	_, ok := cmcToken{ID: 1, Symbol: "X", CMCRank: &rank}.toToken()
	assert.False(t, ok)
	_, ok = cmcToken{ID: 1, Symbol: "X", Name: "X Coin"}.toToken()
	assert.False(t, ok)
}

func TestPriceByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1027", r.URL.Query().Get("id"))
		w.Write([]byte(`{
			"status": {"error_code": 0},
			"data": {"1027": {
				"id": 1027, "symbol": "ETH", "name": "Ethereum", "cmc_rank": 2,
				"quote": {"USD": {"price": 1850.5}}
			}}
		}`))
	}))
	defer srv.Close()

	c := NewCMCClient(srv.URL, "test-key", nil, discard())
	price, err := c.PriceByID(context.Background(), 1027)
	require.NoError(t, err)
	assert.InDelta(t, 1850.5, price, 1e-9)
}

func TestPriceByID_NoQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": {"error_code": 0}, "data": {}}`))
	}))
	defer srv.Close()

	c := NewCMCClient(srv.URL, "test-key", nil, discard())
	_, err := c.PriceByID(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestTokensByExpr_SymbolFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("slug") != "" {
			w.Write([]byte(`{"status": {"error_code": 400, "error_message": "no such slug"}, "data": {}}`))
			return
		}
		assert.Equal(t, "SUI", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{
			"status": {"error_code": 0},
			"data": {"SUI": [
				{"id": 20947, "symbol": "SUI", "name": "Sui", "cmc_rank": 15},
				{"id": 9999, "symbol": "SUI", "name": "Salad Union Inu", "cmc_rank": 6123}
			]}
		}`))
	}))
	defer srv.Close()

	c := NewCMCClient(srv.URL, "test-key", nil, discard())
	tokens, err := c.TokensByExpr(context.Background(), "SUI")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, int64(20947), tokens[0].ID)
}
