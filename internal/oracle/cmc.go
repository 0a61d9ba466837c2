// Package oracle resolves tokens and reference prices. The CMCClient speaks
// the CoinMarketCap quotes API (the cmc_int_id_v0 resolution method); the
// NativeFeed and SizingPrice types cover the native-asset price used only to
// size fiat-denominated wagers.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// CMCClient implements domain.Oracle against the CoinMarketCap v2 quotes
// endpoint. Resolved token metadata is cached (when a cache is wired) since
// id, symbol, name and rank churn slowly relative to settlement cadence.
type CMCClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	tokens  domain.TokenCache // optional
	logger  *slog.Logger
}

// NewCMCClient creates a client for the given API endpoint and key. cache
// may be nil to disable metadata caching.
func NewCMCClient(baseURL, apiKey string, cache domain.TokenCache, logger *slog.Logger) *CMCClient {
	return &CMCClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		tokens:  cache,
		logger:  logger.With(slog.String("component", "cmc_oracle")),
	}
}

type cmcStatus struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type cmcEnvelope struct {
	Status cmcStatus       `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type cmcQuote struct {
	Price *float64 `json:"price"`
}

type cmcToken struct {
	ID                     int64               `json:"id"`
	Symbol                 string              `json:"symbol"`
	Name                   string              `json:"name"`
	CMCRank                *int                `json:"cmc_rank"`
	SelfReportedMarketCap  *float64            `json:"self_reported_market_cap"`
	CirculatingSupply      *float64            `json:"circulating_supply"`
	SelfReportedCircSupply *float64            `json:"self_reported_circulating_supply"`
	Quote                  map[string]cmcQuote `json:"quote"`
}

// toToken converts a raw API token into the domain value object, deriving a
// market cap when none is reported directly. Returns false when required
// fields are missing.
func (t cmcToken) toToken() (domain.Token, bool) {
	if t.ID == 0 || t.Symbol == "" || t.Name == "" || t.CMCRank == nil {
		return domain.Token{}, false
	}

	tok := domain.Token{
		ID:     t.ID,
		Symbol: t.Symbol,
		Name:   t.Name,
		Rank:   *t.CMCRank,
	}

	var mcap *float64
	switch {
	case t.SelfReportedMarketCap != nil:
		mcap = t.SelfReportedMarketCap
	case t.usdPrice() != nil && t.CirculatingSupply != nil && *t.CirculatingSupply != 0:
		v := *t.usdPrice() * *t.CirculatingSupply
		mcap = &v
	case t.usdPrice() != nil && t.SelfReportedCircSupply != nil && *t.SelfReportedCircSupply != 0:
		v := *t.usdPrice() * *t.SelfReportedCircSupply
		mcap = &v
	}
	if mcap != nil {
		cap := int64(*mcap)
		tok.MarketCap = &cap
	}
	return tok, true
}

func (t cmcToken) usdPrice() *float64 {
	if q, ok := t.Quote["USD"]; ok {
		return q.Price
	}
	return nil
}

func (c *CMCClient) quotes(ctx context.Context, params url.Values) (*cmcEnvelope, error) {
	u := c.baseURL + "/v2/cryptocurrency/quotes/latest?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: build request: %w", err)
	}
	req.Header.Set("Accepts", "application/json")
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle: quotes request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle: quotes status %d", resp.StatusCode)
	}

	var env cmcEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("oracle: decode quotes: %w", err)
	}
	if env.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("oracle: api error %d: %s", env.Status.ErrorCode, env.Status.ErrorMessage)
	}
	return &env, nil
}

// TokenByID resolves a token by its CoinMarketCap id, consulting the
// metadata cache first.
func (c *CMCClient) TokenByID(ctx context.Context, id int64) (domain.Token, error) {
	if c.tokens != nil {
		if tok, err := c.tokens.Get(ctx, id); err == nil {
			return tok, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "token cache read failed", slog.String("error", err.Error()))
		}
	}

	params := url.Values{"id": {strconv.FormatInt(id, 10)}}
	env, err := c.quotes(ctx, params)
	if err != nil {
		return domain.Token{}, err
	}

	var byID map[string]cmcToken
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return domain.Token{}, fmt.Errorf("oracle: decode token %d: %w", id, err)
	}
	raw, ok := byID[strconv.FormatInt(id, 10)]
	if !ok {
		return domain.Token{}, fmt.Errorf("oracle: token %d: %w", id, domain.ErrNotFound)
	}
	tok, ok := raw.toToken()
	if !ok {
		return domain.Token{}, fmt.Errorf("oracle: token %d missing required fields", id)
	}

	if c.tokens != nil {
		if err := c.tokens.Set(ctx, tok); err != nil {
			c.logger.WarnContext(ctx, "token cache write failed", slog.String("error", err.Error()))
		}
	}
	return tok, nil
}

// TokensByExpr resolves a free-form token expression. An exact slug match
// wins outright; otherwise the symbol lookup returns every candidate and the
// caller disambiguates (see PickUnambiguous).
func (c *CMCClient) TokensByExpr(ctx context.Context, expr string) ([]domain.Token, error) {
	// Slug lookup: a hit is unambiguous by construction.
	if env, err := c.quotes(ctx, url.Values{"slug": {strings.ToLower(expr)}}); err == nil {
		var byID map[string]cmcToken
		if err := json.Unmarshal(env.Data, &byID); err == nil && len(byID) == 1 {
			for _, raw := range byID {
				if tok, ok := raw.toToken(); ok {
					return []domain.Token{tok}, nil
				}
			}
		}
	} else {
		c.logger.DebugContext(ctx, "slug match failed, trying symbol",
			slog.String("expr", expr),
			slog.String("error", err.Error()),
		)
	}

	env, err := c.quotes(ctx, url.Values{"symbol": {expr}})
	if err != nil {
		return nil, err
	}

	var bySymbol map[string][]cmcToken
	if err := json.Unmarshal(env.Data, &bySymbol); err != nil {
		return nil, fmt.Errorf("oracle: decode candidates for %q: %w", expr, err)
	}

	rawList, ok := bySymbol[expr]
	if !ok {
		rawList, ok = bySymbol[strings.ToUpper(expr)]
	}
	if !ok {
		rawList, ok = bySymbol[strings.ToLower(expr)]
	}
	if !ok {
		return nil, fmt.Errorf("oracle: no candidates for %q: %w", expr, domain.ErrNotFound)
	}

	tokens := make([]domain.Token, 0, len(rawList))
	for _, raw := range rawList {
		if tok, ok := raw.toToken(); ok {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("oracle: no usable candidates for %q: %w", expr, domain.ErrNotFound)
	}
	return tokens, nil
}

// PriceByID returns the current USD price for a token id. A missing quote
// maps to domain.ErrPriceUnavailable so the settlement engine can requeue.
func (c *CMCClient) PriceByID(ctx context.Context, id int64) (float64, error) {
	env, err := c.quotes(ctx, url.Values{"id": {strconv.FormatInt(id, 10)}})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPriceUnavailable, err)
	}

	var byID map[string]cmcToken
	if err := json.Unmarshal(env.Data, &byID); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", domain.ErrPriceUnavailable, err)
	}
	raw, ok := byID[strconv.FormatInt(id, 10)]
	if !ok || raw.usdPrice() == nil {
		return 0, fmt.Errorf("%w: token %d has no USD quote", domain.ErrPriceUnavailable, id)
	}
	return *raw.usdPrice(), nil
}

// PickUnambiguous chooses a token from symbol-lookup candidates. A single
// candidate always wins; with several, the best-ranked one wins only when
// its market rank beats the threshold. Below that everything is an obscure
// coin of the same name and the caller must ask the user to use the slug.
func PickUnambiguous(tokens []domain.Token, rankThreshold int) (domain.Token, bool) {
	switch len(tokens) {
	case 0:
		return domain.Token{}, false
	case 1:
		return tokens[0], true
	}

	best := tokens[0]
	for _, t := range tokens[1:] {
		if t.Rank < best.Rank {
			best = t
		}
	}
	if best.Rank < rankThreshold {
		return best, true
	}
	return domain.Token{}, false
}

// Compile-time interface check.
var _ domain.Oracle = (*CMCClient)(nil)
