package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// NativeFeed fetches the USD price of the ledger's native asset from the
// CoinGecko simple-price endpoint.
type NativeFeed struct {
	url    string
	client *http.Client
}

// NewNativeFeed creates a feed. url should point at a CoinGecko
// simple/price query returning {"ethereum":{"usd":<price>}}.
func NewNativeFeed(url string) *NativeFeed {
	return &NativeFeed{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NativePrice returns the current USD price of the native asset.
func (f *NativeFeed) NativePrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return 0, fmt.Errorf("native_feed: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("native_feed: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("native_feed: status %d", resp.StatusCode)
	}

	var out map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil {
		return 0, fmt.Errorf("native_feed: decode: %w", err)
	}
	for _, v := range out {
		if v.USD > 0 {
			return v.USD, nil
		}
	}
	return 0, fmt.Errorf("native_feed: no usd quote in response")
}

// SizingPrice serves the native-asset price used to size fiat-denominated
// wagers. It refreshes through the feed when the cached value is older than
// ttl and degrades gracefully to the last known value (with a warning) when
// the refresh fails. It is never consulted for settlement outcomes.
type SizingPrice struct {
	cache  domain.SizingPriceCache
	feed   domain.NativePriceFeed
	ttl    time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	last       float64
	fetched    time.Time
	refreshing bool
}

// NewSizingPrice creates a SizingPrice. fallback seeds the price used before
// the first successful refresh.
func NewSizingPrice(cache domain.SizingPriceCache, feed domain.NativePriceFeed, ttl time.Duration, fallback float64, logger *slog.Logger) *SizingPrice {
	return &SizingPrice{
		cache:  cache,
		feed:   feed,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "sizing_price")),
		last:   fallback,
	}
}

// Price returns a usable native-asset price. It never fails: a stale value
// beats no value for bet sizing, so refresh errors only log. The feed
// round-trip happens outside the state lock, and at most one refresh is in
// flight; concurrent callers keep getting the previous value instead of
// queueing behind a slow fetch.
func (s *SizingPrice) Price(ctx context.Context) float64 {
	now := time.Now()

	s.mu.Lock()

	// Prefer the shared cache: another process may have refreshed already.
	if s.cache != nil {
		if price, fetched, err := s.cache.Get(ctx); err == nil && now.Sub(fetched) < s.ttl {
			s.last, s.fetched = price, fetched
			s.mu.Unlock()
			return price
		}
	}

	if now.Sub(s.fetched) < s.ttl || s.refreshing {
		last := s.last
		s.mu.Unlock()
		return last
	}
	s.refreshing = true
	s.mu.Unlock()

	price, err := s.feed.NativePrice(ctx)

	s.mu.Lock()
	s.refreshing = false
	if err != nil {
		last := s.last
		// Push the next attempt out instead of hammering a failing feed.
		s.fetched = now.Add(-s.ttl + time.Minute)
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "native price refresh failed, keeping stale value",
			slog.Float64("stale_price", last),
			slog.String("error", err.Error()),
		)
		return last
	}
	s.last, s.fetched = price, now
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Set(ctx, price, now); err != nil {
			s.logger.WarnContext(ctx, "sizing price cache write failed", slog.String("error", err.Error()))
		}
	}
	return price
}
