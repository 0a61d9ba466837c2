package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

// HeadFeed tracks the current L1 block number. When a websocket endpoint is
// configured it subscribes to newHeads and keeps a cached position updated
// push-style; otherwise (or while disconnected) CurrentPosition falls back
// to an eth_blockNumber call against the HTTP endpoint.
type HeadFeed struct {
	httpURL  string
	wsURL    string
	client   *http.Client
	maxStale time.Duration
	logger   *slog.Logger

	latest    atomic.Uint64
	updatedAt atomic.Int64 // unix nanos of the last websocket update
}

// NewHeadFeed creates a HeadFeed. maxStale bounds how old a pushed head may
// be before CurrentPosition re-fetches over HTTP.
func NewHeadFeed(httpURL, wsURL string, maxStale time.Duration, logger *slog.Logger) *HeadFeed {
	if maxStale <= 0 {
		maxStale = time.Minute
	}
	return &HeadFeed{
		httpURL:  httpURL,
		wsURL:    wsURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		maxStale: maxStale,
		logger:   logger.With(slog.String("component", "head_feed")),
	}
}

// CurrentPosition returns the latest known L1 block number. A fresh pushed
// head is served from cache; otherwise the HTTP endpoint is queried. Errors
// mean the position is genuinely unavailable and the caller must not guess.
func (f *HeadFeed) CurrentPosition(ctx context.Context) (uint64, error) {
	if n := f.latest.Load(); n > 0 {
		age := time.Since(time.Unix(0, f.updatedAt.Load()))
		if age < f.maxStale {
			return n, nil
		}
	}

	n, err := f.fetchBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, err)
	}
	f.store(n)
	return n, nil
}

// Run maintains the newHeads subscription until ctx is cancelled,
// reconnecting with a flat backoff on disconnect. It returns immediately
// when no websocket endpoint is configured.
func (f *HeadFeed) Run(ctx context.Context) error {
	if f.wsURL == "" {
		f.logger.Info("no websocket endpoint configured, head feed will poll over http")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := f.runSubscription(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("head subscription dropped, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (f *HeadFeed) runSubscription(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("head_feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []any{"newHeads"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("head_feed: subscribe: %w", err)
	}

	f.logger.Info("subscribed to new heads", slog.String("url", f.wsURL))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("head_feed: read: %w", err)
		}

		var msg struct {
			Params struct {
				Result struct {
					Number string `json:"number"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Params.Result.Number == "" {
			// Subscription confirmations and pings land here; skip them.
			continue
		}

		n, err := parseHexUint(msg.Params.Result.Number)
		if err != nil {
			f.logger.Warn("malformed head number", slog.String("raw", msg.Params.Result.Number))
			continue
		}
		f.store(n)
	}
}

func (f *HeadFeed) store(n uint64) {
	f.latest.Store(n)
	f.updatedAt.Store(time.Now().UnixNano())
}

func (f *HeadFeed) fetchBlockNumber(ctx context.Context) (uint64, error) {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "eth_blockNumber",
		"params":  []any{},
		"id":      1,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.httpURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("head_feed: status %d", resp.StatusCode)
	}

	var out struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil {
		return 0, err
	}
	if out.Result == "" {
		return 0, fmt.Errorf("head_feed: empty result")
	}
	return parseHexUint(out.Result)
}

func parseHexUint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
}

// Compile-time interface check.
var _ domain.ChainPosition = (*HeadFeed)(nil)
