package oracle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingFeed struct {
	release chan struct{}
	price   float64
	calls   atomic.Int32
}

func (f *blockingFeed) NativePrice(context.Context) (float64, error) {
	f.calls.Add(1)
	<-f.release
	return f.price, nil
}

type failingFeed struct{}

func (failingFeed) NativePrice(context.Context) (float64, error) {
	return 0, errors.New("upstream down")
}

type staticCache struct {
	price   float64
	fetched time.Time
}

func (c *staticCache) Get(context.Context) (float64, time.Time, error) {
	return c.price, c.fetched, nil
}

func (c *staticCache) Set(context.Context, float64, time.Time) error { return nil }

func TestSizingPrice_SharedCacheWinsWhenFresh(t *testing.T) {
	feed := &blockingFeed{release: make(chan struct{})}
	s := NewSizingPrice(&staticCache{price: 2500, fetched: time.Now()}, feed, time.Hour, 1800, discard())

	got := s.Price(context.Background())
	assert.InDelta(t, 2500, got, 1e-9)
	assert.Equal(t, int32(0), feed.calls.Load())
}

func TestSizingPrice_ConcurrentCallersNotBlockedByRefresh(t *testing.T) {
	feed := &blockingFeed{release: make(chan struct{}), price: 2000}
	s := NewSizingPrice(nil, feed, time.Hour, 1800, discard())

	// First caller goes stale and starts a refresh that hangs on the feed.
	refreshed := make(chan float64, 1)
	go func() {
		refreshed <- s.Price(context.Background())
	}()
	require.Eventually(t, func() bool {
		return feed.calls.Load() == 1
	}, time.Second, time.Millisecond)

	// A second caller returns the previous value immediately instead of
	// waiting for the in-flight fetch.
	done := make(chan float64, 1)
	go func() {
		done <- s.Price(context.Background())
	}()
	select {
	case got := <-done:
		assert.InDelta(t, 1800, got, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("second caller blocked behind the in-flight refresh")
	}
	assert.Equal(t, int32(1), feed.calls.Load())

	// Once the fetch completes everyone sees the fresh value.
	close(feed.release)
	assert.InDelta(t, 2000, <-refreshed, 1e-9)
	assert.InDelta(t, 2000, s.Price(context.Background()), 1e-9)
}

func TestSizingPrice_RefreshFailureKeepsStaleValue(t *testing.T) {
	s := NewSizingPrice(nil, failingFeed{}, time.Hour, 1800, discard())

	assert.InDelta(t, 1800, s.Price(context.Background()), 1e-9)
	// Still serving the fallback, not zero, on repeated failure.
	assert.InDelta(t, 1800, s.Price(context.Background()), 1e-9)
}
