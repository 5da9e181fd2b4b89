package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMemCache() *memCache { return &memCache{entries: map[string]Entry{}} }

func (c *memCache) Read(key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *memCache) Write(key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry.Payload == nil {
		if existing, ok := c.entries[key]; ok {
			existing.FetchedAt = entry.FetchedAt
			if entry.ETag != "" {
				existing.ETag = entry.ETag
			}
			c.entries[key] = existing
			return nil
		}
	}
	c.entries[key] = entry
	return nil
}

func TestClassifyFreshness(t *testing.T) {
	require.Equal(t, Fresh, ClassifyFreshness(time.Hour, DefaultTTL, DefaultGrace))
	require.Equal(t, StaleUsable, ClassifyFreshness(DefaultTTL+time.Hour, DefaultTTL, DefaultGrace))
	require.Equal(t, Expired, ClassifyFreshness(DefaultTTL+DefaultGrace+time.Hour, DefaultTTL, DefaultGrace))
}

func TestFetchOfflineNoCache(t *testing.T) {
	f := NewFetcher(http.DefaultClient, NewGate(2), false)
	_, err := f.Fetch(context.Background(), newMemCache(), "k", "http://example.invalid", nil)
	require.ErrorIs(t, err, ErrNoUsableCache)
}

func TestFetchOfflineUsesFreshCache(t *testing.T) {
	cache := newMemCache()
	cache.entries["k"] = Entry{Payload: []byte("cached"), FetchedAt: time.Now()}
	f := NewFetcher(http.DefaultClient, NewGate(2), false)

	res, err := f.Fetch(context.Background(), cache, "k", "http://example.invalid", nil)
	require.NoError(t, err)
	require.Equal(t, OfflineUsedFreshCache, res.Outcome)
	require.Equal(t, []byte("cached"), res.Payload)
}

func TestFetchNetworkSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(2), true)
	res, err := f.Fetch(context.Background(), newMemCache(), "k", srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, NetworkFetched, res.Outcome)
	require.Equal(t, []byte("payload"), res.Payload)
}

func TestFetchSingleFlightCoalesces(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(10), true)
	cache := newMemCache()

	var wg sync.WaitGroup
	results := make([]Result, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res, err := f.Fetch(context.Background(), cache, "shared-key", srv.URL, nil)
			require.NoError(t, err)
			results[idx] = res
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
	coalesced := 0
	for _, r := range results {
		if r.Coalesced {
			coalesced++
		}
	}
	require.Equal(t, 9, coalesced)
}

func TestFetchRetriesOn503ThenSucceeds(t *testing.T) {
	var attempt int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&attempt, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(2), true)
	f.Retry.BaseDelay = time.Millisecond
	f.Retry.MaxDelay = 5 * time.Millisecond

	res, err := f.Fetch(context.Background(), newMemCache(), "k", srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, NetworkFetched, res.Outcome)
	require.Equal(t, int64(2), atomic.LoadInt64(&attempt))
}

func TestFetchFatalStatusNotRetried(t *testing.T) {
	var attempt int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&attempt, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(2), true)
	_, err := f.Fetch(context.Background(), newMemCache(), "k", srv.URL, nil)
	require.Error(t, err)
	require.Equal(t, int64(1), atomic.LoadInt64(&attempt))
}

func TestFetchFallsBackToStaleCacheOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cache := newMemCache()
	cache.entries["k"] = Entry{Payload: []byte("stale"), FetchedAt: time.Now().Add(-(DefaultTTL + time.Hour))}

	f := NewFetcher(srv.Client(), NewGate(2), true)
	res, err := f.Fetch(context.Background(), cache, "k", srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, CacheHitStaleFallback, res.Outcome)
	require.Equal(t, []byte("stale"), res.Payload)
}

func TestFetchRespectsRetryAfterHeader(t *testing.T) {
	var attempt int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&attempt, 1)
		if n < 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(2), true)
	res, err := f.Fetch(context.Background(), newMemCache(), "k", srv.URL, nil)
	require.NoError(t, err)
	require.Equal(t, NetworkFetched, res.Outcome)
}

func TestTimeBudgetExceededFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), NewGate(2), true)
	f.Retry.BaseDelay = time.Hour
	f.Retry.MaxDelay = time.Hour

	budget := NewTimeBudget(time.Now(), time.Millisecond)
	_, err := f.Fetch(context.Background(), newMemCache(), "k", srv.URL, budget)
	require.Error(t, err)
}

func TestGateTracksHighestObserved(t *testing.T) {
	g := NewGate(3)
	ctx := context.Background()
	require.NoError(t, g.Acquire(ctx))
	require.NoError(t, g.Acquire(ctx))
	require.Equal(t, 2, g.HighestObserved())
	g.Release()
	g.Release()
	require.Equal(t, 2, g.HighestObserved())
}
