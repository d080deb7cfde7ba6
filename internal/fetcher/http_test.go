package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		MaxBytes:    1024,
		HostRate:    1000,
		BaseBackoff: time.Millisecond,
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "image/*", r.Header.Get("Accept"))
		w.Write([]byte("\x89PNG fake")) //nolint:errcheck
	}))
	defer srv.Close()

	data, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/apple.png")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake", string(data))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	data, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_RateLimitedSlowsHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	assert.True(t, eris.Is(err, ErrTooLarge))
}

func TestFetch_RejectsScheme(t *testing.T) {
	f := newTestFetcher()
	for _, u := range []string{"file:///etc/passwd", "/uploads/a.png", "ftp://example.com/a.png"} {
		_, err := f.Fetch(context.Background(), u)
		assert.Error(t, err, u)
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

func TestAdaptiveLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	assert.Equal(t, rate.Limit(10), lim.Limit())

	lim.OnRateLimit()
	assert.InDelta(t, 5, float64(lim.Limit()), 0.001)

	lim.OnRateLimit()
	lim.OnRateLimit()
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.001, "floor is initial/4")

	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20, float64(lim.Limit()), 0.001, "ceiling is 2x initial")

	require.NoError(t, lim.Wait(context.Background()))
}

func TestLimiterForIsPerHost(t *testing.T) {
	f := newTestFetcher()
	a := f.limiterFor("images.example.com")
	b := f.limiterFor("cdn.example.com")
	assert.Same(t, a, f.limiterFor("images.example.com"))
	assert.NotSame(t, a, b)
}
