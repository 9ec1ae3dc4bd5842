package artifact

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(baseURL string) *HTTPSource {
	src := NewHTTPSource(HTTPSourceOptions{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
	src.backoffBase = time.Millisecond
	return src
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series/wheat/2020-01.json", r.URL.Path)
		assert.Equal(t, "market-cli/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"rows":[]}`))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	data, err := src.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[]}`, string(data))
}

func TestFetchRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	data, err := src.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "success", string(data))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetchRetryExhausted(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPSourceOptions{BaseURL: srv.URL, MaxRetries: 2})
	src.backoffBase = time.Millisecond

	_, err := src.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestFetchNotFoundDoesNotRetry(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	_, err := src.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetchRateLimitSlowsDown(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	src := newTestSource(srv.URL)
	initial := src.limiter.Limit()

	data, err := src.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), attempts.Load())
	assert.Less(t, float64(src.limiter.Limit()), float64(initial),
		"a 429 should leave the limiter below its initial rate")
}

func TestFetchCircuitOpensAfterPersistentFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPSourceOptions{
		BaseURL:          srv.URL,
		MaxRetries:       1,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
	})
	src.backoffBase = time.Millisecond

	for range 2 {
		_, err := src.Fetch(context.Background(), testRequest())
		require.Error(t, err)
	}
	require.Equal(t, int32(2), attempts.Load())

	_, err := src.Fetch(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), attempts.Load(), "open circuit must not reach the upstream")
}

func TestFetchNotFoundDoesNotTripBreaker(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPSource(HTTPSourceOptions{
		BaseURL:          srv.URL,
		MaxRetries:       1,
		BreakerThreshold: 1,
		BreakerCooldown:  time.Minute,
	})
	src.backoffBase = time.Millisecond

	for range 3 {
		_, err := src.Fetch(context.Background(), testRequest())
		require.ErrorContains(t, err, "unexpected status 404")
	}
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, BreakerClosed, src.breaker.State())
}

func TestFileSourceFetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "time_series", "wheat")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "2020-01.json"), []byte(`{"rows":[]}`), 0o644))

	src := NewFileSource(dir)
	data, err := src.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"rows":[]}`, string(data))
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(t.TempDir())
	_, err := src.Fetch(context.Background(), testRequest())
	require.Error(t, err)
}

func TestFileSourceCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewFileSource(t.TempDir())
	_, err := src.Fetch(ctx, testRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
