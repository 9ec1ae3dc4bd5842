package artifact

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Source fetches one artifact's raw payload.
type Source interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("artifact: reducing fetch rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPSourceOptions configures the HTTP artifact source.
type HTTPSourceOptions struct {
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	MaxRetries       int
	RequestsPerSec   float64
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// HTTPSource fetches artifacts over HTTP with retry, exponential backoff,
// adaptive rate limiting, and a circuit breaker guarding the upstream.
type HTTPSource struct {
	client      *http.Client
	opts        HTTPSourceOptions
	limiter     *AdaptiveLimiter
	breaker     *Breaker
	backoffBase time.Duration
}

// NewHTTPSource creates an HTTPSource with the given options.
func NewHTTPSource(opts HTTPSourceOptions) *HTTPSource {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "market-cli/1.0"
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 4
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:        opts,
		limiter:     NewAdaptiveLimiter(rate.Limit(opts.RequestsPerSec), int(opts.RequestsPerSec)+1),
		breaker:     NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		backoffBase: time.Second,
	}
}

// Fetch downloads the artifact payload for req.
func (s *HTTPSource) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if err := s.breaker.Allow(); err != nil {
		return nil, eris.Wrapf(err, "artifact: fetch %s", req.Key())
	}

	rawURL := strings.TrimRight(s.opts.BaseURL, "/") + "/" + req.Path()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: create request")
	}
	httpReq.Header.Set("User-Agent", s.opts.UserAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.doWithRetry(ctx, httpReq)
	if err != nil {
		// A caller abort says nothing about upstream health.
		if ctx.Err() == nil {
			s.breaker.Failure()
		}
		return nil, eris.Wrapf(err, "artifact: fetch %s", req.Key())
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		// A definitive status like 404 proves the upstream is alive.
		s.breaker.Success()
		return nil, eris.Errorf("artifact: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil {
			s.breaker.Failure()
		}
		return nil, eris.Wrapf(err, "artifact: read body from %s", rawURL)
	}
	s.breaker.Success()
	return data, nil
}

func (s *HTTPSource) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range s.opts.MaxRetries {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		resp, err := s.client.Do(cloned)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			zap.L().Warn("artifact: http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			s.backoff(ctx, attempt)
			continue
		}

		// Handle 429 Too Many Requests with adaptive backoff.
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", req.URL.String())
			s.limiter.OnRateLimit()
			s.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("artifact: server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			s.backoff(ctx, attempt)
			continue
		}

		// Success: increase adaptive rate.
		s.limiter.OnSuccess()

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (s *HTTPSource) backoff(ctx context.Context, attempt int) {
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(s.backoffBase) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// FileSource reads artifacts from a local directory laid out the same way
// as the HTTP tree.
type FileSource struct {
	dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch reads the artifact payload for req from disk.
func (s *FileSource) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, filepath.FromSlash(req.Path()))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", path)
	}
	return data, nil
}
