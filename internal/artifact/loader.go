package artifact

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrAborted marks loads rejected because a caller's context was canceled
// rather than because the fetch itself failed. Aborted loads never populate
// the cache.
var ErrAborted = eris.New("artifact: load aborted")

// IsAborted reports whether the load was rejected by cancellation.
func IsAborted(err error) bool {
	return eris.Is(err, ErrAborted)
}

// Load result sources.
const (
	FromMemory = "memory"
	FromDisk   = "disk"
	FromFetch  = "fetch"
)

// LoadResult carries a loaded payload plus where it came from.
type LoadResult struct {
	Data   []byte
	Source string
	Shared bool // coalesced onto another caller's in-flight fetch
}

// Loader deduplicates concurrent artifact loads per cache key: at most one
// underlying fetch runs per key at a time, and its outcome fans out to every
// waiter, success or failure alike. Failures are never cached. Each waiter
// still honors its own context, so one caller aborting rejects only that
// caller unless the shared fetch itself was canceled.
type Loader struct {
	cache  *Cache
	store  *DiskStore
	source Source
	group  singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDiskStore adds a persistent layer consulted on memory misses and
// populated after successful fetches.
func WithDiskStore(store *DiskStore) LoaderOption {
	return func(l *Loader) { l.store = store }
}

// NewLoader creates a Loader over the given cache and source.
func NewLoader(cache *Cache, source Source, opts ...LoaderOption) *Loader {
	l := &Loader{cache: cache, source: source}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cache exposes the in-memory cache for stats and explicit clears.
func (l *Loader) Cache() *Cache { return l.cache }

// Load returns the payload for req, consulting memory, then disk, then the
// source. Concurrent calls for the same key share one fetch.
func (l *Loader) Load(ctx context.Context, req Request) (*LoadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.Key()
	if data, ok := l.cache.Get(key); ok {
		return &LoadResult{Data: data, Source: FromMemory}, nil
	}

	// The fill closure runs under the initiating caller's context: if that
	// caller aborts, the shared fetch dies with it and every waiter sees
	// the same aborted rejection, exactly like a shared canceled promise.
	ch := l.group.DoChan(key, func() (interface{}, error) {
		return l.fill(ctx, req, key)
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ErrAborted, ctx.Err().Error())
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				return nil, eris.Wrap(ErrAborted, res.Err.Error())
			}
			return nil, res.Err
		}
		out := *res.Val.(*LoadResult)
		out.Shared = res.Shared
		return &out, nil
	}
}

func (l *Loader) fill(ctx context.Context, req Request, key string) (*LoadResult, error) {
	if l.store != nil {
		data, err := l.store.Get(ctx, key)
		if err != nil {
			zap.L().Warn("artifact: disk cache read failed",
				zap.String("key", key),
				zap.Error(err),
			)
		} else if data != nil {
			l.cache.Set(key, data, req.priority())
			return &LoadResult{Data: data, Source: FromDisk}, nil
		}
	}

	data, err := l.source.Fetch(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: load %s", key)
	}

	l.cache.Set(key, data, req.priority())
	if l.store != nil {
		// A zero memory TTL means no expiry; disk rows still need one.
		ttl := l.cache.TTL()
		if ttl <= 0 {
			ttl = 30 * 24 * time.Hour
		}
		if err := l.store.Set(ctx, key, data, req.priority(), ttl); err != nil {
			zap.L().Warn("artifact: disk cache write failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}

	zap.L().Debug("artifact: fetched",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("priority", req.priority().String()),
	)
	return &LoadResult{Data: data, Source: FromFetch}, nil
}
