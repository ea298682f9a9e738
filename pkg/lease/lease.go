package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"ai-citation-be/internal/pkg/logger"
)

// ErrHeld reports that another worker is already building the same index.
var ErrHeld = errors.New("lease already held")

// Locker hands out a build lease per index name, so at most one worker
// populates a given topic's index at a time. Redis backs the lease across
// replicas; when Redis is unavailable the locker degrades to process-local
// mutual exclusion.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
	log logger.ILogger

	mu    sync.Mutex
	local map[string]struct{}
}

func NewLocker(redisURL string, ttl time.Duration, log logger.ILogger) *Locker {
	var rdb *redis.Client
	if opts, err := redis.ParseURL(redisURL); err == nil {
		rdb = redis.NewClient(opts)
	} else {
		log.Warn("lease", "invalid redis url, using local leases only", map[string]interface{}{"error": err.Error()})
	}
	return &Locker{
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
		local: make(map[string]struct{}),
	}
}

// Acquire takes the build lease for name. Returns ErrHeld when someone else
// holds it. The caller must Release once the build finishes or fails.
func (l *Locker) Acquire(ctx context.Context, name string) error {
	if l.rdb != nil {
		ok, err := l.rdb.SetNX(ctx, leaseKey(name), "1", l.ttl).Result()
		if err == nil {
			if !ok {
				return ErrHeld
			}
			return nil
		}
		// fall through to the local map on redis outage
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.local[name]; held {
		return ErrHeld
	}
	l.local[name] = struct{}{}
	return nil
}

// Release frees the lease. Safe to call on an unheld name.
func (l *Locker) Release(ctx context.Context, name string) {
	if l.rdb != nil {
		if err := l.rdb.Del(ctx, leaseKey(name)).Err(); err == nil {
			return
		}
	}

	l.mu.Lock()
	delete(l.local, name)
	l.mu.Unlock()
}

func leaseKey(name string) string {
	return "citation:index-build:" + name
}
