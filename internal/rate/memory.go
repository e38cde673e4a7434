package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter es la misma ventana fija sobre un cache en proceso. Sirve para
// correr sin Redis (dev, tests); no coordina entre réplicas.
type MemoryLimiter struct {
	mu     sync.Mutex
	cache  *gocache.Cache
	max    int64
	window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		cache:  gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	k := fmt.Sprintf("%s:%d", key, winStart.Unix())

	l.mu.Lock()
	var hits int64 = 1
	if v, ok := l.cache.Get(k); ok {
		hits = v.(int64) + 1
	}
	l.cache.Set(k, hits, gocache.DefaultExpiration)
	l.mu.Unlock()

	return verdict(hits, l.max, winStart.Add(l.window).Sub(now)), nil
}
