// Package rate limita los intentos sobre los endpoints de credenciales
// (login, register) con una ventana fija por clave.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto de un intento contra la ventana actual.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	WindowTTL  time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter cuenta intentos en Redis, una clave por ventana. La clave
// incluye el inicio de ventana, así el contador muere solo y dos réplicas
// siempre cuentan contra la misma ventana.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	winEnd := winStart.Add(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, winStart.Unix())

	// ExpireNX deja el TTL solo en el primer INCR de la ventana; los
	// siguientes lo ven ya puesto y no lo tocan.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate allow %q: %w", key, err)
	}

	return verdict(incr.Val(), l.max, winEnd.Sub(now)), nil
}

// verdict arma el Result a partir del contador y lo que resta de ventana.
func verdict(hits, max int64, left time.Duration) Result {
	if left < 0 {
		left = 0
	}
	res := Result{
		Allowed:   hits <= max,
		Remaining: max - hits,
		WindowTTL: left,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = left
	}
	return res
}
