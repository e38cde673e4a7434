package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed, "hit %d should pass", i+1)
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Zero(t, res.Remaining)
	require.Greater(t, res.RetryAfter, time.Duration(0))

	// Otra key no comparte la ventana.
	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, other.Allowed)
}

func TestVerdict_Boundaries(t *testing.T) {
	// Último hit permitido de la ventana.
	res := verdict(3, 3, 30*time.Second)
	require.True(t, res.Allowed)
	require.Zero(t, res.Remaining)
	require.Zero(t, res.RetryAfter)
	require.Equal(t, 30*time.Second, res.WindowTTL)

	// Excedido: RetryAfter apunta al resto de la ventana.
	res = verdict(4, 3, 30*time.Second)
	require.False(t, res.Allowed)
	require.Zero(t, res.Remaining)
	require.Equal(t, 30*time.Second, res.RetryAfter)

	// Un resto negativo por el borde de ventana no se filtra al caller.
	res = verdict(5, 3, -time.Millisecond)
	require.False(t, res.Allowed)
	require.Zero(t, res.WindowTTL)
	require.Zero(t, res.RetryAfter)
}
