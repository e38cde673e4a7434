package helpers

import (
	"context"

	"github.com/dropDatabas3/sysgate/internal/auth"
)

type ctxKey int

const claimsKey ctxKey = iota

// WithClaims deja los claims autenticados en el contexto del request.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFrom recupera los claims autenticados del contexto, si los hay.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}
