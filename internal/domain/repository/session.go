package repository

import (
	"context"
	"time"
)

// SessionRepository define operaciones para gestionar sesiones de usuario.
type SessionRepository interface {
	// Create crea una nueva sesión en la base de datos.
	Create(ctx context.Context, in CreateSessionInput) (*Session, error)

	// GetByIDHash obtiene una sesión por su hash de token.
	// Retorna nil, nil si no existe.
	GetByIDHash(ctx context.Context, tokenHash string) (*Session, error)

	// Revoke marca una sesión como revocada. Idempotente.
	Revoke(ctx context.Context, tokenHash, revokedBy, reason string) error

	// RevokeAllByUser revoca todas las sesiones activas de un usuario.
	// Retorna el número de sesiones revocadas.
	RevokeAllByUser(ctx context.Context, userID, revokedBy, reason string) (int, error)

	// DeleteExpired elimina sesiones expiradas o revocadas.
	DeleteExpired(ctx context.Context) (int, error)
}

// Session representa una sesión de usuario persistida.
// TokenHash es sha256 del token opaco; el token en claro nunca se guarda.
type Session struct {
	ID           string
	UserID       string
	TokenHash    string
	CreatedAt    time.Time
	LastActivity time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	RevokedBy    *string
	RevokeReason *string
}

// Alive indica si la sesión sigue siendo utilizable.
func (s *Session) Alive(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// CreateSessionInput son los datos para crear una sesión.
type CreateSessionInput struct {
	UserID    string
	TokenHash string
	ExpiresAt time.Time
}
