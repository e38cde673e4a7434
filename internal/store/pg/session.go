package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/sysgate/internal/domain/repository"
)

// sessionRepo implementa repository.SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo crea un nuevo repositorio de sesiones.
func NewSessionRepo(pool *pgxpool.Pool) repository.SessionRepository {
	return &sessionRepo{pool: pool}
}

const sessionCols = `id, user_id, token_hash, created_at, last_activity, expires_at, revoked_at, revoked_by, revoke_reason`

// Create inserta una nueva sesión.
func (r *sessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (user_id, token_hash, created_at, last_activity, expires_at)
		VALUES ($1, $2, NOW(), NOW(), $3)
		RETURNING %s`, sessionCols)

	s, err := scanSession(r.pool.QueryRow(ctx, query, in.UserID, in.TokenHash, in.ExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// GetByIDHash obtiene una sesión por el hash de su token. nil, nil si no existe.
func (r *sessionRepo) GetByIDHash(ctx context.Context, tokenHash string) (*repository.Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE token_hash = $1`, sessionCols)

	s, err := scanSession(r.pool.QueryRow(ctx, query, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// Revoke marca una sesión como revocada. Idempotente: revocar dos veces no
// pisa el registro original.
func (r *sessionRepo) Revoke(ctx context.Context, tokenHash, revokedBy, reason string) error {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_by = $1, revoke_reason = $2
		WHERE token_hash = $3 AND revoked_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, query, revokedBy, reason, tokenHash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllByUser revoca todas las sesiones activas de un usuario.
func (r *sessionRepo) RevokeAllByUser(ctx context.Context, userID, revokedBy, reason string) (int, error) {
	query := `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_by = $1, revoke_reason = $2
		WHERE user_id = $3 AND revoked_at IS NULL AND expires_at > NOW()
	`
	tag, err := r.pool.Exec(ctx, query, revokedBy, reason, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all by user: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteExpired elimina sesiones expiradas o revocadas.
func (r *sessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at < NOW() OR revoked_at IS NOT NULL`
	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	if err := row.Scan(
		&s.ID, &s.UserID, &s.TokenHash,
		&s.CreatedAt, &s.LastActivity, &s.ExpiresAt,
		&s.RevokedAt, &s.RevokedBy, &s.RevokeReason,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
