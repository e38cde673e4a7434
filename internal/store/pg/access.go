package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
)

// accessRepo implementa repository.AccessRepository sobre la fila singleton
// de system_maintenance.
type accessRepo struct {
	pool *pgxpool.Pool
}

// NewAccessRepo crea el Access State Store.
func NewAccessRepo(pool *pgxpool.Pool) repository.AccessRepository {
	return &accessRepo{pool: pool}
}

const accessCols = `id, is_enabled, COALESCE(message, ''), enabled_by, enabled_at, updated_at, version`

// Get retorna el singleton. Un sistema sin aprovisionar (fila ausente) se trata
// como no-mantenimiento por convención, nunca como error.
func (r *accessRepo) Get(ctx context.Context) (access.State, error) {
	query := fmt.Sprintf(`SELECT %s FROM system_maintenance WHERE id = $1`, accessCols)

	s, err := scanState(r.pool.QueryRow(ctx, query, access.SingletonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return access.State{ID: access.SingletonID, Enabled: false}, nil
	}
	if err != nil {
		return access.State{}, wrapUnavailable(fmt.Errorf("get access state: %w", err))
	}
	return s, nil
}

// Toggle muta el singleton. El chequeo de administrador vive acá, en el borde
// del store, dentro de la misma transacción que el write: la UI no es trust
// boundary. Version se incrementa en cada write para que los suscriptores
// descarten entregas desordenadas.
func (r *accessRepo) Toggle(ctx context.Context, in repository.ToggleInput) (access.State, error) {
	if in.ActorID == "" {
		return access.State{}, repository.ErrInvalidInput
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return access.State{}, wrapUnavailable(fmt.Errorf("begin toggle: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var isAdmin bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role IN ('admin', 'superadmin'))`,
		in.ActorID,
	).Scan(&isAdmin)
	if err != nil {
		return access.State{}, wrapUnavailable(fmt.Errorf("toggle actor check: %w", err))
	}
	if !isAdmin {
		return access.State{}, repository.ErrForbidden
	}

	// Upsert sobre el id fijo: jamás puede existir una segunda fila.
	query := fmt.Sprintf(`
		INSERT INTO system_maintenance (id, is_enabled, message, enabled_by, enabled_at, updated_at, version)
		VALUES ($1, $2, $3, $4, CASE WHEN $2 THEN NOW() END, NOW(), 1)
		ON CONFLICT (id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			message    = EXCLUDED.message,
			enabled_by = EXCLUDED.enabled_by,
			enabled_at = CASE WHEN EXCLUDED.is_enabled THEN NOW() ELSE system_maintenance.enabled_at END,
			updated_at = NOW(),
			version    = system_maintenance.version + 1
		RETURNING %s`, accessCols)

	s, err := scanState(tx.QueryRow(ctx, query, access.SingletonID, in.Enabled, in.Message, in.ActorID))
	if err != nil {
		return access.State{}, wrapUnavailable(fmt.Errorf("toggle access state: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return access.State{}, wrapUnavailable(fmt.Errorf("commit toggle: %w", err))
	}
	return s, nil
}

func scanState(row pgx.Row) (access.State, error) {
	var s access.State
	var msg string
	if err := row.Scan(&s.ID, &s.Enabled, &msg, &s.EnabledBy, &s.EnabledAt, &s.UpdatedAt, &s.Version); err != nil {
		return access.State{}, err
	}
	if msg != "" {
		s.Message = &msg
	}
	return s, nil
}

// wrapUnavailable marca errores de transporte/timeout como ErrUnavailable para
// que el gate falle hacia Blocked.
func wrapUnavailable(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return err
}
