package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/sysgate/internal/access"
	"github.com/dropDatabas3/sysgate/internal/domain/repository"
)

// roleRepo implementa repository.RoleRepository sobre user_roles.
type roleRepo struct {
	pool *pgxpool.Pool
}

// NewRoleRepo crea el lookup de privilegio.
func NewRoleRepo(pool *pgxpool.Pool) repository.RoleRepository {
	return &roleRepo{pool: pool}
}

// PrivilegeOf mapea roles admin/superadmin a administrator; el resto (incluido
// un usuario sin filas en user_roles) es standard. Se consulta en cada
// transición de autenticación; el resultado no debe cachearse más allá de eso.
func (r *roleRepo) PrivilegeOf(ctx context.Context, userID string) (access.Privilege, error) {
	var isAdmin bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id = $1 AND role IN ('admin', 'superadmin'))`,
		userID,
	).Scan(&isAdmin)
	if err != nil {
		return access.PrivilegeStandard, wrapUnavailable(fmt.Errorf("privilege lookup: %w", err))
	}
	if isAdmin {
		return access.PrivilegeAdministrator, nil
	}
	return access.PrivilegeStandard, nil
}

// Grant asigna un rol. Idempotente.
func (r *roleRepo) Grant(ctx context.Context, userID, role string) error {
	switch role {
	case "user", "admin", "superadmin":
	default:
		return fmt.Errorf("%w: unknown role %q", repository.ErrInvalidInput, role)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, role,
	)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}
