package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// User representa una cuenta de la plataforma (solo lo que el gate necesita).
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FullName      string
	EmailVerified bool
	CreatedAt     time.Time
}

// UserRepository define el acceso a cuentas de usuario.
type UserRepository interface {
	// GetByEmail busca un usuario por email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID busca un usuario por id.
	GetByID(ctx context.Context, id string) (*User, error)

	// Create inserta un usuario nuevo.
	Create(ctx context.Context, email, passwordHash, fullName string) (*User, error)
}

// RoleRepository es el lookup de privilegio contra la tabla user_roles.
// Se re-consulta en cada transición de autenticación y en cada reconsideración
// Granted→Blocked; el privilegio nunca se cachea más allá de eso.
type RoleRepository interface {
	// PrivilegeOf retorna el nivel de privilegio efectivo del usuario.
	// Los roles admin y superadmin mapean a administrator; todo lo demás
	// (incluyendo usuario sin fila en user_roles) es standard.
	PrivilegeOf(ctx context.Context, userID string) (access.Privilege, error)

	// Grant asigna un rol al usuario. Idempotente.
	Grant(ctx context.Context, userID, role string) error
}
