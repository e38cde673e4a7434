// Package repository define interfaces de acceso a datos.
package repository

import (
	"context"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// AccessRepository es el Access State Store: la única fuente de verdad del
// singleton de mantenimiento.
type AccessRepository interface {
	// Get retorna el singleton actual. Si el sistema no fue aprovisionado
	// todavía, retorna un estado con Enabled=false por convención (no error).
	Get(ctx context.Context) (access.State, error)

	// Toggle reemplaza enabled/message del singleton y registra quién y cuándo.
	// El chequeo de privilegio administrador se hace acá, en el borde del store:
	// si el actor no es administrador retorna ErrForbidden sin mutar nada.
	// Cada write exitoso incrementa Version.
	Toggle(ctx context.Context, in ToggleInput) (access.State, error)
}

// ToggleInput son los datos de un toggle de mantenimiento.
type ToggleInput struct {
	Enabled bool
	// Message es texto plano para mostrar a usuarios bloqueados. nil conserva
	// el fallback al mensaje default.
	Message *string
	// ActorID es la identidad que ejecuta el toggle; debe ser administrador.
	ActorID string
}
