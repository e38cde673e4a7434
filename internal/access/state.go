// Package access define el estado de acceso al sistema (modo mantenimiento)
// y la función de decisión que determina si una identidad puede usarlo.
package access

import "time"

// SingletonID es el id fijo de la única fila de system_maintenance.
// Se crea una sola vez al aprovisionar el sistema; nunca se insertan otras.
const SingletonID = "00000000-0000-0000-0000-000000000000"

// DefaultMessage se muestra a usuarios bloqueados cuando no hay mensaje configurado.
const DefaultMessage = "El sistema se encuentra en mantenimiento. Intente nuevamente más tarde."

// UnavailableMessage se muestra cuando no se pudo leer el estado de acceso.
const UnavailableMessage = "El sistema no está disponible en este momento. Intente nuevamente en unos minutos."

// Privilege es el nivel de privilegio de una identidad.
type Privilege string

const (
	// PrivilegeStandard: usuario común, bloqueado durante mantenimiento.
	PrivilegeStandard Privilege = "standard"
	// PrivilegeAdministrator: bypass incondicional del modo mantenimiento.
	PrivilegeAdministrator Privilege = "administrator"
)

// State es el registro singleton de acceso al sistema.
// Version es monotónicamente creciente: cada write del toggle la incrementa,
// lo que permite descartar entregas desordenadas del notificador.
type State struct {
	ID        string     `json:"id"`
	Enabled   bool       `json:"is_enabled"`
	Message   *string    `json:"message,omitempty"`
	EnabledBy *string    `json:"enabled_by,omitempty"`
	EnabledAt *time.Time `json:"enabled_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	Version   int64      `json:"version"`
}

// MessageOrDefault retorna el mensaje del operador, o el default si no hay.
func (s State) MessageOrDefault() string {
	if s.Message != nil && *s.Message != "" {
		return *s.Message
	}
	return DefaultMessage
}
