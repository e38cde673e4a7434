package access

// Status es el resultado binario de una decisión de acceso.
type Status string

const (
	StatusGranted Status = "granted"
	StatusBlocked Status = "blocked"
)

// Verdict es el veredicto efímero para una identidad en un instante.
// Nunca se persiste; se recalcula en cada evento.
type Verdict struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Decide computa el veredicto para (estado, privilegio).
// Es una función pura y total: no tiene efectos ni puede fallar.
//
//   - mantenimiento apagado        → granted
//   - mantenimiento + administrador → granted (bypass incondicional)
//   - mantenimiento + standard      → blocked con el mensaje del operador
func Decide(s State, p Privilege) Verdict {
	if !s.Enabled {
		return Verdict{Status: StatusGranted}
	}
	if p == PrivilegeAdministrator {
		return Verdict{Status: StatusGranted}
	}
	return Verdict{Status: StatusBlocked, Message: s.MessageOrDefault()}
}

// Unavailable es el veredicto fail-safe cuando no se pudo leer el estado:
// para identidades standard se bloquea en vez de otorgar acceso a ciegas.
func Unavailable() Verdict {
	return Verdict{Status: StatusBlocked, Message: UnavailableMessage}
}
