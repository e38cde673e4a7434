package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrForbidden indica que el actor no tiene privilegio para la operación.
	// Lo emite el propio store (no solo la capa HTTP): la UI no es trust boundary.
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indica que el store o el transporte no respondió a tiempo.
	ErrUnavailable = errors.New("unavailable")

	// ErrSessionRevoked indica que la sesión fue revocada.
	ErrSessionRevoked = errors.New("session revoked")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden verifica si el error es ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnavailable verifica si el error es ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
