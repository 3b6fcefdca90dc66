package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation).
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indica que los datos de entrada son inválidos.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyUsed indica que un token de un solo uso ya fue consumido.
	ErrAlreadyUsed = errors.New("already used")

	// ErrRevoked: el token fue revocado o expiró sin haberse usado.
	ErrRevoked = errors.New("revoked")

	// ErrInUse indica que el recurso está referenciado por otra fila.
	ErrInUse = errors.New("in use")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
