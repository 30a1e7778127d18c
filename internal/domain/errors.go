package domain

import "errors"

// Taxonomia de errores de dominio. Cualquier error que no envuelva alguno de
// estos es de infraestructura y el llamador puede reintentar.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
)

func IsDomainError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden)
}

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// NewError crea un error con mensaje propio que responde a errors.Is(err, kind).
func NewError(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}
