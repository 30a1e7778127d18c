package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"educamp/internal/domain"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// translate convierte errores de pgx en errores de dominio.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return errors.Join(domain.ErrConflict, err)
		case invalidTextRepresentation:
			// Un id mal formado nunca coincide con una fila.
			return errors.Join(domain.ErrNotFound, err)
		}
	}
	return err
}

// validID indica si el id puede compararse contra una columna uuid.
// Los ids llegan desde URLs, callbacks y eventos sin validar.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
