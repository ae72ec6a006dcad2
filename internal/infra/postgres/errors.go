package postgres

import (
	"errors"

	"simulado-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
)

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation && pgErr.ConstraintName == constraint
}

// validID reports whether id can name a row; anything else cannot exist.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func storeErr(op string, err error) error {
	return domain.StoreFailure(op, err)
}
