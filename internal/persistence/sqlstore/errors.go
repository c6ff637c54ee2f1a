package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/facility-booking/internal/persistence"
)

const pgUniqueViolation = "23505"

// mapError translates driver errors into persistence errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: %s: %w", op, persistence.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("sqlstore: %s: %w", op, persistence.ErrDuplicate)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("sqlstore: %s: %w", op, persistence.ErrDuplicate)
	}
	return fmt.Errorf("sqlstore: %s: %w", op, err)
}

// requireAffected returns persistence.ErrNotFound when the statement touched no
// rows.
func requireAffected(op string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: %s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: %s: %w", op, persistence.ErrNotFound)
	}
	return nil
}
