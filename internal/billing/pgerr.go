package billing

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gyeh/hmscore/internal/model"
)

// SQLSTATE classes surfaced to callers as model.ErrConstraint.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// classify maps Postgres constraint errors onto the shared taxonomy so
// callers can errors.Is against sentinels instead of SQLSTATEs.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgUniqueViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s", model.ErrConstraint, pgErr.Message)
		}
	}
	return err
}
