package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// isRetriable reports whether a connection error may clear up on its own.
// Bad credentials and a missing database will not.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01", "3D000":
			return false
		}
	}
	return true
}
