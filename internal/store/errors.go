package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// ErrDuplicate is returned when an insert hits a uniqueness constraint the
// statement does not already swallow, typically the primary key. Callers
// treat it as "the row exists" and re-read instead of failing.
var ErrDuplicate = eris.New("duplicate row")

// markDuplicate replaces backend uniqueness violations with ErrDuplicate so
// callers can match the sentinel. Other errors pass through untouched.
func markDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}
