package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/akinalp/pulse/pkg"
)

// newID returns a ULID. ULIDs sort by creation time, which keeps
// "ORDER BY created_at DESC, id DESC" stable when two rows share a timestamp.
func newID() string {
	return ulid.Make().String()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// expectOneRow turns "no row matched" into pkg.ErrNotFound.
func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", pkg.ErrNotFound, what)
	}
	return nil
}
