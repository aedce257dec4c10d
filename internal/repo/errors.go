package repo

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup or ownership-scoped write matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate matches any *DuplicateError via errors.Is.
var ErrDuplicate = errors.New("duplicate")

// Unique constraint names from the init migration.
const (
	ConstraintUsername = "users_username_key"
	ConstraintEmail    = "users_email_key"
	ConstraintToken    = "password_reset_tokens_token_key"
)

// DuplicateError reports a unique violation on Constraint.
type DuplicateError struct {
	Constraint string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value violates %s", e.Constraint)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// mapErr turns driver errors into repo errors. Anything else passes through.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return &DuplicateError{Constraint: pqErr.Constraint}
	}
	return err
}
