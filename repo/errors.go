package repo

import (
	"errors"
	"fmt"

	"github.com/Skryldev/employee-records/models"
)

// ErrDuplicateKeyConflict is returned when an employee is constructed with an
// id that is already stored with different field values.
var ErrDuplicateKeyConflict = errors.New("repo/employee: duplicate key conflict")

// ConflictError carries the conflicting id together with both versions of the
// row. errors.Is matches ErrDuplicateKeyConflict and, through Cause, the
// mapped db.ErrDuplicateKey.
type ConflictError struct {
	ID        int64
	Stored    models.Employee
	Requested models.Employee
	Cause     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: id %d is stored as %s, requested %s",
		ErrDuplicateKeyConflict, e.ID, e.Stored, e.Requested)
}

func (e *ConflictError) Is(target error) bool { return target == ErrDuplicateKeyConflict }
func (e *ConflictError) Unwrap() error        { return e.Cause }

// IsDuplicateKeyConflict reports whether err is (or wraps) a ConflictError.
func IsDuplicateKeyConflict(err error) bool { return errors.Is(err, ErrDuplicateKeyConflict) }
