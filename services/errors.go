package services

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/letya999/duty-bot/db"
)

// UserError is a recoverable caller mistake (bad date, unknown team, rotation
// disabled, ...). Handlers surface the message verbatim with a 4xx status and
// never retry it.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// NewUserError builds a UserError with a formatted, user-facing message.
func NewUserError(format string, args ...interface{}) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is a UserError specialization carrying the conflicting
// assignment so the caller can offer "force" to the end user.
type ConflictError struct {
	Message  string
	Conflict db.ConflictInfo
}

func (e *ConflictError) Error() string { return e.Message }

// NewConflictError builds a ConflictError describing the blocking assignment.
func NewConflictError(info db.ConflictInfo) *ConflictError {
	name := info.DisplayName
	if name == "" {
		name = info.TeamName
	}
	return &ConflictError{
		Message: fmt.Sprintf("%s is already assigned in team %s on %s; pass force to override",
			info.PersonID, name, info.Date.Format(db.DateLayout)),
		Conflict: info,
	}
}

// IsUserError reports whether err should surface as a 4xx payload.
func IsUserError(err error) bool {
	var ue *UserError
	var ce *ConflictError
	return errors.As(err, &ue) || errors.As(err, &ce)
}

// AsConflictError unwraps err into a ConflictError if it carries one.
func AsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a storage-level unique constraint
// hit. The application-level check-then-write is only a fast path; when two
// writers race past it, the constraint fires and the write boundary converts
// it into a ConflictError instead of crashing the caller.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
