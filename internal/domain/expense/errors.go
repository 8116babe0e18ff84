package expense

import "errors"

var (
	// ErrValidation is returned when input to a core operation is malformed
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced expense or project does not exist
	ErrNotFound = errors.New("expense not found")

	// ErrPermissionDenied is returned when the actor lacks the role a transition requires
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStatusConflict is returned when the expense's status changed between read and
	// write; the caller may re-read and retry
	ErrStatusConflict = errors.New("status changed concurrently")

	// ErrReasonRequired is returned when deleting a non-pending expense without an
	// actor and reason
	ErrReasonRequired = errors.New("actor and reason required")
)
