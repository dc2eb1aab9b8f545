package services

import "errors"

// Error kinds. Handlers match on these with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrReportNotFound    = errors.New("report not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDependencyFailure = errors.New("dependency failure")
)

// Error carries a caller-facing message alongside its kind. The underlying
// cause, if any, is kept for logging and never shown to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidInput(msg string) error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func dependencyFailure(msg string, err error) error {
	return &Error{Kind: ErrDependencyFailure, Message: msg, Err: err}
}
