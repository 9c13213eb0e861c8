package search

import "fmt"

// ValidationError covers every malformed or contradictory request shape.
// It is always a client error; the API layer maps it to a 400 response.
// Subkind errors (unsupported CRS, filter syntax, disallowed field or
// operator) are wrapped so errors.As still reaches them.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// invalid wraps a subkind error into the validation umbrella.
func invalid(err error) error {
	return &ValidationError{Err: err}
}
