package filter

import "fmt"

// FilterSyntaxError is returned when filter text cannot be parsed into an
// expression tree. Empty or unparseable input is an error, never an empty
// filter.
type FilterSyntaxError struct {
	Err error
}

func (e *FilterSyntaxError) Error() string {
	return fmt.Sprintf("the filter expression could not be parsed: %v", e.Err)
}

func (e *FilterSyntaxError) Unwrap() error {
	return e.Err
}

func syntaxErrorf(format string, args ...any) error {
	return &FilterSyntaxError{Err: fmt.Errorf(format, args...)}
}

// FieldNotQueryableError is returned when a filter references a field
// outside the allowed queryable set.
type FieldNotQueryableError struct {
	Name string
}

func (e *FieldNotQueryableError) Error() string {
	return fmt.Sprintf("cannot search on field: %s", e.Name)
}

// UnsupportedOperatorError is returned when a filter uses an operator
// outside the allowed vocabulary.
type UnsupportedOperatorError struct {
	Op string
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Op)
}
