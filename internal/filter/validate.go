package filter

// ValidateFields checks that every property referenced by the expression is
// in the allowed queryable set. The first offending field is reported;
// validation happens before lowering so rejected filters never reach the
// storage layer.
func ValidateFields(expr Expression, allowed []string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = true
	}
	for _, name := range CollectFields(expr) {
		if !allowedSet[name] {
			return &FieldNotQueryableError{Name: name}
		}
	}
	return nil
}

// ValidateOperators checks every operator in the expression against the
// allowed vocabulary. Operators are already canonical after parsing, so an
// aliased spelling and its canonical form validate identically.
func ValidateOperators(expr Expression, allowed map[string]bool) error {
	for _, op := range CollectOperators(expr) {
		if !allowed[op] {
			return &UnsupportedOperatorError{Op: op}
		}
	}
	return nil
}
