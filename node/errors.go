package node

import "strings"

// MultiError collects the failures of a shutdown that keeps going after the
// first error.
type MultiError []error

func (m MultiError) Error() string {
	if len(m) == 1 {
		return m[0].Error()
	}
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range m {
		b.WriteString("\n- " + err.Error())
	}
	return b.String()
}

func (m MultiError) Unwrap() []error {
	return m
}

// ErrorOrNil returns nil for an empty MultiError so callers never return a
// non nil error interface holding no errors.
func (m MultiError) ErrorOrNil() error {
	if len(m) == 0 {
		return nil
	}
	return m
}
