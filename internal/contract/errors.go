package contract

import "fmt"

// MalformedSpecError reports a contract document that could not be parsed at
// all. It aborts the current run; retrying the same bytes reproduces it.
type MalformedSpecError struct {
	Format Format
	Err    error
}

func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("malformed %s spec: %v", e.Format, e.Err)
}

func (e *MalformedSpecError) Unwrap() error { return e.Err }
