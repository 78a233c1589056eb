package store

import "fmt"

// PersistenceError is returned when the baseline or one of its artifacts cannot
// be read, written or validated. It is never swallowed.
type PersistenceError struct {
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
