package masking

import "fmt"

// SurfaceError reports that masks could not be applied because the page
// automation was unavailable or failed.
type SurfaceError struct {
	Message string
	Cause   error
}

func (e *SurfaceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("masking error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("masking error: %s", e.Message)
}

func (e *SurfaceError) Unwrap() error {
	return e.Cause
}
