package capture

import "fmt"

// FatalCaptureError means the target could not be reached at all. No snapshot is produced.
type FatalCaptureError struct {
	URL   string
	Cause error
}

func (e *FatalCaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("capture error: target %s unreachable: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("capture error: target %s unreachable", e.URL)
}

func (e *FatalCaptureError) Unwrap() error {
	return e.Cause
}

// DimensionError describes why one dimension was recorded as absent.
// It is written into snapshot metadata and never returned from Capture.
type DimensionError struct {
	Dimension string
	Message   string
	Cause     error
}

func (e *DimensionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s capture failed: %s: %v", e.Dimension, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s capture failed: %s", e.Dimension, e.Message)
}

func (e *DimensionError) Unwrap() error {
	return e.Cause
}
