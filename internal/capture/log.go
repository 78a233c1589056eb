package capture

import (
	"log"
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
)

// Log levels recorded in the capture log.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Log accumulates the audit trail of one capture. Each capture owns its own Log;
// the events end up in the snapshot's metadata.
type Log struct {
	now     func() time.Time
	verbose bool
	events  []types.CaptureEvent
}

func newLog(now func() time.Time, verbose bool) *Log {
	return &Log{now: now, verbose: verbose}
}

// Record appends one event.
func (l *Log) Record(dimension, step, level, message string, elapsed time.Duration) {
	l.events = append(l.events, types.CaptureEvent{
		Time:       l.now().UTC(),
		Dimension:  dimension,
		Step:       step,
		Level:      level,
		Message:    message,
		DurationMS: elapsed.Milliseconds(),
	})
	if l.verbose {
		log.Printf("[CAPTURE] %s/%s %s: %s", dimension, step, level, message)
	}
}

// Events returns a copy of the recorded events.
func (l *Log) Events() []types.CaptureEvent {
	out := make([]types.CaptureEvent, len(l.events))
	copy(out, l.events)
	return out
}
