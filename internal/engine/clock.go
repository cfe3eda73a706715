package engine

import "time"

// Clock supplies wall-clock time to the orchestrator.
//
// Every time-dependent decision in a pass (incremental watermarks, pass
// duration, reminder cutoffs) goes through a Clock so tests can pin "now"
// and exercise the no-past-reminders and watermark properties
// deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}
