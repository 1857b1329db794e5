package fieldwise

import "time"

// TimeProvider supplies the current time to components that embed it into
// prompts. Injecting a custom provider keeps prompt composition
// deterministic in tests.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time

	// Today returns today's date as YYYY-MM-DD.
	Today() string
}

// RealTime is the default TimeProvider backed by the system clock.
type RealTime struct{}

func (RealTime) Now() time.Time {
	return time.Now()
}

func (RealTime) Today() string {
	return time.Now().Format("2006-01-02")
}

// FixedTime is a TimeProvider pinned to a single instant, for tests.
type FixedTime struct {
	Instant time.Time
}

func (f FixedTime) Now() time.Time {
	return f.Instant
}

func (f FixedTime) Today() string {
	return f.Instant.Format("2006-01-02")
}
