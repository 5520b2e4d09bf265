package core

import "time"

// Clock supplies the current time for all timer comparisons. It is sampled
// once per tick under the lock, and injectable so timed transitions are
// testable without real waits. The system clock keeps Go's monotonic
// reading, so a wall-clock step cannot fire or stall a timed transition;
// timestamps are converted to UTC only when an event or sample is stamped
// for persistence.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
