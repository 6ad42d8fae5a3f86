package service

import "time"

// Clock supplies the current time. Production code uses the system clock;
// tests substitute a fixed one so TTL and rotation boundaries are exact.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }
