package scheduler

import "time"

// Clock abstracts wall-clock access so the reconciliation loop can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}
