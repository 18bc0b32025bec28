package session

import "time"

type Timer interface {
	Stop() bool
}

// Clock schedules the session's timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is backed by package time.
func RealClock() Clock { return realClock{} }
