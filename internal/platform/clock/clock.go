// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

// Package clock abstracts wall-clock time and timer scheduling.
//
// The session manager owns exactly one pending renewal timer at any moment.
// Injecting this interface lets tests drive that timer deterministically
// instead of sleeping through real delays.
package clock

import "time"

// Timer is a single armed callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. It reports whether the call prevented the
	// callback from firing. Safe to call more than once.
	Stop() bool
}

// Clock provides the current time and timer scheduling.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// AfterFunc arms a timer that invokes f after d elapses.
	// The callback runs on its own goroutine.
	AfterFunc(d time.Duration, f func()) Timer
}

// # Real Implementation

type realClock struct{}

type realTimer struct {
	timer *time.Timer
}

// New returns a [Clock] backed by the standard library.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, f)}
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}
