// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

package session_test

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/basms/sessiond/internal/platform/clock"
)

// # Shared Test Fixtures

// testLogger returns a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ── Fake Clock ───────────────────────────────────────────────────────────────

// fakeClock is a deterministic [clock.Clock]: time only moves when Advance is
// called, and due timers fire synchronously inside Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves the clock forward and fires every due, unstopped timer.
// Timers armed by a firing callback are honored within the same Advance when
// they are already due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		timer := c.nextDueTimer()
		if timer == nil {
			return
		}
		timer.fn()
	}
}

// nextDueTimer pops one due timer, or nil when none remain.
func (c *fakeClock) nextDueTimer() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired && !timer.deadline.After(c.now) {
			timer.fired = true
			return timer
		}
	}
	return nil
}

// armedTimers counts timers that are scheduled but not yet fired or stopped.
func (c *fakeClock) armedTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired {
			count++
		}
	}
	return count
}

// ── Fake Navigator ───────────────────────────────────────────────────────────

// fakeNavigator records navigation for assertions.
type fakeNavigator struct {
	mu      sync.Mutex
	path    string
	history []string
}

func (n *fakeNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *fakeNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
	n.history = append(n.history, path)
}

func (n *fakeNavigator) setPath(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
}
