package runtime

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Controllers use it for every rotation and transition timer.
type Clock interface {
	Now() time.Time
	AfterFunc(delay time.Duration, callback func()) Timer
}

// RealClock schedules callbacks on the Go runtime timers.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc runs callback on its own goroutine after delay.
func (RealClock) AfterFunc(delay time.Duration, callback func()) Timer {
	return time.AfterFunc(delay, callback)
}

// ManualClock is a deterministic clock whose timers fire only when Advance is called.
// Callbacks run synchronously on the goroutine calling Advance.
type ManualClock struct {
	mu       sync.Mutex
	now      time.Time
	sequence int
	timers   map[int]*manualTimer
}

type manualTimer struct {
	clock    *ManualClock
	id       int
	deadline time.Time
	callback func()
}

// NewManualClock returns a clock positioned at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:    start,
		timers: make(map[int]*manualTimer),
	}
}

// Now returns the simulated time.
func (clock *ManualClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.now
}

// AfterFunc registers callback to run once the simulated time reaches now+delay.
func (clock *ManualClock) AfterFunc(delay time.Duration, callback func()) Timer {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.sequence++
	timer := &manualTimer{
		clock:    clock,
		id:       clock.sequence,
		deadline: clock.now.Add(delay),
		callback: callback,
	}
	clock.timers[timer.id] = timer
	return timer
}

// Advance moves the simulated time forward, firing due timers in deadline order.
func (clock *ManualClock) Advance(duration time.Duration) {
	clock.mu.Lock()
	target := clock.now.Add(duration)
	clock.mu.Unlock()

	for {
		clock.mu.Lock()
		next := clock.nextDueLocked(target)
		if next == nil {
			clock.now = target
			clock.mu.Unlock()
			return
		}
		delete(clock.timers, next.id)
		clock.now = next.deadline
		clock.mu.Unlock()

		next.callback()
	}
}

// ActiveTimers reports how many timers are scheduled and not yet fired or stopped.
func (clock *ManualClock) ActiveTimers() int {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return len(clock.timers)
}

// Deadlines lists the pending deadlines in ascending order.
func (clock *ManualClock) Deadlines() []time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	deadlines := make([]time.Time, 0, len(clock.timers))
	for _, timer := range clock.timers {
		deadlines = append(deadlines, timer.deadline)
	}
	sort.Slice(deadlines, func(first, second int) bool {
		return deadlines[first].Before(deadlines[second])
	})
	return deadlines
}

func (clock *ManualClock) nextDueLocked(target time.Time) *manualTimer {
	var next *manualTimer
	for _, timer := range clock.timers {
		if timer.deadline.After(target) {
			continue
		}
		if next == nil || timer.deadline.Before(next.deadline) || timer.deadline.Equal(next.deadline) && timer.id < next.id {
			next = timer
		}
	}
	return next
}

func (timer *manualTimer) Stop() bool {
	timer.clock.mu.Lock()
	defer timer.clock.mu.Unlock()
	if _, scheduled := timer.clock.timers[timer.id]; !scheduled {
		return false
	}
	delete(timer.clock.timers, timer.id)
	return true
}
