// Package timer provides the time source and the randomized deadlines driving elections and heartbeats.
//
// Deadlines are never waited on, they are checked on every tick of the owning process. Time comes from
// an injectable Clock so that simulations can be stepped deterministically with ManualClock.
package timer

import (
	"math/rand"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// ManualClock only moves when told to, it is shared by every process of a deterministic simulation
type ManualClock struct {
	mutex sync.Mutex
	now   time.Time
}

func NewManualClock() *ManualClock {
	return &ManualClock{now: time.Unix(0, 0)}
}

func (clock *ManualClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.now
}

func (clock *ManualClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	clock.now = clock.now.Add(duration)
	clock.mutex.Unlock()
}

// Timeout is a deadline drawn uniformly from [min, max) scaled by the speed level
type Timeout struct {
	kind     string
	min      time.Duration
	max      time.Duration
	speed    int
	deadline time.Time
	clock    Clock
	random   *rand.Rand
}

func NewTimeout(kind string, min time.Duration, max time.Duration, clock Clock, random *rand.Rand) *Timeout {
	timeout := &Timeout{
		kind:   kind,
		min:    min,
		max:    max,
		speed:  1,
		clock:  clock,
		random: random,
	}
	timeout.Reset()
	return timeout
}

// Reset draws a new deadline counted from now
func (timeout *Timeout) Reset() {
	delay := timeout.min
	if spread := timeout.max - timeout.min; spread > 0 {
		delay += time.Duration(timeout.random.Int63n(int64(spread)))
	}

	timeout.deadline = timeout.clock.Now().Add(delay * time.Duration(timeout.speed))
}

func (timeout *Timeout) Expired() bool {
	return !timeout.clock.Now().Before(timeout.deadline)
}

// SetSpeed scales bounds of deadlines drawn from now on, 1 is the normal speed
func (timeout *Timeout) SetSpeed(speed int) {
	if speed < 1 {
		speed = 1
	}
	timeout.speed = speed
}

func (timeout *Timeout) Deadline() time.Time {
	return timeout.deadline
}

func (timeout *Timeout) Kind() string {
	return timeout.kind
}
