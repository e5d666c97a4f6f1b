// Package clock provides Clock implementations.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/channelgen/ports"
)

// Real returns the actual current time in UTC.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake provides a controllable clock for testing. Every call to Now advances
// it by Step, so start and finish times of a run differ.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	Step    time.Duration
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.current
	f.current = f.current.Add(f.Step)
	return now
}

// Advance moves the fake time forward by duration d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

var (
	_ ports.Clock = Real{}
	_ ports.Clock = (*Fake)(nil)
)
