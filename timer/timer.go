// Package timer provides the scheduled callbacks a round uses for
// phase deadlines (reveal timeouts, blame rebuttal windows): a small
// Clock interface with a real wall-clock implementation for
// production and a virtual-clock implementation for deterministic
// tests, mirroring the original Utils::Timer/TimerCallback split
// without the Qt event loop underneath it.
package timer

import (
	"sync"
	"time"
)

// Handle cancels a scheduled callback. Calling Cancel after the
// callback has already fired is a no-op.
type Handle interface {
	Cancel()
}

// Clock schedules callbacks to run after a delay. Round code depends
// only on this interface, never on time.AfterFunc directly, so tests
// can substitute VirtualClock and control exactly when deadlines fire.
type Clock interface {
	After(d time.Duration, f func()) Handle
}

// WallClock schedules callbacks against real time.
type WallClock struct{}

type wallHandle struct{ t *time.Timer }

func (h wallHandle) Cancel() { h.t.Stop() }

// After schedules f to run once, d after now.
func (WallClock) After(d time.Duration, f func()) Handle {
	return wallHandle{t: time.AfterFunc(d, f)}
}

// VirtualClock is a Clock whose notion of "now" only moves when
// Advance is called, letting a test assert exactly which deadlines
// fire after a given amount of simulated time.
type VirtualClock struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*virtualEntry
	seq     int
}

type virtualEntry struct {
	due       time.Duration
	f         func()
	cancelled bool
	seq       int
}

func (e *virtualEntry) Cancel() { e.cancelled = true }

// NewVirtualClock returns a VirtualClock starting at time 0.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// After schedules f to run once VirtualClock's simulated time reaches
// now+d, in the order their deadlines fall due (ties broken by
// registration order).
func (c *VirtualClock) After(d time.Duration, f func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	e := &virtualEntry{due: c.now + d, f: f, seq: c.seq}
	c.pending = append(c.pending, e)
	return e
}

// Advance moves simulated time forward by d and synchronously runs
// every callback whose deadline has now been reached, in deadline
// order.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	now := c.now
	var due []*virtualEntry
	var remaining []*virtualEntry
	for _, e := range c.pending {
		if !e.cancelled && e.due <= now {
			due = append(due, e)
		} else if !e.cancelled {
			remaining = append(remaining, e)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].due < due[i].due || (due[j].due == due[i].due && due[j].seq < due[i].seq) {
				due[i], due[j] = due[j], due[i]
			}
		}
	}
	for _, e := range due {
		e.f()
	}
}

// Now returns the clock's current simulated time.
func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
