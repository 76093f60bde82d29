package clocks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed on this clock.
	After(d time.Duration) <-chan time.Time
	Every(d time.Duration, fn func(), label string) *Ticker
}

type Ticker struct {
	cancel  context.CancelFunc
	trigger func()
}

func (t *Ticker) Stop() {
	t.cancel()
}

// Immediately trigger the configured function, resetting the time before the
// next tick.
func (t *Ticker) Trigger() {
	t.trigger()
}

type SystemClock struct{}

func (c *SystemClock) Every(d time.Duration, fn func(), _label string) *Ticker {
	ticker := time.NewTicker(d)

	// Context used to stop all future fn calls
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Ticker{
		cancel: func() {
			cancel()
			ticker.Stop()
		},
		trigger: func() {
			if ctx.Err() != nil {
				return
			}
			fn()
			ticker.Reset(d)
		},
	}
}

func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (c *SystemClock) Now() time.Time {
	return time.Now()
}

func (c *SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ Clock = (*SystemClock)(nil)

// FrozenClock only moves when Advance is called. Every funcs run when a test
// calls TickEvery.
type FrozenClock struct {
	now        time.Time
	everyFuncs map[string]func()
	waiters    []frozenWaiter
	mu         *sync.Mutex
}

type frozenWaiter struct {
	at time.Time
	c  chan time.Time
}

func (c *FrozenClock) Every(d time.Duration, fn func(), label string) *Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.everyFuncs[label] = fn

	return &Ticker{
		cancel: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.everyFuncs, label)
		},
		trigger: fn,
	}
}

func NewFrozenClock() *FrozenClock {
	return &FrozenClock{
		now:        time.Unix(0, 0),
		everyFuncs: make(map[string]func()),
		mu:         &sync.Mutex{},
	}
}

func (c *FrozenClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FrozenClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, frozenWaiter{at: at, c: ch})
	return ch
}

// Advance moves the clock forward and fires any After channels that are due.
func (c *FrozenClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.now.Before(w.at) {
			w.c <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

func (c *FrozenClock) TickEvery(label string) {
	c.mu.Lock()
	fn := c.everyFuncs[label]
	c.mu.Unlock()

	if fn == nil {
		panic(fmt.Sprintf("FrozenClock has no `every` func registered for label %s", label))
	}
	fn()
}

var _ Clock = (*FrozenClock)(nil)
