package clock

import (
	"context"
	"sync"
	"time"
)

// FixtureClock is a Clock with manually controlled time for tests.
//
// Sleep does not block: it advances the fixture's notion of time by the
// requested duration and records the call, so code paths that stagger work
// with Sleep run instantly under test while remaining observable.
// Tickers fire synchronously from Advance.
type FixtureClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	tickers []*fixtureTicker
}

// NewFixtureClock creates a fixture clock starting at the given time
func NewFixtureClock(start time.Time) *FixtureClock {
	return &FixtureClock{now: start}
}

// Now returns the fixture's current time
func (c *FixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records the requested duration and advances time by it
func (c *FixtureClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

// SleepCalls returns every duration passed to Sleep, in call order
func (c *FixtureClock) SleepCalls() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Advance moves time forward, firing due tickers synchronously
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.now = target
	tickers := make([]*fixtureTicker, len(c.tickers))
	copy(tickers, c.tickers)
	c.mu.Unlock()

	for _, t := range tickers {
		t.advanceTo(target)
	}
}

// Ticker creates a fixture ticker driven by Advance
func (c *FixtureClock) Ticker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fixtureTicker{
		interval: d,
		next:     c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

type fixtureTicker struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	fn       func(ctx context.Context)
	stopped  bool
}

func (t *fixtureTicker) Start(fn func(ctx context.Context)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
	return nil
}

func (t *fixtureTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// advanceTo fires the callback once for every interval boundary crossed
func (t *fixtureTicker) advanceTo(target time.Time) {
	for {
		t.mu.Lock()
		if t.stopped || t.fn == nil || t.next.After(target) {
			t.mu.Unlock()
			return
		}
		fn := t.fn
		t.next = t.next.Add(t.interval)
		t.mu.Unlock()

		fn(context.Background())
	}
}
