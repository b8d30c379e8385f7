// Package throttle enforces the provider's account-wide request spacing.
//
// The provider limits requests per account, not per connection, so one Gate
// is created at startup and shared by every client in the process. Tests build
// their own Gate around a FakeClock.
package throttle

import (
	"context"
	"sync"
	"time"

	"dropship-gateway/internal/metrics"
)

const (
	// MinInterval is the floor between two consecutive dispatches, measured from
	// the start of the previous dispatch. Set below the documented ~1 req/s limit.
	MinInterval = 1500 * time.Millisecond

	// SettleDelay keeps the gate closed briefly after a dispatch so the next
	// caller never computes its window from a timestamp that is about to change.
	SettleDelay = 100 * time.Millisecond
)

// Clock abstracts time so spacing can be verified without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
	// AfterFunc runs f once d has elapsed.
	AfterFunc(d time.Duration, f func())
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (SystemClock) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Gate serializes outbound dispatches. The slot channel is the "locked" flag:
// a buffered channel rather than sync.Mutex so waiting callers can give up via ctx.
type Gate struct {
	clock       Clock
	minInterval time.Duration
	settle      time.Duration
	slot        chan struct{}

	mu            sync.Mutex
	lastRequestAt time.Time
}

// New creates a Gate with the production spacing. A nil clock means SystemClock.
func New(clock Clock) *Gate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{
		clock:       clock,
		minInterval: MinInterval,
		settle:      SettleDelay,
		slot:        make(chan struct{}, 1),
	}
}

// Clock returns the clock the gate measures with, so collaborators sleeping
// around a dispatch (tier delays, backoff) share its notion of time.
func (g *Gate) Clock() Clock {
	return g.clock
}

// Acquire blocks until the caller may dispatch and returns the dispatch time.
//
// ctx only bounds the wait: a caller that gives up before its turn releases the
// gate untouched. Once a dispatch time is recorded the settle release runs
// regardless of what happens to the caller.
func (g *Gate) Acquire(ctx context.Context) (time.Time, error) {
	start := g.clock.Now()

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	}

	last := g.LastDispatch()
	if !last.IsZero() {
		if elapsed := g.clock.Now().Sub(last); elapsed < g.minInterval {
			if err := g.clock.Sleep(ctx, g.minInterval-elapsed); err != nil {
				g.release()
				return time.Time{}, err
			}
		}
	}

	dispatched := g.clock.Now()
	g.mu.Lock()
	g.lastRequestAt = dispatched
	g.mu.Unlock()

	g.clock.AfterFunc(g.settle, g.release)

	metrics.ThrottleWaitSeconds.Observe(dispatched.Sub(start).Seconds())
	return dispatched, nil
}

// LastDispatch returns the most recent dispatch time (zero before the first).
func (g *Gate) LastDispatch() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRequestAt
}

func (g *Gate) release() {
	<-g.slot
}
