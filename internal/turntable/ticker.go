package turntable

import (
	"sync"
	"time"
)

// Clock supplies the dt of each tick in seconds.
type Clock interface {
	Delta() float64
}

// FixedClock returns the same step every tick, so an export produces the same
// frames no matter how long rendering takes.
type FixedClock struct {
	Step float64
}

func (c FixedClock) Delta() float64 {
	return c.Step
}

// WallClock measures real elapsed time between calls. The first call
// returns 0.
type WallClock struct {
	last time.Time
	now  func() time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{now: time.Now}
}

func (c *WallClock) Delta() float64 {
	now := c.now()
	if c.last.IsZero() {
		c.last = now
		return 0
	}
	dt := now.Sub(c.last).Seconds()
	c.last = now
	return dt
}

// Ticker drives a tick function from a single goroutine.
type Ticker struct {
	// Interval between ticks; zero runs them back to back.
	Interval time.Duration
	Clock    Clock
}

// Handle controls a running tick loop.
type Handle struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Cancel asks the loop to exit after the current tick. It never blocks and
// may be called more than once.
func (h *Handle) Cancel() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start runs fn once per tick until fn returns false or the handle is
// cancelled.
func (t Ticker) Start(fn func(dt float64) bool) *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	clock := t.Clock
	if clock == nil {
		clock = NewWallClock()
	}

	go func() {
		defer close(h.done)

		var tick <-chan time.Time
		if t.Interval > 0 {
			tk := time.NewTicker(t.Interval)
			defer tk.Stop()
			tick = tk.C
		}

		for {
			select {
			case <-h.stop:
				return
			default:
			}
			if !fn(clock.Delta()) {
				return
			}
			if tick == nil {
				continue
			}
			select {
			case <-h.stop:
				return
			case <-tick:
			}
		}
	}()
	return h
}
