package coop

import "sync"

// lockCore carries the holder and the FIFO waiter queue shared by all Lock
// instantiations. Its mutex is internal, scoped to microseconds, and never
// held across a suspension point.
type lockCore struct {
	mu      sync.Mutex
	holder  *Task
	waiters []*lockWaiter
}

type lockWaiter struct {
	t *Task
	w *Waker
}

// Lock is a mutual-exclusion primitive guarding a value of type T.
// Contended acquisition suspends the calling task instead of blocking its
// worker thread, and waiters acquire in FIFO order: release hands the lock
// to the front waiter directly, so late arrivals cannot barge past it.
type Lock[T any] struct {
	core  lockCore
	value T
}

// NewLock creates a lock guarding v.
func NewLock[T any](v T) *Lock[T] {
	return &Lock[T]{value: v}
}

// Acquire attempts to take the lock for t. On success it returns a [Guard]
// that must be released with Unlock; release happens automatically if t is
// cancelled while holding it. When the lock is held elsewhere, Acquire arms
// a waker, queues t, and returns (nil, false); the task must then return
// t.Suspend() and call Acquire again after resuming — its queue position is
// kept across retries.
func (l *Lock[T]) Acquire(t *Task) (*Guard[T], bool) {
	c := &l.core
	c.mu.Lock()
	switch {
	case c.holder == t:
		if t.holds(c) {
			c.mu.Unlock()
			panic("coop: lock acquired twice by one task")
		}
		// Handed off by the previous holder while t was suspended.
		c.removeWaiterLocked(t)
		c.mu.Unlock()
	case c.holder == nil && len(c.waiters) == 0:
		c.holder = t
		c.mu.Unlock()
	default:
		if h := c.holder; h != nil && h.Status() == Cancelled {
			c.mu.Unlock()
			panic("coop: held lock leaked: holder cancelled without releasing")
		}
		if lw := c.waiterLocked(t); lw != nil {
			// Re-arm after a retry, keeping the FIFO position.
			lw.w = t.Waker()
		} else {
			c.waiters = append(c.waiters, &lockWaiter{t: t, w: t.Waker()})
			t.Defer(func() { c.abandon(t) })
		}
		c.mu.Unlock()
		return nil, false
	}
	t.held = append(t.held, c)
	return &Guard[T]{l: l, t: t}, true
}

func (c *lockCore) waiterLocked(t *Task) *lockWaiter {
	for _, lw := range c.waiters {
		if lw.t == t {
			return lw
		}
	}
	return nil
}

func (c *lockCore) removeWaiterLocked(t *Task) {
	for i, lw := range c.waiters {
		if lw.t == t {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// abandon runs at t's terminal transition: it drops t's queue entry and, if
// the lock was handed to t but never picked up, passes it on.
func (c *lockCore) abandon(t *Task) {
	c.mu.Lock()
	c.removeWaiterLocked(t)
	if c.holder == t && !t.holds(c) {
		c.handoffLocked()
	}
	c.mu.Unlock()
}

// release drops t's ownership and hands the lock to the next live waiter.
func (c *lockCore) release(t *Task) {
	c.mu.Lock()
	if c.holder == t {
		c.handoffLocked()
	}
	c.mu.Unlock()
}

// handoffLocked grants the lock to the front waiter whose waker still
// lands; stale waiters are dropped along the way.
func (c *lockCore) handoffLocked() {
	c.holder = nil
	for len(c.waiters) > 0 {
		lw := c.waiters[0]
		if lw.w.wake() {
			c.holder = lw.t
			return
		}
		c.waiters = c.waiters[1:]
	}
}

// Guard is a scoped handle on an acquired [Lock]. It belongs to the task
// that acquired it and must only be used from that task's polls.
type Guard[T any] struct {
	l        *Lock[T]
	t        *Task
	released bool
}

// Value returns a pointer to the protected value. The pointer must not be
// retained past Unlock.
func (g *Guard[T]) Value() *T {
	if g.released {
		panic("coop: guard used after release")
	}
	return &g.l.value
}

// Unlock releases the lock, handing it to the next waiter in FIFO order.
// Releasing twice is an invariant violation.
func (g *Guard[T]) Unlock() {
	if g.released {
		panic("coop: lock released twice")
	}
	g.released = true
	g.t.dropHeld(&g.l.core)
	g.l.core.release(g.t)
}
