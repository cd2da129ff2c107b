package coop

import "sync"

// NewChannel creates a bounded channel with the given capacity and returns
// its two endpoints. Capacity is fixed for the channel's lifetime and must
// be at least 1; the bounded buffer is the sole back-pressure mechanism.
func NewChannel[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		panic("coop: channel capacity must be at least 1")
	}
	ch := &channel[T]{buf: make([]T, capacity)}
	return &Sender[T]{ch: ch}, &Receiver[T]{ch: ch}
}

// channel is a bounded multi-producer/multi-consumer ring buffer with FIFO
// wait queues for senders and receivers. Its mutex is held for microseconds
// only and never across a suspension point.
type channel[T any] struct {
	mu     sync.Mutex
	buf    []T
	head   int
	n      int
	closed bool
	sendq  []*Waker
	recvq  []*Waker
}

// Sender is the producing endpoint of a channel. Multiple tasks may share
// one Sender.
type Sender[T any] struct{ ch *channel[T] }

// Receiver is the consuming endpoint of a channel. Multiple tasks may share
// one Receiver.
type Receiver[T any] struct{ ch *channel[T] }

// wakeOne pops wakers in FIFO order until one notification lands on a task
// still suspended on this channel. Stale wakers of cancelled or already
// resumed tasks are discarded along the way.
func wakeOne(q *[]*Waker) {
	for len(*q) > 0 {
		w := (*q)[0]
		*q = (*q)[1:]
		if w.wake() {
			return
		}
	}
}

// Send attempts to enqueue v. It returns (true, nil) on success, having
// woken one waiting receiver if any. When the buffer is full it arms a
// waker for t and returns (false, nil); the task must then return
// t.Suspend() and retry after resuming. Sends on a closed channel fail with
// [ErrClosed].
func (s *Sender[T]) Send(t *Task, v T) (bool, error) {
	ch := s.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return false, ErrClosed
	}
	if ch.n == len(ch.buf) {
		ch.sendq = append(ch.sendq, t.Waker())
		return false, nil
	}
	ch.buf[(ch.head+ch.n)%len(ch.buf)] = v
	ch.n++
	wakeOne(&ch.recvq)
	return true, nil
}

// TrySend is like [Sender.Send] for callers outside the runtime: when the
// buffer is full it returns (false, nil) without registering anything.
func (s *Sender[T]) TrySend(v T) (bool, error) {
	ch := s.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed {
		return false, ErrClosed
	}
	if ch.n == len(ch.buf) {
		return false, nil
	}
	ch.buf[(ch.head+ch.n)%len(ch.buf)] = v
	ch.n++
	wakeOne(&ch.recvq)
	return true, nil
}

// Close marks the channel closed and wakes every waiter. It is idempotent.
// Subsequent sends fail with [ErrClosed]; receives drain the remaining
// buffered items and then report [ErrEndOfStream].
func (s *Sender[T]) Close() {
	ch := s.ch
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	sendq, recvq := ch.sendq, ch.recvq
	ch.sendq, ch.recvq = nil, nil
	ch.mu.Unlock()
	for _, w := range sendq {
		w.Wake()
	}
	for _, w := range recvq {
		w.Wake()
	}
}

// Receive pops the oldest buffered item. It returns (v, true, nil) on
// success, having woken one waiting sender if any. When the buffer is empty
// and the channel open it arms a waker for t and returns (zero, false,
// nil); the task must then return t.Suspend() and retry after resuming.
// A closed, drained channel reports [ErrEndOfStream].
func (r *Receiver[T]) Receive(t *Task) (T, bool, error) {
	var zero T
	ch := r.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.n == 0 {
		if ch.closed {
			return zero, false, ErrEndOfStream
		}
		ch.recvq = append(ch.recvq, t.Waker())
		return zero, false, nil
	}
	v := ch.buf[ch.head]
	ch.buf[ch.head] = zero
	ch.head = (ch.head + 1) % len(ch.buf)
	ch.n--
	wakeOne(&ch.sendq)
	return v, true, nil
}

// TryReceive is like [Receiver.Receive] for callers outside the runtime:
// when the buffer is empty it returns (zero, false, nil) without
// registering anything.
func (r *Receiver[T]) TryReceive() (T, bool, error) {
	var zero T
	ch := r.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.n == 0 {
		if ch.closed {
			return zero, false, ErrEndOfStream
		}
		return zero, false, nil
	}
	v := ch.buf[ch.head]
	ch.buf[ch.head] = zero
	ch.head = (ch.head + 1) % len(ch.buf)
	ch.n--
	wakeOne(&ch.sendq)
	return v, true, nil
}

// Len reports the number of buffered items.
func (r *Receiver[T]) Len() int {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return r.ch.n
}

// Cap reports the fixed capacity.
func (r *Receiver[T]) Cap() int { return len(r.ch.buf) }

// Len reports the number of buffered items.
func (s *Sender[T]) Len() int {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	return s.ch.n
}

// Cap reports the fixed capacity.
func (s *Sender[T]) Cap() int { return len(s.ch.buf) }
