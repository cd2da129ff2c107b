package coop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures an [Executor].
type Option func(*Options)

// Options holds executor configuration. Zero value plus defaultOptions is
// the baseline; use the With* helpers.
type Options struct {
	PanicAsError bool
	Observer     Observer
	Logger       *slog.Logger
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError controls whether a panic inside a poll is converted into
// a task error (default) or re-raised on the worker thread.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver attaches an [Observer] to the executor.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithLogger sets the logger used for executor sanity reports. Defaults to
// a discarding logger.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// Executor owns a fixed pool of worker threads and a FIFO run queue of
// ready tasks. Workers pop tasks, poll them once, and either deliver the
// outcome to the task's [Handle] or leave the task suspended until a waker
// re-enqueues it. An Executor has an explicit lifecycle: construct with
// [New], Submit, then [Executor.Shutdown]; there is no ambient global
// instance.
type Executor struct {
	opts Options
	obs  Observer
	log  *slog.Logger

	mu       sync.Mutex
	cond     sync.Cond
	queue    runQueue
	live     map[uint64]*Task
	closed   bool // no new submissions
	stopping bool // workers drain out

	nextID  atomic.Uint64
	wg      sync.WaitGroup
	workers int
}

// New creates an executor with the given number of worker threads and
// starts them. workers below 1 is treated as 1.
func New(workers int, optFns ...Option) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		opts:    defaultOptions(),
		live:    make(map[uint64]*Task),
		workers: workers,
	}
	for _, fn := range optFns {
		fn(&e.opts)
	}
	e.obs = e.opts.Observer
	e.log = e.opts.Logger
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	e.cond.L = &e.mu
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Workers returns the size of the worker pool.
func (e *Executor) Workers() int { return e.workers }

// Submit enqueues a task for execution and returns its [Handle] without
// blocking. It fails with [ErrClosed] once shutdown has begun.
func (e *Executor) Submit(fn TaskFunc) (*Handle, error) {
	if fn == nil {
		panic("coop: Submit(nil)")
	}
	t := &Task{id: e.nextID.Add(1), exec: e, fn: fn}
	t.handle = &Handle{t: t, done: make(chan struct{})}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if e.obs != nil {
		// Under the mutex so TaskSubmitted is ordered before the task's
		// first TaskStarted.
		e.obs.TaskSubmitted(t.id)
	}
	e.live[t.id] = t
	e.enqueueLocked(t)
	e.mu.Unlock()

	return t.handle, nil
}

// enqueueLocked inserts t into the run queue, collapsing duplicates: a task
// already enqueued stays enqueued once.
func (e *Executor) enqueueLocked(t *Task) {
	if t.flag&flagEnqueued != 0 {
		return
	}
	t.flag |= flagEnqueued
	t.status.Store(int32(Pending))
	e.queue.Push(t)
	// Broadcast rather than Signal: a graceful Shutdown may be waiting on
	// the same condvar as the workers.
	e.cond.Broadcast()
}

// wake transitions t back to the run queue if it is still in the poll cycle
// gen. It reports whether the notification landed on a task that can still
// act on it: a cancelled task is re-enqueued so its unwind proceeds, but the
// wake is reported undelivered so wait queues pass it to the next waiter
// instead of losing it.
func (e *Executor) wake(t *Task, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status(t.status.Load())
	if st == Completed || st == Cancelled {
		return false
	}
	if gen != t.gen {
		// The task moved on to a later poll cycle; this waker lost the
		// race against another wake source.
		return false
	}
	switch st {
	case Running:
		// Fired mid-poll; the worker re-enqueues after the poll returns.
		t.flag |= flagWoken
	case Suspended:
		e.enqueueLocked(t)
	default:
		// Pending: already queued, collapse into the queued dispatch.
	}
	return !t.canceled.Load()
}

// cancel requests cooperative cancellation of t. A suspended task is
// re-enqueued so that its next dispatch observes the cancellation and
// unwinds.
func (e *Executor) cancel(t *Task) {
	t.canceled.Store(true)
	e.mu.Lock()
	if Status(t.status.Load()) == Suspended {
		e.enqueueLocked(t)
	}
	e.mu.Unlock()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	e.mu.Lock()
	for {
		for e.queue.Empty() && !e.stopping {
			e.cond.Wait()
		}
		if e.stopping {
			e.mu.Unlock()
			return
		}
		t := e.queue.Pop()
		t.flag &^= flagEnqueued | flagWoken
		if Status(t.status.Load()) == Running {
			// Single-owner dispatch invariant: the queue never holds
			// duplicates, so this cannot happen.
			panic("coop: internal error: task dispatched twice")
		}
		t.status.Store(int32(Running))
		t.gen++
		e.mu.Unlock()

		e.dispatch(t)

		e.mu.Lock()
	}
}

// dispatch polls t once and routes the outcome.
func (e *Executor) dispatch(t *Task) {
	if t.canceled.Load() {
		e.finish(t, nil, ErrCancelled, false)
		return
	}
	if e.obs != nil {
		e.obs.TaskStarted(t.id)
	}

	start := time.Now()
	t.armed = 0
	p, panicked := e.poll(t)
	t.active += time.Since(start)

	switch p.action {
	case actionReady:
		e.finish(t, p.value, p.err, panicked)
	case actionSuspend:
		if t.armed == 0 {
			e.log.Warn("task suspended without registering a waker", "task", t.id)
			e.finish(t, nil, fmt.Errorf("%w: task %d suspended without registering a waker", ErrInvariantViolation, t.id), false)
			return
		}
		e.mu.Lock()
		woken := t.flag&flagWoken != 0 || t.canceled.Load()
		t.flag &^= flagWoken
		if woken {
			e.enqueueLocked(t)
		} else {
			t.status.Store(int32(Suspended))
		}
		e.mu.Unlock()
		if e.obs != nil && !woken {
			e.obs.TaskSuspended(t.id)
		}
	}
}

// poll runs the task function, following transitions, with panic recovery.
func (e *Executor) poll(t *Task) (p Poll, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			if !e.opts.PanicAsError {
				panic(r)
			}
			panicked = true
			p = Poll{action: actionReady, err: fmt.Errorf("coop: task panic: %v", r)}
		}
	}()
	p = t.fn(t)
	for p.action == actionTransition {
		t.fn = p.next
		p = t.fn(t)
	}
	return p, false
}

// finish drives t to its terminal state: deferred cleanups run LIFO, held
// locks are accounted for, and the outcome becomes visible through the
// task's handle.
func (e *Executor) finish(t *Task, v any, err error, panicked bool) {
	if cerr := t.runCleanups(); cerr != nil && err == nil {
		err = cerr
	}
	canceled := errors.Is(err, ErrCancelled)
	if len(t.held) > 0 {
		// A cancelled task must release its locks as part of the unwind.
		// A task that completes while still holding one leaked it.
		if !canceled {
			e.log.Error("held lock leaked", "task", t.id)
			err = fmt.Errorf("%w: task %d completed while holding a lock (held lock leaked)", ErrInvariantViolation, t.id)
		}
		t.releaseHeld()
	}

	e.mu.Lock()
	if canceled {
		t.status.Store(int32(Cancelled))
	} else {
		t.status.Store(int32(Completed))
	}
	delete(e.live, t.id)
	e.cond.Broadcast()
	e.mu.Unlock()

	h := t.handle
	h.value, h.err = v, err
	close(h.done)

	if e.obs != nil {
		e.obs.TaskFinished(t.id, t.active, err, panicked)
	}
}

func (t *Task) runCleanups() (failed error) {
	for len(t.cleanups) > 0 {
		i := len(t.cleanups) - 1
		f := t.cleanups[i]
		t.cleanups = t.cleanups[:i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					failed = fmt.Errorf("coop: cleanup panic: %v", r)
				}
			}()
			f()
		}()
	}
	return failed
}

func (t *Task) releaseHeld() {
	for len(t.held) > 0 {
		i := len(t.held) - 1
		c := t.held[i]
		t.held = t.held[:i]
		c.release(t)
	}
}

// Shutdown stops the executor. A graceful shutdown cancels every live task,
// drives all unwinds to a terminal state, and then joins the workers; an
// immediate one stops the workers and fails the remaining tasks with
// [ErrCancelled] without running their polls. Either way no new submissions
// are accepted once shutdown begins. Shutdown is idempotent; the first call
// wins. It must not be called from inside a task.
func (e *Executor) Shutdown(graceful bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if graceful {
		for _, t := range e.live {
			t.canceled.Store(true)
			if Status(t.status.Load()) == Suspended {
				e.enqueueLocked(t)
			}
		}
		for len(e.live) > 0 {
			e.cond.Wait()
		}
	}
	e.stopping = true
	e.cond.Broadcast()
	e.mu.Unlock()
	e.wg.Wait()

	if !graceful {
		e.mu.Lock()
		rem := make([]*Task, 0, len(e.live))
		for id, t := range e.live {
			delete(e.live, id)
			rem = append(rem, t)
		}
		e.mu.Unlock()
		for _, t := range rem {
			t.canceled.Store(true)
			t.status.Store(int32(Cancelled))
			h := t.handle
			h.err = ErrCancelled
			close(h.done)
			if e.obs != nil {
				e.obs.TaskFinished(t.id, t.active, ErrCancelled, false)
			}
		}
	}

	e.log.Info("executor shut down", "graceful", graceful)
	if e.obs != nil {
		e.obs.ExecutorShutdown(graceful)
	}
}
