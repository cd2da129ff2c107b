package coop

import (
	"sync/atomic"
	"time"
)

// Status describes where a task is in its lifecycle.
type Status int32

const (
	// Pending means the task is in the run queue awaiting dispatch.
	Pending Status = iota
	// Running means a worker is polling the task right now.
	Running
	// Suspended means the task yielded and waits for a waker to fire.
	Suspended
	// Completed means the task finished, with a value or an error.
	Completed
	// Cancelled means the task was terminated cooperatively.
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type pollAction int8

const (
	actionReady pollAction = iota
	actionSuspend
	actionTransition
)

// Poll is the return value of a [TaskFunc]. It is either terminal (the task
// completed with a value or an error), a suspension (the task armed a waker
// and yields its worker), or a transition to another TaskFunc that runs
// within the same dispatch.
//
// A Poll is created with one of [Task.Complete], [Task.Fail],
// [Task.Suspend], [Task.Transition] or [Task.YieldNow].
type Poll struct {
	action pollAction
	value  any
	err    error
	next   TaskFunc
}

// TaskFunc is one step of a resumable computation. The executor calls it
// with the owning [Task]; the returned [Poll] decides what happens next.
// A TaskFunc that suspends must have armed at least one [Waker] during the
// same call, otherwise the task would starve forever; the executor detects
// the omission and fails the task.
type TaskFunc func(t *Task) Poll

const (
	flagEnqueued uint8 = 1 << iota
	flagWoken
)

// Task is a suspendable unit of work. It is owned exclusively by the
// executor it was submitted to; submitters keep only a [Handle]. All
// methods on Task are meant to be called from within the task's own
// TaskFunc, on the worker that is polling it.
type Task struct {
	id   uint64
	exec *Executor
	fn   TaskFunc

	// flag and gen are guarded by the executor mutex. gen advances at
	// every dispatch so that stale wakers can detect that the suspension
	// cycle they were armed for is over.
	flag uint8
	gen  uint64

	// armed counts wakers registered during the current poll. Only the
	// dispatching worker touches it.
	armed int

	status   atomic.Int32
	canceled atomic.Bool

	// cleanups run LIFO exactly once at the terminal transition.
	cleanups []func()

	// held lists locks currently owned by the task, in acquisition order.
	// Touched only by the worker driving the task.
	held []*lockCore

	// active accumulates time spent inside polls of this task.
	active time.Duration

	handle *Handle
}

// ID returns the opaque identity of t.
func (t *Task) ID() uint64 { return t.id }

// Executor returns the executor that owns t.
func (t *Task) Executor() *Executor { return t.exec }

// Status returns the current lifecycle state of t.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// Cancelled reports whether cancellation has been requested. Task code
// should check it at convenient points and return early; cancellation is
// cooperative, never preemptive.
func (t *Task) Cancelled() bool { return t.canceled.Load() }

// Defer registers f to run exactly once when t reaches a terminal state,
// whether it completes or is cancelled. Deferred functions run in LIFO
// order, before the outcome is visible through the task's [Handle].
func (t *Task) Defer(f func()) {
	if f == nil {
		return
	}
	t.cleanups = append(t.cleanups, f)
}

// Waker returns a single-use waker bound to t and the current poll cycle.
// Arming a waker is what makes a subsequent [Task.Suspend] legal.
func (t *Task) Waker() *Waker {
	t.armed++
	return &Waker{task: t, gen: t.gen}
}

// Complete returns a terminal [Poll] carrying the task's result value.
func (t *Task) Complete(v any) Poll {
	return Poll{action: actionReady, value: v}
}

// Fail returns a terminal [Poll] carrying the task's error.
func (t *Task) Fail(err error) Poll {
	return Poll{action: actionReady, err: err}
}

// Suspend returns a [Poll] that parks t until a waker armed during this
// poll cycle fires.
func (t *Task) Suspend() Poll {
	return Poll{action: actionSuspend}
}

// Transition returns a [Poll] that switches t to work on fn. fn is called
// immediately, within the same dispatch.
func (t *Task) Transition(fn TaskFunc) Poll {
	if fn == nil {
		panic("coop: Transition(nil)")
	}
	return Poll{action: actionTransition, next: fn}
}

// YieldNow arms a waker and fires it immediately, sending t to the back of
// the run queue. It gives other ready tasks a chance to run.
func (t *Task) YieldNow() Poll {
	t.Waker().Wake()
	return t.Suspend()
}

func (t *Task) holds(c *lockCore) bool {
	for _, h := range t.held {
		if h == c {
			return true
		}
	}
	return false
}

func (t *Task) dropHeld(c *lockCore) {
	for i := len(t.held) - 1; i >= 0; i-- {
		if t.held[i] == c {
			t.held = append(t.held[:i], t.held[i+1:]...)
			return
		}
	}
}

// Do returns a [TaskFunc] that calls f once and completes with its result.
func Do(f func() (any, error)) TaskFunc {
	return func(t *Task) Poll {
		v, err := f()
		if err != nil {
			return t.Fail(err)
		}
		return t.Complete(v)
	}
}

// Chain returns a [TaskFunc] that works through each step in order. A step
// that fails short-circuits the chain; the value of the last step becomes
// the task result. The returned TaskFunc keeps progress between polls and
// is therefore single-use.
func Chain(steps ...TaskFunc) TaskFunc {
	var i int
	var cur TaskFunc
	return func(t *Task) Poll {
		for {
			if cur == nil {
				if i == len(steps) {
					return t.Complete(nil)
				}
				cur = steps[i]
				i++
			}
			switch p := cur(t); p.action {
			case actionReady:
				if p.err != nil || i == len(steps) {
					return p
				}
				cur = nil
			case actionTransition:
				cur = p.next
			default:
				return p
			}
		}
	}
}
