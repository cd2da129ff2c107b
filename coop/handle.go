package coop

import "time"

// Handle is a shared, read-only observer of a task's outcome. Any number of
// goroutines may wait on it; none can mutate the task through it beyond
// requesting cancellation. The outcome stays retrievable after delivery, so
// a task failure is never dropped.
type Handle struct {
	t     *Task
	done  chan struct{}
	value any
	err   error
}

// Done returns a channel closed when the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Status returns the task's current lifecycle state.
func (h *Handle) Status() Status { return h.t.Status() }

// Await blocks until the task terminates and returns its outcome. A
// cancelled task yields [ErrCancelled].
func (h *Handle) Await() (any, error) {
	<-h.done
	return h.value, h.err
}

// AwaitTimeout is like [Handle.Await] but cancels the task if it has not
// terminated within d, then waits for the unwind to finish. A poll already
// in progress is never interrupted.
func (h *Handle) AwaitTimeout(d time.Duration) (any, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
		h.Cancel()
		<-h.done
	}
	return h.value, h.err
}

// Cancel requests cooperative cancellation. The task observes it at its
// next dispatch, unwinds, and terminates as Cancelled.
func (h *Handle) Cancel() { h.t.exec.cancel(h.t) }
