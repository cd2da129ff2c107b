package coop

import "sync/atomic"

// Waker is a single-use, thread-safe callback that re-admits a suspended
// task to the run queue. It is bound to one task and one poll cycle.
// Invoking it more than once is a no-op, as is invoking it after the task
// moved on to a later poll cycle; races between producers and the scheduler
// are therefore harmless.
type Waker struct {
	task  *Task
	gen   uint64
	fired atomic.Bool
}

// Wake re-inserts the bound task into the run queue unless it is already
// there. Safe to call from any goroutine.
func (w *Waker) Wake() { w.wake() }

// wake reports whether the notification reached a task that was still in
// the poll cycle the waker was armed for. Wait queues use the result to
// keep popping until one notification lands.
func (w *Waker) wake() bool {
	if !w.fired.CompareAndSwap(false, true) {
		return false
	}
	return w.task.exec.wake(w.task, w.gen)
}
