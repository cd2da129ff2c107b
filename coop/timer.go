package coop

import (
	"sync"
	"time"
)

// Sleep returns a [TaskFunc] that completes after d has elapsed. The task
// suspends; no worker thread is blocked while waiting. The returned
// TaskFunc keeps timer state between polls and is therefore single-use.
func Sleep(d time.Duration) TaskFunc {
	var (
		mu    sync.Mutex
		w     *Waker
		fired bool
		armed bool
	)
	return func(t *Task) Poll {
		mu.Lock()
		if fired {
			mu.Unlock()
			return t.Complete(nil)
		}
		w = t.Waker()
		if !armed {
			armed = true
			tm := time.AfterFunc(d, func() {
				mu.Lock()
				fired = true
				wk := w
				mu.Unlock()
				wk.Wake()
			})
			t.Defer(func() { tm.Stop() })
		}
		mu.Unlock()
		return t.Suspend()
	}
}
