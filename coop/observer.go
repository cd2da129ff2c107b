package coop

import "time"

// Observer receives lifecycle notifications from an [Executor].
// Implementations must be safe for concurrent use; callbacks run on worker
// threads and must not block.
type Observer interface {
	// TaskSubmitted fires when Submit accepts a task.
	TaskSubmitted(id uint64)
	// TaskStarted fires at every dispatch of a task.
	TaskStarted(id uint64)
	// TaskSuspended fires when a task parks on a pending condition.
	TaskSuspended(id uint64)
	// TaskFinished fires once per task at its terminal transition. active
	// is the total time spent inside polls of the task.
	TaskFinished(id uint64, active time.Duration, err error, panicked bool)
	// ExecutorShutdown fires when a shutdown finishes.
	ExecutorShutdown(graceful bool)
}
