package coop

import "errors"

var (
	// ErrClosed reports that a channel or an executor no longer accepts
	// input.
	ErrClosed = errors.New("coop: closed")

	// ErrEndOfStream reports that a channel is closed and its buffer is
	// drained. It is a benign completion signal, not a failure.
	ErrEndOfStream = errors.New("coop: end of stream")

	// ErrCancelled reports that a task was terminated cooperatively before
	// producing a result.
	ErrCancelled = errors.New("coop: task cancelled")

	// ErrInvariantViolation reports an internal bug: a task suspended
	// without registering a waker, a lock leaked by its holder, and the
	// like. It aborts only the offending task.
	ErrInvariantViolation = errors.New("coop: invariant violation")
)
