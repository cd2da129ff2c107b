package otel

import "time"

// Nop is a no-op implementation of the coop.Observer interface.
// It serves as a placeholder for an OpenTelemetry-backed observer without
// adding dependencies.
type Nop struct{}

// NewNop returns a no-op observer.
func NewNop() *Nop { return &Nop{} }

func (*Nop) TaskSubmitted(uint64) {}

func (*Nop) TaskStarted(uint64) {}

func (*Nop) TaskSuspended(uint64) {}

func (*Nop) TaskFinished(uint64, time.Duration, error, bool) {}

func (*Nop) ExecutorShutdown(bool) {}
