// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics on top of the coop executor. It lets callers move errgroup-shaped
// code onto cooperative tasks without restructuring call sites.
package errgroup

import (
	"sync"

	"github.com/NetPo4ki/go-coop/coop"
)

// Group is an errgroup-like wrapper over an executor. Tasks submitted via
// Go are awaited together by Wait.
type Group struct {
	e *coop.Executor

	mu        sync.Mutex
	hs        []*coop.Handle
	submitErr error
}

// WithExecutor creates a Group that submits to e.
func WithExecutor(e *coop.Executor) *Group { return &Group{e: e} }

// Go submits fn as a task. A nil fn is ignored. Submission failures (for
// example after shutdown) surface from Wait.
func (g *Group) Go(fn coop.TaskFunc) {
	if fn == nil {
		return
	}
	h, err := g.e.Submit(fn)
	g.mu.Lock()
	if err != nil {
		if g.submitErr == nil {
			g.submitErr = err
		}
	} else {
		g.hs = append(g.hs, h)
	}
	g.mu.Unlock()
}

// Wait awaits every task submitted so far and returns the first non-nil
// error, or nil if all succeeded.
func (g *Group) Wait() error {
	g.mu.Lock()
	hs := g.hs
	g.hs = nil
	err := g.submitErr
	g.submitErr = nil
	g.mu.Unlock()
	for _, h := range hs {
		if _, herr := h.Await(); herr != nil && err == nil {
			err = herr
		}
	}
	return err
}
