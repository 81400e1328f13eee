// Package svc coordinates each service's set of long-lived background
// tasks (duty polling, constraint scheduling, lookahead refresh) behind a
// single cancellation signal, adapted from the teacher's
// node/lifecycle.go LifecycleManager/ServiceState model but built on
// golang.org/x/sync/errgroup instead of hand-rolled bookkeeping (spec §5,
// §9 "Background task coordination").
package svc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is a long-lived background loop that runs until ctx is cancelled
// and returns nil on clean shutdown.
type Task func(ctx context.Context) error

// Group runs a named set of Tasks to completion or first error, cancelling
// every other task's context as soon as one returns a non-nil error or the
// parent context is cancelled.
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	names  []string
}

// NewGroup creates a Group bound to ctx.
func NewGroup(ctx context.Context) *Group {
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: gctx}
}

// Go registers a named task to run under the group.
func (g *Group) Go(name string, task Task) {
	g.names = append(g.names, name)
	g.eg.Go(func() error {
		return task(g.ctx)
	})
}

// Wait blocks until every task has returned, returning the first non-nil
// error (if any) and propagating cancellation to the rest.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Context returns the group's cancellation context.
func (g *Group) Context() context.Context {
	return g.ctx
}
