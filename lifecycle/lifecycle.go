// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle registers work which runs after a [pipeconf.App] stops.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is work performed relative to [pipeconf.App.Run].
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func implementation of [Hook].
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// MultiHook runs every hook in order, even after one fails,
// and joins their errors.
func MultiHook(hooks ...Hook) Hook {
	return HookFunc(func(ctx context.Context) error {
		var errs []error
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if err := h.Run(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Context collects hooks registered while an app is being built.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook to run once the app returns.
// Hooks run in registration order.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns every registered post run hook as one [Hook].
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	return MultiHook(c.postRuns...)
}

type contextKey struct{}

// NewContext returns a copy of parent carrying c.
func NewContext(parent context.Context, c *Context) context.Context {
	return context.WithValue(parent, contextKey{}, c)
}

// FromContext returns the [Context] carried by ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(contextKey{}).(*Context)
	return c, ok
}
