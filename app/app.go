// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wraps a [pipeconf.App] with process level behaviour.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/internal/try"
	"github.com/z5labs/pipeconf/lifecycle"
)

// Recover turns a panic in app.Run into an error. Panic values
// which are not errors are returned as a [pipeconf.PanicError].
func Recover(app pipeconf.App) pipeconf.App {
	return pipeconf.AppFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications cancels the context passed to app.Run
// once any of the signals is received.
func WithSignalNotifications(app pipeconf.App, signals ...os.Signal) pipeconf.App {
	return pipeconf.AppFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// PostRun runs hook after app.Run returns, including when it panics.
// The hook's error is joined onto the app's.
func PostRun(app pipeconf.App, hook lifecycle.Hook) pipeconf.App {
	return pipeconf.AppFunc(func(ctx context.Context) (err error) {
		defer func() {
			// the app's context is usually cancelled by now
			hookErr := hook.Run(context.WithoutCancel(ctx))
			err = errors.Join(err, hookErr)
		}()

		return app.Run(ctx)
	})
}
