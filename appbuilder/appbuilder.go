// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package appbuilder provides [pipeconf.AppBuilder] middleware.
package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/app"
	"github.com/z5labs/pipeconf/config"
	"github.com/z5labs/pipeconf/internal/try"
	"github.com/z5labs/pipeconf/lifecycle"
)

// Recover turns a panic while building into an error.
func Recover[T any](builder pipeconf.AppBuilder[T]) pipeconf.AppBuilder[T] {
	return pipeconf.AppBuilderFunc[T](func(ctx context.Context, cfg T) (_ pipeconf.App, err error) {
		defer try.Recover(&err)

		return builder.Build(ctx, cfg)
	})
}

// FromConfig reads T from a [config.Source] before building.
func FromConfig[T any](builder pipeconf.AppBuilder[T]) pipeconf.AppBuilder[config.Source] {
	return pipeconf.AppBuilderFunc[config.Source](func(ctx context.Context, src config.Source) (pipeconf.App, error) {
		m, err := config.Read(src)
		if err != nil {
			return nil, err
		}

		var cfg T
		err = m.Unmarshal(&cfg)
		if err != nil {
			return nil, err
		}

		return builder.Build(ctx, cfg)
	})
}

// LifecycleContext gives builder a [lifecycle.Context] to register
// hooks with and runs the registered post run hooks once the
// built app returns.
func LifecycleContext[T any](builder pipeconf.AppBuilder[T]) pipeconf.AppBuilder[T] {
	return pipeconf.AppBuilderFunc[T](func(ctx context.Context, cfg T) (pipeconf.App, error) {
		var lc lifecycle.Context
		base, err := builder.Build(lifecycle.NewContext(ctx, &lc), cfg)
		if err != nil {
			// hooks registered before the failure still own resources
			return nil, joinHookErr(ctx, err, lc.PostRun())
		}
		return app.PostRun(base, lc.PostRun()), nil
	})
}

func joinHookErr(ctx context.Context, err error, hook lifecycle.Hook) error {
	return errors.Join(err, hook.Run(ctx))
}
