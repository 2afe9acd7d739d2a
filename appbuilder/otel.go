// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/app"
	"github.com/z5labs/pipeconf/lifecycle"

	"go.opentelemetry.io/otel"
)

// OTelInitializer is config which knows how to set up the OTel SDK.
type OTelInitializer interface {
	InitializeOTel(context.Context) error
}

// OTel initializes the OTel SDK before building and shuts the global
// tracer provider down once the built app returns. The shutdown is
// registered with the [lifecycle.Context] when the builder runs
// under [LifecycleContext].
func OTel[T OTelInitializer](builder pipeconf.AppBuilder[T]) pipeconf.AppBuilder[T] {
	return pipeconf.AppBuilderFunc[T](func(ctx context.Context, cfg T) (pipeconf.App, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		err := cfg.InitializeOTel(ctx)
		if err != nil {
			return nil, err
		}

		shutdown := shutdownTracerProvider()

		base, err := builder.Build(ctx, cfg)
		if err != nil {
			return nil, errors.Join(err, shutdown.Run(ctx))
		}

		lc, ok := lifecycle.FromContext(ctx)
		if !ok {
			return app.PostRun(base, shutdown), nil
		}
		lc.OnPostRun(shutdown)
		return base, nil
	})
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func shutdownTracerProvider() lifecycle.Hook {
	return lifecycle.HookFunc(func(ctx context.Context) error {
		s, ok := otel.GetTracerProvider().(shutdowner)
		if !ok {
			return nil
		}
		return s.Shutdown(ctx)
	})
}
