// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package appbuilder

import (
	"context"
	"errors"
	"testing"

	"github.com/z5labs/pipeconf"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

type otelConfig struct {
	initErr     error
	shutdownErr error
}

type tracerProvider struct {
	tracenoop.TracerProvider
	shutdownErr error
	shutdowns   *int
}

func (tp tracerProvider) Shutdown(context.Context) error {
	*tp.shutdowns++
	return tp.shutdownErr
}

func (cfg otelConfig) InitializeOTel(context.Context) error {
	if cfg.initErr != nil {
		return cfg.initErr
	}
	return nil
}

func withTracerProvider(t *testing.T, shutdownErr error) *int {
	t.Helper()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var shutdowns int
	otel.SetTracerProvider(tracerProvider{shutdownErr: shutdownErr, shutdowns: &shutdowns})
	return &shutdowns
}

func noopApp() pipeconf.App {
	return pipeconf.AppFunc(func(context.Context) error { return nil })
}

func TestOTel(t *testing.T) {
	t.Run("fails when initialization fails", func(t *testing.T) {
		errInit := errors.New("failed to init otel")
		b := OTel(pipeconf.AppBuilderFunc[otelConfig](func(context.Context, otelConfig) (pipeconf.App, error) {
			t.Fatal("builder must not run")
			return nil, nil
		}))

		_, err := b.Build(context.Background(), otelConfig{initErr: errInit})
		require.ErrorIs(t, err, errInit)
	})

	t.Run("shuts down when building fails", func(t *testing.T) {
		shutdowns := withTracerProvider(t, nil)
		errBuild := errors.New("failed to build")
		b := OTel(pipeconf.AppBuilderFunc[otelConfig](func(context.Context, otelConfig) (pipeconf.App, error) {
			return nil, errBuild
		}))

		_, err := b.Build(context.Background(), otelConfig{})
		require.ErrorIs(t, err, errBuild)
		require.Equal(t, 1, *shutdowns)
	})

	t.Run("shuts down after the app returns", func(t *testing.T) {
		errShutdown := errors.New("failed to shutdown tracer provider")
		shutdowns := withTracerProvider(t, errShutdown)
		b := OTel(pipeconf.AppBuilderFunc[otelConfig](func(context.Context, otelConfig) (pipeconf.App, error) {
			return noopApp(), nil
		}))

		a, err := b.Build(context.Background(), otelConfig{})
		require.NoError(t, err)
		require.Zero(t, *shutdowns)

		require.ErrorIs(t, a.Run(context.Background()), errShutdown)
		require.Equal(t, 1, *shutdowns)
	})

	t.Run("registers the shutdown with the lifecycle context", func(t *testing.T) {
		shutdowns := withTracerProvider(t, nil)
		b := LifecycleContext(OTel(pipeconf.AppBuilderFunc[otelConfig](func(context.Context, otelConfig) (pipeconf.App, error) {
			return noopApp(), nil
		})))

		a, err := b.Build(context.Background(), otelConfig{})
		require.NoError(t, err)
		require.NoError(t, a.Run(context.Background()))
		require.Equal(t, 1, *shutdowns)
	})
}
