// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package service exposes pipeline configuration sessions over HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"syscall"

	"github.com/z5labs/pipeconf"
	"github.com/z5labs/pipeconf/app"
	"github.com/z5labs/pipeconf/appbuilder"
	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/health"
	"github.com/z5labs/pipeconf/http/httpclient"
	"github.com/z5labs/pipeconf/internal/otelslog"
	"github.com/z5labs/pipeconf/lifecycle"
	"github.com/z5labs/pipeconf/rest"
	"github.com/z5labs/pipeconf/rest/mux"
	"github.com/z5labs/pipeconf/session"
)

// Builder builds the service with panic recovery, OTel and
// post run cleanup of the pipeline repository.
func Builder() pipeconf.AppBuilder[Config] {
	return appbuilder.Recover(
		appbuilder.LifecycleContext(
			appbuilder.OTel(
				pipeconf.AppBuilderFunc[Config](Init),
			),
		),
	)
}

// Init builds the service from cfg.
func Init(ctx context.Context, cfg Config) (pipeconf.App, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	logHandler := otelslog.NewHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.Logging.Level,
		AddSource: true,
	}))
	log := slog.New(logHandler)

	repo, err := openRepository(ctx, cfg, logHandler)
	if err != nil {
		return nil, err
	}

	ls, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Http.Port))
	if err != nil {
		return nil, errors.Join(err, repo.Close())
	}

	registry := session.NewRegistry(
		repo,
		cfg.Defaults,
		cfg.Platform.Deployment,
		session.LogHandler(logHandler),
	)
	sessions := NewSessions(registry, cfg.Platform.Deployment, LogHandler(logHandler))

	restApp := NewApp(
		sessions,
		repo,
		rest.Listener(ls),
		rest.LogHandler(logHandler),
	)

	closeRepo := lifecycle.HookFunc(func(ctx context.Context) error {
		log.InfoContext(ctx, "closing pipeline repository", slog.Int("open_sessions", registry.Len()))
		return repo.Close()
	})

	var a pipeconf.App = app.WithSignalNotifications(restApp, os.Interrupt, syscall.SIGTERM)
	if lc, ok := lifecycle.FromContext(ctx); ok {
		lc.OnPostRun(closeRepo)
	} else {
		a = app.PostRun(a, closeRepo)
	}
	return app.Recover(a), nil
}

// NewApp serves sessions, the option lists and health checks. repo
// decides readiness when it reports its own health.
func NewApp(sessions *Sessions, repo backend.Repository, opts ...rest.Option) *rest.App {
	var live health.Binary
	ready := health.Metric(&live)
	if m, ok := repo.(health.Metric); ok {
		ready = health.And(&live, m)
	}

	restOpts := []rest.Option{
		rest.Title("pipeconf"),
		rest.Version("v1"),
		rest.OpenApiEndpoint(mux.MethodGet, "/openapi.json", rest.OpenApiJsonHandler),
		rest.OpenApiEndpoint(mux.MethodGet, "/openapi.yaml", rest.OpenApiYamlHandler),
		rest.Handle(mux.MethodGet, "/health/liveness", health.Handler(&live)),
		rest.Handle(mux.MethodGet, "/health/readiness", health.Handler(ready)),
	}
	for _, e := range sessions.Endpoints() {
		restOpts = append(restOpts, rest.Register(e))
	}
	return rest.NewApp(append(restOpts, opts...)...)
}

type repository interface {
	backend.Repository

	Close() error
}

type nopCloser struct {
	backend.Repository
}

func (nopCloser) Close() error { return nil }

func openRepository(ctx context.Context, cfg Config, logHandler slog.Handler) (repository, error) {
	bc := cfg.Platform.Backend
	switch bc.Kind {
	case BackendHTTP:
		clientOpts := []httpclient.Option{
			httpclient.Name("platform"),
			httpclient.LogHandler(logHandler),
		}
		if bc.Http.Timeout > 0 {
			clientOpts = append(clientOpts, httpclient.Timeout(bc.Http.Timeout))
		}
		if bc.Http.MaxRetries > 0 {
			clientOpts = append(clientOpts, httpclient.MaxRetries(bc.Http.MaxRetries))
		}
		if bc.Http.TripAfter > 0 {
			clientOpts = append(clientOpts, httpclient.TripAfter(bc.Http.TripAfter))
		}

		h, err := backend.NewHTTP(
			bc.Http.BaseURL,
			backend.Client(httpclient.New(clientOpts...)),
			backend.LogHandler(logHandler),
		)
		if err != nil {
			return nil, err
		}
		return nopCloser{h}, nil
	case BackendSQLite:
		db, err := backend.OpenSQLite(ctx, bc.SQLite.Path)
		if err != nil {
			return nil, err
		}
		for _, seed := range bc.SQLite.Seed {
			err = db.Seed(ctx, seed.Ref(), seed.Artifact, cfg.Defaults)
			if err != nil {
				return nil, errors.Join(err, db.Close())
			}
		}
		return db, nil
	default:
		return nil, UnknownBackendError{Kind: bc.Kind}
	}
}

var _ health.Metric = (*backend.SQLite)(nil)

