// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package rest serves [Operation]s over HTTP alongside the
// OpenAPI spec which documents them.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/z5labs/pipeconf/internal/noop"
	"github.com/z5labs/pipeconf/rest/endpoint"
	"github.com/z5labs/pipeconf/rest/mux"

	"github.com/swaggest/openapi-go/openapi3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Option represents configurable attributes of [App].
type Option func(*App)

// Listener sets the [net.Listener] requests are served on.
//
// If this option is not supplied, then [net.Listen] will be
// used to create a [net.Listener] for "tcp" and address ":8080".
func Listener(ls net.Listener) Option {
	return func(a *App) {
		a.ls = ls
	}
}

// ShutdownTimeout bounds how long in-flight requests are given
// to complete once the [App] is stopped.
func ShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		a.shutdownTimeout = d
	}
}

// LogHandler sets the handler the [App] logs to.
func LogHandler(h slog.Handler) Option {
	return func(a *App) {
		a.log = slog.New(h)
	}
}

// OpenApiEndpoint registers a [http.Handler] which serves the OpenAPI spec.
func OpenApiEndpoint(method mux.Method, pattern string, f func(*openapi3.Spec) http.Handler) Option {
	return func(a *App) {
		a.openApiEndpoints = append(a.openApiEndpoints, func(m Mux) {
			m.Handle(method, pattern, f(a.spec))
		})
	}
}

// OpenApiJsonHandler returns a [http.Handler] which responds with the OpenAPI spec as JSON.
func OpenApiJsonHandler(spec *openapi3.Spec) http.Handler {
	return endpoint.NewOperation(
		endpoint.HandlerFunc[endpoint.Empty, openapi3.Spec](func(_ context.Context, _ *endpoint.Empty) (*openapi3.Spec, error) {
			return spec, nil
		}),
	)
}

// OpenApiYamlHandler returns a [http.Handler] which responds with the OpenAPI spec as YAML.
func OpenApiYamlHandler(spec *openapi3.Spec) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := yaml.Marshal(spec)
		if err != nil {
			endpoint.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(b)
	})
}

// Operation represents anything that can handle HTTP requests
// and provide OpenAPI documentation for itself.
type Operation interface {
	http.Handler

	OpenApi() openapi3.Operation
}

// Endpoint represents all information necessary for registering
// an [Operation] with a [App].
type Endpoint struct {
	Method    mux.Method
	Pattern   string
	Operation Operation
}

// Register registers the [Endpoint] with both
// the App wide OpenAPI spec and the App wide HTTP server.
//
// "/" is always treated as "/{$}".
func Register(e Endpoint) Option {
	return func(a *App) {
		a.endpoints = append(a.endpoints, e)
	}
}

// Handle registers a plain [http.Handler] which is served
// but left out of the OpenAPI spec.
func Handle(method mux.Method, pattern string, h http.Handler) Option {
	return func(a *App) {
		a.handlers = append(a.handlers, func(m Mux) {
			m.Handle(method, pattern, h)
		})
	}
}

// Title sets the title of the API in its OpenAPI spec.
func Title(s string) Option {
	return func(a *App) {
		a.spec.Info.Title = s
	}
}

// Version sets the API version in its OpenAPI spec.
func Version(s string) Option {
	return func(a *App) {
		a.spec.Info.Version = s
	}
}

// Mux registers handlers by method and pattern.
type Mux interface {
	http.Handler

	Handle(method mux.Method, pattern string, h http.Handler)
}

// WithMux overrides the default [mux.Http].
func WithMux(m Mux) Option {
	return func(a *App) {
		a.mux = m
	}
}

// App serves registered [Endpoint]s over HTTP.
type App struct {
	ls              net.Listener
	shutdownTimeout time.Duration
	log             *slog.Logger

	spec      *openapi3.Spec
	mux       Mux
	endpoints []Endpoint

	openApiEndpoints []func(Mux)
	handlers         []func(Mux)

	buildOnce sync.Once
	buildErr  error

	listen func(network, addr string) (net.Listener, error)
}

// NewApp initializes a [App].
func NewApp(opts ...Option) *App {
	app := &App{
		shutdownTimeout: 10 * time.Second,
		log:             slog.New(noop.LogHandler{}),
		spec: &openapi3.Spec{
			Openapi: "3.0.3",
		},
		mux: mux.NewHttp(
			mux.NotFoundHandler(endpoint.Error{Status: http.StatusNotFound, Cause: errors.New(http.StatusText(http.StatusNotFound))}),
			mux.MethodNotAllowedHandler(endpoint.Error{Status: http.StatusMethodNotAllowed, Cause: errors.New(http.StatusText(http.StatusMethodNotAllowed))}),
		),
		listen: net.Listen,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Spec returns the OpenAPI spec of every registered [Endpoint].
func (app *App) Spec() (*openapi3.Spec, error) {
	_, err := app.Handler()
	return app.spec, err
}

// Handler registers every endpoint with the mux and returns it.
// Registration happens once regardless of how often it is called.
func (app *App) Handler() (http.Handler, error) {
	app.buildOnce.Do(func() {
		app.buildErr = app.registerEndpoints()
	})
	if app.buildErr != nil {
		return nil, app.buildErr
	}
	return app.mux, nil
}

// Run serves requests until ctx is cancelled.
func (app *App) Run(ctx context.Context) error {
	h, err := app.Handler()
	if err != nil {
		return err
	}

	ls, err := app.listener()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Handler: otelhttp.NewHandler(
			h,
			"server",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		),
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		app.log.InfoContext(egctx, "serving http", slog.String("addr", ls.Addr().String()))
		return httpServer.Serve(ls)
	})
	eg.Go(func() error {
		<-egctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = eg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) listener() (net.Listener, error) {
	if app.ls != nil {
		return app.ls, nil
	}
	return app.listen("tcp", ":8080")
}

func (app *App) registerEndpoints() error {
	for _, f := range app.openApiEndpoints {
		f(app.mux)
	}
	for _, f := range app.handlers {
		f(app.mux)
	}

	for _, e := range app.endpoints {
		// {$} and {NAME...} are ServeMux only wildcards with no
		// OpenAPI equivalent.
		trimmedPattern := strings.TrimSuffix(e.Pattern, "{$}")
		trimmedPattern = strings.ReplaceAll(trimmedPattern, "...", "")

		err := app.spec.AddOperation(string(e.Method), trimmedPattern, e.Operation.OpenApi())
		if err != nil {
			return err
		}

		// "/" would otherwise match every path
		if e.Pattern == "/" {
			e.Pattern = "/{$}"
		}

		app.mux.Handle(
			e.Method,
			e.Pattern,
			otelhttp.WithRouteTag(trimmedPattern, e.Operation),
		)
	}
	return nil
}
