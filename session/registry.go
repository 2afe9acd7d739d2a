// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/configure"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoRepository is returned when a session for a persisted pipeline
// is requested from a registry without a repository.
var ErrNoRepository = errors.New("no pipeline repository configured")

// NotFoundError is returned for an unknown session ID.
type NotFoundError struct {
	ID string
}

// Error implements the [error] interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("session not found: %s", e.ID)
}

// UnboundError is returned when saving a session which was not opened
// for a persisted pipeline.
type UnboundError struct {
	ID string
}

// Error implements the [error] interface.
func (e UnboundError) Error() string {
	return fmt.Sprintf("session %s is not bound to a pipeline", e.ID)
}

// OpenRequest describes the session to open.
type OpenRequest struct {
	// Pipeline, if set, is loaded from the repository.
	// Otherwise the session starts from platform defaults.
	Pipeline *backend.PipelineRef

	// Artifact and Engine only apply to sessions
	// which start from platform defaults.
	Artifact configure.Artifact
	Engine   configure.Engine
}

// Info describes an open session.
type Info struct {
	ID       string
	Pipeline *backend.PipelineRef
	Record   configure.Record
}

type entry struct {
	ref      *backend.PipelineRef
	pipeline backend.Pipeline
	store    *Store
}

// Registry owns every open editing session.
type Registry struct {
	repo       backend.Repository
	defaults   configure.Defaults
	deployment configure.Deployment
	opts       []Option
	log        *slog.Logger
	tracer     trace.Tracer
	newID      func() string

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewRegistry returns an empty registry. Sessions opened for a pipeline
// are loaded from and saved to repo.
func NewRegistry(repo backend.Repository, defaults configure.Defaults, deployment configure.Deployment, opts ...Option) *Registry {
	o := newOptions(opts)
	return &Registry{
		repo:       repo,
		defaults:   defaults,
		deployment: deployment,
		opts:       opts,
		log:        slog.New(o.logHandler),
		tracer:     o.tracer,
		newID:      uuid.NewString,
		sessions:   make(map[string]*entry),
	}
}

// Open starts a new session and returns it.
func (reg *Registry) Open(ctx context.Context, req OpenRequest) (info Info, err error) {
	ctx, span := reg.tracer.Start(ctx, "Registry.Open")
	defer span.End()
	defer recordError(span, &err)

	e := &entry{ref: req.Pipeline}
	var r configure.Record
	if req.Pipeline == nil {
		r = configure.Initialize(
			reg.defaults,
			nil,
			req.Engine,
			configure.WithArtifact(req.Artifact),
			configure.WithDeployment(reg.deployment),
		)
		e.pipeline = backend.Pipeline{Artifact: req.Artifact}
	} else {
		if reg.repo == nil {
			return Info{}, ErrNoRepository
		}
		err = req.Pipeline.Validate()
		if err != nil {
			return Info{}, err
		}
		span.SetAttributes(attribute.String("pipeline", req.Pipeline.String()))

		e.pipeline, err = reg.repo.Load(ctx, *req.Pipeline)
		if err != nil {
			return Info{}, err
		}
		r, err = e.pipeline.Record(reg.defaults, configure.WithDeployment(reg.deployment))
		if err != nil {
			return Info{}, backend.InvalidConfigError{Pipeline: *req.Pipeline, Cause: err}
		}
	}
	e.store = New(r, reg.opts...)

	id := reg.newID()
	span.SetAttributes(attribute.String("session.id", id))

	reg.mu.Lock()
	reg.sessions[id] = e
	reg.mu.Unlock()

	reg.log.InfoContext(ctx, "opened session", slog.String("session_id", id))
	return Info{ID: id, Pipeline: e.ref, Record: r}, nil
}

func (reg *Registry) get(id string) (*entry, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.sessions[id]
	if !ok {
		return nil, NotFoundError{ID: id}
	}
	return e, nil
}

// Get returns the current state of a session.
func (reg *Registry) Get(id string) (Info, error) {
	e, err := reg.get(id)
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Pipeline: e.ref, Record: e.store.State()}, nil
}

// Dispatch applies a to the session's current record and returns the
// session with the record the action produced.
func (reg *Registry) Dispatch(ctx context.Context, id string, a configure.Action) (Info, error) {
	e, err := reg.get(id)
	if err != nil {
		return Info{}, err
	}
	r, err := e.store.Dispatch(ctx, a)
	if err != nil {
		return Info{}, err
	}
	return Info{ID: id, Pipeline: e.ref, Record: r}, nil
}

// Subscribe registers l for every snapshot committed to the session.
func (reg *Registry) Subscribe(id string, l Listener) (unsubscribe func(), err error) {
	e, err := reg.get(id)
	if err != nil {
		return nil, err
	}
	return e.store.Subscribe(l), nil
}

// Save exports the session's current record and writes it to the
// repository.
func (reg *Registry) Save(ctx context.Context, id string) (err error) {
	ctx, span := reg.tracer.Start(ctx, "Registry.Save", trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()
	defer recordError(span, &err)

	e, err := reg.get(id)
	if err != nil {
		return err
	}
	if e.ref == nil {
		return UnboundError{ID: id}
	}
	if reg.repo == nil {
		return ErrNoRepository
	}

	p := e.pipeline.WithRecord(e.store.State())
	err = reg.repo.Save(ctx, *e.ref, p)
	if err != nil {
		return err
	}

	reg.log.InfoContext(
		ctx,
		"saved session",
		slog.String("session_id", id),
		slog.String("pipeline", e.ref.String()),
	)
	return nil
}

// Close discards a session.
func (reg *Registry) Close(id string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.sessions[id]; !ok {
		return NotFoundError{ID: id}
	}
	delete(reg.sessions, id)
	return nil
}

// Len returns the number of open sessions.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.sessions)
}

func recordError(span trace.Span, err *error) {
	if *err == nil {
		return
	}
	span.RecordError(*err)
	span.SetStatus(codes.Error, (*err).Error())
}

