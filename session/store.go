// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package session holds the configuration record of editing sessions.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/internal/noop"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/z5labs/pipeconf/session"

// Listener is notified of every committed snapshot.
type Listener func(configure.Record)

// Option configures a [Store] or [Registry].
type Option func(*options)

type options struct {
	logHandler slog.Handler
	tracer     trace.Tracer
}

func newOptions(opts []Option) options {
	o := options{
		logHandler: noop.LogHandler{},
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LogHandler sets the handler used for logging.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Tracer overrides the tracer taken from the global provider.
func Tracer(t trace.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// Store holds the current record of one editing session.
//
// Dispatches are serialized. Listeners run synchronously, in
// subscription order, while the Store is locked so they must not
// call back into it.
type Store struct {
	log    *slog.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	state     configure.Record
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

// New returns a Store whose current snapshot is r.
func New(r configure.Record, opts ...Option) *Store {
	o := newOptions(opts)
	return &Store{
		log:       slog.New(o.logHandler),
		tracer:    o.tracer,
		state:     r,
		listeners: make(map[uint64]Listener),
	}
}

// State returns the current snapshot.
func (s *Store) State() configure.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a to the current snapshot and commits the result.
// If the action is invalid nothing is committed and listeners are not
// notified.
func (s *Store) Dispatch(ctx context.Context, a configure.Action) (configure.Record, error) {
	var actionType string
	if a != nil {
		actionType = string(a.Type())
	}
	ctx, span := s.tracer.Start(ctx, "Store.Dispatch", trace.WithAttributes(
		attribute.String("action.type", actionType),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := configure.Apply(s.state, a)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WarnContext(ctx, "rejected action", slog.String("action_type", actionType), slog.Any("error", err))
		return s.state, err
	}

	s.state = next
	s.log.DebugContext(ctx, "applied action", slog.String("action_type", actionType))
	s.notify(next)
	return next, nil
}

// Reset replaces the current snapshot without applying an action.
func (s *Store) Reset(r configure.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = r
	s.notify(r)
}

// Subscribe registers l and returns a func which unregisters it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *Store) notify(r configure.Record) {
	live := s.order[:0]
	for _, id := range s.order {
		l, ok := s.listeners[id]
		if !ok {
			continue
		}
		live = append(live, id)
		l(r)
	}
	s.order = live
}
