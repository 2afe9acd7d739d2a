// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/internal/noop"
	"github.com/z5labs/pipeconf/rest"
	"github.com/z5labs/pipeconf/rest/endpoint"
	"github.com/z5labs/pipeconf/rest/mux"
	"github.com/z5labs/pipeconf/session"

	"github.com/swaggest/jsonschema-go"
)

// OpenSessionRequest opens a session for a deployed pipeline, or for a
// new pipeline built from platform defaults when no pipeline is named.
type OpenSessionRequest struct {
	Namespace string             `json:"namespace,omitempty"`
	Pipeline  string             `json:"pipeline,omitempty"`
	Artifact  configure.Artifact `json:"artifact"`
	Engine    configure.Engine   `json:"engine,omitempty"`
}

// Validate implements the [endpoint.Validator] interface.
func (req OpenSessionRequest) Validate() error {
	if (req.Namespace == "") != (req.Pipeline == "") {
		return errors.New("namespace and pipeline must be given together")
	}
	if req.Engine != "" && !req.Engine.Valid() {
		return configure.UnknownEngineError{Value: string(req.Engine)}
	}
	return nil
}

func (req OpenSessionRequest) openRequest() session.OpenRequest {
	or := session.OpenRequest{
		Artifact: req.Artifact,
		Engine:   req.Engine,
	}
	if req.Pipeline != "" {
		or.Pipeline = &backend.PipelineRef{Namespace: req.Namespace, Name: req.Pipeline}
	}
	return or
}

// SessionResponse is the current state of a session.
type SessionResponse struct {
	ID       string               `json:"id"`
	Pipeline *backend.PipelineRef `json:"pipeline,omitempty"`
	Record   configure.Record     `json:"record"`
}

func sessionResponse(info session.Info) *SessionResponse {
	return &SessionResponse{
		ID:       info.ID,
		Pipeline: info.Pipeline,
		Record:   info.Record,
	}
}

// ActionRequest is a tagged action, e.g.
//
//	{"type": "SET_ENGINE", "payload": {"engine": "spark"}}
type ActionRequest struct {
	Action configure.Action `json:"-"`
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (req *ActionRequest) UnmarshalJSON(b []byte) error {
	a, err := configure.DecodeAction(b)
	if err != nil {
		return err
	}
	req.Action = a
	return nil
}

// JSONSchema implements the [jsonschema.Exposer] interface.
func (ActionRequest) JSONSchema() (jsonschema.Schema, error) {
	var tag jsonschema.Schema
	tag.WithType(jsonschema.String.Type())
	tag.WithDescription("action tag")

	var payload jsonschema.Schema
	payload.WithType(jsonschema.Object.Type())
	payload.WithDescription("tag specific fields")

	var s jsonschema.Schema
	s.WithType(jsonschema.Object.Type())
	s.WithRequired("type")
	s.WithProperties(map[string]jsonschema.SchemaOrBool{
		"type":    tag.ToSchemaOrBool(),
		"payload": payload.ToSchemaOrBool(),
	})
	return s, nil
}

// EngineOption is a selectable execution engine.
type EngineOption struct {
	Value configure.Engine `json:"value"`
	Label string           `json:"label"`
}

// OptionsResponse lists the values form controls may offer.
type OptionsResponse struct {
	Deployment              configure.Deployment     `json:"deployment"`
	Engines                 []EngineOption           `json:"engines"`
	BatchIntervalMagnitudes []int                    `json:"batchIntervalMagnitudes"`
	BatchIntervalUnits      []configure.IntervalUnit `json:"batchIntervalUnits"`
	NumExecutors            []int                    `json:"numExecutors"`
}

// Sessions serves editing sessions over HTTP.
type Sessions struct {
	registry   *session.Registry
	deployment configure.Deployment
	log        *slog.Logger
	logHandler slog.Handler
}

// SessionsOption configures [Sessions].
type SessionsOption func(*Sessions)

// LogHandler sets the handler [Sessions] logs to.
func LogHandler(h slog.Handler) SessionsOption {
	return func(s *Sessions) {
		s.logHandler = h
	}
}

// NewSessions serves the sessions owned by registry.
func NewSessions(registry *session.Registry, deployment configure.Deployment, opts ...SessionsOption) *Sessions {
	s := &Sessions{
		registry:   registry,
		deployment: deployment,
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = slog.New(s.logHandler)
	return s
}

var sessionID = endpoint.PathParam{Name: "id", Description: "session id"}

// Endpoints returns every session operation.
func (s *Sessions) Endpoints() []rest.Endpoint {
	common := []endpoint.Option{
		endpoint.OnError(errorHandler{}),
		endpoint.LogHandler(s.logHandler),
	}
	opts := func(extra ...endpoint.Option) []endpoint.Option {
		return append(append([]endpoint.Option{}, common...), extra...)
	}

	return []rest.Endpoint{
		{
			Method:  mux.MethodPost,
			Pattern: "/sessions",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[OpenSessionRequest, SessionResponse](s.open),
				opts(
					endpoint.Summary("Open an editing session"),
					endpoint.StatusCode(http.StatusCreated),
					endpoint.Returns(http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity),
				)...,
			),
		},
		{
			Method:  mux.MethodGet,
			Pattern: "/sessions/{id}",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[endpoint.Empty, SessionResponse](s.get),
				opts(
					endpoint.Summary("Get the current configuration of a session"),
					endpoint.PathParams(sessionID),
					endpoint.Returns(http.StatusNotFound),
				)...,
			),
		},
		{
			Method:  mux.MethodPost,
			Pattern: "/sessions/{id}/actions",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[ActionRequest, SessionResponse](s.dispatch),
				opts(
					endpoint.Summary("Apply an action to a session"),
					endpoint.PathParams(sessionID),
					endpoint.Returns(http.StatusBadRequest, http.StatusNotFound),
				)...,
			),
		},
		{
			Method:  mux.MethodPost,
			Pattern: "/sessions/{id}/save",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[endpoint.Empty, endpoint.Empty](s.save),
				opts(
					endpoint.Summary("Save a session to its pipeline"),
					endpoint.StatusCode(http.StatusNoContent),
					endpoint.PathParams(sessionID),
					endpoint.Returns(http.StatusNotFound, http.StatusConflict),
				)...,
			),
		},
		{
			Method:  mux.MethodDelete,
			Pattern: "/sessions/{id}",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[endpoint.Empty, endpoint.Empty](s.close),
				opts(
					endpoint.Summary("Close a session without saving"),
					endpoint.StatusCode(http.StatusNoContent),
					endpoint.PathParams(sessionID),
					endpoint.Returns(http.StatusNotFound),
				)...,
			),
		},
		{
			Method:  mux.MethodGet,
			Pattern: "/options",
			Operation: endpoint.NewOperation(
				endpoint.HandlerFunc[endpoint.Empty, OptionsResponse](s.options),
				opts(endpoint.Summary("List configuration options"))...,
			),
		},
	}
}

func (s *Sessions) open(ctx context.Context, req *OpenSessionRequest) (*SessionResponse, error) {
	info, err := s.registry.Open(ctx, req.openRequest())
	if err != nil {
		return nil, err
	}
	return sessionResponse(info), nil
}

func (s *Sessions) get(ctx context.Context, _ *endpoint.Empty) (*SessionResponse, error) {
	info, err := s.registry.Get(endpoint.PathValue(ctx, sessionID.Name))
	if err != nil {
		return nil, err
	}
	return sessionResponse(info), nil
}

func (s *Sessions) dispatch(ctx context.Context, req *ActionRequest) (*SessionResponse, error) {
	id := endpoint.PathValue(ctx, sessionID.Name)

	if u, ok := req.Action.(configure.Unrecognized); ok {
		s.log.WarnContext(ctx, "ignoring unrecognized action", slog.String("session_id", id), slog.String("tag", u.Tag))
	}

	info, err := s.registry.Dispatch(ctx, id, req.Action)
	if err != nil {
		return nil, err
	}
	return sessionResponse(info), nil
}

func (s *Sessions) save(ctx context.Context, _ *endpoint.Empty) (*endpoint.Empty, error) {
	err := s.registry.Save(ctx, endpoint.PathValue(ctx, sessionID.Name))
	if err != nil {
		return nil, err
	}
	return &endpoint.Empty{}, nil
}

func (s *Sessions) close(ctx context.Context, _ *endpoint.Empty) (*endpoint.Empty, error) {
	err := s.registry.Close(endpoint.PathValue(ctx, sessionID.Name))
	if err != nil {
		return nil, err
	}
	return &endpoint.Empty{}, nil
}

func (s *Sessions) options(_ context.Context, _ *endpoint.Empty) (*OptionsResponse, error) {
	engines := make([]EngineOption, 0, len(configure.Engines()))
	for _, e := range configure.Engines() {
		engines = append(engines, EngineOption{Value: e, Label: e.DisplayLabel(true)})
	}
	return &OptionsResponse{
		Deployment:              s.deployment,
		Engines:                 engines,
		BatchIntervalMagnitudes: configure.BatchIntervalMagnitudes(),
		BatchIntervalUnits:      configure.BatchIntervalUnits(),
		NumExecutors:            configure.NumExecutorsOptions(),
	}, nil
}
