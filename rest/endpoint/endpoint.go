// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package endpoint provides typed JSON operations which document
// themselves as OpenAPI operations.
package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"

	"github.com/z5labs/pipeconf/internal/noop"

	"github.com/swaggest/openapi-go/openapi3"
)

// Empty is used as the request or response type of operations
// without a body.
type Empty struct{}

// Handler handles a decoded request.
type Handler[Req, Resp any] interface {
	Handle(context.Context, *Req) (*Resp, error)
}

// HandlerFunc is a func implementation of [Handler].
type HandlerFunc[Req, Resp any] func(context.Context, *Req) (*Resp, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc[Req, Resp]) Handle(ctx context.Context, req *Req) (*Resp, error) {
	return f(ctx, req)
}

// Validator is implemented by requests which can check themselves
// after being decoded.
type Validator interface {
	Validate() error
}

// ErrorHandler writes the response for an error returned
// while handling a request.
type ErrorHandler interface {
	HandleError(context.Context, http.ResponseWriter, error)
}

// ErrorHandlerFunc is a func implementation of [ErrorHandler].
type ErrorHandlerFunc func(context.Context, http.ResponseWriter, error)

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	f(ctx, w, err)
}

// DefaultStatusCode is the status code of successful responses
// unless overridden with [StatusCode].
const DefaultStatusCode = http.StatusOK

type options struct {
	statusCode int
	summary    string
	pathParams []PathParam
	errorCodes []int
	errHandler ErrorHandler
	logHandler slog.Handler
}

// Option configures an [Operation].
type Option func(*options)

// StatusCode sets the status code of successful responses.
func StatusCode(code int) Option {
	return func(o *options) {
		o.statusCode = code
	}
}

// Summary sets the summary of the OpenAPI operation.
func Summary(s string) Option {
	return func(o *options) {
		o.summary = s
	}
}

// PathParam describes a wildcard segment of the operation's pattern.
type PathParam struct {
	Name        string
	Description string
}

// PathParams registers path parameters which must be present
// for the request to be handled.
func PathParams(params ...PathParam) Option {
	return func(o *options) {
		o.pathParams = append(o.pathParams, params...)
	}
}

// Returns documents an additional response status code.
func Returns(codes ...int) Option {
	return func(o *options) {
		o.errorCodes = append(o.errorCodes, codes...)
	}
}

// OnError sets the [ErrorHandler]. Defaults to [DefaultErrorHandler].
func OnError(eh ErrorHandler) Option {
	return func(o *options) {
		o.errHandler = eh
	}
}

// LogHandler sets the handler errors are logged to.
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = h
	}
}

// Operation is a [http.Handler] which decodes a JSON request,
// hands it to a [Handler] and encodes the JSON response.
type Operation[Req, Resp any] struct {
	handler    Handler[Req, Resp]
	statusCode int
	summary    string
	pathParams []PathParam
	errorCodes []int
	errHandler ErrorHandler
	log        *slog.Logger
}

// NewOperation initializes an [Operation].
func NewOperation[Req, Resp any](h Handler[Req, Resp], opts ...Option) *Operation[Req, Resp] {
	o := &options{
		statusCode: DefaultStatusCode,
		errHandler: DefaultErrorHandler{},
		logHandler: noop.LogHandler{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Operation[Req, Resp]{
		handler:    h,
		statusCode: o.statusCode,
		summary:    o.summary,
		pathParams: o.pathParams,
		errorCodes: o.errorCodes,
		errHandler: o.errHandler,
		log:        slog.New(o.logHandler),
	}
}

// ServeHTTP implements the [http.Handler] interface.
func (op *Operation[Req, Resp]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, err := injectPathValues(r.Context(), r, op.pathParams)
	if err != nil {
		op.handleError(ctx, w, err)
		return
	}

	var req Req
	if hasBody[Req]() {
		err = decodeJson(r, &req)
		if err != nil {
			op.handleError(ctx, w, err)
			return
		}
	}
	if v, ok := any(&req).(Validator); ok {
		err = v.Validate()
		if err != nil {
			op.handleError(ctx, w, ValidationError{Cause: err})
			return
		}
	}

	resp, err := op.handler.Handle(ctx, &req)
	if err != nil {
		op.handleError(ctx, w, err)
		return
	}

	if !hasBody[Resp]() {
		w.WriteHeader(op.statusCode)
		return
	}
	if resp == nil {
		op.handleError(ctx, w, ErrNilHandlerResponse)
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		op.handleError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(op.statusCode)
	_, err = w.Write(b)
	if err != nil {
		op.log.ErrorContext(ctx, "failed to write response body", slog.Any("error", err))
	}
}

func (op *Operation[Req, Resp]) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	op.log.ErrorContext(ctx, "failed to handle request", slog.Any("error", err))
	op.errHandler.HandleError(ctx, w, err)
}

// ErrNilHandlerResponse is returned when a [Handler] returns neither
// a response nor an error.
var ErrNilHandlerResponse = errors.New("handler returned nil response")

func hasBody[T any]() bool {
	return reflect.TypeFor[T]() != reflect.TypeFor[Empty]()
}

func decodeJson[Req any](r *http.Request, req *Req) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return InvalidContentTypeError{ContentType: ct}
		}
	}

	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return InvalidJsonError{Cause: io.ErrUnexpectedEOF}
	}
	err = json.Unmarshal(b, req)
	if err != nil {
		return InvalidJsonError{Cause: err}
	}
	return nil
}

// OpenApi returns the OpenAPI description of the operation.
func (op *Operation[Req, Resp]) OpenApi() openapi3.Operation {
	return buildOpenApi[Req, Resp](op)
}
