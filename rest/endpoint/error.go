// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body written for errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteError writes err as an [ErrorResponse] with the given status code.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

// DefaultErrorHandler lets errors which implement [http.Handler] write
// their own response and answers every other error with 500.
type DefaultErrorHandler struct{}

// HandleError implements the [ErrorHandler] interface.
func (DefaultErrorHandler) HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	var h http.Handler
	if errors.As(err, &h) {
		h.ServeHTTP(w, (&http.Request{}).WithContext(ctx))
		return
	}
	WriteError(w, http.StatusInternalServerError, errors.New(http.StatusText(http.StatusInternalServerError)))
}

// Error associates an HTTP status code with its cause.
type Error struct {
	Status int
	Cause  error
}

// Error implements the [error] interface.
func (e Error) Error() string {
	return e.Cause.Error()
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e Error) Unwrap() error {
	return e.Cause
}

// ServeHTTP implements the [http.Handler] interface.
func (e Error) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, e.Status, e.Cause)
}

// InvalidContentTypeError is returned for request bodies which are not JSON.
type InvalidContentTypeError struct {
	ContentType string
}

// Error implements the [error] interface.
func (e InvalidContentTypeError) Error() string {
	return fmt.Sprintf("unsupported content type: %s", e.ContentType)
}

// ServeHTTP implements the [http.Handler] interface.
func (e InvalidContentTypeError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusUnsupportedMediaType, e)
}

// InvalidJsonError is returned when the request body can not be decoded.
type InvalidJsonError struct {
	Cause error
}

// Error implements the [error] interface.
func (e InvalidJsonError) Error() string {
	return fmt.Sprintf("invalid json: %s", e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e InvalidJsonError) Unwrap() error {
	return e.Cause
}

// ServeHTTP implements the [http.Handler] interface.
func (e InvalidJsonError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusBadRequest, e)
}

// ValidationError is returned when a decoded request fails validation.
type ValidationError struct {
	Cause error
}

// Error implements the [error] interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e ValidationError) Unwrap() error {
	return e.Cause
}

// ServeHTTP implements the [http.Handler] interface.
func (e ValidationError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusBadRequest, e)
}

// MissingPathParamError is returned when a registered path
// parameter is empty.
type MissingPathParamError struct {
	Name string
}

// Error implements the [error] interface.
func (e MissingPathParamError) Error() string {
	return fmt.Sprintf("missing path parameter: %s", e.Name)
}

// ServeHTTP implements the [http.Handler] interface.
func (e MissingPathParamError) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusBadRequest, e)
}
