// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/rest/endpoint"
	"github.com/z5labs/pipeconf/session"
)

type errorHandler struct{}

// HandleError implements the [endpoint.ErrorHandler] interface.
func (errorHandler) HandleError(ctx context.Context, w http.ResponseWriter, err error) {
	status, ok := statusOf(err)
	if !ok {
		endpoint.DefaultErrorHandler{}.HandleError(ctx, w, err)
		return
	}
	endpoint.WriteError(w, status, err)
}

func statusOf(err error) (int, bool) {
	var (
		invalidAction configure.InvalidActionError
		notFound      session.NotFoundError
		unbound       session.UnboundError
		invalidConfig backend.InvalidConfigError
	)
	switch {
	case errors.As(err, &invalidAction):
		return http.StatusBadRequest, true
	case errors.As(err, &notFound), errors.Is(err, backend.ErrPipelineNotFound):
		return http.StatusNotFound, true
	case errors.As(err, &unbound), errors.Is(err, session.ErrNoRepository):
		return http.StatusConflict, true
	case errors.As(err, &invalidConfig):
		return http.StatusUnprocessableEntity, true
	default:
		return 0, false
	}
}
