// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/internal/noop"
	"github.com/z5labs/pipeconf/internal/try"
)

// UnexpectedStatusError is returned when the platform responds
// with an unexpected status code.
type UnexpectedStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error implements the [error] interface.
func (e UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// HTTPOption configures a [HTTP] repository.
type HTTPOption func(*HTTP)

// Client sets the client used to reach the platform.
// Defaults to [http.DefaultClient].
func Client(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// LogHandler sets the handler used for logging.
func LogHandler(lh slog.Handler) HTTPOption {
	return func(h *HTTP) {
		h.log = slog.New(lh)
	}
}

// HTTP is a [Repository] backed by the platform REST API.
type HTTP struct {
	base   *url.URL
	client *http.Client
	log    *slog.Logger
}

// NewHTTP returns a repository talking to the platform at baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	h := &HTTP{
		base:   base,
		client: http.DefaultClient,
		log:    slog.New(noop.LogHandler{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HTTP) appURL(ref PipelineRef) string {
	return h.base.JoinPath("v3", "namespaces", ref.Namespace, "apps", ref.Name).String()
}

// appDetail is the platform's application representation. The
// pipeline config is embedded as a JSON encoded string.
type appDetail struct {
	Artifact      configure.Artifact `json:"artifact"`
	Configuration string             `json:"configuration"`
}

type appRequest struct {
	Artifact configure.Artifact `json:"artifact"`
	Config   Config             `json:"config"`
}

// Load implements the [Repository] interface.
func (h *HTTP) Load(ctx context.Context, ref PipelineRef) (p Pipeline, err error) {
	u := h.appURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Pipeline{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Pipeline{}, err
	}
	defer try.Close(&err, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Pipeline{}, fmt.Errorf("%s: %w", ref, ErrPipelineNotFound)
	default:
		return Pipeline{}, unexpectedStatus(req, resp)
	}

	var detail appDetail
	err = json.NewDecoder(resp.Body).Decode(&detail)
	if err != nil {
		return Pipeline{}, err
	}
	p.Artifact = detail.Artifact
	if detail.Configuration != "" {
		err = json.Unmarshal([]byte(detail.Configuration), &p.Config)
		if err != nil {
			return Pipeline{}, InvalidConfigError{Pipeline: ref, Cause: err}
		}
	}

	h.log.InfoContext(ctx, "loaded pipeline", slog.String("pipeline", ref.String()))
	return p, nil
}

// Save implements the [Repository] interface.
func (h *HTTP) Save(ctx context.Context, ref PipelineRef, p Pipeline) (err error) {
	b, err := json.Marshal(appRequest{Artifact: p.Artifact, Config: p.Config})
	if err != nil {
		return err
	}

	u := h.appURL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer try.Close(&err, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", ref, ErrPipelineNotFound)
	default:
		return unexpectedStatus(req, resp)
	}

	h.log.InfoContext(ctx, "saved pipeline", slog.String("pipeline", ref.String()))
	return nil
}

func unexpectedStatus(req *http.Request, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return UnexpectedStatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
	}
}
