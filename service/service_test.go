// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/z5labs/pipeconf/backend"
	"github.com/z5labs/pipeconf/configure"
	"github.com/z5labs/pipeconf/rest/endpoint"
	"github.com/z5labs/pipeconf/session"

	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu        sync.Mutex
	pipelines map[backend.PipelineRef]backend.Pipeline
}

func (m *memRepo) Load(_ context.Context, ref backend.PipelineRef) (backend.Pipeline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pipelines[ref]
	if !ok {
		return backend.Pipeline{}, fmt.Errorf("%s: %w", ref, backend.ErrPipelineNotFound)
	}
	return p, nil
}

func (m *memRepo) Save(_ context.Context, ref backend.PipelineRef, p backend.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pipelines[ref] = p
	return nil
}

var purchases = backend.PipelineRef{Namespace: "default", Name: "purchases"}

type sessionBody struct {
	ID       string               `json:"id"`
	Pipeline *backend.PipelineRef `json:"pipeline"`
	Record   struct {
		Engine      configure.Engine  `json:"engine"`
		EngineLabel string            `json:"engineLabel"`
		Properties  map[string]string `json:"properties"`
	} `json:"record"`
}

type testServer struct {
	t    *testing.T
	h    http.Handler
	repo *memRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := &memRepo{pipelines: map[backend.PipelineRef]backend.Pipeline{
		purchases: {
			Artifact: configure.Artifact{Name: "cdap-data-streams"},
			Config: backend.Config{
				Engine: configure.Spark,
				Properties: map[string]string{
					configure.ExecutorInstanceKey: "2",
					"system.spark.spark.cores.max": "4",
				},
			},
		},
	}}
	registry := session.NewRegistry(repo, configure.DefaultValues(), configure.Enterprise)

	h, err := NewApp(NewSessions(registry, configure.Enterprise), repo).Handler()
	require.NoError(t, err)
	return &testServer{t: t, h: h, repo: repo}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	s.t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, r)
	return w
}

func (s *testServer) session(w *httptest.ResponseRecorder) sessionBody {
	s.t.Helper()

	var body sessionBody
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *testServer) open(body string) sessionBody {
	s.t.Helper()

	w := s.do(http.MethodPost, "/sessions", body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.session(w)
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp endpoint.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestSessions_open(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		status int
		check  func(*testing.T, sessionBody)
	}{
		{
			name:   "from defaults",
			body:   `{"artifact":{"name":"cdap-data-pipeline"}}`,
			status: http.StatusCreated,
			check: func(t *testing.T, s sessionBody) {
				require.NotEmpty(t, s.ID)
				require.Nil(t, s.Pipeline)
				require.Equal(t, configure.MapReduce, s.Record.Engine)
				require.Equal(t, "MapReduce", s.Record.EngineLabel)
			},
		},
		{
			name:   "from defaults with engine",
			body:   `{"artifact":{"name":"cdap-data-pipeline"},"engine":"spark"}`,
			status: http.StatusCreated,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, configure.Spark, s.Record.Engine)
			},
		},
		{
			name:   "from a deployed pipeline",
			body:   `{"namespace":"default","pipeline":"purchases"}`,
			status: http.StatusCreated,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, &purchases, s.Pipeline)
				require.Equal(t, configure.Spark, s.Record.Engine)
				require.Equal(t, "2", s.Record.Properties[configure.ExecutorInstanceKey])
			},
		},
		{name: "unknown pipeline", body: `{"namespace":"default","pipeline":"missing"}`, status: http.StatusNotFound},
		{name: "namespace without pipeline", body: `{"namespace":"default"}`, status: http.StatusBadRequest},
		{name: "unknown engine", body: `{"engine":"flink"}`, status: http.StatusBadRequest},
		{name: "malformed body", body: `{"namespace":`, status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(http.MethodPost, "/sessions", tc.body)

			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.check != nil {
				tc.check(t, s.session(w))
			}
		})
	}
}

func TestSessions_dispatch(t *testing.T) {
	testCases := []struct {
		name   string
		action string
		status int
		check  func(*testing.T, sessionBody)
	}{
		{
			name:   "set engine",
			action: `{"type":"SET_ENGINE","payload":{"engine":"spark"}}`,
			status: http.StatusOK,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, configure.Spark, s.Record.Engine)
				require.Equal(t, "Apache Spark Streaming", s.Record.EngineLabel)
			},
		},
		{
			name:   "set backpressure",
			action: `{"type":"SET_BACKPRESSURE","payload":{"backpressure":false}}`,
			status: http.StatusOK,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, "false", s.Record.Properties[configure.BackpressureKey])
			},
		},
		{
			name:   "numeric string payload",
			action: `{"type":"SET_NUM_EXECUTORS","payload":{"numExecutors":"3"}}`,
			status: http.StatusOK,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, "3", s.Record.Properties[configure.ExecutorInstanceKey])
			},
		},
		{
			name:   "unrecognized tag is ignored",
			action: `{"type":"SET_SOMETHING_NEW","payload":{}}`,
			status: http.StatusOK,
			check: func(t *testing.T, s sessionBody) {
				require.Equal(t, configure.MapReduce, s.Record.Engine)
			},
		},
		{name: "missing payload field", action: `{"type":"SET_ENGINE","payload":{}}`, status: http.StatusBadRequest},
		{name: "rejected by the reducer", action: `{"type":"SET_NUM_EXECUTORS","payload":{"numExecutors":0}}`, status: http.StatusBadRequest},
		{name: "unknown engine", action: `{"type":"SET_ENGINE","payload":{"engine":"flink"}}`, status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			opened := s.open(`{"artifact":{"name":"cdap-data-pipeline"}}`)

			w := s.do(http.MethodPost, "/sessions/"+opened.ID+"/actions", tc.action)

			require.Equal(t, tc.status, w.Code, w.Body.String())
			if tc.check != nil {
				tc.check(t, s.session(w))
				return
			}

			// rejected actions leave the session unchanged
			w = s.do(http.MethodGet, "/sessions/"+opened.ID, "")
			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, opened.Record, s.session(w).Record)
		})
	}
}

func TestSessions_unknownSession(t *testing.T) {
	s := newTestServer(t)

	testCases := []struct {
		method string
		target string
		body   string
	}{
		{method: http.MethodGet, target: "/sessions/missing"},
		{method: http.MethodPost, target: "/sessions/missing/actions", body: `{"type":"SET_STAGE_LOGGING","payload":{"stageLogging":true}}`},
		{method: http.MethodPost, target: "/sessions/missing/save"},
		{method: http.MethodDelete, target: "/sessions/missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			w := s.do(tc.method, tc.target, tc.body)

			require.Equal(t, http.StatusNotFound, w.Code)
			require.Equal(t, "session not found: missing", errorOf(t, w))
		})
	}
}

func TestSessions_save(t *testing.T) {
	t.Run("writes the exported record", func(t *testing.T) {
		s := newTestServer(t)
		opened := s.open(`{"namespace":"default","pipeline":"purchases"}`)

		w := s.do(http.MethodPost, "/sessions/"+opened.ID+"/actions", `{"type":"SET_BACKPRESSURE","payload":{"backpressure":true}}`)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(http.MethodPost, "/sessions/"+opened.ID+"/save", "")
		require.Equal(t, http.StatusNoContent, w.Code)

		saved, err := s.repo.Load(context.Background(), purchases)
		require.NoError(t, err)
		require.Equal(t, map[string]string{
			configure.ExecutorInstanceKey: "2",
			configure.BackpressureKey:     "true",
			"system.spark.spark.cores.max": "4",
		}, saved.Config.Properties)
	})

	t.Run("rejects sessions without a pipeline", func(t *testing.T) {
		s := newTestServer(t)
		opened := s.open(`{"artifact":{"name":"cdap-data-pipeline"}}`)

		w := s.do(http.MethodPost, "/sessions/"+opened.ID+"/save", "")

		require.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestSessions_close(t *testing.T) {
	s := newTestServer(t)
	opened := s.open(`{"artifact":{"name":"cdap-data-pipeline"}}`)

	w := s.do(http.MethodDelete, "/sessions/"+opened.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/sessions/"+opened.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_options(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/options", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp OptionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, configure.Enterprise, resp.Deployment)
	require.Equal(t, []EngineOption{
		{Value: configure.MapReduce, Label: "MapReduce"},
		{Value: configure.Spark, Label: "Apache Spark Streaming"},
	}, resp.Engines)
	require.Len(t, resp.BatchIntervalMagnitudes, 60)
	require.Equal(t, []configure.IntervalUnit{configure.Seconds, configure.Minutes}, resp.BatchIntervalUnits)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, resp.NumExecutors)
}

func TestNewApp_surface(t *testing.T) {
	s := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/liveness", "").Code)
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/readiness", "").Code)
	})

	t.Run("openapi", func(t *testing.T) {
		w := s.do(http.MethodGet, "/openapi.json", "")
		require.Equal(t, http.StatusOK, w.Code)

		var spec struct {
			Paths map[string]map[string]any `json:"paths"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spec))
		require.Contains(t, spec.Paths, "/sessions")
		require.Contains(t, spec.Paths["/sessions/{id}"], "get")
		require.Contains(t, spec.Paths["/sessions/{id}"], "delete")
		require.Contains(t, spec.Paths["/sessions/{id}/actions"], "post")
		require.Contains(t, spec.Paths["/sessions/{id}/save"], "post")
		require.Contains(t, spec.Paths["/options"], "get")
	})

	t.Run("unknown route", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/pipelines", "").Code)
		require.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodPut, "/sessions", "").Code)
	})
}

func TestNewApp_readinessFollowsSQLite(t *testing.T) {
	db, err := backend.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pipeconf.db"))
	require.NoError(t, err)

	registry := session.NewRegistry(db, configure.DefaultValues(), configure.Local)
	h, err := NewApp(NewSessions(registry, configure.Local), db).Handler()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.Close())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
