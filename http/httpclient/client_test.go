// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package httpclient

import (
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeout(t *testing.T) {
	t.Run("will timeout", func(t *testing.T) {
		t.Run("if the timeout is set to be greater than zero", func(t *testing.T) {
			timeout := 100 * time.Millisecond
			done := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-done:
				case <-time.After(2 * timeout):
				}
			}))
			defer srv.Close()
			defer close(done)

			client := New(Timeout(timeout))
			_, err := client.Get(srv.URL)

			var nerr net.Error
			if !assert.ErrorAs(t, err, &nerr) {
				return
			}
			assert.True(t, nerr.Timeout())
		})
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("will open the circuit", func(t *testing.T) {
		t.Run("after consecutive failing status codes", func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			client := New(TripAfter(2), OpenStateTimeout(time.Minute))

			for range 2 {
				resp, err := client.Get(srv.URL)
				require.NoError(t, err)
				resp.Body.Close()
				require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
			}

			_, err := client.Get(srv.URL)
			require.ErrorIs(t, err, gobreaker.ErrOpenState)
			require.Equal(t, int32(2), hits.Load())
		})
	})

	t.Run("will not count client errors as failures", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := New(TripAfter(1), OpenStateTimeout(time.Minute))

		for range 3 {
			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		}
	})
}

func TestRetry(t *testing.T) {
	t.Run("will retry server errors", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		client := New(MaxRetries(3), RetryWait(time.Millisecond, 5*time.Millisecond))

		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, int32(3), hits.Load())
	})
}

func TestLogHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	client := New(Name("backend"), LogHandler(slog.NewJSONHandler(&buf, nil)))

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Contains(t, buf.String(), `"msg":"response received"`)
	require.Contains(t, buf.String(), `"http_client":"backend"`)
	require.Contains(t, buf.String(), `"status_code":202`)
}
