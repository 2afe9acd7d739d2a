// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func static(healthy bool) Metric {
	return MetricFunc(func(context.Context) bool { return healthy })
}

func TestMetrics(t *testing.T) {
	testCases := []struct {
		name     string
		metric   Metric
		expected bool
	}{
		{name: "and all healthy", metric: And(static(true), static(true)), expected: true},
		{name: "and one unhealthy", metric: And(static(true), static(false)), expected: false},
		{name: "and with nothing", metric: And(), expected: true},
		{name: "or one healthy", metric: Or(static(false), static(true)), expected: true},
		{name: "or none healthy", metric: Or(static(false), static(false)), expected: false},
		{name: "or with nothing", metric: Or(), expected: false},
		{name: "not healthy", metric: Not(static(true)), expected: false},
		{name: "not unhealthy", metric: Not(static(false)), expected: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.metric.Healthy(context.Background()))
		})
	}
}

func TestBinary(t *testing.T) {
	var b Binary
	require.True(t, b.Healthy(context.Background()))

	b.MarkUnhealthy()
	require.False(t, b.Healthy(context.Background()))

	b.MarkHealthy()
	require.True(t, b.Healthy(context.Background()))
}

func TestHandler(t *testing.T) {
	var b Binary
	h := Handler(&b)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	require.Equal(t, http.StatusOK, w.Code)

	b.MarkUnhealthy()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
