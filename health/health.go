// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports whether the configuration service and
// its pipeline repository can serve requests.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
)

// Metric represents anything that can report its health status.
type Metric interface {
	Healthy(context.Context) bool
}

// MetricFunc is a func implementation of [Metric].
type MetricFunc func(context.Context) bool

// Healthy implements the [Metric] interface.
func (f MetricFunc) Healthy(ctx context.Context) bool {
	return f(ctx)
}

// Binary is a [Metric] which is flipped by its owner.
// The zero value is healthy.
type Binary struct {
	unhealthy atomic.Bool
}

// MarkHealthy sets the state to healthy.
func (m *Binary) MarkHealthy() {
	m.unhealthy.Store(false)
}

// MarkUnhealthy sets the state to unhealthy.
func (m *Binary) MarkUnhealthy() {
	m.unhealthy.Store(true)
}

// Healthy implements the [Metric] interface.
func (m *Binary) Healthy(context.Context) bool {
	return !m.unhealthy.Load()
}

type andMetric []Metric

// And is healthy only when every metric is healthy.
func And(metrics ...Metric) Metric {
	return andMetric(metrics)
}

func (ms andMetric) Healthy(ctx context.Context) bool {
	for _, m := range ms {
		if !m.Healthy(ctx) {
			return false
		}
	}
	return true
}

type orMetric []Metric

// Or is healthy when at least one metric is healthy.
func Or(metrics ...Metric) Metric {
	return orMetric(metrics)
}

func (ms orMetric) Healthy(ctx context.Context) bool {
	for _, m := range ms {
		if m.Healthy(ctx) {
			return true
		}
	}
	return false
}

// Not negates m.
func Not(m Metric) Metric {
	return MetricFunc(func(ctx context.Context) bool {
		return !m.Healthy(ctx)
	})
}

// Handler answers 200 when m is healthy and 503 otherwise.
func Handler(m Metric) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Healthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}
