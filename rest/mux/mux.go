// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package mux provides a method aware request multiplexer.
package mux

import (
	"fmt"
	"net/http"
	"slices"
	"sync"
)

// Method is an HTTP method used by a RESTful API.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPut    Method = http.MethodPut
	MethodPost   Method = http.MethodPost
	MethodDelete Method = http.MethodDelete
)

// methods a path can be registered for, taken from the OpenAPI v3 Path Item Object.
var supportedMethods = []Method{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodHead,
	http.MethodPatch,
	http.MethodTrace,
}

// HttpOption configures a [Http].
type HttpOption func(*Http)

// NotFoundHandler handles requests whose path matches no pattern.
func NotFoundHandler(h http.Handler) HttpOption {
	return func(m *Http) {
		m.notFound = h
	}
}

// MethodNotAllowedHandler handles requests whose path matches
// a pattern registered for other methods.
func MethodNotAllowedHandler(h http.Handler) HttpOption {
	return func(m *Http) {
		m.methodNotAllowed = h
	}
}

// Http wraps a [http.ServeMux] with overridable
// "404 Not Found" and "405 Method Not Allowed" handling.
type Http struct {
	mux *http.ServeMux

	fallbacksOnce    sync.Once
	notFound         http.Handler
	methodNotAllowed http.Handler

	mu          sync.Mutex
	pathMethods map[string][]Method
	order       []string
}

// NewHttp initializes a [Http].
func NewHttp(opts ...HttpOption) *Http {
	m := &Http{
		mux:         http.NewServeMux(),
		pathMethods: make(map[string][]Method),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle registers h for the method and pattern. Patterns follow
// [http.ServeMux] syntax without the method prefix.
func (m *Http) Handle(method Method, pattern string, h http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pathMethods[pattern]; !ok {
		m.order = append(m.order, pattern)
	}
	m.pathMethods[pattern] = append(m.pathMethods[pattern], method)
	m.mux.Handle(fmt.Sprintf("%s %s", method, pattern), h)
}

// ServeHTTP implements the [http.Handler] interface.
//
// Fallback handlers are registered on the first request so every
// pattern must be registered before serving.
func (m *Http) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.fallbacksOnce.Do(m.registerFallbacks)

	m.mux.ServeHTTP(w, r)
}

func (m *Http) registerFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.notFound != nil {
		m.mux.Handle("/{path...}", m.notFound)
	}
	if m.methodNotAllowed == nil {
		return
	}
	for _, pattern := range m.order {
		registered := m.pathMethods[pattern]
		for _, method := range supportedMethods {
			if slices.Contains(registered, method) {
				continue
			}
			// GET patterns already serve HEAD
			if method == http.MethodHead && slices.Contains(registered, MethodGet) {
				continue
			}
			m.mux.Handle(fmt.Sprintf("%s %s", method, pattern), m.methodNotAllowed)
		}
	}
}
