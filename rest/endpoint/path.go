// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package endpoint

import (
	"context"
	"net/http"
)

type pathValuesKey struct{}

func injectPathValues(ctx context.Context, r *http.Request, params []PathParam) (context.Context, error) {
	if len(params) == 0 {
		return ctx, nil
	}

	values := make(map[string]string, len(params))
	for _, p := range params {
		v := r.PathValue(p.Name)
		if v == "" {
			return ctx, MissingPathParamError{Name: p.Name}
		}
		values[p.Name] = v
	}
	return context.WithValue(ctx, pathValuesKey{}, values), nil
}

// PathValue returns the value of a path parameter registered
// with [PathParams].
func PathValue(ctx context.Context, name string) string {
	values, ok := ctx.Value(pathValuesKey{}).(map[string]string)
	if !ok {
		return ""
	}
	return values[name]
}
