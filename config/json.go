// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/z5labs/pipeconf/internal/try"
)

// Json is a [Source] backed by a single JSON object, e.g. a config
// file selected by its .json extension.
type Json struct {
	r io.Reader
}

// FromJson returns a [Source] reading one JSON object from r. r is
// closed after Apply if it implements [io.Closer].
func FromJson(r io.Reader) Json {
	return Json{r: r}
}

// InvalidJsonError occurs if the underlying io.Reader contains invalid JSON.
type InvalidJsonError struct {
	Cause error
}

// Error implements the error interface.
func (e InvalidJsonError) Error() string {
	return fmt.Sprintf("invalid json: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidJsonError) Unwrap() error {
	return e.Cause
}

// Apply implements the [Source] interface.
func (src Json) Apply(store Store) (err error) {
	defer try.Close(&err, src.r)

	var m map[string]any
	err = json.NewDecoder(src.r).Decode(&m)
	if isJsonError(err) {
		return InvalidJsonError{Cause: err}
	}
	if err != nil {
		return err
	}
	return Map(m).Apply(store)
}

func isJsonError(err error) bool {
	var serr *json.SyntaxError
	var terr *json.UnmarshalTypeError
	return errors.As(err, &serr) ||
		errors.As(err, &terr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
