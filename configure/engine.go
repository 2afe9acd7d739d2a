// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"fmt"
	"strings"
)

// Engine selects the execution backend of a pipeline.
type Engine string

const (
	MapReduce Engine = "mapreduce"
	Spark     Engine = "spark"
)

// Engines lists every supported engine.
func Engines() []Engine {
	return []Engine{MapReduce, Spark}
}

// Valid reports whether e is a supported engine.
func (e Engine) Valid() bool {
	return e == MapReduce || e == Spark
}

// DisplayLabel is the human readable engine name. Only batch pipelines
// can run on MapReduce so every other combination is labelled
// as Spark Streaming.
func (e Engine) DisplayLabel(batch bool) string {
	if e == MapReduce && batch {
		return "MapReduce"
	}
	return "Apache Spark Streaming"
}

// UnknownEngineError is returned when parsing an unsupported engine name.
type UnknownEngineError struct {
	Value string
}

// Error implements the [error] interface.
func (e UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine: %q", e.Value)
}

// ParseEngine parses an engine name case insensitively.
func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", UnknownEngineError{Value: s}
	}
	return e, nil
}

// MarshalText implements the [encoding.TextMarshaler] interface.
func (e Engine) MarshalText() ([]byte, error) {
	return []byte(e), nil
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (e *Engine) UnmarshalText(b []byte) error {
	v, err := ParseEngine(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Deployment is the mode the platform is deployed in.
type Deployment string

const (
	Local      Deployment = "local"
	Enterprise Deployment = "enterprise"
)

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (d *Deployment) UnmarshalText(b []byte) error {
	switch v := Deployment(strings.ToLower(string(b))); v {
	case Local, Enterprise:
		*d = v
		return nil
	default:
		return fmt.Errorf("unknown deployment mode: %q", string(b))
	}
}

// Artifact identifies the application template a pipeline was built from.
type Artifact struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Scope   string `json:"scope,omitempty"`
}

var batchArtifacts = map[string]struct{}{
	"cdap-data-pipeline": {},
	"cdap-etl-batch":     {},
}

// Batch reports whether the artifact is a batch pipeline.
func (a Artifact) Batch() bool {
	_, ok := batchArtifacts[a.Name]
	return ok
}
