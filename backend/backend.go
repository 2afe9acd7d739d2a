// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package backend persists pipeline configurations.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/z5labs/pipeconf/configure"
)

// ErrPipelineNotFound is returned when no pipeline exists for a [PipelineRef].
var ErrPipelineNotFound = errors.New("pipeline not found")

// PipelineRef identifies a deployed pipeline.
type PipelineRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

func (ref PipelineRef) String() string {
	return ref.Namespace + "/" + ref.Name
}

// Validate reports whether both parts of the reference are set.
func (ref PipelineRef) Validate() error {
	if ref.Namespace == "" || ref.Name == "" {
		return errors.New("pipeline reference requires a namespace and a name")
	}
	return nil
}

// Repository loads and saves pipelines.
type Repository interface {
	Load(context.Context, PipelineRef) (Pipeline, error)
	Save(context.Context, PipelineRef, Pipeline) error
}

// Pipeline is the persisted form of a pipeline.
type Pipeline struct {
	Artifact configure.Artifact `json:"artifact"`
	Config   Config             `json:"config"`
}

// Config is the pipeline configuration. Fields which are not modelled,
// e.g. stages and connections, are kept in Extra and written back
// unchanged.
type Config struct {
	Engine               configure.Engine     `json:"engine,omitempty"`
	Properties           map[string]string    `json:"properties,omitempty"`
	Resources            *configure.Resources `json:"resources,omitempty"`
	DriverResources      *configure.Resources `json:"driverResources,omitempty"`
	ClientResources      *configure.Resources `json:"clientResources,omitempty"`
	ProcessTimingEnabled *bool                `json:"processTimingEnabled,omitempty"`
	StageLoggingEnabled  *bool                `json:"stageLoggingEnabled,omitempty"`
	DisableCheckpoints   *bool                `json:"disableCheckpoints,omitempty"`
	StopGracefully       *bool                `json:"stopGracefully,omitempty"`
	NumOfRecordsPreview  *int                 `json:"numOfRecordsPreview,omitempty"`
	PreviewTimeoutInMin  *int                 `json:"previewTimeoutInMin,omitempty"`
	BatchInterval        string               `json:"batchInterval,omitempty"`
	RuntimeArgs          []configure.KeyValue `json:"runtimeArgs,omitempty"`
	PostRunActions       []json.RawMessage    `json:"postActions,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownConfigFields = []string{
	"engine",
	"properties",
	"resources",
	"driverResources",
	"clientResources",
	"processTimingEnabled",
	"stageLoggingEnabled",
	"disableCheckpoints",
	"stopGracefully",
	"numOfRecordsPreview",
	"previewTimeoutInMin",
	"batchInterval",
	"runtimeArgs",
	"postActions",
}

type configFields Config

// MarshalJSON implements the [json.Marshaler] interface.
func (c Config) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(configFields(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return b, nil
	}

	var known map[string]json.RawMessage
	err = json.Unmarshal(b, &known)
	if err != nil {
		return nil, err
	}
	m := maps.Clone(c.Extra)
	maps.Copy(m, known)
	return json.Marshal(m)
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (c *Config) UnmarshalJSON(b []byte) error {
	var fields configFields
	err := json.Unmarshal(b, &fields)
	if err != nil {
		return err
	}

	var m map[string]json.RawMessage
	err = json.Unmarshal(b, &m)
	if err != nil {
		return err
	}
	for _, k := range knownConfigFields {
		delete(m, k)
	}
	if len(m) > 0 {
		fields.Extra = m
	}
	*c = Config(fields)
	return nil
}

// InvalidConfigError is returned when a persisted config can not be
// turned into a record.
type InvalidConfigError struct {
	Pipeline PipelineRef
	Cause    error
}

// Error implements the [error] interface.
func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config for pipeline %s: %s", e.Pipeline, e.Cause)
}

// Unwrap implements the implicit interface for usage with errors.Is and errors.As.
func (e InvalidConfigError) Unwrap() error {
	return e.Cause
}

// Record builds the editable record of the pipeline. Unset fields fall
// back to the given defaults.
func (p Pipeline) Record(defaults configure.Defaults, opts ...configure.Option) (configure.Record, error) {
	cfg := p.Config
	if cfg.Engine != "" && !cfg.Engine.Valid() {
		return configure.Record{}, configure.UnknownEngineError{Value: string(cfg.Engine)}
	}

	recOpts := []configure.Option{
		configure.WithArtifact(p.Artifact),
		configure.WithRuntimeArgs(cfg.RuntimeArgs...),
		configure.WithPostRunActions(cfg.PostRunActions...),
	}
	resources := map[configure.ResourceTarget]*configure.Resources{
		configure.TargetExecutor: cfg.Resources,
		configure.TargetDriver:   cfg.DriverResources,
		configure.TargetClient:   cfg.ClientResources,
	}
	for target, res := range resources {
		if res != nil {
			recOpts = append(recOpts, configure.WithResources(target, *res))
		}
	}
	if cfg.ProcessTimingEnabled != nil {
		recOpts = append(recOpts, configure.WithInstrumentation(*cfg.ProcessTimingEnabled))
	}
	if cfg.StageLoggingEnabled != nil {
		recOpts = append(recOpts, configure.WithStageLogging(*cfg.StageLoggingEnabled))
	}
	if cfg.DisableCheckpoints != nil {
		recOpts = append(recOpts, configure.WithCheckpointsDisabled(*cfg.DisableCheckpoints))
	}
	if cfg.StopGracefully != nil {
		recOpts = append(recOpts, configure.WithStopGracefully(*cfg.StopGracefully))
	}
	if cfg.NumOfRecordsPreview != nil {
		recOpts = append(recOpts, configure.WithNumRecordsPreview(*cfg.NumOfRecordsPreview))
	}
	if cfg.PreviewTimeoutInMin != nil {
		recOpts = append(recOpts, configure.WithPreviewTimeout(*cfg.PreviewTimeoutInMin))
	}
	if cfg.BatchInterval != "" {
		bi, err := configure.ParseBatchInterval(cfg.BatchInterval)
		if err != nil {
			return configure.Record{}, err
		}
		recOpts = append(recOpts, configure.WithBatchInterval(bi))
	}
	recOpts = append(recOpts, opts...)

	return configure.Initialize(defaults, cfg.Properties, cfg.Engine, recOpts...), nil
}

// WithRecord returns a copy of p whose config reflects r.
// Extra config fields are carried over.
func (p Pipeline) WithRecord(r configure.Record) Pipeline {
	resources := r.Resources()
	driver := r.DriverResources()
	client := r.ClientResources()

	cfg := p.Config
	cfg.Engine = r.Engine()
	cfg.Properties = r.Export()
	cfg.Resources = &resources
	cfg.DriverResources = &driver
	cfg.ClientResources = &client
	cfg.ProcessTimingEnabled = ptrTo(r.InstrumentationEnabled())
	cfg.StageLoggingEnabled = ptrTo(r.StageLoggingEnabled())
	cfg.DisableCheckpoints = ptrTo(r.CheckpointsDisabled())
	cfg.StopGracefully = ptrTo(r.StopGracefully())
	cfg.NumOfRecordsPreview = ptrTo(r.NumRecordsPreview())
	cfg.PreviewTimeoutInMin = ptrTo(r.PreviewTimeoutMinutes())
	cfg.BatchInterval = r.BatchInterval().String()
	cfg.RuntimeArgs = r.RuntimeArgs()
	cfg.PostRunActions = r.PostRunActions()
	cfg.Extra = maps.Clone(p.Config.Extra)

	return Pipeline{
		Artifact: r.Artifact(),
		Config:   cfg,
	}
}

func ptrTo[T any](v T) *T {
	return &v
}
