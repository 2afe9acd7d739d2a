// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"encoding/json"
	"maps"
	"slices"
	"strconv"
)

// Record is the full tunable configuration of one pipeline execution
// profile. A Record is an immutable snapshot: accessors hand out copies
// and [Apply] returns a new Record which shares the storage of every
// attribute the action did not touch.
type Record struct {
	artifact   Artifact
	deployment Deployment

	runtimeArgs    []KeyValue
	customConfig   []KeyValue
	postRunActions []json.RawMessage

	// properties is the single flat mapping handed to persistence. The
	// backend managed keys and the namespaced custom config both live here.
	properties Properties

	engine          Engine
	resources       Resources
	driverResources Resources
	clientResources Resources

	instrumentation     bool
	stageLogging        bool
	checkpointsDisabled bool
	stopGracefully      bool

	numRecordsPreview     int
	previewTimeoutMinutes int
	batchInterval         BatchInterval

	// used when properties does not carry the backend managed keys
	defaultBackpressure bool
	defaultNumExecutors int
}

// Option configures a [Record] during construction.
type Option func(*Record)

// WithArtifact sets the pipeline artifact.
func WithArtifact(a Artifact) Option {
	return func(r *Record) {
		r.artifact = a
	}
}

// WithDeployment sets the deployment mode. Defaults to [Enterprise].
func WithDeployment(d Deployment) Option {
	return func(r *Record) {
		r.deployment = d
	}
}

// WithRuntimeArgs sets the runtime arguments.
func WithRuntimeArgs(args ...KeyValue) Option {
	return func(r *Record) {
		r.runtimeArgs = slices.Clone(args)
	}
}

// WithPostRunActions sets the opaque post run actions carried through
// to persistence.
func WithPostRunActions(actions ...json.RawMessage) Option {
	return func(r *Record) {
		r.postRunActions = slices.Clone(actions)
	}
}

// WithResources overrides the default resources of the given target.
func WithResources(target ResourceTarget, res Resources) Option {
	return func(r *Record) {
		switch target {
		case TargetExecutor:
			r.resources = res
		case TargetDriver:
			r.driverResources = res
		case TargetClient:
			r.clientResources = res
		}
	}
}

// WithBatchInterval overrides the default batch interval.
func WithBatchInterval(bi BatchInterval) Option {
	return func(r *Record) {
		r.batchInterval = bi
	}
}

// WithInstrumentation overrides the default instrumentation flag.
func WithInstrumentation(enabled bool) Option {
	return func(r *Record) {
		r.instrumentation = enabled
	}
}

// WithStageLogging overrides the default stage logging flag.
func WithStageLogging(enabled bool) Option {
	return func(r *Record) {
		r.stageLogging = enabled
	}
}

// WithCheckpointsDisabled overrides the default checkpointing flag.
func WithCheckpointsDisabled(disabled bool) Option {
	return func(r *Record) {
		r.checkpointsDisabled = disabled
	}
}

// WithStopGracefully overrides the default graceful stop flag.
func WithStopGracefully(enabled bool) Option {
	return func(r *Record) {
		r.stopGracefully = enabled
	}
}

// WithNumRecordsPreview overrides the default preview record count.
func WithNumRecordsPreview(n int) Option {
	return func(r *Record) {
		r.numRecordsPreview = n
	}
}

// WithPreviewTimeout overrides the default preview timeout.
func WithPreviewTimeout(minutes int) Option {
	return func(r *Record) {
		r.previewTimeoutMinutes = minutes
	}
}

// New returns a Record built only from platform defaults.
func New(defaults Defaults, opts ...Option) Record {
	return Initialize(defaults, nil, "", opts...)
}

// Initialize builds a Record from a persisted flat property mapping.
// The source is copied and never modified. An empty engine falls back
// to the default engine.
//
// The display custom config is the source without the backend managed
// keys and with the engine namespace stripped from every remaining key,
// unless the stripped key would clash with another stored key.
func Initialize(defaults Defaults, source map[string]string, engine Engine, opts ...Option) Record {
	if engine == "" {
		engine = defaults.Engine
	}
	r := Record{
		deployment:            Enterprise,
		properties:            PropertiesOf(source),
		engine:                engine,
		resources:             defaults.Resources,
		driverResources:       defaults.DriverResources,
		clientResources:       defaults.ClientResources,
		instrumentation:       defaults.Instrumentation,
		stageLogging:          defaults.StageLogging,
		checkpointsDisabled:   defaults.CheckpointsDisabled,
		stopGracefully:        defaults.StopGracefully,
		numRecordsPreview:     defaults.NumRecordsPreview,
		previewTimeoutMinutes: defaults.PreviewTimeoutMinutes,
		batchInterval:         defaults.BatchInterval,
		defaultBackpressure:   defaults.Backpressure,
		defaultNumExecutors:   defaults.NumExecutors,
	}
	for _, opt := range opts {
		opt(&r)
	}
	r.customConfig = projectCustomConfig(r.properties, engine)
	return r
}

func projectCustomConfig(p Properties, engine Engine) []KeyValue {
	keys := customKeys(p, engine)
	kvs := make([]KeyValue, 0, len(keys))
	for _, d := range slices.Sorted(maps.Keys(keys)) {
		v, _ := p.Get(keys[d])
		kvs = append(kvs, KeyValue{Key: d, Value: v})
	}
	return kvs
}

func (r Record) Artifact() Artifact     { return r.artifact }
func (r Record) Deployment() Deployment { return r.deployment }

// RuntimeArgs returns a copy of the runtime arguments.
func (r Record) RuntimeArgs() []KeyValue {
	return slices.Clone(r.runtimeArgs)
}

// CustomConfig returns a copy of the display custom config pairs.
func (r Record) CustomConfig() []KeyValue {
	return slices.Clone(r.customConfig)
}

// PostRunActions returns a copy of the opaque post run actions.
func (r Record) PostRunActions() []json.RawMessage {
	return slices.Clone(r.postRunActions)
}

func (r Record) Properties() Properties { return r.properties }
func (r Record) Engine() Engine         { return r.engine }

// EngineLabel is the display label of the record's engine.
func (r Record) EngineLabel() string {
	return r.engine.DisplayLabel(r.artifact.Batch())
}

// Resources returns the executor resources.
func (r Record) Resources() Resources { return r.resources }

func (r Record) DriverResources() Resources { return r.driverResources }
func (r Record) ClientResources() Resources { return r.clientResources }

// ResourcesFor returns the resources of the given target.
func (r Record) ResourcesFor(target ResourceTarget) Resources {
	switch target {
	case TargetDriver:
		return r.driverResources
	case TargetClient:
		return r.clientResources
	default:
		return r.resources
	}
}

func (r Record) InstrumentationEnabled() bool { return r.instrumentation }
func (r Record) StageLoggingEnabled() bool    { return r.stageLogging }
func (r Record) CheckpointsDisabled() bool    { return r.checkpointsDisabled }
func (r Record) StopGracefully() bool         { return r.stopGracefully }
func (r Record) NumRecordsPreview() int       { return r.numRecordsPreview }
func (r Record) PreviewTimeoutMinutes() int   { return r.previewTimeoutMinutes }
func (r Record) BatchInterval() BatchInterval { return r.batchInterval }

// Backpressure is read from the backend managed property and falls back
// to the platform default when the property is absent or malformed.
func (r Record) Backpressure() bool {
	v, ok := r.properties.Get(BackpressureKey)
	if !ok {
		return r.defaultBackpressure
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return r.defaultBackpressure
	}
	return b
}

// NumExecutors is read from the key of the record's deployment mode,
// then from the other mode's key and finally falls back to the
// platform default.
func (r Record) NumExecutors() int {
	instances := func() (int, bool) {
		v, ok := r.properties.Get(ExecutorInstanceKey)
		if !ok {
			return 0, false
		}
		return parsePositive(v)
	}
	master := func() (int, bool) {
		v, ok := r.properties.Get(SparkMasterKey)
		if !ok {
			return 0, false
		}
		return parseLocalMaster(v)
	}

	lookups := []func() (int, bool){instances, master}
	if r.deployment == Local {
		lookups = []func() (int, bool){master, instances}
	}
	for _, lookup := range lookups {
		if n, ok := lookup(); ok {
			return n
		}
	}
	return r.defaultNumExecutors
}

// Export returns the flat property mapping for persistence. It is the
// exact inverse of [Initialize]: exporting a freshly initialized
// record yields the source mapping.
func (r Record) Export() map[string]string {
	return r.properties.Map()
}

type pairsView struct {
	Pairs []KeyValue `json:"pairs"`
}

type recordView struct {
	Artifact              Artifact          `json:"artifact"`
	Deployment            Deployment        `json:"deployment"`
	RuntimeArgs           pairsView         `json:"runtimeArgs"`
	CustomConfig          pairsView         `json:"customConfigKeyValuePairs"`
	PostRunActions        []json.RawMessage `json:"postRunActions"`
	Properties            Properties        `json:"properties"`
	Engine                Engine            `json:"engine"`
	EngineLabel           string            `json:"engineLabel"`
	Resources             Resources         `json:"resources"`
	DriverResources       Resources         `json:"driverResources"`
	ClientResources       Resources         `json:"clientResources"`
	Instrumentation       bool              `json:"processTimingEnabled"`
	StageLogging          bool              `json:"stageLoggingEnabled"`
	CheckpointsDisabled   bool              `json:"disableCheckpoints"`
	StopGracefully        bool              `json:"stopGracefully"`
	Backpressure          bool              `json:"backpressure"`
	NumExecutors          int               `json:"numExecutors"`
	NumRecordsPreview     int               `json:"numOfRecordsPreview"`
	PreviewTimeoutMinutes int               `json:"previewTimeoutInMin"`
	BatchInterval         BatchInterval     `json:"batchInterval"`
}

// MarshalJSON implements the [json.Marshaler] interface.
func (r Record) MarshalJSON() ([]byte, error) {
	runtimeArgs := r.runtimeArgs
	if runtimeArgs == nil {
		runtimeArgs = []KeyValue{}
	}
	customConfig := r.customConfig
	if customConfig == nil {
		customConfig = []KeyValue{}
	}
	postRunActions := r.postRunActions
	if postRunActions == nil {
		postRunActions = []json.RawMessage{}
	}
	return json.Marshal(recordView{
		Artifact:              r.artifact,
		Deployment:            r.deployment,
		RuntimeArgs:           pairsView{Pairs: runtimeArgs},
		CustomConfig:          pairsView{Pairs: customConfig},
		PostRunActions:        postRunActions,
		Properties:            r.properties,
		Engine:                r.engine,
		EngineLabel:           r.EngineLabel(),
		Resources:             r.resources,
		DriverResources:       r.driverResources,
		ClientResources:       r.clientResources,
		Instrumentation:       r.instrumentation,
		StageLogging:          r.stageLogging,
		CheckpointsDisabled:   r.checkpointsDisabled,
		StopGracefully:        r.stopGracefully,
		Backpressure:          r.Backpressure(),
		NumExecutors:          r.NumExecutors(),
		NumRecordsPreview:     r.numRecordsPreview,
		PreviewTimeoutMinutes: r.previewTimeoutMinutes,
		BatchInterval:         r.batchInterval,
	})
}
