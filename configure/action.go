// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import "fmt"

// ActionType is the wire tag of an [Action].
type ActionType string

const (
	ActionSetEngine                    ActionType = "SET_ENGINE"
	ActionSetBatchIntervalRange        ActionType = "SET_BATCH_INTERVAL_RANGE"
	ActionSetBatchIntervalUnit         ActionType = "SET_BATCH_INTERVAL_UNIT"
	ActionSetMemoryMB                  ActionType = "SET_MEMORY_MB"
	ActionSetDriverMemoryMB            ActionType = "SET_DRIVER_MEMORY_MB"
	ActionSetClientMemoryMB            ActionType = "SET_CLIENT_MEMORY_MB"
	ActionSetVirtualCores              ActionType = "SET_MEMORY_VIRTUAL_CORES"
	ActionSetDriverVirtualCores        ActionType = "SET_DRIVER_VIRTUAL_CORES"
	ActionSetClientVirtualCores        ActionType = "SET_CLIENT_VIRTUAL_CORES"
	ActionSetBackpressure              ActionType = "SET_BACKPRESSURE"
	ActionSetCustomConfig              ActionType = "SET_CUSTOM_CONFIG"
	ActionSetCustomConfigKeyValuePairs ActionType = "SET_CUSTOM_CONFIG_KEY_VALUE_PAIRS"
	ActionSetNumExecutors              ActionType = "SET_NUM_EXECUTORS"
	ActionSetInstrumentation           ActionType = "SET_INSTRUMENTATION"
	ActionSetStageLogging              ActionType = "SET_STAGE_LOGGING"
	ActionSetCheckpointing             ActionType = "SET_CHECKPOINTING"
	ActionSetNumRecordsPreview         ActionType = "SET_NUM_RECORDS_PREVIEW"
	ActionSetRuntimeArgs               ActionType = "SET_RUNTIME_ARGS"
	ActionSetStopGracefully            ActionType = "SET_STOP_GRACEFULLY"
	ActionSetPreviewTimeout            ActionType = "SET_PREVIEW_TIMEOUT"
)

// Action is a tagged update request. The set of actions is closed:
// only types declared in this package implement it.
type Action interface {
	Type() ActionType

	action()
}

// SetEngine selects the execution engine.
type SetEngine struct {
	Engine Engine
}

// SetBatchIntervalRange changes the batch interval magnitude
// and keeps its unit.
type SetBatchIntervalRange struct {
	Magnitude int
}

// SetBatchIntervalUnit changes the batch interval unit
// and keeps its magnitude.
type SetBatchIntervalUnit struct {
	Unit IntervalUnit
}

// SetMemoryMB changes the memory allocation of one resource target.
type SetMemoryMB struct {
	Target   ResourceTarget
	MemoryMB int
}

// SetVirtualCores changes the core allocation of one resource target.
type SetVirtualCores struct {
	Target       ResourceTarget
	VirtualCores int
}

// SetBackpressure toggles streaming backpressure.
type SetBackpressure struct {
	Enabled bool
}

// SetCustomConfig replaces every namespaced custom property with Config.
type SetCustomConfig struct {
	Config map[string]string
}

// SetCustomConfigKeyValuePairs replaces the display draft of the
// custom config without touching the stored properties.
type SetCustomConfigKeyValuePairs struct {
	Pairs []KeyValue
}

// SetNumExecutors changes the executor count.
type SetNumExecutors struct {
	NumExecutors int
}

// SetInstrumentation toggles process timing.
type SetInstrumentation struct {
	Enabled bool
}

// SetStageLogging toggles per stage logging.
type SetStageLogging struct {
	Enabled bool
}

// SetCheckpointing sets whether checkpoints are disabled.
type SetCheckpointing struct {
	Disabled bool
}

// SetNumRecordsPreview changes how many records a preview run reads.
type SetNumRecordsPreview struct {
	NumRecords int
}

// SetRuntimeArgs replaces the runtime arguments.
type SetRuntimeArgs struct {
	Pairs []KeyValue
}

// SetStopGracefully toggles graceful stop of streaming pipelines.
type SetStopGracefully struct {
	Enabled bool
}

// SetPreviewTimeout changes the preview run timeout.
type SetPreviewTimeout struct {
	Minutes int
}

// Unrecognized carries a tag no other action matches.
// Applying it leaves the record unchanged.
type Unrecognized struct {
	Tag string
}

func (SetEngine) Type() ActionType             { return ActionSetEngine }
func (SetBatchIntervalRange) Type() ActionType { return ActionSetBatchIntervalRange }
func (SetBatchIntervalUnit) Type() ActionType  { return ActionSetBatchIntervalUnit }

func (a SetMemoryMB) Type() ActionType {
	switch a.Target {
	case TargetDriver:
		return ActionSetDriverMemoryMB
	case TargetClient:
		return ActionSetClientMemoryMB
	default:
		return ActionSetMemoryMB
	}
}

func (a SetVirtualCores) Type() ActionType {
	switch a.Target {
	case TargetDriver:
		return ActionSetDriverVirtualCores
	case TargetClient:
		return ActionSetClientVirtualCores
	default:
		return ActionSetVirtualCores
	}
}

func (SetBackpressure) Type() ActionType              { return ActionSetBackpressure }
func (SetCustomConfig) Type() ActionType              { return ActionSetCustomConfig }
func (SetCustomConfigKeyValuePairs) Type() ActionType { return ActionSetCustomConfigKeyValuePairs }
func (SetNumExecutors) Type() ActionType              { return ActionSetNumExecutors }
func (SetInstrumentation) Type() ActionType           { return ActionSetInstrumentation }
func (SetStageLogging) Type() ActionType              { return ActionSetStageLogging }
func (SetCheckpointing) Type() ActionType             { return ActionSetCheckpointing }
func (SetNumRecordsPreview) Type() ActionType         { return ActionSetNumRecordsPreview }
func (SetRuntimeArgs) Type() ActionType               { return ActionSetRuntimeArgs }
func (SetStopGracefully) Type() ActionType            { return ActionSetStopGracefully }
func (SetPreviewTimeout) Type() ActionType            { return ActionSetPreviewTimeout }
func (a Unrecognized) Type() ActionType               { return ActionType(a.Tag) }

func (SetEngine) action()                    {}
func (SetBatchIntervalRange) action()        {}
func (SetBatchIntervalUnit) action()         {}
func (SetMemoryMB) action()                  {}
func (SetVirtualCores) action()              {}
func (SetBackpressure) action()              {}
func (SetCustomConfig) action()              {}
func (SetCustomConfigKeyValuePairs) action() {}
func (SetNumExecutors) action()              {}
func (SetInstrumentation) action()           {}
func (SetStageLogging) action()              {}
func (SetCheckpointing) action()             {}
func (SetNumRecordsPreview) action()         {}
func (SetRuntimeArgs) action()               {}
func (SetStopGracefully) action()            {}
func (SetPreviewTimeout) action()            {}
func (Unrecognized) action()                 {}

// InvalidActionError is returned when an action payload is malformed.
type InvalidActionError struct {
	Type   ActionType
	Reason string
}

// Error implements the [error] interface.
func (e InvalidActionError) Error() string {
	if e.Type == "" {
		return "invalid action: " + e.Reason
	}
	return fmt.Sprintf("invalid %s action: %s", e.Type, e.Reason)
}
