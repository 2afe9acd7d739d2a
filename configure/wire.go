// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-viper/mapstructure/v2"
)

type envelope struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// payload holds every field any action reads. Numbers may arrive as
// numeric strings since form controls report their value as text.
type payload struct {
	Engine              *string            `json:"engine,omitempty"`
	BatchIntervalRange  *int               `json:"batchIntervalRange,omitempty"`
	BatchIntervalUnit   *string            `json:"batchIntervalUnit,omitempty"`
	MemoryMB            *int               `json:"memoryMB,omitempty"`
	VirtualCores        *int               `json:"virtualCores,omitempty"`
	Backpressure        *bool              `json:"backpressure,omitempty"`
	CustomConfig        *map[string]string `json:"customConfig,omitempty"`
	KeyValues           *pairsView         `json:"keyValues,omitempty"`
	NumExecutors        *int               `json:"numExecutors,omitempty"`
	Instrumentation     *bool              `json:"instrumentation,omitempty"`
	StageLogging        *bool              `json:"stageLogging,omitempty"`
	Checkpointing       *bool              `json:"checkpointing,omitempty"`
	NumRecordsPreview   *int               `json:"numRecordsPreview,omitempty"`
	RuntimeArgs         *pairsView         `json:"runtimeArgs,omitempty"`
	StopGracefully      *bool              `json:"stopGracefully,omitempty"`
	PreviewTimeoutInMin *int               `json:"previewTimeoutInMin,omitempty"`
}

func decodePayload(raw json.RawMessage) (payload, error) {
	var p payload
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}

	var fields map[string]any
	jd := json.NewDecoder(bytes.NewReader(raw))
	jd.UseNumber()
	err := jd.Decode(&fields)
	if err != nil {
		return p, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, err
	}
	err = dec.Decode(fields)
	return p, err
}

func missing(t ActionType, field string) InvalidActionError {
	return InvalidActionError{Type: t, Reason: "missing payload field " + strconv.Quote(field)}
}

// DecodeAction decodes an action from its wire form,
// {"type": TAG, "payload": {...}}.
//
// Unknown tags decode to [Unrecognized]. A payload missing the field
// its tag requires is an [InvalidActionError].
func DecodeAction(b []byte) (Action, error) {
	var env envelope
	err := json.Unmarshal(b, &env)
	if err != nil {
		return nil, InvalidActionError{Reason: err.Error()}
	}
	if env.Type == "" {
		return nil, InvalidActionError{Reason: "missing action type"}
	}

	p, err := decodePayload(env.Payload)
	if err != nil {
		return nil, InvalidActionError{Type: env.Type, Reason: err.Error()}
	}

	t := env.Type
	switch t {
	case ActionSetEngine:
		if p.Engine == nil {
			return nil, missing(t, "engine")
		}
		e, err := ParseEngine(*p.Engine)
		if err != nil {
			return nil, InvalidActionError{Type: t, Reason: err.Error()}
		}
		return SetEngine{Engine: e}, nil
	case ActionSetBatchIntervalRange:
		if p.BatchIntervalRange == nil {
			return nil, missing(t, "batchIntervalRange")
		}
		return SetBatchIntervalRange{Magnitude: *p.BatchIntervalRange}, nil
	case ActionSetBatchIntervalUnit:
		if p.BatchIntervalUnit == nil {
			return nil, missing(t, "batchIntervalUnit")
		}
		return SetBatchIntervalUnit{Unit: IntervalUnit(*p.BatchIntervalUnit)}, nil
	case ActionSetMemoryMB, ActionSetDriverMemoryMB, ActionSetClientMemoryMB:
		if p.MemoryMB == nil {
			return nil, missing(t, "memoryMB")
		}
		return SetMemoryMB{Target: memoryTargets[t], MemoryMB: *p.MemoryMB}, nil
	case ActionSetVirtualCores, ActionSetDriverVirtualCores, ActionSetClientVirtualCores:
		if p.VirtualCores == nil {
			return nil, missing(t, "virtualCores")
		}
		return SetVirtualCores{Target: coreTargets[t], VirtualCores: *p.VirtualCores}, nil
	case ActionSetBackpressure:
		if p.Backpressure == nil {
			return nil, missing(t, "backpressure")
		}
		return SetBackpressure{Enabled: *p.Backpressure}, nil
	case ActionSetCustomConfig:
		if p.CustomConfig == nil {
			return nil, missing(t, "customConfig")
		}
		return SetCustomConfig{Config: *p.CustomConfig}, nil
	case ActionSetCustomConfigKeyValuePairs:
		if p.KeyValues == nil {
			return nil, missing(t, "keyValues")
		}
		return SetCustomConfigKeyValuePairs{Pairs: p.KeyValues.Pairs}, nil
	case ActionSetNumExecutors:
		if p.NumExecutors == nil {
			return nil, missing(t, "numExecutors")
		}
		return SetNumExecutors{NumExecutors: *p.NumExecutors}, nil
	case ActionSetInstrumentation:
		if p.Instrumentation == nil {
			return nil, missing(t, "instrumentation")
		}
		return SetInstrumentation{Enabled: *p.Instrumentation}, nil
	case ActionSetStageLogging:
		if p.StageLogging == nil {
			return nil, missing(t, "stageLogging")
		}
		return SetStageLogging{Enabled: *p.StageLogging}, nil
	case ActionSetCheckpointing:
		if p.Checkpointing == nil {
			return nil, missing(t, "checkpointing")
		}
		return SetCheckpointing{Disabled: *p.Checkpointing}, nil
	case ActionSetNumRecordsPreview:
		if p.NumRecordsPreview == nil {
			return nil, missing(t, "numRecordsPreview")
		}
		return SetNumRecordsPreview{NumRecords: *p.NumRecordsPreview}, nil
	case ActionSetRuntimeArgs:
		if p.RuntimeArgs == nil {
			return nil, missing(t, "runtimeArgs")
		}
		return SetRuntimeArgs{Pairs: p.RuntimeArgs.Pairs}, nil
	case ActionSetStopGracefully:
		if p.StopGracefully == nil {
			return nil, missing(t, "stopGracefully")
		}
		return SetStopGracefully{Enabled: *p.StopGracefully}, nil
	case ActionSetPreviewTimeout:
		if p.PreviewTimeoutInMin == nil {
			return nil, missing(t, "previewTimeoutInMin")
		}
		return SetPreviewTimeout{Minutes: *p.PreviewTimeoutInMin}, nil
	default:
		return Unrecognized{Tag: string(t)}, nil
	}
}

var memoryTargets = map[ActionType]ResourceTarget{
	ActionSetMemoryMB:       TargetExecutor,
	ActionSetDriverMemoryMB: TargetDriver,
	ActionSetClientMemoryMB: TargetClient,
}

var coreTargets = map[ActionType]ResourceTarget{
	ActionSetVirtualCores:       TargetExecutor,
	ActionSetDriverVirtualCores: TargetDriver,
	ActionSetClientVirtualCores: TargetClient,
}

func ptrTo[T any](v T) *T {
	return &v
}

// EncodeAction encodes an action to its wire form.
func EncodeAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, InvalidActionError{Reason: "nil action"}
	}

	var p payload
	switch a := a.(type) {
	case SetEngine:
		p.Engine = ptrTo(string(a.Engine))
	case SetBatchIntervalRange:
		p.BatchIntervalRange = ptrTo(a.Magnitude)
	case SetBatchIntervalUnit:
		p.BatchIntervalUnit = ptrTo(string(a.Unit))
	case SetMemoryMB:
		p.MemoryMB = ptrTo(a.MemoryMB)
	case SetVirtualCores:
		p.VirtualCores = ptrTo(a.VirtualCores)
	case SetBackpressure:
		p.Backpressure = ptrTo(a.Enabled)
	case SetCustomConfig:
		cfg := a.Config
		if cfg == nil {
			cfg = map[string]string{}
		}
		p.CustomConfig = &cfg
	case SetCustomConfigKeyValuePairs:
		p.KeyValues = &pairsView{Pairs: nonNil(a.Pairs)}
	case SetNumExecutors:
		p.NumExecutors = ptrTo(a.NumExecutors)
	case SetInstrumentation:
		p.Instrumentation = ptrTo(a.Enabled)
	case SetStageLogging:
		p.StageLogging = ptrTo(a.Enabled)
	case SetCheckpointing:
		p.Checkpointing = ptrTo(a.Disabled)
	case SetNumRecordsPreview:
		p.NumRecordsPreview = ptrTo(a.NumRecords)
	case SetRuntimeArgs:
		p.RuntimeArgs = &pairsView{Pairs: nonNil(a.Pairs)}
	case SetStopGracefully:
		p.StopGracefully = ptrTo(a.Enabled)
	case SetPreviewTimeout:
		p.PreviewTimeoutInMin = ptrTo(a.Minutes)
	case Unrecognized:
		return json.Marshal(envelope{Type: a.Type()})
	}

	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: a.Type(), Payload: b})
}

func nonNil(kvs []KeyValue) []KeyValue {
	if kvs == nil {
		return []KeyValue{}
	}
	return kvs
}
