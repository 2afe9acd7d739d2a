// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"maps"
	"slices"
	"strconv"
)

// Apply computes the record which results from applying a to r.
//
// Only the attributes named by the action change. Every other attribute
// of the returned record shares its storage with r. Actions of an
// unknown type leave the record unchanged. A malformed payload returns
// an [InvalidActionError] together with r.
func Apply(r Record, a Action) (Record, error) {
	if a == nil {
		return r, InvalidActionError{Reason: "nil action"}
	}

	next := r
	switch a := a.(type) {
	case SetEngine:
		if !a.Engine.Valid() {
			return r, invalid(a, "unknown engine "+strconv.Quote(string(a.Engine)))
		}
		next.engine = a.Engine
	case SetBatchIntervalRange:
		if !validMagnitude(a.Magnitude) {
			return r, invalid(a, "magnitude must be within 1..60")
		}
		next.batchInterval.Magnitude = a.Magnitude
	case SetBatchIntervalUnit:
		if !a.Unit.Valid() {
			return r, invalid(a, "unknown unit "+strconv.Quote(string(a.Unit)))
		}
		next.batchInterval.Unit = a.Unit
	case SetMemoryMB:
		if !a.Target.valid() {
			return r, invalid(a, "unknown resource target")
		}
		if a.MemoryMB <= 0 {
			return r, invalid(a, "memory must be positive")
		}
		res := r.ResourcesFor(a.Target)
		res.MemoryMB = a.MemoryMB
		next.setResources(a.Target, res)
	case SetVirtualCores:
		if !a.Target.valid() {
			return r, invalid(a, "unknown resource target")
		}
		if a.VirtualCores <= 0 {
			return r, invalid(a, "virtual cores must be positive")
		}
		res := r.ResourcesFor(a.Target)
		res.VirtualCores = a.VirtualCores
		next.setResources(a.Target, res)
	case SetBackpressure:
		next.properties = r.properties.With(BackpressureKey, strconv.FormatBool(a.Enabled))
	case SetCustomConfig:
		return applyCustomConfig(r, a)
	case SetCustomConfigKeyValuePairs:
		known := customKeys(r.properties, r.engine)
		for _, kv := range a.Pairs {
			if isBackendKey(resolveKey(known, kv.Key, r.engine, r.artifact.Batch())) {
				return r, invalid(a, "key "+strconv.Quote(kv.Key)+" is managed by a dedicated setting")
			}
		}
		next.customConfig = slices.Clone(a.Pairs)
	case SetNumExecutors:
		if a.NumExecutors <= 0 {
			return r, invalid(a, "executor count must be positive")
		}
		next.properties = setNumExecutors(r.properties, r.deployment, a.NumExecutors)
	case SetInstrumentation:
		next.instrumentation = a.Enabled
	case SetStageLogging:
		next.stageLogging = a.Enabled
	case SetCheckpointing:
		next.checkpointsDisabled = a.Disabled
	case SetNumRecordsPreview:
		if a.NumRecords <= 0 {
			return r, invalid(a, "record count must be positive")
		}
		next.numRecordsPreview = a.NumRecords
	case SetRuntimeArgs:
		next.runtimeArgs = slices.Clone(a.Pairs)
	case SetStopGracefully:
		next.stopGracefully = a.Enabled
	case SetPreviewTimeout:
		if a.Minutes <= 0 {
			return r, invalid(a, "timeout must be positive")
		}
		next.previewTimeoutMinutes = a.Minutes
	default:
		return r, nil
	}
	return next, nil
}

func invalid(a Action, reason string) InvalidActionError {
	return InvalidActionError{Type: a.Type(), Reason: reason}
}

func (r *Record) setResources(target ResourceTarget, res Resources) {
	switch target {
	case TargetExecutor:
		r.resources = res
	case TargetDriver:
		r.driverResources = res
	case TargetClient:
		r.clientResources = res
	}
}

// applyCustomConfig drops every stored custom property and writes the
// supplied ones back. Keys the record currently shows keep their stored
// form, new keys get the namespace of the record's engine and pipeline
// type. Backend managed keys are kept.
func applyCustomConfig(r Record, a SetCustomConfig) (Record, error) {
	batch := r.artifact.Batch()
	known := customKeys(r.properties, r.engine)

	stored := make(map[string]string, len(a.Config))
	for _, k := range slices.Sorted(maps.Keys(a.Config)) {
		if k == "" {
			continue
		}
		sk := resolveKey(known, k, r.engine, batch)
		if isBackendKey(sk) {
			return r, invalid(a, "key "+strconv.Quote(k)+" is managed by a dedicated setting")
		}
		stored[sk] = a.Config[k]
	}

	next := r
	next.properties = r.properties.
		Filter(func(k, _ string) bool { return isBackendKey(k) }).
		Merge(Properties{m: stored})
	next.customConfig = projectCustomConfig(next.properties, r.engine)
	return next, nil
}

func setNumExecutors(p Properties, d Deployment, n int) Properties {
	if d == Local {
		return p.Without(ExecutorInstanceKey).With(SparkMasterKey, formatLocalMaster(n))
	}
	return p.Without(SparkMasterKey).With(ExecutorInstanceKey, strconv.Itoa(n))
}
