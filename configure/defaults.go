// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"errors"
	"fmt"
)

const (
	MinNumExecutors = 1
	MaxNumExecutors = 10
)

// NumExecutorsOptions lists every selectable executor count.
func NumExecutorsOptions() []int {
	return intRange(MinNumExecutors, MaxNumExecutors)
}

// Defaults are the platform values a new record starts from.
type Defaults struct {
	Engine                Engine        `config:"engine"`
	Resources             Resources     `config:"resources"`
	DriverResources       Resources     `config:"driverResources"`
	ClientResources       Resources     `config:"clientResources"`
	Instrumentation       bool          `config:"instrumentation"`
	StageLogging          bool          `config:"stageLogging"`
	CheckpointsDisabled   bool          `config:"checkpointsDisabled"`
	StopGracefully        bool          `config:"stopGracefully"`
	Backpressure          bool          `config:"backpressure"`
	NumExecutors          int           `config:"numExecutors"`
	NumRecordsPreview     int           `config:"numRecordsPreview"`
	PreviewTimeoutMinutes int           `config:"previewTimeoutMinutes"`
	BatchInterval         BatchInterval `config:"batchInterval"`
}

// DefaultValues returns the values the platform ships with.
func DefaultValues() Defaults {
	res := Resources{VirtualCores: 1, MemoryMB: 2048}
	return Defaults{
		Engine:                MapReduce,
		Resources:             res,
		DriverResources:       res,
		ClientResources:       res,
		Instrumentation:       true,
		StageLogging:          true,
		CheckpointsDisabled:   false,
		StopGracefully:        true,
		Backpressure:          true,
		NumExecutors:          1,
		NumRecordsPreview:     100,
		PreviewTimeoutMinutes: 2,
		BatchInterval:         BatchInterval{Magnitude: 10, Unit: Seconds},
	}
}

// Validate reports every out of range default.
func (d Defaults) Validate() error {
	var errs []error
	if !d.Engine.Valid() {
		errs = append(errs, UnknownEngineError{Value: string(d.Engine)})
	}
	for target, r := range map[ResourceTarget]Resources{
		TargetExecutor: d.Resources,
		TargetDriver:   d.DriverResources,
		TargetClient:   d.ClientResources,
	} {
		if !r.Valid() {
			errs = append(errs, fmt.Errorf("%s resources must be positive", target))
		}
	}
	if d.NumExecutors < MinNumExecutors || d.NumExecutors > MaxNumExecutors {
		errs = append(errs, fmt.Errorf("num executors must be within %d..%d", MinNumExecutors, MaxNumExecutors))
	}
	if d.NumRecordsPreview <= 0 {
		errs = append(errs, errors.New("num records preview must be positive"))
	}
	if d.PreviewTimeoutMinutes <= 0 {
		errs = append(errs, errors.New("preview timeout must be positive"))
	}
	if !d.BatchInterval.Valid() {
		errs = append(errs, InvalidBatchIntervalError{Value: d.BatchInterval.String(), Reason: "out of range"})
	}
	return errors.Join(errs...)
}
