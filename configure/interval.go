// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"fmt"
	"strconv"
	"time"
)

// IntervalUnit is the unit of a [BatchInterval].
type IntervalUnit string

const (
	Seconds IntervalUnit = "s"
	Minutes IntervalUnit = "m"
)

// Valid reports whether u is a supported unit.
func (u IntervalUnit) Valid() bool {
	return u == Seconds || u == Minutes
}

const (
	MinBatchInterval = 1
	MaxBatchInterval = 60
)

// BatchIntervalMagnitudes lists every selectable batch interval magnitude.
func BatchIntervalMagnitudes() []int {
	return intRange(MinBatchInterval, MaxBatchInterval)
}

// BatchIntervalUnits lists every selectable batch interval unit.
func BatchIntervalUnits() []IntervalUnit {
	return []IntervalUnit{Seconds, Minutes}
}

func intRange(lo, hi int) []int {
	vs := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		vs = append(vs, i)
	}
	return vs
}

// BatchInterval is the micro-batch duration of a streaming pipeline.
// It is serialized as the magnitude followed by a single unit
// character, e.g. "30s".
type BatchInterval struct {
	Magnitude int
	Unit      IntervalUnit
}

// InvalidBatchIntervalError is returned when a batch interval
// can not be parsed or is out of range.
type InvalidBatchIntervalError struct {
	Value  string
	Reason string
}

// Error implements the [error] interface.
func (e InvalidBatchIntervalError) Error() string {
	return fmt.Sprintf("invalid batch interval %q: %s", e.Value, e.Reason)
}

// ParseBatchInterval parses the serialized form of a [BatchInterval].
func ParseBatchInterval(s string) (BatchInterval, error) {
	if len(s) < 2 {
		return BatchInterval{}, InvalidBatchIntervalError{Value: s, Reason: "too short"}
	}
	unit := IntervalUnit(s[len(s)-1:])
	if !unit.Valid() {
		return BatchInterval{}, InvalidBatchIntervalError{Value: s, Reason: "unknown unit"}
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return BatchInterval{}, InvalidBatchIntervalError{Value: s, Reason: "magnitude is not an integer"}
	}
	bi := BatchInterval{Magnitude: n, Unit: unit}
	if !bi.Valid() {
		return BatchInterval{}, InvalidBatchIntervalError{Value: s, Reason: "magnitude out of range"}
	}
	return bi, nil
}

// Valid reports whether the magnitude is in range and the unit is known.
func (bi BatchInterval) Valid() bool {
	return validMagnitude(bi.Magnitude) && bi.Unit.Valid()
}

func validMagnitude(n int) bool {
	return n >= MinBatchInterval && n <= MaxBatchInterval
}

// String implements the [fmt.Stringer] interface.
func (bi BatchInterval) String() string {
	return strconv.Itoa(bi.Magnitude) + string(bi.Unit)
}

// Duration converts the interval to a [time.Duration].
func (bi BatchInterval) Duration() time.Duration {
	d := time.Duration(bi.Magnitude)
	if bi.Unit == Minutes {
		return d * time.Minute
	}
	return d * time.Second
}

// MarshalText implements the [encoding.TextMarshaler] interface.
func (bi BatchInterval) MarshalText() ([]byte, error) {
	return []byte(bi.String()), nil
}

// UnmarshalText implements the [encoding.TextUnmarshaler] interface.
func (bi *BatchInterval) UnmarshalText(b []byte) error {
	v, err := ParseBatchInterval(string(b))
	if err != nil {
		return err
	}
	*bi = v
	return nil
}
