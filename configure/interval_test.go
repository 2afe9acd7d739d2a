// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBatchInterval(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected BatchInterval
		valid    bool
	}{
		{name: "seconds", in: "30s", expected: BatchInterval{Magnitude: 30, Unit: Seconds}, valid: true},
		{name: "minutes", in: "1m", expected: BatchInterval{Magnitude: 1, Unit: Minutes}, valid: true},
		{name: "upper bound", in: "60s", expected: BatchInterval{Magnitude: 60, Unit: Seconds}, valid: true},
		{name: "zero magnitude", in: "0s"},
		{name: "magnitude above range", in: "61m"},
		{name: "unknown unit", in: "10h"},
		{name: "missing magnitude", in: "s"},
		{name: "empty", in: ""},
		{name: "non numeric magnitude", in: "tens"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bi, err := ParseBatchInterval(tc.in)
			if !tc.valid {
				var ierr InvalidBatchIntervalError
				require.ErrorAs(t, err, &ierr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, bi)
			require.Equal(t, tc.in, bi.String())
		})
	}
}

func TestBatchInterval_Duration(t *testing.T) {
	require.Equal(t, 45*time.Second, BatchInterval{Magnitude: 45, Unit: Seconds}.Duration())
	require.Equal(t, 2*time.Minute, BatchInterval{Magnitude: 2, Unit: Minutes}.Duration())
}

func TestBatchIntervalMagnitudes(t *testing.T) {
	vs := BatchIntervalMagnitudes()
	require.Len(t, vs, 60)
	require.Equal(t, 1, vs[0])
	require.Equal(t, 60, vs[59])
}

func TestEngine_DisplayLabel(t *testing.T) {
	testCases := []struct {
		name     string
		engine   Engine
		batch    bool
		expected string
	}{
		{name: "batch mapreduce", engine: MapReduce, batch: true, expected: "MapReduce"},
		{name: "realtime mapreduce", engine: MapReduce, expected: "Apache Spark Streaming"},
		{name: "batch spark", engine: Spark, batch: true, expected: "Apache Spark Streaming"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.engine.DisplayLabel(tc.batch))
		})
	}
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine(" Spark ")
	require.NoError(t, err)
	require.Equal(t, Spark, e)

	_, err = ParseEngine("flink")
	var uerr UnknownEngineError
	require.ErrorAs(t, err, &uerr)
	require.Equal(t, "flink", uerr.Value)
}
