// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package backend

import (
	"encoding/json"
	"testing"

	"github.com/z5labs/pipeconf/configure"

	"github.com/stretchr/testify/require"
)

func TestConfig_JSON(t *testing.T) {
	t.Run("will keep fields which are not modelled", func(t *testing.T) {
		in := `{
			"engine": "spark",
			"properties": {"system.spark.spark.executor.instances": "2"},
			"batchInterval": "30s",
			"stages": [{"name": "source"}],
			"connections": []
		}`

		var cfg Config
		err := json.Unmarshal([]byte(in), &cfg)
		require.NoError(t, err)
		require.Equal(t, configure.Spark, cfg.Engine)
		require.Equal(t, "30s", cfg.BatchInterval)
		require.Len(t, cfg.Extra, 2)

		out, err := json.Marshal(cfg)
		require.NoError(t, err)
		require.JSONEq(t, in, string(out))
	})

	t.Run("will reject an unknown engine", func(t *testing.T) {
		var cfg Config
		err := json.Unmarshal([]byte(`{"engine": "flink"}`), &cfg)
		require.Error(t, err)
	})
}

func TestPipeline_Record(t *testing.T) {
	t.Run("will apply persisted values over defaults", func(t *testing.T) {
		disabled := true
		p := Pipeline{
			Artifact: configure.Artifact{Name: "cdap-data-streams"},
			Config: Config{
				Engine:             configure.Spark,
				Properties:         map[string]string{"system.spark.foo": "bar"},
				DriverResources:    &configure.Resources{VirtualCores: 2, MemoryMB: 1024},
				DisableCheckpoints: &disabled,
				BatchInterval:      "2m",
				RuntimeArgs:        []configure.KeyValue{{Key: "k", Value: "v"}},
			},
		}

		r, err := p.Record(configure.DefaultValues())
		require.NoError(t, err)

		require.Equal(t, configure.Spark, r.Engine())
		require.Equal(t, []configure.KeyValue{{Key: "foo", Value: "bar"}}, r.CustomConfig())
		require.Equal(t, configure.Resources{VirtualCores: 2, MemoryMB: 1024}, r.DriverResources())
		require.Equal(t, configure.DefaultValues().Resources, r.Resources())
		require.True(t, r.CheckpointsDisabled())
		require.Equal(t, "2m", r.BatchInterval().String())
		require.Equal(t, []configure.KeyValue{{Key: "k", Value: "v"}}, r.RuntimeArgs())
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the batch interval is malformed", func(t *testing.T) {
			p := Pipeline{Config: Config{BatchInterval: "90s"}}

			_, err := p.Record(configure.DefaultValues())

			var ierr configure.InvalidBatchIntervalError
			require.ErrorAs(t, err, &ierr)
		})
	})
}

func TestPipeline_WithRecord(t *testing.T) {
	p := Pipeline{
		Artifact: configure.Artifact{Name: "cdap-data-pipeline"},
		Config: Config{
			Engine:     configure.MapReduce,
			Properties: map[string]string{"system.mapreduce.a": "1"},
			Extra:      map[string]json.RawMessage{"stages": json.RawMessage(`[]`)},
		},
	}

	r, err := p.Record(configure.DefaultValues())
	require.NoError(t, err)

	r, err = configure.Apply(r, configure.SetNumRecordsPreview{NumRecords: 42})
	require.NoError(t, err)

	saved := p.WithRecord(r)
	require.Equal(t, p.Artifact, saved.Artifact)
	require.Equal(t, map[string]string{"system.mapreduce.a": "1"}, saved.Config.Properties)
	require.Equal(t, 42, *saved.Config.NumOfRecordsPreview)
	require.Equal(t, "10s", saved.Config.BatchInterval)
	require.Equal(t, p.Config.Extra, saved.Config.Extra)

	reloaded, err := saved.Record(configure.DefaultValues())
	require.NoError(t, err)
	require.Equal(t, r.Export(), reloaded.Export())
	require.Equal(t, r.NumRecordsPreview(), reloaded.NumRecordsPreview())
}
