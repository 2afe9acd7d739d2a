// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"fmt"
	"strconv"
	"strings"
)

// Property keys managed by dedicated record attributes.
const (
	BackpressureKey     = "system.spark.spark.streaming.backpressure.enabled"
	ExecutorInstanceKey = "system.spark.spark.executor.instances"
	SparkMasterKey      = "system.spark.spark.master"
)

const (
	mapReducePrefix = "system.mapreduce."
	sparkPrefix     = "system.spark."
)

// BackendKeys lists the keys which are never part of the custom config.
func BackendKeys() []string {
	return []string{BackpressureKey, ExecutorInstanceKey, SparkMasterKey}
}

func isBackendKey(k string) bool {
	switch k {
	case BackpressureKey, ExecutorInstanceKey, SparkMasterKey:
		return true
	default:
		return false
	}
}

// displayKey strips the namespace from a stored custom config key.
func displayKey(k string, engine Engine) string {
	if engine == MapReduce {
		if s, ok := strings.CutPrefix(k, mapReducePrefix); ok {
			return s
		}
	}
	if s, ok := strings.CutPrefix(k, sparkPrefix); ok {
		return s
	}
	return k
}

// customKeys maps each display key of the custom config to the stored
// key it is derived from. A stored key is shown in full whenever
// stripping its namespace would clash with another stored key, so
// display keys are unique and map back to exactly one stored key.
func customKeys(p Properties, engine Engine) map[string]string {
	stored := make(map[string]bool, p.Len())
	stripped := make(map[string]int, p.Len())
	for _, k := range p.Keys() {
		if isBackendKey(k) {
			continue
		}
		stored[k] = true
		stripped[displayKey(k, engine)]++
	}

	keys := make(map[string]string, len(stored))
	for k := range stored {
		d := displayKey(k, engine)
		if d != k && (stripped[d] > 1 || stored[d]) {
			d = k
		}
		keys[d] = k
	}
	return keys
}

// resolveKey returns the stored key for display key k. Keys already
// shown by the record keep their stored form, new keys are namespaced.
func resolveKey(known map[string]string, k string, engine Engine, batch bool) string {
	if sk, ok := known[k]; ok {
		return sk
	}
	return storageKey(k, engine, batch)
}

// storageKey namespaces a custom config key for the given pipeline.
func storageKey(k string, engine Engine, batch bool) string {
	if engine == MapReduce && batch {
		return mapReducePrefix + k
	}
	return sparkPrefix + k
}

func formatLocalMaster(n int) string {
	return fmt.Sprintf("local[%d]", n)
}

func parseLocalMaster(s string) (int, bool) {
	s, ok := strings.CutPrefix(s, "local[")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, "]")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func parsePositive(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
