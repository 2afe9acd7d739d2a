// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

// Resources is a CPU and memory allocation profile.
type Resources struct {
	VirtualCores int `json:"virtualCores" config:"virtualCores"`
	MemoryMB     int `json:"memoryMB" config:"memoryMB"`
}

// Valid reports whether both allocations are positive.
func (r Resources) Valid() bool {
	return r.VirtualCores > 0 && r.MemoryMB > 0
}

// ResourceTarget names the role a [Resources] profile is allocated to.
type ResourceTarget int

const (
	// TargetExecutor is the compute profile of the distributed job.
	TargetExecutor ResourceTarget = iota
	TargetDriver
	TargetClient
)

func (t ResourceTarget) String() string {
	switch t {
	case TargetExecutor:
		return "executor"
	case TargetDriver:
		return "driver"
	case TargetClient:
		return "client"
	default:
		return "unknown"
	}
}

func (t ResourceTarget) valid() bool {
	return t >= TargetExecutor && t <= TargetClient
}
