// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package configure models the editable configuration of a pipeline
// execution profile.
//
// A [Record] is built once per editing session with [Initialize] from
// the persisted flat property mapping of a pipeline, or with [New] from
// platform [Defaults]. Every change is expressed as an [Action] and
// applied with [Apply], which returns a new snapshot. [Record.Export]
// turns a snapshot back into the flat property mapping.
package configure
