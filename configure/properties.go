// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package configure

import (
	"encoding/json"
	"maps"
	"slices"
)

// KeyValue is a single string pair.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Properties is an immutable flat string mapping.
//
// Methods which change the mapping return a new value
// and never modify the receiver's storage.
type Properties struct {
	m map[string]string
}

// PropertiesOf copies m into a new [Properties].
func PropertiesOf(m map[string]string) Properties {
	return Properties{m: maps.Clone(m)}
}

// Get returns the value for k.
func (p Properties) Get(k string) (string, bool) {
	v, ok := p.m[k]
	return v, ok
}

// Len returns the number of entries.
func (p Properties) Len() int {
	return len(p.m)
}

// Keys returns the sorted keys.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p.m))
}

// Map returns a copy of the underlying mapping. It is never nil.
func (p Properties) Map() map[string]string {
	m := make(map[string]string, len(p.m))
	maps.Copy(m, p.m)
	return m
}

// With returns a copy of p with k set to v.
func (p Properties) With(k, v string) Properties {
	m := p.Map()
	m[k] = v
	return Properties{m: m}
}

// Without returns a copy of p without the given keys.
func (p Properties) Without(keys ...string) Properties {
	m := p.Map()
	for _, k := range keys {
		delete(m, k)
	}
	return Properties{m: m}
}

// Filter returns a copy of p holding only the entries keep accepts.
func (p Properties) Filter(keep func(k, v string) bool) Properties {
	m := make(map[string]string, len(p.m))
	for k, v := range p.m {
		if keep(k, v) {
			m[k] = v
		}
	}
	return Properties{m: m}
}

// Merge returns a copy of p overlaid with every entry of o.
func (p Properties) Merge(o Properties) Properties {
	m := p.Map()
	maps.Copy(m, o.m)
	return Properties{m: m}
}

// Equal reports whether p and o hold the same entries.
func (p Properties) Equal(o Properties) bool {
	return maps.Equal(p.m, o.m)
}

// MarshalJSON implements the [json.Marshaler] interface.
func (p Properties) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Map())
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (p *Properties) UnmarshalJSON(b []byte) error {
	var m map[string]string
	err := json.Unmarshal(b, &m)
	if err != nil {
		return err
	}
	p.m = m
	return nil
}
