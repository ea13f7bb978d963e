/*
Copyright 2020 GramLabs, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package ordered provides an insertion-order-preserving JSON object. The
// engine builds captured documents from it so that emitted document key
// order mirrors source order without relying on Go map iteration order.
package ordered

import "encoding/json"

// Map is a JSON object that remembers the order keys were first set in.
// The zero value is ready to use.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]interface{})}
}

// Set inserts or updates key. Re-setting an existing key keeps its original
// position (last write wins on value, first write wins on order), matching
// the "last write wins" setter semantic from spec.md §4.I.
func (m *Map) Set(key string, value interface{}) {
	if m.values == nil {
		m.values = make(map[string]interface{})
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// MarshalJSON emits the object with keys in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// ToPlain recursively converts the Map (and any nested Maps/slices) into
// plain map[string]interface{}/[]interface{}. The result no longer carries
// key order.
func (m *Map) ToPlain() map[string]interface{} {
	out := make(map[string]interface{}, len(m.keys))
	for _, k := range m.keys {
		out[k] = toPlainValue(m.values[k])
	}
	return out
}

func toPlainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Map:
		return t.ToPlain()
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = toPlainValue(e)
		}
		return out
	default:
		return v
	}
}
