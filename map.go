package mutable

import (
	"encoding/json"
	"iter"
	"reflect"
	"sort"
)

// Map is a tracked mapping with string-kinded keys. Values that are
// themselves containers are held as nodes wired to the map.
type Map struct {
	link
	typ  reflect.Type
	elem reflect.Type
	data map[string]any
}

var _ Node = (*Map)(nil)

func (m *Map) Kind() Kind {
	return KindMapping
}

func (m *Map) Type() reflect.Type {
	return m.typ
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.data)
}

// Get returns the tracked value stored under key.
func (m *Map) Get(key string) (any, bool) {
	value, ok := m.data[key]
	return value, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Keys returns the keys sorted alphabetically.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// All iterates entries in key order.
func (m *Map) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, key := range m.Keys() {
			if !yield(key, m.data[key]) {
				return
			}
		}
	}
}

// Map returns the nested map stored under key.
func (m *Map) Map(key string) (*Map, bool) {
	child, ok := m.data[key].(*Map)
	return child, ok
}

// List returns the nested list stored under key.
func (m *Map) List(key string) (*List, bool) {
	child, ok := m.data[key].(*List)
	return child, ok
}

// Record returns the nested record stored under key.
func (m *Map) Record(key string) (*Record, bool) {
	child, ok := m.data[key].(*Record)
	return child, ok
}

// Set stores value under key, coercing it against the declared element type.
func (m *Map) Set(key string, value any) error {
	child, err := track("map set", value, m.elem, m)
	if err != nil {
		return err
	}
	m.store(key, child)
	m.Changed()
	return nil
}

// Delete removes key, reporting whether it was present.
func (m *Map) Delete(key string) bool {
	old, ok := m.data[key]
	if !ok {
		return false
	}
	delete(m.data, key)
	releaseValue(old, m)
	m.Changed()
	return true
}

// Update merges entries into the map. Every value is coerced before any is
// stored, so a failing value leaves the map untouched.
func (m *Map) Update(entries map[string]any) error {
	if len(entries) == 0 {
		return nil
	}
	staged := make(map[string]any, len(entries))
	for key, value := range entries {
		child, err := track("map update", value, m.elem, m)
		if err != nil {
			return err
		}
		staged[key] = child
	}
	for key, child := range staged {
		m.store(key, child)
	}
	m.Changed()
	return nil
}

// Pop removes key and returns its value detached from the map.
func (m *Map) Pop(key string) (any, bool) {
	old, ok := m.data[key]
	if !ok {
		return nil, false
	}
	delete(m.data, key)
	releaseValue(old, m)
	m.Changed()
	return old, true
}

// SetDefault returns the value under key, storing value first when the key is
// absent.
func (m *Map) SetDefault(key string, value any) (any, error) {
	if existing, ok := m.data[key]; ok {
		return existing, nil
	}
	child, err := track("map setdefault", value, m.elem, m)
	if err != nil {
		return nil, err
	}
	m.store(key, child)
	m.Changed()
	return child, nil
}

// Clear removes every entry.
func (m *Map) Clear() {
	if len(m.data) == 0 {
		return
	}
	for key, old := range m.data {
		delete(m.data, key)
		releaseValue(old, m)
	}
	m.Changed()
}

func (m *Map) store(key string, child any) {
	if m.data == nil {
		m.data = make(map[string]any)
	}
	old, replaced := m.data[key]
	wire(child, m.elem, m)
	m.data[key] = child
	if replaced {
		releaseValue(old, m)
	}
}

func (m *Map) holds(node Node) bool {
	for _, value := range m.data {
		if sameNode(value, node) {
			return true
		}
	}
	return false
}

// Plain returns a fresh map of the declared type.
func (m *Map) Plain() any {
	if m.data == nil {
		return reflect.Zero(m.typ).Interface()
	}
	out := reflect.MakeMapWithSize(m.typ, len(m.data))
	keyType := m.typ.Key()
	for key, value := range m.data {
		out.SetMapIndex(reflect.ValueOf(key).Convert(keyType), valueFor(Decoerce(value), m.elem))
	}
	return out.Interface()
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Plain())
}

func (m *Map) MarshalYAML() (any, error) {
	return m.Plain(), nil
}
