// Package design defines the elaborated output model: a tree of blocks with
// concrete ports, wired connections, byte-addressed register layouts, and
// validated address maps, plus the auxiliary interconnect and instruction
// artifacts referenced by the tree.
package design

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Attributes is an ordered bag of option-tag values attached to an entity.
// Values are either bool (bare 'KEY' options) or string ('KEY=VALUE' options).
type Attributes struct {
	keys   []string
	values map[string]interface{}
}

// Set stores a value under a key, preserving first-insertion order.
func (a *Attributes) Set(key string, value interface{}) {
	if a.values == nil {
		a.values = map[string]interface{}{}
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// Get returns the stored value for a key.
func (a *Attributes) Get(key string) (interface{}, bool) {
	value, ok := a.values[key]
	return value, ok
}

// Flag reports whether a key is present with a truthy value.
func (a *Attributes) Flag(key string) bool {
	value, ok := a.values[key]
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	default:
		return true
	}
}

// Keys returns the attribute keys in insertion order.
func (a *Attributes) Keys() []string {
	return a.keys
}

// ApplyOptions converts schema option tags into attributes, preserving the
// bare-key/valued-key duality.
func (a *Attributes) ApplyOptions(options []string) {
	for _, opt := range options {
		if key, value, ok := strings.Cut(opt, "="); ok {
			a.Set(strings.TrimSpace(key), strings.TrimSpace(value))
		} else {
			a.Set(strings.TrimSpace(opt), true)
		}
	}
}

// MarshalJSON renders the attributes as an object in insertion order.
func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
