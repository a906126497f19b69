package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Properties is an insertion-ordered mapping of property names to scalar values.
// The zero value is an empty, ready-to-use mapping.
type Properties struct {
	keys   []string
	values map[string]Value
}

// Property is a single key/value pair, used to build Properties in order.
type Property struct {
	Key   string
	Value Value
}

// NewProperties builds Properties from pairs, keeping their order.
// A repeated key overwrites the earlier value in place.
func NewProperties(pairs ...Property) Properties {
	var p Properties
	for _, kv := range pairs {
		p.Set(kv.Key, kv.Value)
	}
	return p
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.keys) }

// Keys returns the property names in order.
func (p Properties) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Get returns the value for key.
func (p Properties) Get(key string) (Value, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set inserts or overwrites a value. New keys are appended at the end.
func (p *Properties) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Delete removes key, preserving the order of the remaining keys.
func (p *Properties) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// Pairs returns the properties as ordered pairs.
func (p Properties) Pairs() []Property {
	out := make([]Property, 0, len(p.keys))
	for _, k := range p.keys {
		out = append(out, Property{Key: k, Value: p.values[k]})
	}
	return out
}

// Clone returns a deep copy that shares no storage with p.
func (p Properties) Clone() Properties {
	if len(p.keys) == 0 {
		return Properties{}
	}
	c := Properties{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]Value, len(p.values)),
	}
	copy(c.keys, p.keys)
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}

// Equal reports whether both mappings hold the same pairs in the same order.
func (p Properties) Equal(other Properties) bool {
	if len(p.keys) != len(other.keys) {
		return false
	}
	for i, k := range p.keys {
		if other.keys[i] != k || p.values[k] != other.values[k] {
			return false
		}
	}
	return true
}

// Validate checks that every value holds one of the scalar cases.
func (p Properties) Validate() error {
	for _, k := range p.keys {
		if !p.values[k].IsValid() {
			return fmt.Errorf("property %q: %w", k, ErrNonScalar)
		}
	}
	return nil
}

// MarshalJSON writes a JSON object with keys in insertion order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := p.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, keeping the key order of the document.
// Nested objects, arrays, booleans and null values are rejected with ErrNonScalar.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = Properties{}
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}

	var out Properties
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("properties: unexpected key %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		if _, isDelim := valTok.(json.Delim); isDelim || valTok == nil {
			return fmt.Errorf("property %q: %w", key, ErrNonScalar)
		}
		v, err := ValueOf(valTok)
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}
