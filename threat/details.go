package threat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DetailsVersion is the schema version of Details written by this package.
//
// Version 1 keys, in order:
//
//	brute_force:          attempts (int), window (duration string), identifier
//	rate_limit_exceeded:  requests (int), limit (int), window (duration string)
//	sql_injection,
//	xss_attempt,
//	anomalous_behavior:   input (at most 100 runes), pattern, then caller context keys sorted
//	unauthorized_access:  required_role, actual_role
const DetailsVersion = 1

// Detail is one key/value pair of an event's details.
type Detail struct {
	Key   string
	Value any
}

// Details is an ordered list of key/value pairs. It encodes to a JSON object
// whose keys keep their order.
type Details []Detail

// Get returns the value stored under key.
func (d Details) Get(key string) (any, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key or appends a new pair.
func (d Details) Set(key string, value any) Details {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, Detail{Key: key, Value: value})
}

// Clone returns a copy backed by a new array.
func (d Details) Clone() Details {
	if d == nil {
		return nil
	}
	out := make(Details, len(d))
	copy(out, d)
	return out
}

// Map converts the details to a map, losing the order.
func (d Details) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, kv := range d {
		m[kv.Key] = kv.Value
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("detail %q: %w", kv.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Numbers decode as json.Number.
func (d *Details) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("threat details must be a JSON object")
	}

	out := Details{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected details key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("detail %q: %w", key, err)
		}
		out = append(out, Detail{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}
