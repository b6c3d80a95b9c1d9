package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrConfigNotObject is returned when a style configuration is not a JSON object.
var ErrConfigNotObject = errors.New("style configuration must be a JSON object")

// StyleConfig is the opaque configuration bag produced by the analysis workflow.
// It is an ordered JSON object: keys keep their first-seen position and values are
// kept as compact raw JSON, so unknown keys survive store round-trips verbatim.
// The zero value is an empty configuration.
type StyleConfig struct {
	keys   []string
	values map[string]json.RawMessage
}

// ParseStyleConfig decodes a JSON object into a StyleConfig.
func ParseStyleConfig(data []byte) (StyleConfig, error) {
	var c StyleConfig
	if err := c.UnmarshalJSON(data); err != nil {
		return StyleConfig{}, err
	}
	return c, nil
}

// Len returns the number of keys.
func (c StyleConfig) Len() int { return len(c.keys) }

// Keys returns the keys in order.
func (c StyleConfig) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Get returns the raw JSON value stored under key.
func (c StyleConfig) Get(key string) (json.RawMessage, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Text stringifies the value under key: strings are unquoted, null or missing
// values yield "", anything else yields its JSON text.
func (c StyleConfig) Text(key string) string {
	v, ok := c.values[key]
	if !ok || string(v) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// Set stores value under key, appending the key if it is new.
func (c *StyleConfig) Set(key string, value any) error {
	raw, err := marshalNoEscape(value)
	if err != nil {
		return fmt.Errorf("marshal value for %q: %w", key, err)
	}
	c.setRaw(key, raw)
	return nil
}

// marshalNoEscape is json.Marshal without HTML escaping, so <, > and & are
// written as themselves, the way JSON.stringify writes them.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (c *StyleConfig) setRaw(key string, raw json.RawMessage) {
	if c.values == nil {
		c.values = make(map[string]json.RawMessage)
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = raw
}

// MarshalJSON writes the object with keys in their stored order. Note that
// json.Marshal HTML-escapes this output again; use String, or an Encoder with
// SetEscapeHTML(false), where the exact text matters.
func (c StyleConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(c.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a JSON object (or null, which yields an empty config).
// Duplicate keys keep their first position and their last value.
func (c *StyleConfig) UnmarshalJSON(data []byte) error {
	c.keys = nil
	c.values = nil

	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigNotObject, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return ErrConfigNotObject
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("invalid style configuration key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("invalid style configuration key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return fmt.Errorf("invalid value for %q: %w", key, err)
		}
		c.setRaw(key, compact.Bytes())
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("invalid style configuration: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("invalid style configuration: trailing data after object")
	}
	return nil
}

// String returns the compact JSON form.
func (c StyleConfig) String() string {
	b, _ := c.MarshalJSON()
	return string(b)
}
