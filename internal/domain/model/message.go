// Package model contains the message shapes passed between pipeline stages.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known payload keys.
const (
	FieldSymbol  = "symbol"
	FieldPERatio = "pe_ratio"
	FieldROE     = "roe"

	FieldFactorScore  = "factor_score"
	FieldFactorSignal = "factor_signal"
)

// ErrNotObject is returned by Decode when the document is not a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// RawMessage is a payload as received: untyped key-value data.
type RawMessage map[string]any

// EnrichedMessage is a validated payload overlaid with the derived factor fields.
type EnrichedMessage map[string]any

// Get returns the value stored under key and whether the key is present.
// A present key may hold a nil value.
func (m RawMessage) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Clone returns a shallow copy. Nested values are shared.
func (m RawMessage) Clone() RawMessage {
	if m == nil {
		return nil
	}
	out := make(RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Keys returns the number of top-level keys.
func (m RawMessage) Keys() int { return len(m) }

// Merge returns a new EnrichedMessage holding base overlaid with overlay.
// On key collision the overlay wins. Neither argument is modified.
func Merge(base RawMessage, overlay map[string]any) EnrichedMessage {
	out := make(EnrichedMessage, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Decode parses a single JSON object. Numbers decode as float64.
func Decode(data []byte) (RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var m RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	if m == nil {
		return nil, ErrNotObject
	}
	return m, nil
}

// Symbol returns the symbol of an enriched message, or "" when absent.
func (m EnrichedMessage) Symbol() string {
	s, _ := m[FieldSymbol].(string)
	return s
}

// Score returns factor_score and whether it is present as a float64.
func (m EnrichedMessage) Score() (float64, bool) {
	f, ok := m[FieldFactorScore].(float64)
	return f, ok
}

// Signal returns factor_signal, or "" when absent.
func (m EnrichedMessage) Signal() string {
	s, _ := m[FieldFactorSignal].(string)
	return s
}
