// ABOUTME: Patch operation wire model
// ABOUTME: Closed operation kinds with the {op, path, value, from, timestamp} JSON form

package patch

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of patch operation kinds
type Kind uint8

const (
	KindUnknown Kind = iota
	Add
	Remove
	Replace
	Move
	Copy
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	Add:         "add",
	Remove:      "remove",
	Replace:     "replace",
	Move:        "move",
	Copy:        "copy",
}

// String returns the wire name of the kind
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// ParseKind maps a wire name to a Kind
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if k != int(KindUnknown) && name == s {
			return Kind(k), nil
		}
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	if k == KindUnknown || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Operation is a single structured change addressed by a positional path.
// Value is kept raw so that it round-trips byte-for-byte.
type Operation struct {
	Kind      Kind            `json:"op"`
	Path      string          `json:"path"`
	Value     json.RawMessage `json:"value,omitempty"`
	From      string          `json:"from,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// DecodedValue unmarshals Value into generic JSON form.
// A missing value decodes to nil.
func (op Operation) DecodedValue() (any, error) {
	if len(op.Value) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(op.Value, &v); err != nil {
		return nil, fmt.Errorf("decode value at %s: %w", op.Path, err)
	}
	return v, nil
}

// NewOperation builds an operation, encoding value as JSON when non-nil
func NewOperation(kind Kind, path string, value any) (Operation, error) {
	op := Operation{Kind: kind, Path: path}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return Operation{}, fmt.Errorf("encode value at %s: %w", path, err)
		}
		op.Value = raw
	}
	return op, nil
}

// Decode parses a JSON array of operations
func Decode(data []byte) ([]Operation, error) {
	var ops []Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	return ops, nil
}
