package store

import (
	"encoding/json"
	"fmt"

	"overrule/internal/ir"
)

// marshalTypeNames converts a type-name slice to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON so the stored text is byte-identical
// across runs. Empty and nil both store as "[]".
func marshalTypeNames(names []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringsToArray(names))
	if err != nil {
		return "", fmt.Errorf("marshal type names: %w", err)
	}
	return string(data), nil
}

// unmarshalTypeNames parses canonical JSON TEXT back to a type-name
// slice. Empty arrays come back as nil so records round-trip through
// their omitempty JSON form.
func unmarshalTypeNames(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal type names: %w", err)
	}
	return names, nil
}

// marshalParams converts the ordered parameter array to canonical JSON
// TEXT for storage. Nil stores as "[]".
func marshalParams(params ir.Array) (string, error) {
	data, err := ir.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalParams parses canonical JSON TEXT to the ordered parameter
// array. Uses ir.Array.UnmarshalJSON which handles large integers via
// json.Number to avoid float64 precision loss for values > 2^53.
func unmarshalParams(data string) (ir.Array, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var arr ir.Array
	if err := json.Unmarshal([]byte(data), &arr); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return arr, nil
}
