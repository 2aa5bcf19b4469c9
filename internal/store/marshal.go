package store

import (
	"fmt"

	"github.com/roach88/chord/internal/ir"
)

// marshalResult converts a run result to canonical JSON TEXT for storage.
// A nil result is stored as null.
func marshalResult(result ir.Value) (string, error) {
	if result == nil {
		result = ir.Null{}
	}
	data, err := ir.MarshalCanonical(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// unmarshalResult parses stored JSON TEXT. Numbers keep their Int/Float
// split, so large integers survive without float64 rounding.
func unmarshalResult(data string) (ir.Value, error) {
	if data == "" {
		return ir.Null{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return v, nil
}
