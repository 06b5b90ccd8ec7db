// Package models defines the core data structures for contract-drift analysis.
package models

import (
	"encoding/json"
	"fmt"
)

// TypeTag identifies the observed JSON type of a field value.
type TypeTag string

// Type tags for observed field values.
const (
	TypeString TypeTag = "string"
	TypeNumber TypeTag = "number"
	TypeBool   TypeTag = "bool"
	TypeObject TypeTag = "object"
	TypeArray  TypeTag = "array"
	TypeNull   TypeTag = "null"
)

// Value is a recursive tagged variant representing a decoded JSON payload.
// Modeling payloads this way keeps type-distribution counting exhaustive:
// every node carries exactly one TypeTag.
type Value struct {
	Kind TypeTag

	Str  string
	Num  float64
	Bool bool
	Obj  map[string]Value
	Arr  []Value
}

// DecodeValue converts a value produced by encoding/json (map[string]any,
// []any, float64, string, bool, nil) into a tagged Value.
func DecodeValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Value{Kind: TypeNull}, nil
	case bool:
		return Value{Kind: TypeBool, Bool: val}, nil
	case float64:
		return Value{Kind: TypeNumber, Num: val}, nil
	case string:
		return Value{Kind: TypeString, Str: val}, nil
	case []any:
		arr := make([]Value, 0, len(val))
		for _, item := range val {
			decoded, err := DecodeValue(item)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, decoded)
		}
		return Value{Kind: TypeArray, Arr: arr}, nil
	case map[string]any:
		obj := make(map[string]Value, len(val))
		for key, item := range val {
			decoded, err := DecodeValue(item)
			if err != nil {
				return Value{}, err
			}
			obj[key] = decoded
		}
		return Value{Kind: TypeObject, Obj: obj}, nil
	default:
		return Value{}, fmt.Errorf("unsupported payload value of type %T", v)
	}
}

// ParsePayload decodes raw JSON bytes into a tagged Value.
func ParsePayload(raw []byte) (Value, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Value{}, fmt.Errorf("decoding payload: %w", err)
	}
	return DecodeValue(decoded)
}

// Sample renders the value as a short string suitable for debugging samples.
// Composite values render as their type tag to avoid leaking large payloads.
func (v Value) Sample() string {
	const maxLen = 64
	var s string
	switch v.Kind {
	case TypeString:
		s = v.Str
	case TypeNumber:
		s = fmt.Sprintf("%g", v.Num)
	case TypeBool:
		s = fmt.Sprintf("%t", v.Bool)
	case TypeNull:
		s = "null"
	default:
		s = string(v.Kind)
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
