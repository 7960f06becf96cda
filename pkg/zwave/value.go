package zwave

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NoClass is the class id used for node events that are not bound to a command class.
const NoClass = -1

type ValueKind uint8

const (
	KindBool ValueKind = iota + 1
	KindNumber
	KindString
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "unset"
	}
}

// Value is a typed Z-Wave value. The zero Value is unset.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	String string
}

func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func Number(n float64) Value {
	return Value{Kind: KindNumber, Number: n}
}

func String(s string) Value {
	return Value{Kind: KindString, String: s}
}

func (v Value) IsSet() bool {
	return v.Kind != 0
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindNumber:
		return v.Number == o.Number
	case KindString:
		return v.String == o.String
	}
	return true
}

// IsZero reports a numeric 0 or a boolean false.
func (v Value) IsZero() bool {
	switch v.Kind {
	case KindBool:
		return !v.Bool
	case KindNumber:
		return v.Number == 0
	}
	return false
}

// IsTrue reports a boolean true. Numbers are never true.
func (v Value) IsTrue() bool {
	return v.Kind == KindBool && v.Bool
}

// Native returns the value as a plain Go value (bool, float64, string or nil).
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.String
	}
	return nil
}

func (v Value) Format() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindString:
		return v.String
	}
	return "<unset>"
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded JSON value into a Value. Objects and arrays are kept
// as their JSON text.
func ValueOf(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return Value{}, err
		}
		return String(string(b)), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
