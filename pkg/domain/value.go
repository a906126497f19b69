package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind discriminates the two cases of a property Value.
type ValueKind uint8

const (
	// KindText marks a string value, e.g. "100 л/с".
	KindText ValueKind = iota + 1
	// KindNumber marks a numeric value, e.g. 0.03.
	KindNumber
)

// Value is a scalar property value: either Text or Number.
// The zero Value is invalid and is rejected by validation.
type Value struct {
	kind ValueKind
	text string
	num  float64
}

// Text creates a string value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Number creates a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Kind reports which case the value holds. It returns 0 for the zero Value.
func (v Value) Kind() ValueKind { return v.kind }

// IsValid reports whether the value holds one of the two cases.
func (v Value) IsValid() bool { return v.kind == KindText || v.kind == KindNumber }

// IsNumber reports whether the value is a Number.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// Text returns the string case and true, or "" and false for a Number.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Float returns the numeric case and true, or 0 and false for Text.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String renders the value for display and prompts.
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Any returns the value as a plain Go scalar (string or float64).
func (v Value) Any() any {
	if v.kind == KindNumber {
		return v.num
	}
	return v.text
}

// MarshalJSON encodes Text as a JSON string and Number as a JSON number.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindNumber:
		return json.Marshal(v.num)
	default:
		return nil, fmt.Errorf("%w: empty property value", ErrSchema)
	}
}

// UnmarshalJSON accepts a JSON string or number. Every other JSON type fails
// with ErrNonScalar.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrNonScalar
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid number %s: %w", data, err)
		}
		*v = Number(f)
		return nil
	default:
		return ErrNonScalar
	}
}

// ValueOf converts a decoded Go scalar into a Value.
// Strings, json.Number and all integer/float kinds are accepted.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case string:
		return Text(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	default:
		return Value{}, fmt.Errorf("%w (got %T)", ErrNonScalar, x)
	}
}
