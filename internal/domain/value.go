package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind enumerates the shapes a Value can take.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a tagged structured value used for payloads that are persisted
// as opaque JSON columns (unit_agreement, payment_detail, deposit_details,
// accounting entities inside lines). It round-trips JSON without a native
// dynamic type and keeps numbers as their source text so no float drift
// sneaks into the warehouse.
type Value struct {
	kind ValueKind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{kind: KindNull} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a JSON number kept in source text form.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array wraps an ordered sequence of values.
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// Object wraps a key/value map.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// Kind reports the shape of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// ParseValue decodes arbitrary JSON into a Value.
func ParseValue(raw []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var any interface{}
	if err := dec.Decode(&any); err != nil {
		return Value{}, fmt.Errorf("ParseValue: decoding: %w", err)
	}
	return fromInterface(any)
}

func fromInterface(any interface{}) (Value, error) {
	switch val := any.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return Number(val), nil
	case string:
		return String(val), nil
	case []interface{}:
		items := make([]Value, 0, len(val))
		for _, item := range val {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items...), nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(val))
		for key, item := range val {
			v, err := fromInterface(item)
			if err != nil {
				return Value{}, err
			}
			fields[key] = v
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("fromInterface: unsupported JSON value %T", any)
	}
}

// MarshalJSON emits canonical JSON: object keys sorted, numbers verbatim.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if v.num == "" {
			return []byte("0"), nil
		}
		return []byte(v.num), nil
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for key := range v.obj {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[key].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("Value.MarshalJSON: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON decodes arbitrary JSON into the value.
func (v *Value) UnmarshalJSON(raw []byte) error {
	parsed, err := ParseValue(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Equal reports whether two values encode the same JSON document. Numbers
// compare by text, which is exact for the fixed-point amounts this pipeline
// carries.
func (v Value) Equal(other Value) bool {
	a, err := v.MarshalJSON()
	if err != nil {
		return false
	}
	b, err := other.MarshalJSON()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}
