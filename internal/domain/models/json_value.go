package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// JSONKind tags the variant held by a JSONValue.
type JSONKind int

const (
	JSONNull JSONKind = iota
	JSONBool
	JSONNumber
	JSONString
	JSONObject
	JSONArray
)

// String returns the JSON type name of the kind.
func (k JSONKind) String() string {
	switch k {
	case JSONNull:
		return "null"
	case JSONBool:
		return "boolean"
	case JSONNumber:
		return "number"
	case JSONString:
		return "string"
	case JSONObject:
		return "object"
	case JSONArray:
		return "array"
	}
	return fmt.Sprintf("JSONKind(%d)", int(k))
}

// JSONValue is one decoded JSON value. The zero value is JSON null.
// JSONValue 是一个已解码的 JSON 值，零值为 JSON null。
//
// Numbers keep their literal text so a decision re-encodes exactly as received.
type JSONValue struct {
	kind   JSONKind
	b      bool
	num    json.Number
	str    string
	object map[string]JSONValue
	array  []JSONValue
}

func NullValue() JSONValue                { return JSONValue{} }
func BoolValue(b bool) JSONValue          { return JSONValue{kind: JSONBool, b: b} }
func NumberValue(n json.Number) JSONValue { return JSONValue{kind: JSONNumber, num: n} }
func StringValue(s string) JSONValue      { return JSONValue{kind: JSONString, str: s} }

// ObjectValue copies fields into a new object value.
func ObjectValue(fields map[string]JSONValue) JSONValue {
	cp := make(map[string]JSONValue, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return JSONValue{kind: JSONObject, object: cp}
}

// ArrayValue copies items into a new array value.
func ArrayValue(items []JSONValue) JSONValue {
	cp := make([]JSONValue, len(items))
	copy(cp, items)
	return JSONValue{kind: JSONArray, array: cp}
}

func (v JSONValue) Kind() JSONKind { return v.kind }
func (v JSONValue) IsNull() bool   { return v.kind == JSONNull }

// AsBool returns the boolean held by v; ok is false for any other kind.
func (v JSONValue) AsBool() (value bool, ok bool) {
	return v.b, v.kind == JSONBool
}

func (v JSONValue) AsString() (string, bool) {
	return v.str, v.kind == JSONString
}

func (v JSONValue) AsNumber() (json.Number, bool) {
	return v.num, v.kind == JSONNumber
}

// AsObject returns a copy of the object members.
func (v JSONValue) AsObject() (map[string]JSONValue, bool) {
	if v.kind != JSONObject {
		return nil, false
	}
	cp := make(map[string]JSONValue, len(v.object))
	for k, e := range v.object {
		cp[k] = e
	}
	return cp, true
}

// AsArray returns a copy of the array elements.
func (v JSONValue) AsArray() ([]JSONValue, bool) {
	if v.kind != JSONArray {
		return nil, false
	}
	cp := make([]JSONValue, len(v.array))
	copy(cp, v.array)
	return cp, true
}

// Equal compares two values structurally. Numbers compare by literal text.
func (v JSONValue) Equal(o JSONValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case JSONNull:
		return true
	case JSONBool:
		return v.b == o.b
	case JSONNumber:
		return v.num == o.num
	case JSONString:
		return v.str == o.str
	case JSONObject:
		return equalObjects(v.object, o.object)
	case JSONArray:
		if len(v.array) != len(o.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(o.array[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func equalObjects(a, b map[string]JSONValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler. Object keys are written sorted.
func (v JSONValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case JSONNull:
		return []byte("null"), nil
	case JSONBool:
		return json.Marshal(v.b)
	case JSONNumber:
		if v.num == "" {
			return []byte("0"), nil
		}
		return []byte(v.num), nil
	case JSONString:
		return json.Marshal(v.str)
	case JSONObject:
		return marshalObject(v.object)
	case JSONArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown JSON kind %d", v.kind)
}

func marshalObject(fields map[string]JSONValue) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := fields[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *JSONValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	converted, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}

// FromInterface converts the output of encoding/json (decoded with UseNumber)
// into a JSONValue. float64 values are accepted for decoders without UseNumber.
func FromInterface(raw interface{}) (JSONValue, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case float64:
		return NumberValue(json.Number(fmt.Sprintf("%v", t))), nil
	case string:
		return StringValue(t), nil
	case map[string]interface{}:
		fields := make(map[string]JSONValue, len(t))
		for k, e := range t {
			fv, err := FromInterface(e)
			if err != nil {
				return JSONValue{}, err
			}
			fields[k] = fv
		}
		return JSONValue{kind: JSONObject, object: fields}, nil
	case []interface{}:
		items := make([]JSONValue, len(t))
		for i, e := range t {
			iv, err := FromInterface(e)
			if err != nil {
				return JSONValue{}, err
			}
			items[i] = iv
		}
		return JSONValue{kind: JSONArray, array: items}, nil
	}
	return JSONValue{}, fmt.Errorf("unsupported JSON value of type %T", raw)
}

// DecodeJSONObject decodes data as a single JSON object.
// Trailing data after the object is rejected.
func DecodeJSONObject(data []byte) (map[string]JSONValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		v, err := FromInterface(raw)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payload is a JSON %s, not an object", v.Kind())
	}
	v, err := FromInterface(obj)
	if err != nil {
		return nil, err
	}
	return v.object, nil
}
