package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Metadata is an open key-value mapping attached to assets and messages.
// Values are restricted to the closed MetaValue variant so that wire
// stringification stays total and lossless.
type Metadata map[string]MetaValue

// MetaKind discriminates the MetaValue variant
type MetaKind int

const (
	MetaNull MetaKind = iota
	MetaString
	MetaNumber
	MetaBool
	MetaList
	MetaMap
)

// MetaValue is a closed variant over the JSON scalar and container types.
// The zero value is null.
type MetaValue struct {
	kind MetaKind
	str  string
	num  float64
	b    bool
	list []MetaValue
	m    map[string]MetaValue
}

func MetaStringValue(s string) MetaValue  { return MetaValue{kind: MetaString, str: s} }
func MetaNumberValue(n float64) MetaValue { return MetaValue{kind: MetaNumber, num: n} }
func MetaBoolValue(v bool) MetaValue      { return MetaValue{kind: MetaBool, b: v} }
func MetaListValue(vs []MetaValue) MetaValue {
	return MetaValue{kind: MetaList, list: vs}
}
func MetaMapValue(m map[string]MetaValue) MetaValue {
	return MetaValue{kind: MetaMap, m: m}
}

// Kind returns the variant discriminator
func (v MetaValue) Kind() MetaKind { return v.kind }

// Str returns the string payload; empty unless Kind is MetaString
func (v MetaValue) Str() string { return v.str }

// Number returns the numeric payload; zero unless Kind is MetaNumber
func (v MetaValue) Number() float64 { return v.num }

// Bool returns the boolean payload; false unless Kind is MetaBool
func (v MetaValue) Bool() bool { return v.b }

// Wire renders the value as a string for the remote store's
// string-to-string metadata pairs. Containers serialise as compact JSON,
// so the rendering is total and round-trippable.
func (v MetaValue) Wire() string {
	switch v.kind {
	case MetaString:
		return v.str
	case MetaNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case MetaBool:
		return strconv.FormatBool(v.b)
	case MetaNull:
		return ""
	default:
		// Marshal of the closed variant cannot fail
		raw, _ := json.Marshal(v)
		return string(raw)
	}
}

// MarshalJSON renders the variant as plain JSON
func (v MetaValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case MetaNull:
		return []byte("null"), nil
	case MetaString:
		return json.Marshal(v.str)
	case MetaNumber:
		return json.Marshal(v.num)
	case MetaBool:
		return json.Marshal(v.b)
	case MetaList:
		return json.Marshal(v.list)
	case MetaMap:
		return json.Marshal(v.m)
	}
	return nil, fmt.Errorf("unknown metadata kind %d", v.kind)
}

// UnmarshalJSON parses arbitrary JSON into the closed variant
func (v *MetaValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := metaFromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func metaFromInterface(raw interface{}) (MetaValue, error) {
	switch t := raw.(type) {
	case nil:
		return MetaValue{}, nil
	case string:
		return MetaStringValue(t), nil
	case float64:
		return MetaNumberValue(t), nil
	case bool:
		return MetaBoolValue(t), nil
	case []interface{}:
		list := make([]MetaValue, 0, len(t))
		for _, item := range t {
			mv, err := metaFromInterface(item)
			if err != nil {
				return MetaValue{}, err
			}
			list = append(list, mv)
		}
		return MetaListValue(list), nil
	case map[string]interface{}:
		m := make(map[string]MetaValue, len(t))
		for k, item := range t {
			mv, err := metaFromInterface(item)
			if err != nil {
				return MetaValue{}, err
			}
			m[k] = mv
		}
		return MetaMapValue(m), nil
	}
	return MetaValue{}, fmt.Errorf("unsupported metadata value type %T", raw)
}

// Wire converts the metadata mapping to string pairs for the remote store
func (m Metadata) Wire() StringMap {
	if len(m) == 0 {
		return nil
	}
	out := make(StringMap, len(m))
	for k, v := range m {
		out[k] = v.Wire()
	}
	return out
}

// Description returns the string value of the "description" key, if any.
// Lexical search matches against it alongside the asset name.
func (m Metadata) Description() string {
	v, ok := m["description"]
	if !ok || v.Kind() != MetaString {
		return ""
	}
	return v.Str()
}

// Keys returns the metadata keys in sorted order
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
