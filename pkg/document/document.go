// Package document decodes YAML and JSON documents into generic values and
// offers typed accessors over them. Decoded values are one of: nil, bool,
// int, int64, uint64, float64, string, []any, map[string]any or
// map[any]any (mappings with non-string keys).
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one key/value pair of a decoded mapping.
type Entry struct {
	Key   any
	Value any
}

// StringKey returns the entry key when it is a string.
func (e Entry) StringKey() (string, bool) {
	s, ok := e.Key.(string)
	return s, ok
}

// DecodeYAML decodes a single YAML document. An empty document decodes to nil.
func DecodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// PlainNumberText returns the source text of the unquoted numeric values
// of a top-level YAML mapping, keyed by field name. Decoding loses their
// spelling: 0123456 reads as octal and 12345e7 as a float.
func PlainNumberText(data []byte) map[string]string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil
	}
	out := make(map[string]string)
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode || v.Style != 0 {
			continue
		}
		if tag := v.ShortTag(); tag == "!!int" || tag == "!!float" {
			out[k.Value] = v.Value
		}
	}
	return out
}

// DecodeJSON decodes a JSON document, keeping integers and floats apart the
// way the YAML decoder does.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON document")
	}
	return normalizeJSON(v)
}

func normalizeJSON(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := val.Int64(); err == nil {
				return i, nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return f, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			n, err := normalizeJSON(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalizeJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// EncodeYAML renders v as YAML. Mapping keys come out sorted and
// integral floats keep a fractional part so they decode as floats again.
func EncodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(floatNodes(v)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func floatNodes(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) || val != math.Trunc(val) {
			return val
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(val, 'f', 1, 64)}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = floatNodes(item)
		}
		return out
	case map[any]any:
		out := make(map[any]any, len(val))
		for k, item := range val {
			out[k] = floatNodes(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = floatNodes(item)
		}
		return out
	}
	return v
}

// IsMapping reports whether v is a decoded mapping.
func IsMapping(v any) bool {
	switch v.(type) {
	case map[string]any, map[any]any:
		return true
	}
	return false
}

// Mapping returns the entries of a decoded mapping sorted by key.
func Mapping(v any) ([]Entry, bool) {
	var entries []Entry
	switch m := v.(type) {
	case map[string]any:
		entries = make([]Entry, 0, len(m))
		for k, item := range m {
			entries = append(entries, Entry{Key: k, Value: item})
		}
	case map[any]any:
		entries = make([]Entry, 0, len(m))
		for k, item := range m {
			entries = append(entries, Entry{Key: k, Value: item})
		}
	default:
		return nil, false
	}
	sort.Slice(entries, func(i, j int) bool {
		return fmt.Sprint(entries[i].Key) < fmt.Sprint(entries[j].Key)
	})
	return entries, true
}

// StringMap returns v as a map[string]any when it is a mapping whose keys
// are all strings.
func StringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = item
		}
		return out, true
	}
	return nil, false
}

// Sequence returns v as a slice when it is a decoded sequence.
func Sequence(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

// Integer returns v as an int64 when it is an integer. Booleans and floats
// are not integers.
func Integer(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

// Float returns v as a float64 when it is a floating point number.
func Float(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

// Scalar renders a string or integer as a string. Used for identifiers that
// may be written unquoted in YAML, such as action ids.
func Scalar(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if n, ok := Integer(v); ok {
		return fmt.Sprint(n), true
	}
	return "", false
}

// TypeName describes a decoded value for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "sequence"
	case map[string]any, map[any]any:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}
