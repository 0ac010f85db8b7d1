package store

import (
	"encoding/json"
	"fmt"

	"github.com/odvcencio/consonant/pkg/schema"
)

// Cache is a best-effort store of decoded objects and raw property data.
// Entries are keyed by content digests (object digests also name the
// schema and class they were decoded under), so they never go stale. A miss
// is reported as found == false with a nil error. Implementations must be
// safe for concurrent use.
type Cache interface {
	ReadObject(uuid, digest string) (obj *Object, found bool, err error)
	WriteObject(uuid, digest string, obj *Object) error
	ReadRawPropertyData(digest string) (data []byte, found bool, err error)
	WriteRawPropertyData(digest string, data []byte) error
}

type cachedObject struct {
	Hash       string           `json:"hash"`
	UUID       string           `json:"uuid"`
	Class      string           `json:"class"`
	Properties []cachedProperty `json:"properties"`
}

type cachedProperty struct {
	Name  string      `json:"name"`
	Value cachedValue `json:"value"`
}

type cachedValue struct {
	Kind        string        `json:"kind"`
	Bool        bool          `json:"bool,omitempty"`
	Int         int64         `json:"int,omitempty"`
	Float       float64       `json:"float,omitempty"`
	Text        string        `json:"text,omitempty"`
	Seconds     int64         `json:"seconds,omitempty"`
	Offset      int           `json:"offset,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Entry       *cachedEntry  `json:"entry,omitempty"`
	Reference   *Reference    `json:"reference,omitempty"`
	Elements    []cachedValue `json:"elements,omitempty"`
}

type cachedEntry struct {
	Name string   `json:"name"`
	Mode FileMode `json:"mode"`
	ID   string   `json:"id"`
}

// MarshalObject encodes an object for a cache. The class is recorded by
// name only.
func MarshalObject(obj *Object) ([]byte, error) {
	out := cachedObject{Hash: obj.Hash, UUID: obj.UUID}
	if obj.Class != nil {
		out.Class = obj.Class.Name
	}
	for _, name := range obj.PropertyNames() {
		v, err := marshalValue(obj.Properties[name].Value)
		if err != nil {
			return nil, fmt.Errorf("marshal property %s: %w", name, err)
		}
		out.Properties = append(out.Properties, cachedProperty{Name: name, Value: v})
	}
	return json.Marshal(out)
}

// UnmarshalObject decodes an object produced by MarshalObject. The
// returned object's class carries only the class name; callers attach
// the class of the commit being loaded.
func UnmarshalObject(data []byte) (*Object, error) {
	var in cachedObject
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("unmarshal cached object: %w", err)
	}
	obj := &Object{
		Hash:       in.Hash,
		UUID:       in.UUID,
		Class:      &ObjectClass{Name: in.Class},
		Properties: make(map[string]*Property, len(in.Properties)),
	}
	for _, p := range in.Properties {
		v, err := unmarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("unmarshal property %s: %w", p.Name, err)
		}
		obj.Properties[p.Name] = &Property{Name: p.Name, Value: v, owner: obj.Hash}
	}
	return obj, nil
}

func marshalValue(v Value) (cachedValue, error) {
	out := cachedValue{Kind: v.Kind().String()}
	switch val := v.(type) {
	case BoolValue:
		out.Bool = bool(val)
	case IntValue:
		out.Int = int64(val)
	case FloatValue:
		out.Float = float64(val)
	case TextValue:
		out.Text = string(val)
	case TimestampValue:
		out.Seconds, out.Offset = val.Seconds, val.Offset
	case RawValue:
		out.ContentType = val.ContentType
		out.Entry = &cachedEntry{Name: val.Entry.Name, Mode: val.Entry.Mode, ID: val.Entry.ID}
	case ReferenceValue:
		ref := val.Reference
		out.Reference = &ref
	case ListValue:
		out.Elements = make([]cachedValue, len(val))
		for i, elem := range val {
			e, err := marshalValue(elem)
			if err != nil {
				return cachedValue{}, err
			}
			out.Elements[i] = e
		}
	default:
		return cachedValue{}, fmt.Errorf("unsupported value type %T", v)
	}
	return out, nil
}

func unmarshalValue(in cachedValue) (Value, error) {
	kind, ok := schema.ParseKind(in.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown value kind %q", in.Kind)
	}
	switch kind {
	case schema.KindBoolean:
		return BoolValue(in.Bool), nil
	case schema.KindInt:
		return IntValue(in.Int), nil
	case schema.KindFloat:
		return FloatValue(in.Float), nil
	case schema.KindText:
		return TextValue(in.Text), nil
	case schema.KindTimestamp:
		return TimestampValue{Seconds: in.Seconds, Offset: in.Offset}, nil
	case schema.KindRaw:
		if in.Entry == nil {
			return nil, fmt.Errorf("raw value without entry")
		}
		return RawValue{ContentType: in.ContentType, Entry: TreeEntry{Name: in.Entry.Name, Mode: in.Entry.Mode, ID: in.Entry.ID}}, nil
	case schema.KindReference:
		if in.Reference == nil {
			return nil, fmt.Errorf("reference value without target")
		}
		return ReferenceValue{Reference: *in.Reference}, nil
	case schema.KindList:
		out := make(ListValue, len(in.Elements))
		for i, elem := range in.Elements {
			v, err := unmarshalValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("unhandled value kind %v", kind)
}
