package store

import (
	"fmt"

	"github.com/odvcencio/consonant/pkg/schema"
)

// Value is the typed value of a property. The set of implementations is
// closed and mirrors schema.Kind.
type Value interface {
	Kind() schema.Kind
	isValue()
}

type (
	BoolValue  bool
	IntValue   int64
	FloatValue float64
	TextValue  string
)

// TimestampValue is a point in time with the UTC offset it was recorded in.
type TimestampValue struct {
	Seconds int64
	Offset  int // minutes east of UTC
}

// RawValue describes a raw property. The payload lives in the object's
// raw/ subtree under Entry and is read on demand.
type RawValue struct {
	ContentType string
	Entry       TreeEntry
}

// ReferenceValue points at another object.
type ReferenceValue struct {
	Reference
}

// ListValue is an ordered sequence of element values of one kind.
type ListValue []Value

func (BoolValue) Kind() schema.Kind      { return schema.KindBoolean }
func (IntValue) Kind() schema.Kind       { return schema.KindInt }
func (FloatValue) Kind() schema.Kind     { return schema.KindFloat }
func (TextValue) Kind() schema.Kind      { return schema.KindText }
func (TimestampValue) Kind() schema.Kind { return schema.KindTimestamp }
func (RawValue) Kind() schema.Kind       { return schema.KindRaw }
func (ReferenceValue) Kind() schema.Kind { return schema.KindReference }
func (ListValue) Kind() schema.Kind      { return schema.KindList }

func (BoolValue) isValue()      {}
func (IntValue) isValue()       {}
func (FloatValue) isValue()     {}
func (TextValue) isValue()      {}
func (TimestampValue) isValue() {}
func (RawValue) isValue()       {}
func (ReferenceValue) isValue() {}
func (ListValue) isValue()      {}

// String renders the timestamp in "<seconds> <+|-HHMM>" form.
func (t TimestampValue) String() string {
	offset := t.Offset
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%d %c%02d%02d", t.Seconds, sign, offset/60, offset%60)
}

// EncodeValue converts v into the generic form stored in properties.yaml.
func EncodeValue(v Value) any {
	switch val := v.(type) {
	case BoolValue:
		return bool(val)
	case IntValue:
		return int64(val)
	case FloatValue:
		return float64(val)
	case TextValue:
		return string(val)
	case TimestampValue:
		return val.String()
	case RawValue:
		return val.ContentType
	case ReferenceValue:
		return val.Reference.Encode()
	case ListValue:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = EncodeValue(elem)
		}
		return out
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("store: unhandled value type %T", v))
	}
}

// EqualValues reports whether two values are identical.
func EqualValues(a, b Value) bool {
	la, aList := a.(ListValue)
	lb, bList := b.(ListValue)
	if aList || bList {
		if !aList || !bList || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !EqualValues(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}
