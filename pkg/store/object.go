package store

import (
	"encoding/hex"
	"sort"

	"lukechampine.com/blake3"
)

// Reference identifies an object, optionally in another service or
// pinned to a ref. The zero Service and Ref mean "this store, same commit".
type Reference struct {
	UUID    string
	Service string
	Ref     string
}

// Local reports whether the reference points into the same store and
// commit.
func (r Reference) Local() bool { return r.Service == "" && r.Ref == "" }

// Encode returns the properties.yaml form of the reference.
func (r Reference) Encode() map[string]any {
	out := map[string]any{"uuid": r.UUID}
	if r.Ref != "" {
		out["ref"] = r.Ref
	}
	if r.Service != "" {
		out["service"] = r.Service
	}
	return out
}

// ObjectClass is a class as found in one commit: its name and the
// objects filed under it.
type ObjectClass struct {
	Name    string
	Objects []Reference
}

// Equal compares classes by name and members.
func (c *ObjectClass) Equal(o *ObjectClass) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || len(c.Objects) != len(o.Objects) {
		return false
	}
	for i := range c.Objects {
		if c.Objects[i] != o.Objects[i] {
			return false
		}
	}
	return true
}

// Object is one schema-conforming entity as loaded from a commit.
// Objects are compared by Hash.
type Object struct {
	Hash       string
	UUID       string
	Class      *ObjectClass
	Properties map[string]*Property
}

// Property is a named value on an object. It refers back to its object
// by hash, not by pointer.
type Property struct {
	Name  string
	Value Value
	owner string
}

// Owner returns the hash of the object the property belongs to.
func (p *Property) Owner() string { return p.owner }

// ObjectHash derives an object's identity from its uuid, class and the
// id of the tree holding its content.
func ObjectHash(uuid, class, digest string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(uuid))
	h.Write([]byte{0})
	h.Write([]byte(class))
	h.Write([]byte{0})
	h.Write([]byte(digest))
	return hex.EncodeToString(h.Sum(nil))
}

// NewObject assembles an object and binds its properties to it.
func NewObject(uuid string, class *ObjectClass, digest string, props []*Property) *Object {
	obj := &Object{
		Hash:       ObjectHash(uuid, class.Name, digest),
		UUID:       uuid,
		Class:      class,
		Properties: make(map[string]*Property, len(props)),
	}
	for _, p := range props {
		p.owner = obj.Hash
		obj.Properties[p.Name] = p
	}
	return obj
}

// Property returns the named property.
func (o *Object) Property(name string) (*Property, bool) {
	p, ok := o.Properties[name]
	return p, ok
}

// PropertyNames returns the property names in sorted order.
func (o *Object) PropertyNames() []string {
	names := make([]string, 0, len(o.Properties))
	for name := range o.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reference returns a local reference to the object.
func (o *Object) Reference() Reference { return Reference{UUID: o.UUID} }

// Encode returns the properties.yaml form of the object.
func (o *Object) Encode() map[string]any {
	out := make(map[string]any, len(o.Properties))
	for name, p := range o.Properties {
		out[name] = EncodeValue(p.Value)
	}
	return out
}

// SortObjects orders objects by hash.
func SortObjects(objs []*Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].Hash < objs[j].Hash })
}
