// Package schema models the versioned class and property definitions that
// constrain the objects of a store, and parses schema documents into them.
package schema

import (
	"regexp"
	"sort"
)

// Kind identifies the type of a property.
type Kind int

const (
	KindBoolean Kind = iota + 1
	KindInt
	KindFloat
	KindTimestamp
	KindText
	KindRaw
	KindReference
	KindList
)

var kindNames = map[Kind]string{
	KindBoolean:   "boolean",
	KindInt:       "int",
	KindFloat:     "float",
	KindTimestamp: "timestamp",
	KindText:      "text",
	KindRaw:       "raw",
	KindReference: "reference",
	KindList:      "list",
}

// Kinds lists every property kind in declaration order.
var Kinds = []Kind{KindBoolean, KindInt, KindFloat, KindTimestamp, KindText, KindRaw, KindReference, KindList}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind maps a schema type name to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Schema is a named, versioned set of class definitions. It is immutable
// once parsed and may be shared between loads.
type Schema struct {
	Name    string
	Classes map[string]*ClassDefinition
}

// Class returns the named class definition.
func (s *Schema) Class(name string) (*ClassDefinition, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.Classes[name]
	return c, ok
}

// ClassNames returns the class names in sorted order.
func (s *Schema) ClassNames() []string {
	names := make([]string, 0, len(s.Classes))
	for name := range s.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassDefinition describes the properties objects of one class may carry.
type ClassDefinition struct {
	Name       string
	Properties map[string]*PropertyDefinition
}

// Property returns the named property definition.
func (c *ClassDefinition) Property(name string) (*PropertyDefinition, bool) {
	p, ok := c.Properties[name]
	return p, ok
}

// PropertyNames returns the property names in sorted order.
func (c *ClassDefinition) PropertyNames() []string {
	names := make([]string, 0, len(c.Properties))
	for name := range c.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertyDefinition is a tagged variant over property kinds. Only the
// fields belonging to Kind are meaningful.
type PropertyDefinition struct {
	Name     string
	Kind     Kind
	Optional bool

	// Expressions constrain text values (KindText) or content types
	// (KindRaw). A value must match at least one when any are given.
	Expressions []*regexp.Regexp

	// Reference target (KindReference).
	Class         string
	Schema        string
	Bidirectional bool

	// Elements describes list elements (KindList). Never itself a list.
	Elements *PropertyDefinition
}

// Matches reports whether s satisfies the definition's expressions.
func (p *PropertyDefinition) Matches(s string) bool {
	if len(p.Expressions) == 0 {
		return true
	}
	for _, re := range p.Expressions {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Equal reports whether two definitions describe the same property.
// Expressions compare by source text.
func (p *PropertyDefinition) Equal(o *PropertyDefinition) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.Name != o.Name || p.Kind != o.Kind || p.Optional != o.Optional ||
		p.Class != o.Class || p.Schema != o.Schema || p.Bidirectional != o.Bidirectional {
		return false
	}
	if len(p.Expressions) != len(o.Expressions) {
		return false
	}
	for i := range p.Expressions {
		if p.Expressions[i].String() != o.Expressions[i].String() {
			return false
		}
	}
	return p.Elements.Equal(o.Elements)
}

// Equal reports whether two schemas are identical.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Name != o.Name || len(s.Classes) != len(o.Classes) {
		return false
	}
	for name, c := range s.Classes {
		oc, ok := o.Classes[name]
		if !ok || c.Name != oc.Name || len(c.Properties) != len(oc.Properties) {
			return false
		}
		for pname, p := range c.Properties {
			if !p.Equal(oc.Properties[pname]) {
				return false
			}
		}
	}
	return true
}
