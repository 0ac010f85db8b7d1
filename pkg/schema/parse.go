package schema

import (
	"fmt"
	"io"
	"regexp"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/expressions"
)

// Parse turns a YAML schema document into a Schema. Parsing runs in
// phases: decoding, name validation, then class and property validation.
// Each phase collects all of its defects and fails with a *ParseError
// before the next phase runs.
func Parse(input []byte) (*Schema, error) {
	doc, err := document.DecodeYAML(input)
	if err != nil {
		return nil, &ParseError{Errors: []error{&DefinitionError{Err: ErrDocumentNotDecodable, Detail: err.Error()}}}
	}
	data, ok := document.StringMap(doc)
	if !ok {
		return nil, &ParseError{Errors: []error{&DefinitionError{Err: ErrNotADictionary, Detail: document.TypeName(doc)}}}
	}

	names := &phase{}
	name := parseName(names, data)
	if err := names.result(); err != nil {
		return nil, err
	}

	classes := &phase{}
	defs := parseClasses(classes, data)
	if err := classes.result(); err != nil {
		return nil, err
	}

	return &Schema{Name: name, Classes: defs}, nil
}

// ParseReader reads a schema document from r and parses it.
func ParseReader(r io.Reader) (*Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}

func parseName(p *phase, data map[string]any) string {
	raw, ok := data["name"]
	if !ok {
		p.add(ErrNameUndefined, "", "", "")
		return ""
	}
	name, ok := raw.(string)
	if !ok {
		p.add(ErrNameNotAString, "", "", document.TypeName(raw))
		return ""
	}
	if !expressions.ValidSchemaName(name) {
		p.add(ErrNameInvalid, "", "", name)
		return ""
	}
	return name
}

func parseClasses(p *phase, data map[string]any) map[string]*ClassDefinition {
	raw, ok := data["classes"]
	if !ok {
		p.add(ErrClassesUndefined, "", "", "")
		return nil
	}
	entries, ok := document.Mapping(raw)
	if !ok {
		p.add(ErrClassesNotADictionary, "", "", document.TypeName(raw))
		return nil
	}

	classes := make(map[string]*ClassDefinition, len(entries))
	for _, entry := range entries {
		name, ok := entry.StringKey()
		if !ok {
			p.add(ErrClassNameNotAString, "", "", fmt.Sprint(entry.Key))
			continue
		}
		if !expressions.ValidClassName(name) {
			p.add(ErrClassNameInvalid, name, "", "")
			continue
		}
		if class := parseClass(p, name, entry.Value); class != nil {
			classes[name] = class
		}
	}
	return classes
}

func parseClass(p *phase, name string, raw any) *ClassDefinition {
	class := &ClassDefinition{Name: name, Properties: make(map[string]*PropertyDefinition)}
	if raw == nil {
		return class
	}
	data, ok := document.StringMap(raw)
	if !ok {
		p.add(ErrClassNotADictionary, name, "", document.TypeName(raw))
		return nil
	}
	for key := range data {
		if key != "properties" {
			p.add(ErrClassAttributeInvalid, name, "", key)
		}
	}

	rawProps, ok := data["properties"]
	if !ok || rawProps == nil {
		return class
	}
	entries, ok := document.Mapping(rawProps)
	if !ok {
		p.add(ErrPropertiesNotADictionary, name, "", document.TypeName(rawProps))
		return class
	}
	for _, entry := range entries {
		pname, ok := entry.StringKey()
		if !ok {
			p.add(ErrPropertyNameNotAString, name, "", fmt.Sprint(entry.Key))
			continue
		}
		if !expressions.ValidPropertyName(pname) {
			p.add(ErrPropertyNameInvalid, name, pname, "")
			continue
		}
		if def := parseProperty(p, name, pname, entry.Value, false); def != nil {
			class.Properties[pname] = def
		}
	}
	return class
}

// attributes lists the keys each kind accepts besides type and optional.
var attributes = map[Kind][]string{
	KindText:      {"regex"},
	KindRaw:       {"content-type-regex"},
	KindReference: {"class", "schema", "bidirectional"},
	KindList:      {"elements"},
}

func parseProperty(p *phase, class, name string, raw any, element bool) *PropertyDefinition {
	data, ok := document.StringMap(raw)
	if !ok {
		p.add(ErrPropertyNotADictionary, class, name, document.TypeName(raw))
		return nil
	}

	rawType, ok := data["type"]
	if !ok {
		p.add(ErrPropertyTypeUndefined, class, name, "")
		return nil
	}
	typeName, _ := rawType.(string)
	kind, ok := ParseKind(typeName)
	if !ok {
		p.add(ErrPropertyTypeUnknown, class, name, fmt.Sprint(rawType))
		return nil
	}
	if element && kind == KindList {
		p.add(ErrListOfListsUnsupported, class, name, "")
		return nil
	}

	def := &PropertyDefinition{Name: name, Kind: kind}
	failed := false

	if rawOpt, ok := data["optional"]; ok {
		opt, isBool := rawOpt.(bool)
		if !isBool {
			p.add(ErrPropertyOptionalNotABool, class, name, document.TypeName(rawOpt))
			failed = true
		}
		def.Optional = opt
	}

	allowed := map[string]bool{"type": true, "optional": true}
	for _, attr := range attributes[kind] {
		allowed[attr] = true
	}
	for key := range data {
		if !allowed[key] {
			p.add(ErrPropertyAttributeInvalid, class, name, fmt.Sprintf("%q is not valid for %s properties", key, kind))
			failed = true
		}
	}

	switch kind {
	case KindBoolean, KindInt, KindFloat, KindTimestamp:
	case KindText:
		exprs, ok := parseExpressions(p, class, name, data["regex"])
		def.Expressions = exprs
		failed = failed || !ok
	case KindRaw:
		exprs, ok := parseExpressions(p, class, name, data["content-type-regex"])
		def.Expressions = exprs
		failed = failed || !ok
	case KindReference:
		if !parseReference(p, class, name, data, def) {
			failed = true
		}
	case KindList:
		rawElems, ok := data["elements"]
		if !ok {
			p.add(ErrListElementsUndefined, class, name, "")
			return nil
		}
		elems := parseProperty(p, class, name, rawElems, true)
		if elems == nil {
			return nil
		}
		def.Elements = elems
	default:
		panic(fmt.Sprintf("schema: unhandled property kind %v", kind))
	}

	if failed {
		return nil
	}
	return def
}

func parseExpressions(p *phase, class, name string, raw any) ([]*regexp.Regexp, bool) {
	if raw == nil {
		return nil, true
	}
	var sources []string
	switch v := raw.(type) {
	case string:
		sources = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				p.add(ErrRegexInvalid, class, name, fmt.Sprintf("expression %v is not a string", item))
				return nil, false
			}
			sources = append(sources, s)
		}
	default:
		p.add(ErrRegexInvalid, class, name, "expected a string or a list of strings")
		return nil, false
	}

	exprs := make([]*regexp.Regexp, 0, len(sources))
	ok := true
	for _, src := range sources {
		re, err := regexp.Compile(src)
		if err != nil {
			p.add(ErrRegexInvalid, class, name, err.Error())
			ok = false
			continue
		}
		exprs = append(exprs, re)
	}
	return exprs, ok
}

func parseReference(p *phase, class, name string, data map[string]any, def *PropertyDefinition) bool {
	ok := true
	rawClass, has := data["class"]
	if !has {
		p.add(ErrReferenceClassUndefined, class, name, "")
		ok = false
	} else if target, isString := rawClass.(string); !isString || !expressions.ValidClassName(target) {
		p.add(ErrPropertyAttributeInvalid, class, name, fmt.Sprintf("class %v is not a valid class name", rawClass))
		ok = false
	} else {
		def.Class = target
	}

	if rawSchema, has := data["schema"]; has {
		s, isString := rawSchema.(string)
		if !isString || !expressions.ValidSchemaName(s) {
			p.add(ErrPropertyAttributeInvalid, class, name, fmt.Sprintf("schema %v is not a valid schema name", rawSchema))
			ok = false
		}
		def.Schema = s
	}

	if rawBidi, has := data["bidirectional"]; has {
		b, isBool := rawBidi.(bool)
		if !isBool {
			p.add(ErrPropertyAttributeInvalid, class, name, "bidirectional is not a boolean")
			ok = false
		}
		def.Bidirectional = b
	}
	return ok
}
