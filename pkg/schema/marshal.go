package schema

import "github.com/odvcencio/consonant/pkg/document"

// Marshal renders a Schema in the document format Parse accepts.
func Marshal(s *Schema) ([]byte, error) {
	classes := make(map[string]any, len(s.Classes))
	for name, class := range s.Classes {
		props := make(map[string]any, len(class.Properties))
		for pname, def := range class.Properties {
			props[pname] = marshalProperty(def, true)
		}
		if len(props) == 0 {
			classes[name] = map[string]any{}
			continue
		}
		classes[name] = map[string]any{"properties": props}
	}
	return document.EncodeYAML(map[string]any{
		"name":    s.Name,
		"classes": classes,
	})
}

func marshalProperty(def *PropertyDefinition, withOptional bool) map[string]any {
	out := map[string]any{"type": def.Kind.String()}
	if withOptional && def.Optional {
		out["optional"] = true
	}
	switch def.Kind {
	case KindText:
		if exprs := expressionSources(def); exprs != nil {
			out["regex"] = exprs
		}
	case KindRaw:
		if exprs := expressionSources(def); exprs != nil {
			out["content-type-regex"] = exprs
		}
	case KindReference:
		out["class"] = def.Class
		if def.Schema != "" {
			out["schema"] = def.Schema
		}
		if def.Bidirectional {
			out["bidirectional"] = true
		}
	case KindList:
		out["elements"] = marshalProperty(def.Elements, false)
	}
	return out
}

func expressionSources(def *PropertyDefinition) []string {
	if len(def.Expressions) == 0 {
		return nil
	}
	out := make([]string, len(def.Expressions))
	for i, re := range def.Expressions {
		out[i] = re.String()
	}
	return out
}
