package schema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDocumentNotDecodable      = errors.New("schema document is not decodable")
	ErrNotADictionary            = errors.New("schema is not a dictionary")
	ErrNameUndefined             = errors.New("schema name undefined")
	ErrNameNotAString            = errors.New("schema name is not a string")
	ErrNameInvalid               = errors.New("schema name is invalid")
	ErrClassesUndefined          = errors.New("schema classes undefined")
	ErrClassesNotADictionary     = errors.New("schema classes is not a dictionary")
	ErrClassNameNotAString       = errors.New("class name is not a string")
	ErrClassNameInvalid          = errors.New("class name is invalid")
	ErrClassNotADictionary       = errors.New("class is not a dictionary")
	ErrClassAttributeInvalid     = errors.New("class attribute is invalid")
	ErrPropertiesNotADictionary  = errors.New("class properties is not a dictionary")
	ErrPropertyNameNotAString    = errors.New("property name is not a string")
	ErrPropertyNameInvalid       = errors.New("property name is invalid")
	ErrPropertyNotADictionary    = errors.New("property is not a dictionary")
	ErrPropertyTypeUndefined     = errors.New("property type undefined")
	ErrPropertyTypeUnknown       = errors.New("property type unknown")
	ErrPropertyOptionalNotABool  = errors.New("property optional flag is not a boolean")
	ErrPropertyAttributeInvalid  = errors.New("property attribute is invalid")
	ErrRegexInvalid              = errors.New("property regular expression is invalid")
	ErrReferenceClassUndefined   = errors.New("reference property class undefined")
	ErrListElementsUndefined     = errors.New("list property elements undefined")
	ErrListOfListsUnsupported    = errors.New("lists of lists are not supported")
)

// DefinitionError locates one schema defect.
type DefinitionError struct {
	Err      error
	Class    string
	Property string
	Detail   string
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	if e.Class != "" {
		fmt.Fprintf(&b, "class %q: ", e.Class)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, "property %q: ", e.Property)
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// ParseError aggregates every defect found in one parsing phase.
type ParseError struct {
	Errors []error
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 1 {
		return "parse schema: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("parse schema: %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *ParseError) Unwrap() []error { return e.Errors }

// phase collects the errors of one parsing pass.
type phase struct {
	errs []error
}

func (p *phase) add(err error, class, property, detail string) {
	p.errs = append(p.errs, &DefinitionError{Err: err, Class: class, Property: property, Detail: detail})
}

func (p *phase) result() error {
	if len(p.errs) == 0 {
		return nil
	}
	return &ParseError{Errors: p.errs}
}
