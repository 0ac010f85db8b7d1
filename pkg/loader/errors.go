package loader

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/consonant/pkg/store"
)

// Metadata errors.
var (
	ErrMetadataNotFound       = errors.New("store metadata not found")
	ErrMetadataNotDecodable   = errors.New("store metadata is not decodable")
	ErrMetadataNotADictionary = errors.New("store metadata is not a dictionary")
	ErrNameUndefined          = errors.New("store name undefined")
	ErrNameNotAString         = errors.New("store name is not a string")
	ErrNameInvalid            = errors.New("store name is invalid")
	ErrSchemaUndefined        = errors.New("store schema undefined")
	ErrSchemaNotAString       = errors.New("store schema is not a string")
	ErrSchemaNameInvalid      = errors.New("store schema name is invalid")
	ErrSchemaUnavailable      = errors.New("store schema unavailable")
	ErrServicesNotADictionary = errors.New("store services is not a dictionary")
	ErrServiceNameInvalid     = errors.New("service name is invalid")
	ErrServiceURLNotAString   = errors.New("service url is not a string")
)

// Structural errors.
var (
	ErrClassNotADirectory       = errors.New("class is not a directory")
	ErrClassNameInvalid         = errors.New("class name is invalid")
	ErrClassUnknown             = errors.New("class is not defined by the schema")
	ErrObjectNotADirectory      = errors.New("object is not a directory")
	ErrObjectUUIDInvalid        = errors.New("object uuid is invalid")
	ErrObjectUUIDDuplicate      = errors.New("object uuid is used by more than one class")
	ErrObjectEntryInvalid       = errors.New("object entry is invalid")
	ErrObjectNotFound           = errors.New("object not found")
	ErrPropertiesNotABlob       = errors.New("object properties is not a file")
	ErrPropertiesNotDecodable   = errors.New("object properties are not decodable")
	ErrPropertiesNotADictionary = errors.New("object properties is not a dictionary")
)

// Property errors.
var (
	ErrPropertyNameNotAString    = errors.New("property name is not a string")
	ErrPropertyUnknown           = errors.New("property is not defined by the class")
	ErrPropertyTypeMismatch      = errors.New("property value has the wrong type")
	ErrPropertyNoMatch           = errors.New("property value matches none of the expressions")
	ErrTimestampInvalid          = errors.New("timestamp is invalid")
	ErrRawDataNotFound           = errors.New("raw property data not found")
	ErrReferenceNotADictionary   = errors.New("reference is not a dictionary")
	ErrReferenceUUIDUndefined    = errors.New("reference uuid undefined")
	ErrReferenceUUIDInvalid      = errors.New("reference uuid is invalid")
	ErrReferenceAttributeInvalid = errors.New("reference attribute is invalid")
	ErrMandatoryPropertyNotSet   = errors.New("mandatory property not set")
	ErrPropertyNotSet            = errors.New("property not set")
	ErrPropertyNotRaw            = errors.New("property is not a raw property")
	ErrReferenceTargetNotFound   = errors.New("referenced object not found")
	ErrReferenceClassMismatch    = errors.New("referenced object has the wrong class")
)

// Error is one defect found while loading a commit, located by commit,
// class, object and property as far as they apply.
type Error struct {
	Err      error
	Commit   string
	Class    string
	Object   string
	Property string

	// InList marks a failure of list element Index rather than of the
	// property as a whole.
	InList bool
	Index  int

	Detail string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Commit != "" {
		fmt.Fprintf(&b, "commit %s: ", store.ShortSHA(e.Commit))
	}
	if e.Class != "" {
		fmt.Fprintf(&b, "class %q: ", e.Class)
	}
	if e.Object != "" {
		fmt.Fprintf(&b, "object %s: ", e.Object)
	}
	if e.Property != "" {
		fmt.Fprintf(&b, "property %q: ", e.Property)
	}
	if e.InList {
		fmt.Fprintf(&b, "element %d: ", e.Index)
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// AggregateError carries every defect found in one load or validation
// pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// Errors flattens err into its individual defects.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		return agg.Errors
	}
	return []error{err}
}

// collector gathers the errors of one pass. The pass ends with a single
// call to result.
type collector struct {
	errs []error
}

func (c *collector) add(e *Error) {
	c.errs = append(c.errs, e)
}

// merge adds err, flattening aggregates.
func (c *collector) merge(err error) {
	if err == nil {
		return
	}
	var agg *AggregateError
	if errors.As(err, &agg) {
		c.errs = append(c.errs, agg.Errors...)
		return
	}
	c.errs = append(c.errs, err)
}

func (c *collector) empty() bool { return len(c.errs) == 0 }

func (c *collector) result() error {
	if len(c.errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: c.errs}
}
