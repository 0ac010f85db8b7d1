package transaction

import (
	"errors"
	"fmt"
	"strings"
)

// Document errors.
var (
	ErrNotDecodable               = errors.New("transaction is not decodable")
	ErrNotMultipart               = errors.New("transaction is not a multipart document")
	ErrPartContentTypeUndefined   = errors.New("part content type undefined")
	ErrPartContentTypeUnsupported = errors.New("part content type unsupported")
	ErrPartNotDecodable           = errors.New("part is not decodable")
	ErrPartNotADictionary         = errors.New("part is not a dictionary")
)

// Action errors.
var (
	ErrActionUndefined          = errors.New("action undefined")
	ErrActionUnknown            = errors.New("action unknown")
	ErrActionIDInvalid          = errors.New("action id is invalid")
	ErrActionIDDuplicate        = errors.New("action id is used twice")
	ErrTooFewActions            = errors.New("transaction needs a begin and a commit action")
	ErrFirstActionNotBegin      = errors.New("first action is not a begin action")
	ErrLastActionNotCommit      = errors.New("last action is not a commit action")
	ErrActionMisplaced          = errors.New("begin and commit actions must enclose the transaction")
	ErrFieldUndefined           = errors.New("field undefined")
	ErrFieldNotAString          = errors.New("field is not a string")
	ErrFieldInvalid             = errors.New("field is invalid")
	ErrFieldUnknown             = errors.New("field unknown")
	ErrPropertiesNotADictionary = errors.New("properties is not a dictionary")
	ErrPropertyNameNotAString   = errors.New("property name is not a string")
	ErrObjectNotADictionary     = errors.New("object reference is not a dictionary")
	ErrObjectReferenceMissing   = errors.New("object reference has neither uuid nor action")
	ErrObjectReferenceAmbiguous = errors.New("object reference has both uuid and action")
)

// ParseError is the first defect found in a transaction document.
type ParseError struct {
	Part   int // 1-based; 0 for the document as a whole
	Action string
	Field  string
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse transaction: ")
	if e.Part > 0 {
		fmt.Fprintf(&b, "part %d: ", e.Part)
	}
	if e.Action != "" {
		fmt.Fprintf(&b, "%s: ", e.Action)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: ", e.Field)
	}
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }
