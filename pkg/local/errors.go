package local

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/consonant/pkg/transaction"
)

// Action errors. The preparer stops at the first one.
var (
	ErrSourceNotFound                     = errors.New("source commit not found")
	ErrActionClassUnknown                 = errors.New("class unknown")
	ErrActionPropertyUnknown              = errors.New("property unknown")
	ErrActionPropertyIsRaw                = errors.New("raw property cannot be set by create or update")
	ErrActionPropertyNotRaw               = errors.New("property is not raw")
	ErrActionReferencesALaterAction       = errors.New("action references a later action")
	ErrActionReferencesANonExistentAction = errors.New("action references a non-existent action")
	ErrActionReferenceInvalid             = errors.New("action reference is invalid")
	ErrObjectNotFound                     = errors.New("object not found")
	ErrObjectNotDecodable                 = errors.New("object properties are not decodable")
)

var (
	// ErrValidationFailed rejects a candidate commit. It is joined with
	// the validator's report.
	ErrValidationFailed = errors.New("transaction failed validation")

	// ErrConcurrencyConflict rejects a transaction whose target ref no
	// longer points at its source.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ActionError is the first defect found while preparing a transaction.
type ActionError struct {
	Index    int // position in the transaction, begin is 0
	ActionID string
	Kind     transaction.Kind
	Property string
	Err      error
	Detail   string
}

func (e *ActionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "prepare transaction: action %d (%s", e.Index, e.Kind)
	if e.ActionID != "" {
		fmt.Fprintf(&b, " %q", e.ActionID)
	}
	b.WriteString("): ")
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

func (e *ActionError) Unwrap() error { return e.Err }
