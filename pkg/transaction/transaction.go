// Package transaction models store transactions, ordered sequences of
// actions bounded by a begin and a commit, and reads them from and writes
// them to their multipart wire form.
package transaction

import (
	"fmt"
)

// Kind identifies an action variant.
type Kind int

const (
	KindBegin Kind = iota + 1
	KindCommit
	KindCreate
	KindUpdate
	KindDelete
	KindUpdateRawProperty
	KindUnsetRawProperty
)

var kindNames = map[Kind]string{
	KindBegin:             "begin",
	KindCommit:            "commit",
	KindCreate:            "create",
	KindUpdate:            "update",
	KindDelete:            "delete",
	KindUpdateRawProperty: "update-raw-property",
	KindUnsetRawProperty:  "unset-raw-property",
}

// String returns the wire name of the action kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

func parseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Action is one step of a transaction. The set of implementations is
// closed.
type Action interface {
	Kind() Kind
	// ActionID returns the id the action was given, or "".
	ActionID() string
	isAction()
}

// ObjectRef names the subject of a mutating action: either an existing
// object by UUID or the object produced by an earlier action. Exactly one
// field is set.
type ObjectRef struct {
	UUID   string
	Action string
}

func (r ObjectRef) String() string {
	if r.Action != "" {
		return "action " + r.Action
	}
	return r.UUID
}

// Begin opens a transaction on a source commit.
type Begin struct {
	ID     string
	Source string
}

// Commit closes a transaction and describes the commit to create.
type Commit struct {
	ID            string
	Target        string
	Author        string
	AuthorDate    string
	Committer     string
	CommitterDate string
	Message       string
}

// Create adds a new object of Class. Property values are decoded document
// values; a mapping with an "action" key refers to the object of an
// earlier action.
type Create struct {
	ID         string
	Class      string
	Properties map[string]any
}

// Update changes properties of an object. A nil value removes the
// property.
type Update struct {
	ID         string
	Object     ObjectRef
	Properties map[string]any
}

// Delete removes an object.
type Delete struct {
	ID     string
	Object ObjectRef
}

// UpdateRawProperty sets the payload and content type of a raw property.
type UpdateRawProperty struct {
	ID          string
	Object      ObjectRef
	Property    string
	ContentType string
	Data        []byte
}

// UnsetRawProperty removes a raw property.
type UnsetRawProperty struct {
	ID       string
	Object   ObjectRef
	Property string
}

func (*Begin) Kind() Kind             { return KindBegin }
func (*Commit) Kind() Kind            { return KindCommit }
func (*Create) Kind() Kind            { return KindCreate }
func (*Update) Kind() Kind            { return KindUpdate }
func (*Delete) Kind() Kind            { return KindDelete }
func (*UpdateRawProperty) Kind() Kind { return KindUpdateRawProperty }
func (*UnsetRawProperty) Kind() Kind  { return KindUnsetRawProperty }

func (a *Begin) ActionID() string             { return a.ID }
func (a *Commit) ActionID() string            { return a.ID }
func (a *Create) ActionID() string            { return a.ID }
func (a *Update) ActionID() string            { return a.ID }
func (a *Delete) ActionID() string            { return a.ID }
func (a *UpdateRawProperty) ActionID() string { return a.ID }
func (a *UnsetRawProperty) ActionID() string  { return a.ID }

func (*Begin) isAction()             {}
func (*Commit) isAction()            {}
func (*Create) isAction()            {}
func (*Update) isAction()            {}
func (*Delete) isAction()            {}
func (*UpdateRawProperty) isAction() {}
func (*UnsetRawProperty) isAction()  {}

// Target returns the subject of a mutating action other than Create.
func Target(a Action) (ObjectRef, bool) {
	switch act := a.(type) {
	case *Update:
		return act.Object, true
	case *Delete:
		return act.Object, true
	case *UpdateRawProperty:
		return act.Object, true
	case *UnsetRawProperty:
		return act.Object, true
	}
	return ObjectRef{}, false
}

// Transaction is an ordered list of actions. The first is a *Begin, the
// last a *Commit, and all others mutate objects.
type Transaction struct {
	Actions []Action
}

// New builds a transaction from actions, checking their order.
func New(actions []Action) (*Transaction, error) {
	if len(actions) < 2 {
		return nil, fmt.Errorf("%w: %d actions", ErrTooFewActions, len(actions))
	}
	if _, ok := actions[0].(*Begin); !ok {
		return nil, fmt.Errorf("%w: got %s", ErrFirstActionNotBegin, actions[0].Kind())
	}
	last := actions[len(actions)-1]
	if _, ok := last.(*Commit); !ok {
		return nil, fmt.Errorf("%w: got %s", ErrLastActionNotCommit, last.Kind())
	}
	seen := make(map[string]bool, len(actions))
	for i, a := range actions {
		if i > 0 && i < len(actions)-1 {
			switch a.Kind() {
			case KindBegin, KindCommit:
				return nil, fmt.Errorf("%w: %s at position %d", ErrActionMisplaced, a.Kind(), i)
			}
		}
		if id := a.ActionID(); id != "" {
			if seen[id] {
				return nil, fmt.Errorf("%w: %q", ErrActionIDDuplicate, id)
			}
			seen[id] = true
		}
	}
	return &Transaction{Actions: actions}, nil
}

// Begin returns the opening action.
func (t *Transaction) Begin() *Begin { return t.Actions[0].(*Begin) }

// Commit returns the closing action.
func (t *Transaction) Commit() *Commit { return t.Actions[len(t.Actions)-1].(*Commit) }

// Mutations returns the actions between begin and commit.
func (t *Transaction) Mutations() []Action { return t.Actions[1 : len(t.Actions)-1] }
