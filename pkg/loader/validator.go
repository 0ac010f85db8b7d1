package loader

import (
	"sort"

	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/schema"
	"github.com/odvcencio/consonant/pkg/store"
)

// Hook checks a candidate commit before it becomes reachable. A nil
// error accepts the commit.
type Hook interface {
	Validate(c *store.Commit) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(c *store.Commit) error

func (f HookFunc) Validate(c *store.Commit) error { return f(c) }

// Validator is a Loader that bypasses the cache and checks a commit in
// full: metadata, schema, every class and object, and the targets of
// local references.
type Validator struct {
	*Loader
}

// NewValidator creates a validator. A cache passed through opts is
// ignored.
func NewValidator(repo store.Repository, reg register.Register, opts ...Option) *Validator {
	l := New(repo, reg, opts...)
	l.cache = nil
	return &Validator{Loader: l}
}

// Validate reports every defect of commit c in one *AggregateError.
func (v *Validator) Validate(c *store.Commit) error {
	errs := &collector{}
	objects, snap, err := v.loadAll(c, nil, errs)
	if err != nil {
		return err
	}
	if snap == nil {
		return errs.result()
	}

	index := make(map[string]string)
	for _, class := range sortedKeys(objects) {
		for _, obj := range objects[class] {
			if first, ok := index[obj.UUID]; ok {
				errs.add(&Error{Err: ErrObjectUUIDDuplicate, Commit: c.SHA, Class: class, Object: obj.UUID, Detail: "also in class " + first})
				continue
			}
			index[obj.UUID] = class
		}
	}

	for _, class := range sortedKeys(objects) {
		def, _ := snap.schema.Class(class)
		for _, obj := range objects[class] {
			for _, name := range obj.PropertyNames() {
				pdef, ok := def.Property(name)
				if !ok {
					continue
				}
				base := Error{Commit: c.SHA, Class: class, Object: obj.UUID, Property: name}
				checkReferences(errs, base, snap.metadata.Schema, pdef, obj.Properties[name].Value, index)
			}
		}
	}
	return errs.result()
}

func checkReferences(errs *collector, base Error, schemaName string, def *schema.PropertyDefinition, v store.Value, index map[string]string) {
	check := func(e Error, ref store.Reference) {
		if !ref.Local() {
			return
		}
		target, ok := index[ref.UUID]
		if !ok {
			e.Err = ErrReferenceTargetNotFound
			e.Detail = ref.UUID
			errs.add(&e)
			return
		}
		if def.Class == "" || (def.Schema != "" && def.Schema != schemaName) {
			return
		}
		if target != def.Class {
			e.Err = ErrReferenceClassMismatch
			e.Detail = "expected " + def.Class + ", found " + target
			errs.add(&e)
		}
	}

	switch val := v.(type) {
	case store.ReferenceValue:
		check(base, val.Reference)
	case store.ListValue:
		if def.Elements == nil || def.Elements.Kind != schema.KindReference {
			return
		}
		def = def.Elements
		for i, elem := range val {
			if ref, ok := elem.(store.ReferenceValue); ok {
				e := base
				e.InList = true
				e.Index = i
				check(e, ref.Reference)
			}
		}
	}
}

func sortedKeys(m map[string][]*store.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CommitValidator runs a set of hooks and reports all of their defects
// together.
type CommitValidator struct {
	hooks []Hook
}

// NewCommitValidator composes hooks. They run in the order given.
func NewCommitValidator(hooks ...Hook) *CommitValidator {
	return &CommitValidator{hooks: hooks}
}

// Validate runs every hook against c.
func (cv *CommitValidator) Validate(c *store.Commit) error {
	errs := &collector{}
	for _, h := range cv.hooks {
		errs.merge(h.Validate(c))
	}
	return errs.result()
}
