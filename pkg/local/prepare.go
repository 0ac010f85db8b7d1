package local

import (
	"errors"
	"fmt"
	"sort"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/loader"
	"github.com/odvcencio/consonant/pkg/schema"
	"github.com/odvcencio/consonant/pkg/store"
	"github.com/odvcencio/consonant/pkg/transaction"
)

// preparation carries the state of one Prepare call. root is always
// written to the repository between actions.
type preparation struct {
	s      *Store
	source *store.Commit
	schema *schema.Schema
	root   *store.Tree

	// ids maps the id of every mutating action to its index.
	ids map[string]int
	// results holds the object each applied action produced, nil for
	// deletes, keyed by action id.
	results map[string]*store.Object
}

// location is where an object lives in the current root tree.
type location struct {
	class string
	tree  *store.Tree
	entry store.TreeEntry
}

// Prepare applies the mutating actions of tx to the tree of its source
// commit and writes a candidate commit on top of the source. No ref is
// changed. The first defect aborts preparation with an *ActionError.
func (s *Store) Prepare(tx *transaction.Transaction) (*store.Commit, error) {
	begin := tx.Begin()
	sha, err := s.repo.ExpandCommit(begin.Source)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ActionError{ActionID: begin.ID, Kind: transaction.KindBegin, Err: ErrSourceNotFound, Detail: begin.Source}
		}
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	source, err := s.repo.ReadCommit(sha)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	sch, err := s.loader.Schema(source)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	root, err := s.repo.ReadTree(source.Tree)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}

	p := &preparation{
		s:       s,
		source:  source,
		schema:  sch,
		root:    root,
		ids:     make(map[string]int),
		results: make(map[string]*store.Object),
	}
	mutations := tx.Mutations()
	for i, a := range mutations {
		if id := a.ActionID(); id != "" {
			p.ids[id] = i + 1
		}
	}
	for i, a := range mutations {
		obj, err := p.apply(i+1, a)
		if err != nil {
			return nil, err
		}
		if id := a.ActionID(); id != "" {
			p.results[id] = obj
		}
	}

	commit := tx.Commit()
	id, err := s.repo.WriteCommit(&store.CommitRequest{
		Tree:          p.root.ID,
		Parents:       []string{source.SHA},
		Author:        commit.Author,
		AuthorDate:    commit.AuthorDate,
		Committer:     commit.Committer,
		CommitterDate: commit.CommitterDate,
		Message:       commit.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	candidate, err := s.repo.ReadCommit(id)
	if err != nil {
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}
	s.logger.Debug().
		Str("commit", candidate.SHA).
		Str("source", source.SHA).
		Int("actions", len(mutations)).
		Msg("transaction prepared")
	return candidate, nil
}

func (p *preparation) fail(index int, a transaction.Action, property string, kind error, detail string) error {
	return &ActionError{
		Index:    index,
		ActionID: a.ActionID(),
		Kind:     a.Kind(),
		Property: property,
		Err:      kind,
		Detail:   detail,
	}
}

func (p *preparation) apply(index int, a transaction.Action) (*store.Object, error) {
	switch act := a.(type) {
	case *transaction.Create:
		return p.create(index, act)
	case *transaction.Update:
		return p.update(index, act)
	case *transaction.Delete:
		return nil, p.delete(index, act)
	case *transaction.UpdateRawProperty:
		return p.updateRawProperty(index, act)
	case *transaction.UnsetRawProperty:
		return p.unsetRawProperty(index, act)
	default:
		panic(fmt.Sprintf("local: unhandled action %T", a))
	}
}

func (p *preparation) create(index int, a *transaction.Create) (*store.Object, error) {
	def, ok := p.schema.Class(a.Class)
	if !ok {
		return nil, p.fail(index, a, "", ErrActionClassUnknown, a.Class)
	}
	props, err := p.properties(index, a, def, a.Properties)
	if err != nil {
		return nil, err
	}
	for name, v := range props {
		if v == nil {
			delete(props, name)
		}
	}

	objTree, err := p.writeProperties(nil, props)
	if err != nil {
		return nil, err
	}
	entry, err := p.putObject(a.Class, p.s.newUUID(), objTree)
	if err != nil {
		return nil, err
	}
	return p.reload(a.Class, entry)
}

func (p *preparation) update(index int, a *transaction.Update) (*store.Object, error) {
	loc, def, err := p.target(index, a, a.Object)
	if err != nil {
		return nil, err
	}
	changes, err := p.properties(index, a, def, a.Properties)
	if err != nil {
		return nil, err
	}
	objTree, current, err := p.readObject(index, a, loc)
	if err != nil {
		return nil, err
	}
	for name, v := range changes {
		if v == nil {
			delete(current, name)
		} else {
			current[name] = v
		}
	}
	if objTree, err = p.writeProperties(objTree, current); err != nil {
		return nil, err
	}
	entry, err := p.putObject(loc.class, loc.entry.Name, objTree)
	if err != nil {
		return nil, err
	}
	return p.reload(loc.class, entry)
}

func (p *preparation) delete(index int, a *transaction.Delete) error {
	loc, _, err := p.target(index, a, a.Object)
	if err != nil {
		return err
	}
	classTree := loc.tree.Without(loc.entry.Name)
	if classTree.Len() == 0 {
		return p.setRoot(p.root.Without(loc.class))
	}
	id, err := store.WriteTree(p.s.repo, classTree)
	if err != nil {
		return fmt.Errorf("write class %s: %w", loc.class, err)
	}
	return p.setRoot(p.root.With(store.TreeEntry{Name: loc.class, Mode: store.ModeTree, ID: id}))
}

func (p *preparation) updateRawProperty(index int, a *transaction.UpdateRawProperty) (*store.Object, error) {
	loc, err := p.rawTarget(index, a, a.Object, a.Property)
	if err != nil {
		return nil, err
	}
	objTree, current, err := p.readObject(index, a, loc)
	if err != nil {
		return nil, err
	}
	rawTree, err := p.rawTree(objTree)
	if err != nil {
		return nil, err
	}

	blob, err := p.s.repo.WriteBlob(a.Data)
	if err != nil {
		return nil, fmt.Errorf("write raw property %s: %w", a.Property, err)
	}
	rawTree = rawTree.With(store.TreeEntry{Name: a.Property, Mode: store.ModeBlob, ID: blob})
	rawID, err := store.WriteTree(p.s.repo, rawTree)
	if err != nil {
		return nil, fmt.Errorf("write raw data of %s: %w", loc.entry.Name, err)
	}
	objTree = objTree.With(store.TreeEntry{Name: loader.RawDir, Mode: store.ModeTree, ID: rawID})

	current[a.Property] = a.ContentType
	if objTree, err = p.writeProperties(objTree, current); err != nil {
		return nil, err
	}
	entry, err := p.putObject(loc.class, loc.entry.Name, objTree)
	if err != nil {
		return nil, err
	}
	return p.reload(loc.class, entry)
}

func (p *preparation) unsetRawProperty(index int, a *transaction.UnsetRawProperty) (*store.Object, error) {
	loc, err := p.rawTarget(index, a, a.Object, a.Property)
	if err != nil {
		return nil, err
	}
	objTree, current, err := p.readObject(index, a, loc)
	if err != nil {
		return nil, err
	}
	rawTree, err := p.rawTree(objTree)
	if err != nil {
		return nil, err
	}

	rawTree = rawTree.Without(a.Property)
	if rawTree.Len() == 0 {
		objTree = objTree.Without(loader.RawDir)
	} else {
		rawID, err := store.WriteTree(p.s.repo, rawTree)
		if err != nil {
			return nil, fmt.Errorf("write raw data of %s: %w", loc.entry.Name, err)
		}
		objTree = objTree.With(store.TreeEntry{Name: loader.RawDir, Mode: store.ModeTree, ID: rawID})
	}

	delete(current, a.Property)
	if objTree, err = p.writeProperties(objTree, current); err != nil {
		return nil, err
	}
	entry, err := p.putObject(loc.class, loc.entry.Name, objTree)
	if err != nil {
		return nil, err
	}
	return p.reload(loc.class, entry)
}

// target finds the subject of a mutating action in the current tree.
func (p *preparation) target(index int, a transaction.Action, ref transaction.ObjectRef) (*location, *schema.ClassDefinition, error) {
	uuid := ref.UUID
	if ref.Action != "" {
		obj, err := p.resolveAction(index, a, "", ref.Action)
		if err != nil {
			return nil, nil, err
		}
		uuid = obj.UUID
	}
	loc, err := p.locate(uuid)
	if err != nil {
		return nil, nil, err
	}
	if loc == nil {
		return nil, nil, p.fail(index, a, "", ErrObjectNotFound, ref.String())
	}
	def, ok := p.schema.Class(loc.class)
	if !ok {
		return nil, nil, p.fail(index, a, "", ErrActionClassUnknown, loc.class)
	}
	return loc, def, nil
}

// rawTarget finds the subject of a raw property action and checks that
// property is raw.
func (p *preparation) rawTarget(index int, a transaction.Action, ref transaction.ObjectRef, property string) (*location, error) {
	loc, def, err := p.target(index, a, ref)
	if err != nil {
		return nil, err
	}
	pdef, ok := def.Property(property)
	if !ok {
		return nil, p.fail(index, a, property, ErrActionPropertyUnknown, "class "+loc.class)
	}
	if pdef.Kind != schema.KindRaw {
		return nil, p.fail(index, a, property, ErrActionPropertyNotRaw, pdef.Kind.String())
	}
	return loc, nil
}

// resolveAction returns the object an earlier action produced.
func (p *preparation) resolveAction(index int, a transaction.Action, property, id string) (*store.Object, error) {
	obj, ok := p.results[id]
	if !ok {
		if _, exists := p.ids[id]; exists {
			return nil, p.fail(index, a, property, ErrActionReferencesALaterAction, id)
		}
		return nil, p.fail(index, a, property, ErrActionReferencesANonExistentAction, id)
	}
	if obj == nil {
		return nil, p.fail(index, a, property, ErrObjectNotFound, "action "+id+" produced no object")
	}
	return obj, nil
}

func (p *preparation) locate(uuid string) (*location, error) {
	for _, e := range p.root.Entries {
		if e.Name == store.MetadataFile || !e.Mode.IsDir() {
			continue
		}
		tree, err := p.s.repo.ReadTree(e.ID)
		if err != nil {
			return nil, fmt.Errorf("read class %s: %w", e.Name, err)
		}
		if obj, ok := tree.Entry(uuid); ok && obj.Mode.IsDir() {
			return &location{class: e.Name, tree: tree, entry: obj}, nil
		}
	}
	return nil, nil
}

// properties checks property names against the class and resolves
// action references in the values.
func (p *preparation) properties(index int, a transaction.Action, def *schema.ClassDefinition, props map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(props))
	for _, name := range names {
		pdef, ok := def.Property(name)
		if !ok {
			return nil, p.fail(index, a, name, ErrActionPropertyUnknown, "class "+def.Name)
		}
		if isRaw(pdef) {
			return nil, p.fail(index, a, name, ErrActionPropertyIsRaw, "")
		}
		v, err := p.resolveValue(index, a, name, props[name])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func isRaw(def *schema.PropertyDefinition) bool {
	if def.Kind == schema.KindList && def.Elements != nil {
		return def.Elements.Kind == schema.KindRaw
	}
	return def.Kind == schema.KindRaw
}

// resolveValue replaces {action: id} mappings, alone or in sequences, by
// references to the uuid of the object the action produced.
func (p *preparation) resolveValue(index int, a transaction.Action, property string, v any) (any, error) {
	if seq, ok := document.Sequence(v); ok {
		out := make([]any, len(seq))
		for i, elem := range seq {
			r, err := p.resolveValue(index, a, property, elem)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	m, ok := document.StringMap(v)
	if !ok {
		return v, nil
	}
	raw, ok := m["action"]
	if !ok {
		return v, nil
	}
	id, ok := document.Scalar(raw)
	if !ok {
		return nil, p.fail(index, a, property, ErrActionReferenceInvalid, document.TypeName(raw))
	}
	obj, err := p.resolveAction(index, a, property, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		if k != "action" {
			out[k] = val
		}
	}
	out["uuid"] = obj.UUID
	return out, nil
}

// readObject returns the object's tree and its decoded properties.
func (p *preparation) readObject(index int, a transaction.Action, loc *location) (*store.Tree, map[string]any, error) {
	objTree, err := p.s.repo.ReadTree(loc.entry.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("read object %s: %w", loc.entry.Name, err)
	}
	props := make(map[string]any)
	e, ok := objTree.Entry(loader.PropertiesFile)
	if !ok {
		return objTree, props, nil
	}
	data, err := p.s.repo.ReadBlob(e.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("read properties of %s: %w", loc.entry.Name, err)
	}
	doc, err := document.DecodeYAML(data)
	if err != nil {
		return nil, nil, p.fail(index, a, "", ErrObjectNotDecodable, err.Error())
	}
	m, ok := document.StringMap(doc)
	if !ok {
		return nil, nil, p.fail(index, a, "", ErrObjectNotDecodable, document.TypeName(doc))
	}
	for k, v := range m {
		props[k] = v
	}
	return objTree, props, nil
}

func (p *preparation) rawTree(objTree *store.Tree) (*store.Tree, error) {
	e, ok := objTree.Entry(loader.RawDir)
	if !ok || !e.Mode.IsDir() {
		return nil, nil
	}
	t, err := p.s.repo.ReadTree(e.ID)
	if err != nil {
		return nil, fmt.Errorf("read raw data: %w", err)
	}
	return t, nil
}

// writeProperties stores props as the object's properties.yaml and
// returns the object tree with it.
func (p *preparation) writeProperties(objTree *store.Tree, props map[string]any) (*store.Tree, error) {
	data, err := document.EncodeYAML(props)
	if err != nil {
		return nil, fmt.Errorf("encode properties: %w", err)
	}
	blob, err := p.s.repo.WriteBlob(data)
	if err != nil {
		return nil, fmt.Errorf("write properties: %w", err)
	}
	return objTree.With(store.TreeEntry{Name: loader.PropertiesFile, Mode: store.ModeBlob, ID: blob}), nil
}

// putObject writes objTree as <class>/<uuid> and rewrites the class and
// root trees along that path only.
func (p *preparation) putObject(class, uuid string, objTree *store.Tree) (store.TreeEntry, error) {
	objID, err := store.WriteTree(p.s.repo, objTree)
	if err != nil {
		return store.TreeEntry{}, fmt.Errorf("write object %s: %w", uuid, err)
	}
	var classTree *store.Tree
	if e, ok := p.root.Entry(class); ok && e.Mode.IsDir() {
		if classTree, err = p.s.repo.ReadTree(e.ID); err != nil {
			return store.TreeEntry{}, fmt.Errorf("read class %s: %w", class, err)
		}
	}
	entry := store.TreeEntry{Name: uuid, Mode: store.ModeTree, ID: objID}
	classID, err := store.WriteTree(p.s.repo, classTree.With(entry))
	if err != nil {
		return store.TreeEntry{}, fmt.Errorf("write class %s: %w", class, err)
	}
	if err := p.setRoot(p.root.With(store.TreeEntry{Name: class, Mode: store.ModeTree, ID: classID})); err != nil {
		return store.TreeEntry{}, err
	}
	return entry, nil
}

func (p *preparation) setRoot(t *store.Tree) error {
	if _, err := store.WriteTree(p.s.repo, t); err != nil {
		return fmt.Errorf("write root tree: %w", err)
	}
	p.root = t
	return nil
}

// reload decodes an object the transaction wrote. Defects are left to
// validation.
func (p *preparation) reload(class string, entry store.TreeEntry) (*store.Object, error) {
	obj, err := p.s.loader.DecodeObject(p.schema, class, entry)
	if err != nil && !loader.IsDefect(err) {
		return nil, err
	}
	return obj, nil
}
