// Package loader reads the contents of a store commit: its metadata, its
// schema, and its classes and objects decoded and checked against the
// schema. Defects are collected and reported together.
package loader

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/expressions"
	"github.com/odvcencio/consonant/pkg/metrics"
	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/schema"
	"github.com/odvcencio/consonant/pkg/store"
)

// PropertiesFile is the per-object properties document.
const PropertiesFile = "properties.yaml"

// RawDir is the per-object directory holding raw property payloads.
const RawDir = "raw"

// Loader decodes commits of a store. It holds no per-commit state and is
// safe for concurrent use.
type Loader struct {
	repo     store.Repository
	register register.Register
	fetch    func(locator string) ([]byte, error)
	cache    store.Cache
	logger   zerolog.Logger
	metrics  *metrics.Collector

	// schemas caches parsed schemas by name. Schema names are versioned,
	// so a name always denotes the same document.
	schemas sync.Map
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache enables the object and raw data cache.
func WithCache(c store.Cache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithLogger sets the logger used to report cache failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics records loads and cache lookups on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithFetcher replaces the function used to read schema documents.
func WithFetcher(fetch func(locator string) ([]byte, error)) Option {
	return func(l *Loader) { l.fetch = fetch }
}

// New creates a loader reading from repo and resolving schemas through
// reg.
func New(repo store.Repository, reg register.Register, opts ...Option) *Loader {
	l := &Loader{
		repo:     repo,
		register: reg,
		fetch:    register.Fetch,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Repository returns the repository the loader reads from.
func (l *Loader) Repository() store.Repository { return l.repo }

// Metadata is the content of a commit's consonant.yaml.
type Metadata struct {
	Name     string
	Schema   string
	Services map[string]string
}

func (l *Loader) root(c *store.Commit) (*store.Tree, error) {
	root, err := l.repo.ReadTree(c.Tree)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", store.ShortSHA(c.SHA), err)
	}
	return root, nil
}

// Metadata reads and validates the commit's metadata.
func (l *Loader) Metadata(c *store.Commit) (*Metadata, error) {
	root, err := l.root(c)
	if err != nil {
		return nil, err
	}
	errs := &collector{}
	md, err := l.metadata(c, root, errs)
	if err != nil {
		return nil, err
	}
	if err := errs.result(); err != nil {
		return nil, err
	}
	return md, nil
}

// Name returns the store name recorded in the commit.
func (l *Loader) Name(c *store.Commit) (string, error) {
	md, err := l.Metadata(c)
	if err != nil {
		return "", err
	}
	return md.Name, nil
}

// Services returns the service aliases recorded in the commit.
func (l *Loader) Services(c *store.Commit) (map[string]string, error) {
	md, err := l.Metadata(c)
	if err != nil {
		return nil, err
	}
	return md.Services, nil
}

// Schema returns the schema the commit declares.
func (l *Loader) Schema(c *store.Commit) (*schema.Schema, error) {
	md, err := l.Metadata(c)
	if err != nil {
		return nil, err
	}
	return l.loadSchema(md.Schema)
}

func (l *Loader) metadata(c *store.Commit, root *store.Tree, errs *collector) (*Metadata, error) {
	fail := func(kind error, detail string) {
		errs.add(&Error{Err: kind, Commit: c.SHA, Detail: detail})
	}

	entry, ok := root.Entry(store.MetadataFile)
	if !ok || !entry.Mode.IsBlob() {
		fail(ErrMetadataNotFound, "")
		return nil, nil
	}
	data, err := l.repo.ReadBlob(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", store.MetadataFile, err)
	}
	doc, err := document.DecodeYAML(data)
	if err != nil {
		fail(ErrMetadataNotDecodable, err.Error())
		return nil, nil
	}
	fields, ok := document.StringMap(doc)
	if !ok {
		fail(ErrMetadataNotADictionary, document.TypeName(doc))
		return nil, nil
	}

	md := &Metadata{Services: map[string]string{}}
	failed := false

	switch raw, ok := fields["name"]; {
	case !ok:
		fail(ErrNameUndefined, "")
		failed = true
	default:
		name, isString := raw.(string)
		switch {
		case !isString:
			fail(ErrNameNotAString, document.TypeName(raw))
			failed = true
		case !expressions.ValidStoreName(name):
			fail(ErrNameInvalid, name)
			failed = true
		}
		md.Name = name
	}

	switch raw, ok := fields["schema"]; {
	case !ok:
		fail(ErrSchemaUndefined, "")
		failed = true
	default:
		name, isString := raw.(string)
		switch {
		case !isString:
			fail(ErrSchemaNotAString, document.TypeName(raw))
			failed = true
		case !expressions.ValidSchemaName(name):
			fail(ErrSchemaNameInvalid, name)
			failed = true
		}
		md.Schema = name
	}

	if raw, ok := fields["services"]; ok && raw != nil {
		entries, isMap := document.Mapping(raw)
		if !isMap {
			fail(ErrServicesNotADictionary, document.TypeName(raw))
			failed = true
		}
		for _, e := range entries {
			alias, isString := e.StringKey()
			if !isString || !expressions.ValidServiceName(alias) {
				fail(ErrServiceNameInvalid, fmt.Sprint(e.Key))
				failed = true
				continue
			}
			url, isString := e.Value.(string)
			if !isString {
				fail(ErrServiceURLNotAString, fmt.Sprintf("service %s: %s", alias, document.TypeName(e.Value)))
				failed = true
				continue
			}
			md.Services[alias] = url
		}
	}

	if failed {
		return nil, nil
	}
	return md, nil
}

// SchemaByName resolves, fetches and parses a schema through the
// register.
func (l *Loader) SchemaByName(name string) (*schema.Schema, error) {
	return l.loadSchema(name)
}

func (l *Loader) loadSchema(name string) (*schema.Schema, error) {
	if s, ok := l.schemas.Load(name); ok {
		return s.(*schema.Schema), nil
	}
	if l.register == nil {
		return nil, fmt.Errorf("load schema %s: %w: no register configured", name, ErrSchemaUnavailable)
	}
	loc, err := l.register.SchemaURL(name)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w: %w", name, ErrSchemaUnavailable, err)
	}
	data, err := l.fetch(loc)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w: %w", name, ErrSchemaUnavailable, err)
	}
	s, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w: %w", name, ErrSchemaUnavailable, err)
	}
	if s.Name != name {
		return nil, fmt.Errorf("load schema %s: %w: document at %s declares %s", name, ErrSchemaUnavailable, loc, s.Name)
	}
	actual, _ := l.schemas.LoadOrStore(name, s)
	return actual.(*schema.Schema), nil
}

// classTree is a class directory and its well-formed object entries.
type classTree struct {
	class   *store.ObjectClass
	objects []store.TreeEntry
}

// Classes lists the classes present in the commit with the objects filed
// under each.
func (l *Loader) Classes(c *store.Commit) ([]*store.ObjectClass, error) {
	root, err := l.root(c)
	if err != nil {
		return nil, err
	}
	errs := &collector{}
	trees, err := l.classes(c, root, errs)
	if err != nil {
		return nil, err
	}
	if err := errs.result(); err != nil {
		return nil, err
	}
	out := make([]*store.ObjectClass, len(trees))
	for i, ct := range trees {
		out[i] = ct.class
	}
	return out, nil
}

func (l *Loader) classes(c *store.Commit, root *store.Tree, errs *collector) ([]*classTree, error) {
	var out []*classTree
	for _, entry := range root.Entries {
		if entry.Name == store.MetadataFile {
			continue
		}
		ct, err := l.readClass(c, entry, errs)
		if err != nil {
			return nil, err
		}
		if ct != nil {
			out = append(out, ct)
		}
	}
	return out, nil
}

func (l *Loader) readClass(c *store.Commit, entry store.TreeEntry, errs *collector) (*classTree, error) {
	if !entry.Mode.IsDir() {
		errs.add(&Error{Err: ErrClassNotADirectory, Commit: c.SHA, Class: entry.Name, Detail: "mode " + entry.Mode.String()})
		return nil, nil
	}
	if !expressions.ValidClassName(entry.Name) {
		errs.add(&Error{Err: ErrClassNameInvalid, Commit: c.SHA, Class: entry.Name})
		return nil, nil
	}
	tree, err := l.repo.ReadTree(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("read class %s: %w", entry.Name, err)
	}

	ct := &classTree{class: &store.ObjectClass{Name: entry.Name}}
	for _, obj := range tree.Entries {
		if !obj.Mode.IsDir() {
			errs.add(&Error{Err: ErrObjectNotADirectory, Commit: c.SHA, Class: entry.Name, Object: obj.Name})
			continue
		}
		if !expressions.ValidObjectUUID(obj.Name) {
			errs.add(&Error{Err: ErrObjectUUIDInvalid, Commit: c.SHA, Class: entry.Name, Object: obj.Name})
			continue
		}
		ct.objects = append(ct.objects, obj)
		ct.class.Objects = append(ct.class.Objects, store.Reference{UUID: obj.Name})
	}
	return ct, nil
}

// Objects loads every object of the commit, keyed by class name. Each
// class's objects are ordered by hash.
func (l *Loader) Objects(c *store.Commit) (map[string][]*store.Object, error) {
	errs := &collector{}
	objects, _, err := l.loadAll(c, l.cache, errs)
	if err != nil {
		return nil, err
	}
	if err := errs.result(); err != nil {
		return nil, err
	}
	return objects, nil
}

// loadAll decodes the whole commit. Defects go to errs; the returned
// error is reserved for collaborator failures.
func (l *Loader) loadAll(c *store.Commit, cache store.Cache, errs *collector) (map[string][]*store.Object, *snapshot, error) {
	snap, err := l.snapshot(c, errs)
	if err != nil || snap == nil {
		return nil, snap, err
	}
	trees, err := l.classes(c, snap.root, errs)
	if err != nil {
		return nil, nil, err
	}
	out := make(map[string][]*store.Object, len(trees))
	for _, ct := range trees {
		def, ok := snap.schema.Class(ct.class.Name)
		if !ok {
			errs.add(&Error{Err: ErrClassUnknown, Commit: c.SHA, Class: ct.class.Name, Detail: "schema " + snap.schema.Name})
			continue
		}
		objs := make([]*store.Object, 0, len(ct.objects))
		for _, entry := range ct.objects {
			obj, err := l.loadObject(c, snap.schema.Name, ct.class, def, entry, cache, errs)
			if err != nil {
				return nil, nil, err
			}
			objs = append(objs, obj)
		}
		store.SortObjects(objs)
		out[ct.class.Name] = objs
	}
	return out, snap, nil
}

// snapshot is a commit's root tree together with its decoded metadata
// and schema.
type snapshot struct {
	root     *store.Tree
	metadata *Metadata
	schema   *schema.Schema
}

// snapshot returns nil without an error when the metadata is defective;
// the defects are in errs.
func (l *Loader) snapshot(c *store.Commit, errs *collector) (*snapshot, error) {
	root, err := l.root(c)
	if err != nil {
		return nil, err
	}
	md, err := l.metadata(c, root, errs)
	if err != nil || md == nil {
		return nil, err
	}
	s, err := l.loadSchema(md.Schema)
	if err != nil {
		return nil, err
	}
	return &snapshot{root: root, metadata: md, schema: s}, nil
}

// ClassObjects loads the objects of one class, ordered by hash. A class
// the schema defines but the commit has no objects of yields an empty
// list.
func (l *Loader) ClassObjects(c *store.Commit, class string) ([]*store.Object, error) {
	errs := &collector{}
	snap, err := l.snapshot(c, errs)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.result()
	}
	def, ok := snap.schema.Class(class)
	if !ok {
		return nil, &Error{Err: ErrClassUnknown, Commit: c.SHA, Class: class, Detail: "schema " + snap.schema.Name}
	}
	entry, ok := snap.root.Entry(class)
	if !ok {
		return []*store.Object{}, nil
	}
	ct, err := l.readClass(c, entry, errs)
	if err != nil {
		return nil, err
	}
	var objs []*store.Object
	if ct != nil {
		objs = make([]*store.Object, 0, len(ct.objects))
		for _, e := range ct.objects {
			obj, err := l.loadObject(c, snap.schema.Name, ct.class, def, e, l.cache, errs)
			if err != nil {
				return nil, err
			}
			objs = append(objs, obj)
		}
	}
	if err := errs.result(); err != nil {
		return nil, err
	}
	store.SortObjects(objs)
	return objs, nil
}

// Object loads the object with the given uuid. When class is empty every
// class is searched.
func (l *Loader) Object(c *store.Commit, uuid, class string) (*store.Object, error) {
	errs := &collector{}
	snap, err := l.snapshot(c, errs)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.result()
	}

	var candidates []store.TreeEntry
	if class != "" {
		if e, ok := snap.root.Entry(class); ok {
			candidates = append(candidates, e)
		}
	} else {
		for _, e := range snap.root.Entries {
			if e.Name != store.MetadataFile && e.Mode.IsDir() && expressions.ValidClassName(e.Name) {
				candidates = append(candidates, e)
			}
		}
	}

	for _, entry := range candidates {
		ct, err := l.readClass(c, entry, &collector{})
		if err != nil {
			return nil, err
		}
		if ct == nil {
			continue
		}
		for _, objEntry := range ct.objects {
			if objEntry.Name != uuid {
				continue
			}
			def, ok := snap.schema.Class(ct.class.Name)
			if !ok {
				return nil, &Error{Err: ErrClassUnknown, Commit: c.SHA, Class: ct.class.Name, Detail: "schema " + snap.schema.Name}
			}
			obj, err := l.loadObject(c, snap.schema.Name, ct.class, def, objEntry, l.cache, errs)
			if err != nil {
				return nil, err
			}
			if err := errs.result(); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}

	detail := "not in any class"
	if class != "" {
		detail = "not in class " + class
	}
	return nil, &Error{Err: ErrObjectNotFound, Commit: c.SHA, Class: class, Object: uuid, Detail: detail}
}

// RawPropertyData returns the payload of a raw property of obj.
func (l *Loader) RawPropertyData(c *store.Commit, obj *store.Object, property string) ([]byte, error) {
	base := Error{Commit: c.SHA, Object: obj.UUID, Property: property}
	if obj.Class != nil {
		base.Class = obj.Class.Name
	}
	p, ok := obj.Property(property)
	if !ok {
		e := base
		e.Err = ErrPropertyNotSet
		return nil, &e
	}
	raw, ok := p.Value.(store.RawValue)
	if !ok {
		e := base
		e.Err = ErrPropertyNotRaw
		e.Detail = p.Value.Kind().String()
		return nil, &e
	}

	id := raw.Entry.ID
	if l.cache != nil {
		data, found, err := l.cache.ReadRawPropertyData(id)
		switch {
		case err != nil:
			l.logger.Warn().Err(err).Str("blob", id).Msg("raw data cache read failed")
		case found:
			l.metrics.RecordCache("raw", true)
			return data, nil
		default:
			l.metrics.RecordCache("raw", false)
		}
	}

	data, err := l.repo.ReadBlob(id)
	if err != nil {
		return nil, fmt.Errorf("read raw property %s of %s: %w", property, obj.UUID, err)
	}
	if l.cache != nil {
		if err := l.cache.WriteRawPropertyData(id, data); err != nil {
			l.logger.Warn().Err(err).Str("blob", id).Msg("raw data cache write failed")
		}
	}
	return data, nil
}

// IsDefect reports whether err describes defective store content rather
// than a failing collaborator.
func IsDefect(err error) bool {
	var agg *AggregateError
	var e *Error
	return errors.As(err, &agg) || errors.As(err, &e) || errors.Is(err, ErrSchemaUnavailable)
}
