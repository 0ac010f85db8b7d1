package loader

import (
	"fmt"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/expressions"
	"github.com/odvcencio/consonant/pkg/schema"
	"github.com/odvcencio/consonant/pkg/store"
)

// loadObject decodes the object stored at entry. Properties that fail to
// decode are left out of the object and their defects added to errs. The
// returned error is reserved for collaborator failures. Cached objects are
// keyed by the schema and class they were validated against as well as
// their tree.
func (l *Loader) loadObject(c *store.Commit, schemaName string, class *store.ObjectClass, def *schema.ClassDefinition, entry store.TreeEntry, cache store.Cache, errs *collector) (*store.Object, error) {
	key := objectCacheKey(schemaName, class.Name, entry.ID)
	if cache != nil {
		obj, found, err := cache.ReadObject(entry.Name, key)
		switch {
		case err != nil:
			l.logger.Warn().Err(err).Str("object", entry.Name).Msg("object cache read failed")
		case found:
			l.metrics.RecordCache("object", true)
			obj.Class = class
			return obj, nil
		default:
			l.metrics.RecordCache("object", false)
		}
	}

	tree, err := l.repo.ReadTree(entry.ID)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", entry.Name, err)
	}

	local := &collector{}
	base := Error{Commit: c.SHA, Class: class.Name, Object: entry.Name}
	fail := func(kind error, detail string) {
		e := base
		e.Err = kind
		e.Detail = detail
		local.add(&e)
	}

	var rawTree *store.Tree
	var fields []document.Entry
	for _, e := range tree.Entries {
		switch e.Name {
		case PropertiesFile:
			if !e.Mode.IsBlob() {
				fail(ErrPropertiesNotABlob, "")
				continue
			}
			data, err := l.repo.ReadBlob(e.ID)
			if err != nil {
				return nil, fmt.Errorf("read properties of %s: %w", entry.Name, err)
			}
			doc, err := document.DecodeYAML(data)
			if err != nil {
				fail(ErrPropertiesNotDecodable, err.Error())
				continue
			}
			m, ok := document.Mapping(doc)
			if !ok {
				fail(ErrPropertiesNotADictionary, document.TypeName(doc))
				continue
			}
			fields = m
		case RawDir:
			if !e.Mode.IsDir() {
				fail(ErrObjectEntryInvalid, "raw is not a directory")
				continue
			}
			if rawTree, err = l.repo.ReadTree(e.ID); err != nil {
				return nil, fmt.Errorf("read raw data of %s: %w", entry.Name, err)
			}
		default:
			fail(ErrObjectEntryInvalid, fmt.Sprintf("unexpected entry %q", e.Name))
		}
	}

	props := make([]*store.Property, 0, len(fields))
	set := make(map[string]bool, len(fields))
	for _, field := range fields {
		name, ok := field.StringKey()
		if !ok {
			fail(ErrPropertyNameNotAString, fmt.Sprint(field.Key))
			continue
		}
		set[name] = true
		pdef, ok := def.Property(name)
		if !ok {
			e := base
			e.Err = ErrPropertyUnknown
			e.Property = name
			local.add(&e)
			continue
		}
		d := &decoder{errs: local, base: base, raw: rawTree}
		d.base.Property = name
		v, ok := d.decode(pdef, field.Value)
		if !ok {
			continue
		}
		props = append(props, &store.Property{Name: name, Value: v})
	}

	for _, name := range def.PropertyNames() {
		if pdef := def.Properties[name]; !pdef.Optional && !set[name] {
			e := base
			e.Err = ErrMandatoryPropertyNotSet
			e.Property = name
			local.add(&e)
		}
	}

	obj := store.NewObject(entry.Name, class, entry.ID, props)
	l.metrics.RecordObjectsLoaded(1)

	if cache != nil && local.empty() {
		if err := cache.WriteObject(entry.Name, key, obj); err != nil {
			l.logger.Warn().Err(err).Str("object", entry.Name).Msg("object cache write failed")
		}
	}
	errs.merge(local.result())
	return obj, nil
}

// objectCacheKey is the cache digest of an object tree decoded as a
// class of the named schema.
func objectCacheKey(schemaName, class, treeID string) string {
	return treeID + "@" + schemaName + "/" + class
}

// decoder turns one decoded properties.yaml value into a typed value.
type decoder struct {
	errs *collector
	base Error
	raw  *store.Tree

	inList bool
	index  int
}

func (d *decoder) fail(kind error, detail string) {
	e := d.base
	e.Err = kind
	e.Detail = detail
	e.InList = d.inList
	e.Index = d.index
	d.errs.add(&e)
}

func (d *decoder) mismatch(want string, got any) {
	d.fail(ErrPropertyTypeMismatch, fmt.Sprintf("expected %s, got %s", want, document.TypeName(got)))
}

func (d *decoder) decode(def *schema.PropertyDefinition, v any) (store.Value, bool) {
	switch def.Kind {
	case schema.KindBoolean:
		return d.decodeBoolean(v)
	case schema.KindInt:
		return d.decodeInt(v)
	case schema.KindFloat:
		return d.decodeFloat(v)
	case schema.KindTimestamp:
		return d.decodeTimestamp(v)
	case schema.KindText:
		return d.decodeText(def, v)
	case schema.KindRaw:
		return d.decodeRaw(def, v)
	case schema.KindReference:
		return d.decodeReference(v)
	case schema.KindList:
		return d.decodeList(def, v)
	default:
		panic(fmt.Sprintf("loader: unhandled property kind %v", def.Kind))
	}
}

func (d *decoder) decodeBoolean(v any) (store.Value, bool) {
	b, ok := v.(bool)
	if !ok {
		d.mismatch("boolean", v)
		return nil, false
	}
	return store.BoolValue(b), true
}

func (d *decoder) decodeInt(v any) (store.Value, bool) {
	n, ok := document.Integer(v)
	if !ok {
		d.mismatch("integer", v)
		return nil, false
	}
	return store.IntValue(n), true
}

func (d *decoder) decodeFloat(v any) (store.Value, bool) {
	f, ok := document.Float(v)
	if !ok {
		d.mismatch("float", v)
		return nil, false
	}
	return store.FloatValue(f), true
}

func (d *decoder) decodeTimestamp(v any) (store.Value, bool) {
	s, ok := v.(string)
	if !ok {
		d.mismatch("timestamp string", v)
		return nil, false
	}
	secs, offset, err := store.ParseDate(s)
	if err != nil {
		d.fail(ErrTimestampInvalid, s)
		return nil, false
	}
	return store.TimestampValue{Seconds: secs, Offset: offset}, true
}

func (d *decoder) decodeText(def *schema.PropertyDefinition, v any) (store.Value, bool) {
	s, ok := v.(string)
	if !ok {
		d.mismatch("string", v)
		return nil, false
	}
	if !def.Matches(s) {
		d.fail(ErrPropertyNoMatch, fmt.Sprintf("%q", s))
		return nil, false
	}
	return store.TextValue(s), true
}

func (d *decoder) decodeRaw(def *schema.PropertyDefinition, v any) (store.Value, bool) {
	contentType, ok := v.(string)
	if !ok {
		d.mismatch("content type string", v)
		return nil, false
	}
	if !def.Matches(contentType) {
		d.fail(ErrPropertyNoMatch, fmt.Sprintf("content type %q", contentType))
		return nil, false
	}
	if d.raw == nil {
		d.fail(ErrRawDataNotFound, "object has no raw directory")
		return nil, false
	}
	entry, ok := d.raw.Entry(d.base.Property)
	if !ok || !entry.Mode.IsBlob() {
		d.fail(ErrRawDataNotFound, RawDir+"/"+d.base.Property)
		return nil, false
	}
	return store.RawValue{ContentType: contentType, Entry: entry}, true
}

func (d *decoder) decodeReference(v any) (store.Value, bool) {
	entries, ok := document.Mapping(v)
	if !ok {
		d.fail(ErrReferenceNotADictionary, document.TypeName(v))
		return nil, false
	}
	var ref store.Reference
	hasUUID := false
	valid := true
	for _, e := range entries {
		key, _ := e.StringKey()
		switch key {
		case "uuid":
			hasUUID = true
			s, isString := e.Value.(string)
			if !isString || !expressions.ValidObjectUUID(s) {
				d.fail(ErrReferenceUUIDInvalid, fmt.Sprint(e.Value))
				valid = false
				continue
			}
			ref.UUID = s
		case "ref":
			s, isString := e.Value.(string)
			if !isString {
				d.fail(ErrReferenceAttributeInvalid, "ref is not a string")
				valid = false
				continue
			}
			ref.Ref = s
		case "service":
			s, isString := e.Value.(string)
			if !isString || !expressions.ValidServiceName(s) {
				d.fail(ErrReferenceAttributeInvalid, fmt.Sprintf("service %v is not a valid service name", e.Value))
				valid = false
				continue
			}
			ref.Service = s
		default:
			d.fail(ErrReferenceAttributeInvalid, fmt.Sprintf("unexpected key %v", e.Key))
			valid = false
		}
	}
	if !hasUUID {
		d.fail(ErrReferenceUUIDUndefined, "")
		return nil, false
	}
	if !valid {
		return nil, false
	}
	return store.ReferenceValue{Reference: ref}, true
}

func (d *decoder) decodeList(def *schema.PropertyDefinition, v any) (store.Value, bool) {
	items, ok := document.Sequence(v)
	if !ok {
		d.mismatch("list", v)
		return nil, false
	}
	out := make(store.ListValue, 0, len(items))
	valid := true
	for i, item := range items {
		elem := &decoder{errs: d.errs, base: d.base, raw: d.raw, inList: true, index: i}
		ev, ok := elem.decode(def.Elements, item)
		if !ok {
			valid = false
			continue
		}
		out = append(out, ev)
	}
	if !valid {
		return nil, false
	}
	return out, true
}

// DecodeObject decodes the object tree at entry as an object of class in
// s, outside of any commit and without the cache. When the content only
// has defects the object is returned together with an *AggregateError
// listing them.
func (l *Loader) DecodeObject(s *schema.Schema, class string, entry store.TreeEntry) (*store.Object, error) {
	def, ok := s.Class(class)
	if !ok {
		return nil, &Error{Err: ErrClassUnknown, Class: class, Detail: "schema " + s.Name}
	}
	errs := &collector{}
	obj, err := l.loadObject(&store.Commit{}, s.Name, &store.ObjectClass{Name: class}, def, entry, nil, errs)
	if err != nil {
		return nil, err
	}
	return obj, errs.result()
}
