package transaction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"sort"
	"strings"

	"github.com/odvcencio/consonant/pkg/document"
	"github.com/odvcencio/consonant/pkg/expressions"
)

// Supported part content types.
const (
	ContentTypeYAML = "application/x-yaml"
	ContentTypeJSON = "application/json"
)

// Parse reads a transaction from a MIME document: headers naming a
// multipart content type followed by the multipart body. Parsing stops at
// the first defect.
func Parse(input []byte) (*Transaction, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(input))
	if err != nil {
		return nil, &ParseError{Err: ErrNotDecodable, Detail: err.Error()}
	}
	return ParseMultipart(msg.Body, msg.Header.Get("Content-Type"))
}

// ParseReader reads a whole MIME document from r and parses it.
func ParseReader(r io.Reader) (*Transaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read transaction: %w", err)
	}
	return Parse(data)
}

// ParseMultipart reads a transaction from a multipart body whose
// Content-Type header value is contentType.
func ParseMultipart(body io.Reader, contentType string) (*Transaction, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, &ParseError{Err: ErrNotMultipart, Detail: err.Error()}
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, &ParseError{Err: ErrNotMultipart, Detail: mediaType}
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, &ParseError{Err: ErrNotMultipart, Detail: "no boundary"}
	}

	mr := multipart.NewReader(body, boundary)
	var actions []Action
	ids := make(map[string]bool)
	for n := 1; ; n++ {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Part: n, Err: ErrNotMultipart, Detail: err.Error()}
		}
		a, err := parsePart(n, part)
		part.Close()
		if err != nil {
			return nil, err
		}

		switch {
		case n == 1 && a.Kind() != KindBegin:
			return nil, &ParseError{Part: n, Action: a.Kind().String(), Err: ErrFirstActionNotBegin}
		case n > 1 && a.Kind() == KindBegin:
			return nil, &ParseError{Part: n, Action: a.Kind().String(), Err: ErrActionMisplaced}
		case n > 1 && actions[len(actions)-1].Kind() == KindCommit:
			return nil, &ParseError{Part: n, Action: a.Kind().String(), Err: ErrActionMisplaced, Detail: "action after commit"}
		}
		if id := a.ActionID(); id != "" {
			if ids[id] {
				return nil, &ParseError{Part: n, Action: a.Kind().String(), Field: "id", Err: ErrActionIDDuplicate, Detail: id}
			}
			ids[id] = true
		}
		actions = append(actions, a)
	}

	switch {
	case len(actions) == 0:
		return nil, &ParseError{Err: ErrTooFewActions, Detail: "no parts"}
	case actions[len(actions)-1].Kind() != KindCommit:
		return nil, &ParseError{Part: len(actions), Action: actions[len(actions)-1].Kind().String(), Err: ErrLastActionNotCommit}
	}
	return New(actions)
}

func parsePart(n int, part *multipart.Part) (Action, error) {
	header := part.Header.Get("Content-Type")
	if header == "" {
		return nil, &ParseError{Part: n, Err: ErrPartContentTypeUndefined}
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil, &ParseError{Part: n, Err: ErrPartContentTypeUnsupported, Detail: header}
	}

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, &ParseError{Part: n, Err: ErrPartNotDecodable, Detail: err.Error()}
	}

	var doc any
	var text map[string]string
	switch mediaType {
	case ContentTypeYAML:
		doc, err = document.DecodeYAML(data)
		text = document.PlainNumberText(data)
	case ContentTypeJSON:
		doc, err = document.DecodeJSON(data)
	default:
		return nil, &ParseError{Part: n, Err: ErrPartContentTypeUnsupported, Detail: mediaType}
	}
	if err != nil {
		return nil, &ParseError{Part: n, Err: ErrPartNotDecodable, Detail: err.Error()}
	}
	fields, ok := document.StringMap(doc)
	if !ok {
		return nil, &ParseError{Part: n, Err: ErrPartNotADictionary, Detail: document.TypeName(doc)}
	}
	return parseAction(n, fields, text)
}

// parseAction decodes the fields of one part into an action. text holds
// the source spelling of unquoted numbers, when known.
func parseAction(n int, fields map[string]any, text map[string]string) (Action, error) {
	raw, ok := fields["action"]
	if !ok {
		return nil, &ParseError{Part: n, Err: ErrActionUndefined}
	}
	name, _ := raw.(string)
	kind, ok := parseKind(name)
	if !ok {
		return nil, &ParseError{Part: n, Err: ErrActionUnknown, Detail: fmt.Sprint(raw)}
	}

	p := &fieldParser{part: n, action: kind.String(), fields: fields, text: text, used: map[string]bool{"action": true}}
	id, err := p.id()
	if err != nil {
		return nil, err
	}

	var a Action
	switch kind {
	case KindBegin:
		a, err = p.begin(id)
	case KindCommit:
		a, err = p.commit(id)
	case KindCreate:
		a, err = p.create(id)
	case KindUpdate:
		a, err = p.update(id)
	case KindDelete:
		a, err = p.delete(id)
	case KindUpdateRawProperty:
		a, err = p.updateRawProperty(id)
	case KindUnsetRawProperty:
		a, err = p.unsetRawProperty(id)
	default:
		panic(fmt.Sprintf("transaction: unhandled action kind %v", kind))
	}
	if err != nil {
		return nil, err
	}
	if err := p.unknownFields(); err != nil {
		return nil, err
	}
	return a, nil
}

// fieldParser reads the fields of one action, remembering which were
// consumed.
type fieldParser struct {
	part   int
	action string
	fields map[string]any
	text   map[string]string
	used   map[string]bool
}

func (p *fieldParser) fail(field string, kind error, detail string) error {
	return &ParseError{Part: p.part, Action: p.action, Field: field, Err: kind, Detail: detail}
}

func (p *fieldParser) get(field string) (any, bool) {
	p.used[field] = true
	v, ok := p.fields[field]
	return v, ok
}

func (p *fieldParser) id() (string, error) {
	raw, ok := p.get("id")
	if !ok {
		return "", nil
	}
	id, ok := document.Scalar(raw)
	if !ok || id == "" {
		return "", p.fail("id", ErrActionIDInvalid, document.TypeName(raw))
	}
	return id, nil
}

// str reads a mandatory string field.
func (p *fieldParser) str(field string) (string, error) {
	raw, ok := p.get(field)
	if !ok {
		return "", p.fail(field, ErrFieldUndefined, "")
	}
	s, ok := raw.(string)
	if !ok {
		return "", p.fail(field, ErrFieldNotAString, document.TypeName(raw))
	}
	return s, nil
}

// matching reads a mandatory string field that must satisfy valid.
func (p *fieldParser) matching(field string, valid func(string) bool) (string, error) {
	s, err := p.str(field)
	if err != nil {
		return "", err
	}
	if !valid(s) {
		return "", p.fail(field, ErrFieldInvalid, fmt.Sprintf("%q", s))
	}
	return s, nil
}

func (p *fieldParser) object() (ObjectRef, error) {
	raw, ok := p.get("object")
	if !ok {
		return ObjectRef{}, p.fail("object", ErrFieldUndefined, "")
	}
	m, ok := document.StringMap(raw)
	if !ok {
		return ObjectRef{}, p.fail("object", ErrObjectNotADictionary, document.TypeName(raw))
	}
	for _, key := range sortedKeys(m) {
		if key != "uuid" && key != "action" {
			return ObjectRef{}, p.fail("object."+key, ErrFieldUnknown, "")
		}
	}

	rawUUID, hasUUID := m["uuid"]
	rawAction, hasAction := m["action"]
	switch {
	case hasUUID && hasAction:
		return ObjectRef{}, p.fail("object", ErrObjectReferenceAmbiguous, "")
	case !hasUUID && !hasAction:
		return ObjectRef{}, p.fail("object", ErrObjectReferenceMissing, "")
	case hasUUID:
		uuid, ok := rawUUID.(string)
		if !ok || !expressions.ValidObjectUUID(uuid) {
			return ObjectRef{}, p.fail("object.uuid", ErrFieldInvalid, fmt.Sprint(rawUUID))
		}
		return ObjectRef{UUID: uuid}, nil
	default:
		id, ok := document.Scalar(rawAction)
		if !ok || id == "" {
			return ObjectRef{}, p.fail("object.action", ErrActionIDInvalid, document.TypeName(rawAction))
		}
		return ObjectRef{Action: id}, nil
	}
}

func (p *fieldParser) properties() (map[string]any, error) {
	raw, ok := p.get("properties")
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	entries, ok := document.Mapping(raw)
	if !ok {
		return nil, p.fail("properties", ErrPropertiesNotADictionary, document.TypeName(raw))
	}
	props := make(map[string]any, len(entries))
	for _, e := range entries {
		name, ok := e.StringKey()
		if !ok {
			return nil, p.fail("properties", ErrPropertyNameNotAString, fmt.Sprint(e.Key))
		}
		props[name] = e.Value
	}
	return props, nil
}

func (p *fieldParser) unknownFields() error {
	for _, key := range sortedKeys(p.fields) {
		if !p.used[key] {
			return p.fail(key, ErrFieldUnknown, "")
		}
	}
	return nil
}

func (p *fieldParser) begin(id string) (Action, error) {
	raw, ok := p.get("source")
	if !ok {
		return nil, p.fail("source", ErrFieldUndefined, "")
	}
	// Short commit ids such as 0123456 or 12345e7 decode as numbers.
	source, ok := p.text["source"]
	if !ok {
		source, ok = document.Scalar(raw)
	}
	if !ok {
		return nil, p.fail("source", ErrFieldNotAString, document.TypeName(raw))
	}
	if !expressions.ValidCommitSHA(source) {
		return nil, p.fail("source", ErrFieldInvalid, fmt.Sprintf("%q", source))
	}
	return &Begin{ID: id, Source: source}, nil
}

func (p *fieldParser) commit(id string) (Action, error) {
	c := &Commit{ID: id}
	var err error
	if c.Target, err = p.matching("target", func(s string) bool { return strings.TrimSpace(s) != "" }); err != nil {
		return nil, err
	}
	if c.Author, err = p.matching("author", expressions.ValidIdentity); err != nil {
		return nil, err
	}
	if c.AuthorDate, err = p.matching("author-date", expressions.ValidTimestamp); err != nil {
		return nil, err
	}
	if c.Committer, err = p.matching("committer", expressions.ValidIdentity); err != nil {
		return nil, err
	}
	if c.CommitterDate, err = p.matching("committer-date", expressions.ValidTimestamp); err != nil {
		return nil, err
	}
	if c.Message, err = p.str("message"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *fieldParser) create(id string) (Action, error) {
	class, err := p.matching("class", expressions.ValidClassName)
	if err != nil {
		return nil, err
	}
	props, err := p.properties()
	if err != nil {
		return nil, err
	}
	return &Create{ID: id, Class: class, Properties: props}, nil
}

func (p *fieldParser) update(id string) (Action, error) {
	obj, err := p.object()
	if err != nil {
		return nil, err
	}
	props, err := p.properties()
	if err != nil {
		return nil, err
	}
	return &Update{ID: id, Object: obj, Properties: props}, nil
}

func (p *fieldParser) delete(id string) (Action, error) {
	obj, err := p.object()
	if err != nil {
		return nil, err
	}
	return &Delete{ID: id, Object: obj}, nil
}

func (p *fieldParser) updateRawProperty(id string) (Action, error) {
	a := &UpdateRawProperty{ID: id}
	var err error
	if a.Object, err = p.object(); err != nil {
		return nil, err
	}
	if a.Property, err = p.matching("property", expressions.ValidPropertyName); err != nil {
		return nil, err
	}
	if a.ContentType, err = p.matching("content-type", validContentType); err != nil {
		return nil, err
	}
	data, err := p.str("data")
	if err != nil {
		return nil, err
	}

	encoding := ""
	if raw, ok := p.get("encoding"); ok {
		s, isString := raw.(string)
		if !isString {
			return nil, p.fail("encoding", ErrFieldNotAString, document.TypeName(raw))
		}
		encoding = s
	}
	switch encoding {
	case "":
		a.Data = []byte(data)
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, p.fail("data", ErrFieldInvalid, err.Error())
		}
		a.Data = decoded
	default:
		return nil, p.fail("encoding", ErrFieldInvalid, fmt.Sprintf("%q", encoding))
	}
	return a, nil
}

func (p *fieldParser) unsetRawProperty(id string) (Action, error) {
	a := &UnsetRawProperty{ID: id}
	var err error
	if a.Object, err = p.object(); err != nil {
		return nil, err
	}
	if a.Property, err = p.matching("property", expressions.ValidPropertyName); err != nil {
		return nil, err
	}
	return a, nil
}

func validContentType(s string) bool {
	_, _, err := mime.ParseMediaType(s)
	return err == nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
