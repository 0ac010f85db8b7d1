package transaction

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const (
	testSource = "4f1c2a9d6b3e8f7051c2a9d6b3e8f7051c2a9d6b"
	testUUID   = "0d5c6f3a-2c71-4f0e-9a55-1b3e7c9d2f10"
)

const commitPart = `action: commit
target: master
author: Ada <ada@example.com>
author-date: 1700000000 +0100
committer: Ada <ada@example.com>
committer-date: 1700000000 +0100
message: Add a card
`

type part struct {
	contentType string
	body        string
}

func yamlPart(body string) part { return part{contentType: "application/x-yaml", body: body} }

func mimeDocument(parts ...part) []byte {
	var b bytes.Buffer
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: multipart/mixed; boundary=XYZ\r\n\r\n")
	for _, p := range parts {
		b.WriteString("--XYZ\r\n")
		if p.contentType != "" {
			b.WriteString("Content-Type: " + p.contentType + "\r\n")
		}
		b.WriteString("\r\n")
		b.WriteString(p.body)
		b.WriteString("\r\n")
	}
	b.WriteString("--XYZ--\r\n")
	return b.Bytes()
}

func beginPart() part { return yamlPart("action: begin\nsource: " + testSource + "\n") }

func TestParseTransaction(t *testing.T) {
	input := mimeDocument(
		beginPart(),
		yamlPart("action: create\nid: 1\nclass: card\nproperties:\n  title: Hello\n  lane: {uuid: "+testUUID+"}\n"),
		part{contentType: "application/json", body: `{"action": "update", "object": {"action": "1"}, "properties": {"points": 3, "title": null}}`},
		yamlPart("action: delete\nobject: {uuid: "+testUUID+"}\n"),
		yamlPart("action: update-raw-property\nobject: {action: 1}\nproperty: attachment\ncontent-type: text/plain\ndata: aGVsbG8=\nencoding: base64\n"),
		yamlPart("action: unset-raw-property\nobject: {uuid: "+testUUID+"}\nproperty: attachment\n"),
		yamlPart(commitPart),
	)

	tx, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(tx.Actions) != 7 {
		t.Fatalf("got %d actions", len(tx.Actions))
	}
	if got := tx.Begin().Source; got != testSource {
		t.Fatalf("source = %q", got)
	}
	c := tx.Commit()
	if c.Target != "master" || c.AuthorDate != "1700000000 +0100" || c.Message != "Add a card" {
		t.Fatalf("commit = %+v", c)
	}

	create := tx.Actions[1].(*Create)
	if create.ID != "1" || create.Class != "card" || create.Properties["title"] != "Hello" {
		t.Fatalf("create = %+v", create)
	}
	update := tx.Actions[2].(*Update)
	if update.Object.Action != "1" || update.Properties["points"] != int64(3) {
		t.Fatalf("update = %+v", update)
	}
	if v, ok := update.Properties["title"]; !ok || v != nil {
		t.Fatalf("null property not kept as removal: %v %v", v, ok)
	}
	if del := tx.Actions[3].(*Delete); del.Object.UUID != testUUID {
		t.Fatalf("delete = %+v", del)
	}
	raw := tx.Actions[4].(*UpdateRawProperty)
	if string(raw.Data) != "hello" || raw.ContentType != "text/plain" || raw.Object.Action != "1" {
		t.Fatalf("update-raw-property = %+v", raw)
	}
	if unset := tx.Actions[5].(*UnsetRawProperty); unset.Property != "attachment" {
		t.Fatalf("unset-raw-property = %+v", unset)
	}
	if got := len(tx.Mutations()); got != 5 {
		t.Fatalf("mutations = %d", got)
	}
}

func TestParseRawPropertyPlainData(t *testing.T) {
	tx, err := Parse(mimeDocument(
		beginPart(),
		yamlPart("action: update-raw-property\nobject: {uuid: "+testUUID+"}\nproperty: notes\ncontent-type: text/markdown; charset=utf-8\ndata: \"# Notes\"\n"),
		yamlPart(commitPart),
	))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	raw := tx.Actions[1].(*UpdateRawProperty)
	if string(raw.Data) != "# Notes" {
		t.Fatalf("data = %q", raw.Data)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  error
		part  int
		field string
	}{
		{
			name:  "garbage",
			input: []byte("no headers here"),
			want:  ErrNotDecodable,
		},
		{
			name:  "not multipart",
			input: []byte("Content-Type: text/plain\r\n\r\nhello\r\n"),
			want:  ErrNotMultipart,
		},
		{
			name:  "no parts",
			input: mimeDocument(),
			want:  ErrTooFewActions,
		},
		{
			name:  "part without content type",
			input: mimeDocument(part{body: "action: begin\n"}),
			want:  ErrPartContentTypeUndefined,
			part:  1,
		},
		{
			name:  "unsupported part content type",
			input: mimeDocument(part{contentType: "text/plain", body: "action: begin\n"}),
			want:  ErrPartContentTypeUnsupported,
			part:  1,
		},
		{
			name:  "undecodable part",
			input: mimeDocument(yamlPart("action: [begin\n")),
			want:  ErrPartNotDecodable,
			part:  1,
		},
		{
			name:  "part not a dictionary",
			input: mimeDocument(yamlPart("- begin\n")),
			want:  ErrPartNotADictionary,
			part:  1,
		},
		{
			name:  "action undefined",
			input: mimeDocument(yamlPart("source: " + testSource + "\n")),
			want:  ErrActionUndefined,
			part:  1,
		},
		{
			name:  "action unknown",
			input: mimeDocument(yamlPart("action: rename\n")),
			want:  ErrActionUnknown,
			part:  1,
		},
		{
			name:  "first action not begin",
			input: mimeDocument(yamlPart(commitPart)),
			want:  ErrFirstActionNotBegin,
			part:  1,
		},
		{
			name:  "begin only",
			input: mimeDocument(beginPart()),
			want:  ErrLastActionNotCommit,
			part:  1,
		},
		{
			name:  "second begin",
			input: mimeDocument(beginPart(), beginPart(), yamlPart(commitPart)),
			want:  ErrActionMisplaced,
			part:  2,
		},
		{
			name:  "action after commit",
			input: mimeDocument(beginPart(), yamlPart(commitPart), yamlPart("action: delete\nobject: {uuid: "+testUUID+"}\n")),
			want:  ErrActionMisplaced,
			part:  3,
		},
		{
			name: "duplicate id",
			input: mimeDocument(beginPart(),
				yamlPart("action: create\nid: a\nclass: card\n"),
				yamlPart("action: create\nid: a\nclass: card\n"),
				yamlPart(commitPart)),
			want:  ErrActionIDDuplicate,
			part:  3,
			field: "id",
		},
		{
			name:  "source missing",
			input: mimeDocument(yamlPart("action: begin\n")),
			want:  ErrFieldUndefined,
			part:  1,
			field: "source",
		},
		{
			name:  "source invalid",
			input: mimeDocument(yamlPart("action: begin\nsource: HEAD\n")),
			want:  ErrFieldInvalid,
			part:  1,
			field: "source",
		},
		{
			name:  "unknown field",
			input: mimeDocument(yamlPart("action: begin\nsource: " + testSource + "\nbranch: master\n")),
			want:  ErrFieldUnknown,
			part:  1,
			field: "branch",
		},
		{
			name:  "author invalid",
			input: mimeDocument(beginPart(), yamlPart(strings.Replace(commitPart, "Ada <ada@example.com>", "Ada", 1))),
			want:  ErrFieldInvalid,
			part:  2,
			field: "author",
		},
		{
			name:  "message not a string",
			input: mimeDocument(beginPart(), yamlPart(strings.Replace(commitPart, "message: Add a card", "message: [a]", 1))),
			want:  ErrFieldNotAString,
			part:  2,
			field: "message",
		},
		{
			name:  "class invalid",
			input: mimeDocument(beginPart(), yamlPart("action: create\nclass: 1card\n")),
			want:  ErrFieldInvalid,
			part:  2,
			field: "class",
		},
		{
			name:  "properties not a dictionary",
			input: mimeDocument(beginPart(), yamlPart("action: create\nclass: card\nproperties: [title]\n")),
			want:  ErrPropertiesNotADictionary,
			part:  2,
			field: "properties",
		},
		{
			name:  "property name not a string",
			input: mimeDocument(beginPart(), yamlPart("action: create\nclass: card\nproperties: {1: x}\n")),
			want:  ErrPropertyNameNotAString,
			part:  2,
			field: "properties",
		},
		{
			name:  "object missing",
			input: mimeDocument(beginPart(), yamlPart("action: delete\n")),
			want:  ErrFieldUndefined,
			part:  2,
			field: "object",
		},
		{
			name:  "object not a dictionary",
			input: mimeDocument(beginPart(), yamlPart("action: delete\nobject: "+testUUID+"\n")),
			want:  ErrObjectNotADictionary,
			part:  2,
			field: "object",
		},
		{
			name:  "object reference ambiguous",
			input: mimeDocument(beginPart(), yamlPart("action: delete\nobject: {uuid: "+testUUID+", action: a}\n")),
			want:  ErrObjectReferenceAmbiguous,
			part:  2,
			field: "object",
		},
		{
			name:  "object reference missing",
			input: mimeDocument(beginPart(), yamlPart("action: delete\nobject: {}\n")),
			want:  ErrObjectReferenceMissing,
			part:  2,
			field: "object",
		},
		{
			name:  "object uuid invalid",
			input: mimeDocument(beginPart(), yamlPart("action: delete\nobject: {uuid: nope}\n")),
			want:  ErrFieldInvalid,
			part:  2,
			field: "object.uuid",
		},
		{
			name:  "raw data not base64",
			input: mimeDocument(beginPart(), yamlPart("action: update-raw-property\nobject: {uuid: "+testUUID+"}\nproperty: a\ncontent-type: text/plain\ndata: '!!'\nencoding: base64\n")),
			want:  ErrFieldInvalid,
			part:  2,
			field: "data",
		},
		{
			name:  "raw encoding unknown",
			input: mimeDocument(beginPart(), yamlPart("action: update-raw-property\nobject: {uuid: "+testUUID+"}\nproperty: a\ncontent-type: text/plain\ndata: x\nencoding: hex\n")),
			want:  ErrFieldInvalid,
			part:  2,
			field: "encoding",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse error = %v, want %v", err, tt.want)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if pe.Part != tt.part {
				t.Errorf("part = %d, want %d", pe.Part, tt.part)
			}
			if pe.Field != tt.field {
				t.Errorf("field = %q, want %q", pe.Field, tt.field)
			}
		})
	}
}

func TestParseNumericSource(t *testing.T) {
	for _, source := range []string{"1234567", "0123456", "0123489", "12345e7", "1234.5678"} {
		tx, err := Parse(mimeDocument(yamlPart("action: begin\nsource: "+source+"\n"), yamlPart(commitPart)))
		if source == "1234.5678" {
			if !errors.Is(err, ErrFieldInvalid) {
				t.Fatalf("Parse(source: %s) error = %v, want %v", source, err, ErrFieldInvalid)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(source: %s): %v", source, err)
		}
		if got := tx.Begin().Source; got != source {
			t.Fatalf("source = %q, want %q", got, source)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	tx, err := New([]Action{
		&Begin{Source: "1234567"},
		&Create{ID: "new", Class: "card", Properties: map[string]any{"title": "Hi", "tags": []any{"a", "b"}}},
		&Update{Object: ObjectRef{Action: "new"}, Properties: map[string]any{"title": nil}},
		&UpdateRawProperty{Object: ObjectRef{UUID: testUUID}, Property: "attachment", ContentType: "application/octet-stream", Data: []byte{0, 1, 2, 255}},
		&UnsetRawProperty{Object: ObjectRef{UUID: testUUID}, Property: "old"},
		&Delete{Object: ObjectRef{UUID: testUUID}},
		&Commit{Target: "refs/heads/master", Author: "Ada <ada@example.com>", AuthorDate: "1700000000 +0000", Committer: "Ada <ada@example.com>", CommitterDate: "1700000001 -0230", Message: "line one\n\nline two"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := Marshal(tx)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	if len(got.Actions) != len(tx.Actions) {
		t.Fatalf("got %d actions, want %d", len(got.Actions), len(tx.Actions))
	}
	for i := range tx.Actions {
		if got.Actions[i].Kind() != tx.Actions[i].Kind() {
			t.Fatalf("action %d kind = %s, want %s", i, got.Actions[i].Kind(), tx.Actions[i].Kind())
		}
	}
	if got.Begin().Source != "1234567" {
		t.Fatalf("source = %q", got.Begin().Source)
	}
	if c := got.Commit(); c.Message != "line one\n\nline two" || c.CommitterDate != "1700000001 -0230" {
		t.Fatalf("commit = %+v", c)
	}
	if raw := got.Actions[3].(*UpdateRawProperty); !bytes.Equal(raw.Data, []byte{0, 1, 2, 255}) {
		t.Fatalf("raw data = %v", raw.Data)
	}
	update := got.Actions[2].(*Update)
	if v, ok := update.Properties["title"]; !ok || v != nil || update.Object.Action != "new" {
		t.Fatalf("update = %+v", update)
	}
}

func TestNewChecksOrder(t *testing.T) {
	begin := &Begin{Source: testSource}
	commit := &Commit{Target: "master"}
	tests := []struct {
		name    string
		actions []Action
		want    error
	}{
		{"empty", nil, ErrTooFewActions},
		{"no begin", []Action{commit, commit}, ErrFirstActionNotBegin},
		{"no commit", []Action{begin, &Delete{}}, ErrLastActionNotCommit},
		{"nested begin", []Action{begin, begin, commit}, ErrActionMisplaced},
		{"duplicate id", []Action{begin, &Delete{ID: "x"}, &Delete{ID: "x"}, commit}, ErrActionIDDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.actions); !errors.Is(err, tt.want) {
				t.Fatalf("New error = %v, want %v", err, tt.want)
			}
		})
	}
	if _, err := New([]Action{begin, commit}); err != nil {
		t.Fatalf("New(begin, commit): %v", err)
	}
}
