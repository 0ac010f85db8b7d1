package store

import (
	"reflect"
	"testing"
	"time"
)

func TestTreeWithWithoutLeaveOriginal(t *testing.T) {
	base := NewTree([]TreeEntry{
		{Name: "b", Mode: ModeTree, ID: "2"},
		{Name: "a", Mode: ModeBlob, ID: "1"},
	})
	base.ID = "root"

	added := base.With(TreeEntry{Name: "c", Mode: ModeBlob, ID: "3"})
	replaced := base.With(TreeEntry{Name: "a", Mode: ModeBlob, ID: "9"})
	removed := base.Without("b")

	if base.Len() != 2 || base.Entries[0].Name != "a" || base.Entries[0].ID != "1" || base.ID != "root" {
		t.Fatalf("base changed: %+v", base)
	}
	if added.ID != "" || added.Len() != 3 || added.Entries[2].Name != "c" {
		t.Fatalf("added = %+v", added)
	}
	if e, _ := replaced.Entry("a"); e.ID != "9" || replaced.Len() != 2 {
		t.Fatalf("replaced = %+v", replaced)
	}
	if _, ok := removed.Entry("b"); ok || removed.Len() != 1 {
		t.Fatalf("removed = %+v", removed)
	}
}

func TestTreeEntryLookup(t *testing.T) {
	tree := NewTree([]TreeEntry{{Name: "x", Mode: ModeBlob}, {Name: "m", Mode: ModeTree}})
	if e, ok := tree.Entry("m"); !ok || !e.Mode.IsDir() {
		t.Fatalf("Entry(m) = %+v, %v", e, ok)
	}
	if _, ok := tree.Entry("n"); ok {
		t.Fatal("found missing entry")
	}
	var nilTree *Tree
	if _, ok := nilTree.Entry("x"); ok {
		t.Fatal("nil tree has entries")
	}
}

func TestRefAliases(t *testing.T) {
	cases := map[string][]string{
		"refs/heads/master":      {"master", "refs:heads:master"},
		"refs/tags/v1":           {"v1", "refs:tags:v1"},
		"refs/heads/feature/foo": {"feature/foo", "refs:heads:feature:foo"},
		"HEAD":                   {"HEAD"},
	}
	for name, want := range cases {
		if got := RefAliases(name); !reflect.DeepEqual(got, want) {
			t.Errorf("RefAliases(%q) = %v, want %v", name, got, want)
		}
	}

	ref := NewRef(RefBranch, "refs/heads/master", nil)
	for _, s := range []string{"master", "refs:heads:master", "refs/heads/master"} {
		if !ref.Matches(s) {
			t.Errorf("ref does not match %q", s)
		}
	}
	if ref.Matches("main") {
		t.Error("ref matches main")
	}
}

func TestCommitMessageSplit(t *testing.T) {
	c := &Commit{Message: "Add card\n\nCreated from the board.\nSecond line.\n"}
	if c.MessageSubject() != "Add card" {
		t.Fatalf("subject = %q", c.MessageSubject())
	}
	if c.MessageBody() != "Created from the board.\nSecond line." {
		t.Fatalf("body = %q", c.MessageBody())
	}
	single := &Commit{Message: "Only subject"}
	if single.MessageBody() != "" {
		t.Fatalf("body = %q", single.MessageBody())
	}
}

func TestDates(t *testing.T) {
	secs, offset, err := ParseDate("1700000000 -0130")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if secs != 1700000000 || offset != -90 {
		t.Fatalf("ParseDate = %d, %d", secs, offset)
	}
	if got := (TimestampValue{Seconds: secs, Offset: offset}).String(); got != "1700000000 -0130" {
		t.Fatalf("String = %q", got)
	}
	tm, err := DateTime("1700000000 +0200")
	if err != nil {
		t.Fatalf("DateTime: %v", err)
	}
	if got := FormatDate(tm); got != "1700000000 +0200" {
		t.Fatalf("FormatDate = %q", got)
	}
	if got := FormatDate(time.Unix(5, 0).UTC()); got != "5 +0000" {
		t.Fatalf("FormatDate(UTC) = %q", got)
	}
	if _, _, err := ParseDate("yesterday"); err == nil {
		t.Fatal("expected error")
	}
}

func TestObjectHash(t *testing.T) {
	const uuid = "0b0c1f9e-5a6f-4b9c-9a61-3f1d6c3a2b10"
	h := ObjectHash(uuid, "card", "tree1")
	if h != ObjectHash(uuid, "card", "tree1") {
		t.Fatal("hash not stable")
	}
	for _, other := range []string{
		ObjectHash(uuid, "lane", "tree1"),
		ObjectHash(uuid, "card", "tree2"),
		ObjectHash("0b0c1f9e-5a6f-4b9c-9a61-3f1d6c3a2b11", "card", "tree1"),
	} {
		if other == h {
			t.Fatal("hash collision on changed input")
		}
	}
}

func TestNewObjectBindsProperties(t *testing.T) {
	class := &ObjectClass{Name: "card"}
	obj := NewObject("u", class, "d", []*Property{{Name: "title", Value: TextValue("Hello")}})
	p, ok := obj.Property("title")
	if !ok || p.Owner() != obj.Hash {
		t.Fatalf("property owner = %q, object = %q", p.Owner(), obj.Hash)
	}
	if got := obj.Encode()["title"]; got != "Hello" {
		t.Fatalf("Encode title = %v", got)
	}
}

func TestEncodeValue(t *testing.T) {
	v := ListValue{
		ReferenceValue{Reference{UUID: "a"}},
		ReferenceValue{Reference{UUID: "b", Service: "other", Ref: "master"}},
	}
	want := []any{
		map[string]any{"uuid": "a"},
		map[string]any{"uuid": "b", "service": "other", "ref": "master"},
	}
	if got := EncodeValue(v); !reflect.DeepEqual(got, want) {
		t.Fatalf("EncodeValue = %#v", got)
	}
	if got := EncodeValue(RawValue{ContentType: "text/plain"}); got != "text/plain" {
		t.Fatalf("EncodeValue(raw) = %v", got)
	}
}

func TestCachedObjectPreservesValues(t *testing.T) {
	class := &ObjectClass{Name: "card"}
	obj := NewObject("u", class, "d", []*Property{
		{Name: "done", Value: BoolValue(true)},
		{Name: "due", Value: TimestampValue{Seconds: 10, Offset: 60}},
		{Name: "file", Value: RawValue{ContentType: "text/plain", Entry: TreeEntry{Name: "file", Mode: ModeBlob, ID: "abc"}}},
		{Name: "tags", Value: ListValue{TextValue("x"), TextValue("y")}},
		{Name: "weight", Value: FloatValue(0)},
	})
	data, err := MarshalObject(obj)
	if err != nil {
		t.Fatalf("MarshalObject: %v", err)
	}
	got, err := UnmarshalObject(data)
	if err != nil {
		t.Fatalf("UnmarshalObject: %v", err)
	}
	if got.Hash != obj.Hash || got.UUID != "u" || got.Class.Name != "card" {
		t.Fatalf("identity = %s %s %s", got.Hash, got.UUID, got.Class.Name)
	}
	for name, p := range obj.Properties {
		gp, ok := got.Properties[name]
		if !ok || !EqualValues(p.Value, gp.Value) {
			t.Errorf("property %s = %#v, want %#v", name, gp, p.Value)
		}
		if gp.Owner() != obj.Hash {
			t.Errorf("property %s owner = %q", name, gp.Owner())
		}
	}
}
