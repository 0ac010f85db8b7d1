package local

import (
	"errors"
	"testing"

	"github.com/odvcencio/consonant/pkg/loader"
	"github.com/odvcencio/consonant/pkg/store"
	"github.com/odvcencio/consonant/pkg/transaction"
)

func TestPrepareCreateLeavesRefAlone(t *testing.T) {
	ts := newTestStore(t)
	candidate, err := ts.Prepare(newTx(t, ts.head,
		&transaction.Create{Class: "card", Properties: map[string]any{"title": "A"}},
	))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if got := ts.master(t); got != ts.head {
		t.Fatalf("master moved to %s", got)
	}
	if len(candidate.Parents) != 1 || candidate.Parents[0] != ts.head {
		t.Fatalf("parents = %v, want [%s]", candidate.Parents, ts.head)
	}
	if candidate.Message != "Test transaction" || candidate.Author != testAuthor || candidate.CommitterDate != testDate {
		t.Fatalf("commit metadata = %+v", candidate)
	}
	if got := ts.blob(t, candidate, propertiesPath("card", uuidN(1))...); got != "title: A\n" {
		t.Fatalf("properties.yaml = %q", got)
	}
}

func TestPrepareSharesUntouchedTrees(t *testing.T) {
	ts := newTestStore(t)
	first := ts.apply(t,
		&transaction.Create{Class: "lane", Properties: map[string]any{"name": "Backlog"}},
		&transaction.Create{Class: "card", Properties: map[string]any{"title": "A"}},
	)
	second := ts.apply(t, &transaction.Update{
		Object:     transaction.ObjectRef{UUID: uuidN(2)},
		Properties: map[string]any{"done": true},
	})

	before, _ := ts.file(t, first, "lane")
	after, _ := ts.file(t, second, "lane")
	if before.ID != after.ID {
		t.Fatalf("lane tree rewritten: %s -> %s", before.ID, after.ID)
	}
	beforeCard, _ := ts.file(t, first, "card")
	afterCard, _ := ts.file(t, second, "card")
	if beforeCard.ID == afterCard.ID {
		t.Fatal("card tree not rewritten")
	}
	if got := ts.blob(t, second, store.MetadataFile); got != "name: org.test.1\nschema: s.1\n" {
		t.Fatalf("metadata = %q", got)
	}
}

func TestPrepareResolvesActionReferences(t *testing.T) {
	ts := newTestStore(t)
	c := ts.apply(t,
		&transaction.Create{ID: "l", Class: "lane", Properties: map[string]any{"name": "Backlog"}},
		&transaction.Create{ID: "c", Class: "card", Properties: map[string]any{
			"title": "First",
			"lane":  map[string]any{"action": "l"},
		}},
		&transaction.Create{Class: "card", Properties: map[string]any{
			"title":    "Second",
			"blockers": []any{map[string]any{"action": "c"}},
		}},
		&transaction.Update{Object: transaction.ObjectRef{Action: "c"}, Properties: map[string]any{"done": true}},
	)

	first, err := ts.Loader().Object(c, uuidN(2), "card")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	lane, ok := first.Property("lane")
	if !ok {
		t.Fatal("lane not set")
	}
	if ref := lane.Value.(store.ReferenceValue); ref.UUID != uuidN(1) {
		t.Fatalf("lane = %+v, want %s", ref, uuidN(1))
	}
	if done, ok := first.Property("done"); !ok || done.Value != store.BoolValue(true) {
		t.Fatalf("done = %+v", done)
	}

	second, err := ts.Loader().Object(c, uuidN(3), "card")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	blockers, _ := second.Property("blockers")
	list := blockers.Value.(store.ListValue)
	if len(list) != 1 || list[0].(store.ReferenceValue).UUID != uuidN(2) {
		t.Fatalf("blockers = %+v", list)
	}
}

func TestPrepareActionReferenceErrors(t *testing.T) {
	ts := newTestStore(t)
	tests := []struct {
		name      string
		mutations []transaction.Action
		want      error
		index     int
	}{
		{
			name: "later action",
			mutations: []transaction.Action{
				&transaction.Create{Class: "card", Properties: map[string]any{"title": "A", "lane": map[string]any{"action": "l"}}},
				&transaction.Create{ID: "l", Class: "lane", Properties: map[string]any{"name": "Backlog"}},
			},
			want:  ErrActionReferencesALaterAction,
			index: 1,
		},
		{
			name: "non-existent action",
			mutations: []transaction.Action{
				&transaction.Create{Class: "card", Properties: map[string]any{"title": "A", "blockers": []any{map[string]any{"action": "nope"}}}},
			},
			want:  ErrActionReferencesANonExistentAction,
			index: 1,
		},
		{
			name: "target of a later action",
			mutations: []transaction.Action{
				&transaction.Update{Object: transaction.ObjectRef{Action: "c"}, Properties: map[string]any{"done": true}},
				&transaction.Create{ID: "c", Class: "card", Properties: map[string]any{"title": "A"}},
			},
			want:  ErrActionReferencesALaterAction,
			index: 1,
		},
		{
			name: "deleted object",
			mutations: []transaction.Action{
				&transaction.Create{ID: "c", Class: "card", Properties: map[string]any{"title": "A"}},
				&transaction.Delete{ID: "d", Object: transaction.ObjectRef{Action: "c"}},
				&transaction.Update{Object: transaction.ObjectRef{Action: "d"}, Properties: map[string]any{"done": true}},
			},
			want:  ErrObjectNotFound,
			index: 3,
		},
		{
			name: "object deleted earlier",
			mutations: []transaction.Action{
				&transaction.Create{ID: "c", Class: "card", Properties: map[string]any{"title": "A"}},
				&transaction.Delete{Object: transaction.ObjectRef{Action: "c"}},
				&transaction.Update{Object: transaction.ObjectRef{Action: "c"}, Properties: map[string]any{"done": true}},
			},
			want:  ErrObjectNotFound,
			index: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Prepare(newTx(t, ts.head, tt.mutations...))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Prepare error = %v, want %v", err, tt.want)
			}
			var ae *ActionError
			if !errors.As(err, &ae) || ae.Index != tt.index {
				t.Fatalf("error %v not located at action %d", err, tt.index)
			}
		})
	}
}

func TestPrepareUpdateMissingObject(t *testing.T) {
	ts := newTestStore(t)
	const missing = "99999999-9999-4999-8999-999999999999"
	_, err := ts.ApplyTransaction(newTx(t, ts.head,
		&transaction.Update{Object: transaction.ObjectRef{UUID: missing}, Properties: map[string]any{"title": "B"}},
	))
	if !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("ApplyTransaction error = %v, want ErrObjectNotFound", err)
	}
	var ae *ActionError
	if !errors.As(err, &ae) || ae.Index != 1 || ae.Kind != transaction.KindUpdate || ae.Detail != missing {
		t.Fatalf("action error = %+v", ae)
	}
	if got := ts.master(t); got != ts.head {
		t.Fatalf("master moved to %s", got)
	}
}

func TestPrepareRejectsUnknownAndRawProperties(t *testing.T) {
	ts := newTestStore(t)
	tests := []struct {
		name     string
		action   transaction.Action
		want     error
		property string
	}{
		{
			name:     "unknown property",
			action:   &transaction.Create{Class: "card", Properties: map[string]any{"title": "A", "colour": "red"}},
			want:     ErrActionPropertyUnknown,
			property: "colour",
		},
		{
			name:     "raw property in create",
			action:   &transaction.Create{Class: "card", Properties: map[string]any{"title": "A", "attachment": "text/plain"}},
			want:     ErrActionPropertyIsRaw,
			property: "attachment",
		},
		{
			name:   "unknown class",
			action: &transaction.Create{Class: "board", Properties: map[string]any{"title": "A"}},
			want:   ErrActionClassUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ts.Prepare(newTx(t, ts.head, tt.action))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Prepare error = %v, want %v", err, tt.want)
			}
			if c != nil {
				t.Fatalf("Prepare returned commit %s", c.SHA)
			}
			var ae *ActionError
			if !errors.As(err, &ae) || ae.Property != tt.property {
				t.Fatalf("action error = %+v, want property %q", ae, tt.property)
			}
		})
	}
}

func TestPrepareUpdateMergesProperties(t *testing.T) {
	ts := newTestStore(t)
	ts.apply(t, &transaction.Create{Class: "card", Properties: map[string]any{"title": "T", "points": int64(3)}})
	c := ts.apply(t, &transaction.Update{
		Object:     transaction.ObjectRef{UUID: uuidN(1)},
		Properties: map[string]any{"points": nil, "done": true, "weight": 2.0},
	})
	if got := ts.blob(t, c, propertiesPath("card", uuidN(1))...); got != "done: true\ntitle: T\nweight: 2.0\n" {
		t.Fatalf("properties.yaml = %q", got)
	}
	obj, err := ts.Loader().Object(c, uuidN(1), "")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	if w, _ := obj.Property("weight"); w.Value != store.FloatValue(2) {
		t.Fatalf("weight = %#v", w.Value)
	}
}

func TestPrepareDeleteRemovesEmptyClass(t *testing.T) {
	ts := newTestStore(t)
	ts.apply(t,
		&transaction.Create{Class: "card", Properties: map[string]any{"title": "A"}},
		&transaction.Create{Class: "card", Properties: map[string]any{"title": "B"}},
	)

	c := ts.apply(t, &transaction.Delete{Object: transaction.ObjectRef{UUID: uuidN(1)}})
	if _, ok := ts.file(t, c, "card", uuidN(1)); ok {
		t.Fatal("deleted object still present")
	}
	if _, ok := ts.file(t, c, "card", uuidN(2)); !ok {
		t.Fatal("sibling object removed")
	}

	c = ts.apply(t, &transaction.Delete{Object: transaction.ObjectRef{UUID: uuidN(2)}})
	if _, ok := ts.file(t, c, "card"); ok {
		t.Fatal("empty class directory kept")
	}
	objs, err := ts.Loader().Objects(c)
	if err != nil {
		t.Fatalf("Objects: %v", err)
	}
	if len(objs) != 0 {
		t.Fatalf("objects = %v", objs)
	}
}

func TestRawPropertyActions(t *testing.T) {
	ts := newTestStore(t)
	ts.apply(t, &transaction.Create{Class: "card", Properties: map[string]any{"title": "T"}})
	card := transaction.ObjectRef{UUID: uuidN(1)}

	c := ts.apply(t, &transaction.UpdateRawProperty{Object: card, Property: "attachment", ContentType: "text/plain", Data: []byte("hello")})
	if got := ts.blob(t, c, propertiesPath("card", uuidN(1))...); got != "attachment: text/plain\ntitle: T\n" {
		t.Fatalf("properties.yaml = %q", got)
	}
	if got := ts.blob(t, c, "card", uuidN(1), loader.RawDir, "attachment"); got != "hello" {
		t.Fatalf("raw/attachment = %q", got)
	}
	obj, err := ts.Loader().Object(c, uuidN(1), "card")
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	data, err := ts.Loader().RawPropertyData(c, obj, "attachment")
	if err != nil || string(data) != "hello" {
		t.Fatalf("RawPropertyData = %q, %v", data, err)
	}

	c = ts.apply(t, &transaction.UnsetRawProperty{Object: card, Property: "attachment"})
	if _, ok := ts.file(t, c, "card", uuidN(1), loader.RawDir); ok {
		t.Fatal("empty raw directory kept")
	}
	if got := ts.blob(t, c, propertiesPath("card", uuidN(1))...); got != "title: T\n" {
		t.Fatalf("properties.yaml = %q", got)
	}

	_, err = ts.Prepare(newTx(t, c.SHA, &transaction.UpdateRawProperty{Object: card, Property: "title", ContentType: "text/plain", Data: []byte("x")}))
	if !errors.Is(err, ErrActionPropertyNotRaw) {
		t.Fatalf("raw update of text property: %v", err)
	}
	_, err = ts.Prepare(newTx(t, c.SHA, &transaction.UnsetRawProperty{Object: card, Property: "cover"}))
	if !errors.Is(err, ErrActionPropertyUnknown) {
		t.Fatalf("unset of unknown property: %v", err)
	}
}

func TestRawPropertyContentTypeIsValidated(t *testing.T) {
	ts := newTestStore(t)
	ts.apply(t, &transaction.Create{Class: "card", Properties: map[string]any{"title": "T"}})
	head := ts.master(t)

	_, err := ts.ApplyTransaction(newTx(t, head, &transaction.UpdateRawProperty{
		Object:      transaction.ObjectRef{UUID: uuidN(1)},
		Property:    "attachment",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	}))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("ApplyTransaction error = %v, want ErrValidationFailed", err)
	}
	if got := ts.master(t); got != head {
		t.Fatalf("master moved to %s", got)
	}
}

func TestPrepareSourceNotFound(t *testing.T) {
	ts := newTestStore(t)
	_, err := ts.Prepare(newTx(t, "deadbeef",
		&transaction.Create{Class: "card", Properties: map[string]any{"title": "A"}},
	))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("Prepare error = %v, want ErrSourceNotFound", err)
	}
}
