package document

import "testing"

func TestDecodeYAMLAndJSONAgree(t *testing.T) {
	y, err := DecodeYAML([]byte("count: 3\nratio: 1.5\nflag: true\nname: x\nitems: [1, 2]\n"))
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	j, err := DecodeJSON([]byte(`{"count": 3, "ratio": 1.5, "flag": true, "name": "x", "items": [1, 2]}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}

	for _, doc := range []any{y, j} {
		m, ok := StringMap(doc)
		if !ok {
			t.Fatalf("document is not a string map: %T", doc)
		}
		if n, ok := Integer(m["count"]); !ok || n != 3 {
			t.Errorf("count = %v (%T)", m["count"], m["count"])
		}
		if f, ok := Float(m["ratio"]); !ok || f != 1.5 {
			t.Errorf("ratio = %v (%T)", m["ratio"], m["ratio"])
		}
		if _, ok := Integer(m["flag"]); ok {
			t.Error("boolean accepted as integer")
		}
		if _, ok := Float(m["count"]); ok {
			t.Error("integer accepted as float")
		}
		items, ok := Sequence(m["items"])
		if !ok || len(items) != 2 {
			t.Errorf("items = %v", m["items"])
		}
	}
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	if _, err := DecodeJSON([]byte(`{"a": 1} {"b": 2}`)); err == nil {
		t.Fatal("expected error for trailing JSON data")
	}
}

func TestMappingNonStringKeys(t *testing.T) {
	v, err := DecodeYAML([]byte("1: one\nb: two\n"))
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	if _, ok := StringMap(v); ok {
		t.Fatal("StringMap accepted a mapping with an integer key")
	}
	entries, ok := Mapping(v)
	if !ok || len(entries) != 2 {
		t.Fatalf("Mapping = %v, %v", entries, ok)
	}
	if _, ok := entries[0].StringKey(); ok {
		t.Errorf("first key %v should not be a string", entries[0].Key)
	}
}

func TestScalar(t *testing.T) {
	if s, ok := Scalar(7); !ok || s != "7" {
		t.Errorf("Scalar(7) = %q, %v", s, ok)
	}
	if s, ok := Scalar("a1"); !ok || s != "a1" {
		t.Errorf("Scalar(a1) = %q, %v", s, ok)
	}
	if _, ok := Scalar(1.5); ok {
		t.Error("Scalar accepted a float")
	}
}

func TestEncodeYAMLSortsKeys(t *testing.T) {
	out, err := EncodeYAML(map[string]any{"b": 1, "a": "x"})
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	if string(out) != "a: x\nb: 1\n" {
		t.Fatalf("EncodeYAML = %q", out)
	}
}

func TestEncodeYAMLKeepsIntegralFloats(t *testing.T) {
	data, err := EncodeYAML(map[string]any{"weight": 2.0, "ratio": 0.5, "list": []any{1.0, int64(1)}})
	if err != nil {
		t.Fatalf("EncodeYAML: %v", err)
	}
	v, err := DecodeYAML(data)
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	m := v.(map[string]any)
	if f, ok := Float(m["weight"]); !ok || f != 2 {
		t.Fatalf("weight = %#v, want float 2", m["weight"])
	}
	if f, ok := Float(m["ratio"]); !ok || f != 0.5 {
		t.Fatalf("ratio = %#v", m["ratio"])
	}
	list := m["list"].([]any)
	if _, ok := Float(list[0]); !ok {
		t.Fatalf("list[0] = %#v, want float", list[0])
	}
	if _, ok := Integer(list[1]); !ok {
		t.Fatalf("list[1] = %#v, want integer", list[1])
	}
}

func TestPlainNumberText(t *testing.T) {
	got := PlainNumberText([]byte("a: 0123456\nb: 12345e7\nc: '0123'\nd: text\ne: 0x1f\n"))
	want := map[string]string{"a": "0123456", "b": "12345e7", "e": "0x1f"}
	if len(got) != len(want) {
		t.Fatalf("PlainNumberText = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("PlainNumberText[%s] = %q, want %q", k, got[k], v)
		}
	}
	if got := PlainNumberText([]byte("- 1\n- 2\n")); len(got) != 0 {
		t.Fatalf("PlainNumberText(sequence) = %v, want empty", got)
	}
}
