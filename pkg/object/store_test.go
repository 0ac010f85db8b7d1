package object

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("Hash length: got %d, want 64", len(h1))
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	if h1 == HashBytes(data) {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}
	if h1 != HashBytes([]byte("blob 5\x00hello")) {
		t.Error("HashObject should hash the type/length envelope")
	}
	if h1 == HashObject(TypeTree, data) {
		t.Error("Different types should produce different hashes")
	}
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir())
}

func TestStoreWriteRead(t *testing.T) {
	s := tempStore(t)
	data := []byte("hello world")
	h, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	gotType, gotData, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotType != TypeBlob {
		t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("Data: got %q, want %q", gotData, data)
	}
}

func TestStoreObjectIsCompressedEnvelope(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("format check"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(s.root, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if string(plain) != "blob 12\x00format check" {
		t.Errorf("envelope: got %q", plain)
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	_, _, err := s.Read(Hash(strings.Repeat("0", 64)))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read missing: got %v, want ErrNotFound", err)
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	s := tempStore(t)
	h1, err := s.Write(TypeBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("duplicate"))
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Same content produced different hashes: %q vs %q", h1, h2)
	}
}

func TestStoreWriteReadTree(t *testing.T) {
	s := tempStore(t)
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "properties.yaml", Mode: TreeModeFile, Hash: Hash(strings.Repeat("a", 64))},
			{Name: "raw", Mode: TreeModeDir, Hash: Hash(strings.Repeat("c", 64))},
		},
	}
	h, err := s.WriteTree(orig)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	got, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("Entries length: got %d, want 2", len(got.Entries))
	}
	if !got.Entries[1].IsDir() || got.Entries[0].IsDir() {
		t.Errorf("entry modes not preserved: %+v", got.Entries)
	}
}

func TestStoreReadBlobTypeMismatch(t *testing.T) {
	s := tempStore(t)
	h, err := s.WriteTree(&TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	_, err = s.ReadBlob(h)
	if err == nil || !strings.Contains(err.Error(), "type mismatch") {
		t.Fatalf("expected type mismatch error, got: %v", err)
	}
}

func TestStoreExpand(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("expand me"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Expand(string(h[:7]))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if got != h {
		t.Fatalf("Expand = %s, want %s", got, h)
	}

	if _, err := s.Expand(string(h[:4])); err == nil {
		t.Fatal("Expand accepted a prefix shorter than MinPrefixLength")
	}
	unknown := "0000000"
	if string(h[:7]) == unknown {
		unknown = "1111111"
	}
	if _, err := s.Expand(unknown); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expand unknown prefix: got %v, want ErrNotFound", err)
	}
}

func TestStoreListAndDelete(t *testing.T) {
	s := tempStore(t)
	a, _ := s.Write(TypeBlob, []byte("a"))
	b, _ := s.Write(TypeBlob, []byte("b"))

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List: got %d objects, want 2", len(all))
	}

	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Has(a) || !s.Has(b) {
		t.Fatal("Delete removed the wrong object")
	}
	if err := s.Delete(a); err != nil {
		t.Fatalf("Delete missing object: %v", err)
	}
}
