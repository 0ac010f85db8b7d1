package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
)

const (
	card1 = "0b0c1f9e-5a6f-4b9c-9a61-3f1d6c3a2b10"
	card2 = "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	lane1 = "5c1f7d1e-3a9b-4c3e-8f0a-9d2b6e4c1a77"

	testMetadata = "name: org.test.1\nschema: s.1\n"
)

const testSchema = `name: s.1
classes:
  card:
    properties:
      title:
        type: text
      done:
        type: boolean
        optional: true
      points:
        type: int
        optional: true
      weight:
        type: float
        optional: true
      due:
        type: timestamp
        optional: true
      status:
        type: text
        regex: ["^(todo|doing|done)$"]
        optional: true
      lane:
        type: reference
        class: lane
        optional: true
      tags:
        type: list
        elements:
          type: text
        optional: true
      blockers:
        type: list
        elements:
          type: reference
          class: card
        optional: true
      attachment:
        type: raw
        content-type-regex: "^text/"
        optional: true
  lane:
    properties:
      name:
        type: text
`

// newTestRepo creates a native repository and a register serving
// testSchema from a file.
func newTestRepo(t *testing.T) (*repo.Repo, register.Static) {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	path := filepath.Join(dir, "s.yaml")
	if err := os.WriteFile(path, []byte(testSchema), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return r, register.Static{"s.1": path}
}

// writeFiles stores files, keyed by slash-separated path, as a tree and
// returns its id.
func writeFiles(t *testing.T, r store.Repository, files map[string]string) string {
	t.Helper()
	blobs := map[string]string{}
	dirs := map[string]map[string]string{}
	for path, content := range files {
		if i := strings.IndexByte(path, '/'); i >= 0 {
			dir := path[:i]
			if dirs[dir] == nil {
				dirs[dir] = map[string]string{}
			}
			dirs[dir][path[i+1:]] = content
			continue
		}
		blobs[path] = content
	}

	var entries []store.TreeEntry
	for name, content := range blobs {
		id, err := r.WriteBlob([]byte(content))
		if err != nil {
			t.Fatalf("WriteBlob(%s): %v", name, err)
		}
		entries = append(entries, store.TreeEntry{Name: name, Mode: store.ModeBlob, ID: id})
	}
	for name, sub := range dirs {
		entries = append(entries, store.TreeEntry{Name: name, Mode: store.ModeTree, ID: writeFiles(t, r, sub)})
	}
	id, err := r.WriteTree(entries)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return id
}

// commitFiles writes files as the tree of a new parentless commit.
func commitFiles(t *testing.T, r store.Repository, files map[string]string) *store.Commit {
	t.Helper()
	id, err := r.WriteCommit(&store.CommitRequest{
		Tree:       writeFiles(t, r, files),
		Author:     "Test Author <test@example.com>",
		AuthorDate: "1700000000 +0000",
		Message:    "fixture",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	c, err := r.ReadCommit(id)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	return c
}

func objectPath(class, uuid, file string) string {
	return class + "/" + uuid + "/" + file
}
