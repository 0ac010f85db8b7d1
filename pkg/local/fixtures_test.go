package local

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/odvcencio/consonant/pkg/loader"
	"github.com/odvcencio/consonant/pkg/register"
	"github.com/odvcencio/consonant/pkg/repo"
	"github.com/odvcencio/consonant/pkg/store"
	"github.com/odvcencio/consonant/pkg/transaction"
)

const (
	testAuthor = "Test Author <test@example.com>"
	testDate   = "1700000000 +0000"
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
      lane:
        type: reference
        class: lane
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

// sequentialUUIDs returns a generator of predictable object UUIDs.
func sequentialUUIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return uuidN(n)
	}
}

type testStore struct {
	*Store
	repo *repo.Repo
	head string
}

// newTestStore creates a native repository holding an empty store on
// refs/heads/master.
func newTestStore(t *testing.T, opts ...Option) *testStore {
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
	head, err := r.InitialCommit([]byte("name: org.test.1\nschema: s.1\n"), testAuthor, testDate, "Initial commit")
	if err != nil {
		t.Fatalf("InitialCommit: %v", err)
	}
	opts = append([]Option{WithUUIDGenerator(sequentialUUIDs())}, opts...)
	return &testStore{Store: New(r, register.Static{"s.1": path}, opts...), repo: r, head: head}
}

func (ts *testStore) master(t *testing.T) string {
	t.Helper()
	sha, err := ts.repo.ResolveRef("refs/heads/master")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	return sha
}

// newTx wraps mutations between a begin on source and a commit to master.
func newTx(t *testing.T, source string, mutations ...transaction.Action) *transaction.Transaction {
	t.Helper()
	actions := []transaction.Action{&transaction.Begin{Source: source}}
	actions = append(actions, mutations...)
	actions = append(actions, &transaction.Commit{
		Target:        "refs/heads/master",
		Author:        testAuthor,
		AuthorDate:    testDate,
		Committer:     testAuthor,
		CommitterDate: testDate,
		Message:       "Test transaction",
	})
	out, err := transaction.New(actions)
	if err != nil {
		t.Fatalf("transaction.New: %v", err)
	}
	return out
}

// apply applies mutations on top of the current master and returns the
// new commit.
func (ts *testStore) apply(t *testing.T, mutations ...transaction.Action) *store.Commit {
	t.Helper()
	c, err := ts.ApplyTransaction(newTx(t, ts.master(t), mutations...))
	if err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}
	return c
}

// file returns the entry at path in c's tree.
func (ts *testStore) file(t *testing.T, c *store.Commit, path ...string) (store.TreeEntry, bool) {
	t.Helper()
	tree, err := ts.repo.ReadTree(c.Tree)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	var entry store.TreeEntry
	for i, name := range path {
		e, ok := tree.Entry(name)
		if !ok {
			return store.TreeEntry{}, false
		}
		entry = e
		if i < len(path)-1 {
			if tree, err = ts.repo.ReadTree(e.ID); err != nil {
				t.Fatalf("ReadTree(%s): %v", name, err)
			}
		}
	}
	return entry, true
}

func (ts *testStore) blob(t *testing.T, c *store.Commit, path ...string) string {
	t.Helper()
	e, ok := ts.file(t, c, path...)
	if !ok {
		t.Fatalf("%v not in commit %s", path, store.ShortSHA(c.SHA))
	}
	data, err := ts.repo.ReadBlob(e.ID)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	return string(data)
}

func uuidN(n int) string { return fmt.Sprintf("00000000-0000-4000-8000-%012d", n) }

func propertiesPath(class, uuid string) []string {
	return []string{class, uuid, loader.PropertiesFile}
}
