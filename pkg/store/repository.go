// Package store holds the typed runtime model of a store (commits, refs,
// classes, objects, properties, references) and the narrow interfaces of
// the repository and cache collaborators it is built on.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a commit, tree, blob or ref that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRefCASMismatch reports a ref that no longer holds the expected
	// value during a compare-and-swap update.
	ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

	// ErrRefUpdatedButReflogAppendFailed reports a ref that moved even
	// though recording the move in its log failed.
	ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")
)

// Repository is the content-addressed storage a store lives in.
// Implementations must be safe for concurrent use; UpdateRef is the only
// operation that mutates shared state.
type Repository interface {
	// ResolveRef returns the full commit id a ref points at. name may be
	// a full ref name ("refs/heads/master") or a branch or tag name.
	ResolveRef(name string) (string, error)

	// ListRefs returns every branch and tag keyed by full ref name.
	ListRefs() (map[string]string, error)

	// ExpandCommit turns a short or full commit id into a full one.
	ExpandCommit(id string) (string, error)

	ReadCommit(id string) (*Commit, error)
	ReadTree(id string) (*Tree, error)
	ReadBlob(id string) ([]byte, error)

	WriteBlob(data []byte) (string, error)
	// WriteTree stores the tree and returns its id. Entries are written
	// in name order regardless of the order given.
	WriteTree(entries []TreeEntry) (string, error)
	WriteCommit(req *CommitRequest) (string, error)

	// UpdateRef moves name to newID if it currently points at oldID.
	// An empty oldID requires the ref to not exist. Fails with an error
	// wrapping ErrRefCASMismatch when the ref has moved.
	UpdateRef(name, newID, oldID string) error
}

// CommitRequest carries everything needed to create a commit. Dates use
// the "<seconds> <+|-HHMM>" form.
type CommitRequest struct {
	Tree          string
	Parents       []string
	Author        string
	AuthorDate    string
	Committer     string
	CommitterDate string
	Message       string
}

// WriteTree stores t in repo unless it already has an id, and returns
// the id.
func WriteTree(repo Repository, t *Tree) (string, error) {
	if t.ID != "" {
		return t.ID, nil
	}
	id, err := repo.WriteTree(t.Entries)
	if err != nil {
		return "", err
	}
	t.ID = id
	return id, nil
}

// MetadataFile is the store metadata blob at the root of every commit.
const MetadataFile = "consonant.yaml"

// Bootstrap writes the first commit of a store, holding only the metadata
// document, and creates ref pointing at it. ref must not exist yet.
func Bootstrap(repo Repository, ref string, metadata []byte, author, date, message string) (string, error) {
	blob, err := repo.WriteBlob(metadata)
	if err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	tree, err := repo.WriteTree([]TreeEntry{{Name: MetadataFile, Mode: ModeBlob, ID: blob}})
	if err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	commit, err := repo.WriteCommit(&CommitRequest{
		Tree:          tree,
		Author:        author,
		AuthorDate:    date,
		Committer:     author,
		CommitterDate: date,
		Message:       message,
	})
	if err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	if err := repo.UpdateRef(ref, commit, ""); err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	return commit, nil
}
