// Package gitrepo stores a consonant store in a regular Git repository
// through go-git.
package gitrepo

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/odvcencio/consonant/pkg/expressions"
	"github.com/odvcencio/consonant/pkg/store"
)

// Repo is a store.Repository backed by a Git repository.
type Repo struct {
	git  *git.Repository
	path string

	// mu serializes ref updates made through this Repo.
	mu sync.Mutex
}

var _ store.Repository = (*Repo)(nil)

// Open opens an existing Git repository.
func Open(path string) (*Repo, error) {
	r, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open git repository %s: %w", path, err)
	}
	return &Repo{git: r, path: path}, nil
}

// Init creates a Git repository at path.
func Init(path string, bare bool) (*Repo, error) {
	r, err := git.PlainInit(path, bare)
	if err != nil {
		return nil, fmt.Errorf("init git repository %s: %w", path, err)
	}
	return &Repo{git: r, path: path}, nil
}

// Path returns the directory the repository was opened from.
func (r *Repo) Path() string { return r.path }

// ResolveRef resolves HEAD, a full ref name, or a branch or tag name to
// a commit id. Annotated tags are peeled.
func (r *Repo) ResolveRef(name string) (string, error) {
	var candidates []plumbing.ReferenceName
	switch {
	case name == "HEAD":
		candidates = []plumbing.ReferenceName{plumbing.HEAD}
	case strings.HasPrefix(name, "refs/"):
		candidates = []plumbing.ReferenceName{plumbing.ReferenceName(name)}
	default:
		candidates = []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(name),
			plumbing.NewTagReferenceName(name),
		}
	}
	for _, c := range candidates {
		ref, err := r.git.Reference(c, true)
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		h, err := r.peel(ref.Hash())
		if err != nil {
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		return h.String(), nil
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, store.ErrNotFound)
}

func (r *Repo) peel(h plumbing.Hash) (plumbing.Hash, error) {
	tag, err := r.git.TagObject(h)
	if err != nil {
		return h, nil
	}
	c, err := tag.Commit()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.Hash, nil
}

// ListRefs returns every branch and tag keyed by full ref name.
func (r *Repo) ListRefs() (map[string]string, error) {
	iter, err := r.git.References()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	out := make(map[string]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if !ref.Name().IsBranch() && !ref.Name().IsTag() {
			return nil
		}
		h, err := r.peel(ref.Hash())
		if err != nil {
			return err
		}
		out[ref.Name().String()] = h.String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

// ExpandCommit resolves a full or abbreviated commit id.
func (r *Repo) ExpandCommit(id string) (string, error) {
	if !expressions.ValidCommitSHA(id) {
		return "", fmt.Errorf("expand commit %q: %w", id, store.ErrNotFound)
	}
	h := plumbing.NewHash(id)
	if len(id) != 40 {
		resolved, err := r.git.ResolveRevision(plumbing.Revision(id))
		if err != nil {
			return "", fmt.Errorf("expand commit %s: %w", id, store.ErrNotFound)
		}
		h = *resolved
	}
	if _, err := r.git.CommitObject(h); err != nil {
		return "", mapErr(fmt.Errorf("expand commit %s: %w", id, err))
	}
	return h.String(), nil
}

// ReadCommit reads a commit by full id.
func (r *Repo) ReadCommit(id string) (*store.Commit, error) {
	c, err := r.git.CommitObject(plumbing.NewHash(id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("read commit %s: %w", id, err))
	}
	out := &store.Commit{
		SHA:           c.Hash.String(),
		Tree:          c.TreeHash.String(),
		Author:        formatIdentity(c.Author),
		AuthorDate:    store.FormatDate(c.Author.When),
		Committer:     formatIdentity(c.Committer),
		CommitterDate: store.FormatDate(c.Committer.When),
		Message:       c.Message,
	}
	for _, p := range c.ParentHashes {
		out.Parents = append(out.Parents, p.String())
	}
	return out, nil
}

// ReadTree reads a tree by id.
func (r *Repo) ReadTree(id string) (*store.Tree, error) {
	t, err := r.git.TreeObject(plumbing.NewHash(id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("read tree %s: %w", id, err))
	}
	entries := make([]store.TreeEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, store.TreeEntry{Name: e.Name, Mode: store.FileMode(e.Mode), ID: e.Hash.String()})
	}
	tree := store.NewTree(entries)
	tree.ID = id
	return tree, nil
}

// ReadBlob returns the content of a blob.
func (r *Repo) ReadBlob(id string) ([]byte, error) {
	b, err := r.git.BlobObject(plumbing.NewHash(id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("read blob %s: %w", id, err))
	}
	rd, err := b.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	defer rd.Close()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

// WriteBlob stores data as a blob.
func (r *Repo) WriteBlob(data []byte) (string, error) {
	obj := r.git.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))
	w, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	h, err := r.git.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return h.String(), nil
}

// WriteTree stores a tree. Entries are ordered the way Git orders them:
// subtrees sort as if their name ended in a slash.
func (r *Repo) WriteTree(entries []store.TreeEntry) (string, error) {
	t := &object.Tree{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		t.Entries = append(t.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: filemode.FileMode(e.Mode),
			Hash: plumbing.NewHash(e.ID),
		})
	}
	sort.Slice(t.Entries, func(i, j int) bool {
		return gitSortKey(t.Entries[i]) < gitSortKey(t.Entries[j])
	})

	obj := r.git.Storer.NewEncodedObject()
	if err := t.Encode(obj); err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	h, err := r.git.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return h.String(), nil
}

func gitSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// WriteCommit stores a commit.
func (r *Repo) WriteCommit(req *store.CommitRequest) (string, error) {
	author, err := signature(req.Author, req.AuthorDate)
	if err != nil {
		return "", fmt.Errorf("write commit: author: %w", err)
	}
	committer := author
	if req.Committer != "" {
		date := req.CommitterDate
		if date == "" {
			date = req.AuthorDate
		}
		if committer, err = signature(req.Committer, date); err != nil {
			return "", fmt.Errorf("write commit: committer: %w", err)
		}
	}

	c := &object.Commit{
		Author:    author,
		Committer: committer,
		Message:   req.Message,
		TreeHash:  plumbing.NewHash(req.Tree),
	}
	for _, p := range req.Parents {
		c.ParentHashes = append(c.ParentHashes, plumbing.NewHash(p))
	}

	obj := r.git.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	h, err := r.git.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return h.String(), nil
}

// UpdateRef moves name from oldID to newID using the storage's
// check-and-set primitive. An empty oldID requires the ref to be absent.
func (r *Repo) UpdateRef(name, newID, oldID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	refName := plumbing.ReferenceName(name)
	next := plumbing.NewHashReference(refName, plumbing.NewHash(newID))

	cur, err := r.git.Storer.Reference(refName)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		cur = nil
	case err != nil:
		return fmt.Errorf("update ref %q: %w", name, err)
	}

	if oldID == "" {
		if cur != nil {
			return fmt.Errorf("update ref %q: %w (expected <none>, found %s)", name, store.ErrRefCASMismatch, cur.Hash())
		}
		if err := r.git.Storer.SetReference(next); err != nil {
			return fmt.Errorf("update ref %q: %w", name, err)
		}
		return nil
	}

	if cur == nil {
		return fmt.Errorf("update ref %q: %w (expected %s, found <none>)", name, store.ErrRefCASMismatch, oldID)
	}
	if cur.Hash().String() != oldID {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)", name, store.ErrRefCASMismatch, oldID, cur.Hash())
	}
	old := plumbing.NewHashReference(refName, plumbing.NewHash(oldID))
	if err := r.git.Storer.CheckAndSetReference(next, old); err != nil {
		if errors.Is(err, storage.ErrReferenceHasChanged) {
			return fmt.Errorf("update ref %q: %w", name, store.ErrRefCASMismatch)
		}
		return fmt.Errorf("update ref %q: %w", name, err)
	}
	return nil
}

// SetHead points HEAD at a branch.
func (r *Repo) SetHead(ref string) error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.ReferenceName(ref))
	if err := r.git.Storer.SetReference(head); err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}
	return nil
}

func signature(identity, date string) (object.Signature, error) {
	name, email, ok := expressions.SplitIdentity(identity)
	if !ok {
		return object.Signature{}, fmt.Errorf("invalid identity %q", identity)
	}
	when, err := store.DateTime(date)
	if err != nil {
		return object.Signature{}, err
	}
	return object.Signature{Name: name, Email: email, When: when}, nil
}

func formatIdentity(s object.Signature) string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

func mapErr(err error) error {
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}
