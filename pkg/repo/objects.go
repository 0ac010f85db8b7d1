package repo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/odvcencio/consonant/pkg/object"
	"github.com/odvcencio/consonant/pkg/store"
)

// ExpandCommit resolves a full or abbreviated commit id.
func (r *Repo) ExpandCommit(id string) (string, error) {
	h, err := r.Store.Expand(id)
	if err != nil {
		return "", mapNotFound(fmt.Errorf("expand commit: %w", err))
	}
	objType, _, err := r.Store.Read(h)
	if err != nil {
		return "", mapNotFound(fmt.Errorf("expand commit: %w", err))
	}
	if objType != object.TypeCommit {
		return "", fmt.Errorf("expand commit %s: %w: object is a %s", id, store.ErrNotFound, objType)
	}
	return string(h), nil
}

// ReadCommit reads a commit by full id.
func (r *Repo) ReadCommit(id string) (*store.Commit, error) {
	c, err := r.Store.ReadCommit(object.Hash(id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return commitFromObject(id, c), nil
}

// ReadTree reads a tree by id.
func (r *Repo) ReadTree(id string) (*store.Tree, error) {
	t, err := r.Store.ReadTree(object.Hash(id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	tree := &store.Tree{ID: id, Entries: make([]store.TreeEntry, 0, len(t.Entries))}
	for _, e := range t.Entries {
		mode, err := strconv.ParseUint(e.Mode, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("read tree %s: entry %q: bad mode %q", id, e.Name, e.Mode)
		}
		tree.Entries = append(tree.Entries, store.TreeEntry{Name: e.Name, Mode: store.FileMode(mode), ID: string(e.Hash)})
	}
	return tree, nil
}

// ReadBlob returns the content of a blob.
func (r *Repo) ReadBlob(id string) ([]byte, error) {
	b, err := r.Store.ReadBlob(object.Hash(id))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return b.Data, nil
}

// WriteBlob stores data as a blob.
func (r *Repo) WriteBlob(data []byte) (string, error) {
	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	return string(h), err
}

// WriteTree stores a tree built from entries.
func (r *Repo) WriteTree(entries []store.TreeEntry) (string, error) {
	t := &object.TreeObj{Entries: make([]object.TreeEntry, 0, len(entries))}
	for _, e := range entries {
		t.Entries = append(t.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: strconv.FormatUint(uint64(e.Mode), 8),
			Hash: object.Hash(e.ID),
		})
	}
	h, err := r.Store.WriteTree(t)
	return string(h), err
}

// WriteCommit stores a commit, signing it when the repository has a
// Signer.
func (r *Repo) WriteCommit(req *store.CommitRequest) (string, error) {
	c := &object.CommitObj{
		TreeHash:  object.Hash(req.Tree),
		Author:    req.Author,
		Committer: req.Committer,
		Message:   req.Message,
	}
	for _, p := range req.Parents {
		c.Parents = append(c.Parents, object.Hash(p))
	}
	var err error
	if c.Timestamp, c.AuthorTimezone, err = splitDate(req.AuthorDate); err != nil {
		return "", fmt.Errorf("write commit: author date: %w", err)
	}
	if c.Committer == "" {
		c.Committer = c.Author
	}
	committerDate := req.CommitterDate
	if committerDate == "" {
		committerDate = req.AuthorDate
	}
	if c.CommitterTimestamp, c.CommitterTimezone, err = splitDate(committerDate); err != nil {
		return "", fmt.Errorf("write commit: committer date: %w", err)
	}

	if r.Signer != nil {
		signature, err := r.Signer(object.CommitSigningPayload(c))
		if err != nil {
			return "", fmt.Errorf("write commit: sign commit: %w", err)
		}
		c.Signature = signature
	}

	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}
	return string(h), nil
}

// CommitSignature returns the signature recorded on a commit, and the
// payload it signs.
func (r *Repo) CommitSignature(id string) (signature string, payload []byte, err error) {
	c, err := r.Store.ReadCommit(object.Hash(id))
	if err != nil {
		return "", nil, mapNotFound(err)
	}
	return c.Signature, object.CommitSigningPayload(c), nil
}

func commitFromObject(id string, c *object.CommitObj) *store.Commit {
	out := &store.Commit{
		SHA:           id,
		Tree:          string(c.TreeHash),
		Author:        c.Author,
		AuthorDate:    fmt.Sprintf("%d %s", c.Timestamp, tzOrUTC(c.AuthorTimezone)),
		Committer:     c.Committer,
		CommitterDate: fmt.Sprintf("%d %s", c.CommitterTimestamp, tzOrUTC(c.CommitterTimezone)),
		Message:       c.Message,
	}
	for _, p := range c.Parents {
		out.Parents = append(out.Parents, string(p))
	}
	return out
}

func splitDate(date string) (int64, string, error) {
	secs, _, err := store.ParseDate(date)
	if err != nil {
		return 0, "", err
	}
	_, tz, _ := strings.Cut(date, " ")
	return secs, tz, nil
}

func tzOrUTC(tz string) string {
	if tz == "" {
		return "+0000"
	}
	return tz
}

func mapNotFound(err error) error {
	if errors.Is(err, object.ErrNotFound) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}
