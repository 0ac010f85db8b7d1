package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/consonant/pkg/object"
	"github.com/odvcencio/consonant/pkg/store"
)

// MetadataFile is the name of the store metadata blob.
const MetadataFile = store.MetadataFile

// Init creates a new repository at path: .consonant/HEAD, objects/,
// refs/heads/ and logs/. It fails if .consonant/ already exists.
func Init(path string) (*Repo, error) {
	dir := filepath.Join(path, DirName)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", dir)
	}

	dirs := []string{
		filepath.Join(dir, "objects"),
		filepath.Join(dir, "refs", "heads"),
		filepath.Join(dir, "refs", "tags"),
		filepath.Join(dir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(dir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: "+DefaultRef+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	return &Repo{
		RootDir: path,
		Dir:     dir,
		Store:   object.NewStore(dir),
	}, nil
}

// Open searches upward from path for a .consonant/ directory and opens
// the repository.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		dir := filepath.Join(cur, DirName)
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return &Repo{
				RootDir: cur,
				Dir:     dir,
				Store:   object.NewStore(dir),
			}, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a consonant repository (or any parent up to /)")
		}
		cur = parent
	}
}

// InitialCommit writes the first commit of a store, holding only the
// metadata document, and points DefaultRef at it. It fails if the ref
// already exists.
func (r *Repo) InitialCommit(metadata []byte, author, date, message string) (string, error) {
	blob, err := r.WriteBlob(metadata)
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	tree, err := r.WriteTree([]store.TreeEntry{{Name: MetadataFile, Mode: store.ModeBlob, ID: blob}})
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	commit, err := r.WriteCommit(&store.CommitRequest{
		Tree:          tree,
		Author:        author,
		AuthorDate:    date,
		Committer:     author,
		CommitterDate: date,
		Message:       message,
	})
	if err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	if err := r.updateRef(DefaultRef, object.Hash(commit), "init", true, ""); err != nil {
		return "", fmt.Errorf("initial commit: %w", err)
	}
	return commit, nil
}

// Head reads .consonant/HEAD. A symbolic HEAD yields the ref path
// ("refs/heads/master"); a detached HEAD yields the raw hash.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Dir, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("head: %w", err)
	}
	content := strings.TrimRight(string(data), "\n")

	if strings.HasPrefix(content, "ref: ") {
		return strings.TrimPrefix(content, "ref: "), nil
	}
	return content, nil
}
