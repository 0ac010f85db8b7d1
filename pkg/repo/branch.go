package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/consonant/pkg/object"
)

// CreateBranch creates refs/heads/<name> pointing at target. Returns an
// error if the branch already exists.
func (r *Repo) CreateBranch(name, target string) error {
	if err := validateRefName("branch", name); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	commit, err := r.ExpandCommit(target)
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if err := r.updateRef("refs/heads/"+name, object.Hash(commit), "branch", true, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes refs/heads/<name>. The branch HEAD points at
// cannot be deleted.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	if err := r.DeleteRef("refs/heads/" + name); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	return nil
}

// ListBranches returns the branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	return r.listRefNames("heads")
}

// CurrentBranch returns the branch HEAD points at, or "" when HEAD is
// detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}

	const prefix = "refs/heads/"
	if strings.HasPrefix(head, prefix) {
		return strings.TrimPrefix(head, prefix), nil
	}
	return "", nil
}
