package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/odvcencio/consonant/pkg/object"
)

// CreateTag points refs/tags/<name> at a commit. Without force an
// existing tag is an error.
func (r *Repo) CreateTag(name, target string, force bool) error {
	name = strings.TrimSpace(name)
	if err := validateRefName("tag", name); err != nil {
		return fmt.Errorf("create tag: %w", err)
	}
	commit, err := r.ExpandCommit(target)
	if err != nil {
		return fmt.Errorf("create tag: %w", err)
	}

	refName := "refs/tags/" + name
	if force {
		if err := r.updateRef(refName, object.Hash(commit), "tag", false, ""); err != nil {
			return fmt.Errorf("create tag: %w", err)
		}
		return nil
	}
	if err := r.updateRef(refName, object.Hash(commit), "tag", true, ""); err != nil {
		if errors.Is(err, ErrRefCASMismatch) {
			return fmt.Errorf("create tag: tag %q already exists", name)
		}
		return fmt.Errorf("create tag: %w", err)
	}
	return nil
}

// DeleteTag removes refs/tags/<name>.
func (r *Repo) DeleteTag(name string) error {
	name = strings.TrimSpace(name)
	if err := validateRefName("tag", name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err := r.DeleteRef("refs/tags/" + name); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// ListTags lists tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	return r.listRefNames("tags")
}

func (r *Repo) listRefNames(kind string) ([]string, error) {
	refs, err := r.listRefs(kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	names := make([]string, 0, len(refs))
	for full := range refs {
		names = append(names, strings.TrimPrefix(full, "refs/"+kind+"/"))
	}
	sort.Strings(names)
	return names, nil
}

func validateRefName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") ||
		strings.Contains(name, "..") || strings.HasSuffix(name, ".lock") ||
		strings.ContainsAny(name, " \t\n\r:") {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}
