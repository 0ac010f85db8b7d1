package repo

import (
	"strings"

	"github.com/odvcencio/consonant/pkg/object"
)

// gcRoots returns every ref target plus a detached HEAD.
func (r *Repo) gcRoots() ([]object.Hash, error) {
	refs, err := r.listRefs("")
	if err != nil {
		return nil, err
	}
	roots := make([]object.Hash, 0, len(refs)+1)
	for _, h := range refs {
		roots = append(roots, h)
	}
	if head, err := r.Head(); err == nil && head != "" && !strings.HasPrefix(head, "refs/") {
		roots = append(roots, object.Hash(head))
	}
	return roots, nil
}

// Prune removes loose objects unreachable from any ref or a detached
// HEAD. Candidate commits from rejected transactions end up here.
func (r *Repo) Prune() (*object.PruneSummary, error) {
	roots, err := r.gcRoots()
	if err != nil {
		return nil, err
	}
	return r.Store.Prune(roots)
}

// Garbage reports what Prune would remove without removing it.
func (r *Repo) Garbage() (*object.PruneSummary, error) {
	roots, err := r.gcRoots()
	if err != nil {
		return nil, err
	}
	reachable, garbage, err := r.Store.Unreachable(roots)
	if err != nil {
		return nil, err
	}
	return &object.PruneSummary{Reachable: reachable, Removed: garbage}, nil
}
