package object

import (
	"fmt"
	"strings"
)

// PruneSummary reports the outcome of Store.Prune.
type PruneSummary struct {
	Reachable int
	Removed   []Hash
}

// Reachable returns every stored object reachable from roots through tree
// entries, commit trees and commit parents. Roots and links that are not
// in the store are skipped.
func (s *Store) Reachable(roots []Hash) (map[Hash]bool, error) {
	seen := make(map[Hash]bool)
	queue := make([]Hash, 0, len(roots))
	for _, h := range roots {
		if h = Hash(strings.TrimSpace(string(h))); h != "" {
			queue = append(queue, h)
		}
	}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] || !s.Has(h) {
			continue
		}
		seen[h] = true

		objType, data, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", h, err)
		}
		next, err := links(objType, data)
		if err != nil {
			return nil, fmt.Errorf("walk %s %s: %w", objType, h, err)
		}
		queue = append(queue, next...)
	}
	return seen, nil
}

// Unreachable lists the stored objects Reachable(roots) does not reach,
// in List order.
func (s *Store) Unreachable(roots []Hash) (reachable int, garbage []Hash, err error) {
	seen, err := s.Reachable(roots)
	if err != nil {
		return 0, nil, err
	}
	all, err := s.List()
	if err != nil {
		return 0, nil, err
	}
	for _, h := range all {
		if !seen[h] {
			garbage = append(garbage, h)
		}
	}
	return len(seen), garbage, nil
}

// Prune deletes every object not reachable from roots. Candidate commits
// of rejected transactions are collected this way.
func (s *Store) Prune(roots []Hash) (*PruneSummary, error) {
	reachable, garbage, err := s.Unreachable(roots)
	if err != nil {
		return nil, fmt.Errorf("prune: %w", err)
	}
	summary := &PruneSummary{Reachable: reachable}
	for _, h := range garbage {
		if err := s.Delete(h); err != nil {
			return summary, fmt.Errorf("prune: %w", err)
		}
		summary.Removed = append(summary.Removed, h)
	}
	return summary, nil
}

// links returns the hashes an encoded object points at.
func links(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		out := make([]Hash, len(tree.Entries))
		for i, e := range tree.Entries {
			out[i] = e.Hash
		}
		return out, nil
	case TypeCommit:
		c, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		return append([]Hash{c.TreeHash}, c.Parents...), nil
	}
	return nil, fmt.Errorf("unsupported object type %q", objType)
}
