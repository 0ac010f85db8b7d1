package store

import (
	"fmt"
	"sort"
)

// FileMode is the mode of a tree entry.
type FileMode uint32

const (
	ModeBlob       FileMode = 0o100644
	ModeExecutable FileMode = 0o100755
	ModeTree       FileMode = 0o040000
)

// IsDir reports whether the mode denotes a subtree.
func (m FileMode) IsDir() bool { return m == ModeTree }

// IsBlob reports whether the mode denotes file content.
func (m FileMode) IsBlob() bool { return m == ModeBlob || m == ModeExecutable }

func (m FileMode) String() string { return fmt.Sprintf("%06o", uint32(m)) }

// TreeEntry names one child of a tree.
type TreeEntry struct {
	Name string
	Mode FileMode
	ID   string
}

// Tree is an immutable directory snapshot. Entries are sorted by name.
// A Tree with an empty ID has not been written to a repository yet.
type Tree struct {
	ID      string
	Entries []TreeEntry
}

// NewTree builds an unwritten tree from entries.
func NewTree(entries []TreeEntry) *Tree {
	sorted := append([]TreeEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Tree{Entries: sorted}
}

// Entry returns the named child.
func (t *Tree) Entry(name string) (TreeEntry, bool) {
	if t == nil {
		return TreeEntry{}, false
	}
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return TreeEntry{}, false
}

// With returns a new unwritten tree equal to t with e inserted or
// replacing the entry of the same name. t is not modified.
func (t *Tree) With(e TreeEntry) *Tree {
	var entries []TreeEntry
	if t != nil {
		entries = make([]TreeEntry, 0, len(t.Entries)+1)
		for _, cur := range t.Entries {
			if cur.Name != e.Name {
				entries = append(entries, cur)
			}
		}
	}
	return NewTree(append(entries, e))
}

// Without returns a new unwritten tree equal to t minus the named entry.
func (t *Tree) Without(name string) *Tree {
	var entries []TreeEntry
	if t != nil {
		entries = make([]TreeEntry, 0, len(t.Entries))
		for _, cur := range t.Entries {
			if cur.Name != name {
				entries = append(entries, cur)
			}
		}
	}
	return &Tree{Entries: entries}
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}
