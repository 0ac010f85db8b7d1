// Package repo implements the native store repository: a .consonant/
// directory holding SHA-256 addressed objects, ref files updated with
// lockfile compare-and-swap, and per-ref reflogs.
package repo

import (
	"github.com/odvcencio/consonant/pkg/object"
	"github.com/odvcencio/consonant/pkg/store"
)

const (
	// DirName is the repository directory inside the root.
	DirName = ".consonant"

	// DefaultRef is the branch Init points HEAD at.
	DefaultRef = "refs/heads/master"
)

// ErrRefCASMismatch is store.ErrRefCASMismatch, so callers of either
// package can match it.
var ErrRefCASMismatch = store.ErrRefCASMismatch

// Repo represents an opened native repository.
type Repo struct {
	RootDir string        // directory containing .consonant/
	Dir     string        // .consonant/ directory
	Store   *object.Store // content-addressed object store

	// Signer, when set, signs every commit written through WriteCommit.
	Signer CommitSigner
}

var _ store.Repository = (*Repo)(nil)
