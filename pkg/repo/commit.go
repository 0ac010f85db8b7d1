package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/consonant/pkg/store"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted with the commit.
type CommitSigner func(payload []byte) (string, error)

// Log walks the commit history starting from start, following
// first-parent links, returning up to limit commits newest first.
func (r *Repo) Log(start string, limit int) ([]*store.Commit, error) {
	var commits []*store.Commit
	current := start

	for len(commits) < limit {
		c, err := r.ReadCommit(current)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}
