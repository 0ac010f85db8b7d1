package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/consonant/pkg/object"
)

// zeroHash stands for "no commit" on either side of a reflog entry.
const zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ReflogEntry is one recorded movement of a ref. A created ref has a
// zero OldHash.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

// String renders the entry in the on-disk line format without the ref:
// "<old> <new> <unix-seconds> <reason>".
func (e ReflogEntry) String() string {
	return fmt.Sprintf("%s %s %d %s", orZero(e.OldHash), orZero(e.NewHash), e.Timestamp, e.Reason)
}

func orZero(h object.Hash) object.Hash {
	if strings.TrimSpace(string(h)) == "" {
		return zeroHash
	}
	return h
}

func parseReflogLine(ref, line string) (ReflogEntry, bool) {
	fields := strings.SplitN(line, " ", 4)
	if len(fields) != 4 {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   object.Hash(fields[0]),
		NewHash:   object.Hash(fields[1]),
		Timestamp: ts,
		Reason:    fields[3],
	}, true
}

func (r *Repo) reflogPath(ref string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(ref))
}

// appendReflog records a movement of ref. Store transactions use the
// reason "transaction".
func (r *Repo) appendReflog(ref string, oldHash, newHash object.Hash, reason string) error {
	if ref = strings.TrimSpace(ref); ref == "" {
		return nil
	}
	if strings.TrimSpace(reason) == "" {
		reason = "update"
	}
	entry := ReflogEntry{OldHash: oldHash, NewHash: newHash, Timestamp: time.Now().Unix(), Reason: reason}

	path := r.reflogPath(ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("append reflog %s: %w", ref, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append reflog %s: %w", ref, err)
	}
	_, werr := f.WriteString(entry.String() + "\n")
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("append reflog %s: %w", ref, werr)
	}
	return nil
}

// ReadReflog returns the reflog of ref, newest first. ref may be a full
// ref name, a branch or tag name, or empty for the ref HEAD points at. A
// limit of zero or less returns every entry. Unparseable lines are
// skipped.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	name := r.reflogRefName(ref)
	data, err := os.ReadFile(r.reflogPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog %s: %w", name, err)
	}

	lines := strings.Split(string(data), "\n")
	var entries []ReflogEntry
	for i := len(lines) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if e, ok := parseReflogLine(name, line); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (r *Repo) reflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == "HEAD":
		if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/") {
			return head
		}
		return "HEAD"
	case strings.HasPrefix(ref, "refs/"):
		return ref
	}
	if _, err := os.Stat(filepath.Join(r.Dir, "refs", "tags", filepath.FromSlash(ref))); err == nil {
		return "refs/tags/" + ref
	}
	return "refs/heads/" + ref
}
