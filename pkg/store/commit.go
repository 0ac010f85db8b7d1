package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/consonant/pkg/expressions"
)

// Commit is a snapshot of a store.
type Commit struct {
	SHA           string
	Tree          string
	Author        string
	AuthorDate    string
	Committer     string
	CommitterDate string
	Message       string
	Parents       []string
}

// MessageSubject returns the message up to the first blank line.
func (c *Commit) MessageSubject() string {
	subject, _ := splitMessage(c.Message)
	return subject
}

// MessageBody returns the message after the first blank line.
func (c *Commit) MessageBody() string {
	_, body := splitMessage(c.Message)
	return body
}

func splitMessage(msg string) (string, string) {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	if i := strings.Index(msg, "\n\n"); i >= 0 {
		return strings.TrimSpace(msg[:i]), strings.TrimSpace(msg[i+2:])
	}
	return strings.TrimSpace(msg), ""
}

// ShortSHA returns the abbreviated form of a commit id.
func ShortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// FormatDate renders t as "<seconds> <+|-HHMM>".
func FormatDate(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%d %c%02d%02d", t.Unix(), sign, offset/3600, (offset%3600)/60)
}

// ParseDate parses a "<seconds> <+|-HHMM>" date into seconds since the
// epoch and a UTC offset in minutes.
func ParseDate(s string) (int64, int, error) {
	m := expressions.Timestamp.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid date %q", s)
	}
	secs, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	hours, _ := strconv.Atoi(m[3])
	minutes, _ := strconv.Atoi(m[4])
	offset := hours*60 + minutes
	if m[2] == "-" {
		offset = -offset
	}
	return secs, offset, nil
}

// DateTime converts a "<seconds> <+|-HHMM>" date into a time.Time in a
// fixed zone.
func DateTime(s string) (time.Time, error) {
	secs, offset, err := ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).In(time.FixedZone("", offset*60)), nil
}

// RefType distinguishes branches from tags.
type RefType string

const (
	RefBranch RefType = "branch"
	RefTag    RefType = "tag"
)

var refPrefixes = []string{"refs/heads/", "refs/tags/", "refs/notes/", "refs/remotes/"}

// Ref is a named pointer to a commit.
type Ref struct {
	Type    RefType
	Name    string
	Head    *Commit
	Aliases []string
}

// NewRef builds a ref and precomputes its URL-safe aliases.
func NewRef(typ RefType, name string, head *Commit) *Ref {
	return &Ref{Type: typ, Name: name, Head: head, Aliases: RefAliases(name)}
}

// RefAliases returns the names a ref may be addressed by in URLs: the
// name without its refs/<kind>/ prefix and the full name with slashes
// escaped as colons. Order is preserved and duplicates removed.
func RefAliases(name string) []string {
	short := name
	for _, prefix := range refPrefixes {
		if strings.HasPrefix(name, prefix) {
			short = strings.TrimPrefix(name, prefix)
			break
		}
	}
	candidates := []string{short, strings.ReplaceAll(name, "/", ":")}

	seen := make(map[string]bool, len(candidates))
	aliases := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		aliases = append(aliases, c)
	}
	return aliases
}

// Matches reports whether s is the ref name or one of its aliases.
func (r *Ref) Matches(s string) bool {
	if s == r.Name {
		return true
	}
	for _, a := range r.Aliases {
		if a == s {
			return true
		}
	}
	return false
}

// RefTypeOf classifies a full ref name.
func RefTypeOf(name string) RefType {
	if strings.HasPrefix(name, "refs/tags/") {
		return RefTag
	}
	return RefBranch
}
