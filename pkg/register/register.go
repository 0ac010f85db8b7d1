// Package register maps schema names to the locations of their documents
// and fetches those documents.
package register

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// ErrSchemaUnknown reports a schema name the register has no entry for.
var ErrSchemaUnknown = errors.New("schema not registered")

// Register resolves a schema name to a locator: a file path, a file://
// URL or an http(s):// URL.
type Register interface {
	SchemaURL(name string) (string, error)
}

// Static is a fixed name to locator table.
type Static map[string]string

// SchemaURL returns the locator registered for name.
func (s Static) SchemaURL(name string) (string, error) {
	loc, ok := s[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSchemaUnknown, name)
	}
	return loc, nil
}

// Names returns the registered schema names in sorted order.
func (s Static) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rooted returns a copy of s in which relative file paths are resolved
// against dir. URLs are left untouched.
func (s Static) Rooted(dir string) Static {
	out := make(Static, len(s))
	for name, loc := range s {
		if scheme(loc) == "" && !filepath.IsAbs(loc) {
			loc = filepath.Join(dir, loc)
		}
		out[name] = loc
	}
	return out
}
