// Package expressions holds the fixed grammars that names, identifiers and
// commit metadata in a store must match.
package expressions

import "regexp"

const identifier = `[a-zA-Z_][a-zA-Z0-9_-]*`

var (
	// StoreName matches store names such as "org.example.store.1".
	StoreName = regexp.MustCompile(`^[a-zA-Z0-9_-]+(\.[a-zA-Z0-9_-]+)*$`)

	// SchemaName matches versioned dotted schema names: ident(.ident)*.N
	SchemaName = regexp.MustCompile(`^` + identifier + `(\.` + identifier + `)*\.[0-9]+$`)

	// ClassName matches class names. Property and service names share it.
	ClassName = regexp.MustCompile(`^` + identifier + `$`)

	// PropertyName matches property names.
	PropertyName = ClassName

	// ServiceName matches service aliases in consonant.yaml.
	ServiceName = ClassName

	// ObjectUUID matches lowercase canonical UUIDs.
	ObjectUUID = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// CommitSHA matches short (7+) or full hex commit ids. Native
	// repositories use 64 characters, Git repositories 40.
	CommitSHA = regexp.MustCompile(`^[0-9a-f]{7,64}$`)

	// Identity matches author/committer strings "Name <email>".
	Identity = regexp.MustCompile(`^([^<>]+) <([^<>]+)>$`)

	// Timestamp matches "<seconds> <+|-HHMM>".
	Timestamp = regexp.MustCompile(`^([0-9]+) ([+-])([0-9]{2})([0-9]{2})$`)
)

// ValidStoreName reports whether s is a valid store name.
func ValidStoreName(s string) bool { return StoreName.MatchString(s) }

// ValidSchemaName reports whether s is a valid versioned schema name.
func ValidSchemaName(s string) bool { return SchemaName.MatchString(s) }

// ValidClassName reports whether s is a valid class name.
func ValidClassName(s string) bool { return ClassName.MatchString(s) }

// ValidPropertyName reports whether s is a valid property name.
func ValidPropertyName(s string) bool { return PropertyName.MatchString(s) }

// ValidServiceName reports whether s is a valid service alias.
func ValidServiceName(s string) bool { return ServiceName.MatchString(s) }

// ValidObjectUUID reports whether s is a valid object UUID.
func ValidObjectUUID(s string) bool { return ObjectUUID.MatchString(s) }

// ValidCommitSHA reports whether s is a short or full commit id.
func ValidCommitSHA(s string) bool { return CommitSHA.MatchString(s) }

// ValidIdentity reports whether s has the form "Name <email>".
func ValidIdentity(s string) bool { return Identity.MatchString(s) }

// ValidTimestamp reports whether s has the form "<seconds> <+|-HHMM>".
func ValidTimestamp(s string) bool { return Timestamp.MatchString(s) }

// SplitIdentity returns the name and email parts of an identity string.
func SplitIdentity(s string) (name, email string, ok bool) {
	m := Identity.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
