package spec

import (
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// IsTableSource reports whether src names a table (optionally schema
// qualified) rather than holding a SQL query.
func IsTableSource(src string) bool {
	return identifierPattern.MatchString(strings.TrimSpace(src))
}

func containsPlaceholder(src string) bool {
	return strings.Contains(src, FilterPlaceholder)
}
