package watcher

import (
	"regexp"
	"strings"
)

// excludeMatcher tests a slash-separated relative path against a set of
// gitignore-flavored glob patterns where "**" matches across path
// segments and "*" matches within one segment.
type excludeMatcher struct {
	patterns []*regexp.Regexp
}

func newExcludeMatcher(globs []string) *excludeMatcher {
	m := &excludeMatcher{}
	for _, g := range globs {
		if re, err := globToRegexp(g); err == nil {
			m.patterns = append(m.patterns, re)
		}
	}
	return m
}

func (m *excludeMatcher) Match(relPath string) bool {
	relPath = filepathToSlash(relPath)
	for _, re := range m.patterns {
		if re.MatchString(relPath) {
			return true
		}
	}
	return false
}

// globToRegexp translates a "**"/"*" glob into an anchored regexp.
// A leading "**/" matches zero or more path segments (so
// "**/node_modules/**" also excludes a top-level node_modules), and a
// trailing "/**" matches the directory itself as well as anything
// under it.
func globToRegexp(glob string) (*regexp.Regexp, error) {
	glob = filepathToSlash(glob)
	var b strings.Builder
	b.WriteString("^")

	i := 0
	for i < len(glob) {
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 3
		case glob[i:] == "/**":
			b.WriteString("(?:/.*)?")
			i += 3
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i += 2
		case glob[i] == '*':
			b.WriteString("[^/]*")
			i++
		case glob[i] == '?':
			b.WriteString("[^/]")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(glob[i])))
			i++
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
