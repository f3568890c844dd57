package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcludeMatcher_DoubleStarMatchesAcrossSegments(t *testing.T) {
	m := newExcludeMatcher([]string{"**/node_modules/**"})

	assert.True(t, m.Match("node_modules/pkg/index.js"))
	assert.True(t, m.Match("a/b/node_modules/pkg/index.js"))
	assert.False(t, m.Match("src/index.js"))
}

func TestExcludeMatcher_MatchesTheDirectoryItself(t *testing.T) {
	// Directory walks prune an excluded subtree by testing the directory
	// path alone, without a trailing segment.
	m := newExcludeMatcher([]string{"**/node_modules/**"})

	assert.True(t, m.Match("node_modules"))
	assert.True(t, m.Match("a/node_modules"))
}

func TestExcludeMatcher_SingleStarStaysWithinSegment(t *testing.T) {
	m := newExcludeMatcher([]string{"*.tmp"})

	assert.True(t, m.Match("file.tmp"))
	assert.False(t, m.Match("dir/file.tmp"))
}

func TestExcludeMatcher_NoPatternsMatchesNothing(t *testing.T) {
	m := newExcludeMatcher(nil)
	assert.False(t, m.Match("anything/at/all.md"))
}

func TestExcludeMatcher_BackslashPathsNormalizedToSlash(t *testing.T) {
	m := newExcludeMatcher([]string{"**/vendor/**"})
	assert.True(t, m.Match(`a\vendor\pkg.go`))
}
