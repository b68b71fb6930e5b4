package workdir

import (
	"path"
	"strings"

	"github.com/uplo-tech/errors"
)

// dirName is the working directory's metadata subdirectory, always
// excluded from commits regardless of the ignore file (spec.md §4.10
// "The .versioning/ directory is always excluded").
const dirName = ".versioning"

// ErrBadMatcher is returned when an ignore file line names a matcher kind
// this build doesn't recognise.
var ErrBadMatcher = errors.New("unrecognised ignore matcher")

// Matcher decides whether a normalized, repository-relative path is
// excluded from commits (spec.md §4.10 "Ignore matchers").
type Matcher interface {
	Matches(relPath string) bool
}

// PrefixMatcher excludes any path starting with Prefix.
type PrefixMatcher struct {
	Prefix string
}

// Matches implements Matcher.
func (m PrefixMatcher) Matches(relPath string) bool {
	return strings.HasPrefix(relPath, m.Prefix)
}

// GlobMatcher excludes any path matching Pattern, using forward-slash
// glob semantics (path.Match, not filepath.Match, since stored paths are
// always normalized to forward slashes).
type GlobMatcher struct {
	Pattern string
}

// Matches implements Matcher.
func (m GlobMatcher) Matches(relPath string) bool {
	ok, err := path.Match(m.Pattern, relPath)
	return err == nil && ok
}

// ParseIgnore parses the newline-delimited ignore file grammar
// (spec.md §6 "Ignore file grammar"): each non-empty, non-"#"-prefixed
// line is one matcher, "prefix:<path>" or "glob:<glob>".
func ParseIgnore(data []byte) ([]Matcher, error) {
	var out []Matcher
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "prefix:"):
			out = append(out, PrefixMatcher{Prefix: strings.TrimPrefix(line, "prefix:")})
		case strings.HasPrefix(line, "glob:"):
			out = append(out, GlobMatcher{Pattern: strings.TrimPrefix(line, "glob:")})
		default:
			return nil, errors.Extend(ErrBadMatcher, errors.New(line))
		}
	}
	return out, nil
}

// IsIgnored reports whether relPath is excluded: unconditionally under
// .versioning, or matched by any of matchers.
func IsIgnored(relPath string, matchers []Matcher) bool {
	if relPath == dirName || strings.HasPrefix(relPath, dirName+"/") {
		return true
	}
	for _, m := range matchers {
		if m.Matches(relPath) {
			return true
		}
	}
	return false
}
