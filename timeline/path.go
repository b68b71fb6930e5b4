package timeline

import "strings"

// NormalizePath converts an OS path separator style into the repository's
// stored form: forward-slash separated, relative, no trailing separator
// (spec.md §3 "Version... relative path (normalised with / separator, no
// trailing separator)").
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	return p
}
