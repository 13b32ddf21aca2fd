// Package pathutil has small path predicates shared by the site handler and
// content loader.
package pathutil

import "strings"

// HasDotSegments reports whether any slash-separated segment of p is "." or
// "..". Dotfiles ("/.well-known") and longer runs of dots ("/...") are fine;
// only exact dot segments can escape a prefix.
func HasDotSegments(p string) bool {
	for p != "" {
		var seg string
		seg, p, _ = strings.Cut(p, "/")
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}
