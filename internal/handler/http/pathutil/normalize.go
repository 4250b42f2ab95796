// Package pathutil maps request paths onto route templates so that metric
// labels stay low-cardinality.
package pathutil

import (
	"regexp"
	"strings"
)

type pathPattern struct {
	pattern  *regexp.Regexp
	template string
}

// Evaluated in order, most specific first.
var pathPatterns = []pathPattern{
	{pattern: regexp.MustCompile(`^/api/analyses/[^/]+$`), template: "/api/analyses/:requestId"},
}

// NormalizePath strips the query string and a trailing slash, then replaces
// known dynamic routes by their template. Unknown paths are returned as is.
//
//	NormalizePath("/api/analyses/0cc175b9") // "/api/analyses/:requestId"
//	NormalizePath("/api/analyze")           // "/api/analyze"
func NormalizePath(path string) string {
	if before, _, ok := strings.Cut(path, "?"); ok {
		path = before
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.pattern.MatchString(path) {
			return p.template
		}
	}
	return path
}
