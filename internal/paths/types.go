// Package paths defines the identifier families used across the site build and the
// pure functions converting between them.
//
// All identifiers are plain strings. A value only "is" a FullSlug, SimpleSlug,
// FilePath or RelativeURL when it came out of a producing function in this package or
// passed the matching predicate. Nothing here returns an error: handing a malformed
// identifier to a transformation is a caller bug, and the predicates exist so callers
// can reject such input first.
//
//	FilePath     content/notes/My Note.md   on-disk asset, always has an extension
//	FullSlug     notes/My-Note              canonical page identifier, may end in index
//	SimpleSlug   notes/                     pretty identifier, never ends in index
//	RelativeURL  ../notes/My-Note           href emitted into HTML, always starts with a dot
package paths

import (
	"net/url"
	"regexp"
	"strings"
)

// FilePath is a path to a content asset relative to the content root.
type FilePath string

// FullSlug is the canonical, corpus-unique identifier of a page.
type FullSlug string

// SimpleSlug is the display and comparison form of a FullSlug.
type SimpleSlug string

// RelativeURL is a link value that resolves from the page it is emitted on.
type RelativeURL string

var extensionRe = regexp.MustCompile(`\.[A-Za-z0-9]+$`)

// FileExtension returns the trailing dotted extension of s, including the dot.
func FileExtension(s string) (string, bool) {
	ext := extensionRe.FindString(s)
	return ext, ext != ""
}

func hasFileExtension(s string) bool {
	_, ok := FileExtension(s)
	return ok
}

func containsForbiddenCharacters(s string) bool {
	return strings.ContainsAny(s, " #?&")
}

// IsFilePath reports whether s has a file extension and is not a relative path.
func IsFilePath(s string) bool {
	return !strings.HasPrefix(s, ".") && hasFileExtension(s)
}

// IsFullSlug reports whether s is a valid FullSlug.
func IsFullSlug(s string) bool {
	validStart := !strings.HasPrefix(s, ".") && !strings.HasPrefix(s, "/")
	validEnding := !strings.HasSuffix(s, "/")
	return validStart && validEnding && !containsForbiddenCharacters(s)
}

// IsSimpleSlug reports whether s is a valid SimpleSlug. The root marker "/" is the only
// simple slug allowed to start with a slash.
func IsSimpleSlug(s string) bool {
	validStart := !strings.HasPrefix(s, ".") && (len(s) <= 1 || !strings.HasPrefix(s, "/"))
	validEnding := !EndsWithSegment(s, "index")
	return validStart && validEnding && !containsForbiddenCharacters(s) && !hasFileExtension(s)
}

// IsRelativeURL reports whether s is safe to emit as a page-relative href.
func IsRelativeURL(s string) bool {
	validStart := strings.HasPrefix(s, ".")
	validEnding := !EndsWithSegment(s, "index")
	ext, _ := FileExtension(s)
	return validStart && validEnding && ext != ".md" && ext != ".html"
}

// IsAbsoluteURL reports whether s parses as a URL carrying a scheme.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	return u.Host != "" || u.Opaque != "" || u.Path != ""
}

// EndsWithSegment reports whether s is exactly seg or ends with "/"+seg.
func EndsWithSegment(s, seg string) bool {
	return s == seg || strings.HasSuffix(s, "/"+seg)
}

// TrimSegmentSuffix removes a trailing seg segment, leaving the separating slash.
func TrimSegmentSuffix(s, seg string) string {
	if EndsWithSegment(s, seg) {
		return s[:len(s)-len(seg)]
	}
	return s
}

// StripSlashes removes one leading slash and, unless onlyPrefix, one trailing slash.
func StripSlashes(s string, onlyPrefix bool) string {
	s = strings.TrimPrefix(s, "/")
	if !onlyPrefix {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}

// IsFolderPath reports whether a link-like string denotes a directory page.
func IsFolderPath(s string) bool {
	return strings.HasSuffix(s, "/") ||
		EndsWithSegment(s, "index") ||
		EndsWithSegment(s, "index.md") ||
		EndsWithSegment(s, "index.html")
}
