package paths

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SlugAnchor converts heading text into the id emitted for that heading, mirroring the
// GitHub heading-id scheme: lowercase, whitespace becomes "-", punctuation is dropped.
// Hyphens and underscores already in the text are kept, runs are not collapsed.
func SlugAnchor(text string) string {
	// A Caser holds state, so one per call.
	lower := cases.Lower(language.Und).String(text)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('-')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SlugTag slugifies each segment of a hierarchical tag.
func SlugTag(tag string) string {
	segments := strings.Split(tag, "/")
	for i, seg := range segments {
		segments[i] = Sluggify(seg)
	}
	return strings.Join(segments, "/")
}

// TagPrefixes expands a hierarchical tag into every ancestor: a/b/c yields a, a/b, a/b/c.
func TagPrefixes(tag string) []string {
	segments := strings.Split(tag, "/")
	out := make([]string, 0, len(segments))
	for i := range segments {
		out = append(out, strings.Join(segments[:i+1], "/"))
	}
	return out
}
