package paths

import (
	"net/url"
	"strings"
	"unicode"
)

// Sluggify normalises text segment by segment. Slashes are structure, not characters,
// so they survive untouched.
func Sluggify(s string) string {
	segments := strings.Split(s, "/")
	for i, seg := range segments {
		segments[i] = sluggifySegment(seg)
	}
	return strings.TrimSuffix(strings.Join(segments, "/"), "/")
}

func sluggifySegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg))
	for _, r := range seg {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('-')
		case r == '&':
			b.WriteString("-and-")
		case r == '%', r == '?', r == '#':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SlugifyFilePath turns a content path into its FullSlug. Content pages (.md, .html or no
// extension) lose their extension; other assets keep it unless excludeExt is set.
func SlugifyFilePath(fp FilePath, excludeExt bool) FullSlug {
	s := StripSlashes(string(fp), false)
	ext, _ := FileExtension(s)
	body := strings.TrimSuffix(s, ext)
	if excludeExt || ext == ".md" || ext == ".html" {
		ext = ""
	}

	slug := Sluggify(body)
	if EndsWithSegment(slug, "_index") {
		slug = strings.TrimSuffix(slug, "_index") + "index"
	}
	return FullSlug(slug + ext)
}

// SimplifySlug returns the pretty form of a slug: a trailing index segment is dropped
// and the root collapses to "/".
func SimplifySlug(fp FullSlug) SimpleSlug {
	res := StripSlashes(TrimSegmentSuffix(string(fp), "index"), true)
	if res == "" {
		return "/"
	}
	return SimpleSlug(res)
}

// PathToRoot returns the relative path from the directory a slug is emitted in back to
// the site root: a/b/c gives ../..
func PathToRoot(slug FullSlug) RelativeURL {
	var ups []string
	for _, seg := range strings.Split(string(slug), "/") {
		if seg != "" {
			ups = append(ups, "..")
		}
	}
	if len(ups) <= 1 {
		return "."
	}
	return RelativeURL(strings.Join(ups[1:], "/"))
}

// ResolveRelative returns the link from the page current to target. target may be a
// FullSlug or a SimpleSlug.
func ResolveRelative[T ~string](current FullSlug, target T) RelativeURL {
	return RelativeURL(JoinSegments(string(PathToRoot(current)), string(SimplifySlug(FullSlug(target)))))
}

// JoinSegments joins path parts with exactly one slash between them. A leading slash on
// the first part and a trailing slash on the last part are preserved, and "https://host"
// style prefixes pass through intact.
func JoinSegments(parts ...string) string {
	if len(parts) == 0 {
		return ""
	}

	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "/" {
			continue
		}
		kept = append(kept, StripSlashes(p, false))
	}
	joined := strings.Join(kept, "/")

	if strings.HasPrefix(parts[0], "/") {
		joined = "/" + joined
	}
	if strings.HasSuffix(parts[len(parts)-1], "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// SplitAnchor separates a link from its fragment. PDF fragments such as page=3 are
// handed to the viewer verbatim; all others are normalised to heading ids.
func SplitAnchor(link string) (string, string) {
	fp, anchor, found := strings.Cut(link, "#")
	if !found {
		return fp, ""
	}
	if strings.HasSuffix(fp, ".pdf") {
		return fp, "#" + anchor
	}
	return fp, "#" + SlugAnchor(anchor)
}

func isRelativeSegment(seg string) bool {
	return seg == "" || seg == "." || seg == ".."
}

// TransformInternalLink normalises an authored link into a RelativeURL. The leading run
// of ., .. and empty segments is kept verbatim; the rest is slugified.
func TransformInternalLink(link string) RelativeURL {
	decoded, err := decodeURI(link)
	if err != nil {
		decoded = link
	}
	fplike, anchor := SplitAnchor(decoded)

	folder := IsFolderPath(fplike)
	segments := strings.Split(fplike, "/")
	split := 0
	for split < len(segments) && isRelativeSegment(segments[split]) {
		split++
	}
	prefix := make([]string, 0, split)
	for _, seg := range segments[:split] {
		if seg != "" {
			prefix = append(prefix, seg)
		}
	}
	rest := make([]string, 0, len(segments)-split)
	for _, seg := range segments[split:] {
		if seg != "" {
			rest = append(rest, seg)
		}
	}

	simple := SimplifySlug(SlugifyFilePath(FilePath(strings.Join(rest, "/")), false))
	joined := JoinSegments(strings.Join(prefix, "/"), StripSlashes(string(simple), false))

	trail := ""
	if folder {
		trail = "/"
	}
	return RelativeURL(addRelativeToStart(joined) + trail + anchor)
}

// uriReserved stays percent-encoded when a link is decoded, so an escaped # or ? is
// part of the file name rather than an anchor or query.
const uriReserved = ";/?:@&=+$,#"

// decodeURI unescapes %XX sequences except those encoding a reserved character.
func decodeURI(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", url.EscapeError(s[i:])
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", url.EscapeError(s[i : i+3])
		}
		if c := hi<<4 | lo; strings.IndexByte(uriReserved, c) >= 0 {
			b.WriteString(s[i : i+3])
		} else {
			b.WriteByte(c)
		}
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func addRelativeToStart(s string) string {
	if s == "" {
		return "."
	}
	if !strings.HasPrefix(s, ".") {
		return JoinSegments(".", s)
	}
	return s
}
