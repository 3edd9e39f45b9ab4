package content

import (
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/gardener/internal/frontmatter"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Page is one Markdown note moving through the pipeline.
type Page struct {
	// Path is relative to the content directory, NFC-normalised, slash separated.
	Path paths.FilePath
	Slug paths.FullSlug
	Meta frontmatter.Fields
	// Body is the Markdown after the header; transformers may rewrite it before render.
	Body []byte
	// Fingerprint identifies the source bytes (header and body).
	Fingerprint string

	// Tree is the rendered body, rooted at a detached <div>. Set by the render step.
	Tree *html.Node
	// Links are the slugs this page links to, filled in by the link crawl.
	Links []paths.FullSlug
	// Embeds are the slugs this page transcludes.
	Embeds []paths.FullSlug
}

// Title returns the frontmatter title, falling back to the last slug segment.
func (p *Page) Title() string {
	if p.Meta.Title != "" {
		return p.Meta.Title
	}
	s := string(paths.SimplifySlug(p.Slug))
	if s == "/" {
		return "Home"
	}
	s = paths.StripSlashes(s, false)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}

// Tags returns the page's tags slugified, each expanded to all of its prefixes.
func (p *Page) Tags() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range p.Meta.Tags {
		tag := paths.SlugTag(paths.StripSlashes(raw, false))
		if tag == "" {
			continue
		}
		for _, prefix := range paths.TagPrefixes(tag) {
			if _, ok := seen[prefix]; ok {
				continue
			}
			seen[prefix] = struct{}{}
			out = append(out, prefix)
		}
	}
	return out
}

// AliasSlugs returns the extra slugs a page answers to: each alias plus the permalink.
func (p *Page) AliasSlugs() []paths.FullSlug {
	var out []paths.FullSlug
	add := func(raw string) {
		if s := aliasSlug(raw); s != "" && s != p.Slug {
			out = append(out, s)
		}
	}
	for _, a := range p.Meta.Aliases {
		add(a)
	}
	add(p.Meta.Permalink)
	return out
}

func aliasSlug(raw string) paths.FullSlug {
	folder := paths.IsFolderPath(raw)
	s := paths.Sluggify(paths.StripSlashes(raw, false))
	if s == "" {
		return ""
	}
	if folder {
		s += "/index"
	}
	return paths.FullSlug(s)
}

// Change names a content file touched since the last pass.
type Change struct {
	Path    paths.FilePath
	Removed bool
}

// Result summarises one pipeline pass.
type Result struct {
	Pages   int
	Assets  int
	Emitted []paths.FilePath
	// Partial is true when only changed inputs were re-processed.
	Partial bool
}
