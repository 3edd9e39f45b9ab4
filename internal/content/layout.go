package content

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

//go:embed templates_defaults/*.tmpl
var embeddedTemplates embed.FS

// Layout wraps rendered page bodies in the site chrome.
type Layout struct {
	tmpl   *template.Template
	source []byte
}

// ParseLayout compiles a user layout; empty src selects the embedded default.
func ParseLayout(src []byte) (*Layout, error) {
	if len(bytes.TrimSpace(src)) == 0 {
		b, err := embeddedTemplates.ReadFile("templates_defaults/page.html.tmpl")
		if err != nil {
			panic(fmt.Sprintf("embedded default layout missing: %v", err))
		}
		src = b
	}
	t, err := template.New("page").Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	return &Layout{tmpl: t, source: src}, nil
}

// Source returns the template text the layout was compiled from.
func (l *Layout) Source() []byte { return l.source }

// LinkData is a rendered link in a page's chrome.
type LinkData struct {
	Title string
	Href  string
}

// PageData is what the layout template sees.
type PageData struct {
	SiteTitle string
	Locale    string
	Title     string
	Slug      paths.FullSlug
	// Root is the relative path from this page to the site root, without trailing slash.
	Root      string
	Canonical string
	Content   template.HTML
	Tags      []LinkData
	Backlinks []LinkData
}

func (l *Layout) Render(data PageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render layout for %s: %w", data.Slug, err)
	}
	return buf.Bytes(), nil
}

func pageData(ctx *BuildCtx, slug paths.FullSlug, title string, body template.HTML) PageData {
	d := PageData{
		SiteTitle: ctx.Title,
		Locale:    ctx.Locale,
		Title:     title,
		Slug:      slug,
		Root:      string(paths.PathToRoot(slug)),
		Content:   body,
	}
	if ctx.BaseURL != "" {
		d.Canonical = paths.JoinSegments(ctx.BaseURL, string(paths.SimplifySlug(slug)))
	}
	return d
}
