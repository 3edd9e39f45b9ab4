package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// AliasEmitter writes redirect stubs for every alias and permalink.
type AliasEmitter struct{}

func (AliasEmitter) Name() string { return "aliases" }

func (AliasEmitter) Emit(ctx *BuildCtx, pages []*Page) ([]paths.FilePath, error) {
	bySlug := indexBySlug(pages)
	var emitted []paths.FilePath
	for _, p := range pages {
		for _, alias := range p.AliasSlugs() {
			if _, taken := bySlug[alias]; taken {
				continue
			}
			dest := paths.ResolveRelative(alias, p.Slug)
			fp := pageOutput(alias)
			if err := writeOutput(ctx.OutputDir, fp, redirectPage(ctx, p.Title(), string(dest))); err != nil {
				return emitted, err
			}
			emitted = append(emitted, fp)
		}
	}
	return emitted, nil
}

func redirectPage(ctx *BuildCtx, title, dest string) []byte {
	lang := ctx.Locale
	if lang == "" {
		lang = "en"
	}
	d := html.EscapeString(dest)
	return []byte(`<!DOCTYPE html>
<html lang="` + html.EscapeString(lang) + `">
<head>
<title>` + html.EscapeString(title) + `</title>
<link rel="canonical" href="` + d + `">
<meta name="robots" content="noindex">
<meta charset="utf-8">
<meta http-equiv="refresh" content="0; url=` + d + `">
</head>
</html>
`)
}

// AssetEmitter copies non-Markdown content files to their slug paths.
type AssetEmitter struct{}

func (AssetEmitter) Name() string { return "assets" }

func (AssetEmitter) Emit(ctx *BuildCtx, _ []*Page) ([]paths.FilePath, error) {
	slugs := make([]paths.FullSlug, 0, len(ctx.Assets))
	for slug := range ctx.Assets {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool { return slugs[i] < slugs[j] })

	emitted := make([]paths.FilePath, 0, len(slugs))
	for _, slug := range slugs {
		fp, err := copyAsset(ctx, slug, ctx.Assets[slug])
		if err != nil {
			return emitted, err
		}
		emitted = append(emitted, fp)
	}
	return emitted, nil
}

func (e AssetEmitter) PartialEmit(ctx *BuildCtx, _ []*Page, changes []Change) ([]paths.FilePath, error) {
	var emitted []paths.FilePath
	for _, ch := range changes {
		if isNote(string(ch.Path)) {
			continue
		}
		slug := paths.SlugifyFilePath(ch.Path, false)
		if ch.Removed {
			dest := filepath.Join(ctx.OutputDir, filepath.FromSlash(string(assetOutput(slug, ch.Path))))
			if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return emitted, fmt.Errorf("remove asset %s: %w", ch.Path, err)
			}
			continue
		}
		src, ok := ctx.Assets[slug]
		if !ok {
			continue
		}
		fp, err := copyAsset(ctx, slug, src)
		if err != nil {
			return emitted, err
		}
		emitted = append(emitted, fp)
	}
	return emitted, nil
}

// assetOutput keeps the source extension when slugification dropped it (.html assets).
func assetOutput(slug paths.FullSlug, src paths.FilePath) paths.FilePath {
	if _, ok := paths.FileExtension(string(slug)); ok {
		return paths.FilePath(slug)
	}
	ext, _ := paths.FileExtension(string(src))
	return paths.FilePath(string(slug) + ext)
}

func copyAsset(ctx *BuildCtx, slug paths.FullSlug, src paths.FilePath) (paths.FilePath, error) {
	fp := assetOutput(slug, src)
	dest := filepath.Join(ctx.OutputDir, filepath.FromSlash(string(fp)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create output dir for %s: %w", fp, err)
	}
	// #nosec G304 -- src comes from walking the content dir
	in, err := os.Open(filepath.Join(ctx.ContentDir, filepath.FromSlash(string(src))))
	if err != nil {
		return "", fmt.Errorf("open asset %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", fp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy asset %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", fp, err)
	}
	return fp, nil
}

// TagEmitter writes tags/<tag> for every tag prefix in use plus the tags/index listing.
type TagEmitter struct {
	Layout *Layout
}

func (TagEmitter) Name() string { return "tags" }

// TagSlugs returns the generated tag page slugs for a page set.
func TagSlugs(pages []*Page) []paths.FullSlug {
	tags := tagMembers(pages)
	if len(tags) == 0 {
		return nil
	}
	out := []paths.FullSlug{"tags/index"}
	for _, tag := range sortedKeys(tags) {
		out = append(out, paths.FullSlug("tags/"+tag))
	}
	return out
}

func (e TagEmitter) Emit(ctx *BuildCtx, pages []*Page) ([]paths.FilePath, error) {
	tags := tagMembers(pages)
	if len(tags) == 0 {
		return nil, nil
	}
	names := sortedKeys(tags)
	var emitted []paths.FilePath

	indexSlug := paths.FullSlug("tags/index")
	var idx strings.Builder
	idx.WriteString(`<ul class="tag-index">`)
	for _, tag := range names {
		href := paths.ResolveRelative(indexSlug, paths.FullSlug("tags/"+tag))
		fmt.Fprintf(&idx, `<li><a class="internal tag-link" href="%s">%s</a> (%d)</li>`,
			html.EscapeString(string(href)), html.EscapeString(tag), len(tags[tag]))
	}
	idx.WriteString(`</ul>`)
	fp, err := e.write(ctx, indexSlug, "All tags", idx.String())
	if err != nil {
		return emitted, err
	}
	emitted = append(emitted, fp)

	for _, tag := range names {
		slug := paths.FullSlug("tags/" + tag)
		var b strings.Builder
		b.WriteString(`<ul class="tag-members">`)
		for _, p := range tags[tag] {
			href := paths.ResolveRelative(slug, p.Slug)
			fmt.Fprintf(&b, `<li><a class="internal" href="%s">%s</a></li>`,
				html.EscapeString(string(href)), html.EscapeString(p.Title()))
		}
		b.WriteString(`</ul>`)
		fp, err := e.write(ctx, slug, "Tag: "+tag, b.String())
		if err != nil {
			return emitted, err
		}
		emitted = append(emitted, fp)
	}
	return emitted, nil
}

func (e TagEmitter) write(ctx *BuildCtx, slug paths.FullSlug, title, body string) (paths.FilePath, error) {
	out, err := e.Layout.Render(pageData(ctx, slug, title, template.HTML(body))) // #nosec G203 -- escaped above
	if err != nil {
		return "", err
	}
	fp := pageOutput(slug)
	return fp, writeOutput(ctx.OutputDir, fp, out)
}

func tagMembers(pages []*Page) map[string][]*Page {
	tags := make(map[string][]*Page)
	for _, p := range pages {
		for _, tag := range p.Tags() {
			tags[tag] = append(tags[tag], p)
		}
	}
	return tags
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentIndexPath is where the search/graph index is written.
const ContentIndexPath paths.FilePath = "static/contentIndex.json"

// IndexEntry is one page in the content index.
type IndexEntry struct {
	Slug     paths.FullSlug   `json:"slug"`
	FilePath paths.FilePath   `json:"filePath"`
	Title    string           `json:"title"`
	Links    []paths.FullSlug `json:"links"`
	Tags     []string         `json:"tags"`
	Content  string           `json:"content"`
}

// ContentIndexEmitter writes a JSON map from simple slug to page summary.
type ContentIndexEmitter struct{}

func (ContentIndexEmitter) Name() string { return "content-index" }

func (ContentIndexEmitter) Emit(ctx *BuildCtx, pages []*Page) ([]paths.FilePath, error) {
	index := make(map[paths.SimpleSlug]IndexEntry, len(pages))
	for _, p := range pages {
		entry := IndexEntry{
			Slug:     p.Slug,
			FilePath: p.Path,
			Title:    p.Title(),
			Links:    p.Links,
			Tags:     p.Tags(),
			Content:  textContent(p.Tree),
		}
		if entry.Links == nil {
			entry.Links = []paths.FullSlug{}
		}
		if entry.Tags == nil {
			entry.Tags = []string{}
		}
		index[paths.SimplifySlug(p.Slug)] = entry
	}
	data, err := json.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("encode content index: %w", err)
	}
	if err := writeOutput(ctx.OutputDir, ContentIndexPath, data); err != nil {
		return nil, err
	}
	return []paths.FilePath{ContentIndexPath}, nil
}

func textContent(n *xhtml.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// StaticEmitter writes the client bundle under static/.
type StaticEmitter struct{}

func (StaticEmitter) Name() string { return "static" }

func (StaticEmitter) Emit(ctx *BuildCtx, _ []*Page) ([]paths.FilePath, error) {
	if ctx.Bundle == nil {
		return nil, nil
	}
	emitted := make([]paths.FilePath, 0, len(ctx.Bundle.Files))
	for _, f := range ctx.Bundle.Files {
		fp := paths.FilePath("static/" + f.Name)
		if err := writeOutput(ctx.OutputDir, fp, f.Contents); err != nil {
			return emitted, err
		}
		emitted = append(emitted, fp)
	}
	return emitted, nil
}

// PartialEmit is a no-op: content changes never alter the bundle.
func (StaticEmitter) PartialEmit(*BuildCtx, []*Page, []Change) ([]paths.FilePath, error) {
	return nil, nil
}

// DefaultEmitters returns the built-in emitters bound to layout.
func DefaultEmitters(layout *Layout) []Emitter {
	return []Emitter{
		PageEmitter{Layout: layout},
		AliasEmitter{},
		AssetEmitter{},
		TagEmitter{Layout: layout},
		ContentIndexEmitter{},
		StaticEmitter{},
	}
}
