package content

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/gardener/internal/paths"
	"git.home.luguber.info/inful/gardener/internal/rebase"
)

// PageEmitter renders every published page through the layout, splicing transclusions
// and listing backlinks.
type PageEmitter struct {
	Layout *Layout
}

func (PageEmitter) Name() string { return "pages" }

func (e PageEmitter) Emit(ctx *BuildCtx, pages []*Page) ([]paths.FilePath, error) {
	bySlug := indexBySlug(pages)
	backlinks := collectBacklinks(pages)

	emitted := make([]paths.FilePath, 0, len(pages))
	for _, p := range pages {
		body, err := renderBody(p, bySlug)
		if err != nil {
			return emitted, err
		}
		data := pageData(ctx, p.Slug, p.Title(), body)
		for _, tag := range p.Meta.Tags {
			slug := paths.SlugTag(paths.StripSlashes(tag, false))
			if slug == "" {
				continue
			}
			data.Tags = append(data.Tags, LinkData{
				Title: tag,
				Href:  string(paths.ResolveRelative(p.Slug, paths.FullSlug("tags/"+slug))),
			})
		}
		for _, src := range backlinks[p.Slug] {
			data.Backlinks = append(data.Backlinks, LinkData{
				Title: src.Title(),
				Href:  string(paths.ResolveRelative(p.Slug, src.Slug)),
			})
		}

		out, err := e.Layout.Render(data)
		if err != nil {
			return emitted, err
		}
		fp := pageOutput(p.Slug)
		if err := writeOutput(ctx.OutputDir, fp, out); err != nil {
			return emitted, err
		}
		emitted = append(emitted, fp)
	}
	return emitted, nil
}

func pageOutput(slug paths.FullSlug) paths.FilePath {
	return paths.FilePath(string(slug) + ".html")
}

func writeOutput(outDir string, fp paths.FilePath, data []byte) error {
	dest := filepath.Join(outDir, filepath.FromSlash(string(fp)))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir for %s: %w", fp, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fp, err)
	}
	return nil
}

func indexBySlug(pages []*Page) map[paths.FullSlug]*Page {
	m := make(map[paths.FullSlug]*Page, len(pages))
	for _, p := range pages {
		m[p.Slug] = p
	}
	return m
}

func lookupPage(bySlug map[paths.FullSlug]*Page, slug paths.FullSlug) *Page {
	if p, ok := bySlug[slug]; ok {
		return p
	}
	if p, ok := bySlug[slug+"/index"]; ok {
		return p
	}
	if trimmed := paths.TrimSegmentSuffix(string(slug), "index"); trimmed != string(slug) {
		return bySlug[paths.FullSlug(strings.TrimSuffix(trimmed, "/"))]
	}
	return nil
}

func collectBacklinks(pages []*Page) map[paths.FullSlug][]*Page {
	bySlug := indexBySlug(pages)
	out := make(map[paths.FullSlug][]*Page)
	for _, p := range pages {
		for _, dest := range p.Links {
			if target := lookupPage(bySlug, dest); target != nil && target != p {
				out[target.Slug] = append(out[target.Slug], p)
			}
		}
	}
	for slug := range out {
		srcs := out[slug]
		sort.Slice(srcs, func(i, j int) bool { return srcs[i].Slug < srcs[j].Slug })
	}
	return out
}

// renderBody serialises a page's tree with its transclusions filled in. The page's own
// tree is left untouched so the next pass can splice again.
func renderBody(p *Page, bySlug map[paths.FullSlug]*Page) (template.HTML, error) {
	if p.Tree == nil {
		return "", nil
	}
	root := rebase.Clone(p.Tree)
	var slots []*html.Node
	walkElements(root, func(n *html.Node) {
		if n.Data == "blockquote" && hasClass(n, "transclude") && n.FirstChild == nil {
			slots = append(slots, n)
		}
	})
	for _, n := range slots {
		slug, ok := getAttr(n, "data-slug")
		if !ok {
			continue
		}
		target := lookupPage(bySlug, paths.FullSlug(slug))
		if target == nil || target == p || target.Tree == nil {
			continue
		}
		rawURL, _ := getAttr(n, "data-url")
		_, anchor := paths.SplitAnchor(rawURL)
		for _, child := range sectionNodes(target.Tree, strings.TrimPrefix(anchor, "#")) {
			n.AppendChild(rebase.NormalizeElement(child, p.Slug, target.Slug))
		}
	}

	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("serialise %s: %w", p.Slug, err)
		}
	}
	return template.HTML(b.String()), nil // #nosec G203 -- body is rendered markdown
}

// sectionNodes returns the top-level nodes of tree to transclude. An anchor naming a
// heading selects that heading and everything up to the next heading of the same or a
// higher level; otherwise the whole tree is used.
func sectionNodes(tree *html.Node, anchor string) []*html.Node {
	var all []*html.Node
	for c := tree.FirstChild; c != nil; c = c.NextSibling {
		all = append(all, c)
	}
	if anchor == "" {
		return all
	}
	start, level := -1, 0
	for i, n := range all {
		if l := headingLevel(n); l > 0 {
			if id, _ := getAttr(n, "id"); id == anchor {
				start, level = i, l
				break
			}
		}
	}
	if start < 0 {
		return all
	}
	end := len(all)
	for i := start + 1; i < len(all); i++ {
		if l := headingLevel(all[i]); l > 0 && l <= level {
			end = i
			break
		}
	}
	return all[start:end]
}

func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode || len(n.Data) != 2 || n.Data[0] != 'h' {
		return 0
	}
	if d := n.Data[1]; d >= '1' && d <= '6' {
		return int(d - '0')
	}
	return 0
}
