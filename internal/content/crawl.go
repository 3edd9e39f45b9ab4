package content

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// srcTags carry a src attribute that points at site content.
var srcTags = map[string]struct{}{
	"img": {}, "video": {}, "audio": {}, "iframe": {}, "source": {},
}

// LinkCrawler resolves every internal reference in the rendered tree through the link
// resolver and records the page's outgoing links and embeds.
type LinkCrawler struct{}

func (LinkCrawler) Name() string { return "links" }

func (LinkCrawler) Transform(ctx *BuildCtx, p *Page) error {
	if p.Tree == nil {
		return nil
	}
	opts := links.TransformOptions{Strategy: ctx.Strategy, AllSlugs: ctx.AllSlugs}
	outgoing := make(map[paths.FullSlug]struct{})
	p.Links = p.Links[:0]
	p.Embeds = p.Embeds[:0]

	walkElements(p.Tree, func(n *html.Node) {
		switch {
		case n.Data == "a":
			href, ok := getAttr(n, "href")
			if !ok {
				return
			}
			if strings.HasPrefix(href, "#") {
				setAttr(n, "href", sameDocAnchor(href))
				addClass(n, "internal")
				return
			}
			if paths.IsAbsoluteURL(href) {
				addClass(n, "external")
				return
			}
			rel := links.TransformLink(p.Slug, href, opts)
			setAttr(n, "href", string(rel))
			addClass(n, "internal")
			if dest, ok := resolveTarget(p.Slug, rel); ok {
				if _, seen := outgoing[dest]; !seen && dest != p.Slug {
					outgoing[dest] = struct{}{}
					p.Links = append(p.Links, dest)
				}
			}

		case n.Data == "blockquote" && hasClass(n, "transclude"):
			raw, ok := getAttr(n, "data-url")
			if !ok {
				return
			}
			rel := links.TransformLink(p.Slug, raw, opts)
			setAttr(n, "data-url", string(rel))
			if dest, ok := resolveTarget(p.Slug, rel); ok {
				setAttr(n, "data-slug", string(dest))
				p.Embeds = append(p.Embeds, dest)
			}

		default:
			if _, ok := srcTags[n.Data]; !ok {
				return
			}
			src, ok := getAttr(n, "src")
			if !ok || paths.IsAbsoluteURL(src) || strings.HasPrefix(src, "data:") {
				return
			}
			setAttr(n, "src", string(links.TransformLink(p.Slug, src, opts)))
		}
	})
	return nil
}

func sameDocAnchor(href string) string {
	raw, err := url.PathUnescape(href[1:])
	if err != nil {
		raw = href[1:]
	}
	return "#" + paths.SlugAnchor(raw)
}

var crawlBase = &url.URL{Scheme: "https", Host: "base.invalid", Path: "/"}

// resolveTarget turns an emitted href back into the slug it addresses, resolving it the
// way a browser would from the page src.
func resolveTarget(src paths.FullSlug, rel paths.RelativeURL) (paths.FullSlug, bool) {
	ref, err := url.Parse(string(rel))
	if err != nil {
		return "", false
	}
	page := crawlBase.ResolveReference(&url.URL{Path: paths.StripSlashes(string(src), true)})
	dest := page.ResolveReference(ref)

	p, _ := paths.SplitAnchor(dest.Path)
	if strings.HasSuffix(p, "/") {
		p += "index"
	}
	full := paths.StripSlashes(p, true)
	if full == "" || !paths.IsFullSlug(full) {
		return "", false
	}
	return paths.FullSlug(full), true
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, _ := getAttr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	if hasClass(n, class) {
		return
	}
	v, _ := getAttr(n, "class")
	setAttr(n, "class", strings.TrimSpace(v+" "+class))
}
