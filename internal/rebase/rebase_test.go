package rebase

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

func parseFragment(t *testing.T, src string) *html.Node {
	t.Helper()
	nodes, err := html.ParseFragment(strings.NewReader(src), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	return nodes[0]
}

func render(t *testing.T, n *html.Node) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, html.Render(&b, n))
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func find(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := find(c, tag); f != nil {
			return f
		}
	}
	return nil
}

func TestNormalizeElementRewritesRelative(t *testing.T) {
	src := parseFragment(t, `<div><a href="./d">d</a><img src="../x.png"><a href="https://example.com/a">ext</a><a href="/abs">root</a><a href="#top">frag</a></div>`)
	before := render(t, src)

	out := NormalizeElement(src, "index", "a/b/c")
	require.NotNil(t, out)

	assert.Equal(t, before, render(t, src), "source subtree must not be modified")

	links := []string{}
	for c := out.FirstChild; c != nil; c = c.NextSibling {
		if c.Data == "a" {
			links = append(links, attr(c, "href"))
		}
	}
	assert.Equal(t, []string{"./a/b/c/.././d", "https://example.com/a", "/abs", "#top"}, links)
	assert.Equal(t, "./a/b/c/../../x.png", attr(find(out, "img"), "src"))
}

// A rebased href, resolved from the embedding page, lands where the original href
// pointed from the page the fragment was rendered for.
func TestNormalizeElementPreservesTargets(t *testing.T) {
	site, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	pageURL := func(s paths.FullSlug) *url.URL {
		if s == "index" {
			return site
		}
		return site.ResolveReference(&url.URL{Path: string(paths.SimplifySlug(s))})
	}

	cases := []struct {
		embedding, origin paths.FullSlug
		href              string
	}{
		{"index", "a/b/c", "./d"},
		{"a/b/c", "index", "./e/f"},
		{"x/y", "a/b/c", "../../e/g/h"},
		{"a/b/index", "e/f", "./g/h"},
	}
	for _, tc := range cases {
		frag := parseFragment(t, `<a href="`+tc.href+`">x</a>`)
		out := NormalizeElement(frag, tc.embedding, tc.origin)

		want := pageURL(tc.origin).ResolveReference(mustParse(t, tc.href))
		got := pageURL(tc.embedding).ResolveReference(mustParse(t, attr(out, "href")))
		assert.Equal(t, want.String(), got.String(), "%s embedded in %s", tc.origin, tc.embedding)
	}
}

func mustParse(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestCloneDetached(t *testing.T) {
	frag := parseFragment(t, `<p class="x">hello <em>world</em></p>`)
	c := Clone(frag)
	assert.Nil(t, c.Parent)
	assert.Nil(t, c.NextSibling)
	assert.Equal(t, render(t, frag), render(t, c))

	c.Attr[0].Val = "changed"
	assert.Equal(t, "x", attr(frag, "class"))
	assert.Nil(t, Clone(nil))
}
