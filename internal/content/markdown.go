package content

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// MarkdownTransformer renders the page body to HTML and parses the result into
// Page.Tree. Heading ids follow paths.SlugAnchor so that links with anchors land.
type MarkdownTransformer struct {
	md goldmark.Markdown
}

func NewMarkdownTransformer() *MarkdownTransformer {
	return &MarkdownTransformer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// Wikilink embeds are emitted as raw HTML.
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
	}
}

func (*MarkdownTransformer) Name() string { return "markdown" }

func (m *MarkdownTransformer) Transform(_ *BuildCtx, p *Page) error {
	var buf bytes.Buffer
	ctx := parser.NewContext(parser.WithIDs(newAnchorIDs()))
	if err := m.md.Convert(p.Body, &buf, parser.WithContext(ctx)); err != nil {
		return fmt.Errorf("render %s: %w", p.Path, err)
	}
	tree, err := parseBody(&buf)
	if err != nil {
		return fmt.Errorf("parse rendered %s: %w", p.Path, err)
	}
	p.Tree = tree
	return nil
}

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// parseBody parses an HTML fragment under a detached <div> root.
func parseBody(r *bytes.Buffer) (*html.Node, error) {
	nodes, err := html.ParseFragment(r, bodyContext)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root, nil
}

// anchorIDs hands out heading ids, suffixing -1, -2 ... on collisions.
type anchorIDs struct {
	used map[string]struct{}
}

func newAnchorIDs() *anchorIDs {
	return &anchorIDs{used: make(map[string]struct{})}
}

func (a *anchorIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	base := paths.SlugAnchor(string(value))
	if base == "" {
		base = "heading"
	}
	id := base
	for i := 1; ; i++ {
		if _, taken := a.used[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(i)
	}
	a.used[id] = struct{}{}
	return []byte(id)
}

func (a *anchorIDs) Put(value []byte) {
	a.used[string(value)] = struct{}{}
}
