// Package rebase moves rendered HTML fragments between pages.
//
// A fragment rendered for one page carries hrefs relative to that page. When it is
// embedded in another page (transclusion) every relative reference has to be re-rooted
// so it still points at the same target from the new location.
package rebase

import (
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// rebasedAttrs are the attributes that carry page-relative references.
var rebasedAttrs = map[string]struct{}{
	"href": {},
	"src":  {},
}

// NormalizeElement returns a deep copy of el with every relative href/src re-rooted.
// currentBase is the page being rendered, newBase the page el was rendered for; the
// rewritten references resolve from currentBase to the targets they named on newBase.
// el is not modified.
func NormalizeElement(el *html.Node, currentBase, newBase paths.FullSlug) *html.Node {
	out := Clone(el)
	if out == nil {
		return nil
	}
	prefix := string(paths.ResolveRelative(currentBase, newBase))
	walk(out, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		for i, a := range n.Attr {
			if _, ok := rebasedAttrs[a.Key]; !ok || a.Namespace != "" {
				continue
			}
			if !paths.IsRelativeURL(a.Val) {
				continue
			}
			n.Attr[i].Val = paths.JoinSegments(prefix, "..", a.Val)
		}
	})
	return out
}

// Clone deep-copies el and its descendants. The returned root is detached.
func Clone(el *html.Node) *html.Node {
	if el == nil {
		return nil
	}
	n := &html.Node{
		Type:      el.Type,
		DataAtom:  el.DataAtom,
		Data:      el.Data,
		Namespace: el.Namespace,
	}
	if len(el.Attr) > 0 {
		n.Attr = make([]html.Attribute, len(el.Attr))
		copy(n.Attr, el.Attr)
	}
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		n.AppendChild(Clone(c))
	}
	return n
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}
