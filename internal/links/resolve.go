// Package links resolves authored links into page-relative URLs.
//
// Three strategies are supported. relative trusts the author's path; absolute treats
// every link as rooted at the content directory; shortest lets authors link by bare file
// name when that name is unique in the corpus and otherwise behaves like absolute.
package links

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Strategy selects how a link target is interpreted.
type Strategy string

const (
	StrategyShortest Strategy = "shortest"
	StrategyAbsolute Strategy = "absolute"
	StrategyRelative Strategy = "relative"
)

// ParseStrategy accepts the textual strategy names used in configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyShortest, "":
		return StrategyShortest, nil
	case StrategyAbsolute:
		return StrategyAbsolute, nil
	case StrategyRelative:
		return StrategyRelative, nil
	default:
		return "", fmt.Errorf("unknown link resolution strategy %q (want shortest, absolute or relative)", s)
	}
}

// TransformOptions carries the per-render inputs of TransformLink.
type TransformOptions struct {
	Strategy Strategy
	AllSlugs []paths.FullSlug
}

// TransformLink resolves target, as written on the page src, into the href to emit.
func TransformLink(src paths.FullSlug, target string, opts TransformOptions) paths.RelativeURL {
	targetSlug := paths.TransformInternalLink(target)
	if opts.Strategy == StrategyRelative {
		return targetSlug
	}

	folderTail := ""
	if paths.IsFolderPath(string(targetSlug)) {
		folderTail = "/"
	}
	canonical := paths.StripSlashes(strings.TrimPrefix(string(targetSlug), "."), false)
	targetCanonical, targetAnchor := paths.SplitAnchor(canonical)

	if opts.Strategy == StrategyShortest {
		if match, ok := uniqueFileName(targetCanonical, opts.AllSlugs); ok {
			return paths.ResolveRelative(src, match) + paths.RelativeURL(targetAnchor)
		}
	}

	return paths.RelativeURL(paths.JoinSegments(string(paths.PathToRoot(src)), canonical) + folderTail)
}

// uniqueFileName finds the single slug whose last segment equals name. Zero or several
// matches report false; ambiguity never picks one.
func uniqueFileName(name string, slugs []paths.FullSlug) (paths.FullSlug, bool) {
	var match paths.FullSlug
	n := 0
	for _, s := range slugs {
		str := string(s)
		if str[strings.LastIndexByte(str, '/')+1:] != name {
			continue
		}
		n++
		if n > 1 {
			return "", false
		}
		match = s
	}
	return match, n == 1
}
