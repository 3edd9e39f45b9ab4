package content

import (
	"git.home.luguber.info/inful/gardener/internal/bundle"
	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// BuildCtx is the per-pass state handed to every plugin.
type BuildCtx struct {
	Title     string
	BaseURL   string
	Locale    string
	OutputDir string
	Strategy  links.Strategy
	// AllSlugs is the registry snapshot taken for this pass.
	AllSlugs []paths.FullSlug
	Bundle   *bundle.Output
	// Assets maps every asset's slug to its source path.
	Assets map[paths.FullSlug]paths.FilePath
	// ContentDir is where assets are copied from.
	ContentDir string
}

// Transformer rewrites one page in place.
type Transformer interface {
	Name() string
	Transform(ctx *BuildCtx, p *Page) error
}

// Filter decides whether a transformed page is published.
type Filter interface {
	Name() string
	Keep(ctx *BuildCtx, p *Page) bool
}

// Emitter writes output files from the published page set and reports what it wrote,
// as paths relative to the output directory.
type Emitter interface {
	Name() string
	Emit(ctx *BuildCtx, pages []*Page) ([]paths.FilePath, error)
}

// PartialEmitter is an Emitter that can limit its work to what changed. pages is still
// the full published set.
type PartialEmitter interface {
	Emitter
	PartialEmit(ctx *BuildCtx, pages []*Page, changes []Change) ([]paths.FilePath, error)
}

// DefaultTransformers returns the built-in transformer chain in execution order.
func DefaultTransformers() []Transformer {
	return []Transformer{WikilinkTransformer{}, NewMarkdownTransformer(), LinkCrawler{}}
}

// DefaultFilters returns the built-in filters.
func DefaultFilters() []Filter {
	return []Filter{DraftFilter{}}
}

// DraftFilter drops pages marked `draft: true`.
type DraftFilter struct{}

func (DraftFilter) Name() string { return "drafts" }

func (DraftFilter) Keep(_ *BuildCtx, p *Page) bool { return !p.Meta.Draft }
