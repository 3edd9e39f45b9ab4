// Package content turns a directory of Markdown notes into a static site.
//
// A pass parses every note, registers every slug the site will answer to, runs the
// transformer chain on each page, filters the result and hands the published set to the
// emitters. Rebuild re-processes only what changed; the emitters still see every page.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/gardener/internal/bundle"
	"git.home.luguber.info/inful/gardener/internal/frontmatter"
	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// ErrClosed is returned by passes on a Site that has been closed.
var ErrClosed = errors.New("content pipeline closed")

// Options configures a Site.
type Options struct {
	ContentDir     string
	OutputDir      string
	Title          string
	BaseURL        string
	Locale         string
	IgnorePatterns []string
	Strategy       links.Strategy
	// Layout is the page template source; empty selects the embedded default.
	Layout []byte
	Bundle *bundle.Output
	// Cache may be shared between Site instances; nil disables caching.
	Cache *PageCache

	// Nil plugin lists select the defaults.
	Transformers []Transformer
	Filters      []Filter
	Emitters     []Emitter
}

// Site is the content pipeline over one content directory.
type Site struct {
	opts         Options
	layout       *Layout
	registry     *links.Registry
	cache        *PageCache
	transformers []Transformer
	filters      []Filter
	emitters     []Emitter
	fingerprint  string

	mu      sync.Mutex
	pages   map[paths.FilePath]*Page
	sources map[paths.FilePath]source
	assets  map[paths.FullSlug]paths.FilePath
	digest  string
	built   bool
	closed  bool
	// generated holds the outputs of the last pass from emitters that always emit the
	// whole site (pages, aliases, tags, content index).
	generated map[paths.FilePath]struct{}
}

// source is a parsed note before any transformer ran.
type source struct {
	slug        paths.FullSlug
	meta        frontmatter.Fields
	body        []byte
	fingerprint string
}

// NewSite validates opts and prepares the plugin chain.
func NewSite(opts Options) (*Site, error) {
	if opts.ContentDir == "" || opts.OutputDir == "" {
		return nil, errors.New("content and output directories are required")
	}
	if opts.Strategy == "" {
		opts.Strategy = links.StrategyShortest
	}
	layout, err := ParseLayout(opts.Layout)
	if err != nil {
		return nil, err
	}

	s := &Site{
		opts:         opts,
		layout:       layout,
		registry:     links.NewRegistry(),
		cache:        opts.Cache,
		transformers: opts.Transformers,
		filters:      opts.Filters,
		emitters:     opts.Emitters,
	}
	if s.transformers == nil {
		s.transformers = DefaultTransformers()
	}
	if s.filters == nil {
		s.filters = DefaultFilters()
	}
	if s.emitters == nil {
		s.emitters = DefaultEmitters(layout)
	}
	s.fingerprint = s.computeFingerprint()
	return s, nil
}

// Fingerprint identifies everything about this pipeline other than the content: layout,
// bundle, link strategy, site settings and plugin chain.
func (s *Site) Fingerprint() string { return s.fingerprint }

func (s *Site) computeFingerprint() string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write(string(s.layout.Source()), string(s.opts.Strategy), s.opts.Title, s.opts.BaseURL, s.opts.Locale)
	write(s.opts.IgnorePatterns...)
	if s.opts.Bundle != nil {
		write(s.opts.Bundle.Hash)
	}
	for _, t := range s.transformers {
		write("t:" + t.Name())
	}
	for _, f := range s.filters {
		write("f:" + f.Name())
	}
	for _, e := range s.emitters {
		write("e:" + e.Name())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Registry exposes the slug registry populated by the last pass.
func (s *Site) Registry() *links.Registry { return s.registry }

// Close releases the pipeline. Later passes fail with ErrClosed.
func (s *Site) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.registry.Reset()
	s.pages = nil
	s.sources = nil
	s.assets = nil
	s.generated = nil
	return nil
}

// Build processes the whole content directory into a freshly cleared output directory.
func (s *Site) Build(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	inv, err := Discover(s.opts.ContentDir, s.opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	if err := clearDir(s.opts.OutputDir); err != nil {
		return nil, err
	}

	s.sources = make(map[paths.FilePath]source, len(inv.Notes))
	s.pages = make(map[paths.FilePath]*Page, len(inv.Notes))
	s.assets = make(map[paths.FullSlug]paths.FilePath, len(inv.Assets))
	for _, fp := range inv.Notes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := s.readNote(fp)
		if err != nil {
			return nil, err
		}
		s.sources[fp] = src
	}
	for _, fp := range inv.Assets {
		s.assets[paths.SlugifyFilePath(fp, false)] = fp
	}

	s.registry.Reset()
	s.registerAll()
	s.digest = s.registryDigest()

	bctx := s.buildCtx()
	for _, fp := range sortedPaths(s.sources) {
		p, err := s.transform(bctx, fp)
		if err != nil {
			return nil, err
		}
		s.pages[fp] = p
	}

	published := s.publish(bctx)
	res := &Result{Pages: len(published), Assets: len(s.assets)}
	generated := make(map[paths.FilePath]struct{})
	for _, e := range s.emitters {
		emitted, err := e.Emit(bctx, published)
		if err != nil {
			return nil, fmt.Errorf("emitter %s: %w", e.Name(), err)
		}
		res.Emitted = append(res.Emitted, emitted...)
		if _, partial := e.(PartialEmitter); !partial {
			addAll(generated, emitted)
		}
	}
	s.generated = generated
	s.built = true

	slog.Info("Site built",
		logfields.Pages(res.Pages),
		slog.Int("assets", res.Assets),
		slog.Int("files", len(res.Emitted)),
		logfields.Strategy(string(s.opts.Strategy)),
		logfields.Duration(time.Since(start)))
	return res, nil
}

// Rebuild applies changes on top of the previous pass. Without a previous pass it is
// a full Build.
func (s *Site) Rebuild(ctx context.Context, changes []Change) (*Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.built {
		s.mu.Unlock()
		return s.Build(ctx)
	}
	defer s.mu.Unlock()
	start := time.Now()

	var dirty []paths.FilePath
	applied := make([]Change, 0, len(changes))
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ch, ok := s.relativeChange(ch)
		if !ok {
			continue
		}
		touched, err := s.apply(&ch)
		if err != nil {
			return nil, err
		}
		applied = append(applied, ch)
		dirty = append(dirty, touched...)
	}

	// Slugs are only ever added between full builds; removed pages keep resolving
	// until the next Build.
	s.registerAll()
	bctx := s.buildCtx()

	if digest := s.registryDigest(); digest != s.digest {
		s.digest = digest
		dirty = sortedPaths(s.sources)
	}
	for _, fp := range dedupe(dirty) {
		if _, ok := s.sources[fp]; !ok {
			continue
		}
		p, err := s.transform(bctx, fp)
		if err != nil {
			return nil, err
		}
		s.pages[fp] = p
	}

	published := s.publish(bctx)
	res := &Result{Pages: len(published), Assets: len(s.assets), Partial: true}
	generated := make(map[paths.FilePath]struct{}, len(s.generated))
	for _, e := range s.emitters {
		var emitted []paths.FilePath
		var err error
		pe, partial := e.(PartialEmitter)
		if partial {
			emitted, err = pe.PartialEmit(bctx, published, applied)
		} else {
			emitted, err = e.Emit(bctx, published)
		}
		if err != nil {
			return nil, fmt.Errorf("emitter %s: %w", e.Name(), err)
		}
		res.Emitted = append(res.Emitted, emitted...)
		if !partial {
			addAll(generated, emitted)
		}
	}
	// Pages turned draft, tags that lost their last member and dropped aliases.
	s.prune(generated)

	slog.Info("Site rebuilt",
		slog.Int("changes", len(changes)),
		logfields.Pages(res.Pages),
		slog.Int("files", len(res.Emitted)),
		logfields.Duration(time.Since(start)))
	return res, nil
}

// relativeChange expresses a change relative to the content dir. Changes outside it
// are dropped.
func (s *Site) relativeChange(ch Change) (Change, bool) {
	rel := string(ch.Path)
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(s.opts.ContentDir, rel)
		if err != nil {
			return Change{}, false
		}
		rel = r
	}
	rel = norm.NFC.String(filepath.ToSlash(filepath.Clean(rel)))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return Change{}, false
	}
	return Change{Path: paths.FilePath(rel), Removed: ch.Removed}, true
}

// apply folds one change into the source set and reports the notes to re-transform.
// A change to a file that no longer exists is turned into a removal.
func (s *Site) apply(ch *Change) ([]paths.FilePath, error) {
	fp := ch.Path
	if !paths.IsFilePath(string(fp)) {
		if ch.Removed {
			s.removeUnder(string(fp))
		}
		return nil, nil
	}

	if !ch.Removed {
		st, err := os.Stat(filepath.Join(s.opts.ContentDir, filepath.FromSlash(string(fp))))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			ch.Removed = true
		case err != nil:
			return nil, fmt.Errorf("stat %s: %w", fp, err)
		case st.IsDir():
			return nil, nil
		}
	}
	if !ch.Removed && (hiddenPath(string(fp)) || ignored(string(fp), s.opts.IgnorePatterns)) {
		return nil, nil
	}

	if !isNote(string(fp)) {
		slug := paths.SlugifyFilePath(fp, false)
		if ch.Removed {
			delete(s.assets, slug)
		} else {
			s.assets[slug] = fp
		}
		return nil, nil
	}

	if ch.Removed {
		s.removeNote(fp)
		return nil, nil
	}
	src, err := s.readNote(fp)
	if err != nil {
		return nil, err
	}
	s.sources[fp] = src
	return []paths.FilePath{fp}, nil
}

func (s *Site) removeNote(fp paths.FilePath) {
	src, ok := s.sources[fp]
	if !ok {
		return
	}
	delete(s.sources, fp)
	delete(s.pages, fp)
	s.cache.Remove(fp)
	out := filepath.Join(s.opts.OutputDir, filepath.FromSlash(string(pageOutput(src.slug))))
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove stale page output", logfields.File(out), logfields.Error(err))
	}
}

// prune deletes outputs of the previous pass missing from current, then makes current
// the reference for the next pass.
func (s *Site) prune(current map[paths.FilePath]struct{}) {
	for fp := range s.generated {
		if _, ok := current[fp]; ok {
			continue
		}
		out := filepath.Join(s.opts.OutputDir, filepath.FromSlash(string(fp)))
		if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to remove stale output", logfields.File(out), logfields.Error(err))
		}
	}
	s.generated = current
}

func addAll(set map[paths.FilePath]struct{}, fps []paths.FilePath) {
	for _, fp := range fps {
		set[fp] = struct{}{}
	}
}

func (s *Site) removeUnder(dir string) {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	for fp := range s.sources {
		if strings.HasPrefix(string(fp), prefix) {
			s.removeNote(fp)
		}
	}
	for slug, fp := range s.assets {
		if strings.HasPrefix(string(fp), prefix) {
			delete(s.assets, slug)
		}
	}
}

func (s *Site) readNote(fp paths.FilePath) (source, error) {
	// #nosec G304 -- fp is relative to the configured content dir
	raw, err := os.ReadFile(filepath.Join(s.opts.ContentDir, filepath.FromSlash(string(fp))))
	if err != nil {
		return source{}, fmt.Errorf("read %s: %w", fp, err)
	}
	doc, err := frontmatter.Split(raw)
	if err != nil {
		return source{}, fmt.Errorf("%s: %w", fp, err)
	}
	meta, err := frontmatter.Decode(doc.Header)
	if err != nil {
		return source{}, fmt.Errorf("%s: %w", fp, err)
	}
	return source{
		slug:        paths.SlugifyFilePath(fp, false),
		meta:        meta,
		body:        doc.Body,
		fingerprint: fingerprintNote(doc.Header, doc.Body),
	}, nil
}

// transform runs the transformer chain on a fresh page built from the note's source,
// or returns the cached result for an unchanged note.
func (s *Site) transform(bctx *BuildCtx, fp paths.FilePath) (*Page, error) {
	src := s.sources[fp]
	if p, ok := s.cache.Get(fp, src.fingerprint, s.digest); ok {
		return p, nil
	}
	p := &Page{
		Path:        fp,
		Slug:        src.slug,
		Meta:        src.meta,
		Body:        append([]byte(nil), src.body...),
		Fingerprint: src.fingerprint,
	}
	for _, t := range s.transformers {
		if err := t.Transform(bctx, p); err != nil {
			return nil, fmt.Errorf("transformer %s on %s: %w", t.Name(), fp, err)
		}
	}
	s.cache.Put(p, s.digest)
	return p, nil
}

func (s *Site) publish(bctx *BuildCtx) []*Page {
	published := make([]*Page, 0, len(s.pages))
	for _, fp := range sortedPaths(s.pages) {
		p := s.pages[fp]
		keep := true
		for _, f := range s.filters {
			if !f.Keep(bctx, p) {
				keep = false
				break
			}
		}
		if keep {
			published = append(published, p)
		}
	}
	return published
}

// registerAll adds every slug the current sources and assets answer to.
func (s *Site) registerAll() {
	pages := make([]*Page, 0, len(s.sources))
	for _, fp := range sortedPaths(s.sources) {
		src := s.sources[fp]
		p := &Page{Path: fp, Slug: src.slug, Meta: src.meta}
		pages = append(pages, p)
		s.registry.Add(p.Slug)
		s.registry.Add(p.AliasSlugs()...)
	}
	assetSlugs := make([]paths.FullSlug, 0, len(s.assets))
	for slug := range s.assets {
		assetSlugs = append(assetSlugs, slug)
	}
	sort.Slice(assetSlugs, func(i, j int) bool { return assetSlugs[i] < assetSlugs[j] })
	s.registry.Add(assetSlugs...)
	s.registry.Add(TagSlugs(pages)...)
}

// registryDigest identifies the inputs of link resolution for this pass.
func (s *Site) registryDigest() string {
	h := sha256.New()
	h.Write([]byte(s.opts.Strategy))
	for _, slug := range s.registry.Snapshot() {
		h.Write([]byte{0})
		h.Write([]byte(slug))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Site) buildCtx() *BuildCtx {
	assets := make(map[paths.FullSlug]paths.FilePath, len(s.assets))
	for k, v := range s.assets {
		assets[k] = v
	}
	return &BuildCtx{
		Title:      s.opts.Title,
		BaseURL:    s.opts.BaseURL,
		Locale:     s.opts.Locale,
		OutputDir:  s.opts.OutputDir,
		ContentDir: s.opts.ContentDir,
		Strategy:   s.opts.Strategy,
		AllSlugs:   s.registry.Snapshot(),
		Bundle:     s.opts.Bundle,
		Assets:     assets,
	}
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return fmt.Errorf("read output dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clear output dir: %w", err)
		}
	}
	return nil
}

func sortedPaths[V any](m map[paths.FilePath]V) []paths.FilePath {
	out := make([]paths.FilePath, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dedupe(fps []paths.FilePath) []paths.FilePath {
	seen := make(map[paths.FilePath]struct{}, len(fps))
	out := fps[:0]
	for _, fp := range fps {
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, fp)
	}
	return out
}
