package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/bundle"
	"git.home.luguber.info/inful/gardener/internal/links"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

type countingTransformer struct{ calls *int }

func (countingTransformer) Name() string { return "count" }

func (c countingTransformer) Transform(*BuildCtx, *Page) error {
	*c.calls++
	return nil
}

func newTestSite(t *testing.T, cache *PageCache, calls *int) (*Site, string, string) {
	t.Helper()
	contentDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "public")
	writeTree(t, contentDir, garden)
	return newSiteAt(t, contentDir, outDir, cache, calls), contentDir, outDir
}

func newSiteAt(t *testing.T, contentDir, outDir string, cache *PageCache, calls *int) *Site {
	t.Helper()
	opts := Options{
		ContentDir:     contentDir,
		OutputDir:      outDir,
		Title:          "Garden",
		Locale:         "en-US",
		IgnorePatterns: []string{"private"},
		Strategy:       links.StrategyShortest,
		Bundle:         &bundle.Output{Files: []bundle.File{{Name: bundle.OutputName, Contents: []byte("//x")}}, Hash: "fixed"},
		Cache:          cache,
	}
	if calls != nil {
		opts.Transformers = append(DefaultTransformers(), countingTransformer{calls: calls})
	}
	s, err := NewSite(opts)
	require.NoError(t, err)
	return s
}

func TestBuildEmitsSite(t *testing.T) {
	s, _, out := newTestSite(t, nil, nil)
	res, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.Equal(t, 4, res.Pages, "drafts, hidden and ignored notes are not published")
	assert.Equal(t, 1, res.Assets)

	index := readOutput(t, out, "index.html")
	assert.Contains(t, index, `href="./a/b/c"`)
	assert.Contains(t, index, "<title>Home | Garden</title>")

	c := readOutput(t, out, "a/b/c.html")
	assert.Contains(t, c, `href="../../e/g/h"`, "shortest resolves a unique file name")
	assert.Contains(t, c, `href="../../e/g/h#section-two"`, "anchors are slugified and kept")
	assert.Contains(t, c, `class="external"`)
	assert.Contains(t, c, `src="../../assets/pic.png"`)
	assert.Contains(t, c, `src="../../static/site.js"`)
	assert.Contains(t, c, "Second body", "transclusion splices the named section")
	assert.NotContains(t, c, "third", "transclusion stops at the next sibling heading")
	assert.Contains(t, c, `href="../../e/g/h/../../../e/f"`, "transcluded links are rebased")

	h := readOutput(t, out, "e/g/h.html")
	assert.Contains(t, h, `id="section-two"`)
	assert.Contains(t, h, `href="../../a/b/c"`, "backlink to c")
	assert.Contains(t, h, `href="../../tags/topic/sub"`)
	assert.Contains(t, h, `href="../../e/f"`)

	assert.Contains(t, readOutput(t, out, "old-h.html"), `url=./e/g/h`)
	assert.Equal(t, "\x89PNG fake", readOutput(t, out, "assets/pic.png"))
	assert.Equal(t, "//x", readOutput(t, out, "static/site.js"))
	assert.Contains(t, readOutput(t, out, "tags/index.html"), `href="../tags/topic/sub"`)
	assert.Contains(t, readOutput(t, out, "tags/topic.html"), `href="../e/g/h"`)

	for _, absent := range []string{"draft.html", "private/notes.html", ".obsidian/app.json", "a/b/.hidden-draft.html"} {
		_, err := os.Stat(filepath.Join(out, absent))
		assert.True(t, os.IsNotExist(err), absent)
	}

	var idx map[string]IndexEntry
	require.NoError(t, json.Unmarshal([]byte(readOutput(t, out, string(ContentIndexPath))), &idx))
	require.Contains(t, idx, "e/g/h")
	assert.Equal(t, []string{"topic", "topic/sub"}, idx["e/g/h"].Tags)
	assert.Equal(t, []paths.FullSlug{"a/b/c", "e/f"}, idx["e/g/h"].Links)
	assert.Contains(t, idx, "/")

	reg := s.Registry()
	for _, slug := range []paths.FullSlug{"index", "a/b/c", "e/g/h", "old-h", "assets/pic.png", "tags/index", "tags/topic/sub", "draft"} {
		assert.True(t, reg.Has(slug), slug)
	}
}

func TestBuildClearsOutput(t *testing.T) {
	s, _, out := newTestSite(t, nil, nil)
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "stale.html"), []byte("old"), 0o644))

	_, err := s.Build(context.Background())
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "stale.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestRebuildAppliesChanges(t *testing.T) {
	calls := 0
	s, contentDir, out := newTestSite(t, nil, &calls)
	_, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, calls, "every parsed note is transformed once")

	// A body-only edit leaves the registry alone, so only that note is re-transformed.
	writeTree(t, contentDir, map[string]string{"e/f.md": "Edited page.\n"})
	res, err := s.Rebuild(context.Background(), []Change{{Path: "e/f.md"}})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 6, calls)
	assert.Contains(t, readOutput(t, out, "e/f.html"), "Edited page.")

	writeTree(t, contentDir, map[string]string{"e/g/new.md": "See [[f]].\n"})
	require.NoError(t, os.Remove(filepath.Join(contentDir, "assets", "pic.png")))
	require.NoError(t, os.Remove(filepath.Join(contentDir, "e", "f.md")))

	_, err = s.Rebuild(context.Background(), []Change{
		{Path: paths.FilePath(filepath.Join(contentDir, "e", "g", "new.md"))},
		{Path: "assets/pic.png", Removed: true},
		{Path: "e/f.md"},
	})
	require.NoError(t, err)

	assert.Contains(t, readOutput(t, out, "e/g/new.html"), `href="../../e/f"`, "removed slugs keep resolving until the next full build")
	assert.True(t, s.Registry().Has("e/g/new"))
	for _, absent := range []string{"assets/pic.png", "e/f.html"} {
		_, err := os.Stat(filepath.Join(out, absent))
		assert.True(t, os.IsNotExist(err), absent)
	}
}

func TestRebuildRemovesUnpublishedOutput(t *testing.T) {
	s, contentDir, out := newTestSite(t, nil, nil)
	writeTree(t, contentDir, map[string]string{
		"secret.md": "---\ntags: [x/y]\naliases: [old]\n---\npublic body\n",
	})
	_, err := s.Build(context.Background())
	require.NoError(t, err)
	for _, name := range []string{"secret.html", "tags/x.html", "tags/x/y.html", "old.html"} {
		require.FileExists(t, filepath.Join(out, filepath.FromSlash(name)))
	}

	writeTree(t, contentDir, map[string]string{
		"secret.md": "---\ndraft: true\ntags: [x/y]\naliases: [old]\n---\nnow private\n",
	})
	res, err := s.Rebuild(context.Background(), []Change{{Path: "secret.md"}})
	require.NoError(t, err)
	require.True(t, res.Partial)

	for _, name := range []string{"secret.html", "tags/x.html", "tags/x/y.html", "old.html"} {
		_, err := os.Stat(filepath.Join(out, filepath.FromSlash(name)))
		assert.True(t, os.IsNotExist(err), "%s must not outlive its page", name)
	}
	assert.FileExists(t, filepath.Join(out, "tags", "topic.html"), "tags still in use are kept")
	assert.FileExists(t, filepath.Join(out, "old-h.html"))
	assert.FileExists(t, filepath.Join(out, "assets", "pic.png"))

	// Publishing again brings the outputs back.
	writeTree(t, contentDir, map[string]string{"secret.md": "---\ntags: [x/y]\n---\nback\n"})
	_, err = s.Rebuild(context.Background(), []Change{{Path: "secret.md"}})
	require.NoError(t, err)
	assert.Contains(t, readOutput(t, out, "secret.html"), "back")
	assert.FileExists(t, filepath.Join(out, "tags", "x", "y.html"))
	_, err = os.Stat(filepath.Join(out, "old.html"))
	assert.True(t, os.IsNotExist(err), "a removed alias drops its redirect stub")
}

func TestRebuildWithoutBuildIsFull(t *testing.T) {
	s, _, out := newTestSite(t, nil, nil)
	res, err := s.Rebuild(context.Background(), []Change{{Path: "index.md"}})
	require.NoError(t, err)
	assert.False(t, res.Partial)
	assert.FileExists(t, filepath.Join(out, "e", "g", "h.html"))
}

func TestSharedCacheSkipsUnchangedNotes(t *testing.T) {
	cache, err := NewPageCache(0)
	require.NoError(t, err)

	calls := 0
	first, contentDir, out := newTestSite(t, cache, &calls)
	_, err = first.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, calls)
	require.NoError(t, first.Close())

	second := newSiteAt(t, contentDir, out, cache, &calls)
	_, err = second.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, calls, "a fresh pipeline over unchanged content reuses cached pages")
	assert.Equal(t, 5, cache.Len())
}

func TestFingerprintTracksTooling(t *testing.T) {
	dir := t.TempDir()
	base := Options{ContentDir: dir, OutputDir: filepath.Join(dir, "out")}

	a, err := NewSite(base)
	require.NoError(t, err)
	b, err := NewSite(base)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	withLayout := base
	withLayout.Layout = []byte("<html>{{.Content}}</html>")
	c, err := NewSite(withLayout)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	withStrategy := base
	withStrategy.Strategy = links.StrategyAbsolute
	d, err := NewSite(withStrategy)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())

	withBundle := base
	withBundle.Bundle = &bundle.Output{Hash: "other"}
	e, err := NewSite(withBundle)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), e.Fingerprint())
}

func TestClosedSiteRefusesPasses(t *testing.T) {
	s, _, _ := newTestSite(t, nil, nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Build(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Rebuild(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewSiteRejectsBadInput(t *testing.T) {
	_, err := NewSite(Options{})
	require.Error(t, err)

	_, err = NewSite(Options{ContentDir: "c", OutputDir: "o", Layout: []byte("{{.Broken")})
	require.Error(t, err)
}

func TestBuildFailsOnMalformedFrontmatter(t *testing.T) {
	contentDir := t.TempDir()
	writeTree(t, contentDir, map[string]string{"bad.md": "---\ntitle: x\nno closing\n"})
	s := newSiteAt(t, contentDir, filepath.Join(t.TempDir(), "out"), nil, nil)
	_, err := s.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.md")
}
