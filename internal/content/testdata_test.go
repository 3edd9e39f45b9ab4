package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// garden is the fixture content directory shared by the pipeline tests.
var garden = map[string]string{
	"index.md": "---\ntitle: Home\n---\nWelcome to [[a/b/c|C page]].\n",
	"a/b/c.md": "Links to [[h]] and [[h#Section Two]] and [ext](https://example.com).\n\n" +
		"![[e/g/h#Section Two]]\n\n![[pic.png]]\n",
	"e/g/h.md": "---\ntags: [topic/sub]\naliases: [old-h]\n---\n# Intro\n\nText with [link back](a/b/c.md).\n\n" +
		"## Section Two\n\nSecond body [[f]].\n\n## Section Three\n\nthird\n",
	"e/f.md":               "Plain page.\n",
	"draft.md":             "---\ndraft: true\n---\nsecret\n",
	"assets/pic.png":       "\x89PNG fake",
	".obsidian/app.json":   "{}",
	"private/notes.md":     "hidden by pattern\n",
	"a/b/.hidden-draft.md": "dotfile\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
}

func readOutput(t *testing.T, out, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(name)))
	require.NoError(t, err, name)
	return string(b)
}
