// Package bundle compiles the site's client scripts with esbuild.
//
// The bundle is the "tooling" half of a build: when its hash changes, pages rendered
// against the previous bundle are stale and the orchestrator performs a hard rebuild.
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// OutputName is the file the bundle is emitted as, relative to the static dir.
const OutputName = "site.js"

// entryCandidates are tried, in order, inside Options.ScriptsDir.
var entryCandidates = []string{"index.ts", "index.tsx", "index.js", "index.jsx"}

var loader = map[string]api.Loader{
	".js":   api.LoaderJS,
	".jsx":  api.LoaderJSX,
	".ts":   api.LoaderTS,
	".tsx":  api.LoaderTSX,
	".json": api.LoaderJSON,
	".css":  api.LoaderCSS,
	".svg":  api.LoaderDataURL,
}

// Options configures a bundle build.
type Options struct {
	// ScriptsDir optionally holds a user entry point (index.{ts,tsx,js,jsx}).
	ScriptsDir string
	Minify     bool
}

// File is one emitted artifact.
type File struct {
	Name     string
	Contents []byte
}

// Output is the in-memory result of a bundle build.
type Output struct {
	Files []File
	// Hash identifies the emitted bytes; equal hashes mean identical tooling output.
	Hash string
}

// Build bundles the client runtime with the optional user entry point.
func Build(opts Options) (*Output, error) {
	contents := clientRuntime
	resolveDir := ""
	if opts.ScriptsDir != "" {
		abs, err := filepath.Abs(opts.ScriptsDir)
		if err != nil {
			return nil, fmt.Errorf("resolve scripts dir: %w", err)
		}
		resolveDir = abs
		if entry := findEntry(abs); entry != "" {
			contents = fmt.Sprintf("import %q;\n%s", "./"+entry, clientRuntime)
		}
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   contents,
			ResolveDir: resolveDir,
			Sourcefile: "gardener-client.js",
			Loader:     api.LoaderJS,
		},
		Write:             false,
		Bundle:            true,
		Outfile:           OutputName,
		Platform:          api.PlatformBrowser,
		Format:            api.FormatIIFE,
		Target:            api.ES2017,
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Loader:            loader,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, fmt.Sprintf("%s:%d: %s", m.Location.File, m.Location.Line, m.Text))
				continue
			}
			msgs = append(msgs, m.Text)
		}
		return nil, fmt.Errorf("bundler failed: %s", strings.Join(msgs, "; "))
	}
	if len(result.OutputFiles) == 0 {
		return nil, errors.New("bundler produced no output")
	}

	out := &Output{Files: make([]File, 0, len(result.OutputFiles))}
	for _, f := range result.OutputFiles {
		out.Files = append(out.Files, File{Name: filepath.Base(f.Path), Contents: f.Contents})
	}
	sort.Slice(out.Files, func(i, j int) bool { return out.Files[i].Name < out.Files[j].Name })
	out.Hash = hashFiles(out.Files)
	return out, nil
}

func findEntry(dir string) string {
	for _, name := range entryCandidates {
		if st, err := os.Stat(filepath.Join(dir, name)); err == nil && !st.IsDir() {
			return name
		}
	}
	return ""
}

func hashFiles(files []File) string {
	h := sha256.New()
	for _, f := range files {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		h.Write(f.Contents)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
