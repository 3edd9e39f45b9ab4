package content

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Inventory is the content directory split into notes and plain assets.
type Inventory struct {
	Notes  []paths.FilePath
	Assets []paths.FilePath
}

// Discover walks root and classifies every file. Hidden entries and entries matching one
// of the ignore patterns (path.Match syntax, against the slash-separated relative path
// of the entry or any of its parents, or against a single path segment) are skipped. Paths come back NFC-normalised and sorted.
func Discover(root string, ignore []string) (Inventory, error) {
	for _, p := range ignore {
		if _, err := path.Match(p, ""); err != nil {
			return Inventory{}, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
	}

	var inv Inventory
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = norm.NFC.String(filepath.ToSlash(rel))

		if strings.HasPrefix(d.Name(), ".") || ignored(rel, ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !paths.IsFilePath(rel) {
			// Extensionless files have no slug form.
			return nil
		}
		if isNote(rel) {
			inv.Notes = append(inv.Notes, paths.FilePath(rel))
		} else {
			inv.Assets = append(inv.Assets, paths.FilePath(rel))
		}
		return nil
	})
	if err != nil {
		return Inventory{}, fmt.Errorf("walk content dir %s: %w", root, err)
	}
	sort.Slice(inv.Notes, func(i, j int) bool { return inv.Notes[i] < inv.Notes[j] })
	sort.Slice(inv.Assets, func(i, j int) bool { return inv.Assets[i] < inv.Assets[j] })
	return inv, nil
}

func ignored(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	segments := strings.Split(rel, "/")
	for i := range segments {
		prefix := strings.Join(segments[:i+1], "/")
		for _, p := range patterns {
			if ok, _ := path.Match(p, prefix); ok {
				return true
			}
			if ok, _ := path.Match(p, segments[i]); ok {
				return true
			}
		}
	}
	return false
}

func isNote(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}

// hiddenPath reports whether any segment of a slash-separated path is hidden.
func hiddenPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
