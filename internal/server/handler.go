package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Handler serves the output directory. Every request holds the shared side of the
// rebuild lock for as long as it touches the tree.
type Handler struct {
	root     string
	basePath string
	readLock func() func()
}

// NewHandler serves root under basePath ("" or "/" for the site root). readLock may be
// nil when nothing rebuilds the tree concurrently.
func NewHandler(root, basePath string, readLock func() func()) *Handler {
	if readLock == nil {
		readLock = func() func() { return func() {} }
	}
	return &Handler{root: root, basePath: normalizeBase(basePath), readLock: readLock}
}

func normalizeBase(base string) string {
	base = strings.Trim(base, "/")
	if base == "" {
		return ""
	}
	return "/" + base
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	p := r.URL.Path
	if h.basePath != "" {
		if p != h.basePath && !strings.HasPrefix(p, h.basePath+"/") {
			http.NotFound(w, r)
			return
		}
		p = strings.TrimPrefix(p, h.basePath)
	}
	if p == "" {
		p = "/"
	}
	// Clean drops the trailing slash that pretty URLs depend on
	clean := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}

	release := h.readLock()
	defer release()
	h.resolve(w, r, clean)
}

// resolve applies pretty-URL resolution to a cleaned, base-relative path.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, p string) {
	switch {
	case strings.HasSuffix(p, "/"):
		if h.isFile(p + "index.html") {
			h.serveFile(w, r, p+"index.html")
			return
		}
		if stripped := strings.TrimSuffix(p, "/"); stripped != "" && h.isFile(stripped+".html") {
			h.redirect(w, r, stripped)
			return
		}
	case path.Ext(p) == "":
		if h.isFile(p + ".html") {
			h.serveFile(w, r, p+".html")
			return
		}
		if h.isFile(p + "/index.html") {
			h.redirect(w, r, p+"/")
			return
		}
	}

	if h.isFile(p) {
		h.serveFile(w, r, p)
		return
	}
	// slugs may contain dots, so "notes.v2" is a page rather than an asset
	if !strings.HasSuffix(p, "/") && h.isFile(p+".html") {
		h.serveFile(w, r, p+".html")
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) fsPath(p string) string {
	return filepath.Join(h.root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
}

func (h *Handler) isFile(p string) bool {
	st, err := os.Stat(h.fsPath(p))
	return err == nil && st.Mode().IsRegular()
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, p string) {
	loc := h.basePath + p
	if r.URL.RawQuery != "" {
		loc += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", loc)
	w.WriteHeader(http.StatusFound)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, p string) {
	f, err := os.Open(h.fsPath(p))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	setFileHeaders(w.Header(), p)
	http.ServeContent(w, r, path.Base(p), st.ModTime(), f)
}
