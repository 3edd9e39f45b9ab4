package livereload

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h http.Handler, method string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, "/a/b", nil))
	return rr
}

func TestInjectIntoHTML(t *testing.T) {
	page := "<html><body><p>hi</p></body></html>"
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(page)))
		_, _ = w.Write([]byte(page[:10]))
		_, _ = w.Write([]byte(page[10:]))
	}), 3001)

	rr := serve(h, http.MethodGet)
	body := rr.Body.String()
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, body, Snippet(3001)+"</body>")
	assert.True(t, strings.HasPrefix(body, "<html><body><p>hi</p>"))
	assert.Equal(t, strconv.Itoa(len(body)), rr.Header().Get("Content-Length"))
	assert.Contains(t, Snippet(3001), `":3001/"`)
}

func TestInjectPassesThroughNonHTML(t *testing.T) {
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("</body>"))
	}), 3001)

	rr := serve(h, http.MethodGet)
	assert.Equal(t, "</body>", rr.Body.String())
}

func TestInjectSkipsErrorsAndEmptyBodies(t *testing.T) {
	notFound := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<body>missing</body>"))
	}), 3001)
	rr := serve(notFound, http.MethodGet)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "<body>missing</body>", rr.Body.String())

	redirect := Inject(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a/b/", http.StatusFound)
	}), 3001)
	rr = serve(redirect, http.MethodHead)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/a/b/", rr.Header().Get("Location"))
}

func TestInjectLargePagePassesThrough(t *testing.T) {
	page := "<body>" + strings.Repeat("x", maxInjectSize) + "</body>"
	h := Inject(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page[:100]))
		_, _ = w.Write([]byte(page[100:]))
	}), 3001)

	rr := serve(h, http.MethodGet)
	assert.Equal(t, page, rr.Body.String())
}

func TestInjectHeadMatchesGetLength(t *testing.T) {
	dir := t.TempDir()
	page := "<html><body><p>hi</p></body></html>"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(page), 0o644))
	h := Inject(http.FileServer(http.Dir(dir)), 3001)

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/page.html", nil))
	head := httptest.NewRecorder()
	h.ServeHTTP(head, httptest.NewRequest(http.MethodHead, "/page.html", nil))

	assert.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.String())
	assert.Equal(t, strconv.Itoa(len(page)+len(Snippet(3001))), head.Header().Get("Content-Length"))
	assert.Equal(t, get.Header().Get("Content-Length"), head.Header().Get("Content-Length"))
	assert.Equal(t, strconv.Itoa(get.Body.Len()), head.Header().Get("Content-Length"))
}
