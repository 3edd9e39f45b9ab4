package server

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// contentTypeOverrides fixes types that platform mime tables get wrong or lack.
var contentTypeOverrides = map[string]string{
	".webp": "image/webp",
	".avif": "image/avif",
}

// ContentType returns the type served for name, or "" to let the server sniff.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypeOverrides[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

func setFileHeaders(h http.Header, p string) {
	h.Set("Content-Disposition", "inline")
	if ct := ContentType(p); ct != "" {
		h.Set("Content-Type", ct)
	}
	if cc := CacheControl(p); cc != "" {
		h.Set("Cache-Control", cc)
	}
}

// CacheControl returns the Cache-Control value for a served or published file.
// Scripts and styles are not content-hashed, so they revalidate like pages.
func CacheControl(p string) string {
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".html", ".js", ".css", ".json", "":
		return "no-cache, must-revalidate"
	case ".woff", ".woff2", ".ttf", ".eot", ".otf":
		return "public, max-age=31536000, immutable"
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".avif", ".ico":
		return "public, max-age=604800"
	case ".pdf", ".zip", ".tar", ".gz":
		return "public, max-age=86400"
	case ".xml":
		return "public, max-age=3600"
	}
	return ""
}
