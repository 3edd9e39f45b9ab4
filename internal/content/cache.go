package content

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// DefaultCacheSize bounds the number of transformed pages kept between passes.
const DefaultCacheSize = 4096

// PageCache keeps transformed pages across passes, and across pipeline instances when
// shared. An entry is reused only while both the note's content fingerprint and the
// link-resolution digest of the pass match what it was produced with.
type PageCache struct {
	entries *lru.Cache[paths.FilePath, cachedPage]
}

type cachedPage struct {
	fingerprint string
	digest      string
	page        *Page
}

func NewPageCache(size int) (*PageCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[paths.FilePath, cachedPage](size)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &PageCache{entries: c}, nil
}

// Get returns the cached page for fp when it is still valid.
func (c *PageCache) Get(fp paths.FilePath, fingerprint, digest string) (*Page, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.entries.Get(fp)
	if !ok || e.fingerprint != fingerprint || e.digest != digest {
		return nil, false
	}
	return e.page, true
}

func (c *PageCache) Put(p *Page, digest string) {
	if c == nil {
		return
	}
	c.entries.Add(p.Path, cachedPage{fingerprint: p.Fingerprint, digest: digest, page: p})
}

func (c *PageCache) Remove(fp paths.FilePath) {
	if c == nil {
		return
	}
	c.entries.Remove(fp)
}

func (c *PageCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *PageCache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

// fingerprintNote identifies a note by its header and body using the mdfp content hash.
func fingerprintNote(header, body []byte) string {
	return mdfp.CalculateFingerprintFromParts(string(header), string(body))
}
