package links

import (
	"sync"

	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Registry is the set of every slug known to the current build pass: page slugs,
// declared aliases and permalinks, and generated pages such as tag indexes.
//
// Membership is deterministic and insertion-ordered; adding a slug twice is a no-op.
// A full build calls Reset before repopulating, incremental passes only Add.
type Registry struct {
	mu    sync.RWMutex
	index map[paths.FullSlug]struct{}
	order []paths.FullSlug
}

// NewRegistry returns a registry pre-populated with slugs.
func NewRegistry(slugs ...paths.FullSlug) *Registry {
	r := &Registry{index: make(map[paths.FullSlug]struct{}, len(slugs))}
	r.Add(slugs...)
	return r
}

// Add inserts slugs not already present and reports how many were new.
func (r *Registry) Add(slugs ...paths.FullSlug) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		r.index = make(map[paths.FullSlug]struct{}, len(slugs))
	}
	added := 0
	for _, s := range slugs {
		if _, ok := r.index[s]; ok {
			continue
		}
		r.index[s] = struct{}{}
		r.order = append(r.order, s)
		added++
	}
	return added
}

// Has reports membership.
func (r *Registry) Has(slug paths.FullSlug) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[slug]
	return ok
}

// Len returns the number of distinct slugs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Snapshot returns a copy of the slugs in insertion order. Renderers hold the snapshot,
// never the live registry, so a page renders against one consistent view.
func (r *Registry) Snapshot() []paths.FullSlug {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]paths.FullSlug, len(r.order))
	copy(out, r.order)
	return out
}

// Reset empties the registry ahead of a full build.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = make(map[paths.FullSlug]struct{}, len(r.order))
	r.order = nil
}
