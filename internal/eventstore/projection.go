// Package eventstore keeps the history of builds in SQLite and publishes build events.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/gardener/internal/build"
)

// BuildHistoryProjection is an in-memory, newest-first view of recorded builds.
type BuildHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	history []build.BuildRecord
	maxSize int
}

// NewBuildHistoryProjection keeps at most maxSize records (100 when <= 0).
func NewBuildHistoryProjection(store Store, maxSize int) *BuildHistoryProjection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &BuildHistoryProjection{store: store, maxSize: maxSize}
}

// Rebuild reloads the projection from every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}
	records := make([]build.BuildRecord, 0, len(events))
	for _, ev := range events {
		rec, err := DecodeRecord(ev)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].StartedAt.After(records[j].StartedAt) })
	if len(records) > p.maxSize {
		records = records[:p.maxSize]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = records
	return nil
}

// Apply adds one record at the front.
func (p *BuildHistoryProjection) Apply(rec build.BuildRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append([]build.BuildRecord{rec}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
}

// History returns up to limit records, newest first; limit <= 0 returns all.
func (p *BuildHistoryProjection) History(limit int) []build.BuildRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]build.BuildRecord, n)
	copy(out, p.history[:n])
	return out
}

// DecodeRecord parses the payload of a build event.
func DecodeRecord(ev Event) (build.BuildRecord, error) {
	var rec build.BuildRecord
	if err := json.Unmarshal(ev.Payload(), &rec); err != nil {
		return build.BuildRecord{}, wrap(ErrPayloadDecodeFailed, err)
	}
	return rec, nil
}
