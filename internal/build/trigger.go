package build

import (
	"context"
	"sort"

	"git.home.luguber.info/inful/gardener/internal/content"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Pipeline is the content pipeline as seen by the orchestrator.
type Pipeline interface {
	Build(ctx context.Context) (*content.Result, error)
	Rebuild(ctx context.Context, changes []content.Change) (*content.Result, error)
	Fingerprint() string
	Close() error
}

// Loader constructs a pipeline from the current tooling inputs (config, layout, scripts).
type Loader func(ctx context.Context) (Pipeline, error)

// TriggerKind classifies what changed.
type TriggerKind string

const (
	// TriggerContent means only content files changed.
	TriggerContent TriggerKind = "content"
	// TriggerTooling means config, layout or scripts changed; the pipeline is reloaded.
	TriggerTooling TriggerKind = "tooling"
)

// Trigger is one change notification.
type Trigger struct {
	Kind    TriggerKind
	Changes []content.Change
	// Reason is a free-form label for logs and build history.
	Reason string
}

// Outcome is what a request ended up doing.
type Outcome string

const (
	OutcomeBuilt  Outcome = "built"
	OutcomeHard   Outcome = "hard"
	OutcomeStale  Outcome = "stale"
	OutcomeFailed Outcome = "failed"
)

// pendingSet accumulates changes across requests until one of them builds.
type pendingSet struct {
	tooling bool
	changes map[paths.FilePath]bool
	reasons []string
}

func (p *pendingSet) merge(t Trigger) {
	if t.Kind == TriggerTooling {
		p.tooling = true
	}
	if p.changes == nil {
		p.changes = make(map[paths.FilePath]bool, len(t.Changes))
	}
	for _, ch := range t.Changes {
		p.changes[ch.Path] = ch.Removed
	}
	if t.Reason != "" {
		p.reasons = append(p.reasons, t.Reason)
	}
}

// take returns the merged trigger and empties the set.
func (p *pendingSet) take() Trigger {
	t := Trigger{Kind: TriggerContent}
	if p.tooling {
		t.Kind = TriggerTooling
	}
	keys := make([]paths.FilePath, 0, len(p.changes))
	for fp := range p.changes {
		keys = append(keys, fp)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, fp := range keys {
		t.Changes = append(t.Changes, content.Change{Path: fp, Removed: p.changes[fp]})
	}
	if n := len(p.reasons); n > 0 {
		t.Reason = p.reasons[n-1]
	}
	*p = pendingSet{}
	return t
}
