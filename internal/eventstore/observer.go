package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/gardener/internal/build"
)

// Observer persists every build the orchestrator reports.
type Observer struct {
	store      Store
	projection *BuildHistoryProjection
}

// NewObserver writes to store and, when projection is non-nil, keeps it current.
func NewObserver(store Store, projection *BuildHistoryProjection) *Observer {
	return &Observer{store: store, projection: projection}
}

// RecordBuild implements build.Observer.
func (o *Observer) RecordBuild(ctx context.Context, rec build.BuildRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal build record: %w", err)
	}
	eventType := TypeBuildCompleted
	if rec.Outcome == build.OutcomeFailed {
		eventType = TypeBuildFailed
	}
	meta := map[string]string{
		"trigger": string(rec.Trigger),
		"outcome": string(rec.Outcome),
	}
	if err := o.store.Append(ctx, rec.ID, eventType, payload, meta); err != nil {
		return err
	}
	if o.projection != nil {
		o.projection.Apply(rec)
	}
	return nil
}

var _ build.Observer = (*Observer)(nil)
