package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/build"
)

func record(id string, outcome build.Outcome, started time.Time) build.BuildRecord {
	return build.BuildRecord{
		ID:        id,
		Trigger:   build.TriggerContent,
		Outcome:   outcome,
		Pages:     3,
		StartedAt: started,
		Duration:  25 * time.Millisecond,
	}
}

func TestObserverPersistsAndProjects(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t)
	projection := NewBuildHistoryProjection(store, 10)
	obs := NewObserver(store, projection)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, obs.RecordBuild(ctx, record("one", build.OutcomeBuilt, base)))
	failed := record("two", build.OutcomeFailed, base.Add(time.Second))
	failed.Error = "boom"
	require.NoError(t, obs.RecordBuild(ctx, failed))

	events, err := store.GetByBuildID(ctx, "two")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeBuildFailed, events[0].Type())
	assert.Equal(t, "failed", events[0].Metadata()["outcome"])
	assert.Equal(t, "content", events[0].Metadata()["trigger"])

	history := projection.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, "two", history[0].ID)
	assert.Equal(t, "boom", history[0].Error)

	fresh := NewBuildHistoryProjection(store, 10)
	require.NoError(t, fresh.Rebuild(ctx))
	rebuilt := fresh.History(0)
	require.Len(t, rebuilt, 2)
	assert.Equal(t, "two", rebuilt[0].ID)
	assert.Equal(t, "one", rebuilt[1].ID)
	assert.True(t, base.Equal(rebuilt[1].StartedAt))
	assert.Equal(t, 25*time.Millisecond, rebuilt[1].Duration)
}

func TestProjectionLimits(t *testing.T) {
	p := NewBuildHistoryProjection(newMemoryStore(t), 2)
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		p.Apply(record(id, build.OutcomeBuilt, base.Add(time.Duration(i)*time.Second)))
	}
	history := p.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, []string{"c", "b"}, []string{history[0].ID, history[1].ID})
	assert.Len(t, p.History(1), 1)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	_, err := DecodeRecord(&StoredEvent{EventPayload: []byte("not json")})
	require.ErrorIs(t, err, ErrPayloadDecodeFailed)
}
