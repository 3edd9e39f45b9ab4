package build

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/content"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

type fakePipeline struct {
	fingerprint string

	mu       sync.Mutex
	builds   int
	rebuilds [][]content.Change
	closed   bool
	err      error
}

func (f *fakePipeline) Build(context.Context) (*content.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds++
	if f.err != nil {
		return nil, f.err
	}
	return &content.Result{Pages: 3}, nil
}

func (f *fakePipeline) Rebuild(_ context.Context, changes []content.Change) (*content.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds = append(f.rebuilds, changes)
	if f.err != nil {
		return nil, f.err
	}
	return &content.Result{Pages: len(changes), Partial: true}, nil
}

func (f *fakePipeline) Fingerprint() string { return f.fingerprint }

func (f *fakePipeline) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePipeline) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.builds, len(f.rebuilds)
}

type recordingObserver struct {
	mu      sync.Mutex
	records []BuildRecord
}

func (r *recordingObserver) RecordBuild(_ context.Context, rec BuildRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recordingObserver) all() []BuildRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]BuildRecord(nil), r.records...)
}

type harness struct {
	orch      *Orchestrator
	loaded    []*fakePipeline
	notified  atomic.Int32
	observer  *recordingObserver
	toolingFP atomic.Value
	loadErr   error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{observer: &recordingObserver{}}
	h.toolingFP.Store("v1")
	orch, err := New(Options{
		Load: func(context.Context) (Pipeline, error) {
			if h.loadErr != nil {
				return nil, h.loadErr
			}
			p := &fakePipeline{fingerprint: h.toolingFP.Load().(string)}
			h.loaded = append(h.loaded, p)
			return p, nil
		},
		Notifier:  NotifierFunc(func() { h.notified.Add(1) }),
		Observers: []Observer{h.observer},
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) current() *fakePipeline { return h.loaded[len(h.loaded)-1] }

func TestNewRequiresLoader(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestFirstRequestLoadsAndBuilds(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.orch.Request(context.Background(), Trigger{Kind: TriggerContent, Reason: "startup"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBuilt, outcome)
	require.Len(t, h.loaded, 1)

	builds, rebuilds := h.current().counts()
	assert.Equal(t, 1, builds)
	assert.Equal(t, 0, rebuilds)
	assert.Equal(t, int64(1), h.orch.Generation())
	assert.Equal(t, int32(1), h.notified.Load())

	recs := h.observer.all()
	require.Len(t, recs, 1)
	assert.Equal(t, OutcomeBuilt, recs[0].Outcome)
	assert.Equal(t, "startup", recs[0].Reason)
	assert.Equal(t, 3, recs[0].Pages)
	_, err = uuid.Parse(recs[0].ID)
	assert.NoError(t, err)
}

func TestContentRequestRebuildsChangedFiles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent})
	require.NoError(t, err)

	changes := []content.Change{{Path: "notes/b.md"}, {Path: "notes/a.md", Removed: true}}
	outcome, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent, Changes: changes})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBuilt, outcome)

	p := h.current()
	require.Len(t, h.loaded, 1)
	require.Len(t, p.rebuilds, 1)
	assert.Equal(t, []content.Change{{Path: "notes/a.md", Removed: true}, {Path: "notes/b.md"}}, p.rebuilds[0])
	assert.Equal(t, int64(2), h.orch.Generation())
	assert.Equal(t, int32(2), h.notified.Load())
	assert.True(t, h.observer.all()[1].Partial)
}

// A request that reaches the lock after a newer request was stamped aborts without
// emitting; the newer request builds both change sets exactly once.
func TestStaleRequestAborts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent})
	require.NoError(t, err)
	h.notified.Store(0)

	release := h.orch.ReadLock()

	type result struct {
		outcome Outcome
		err     error
	}
	first := make(chan result, 1)
	second := make(chan result, 1)

	go func() {
		o, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent, Changes: []content.Change{{Path: "t0.md"}}})
		first <- result{o, err}
	}()
	require.Eventually(t, func() bool { return h.orch.Latest() == 2 }, time.Second, time.Millisecond)

	go func() {
		o, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent, Changes: []content.Change{{Path: "t1.md"}}})
		second <- result{o, err}
	}()
	require.Eventually(t, func() bool { return h.orch.Latest() == 3 }, time.Second, time.Millisecond)

	release()

	r0, r1 := <-first, <-second
	require.NoError(t, r0.err)
	require.NoError(t, r1.err)
	assert.Equal(t, OutcomeStale, r0.outcome)
	assert.Equal(t, OutcomeBuilt, r1.outcome)

	p := h.current()
	require.Len(t, p.rebuilds, 1)
	assert.Equal(t, []content.Change{{Path: "t0.md"}, {Path: "t1.md"}}, p.rebuilds[0])
	assert.Equal(t, int32(1), h.notified.Load())
	assert.Equal(t, int64(2), h.orch.Generation())
	assert.Len(t, h.observer.all(), 2, "stale aborts are not recorded")
}

func TestToolingChangeTriggersHardRebuild(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent})
	require.NoError(t, err)
	old := h.current()

	h.toolingFP.Store("v2")
	outcome, err := h.orch.Request(ctx, Trigger{Kind: TriggerTooling, Reason: "layout"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHard, outcome)

	require.Len(t, h.loaded, 2)
	next := h.current()
	assert.True(t, old.closed)
	assert.False(t, next.closed)
	builds, rebuilds := next.counts()
	assert.Equal(t, 1, builds)
	assert.Equal(t, 0, rebuilds)
	assert.Equal(t, int32(2), h.notified.Load())
}

func TestUnchangedToolingRebuildsIncrementally(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent})
	require.NoError(t, err)
	old := h.current()

	outcome, err := h.orch.Request(ctx, Trigger{Kind: TriggerTooling, Changes: []content.Change{{Path: "x.md"}}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBuilt, outcome)

	require.Len(t, h.loaded, 2)
	assert.True(t, h.current().closed, "the trial pipeline is discarded")
	assert.False(t, old.closed)
	_, rebuilds := old.counts()
	assert.Equal(t, 1, rebuilds)
}

func TestFailedBuildIsFatal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent})
	require.NoError(t, err)

	cause := errors.New("template exploded")
	h.current().err = cause
	outcome, err := h.orch.Request(ctx, Trigger{Kind: TriggerContent, Changes: []content.Change{{Path: "x.md"}}})
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, cause)
	assert.True(t, ferrors.IsFatal(err))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))

	assert.Equal(t, int64(1), h.orch.Generation())
	assert.Equal(t, int32(1), h.notified.Load())
	recs := h.observer.all()
	require.Len(t, recs, 2)
	assert.Equal(t, OutcomeFailed, recs[1].Outcome)
	assert.Contains(t, recs[1].Error, "template exploded")

	// the lock is released after a failure
	release := h.orch.ReadLock()
	release()
}

func TestLoaderFailure(t *testing.T) {
	h := newHarness(t)
	h.loadErr = errors.New("bad config")
	_, err := h.orch.Request(context.Background(), Trigger{Kind: TriggerContent})
	require.Error(t, err)
	assert.ErrorIs(t, err, h.loadErr)
	assert.Equal(t, int64(0), h.orch.Generation())
}

func TestNotifyRunsOutsideLock(t *testing.T) {
	var orch *Orchestrator
	var unlocked atomic.Bool
	orch, err := New(Options{
		Load: func(context.Context) (Pipeline, error) { return &fakePipeline{}, nil },
		Notifier: NotifierFunc(func() {
			if orch.lock.TryLock() {
				unlocked.Store(true)
				orch.lock.Unlock()
			}
		}),
	})
	require.NoError(t, err)

	_, err = orch.Request(context.Background(), Trigger{Kind: TriggerContent})
	require.NoError(t, err)
	assert.True(t, unlocked.Load())
}

func TestReadersBlockRebuild(t *testing.T) {
	h := newHarness(t)
	release := h.orch.ReadLock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.Request(context.Background(), Trigger{Kind: TriggerContent})
	}()

	select {
	case <-done:
		t.Fatal("rebuild ran while a reader held the lock")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int64(0), h.orch.Generation())

	release()
	<-done
	assert.Equal(t, int64(1), h.orch.Generation())
}

func TestCloseReleasesPipeline(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orch.Close())

	_, err := h.orch.Request(context.Background(), Trigger{Kind: TriggerContent})
	require.NoError(t, err)
	require.NoError(t, h.orch.Close())
	assert.True(t, h.current().closed)
}

func TestPendingSetMergesLastWriteWins(t *testing.T) {
	var p pendingSet
	p.merge(Trigger{Kind: TriggerContent, Changes: []content.Change{{Path: "a.md"}}, Reason: "watch"})
	p.merge(Trigger{Kind: TriggerTooling, Changes: []content.Change{{Path: "a.md", Removed: true}}, Reason: "config"})

	got := p.take()
	assert.Equal(t, TriggerTooling, got.Kind)
	assert.Equal(t, []content.Change{{Path: "a.md", Removed: true}}, got.Changes)
	assert.Equal(t, "config", got.Reason)

	empty := p.take()
	assert.Equal(t, TriggerContent, empty.Kind)
	assert.Empty(t, empty.Changes)
}
