package build

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/gardener/internal/content"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/metrics"
)

// Options configures an Orchestrator.
type Options struct {
	Load      Loader
	Notifier  Notifier
	Recorder  metrics.Recorder
	Observers []Observer
	Logger    *slog.Logger
}

// Orchestrator owns the output tree. One exists per process, shared by the change
// sources and the dev-server handler.
type Orchestrator struct {
	lock   sync.RWMutex
	latest atomic.Int64

	pendingMu sync.Mutex
	pending   pendingSet

	// guarded by lock
	pipeline Pipeline

	generation atomic.Int64
	load       Loader
	notifier   Notifier
	recorder   metrics.Recorder
	observers  []Observer
	log        *slog.Logger
}

// New validates opts and returns an idle orchestrator. The pipeline is loaded lazily by
// the first request.
func New(opts Options) (*Orchestrator, error) {
	if opts.Load == nil {
		return nil, ferrors.ValidationError("pipeline loader is required").Build()
	}
	o := &Orchestrator{
		load:      opts.Load,
		notifier:  opts.Notifier,
		recorder:  opts.Recorder,
		observers: opts.Observers,
		log:       opts.Logger,
	}
	if o.notifier == nil {
		o.notifier = noopNotifier{}
	}
	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	return o, nil
}

// ReadLock takes the shared side of the rebuild lock and returns its release.
func (o *Orchestrator) ReadLock() func() {
	o.lock.RLock()
	return o.lock.RUnlock
}

// Generation is the number of successful builds so far.
func (o *Orchestrator) Generation() int64 { return o.generation.Load() }

// Latest is the most recently issued request stamp.
func (o *Orchestrator) Latest() int64 { return o.latest.Load() }

// Request stamps t and blocks until it either built the output or lost to a newer
// request. Stale requests return OutcomeStale and a nil error.
func (o *Orchestrator) Request(ctx context.Context, t Trigger) (Outcome, error) {
	stamp := o.stamp(t)
	log := o.log.With(logfields.Stamp(stamp), logfields.Trigger(string(t.Kind)))
	log.Debug("Rebuild requested", slog.Int("changes", len(t.Changes)))

	o.lock.Lock()
	merged, ok := o.drain(stamp)
	if !ok {
		o.lock.Unlock()
		o.recorder.IncRebuildOutcome(metrics.OutcomeStale)
		log.Debug("Rebuild superseded", slog.Int64("latest", o.latest.Load()))
		return OutcomeStale, nil
	}

	rec := BuildRecord{
		ID:        uuid.New().String(),
		Stamp:     stamp,
		Trigger:   merged.Kind,
		Reason:    merged.Reason,
		Changes:   len(merged.Changes),
		StartedAt: time.Now(),
	}
	outcome, res, err := o.run(ctx, merged, log)
	rec.Duration = time.Since(rec.StartedAt)
	if err != nil {
		o.lock.Unlock()
		rec.Outcome = OutcomeFailed
		rec.Generation = o.generation.Load()
		rec.Error = err.Error()
		o.recorder.IncRebuildOutcome(metrics.OutcomeFailed)
		o.observe(ctx, rec)
		log.Error("Rebuild failed", logfields.Error(err), logfields.Duration(rec.Duration))
		return OutcomeFailed, ferrors.WrapError(err, ferrors.CategoryBuild, "rebuild failed").
			Fatal().
			WithContext("stamp", stamp).
			WithContext("trigger", string(merged.Kind)).
			Build()
	}
	gen := o.generation.Add(1)
	o.lock.Unlock()

	o.notifier.Notify()

	rec.Outcome = outcome
	rec.Generation = gen
	if res != nil {
		rec.Pages, rec.Assets, rec.Partial = res.Pages, res.Assets, res.Partial
	}
	label := metrics.OutcomeSuccess
	if outcome == OutcomeHard {
		label = metrics.OutcomeHard
	}
	o.recorder.IncRebuildOutcome(label)
	o.recorder.ObserveRebuildDuration(string(merged.Kind), rec.Duration)
	o.recorder.SetGeneration(gen)
	o.observe(ctx, rec)
	log.Info("Rebuild complete",
		logfields.Generation(gen),
		logfields.Outcome(string(outcome)),
		logfields.Pages(rec.Pages),
		logfields.Duration(rec.Duration))
	return outcome, nil
}

// stamp issues the next stamp and merges t into the pending set in one step, so a
// request that sees itself as latest also sees every change stamped before it.
func (o *Orchestrator) stamp(t Trigger) int64 {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	o.pending.merge(t)
	return o.latest.Add(1)
}

// drain takes the pending set when stamp is still the latest. Called with lock held.
func (o *Orchestrator) drain(stamp int64) (Trigger, bool) {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	if o.latest.Load() != stamp {
		return Trigger{}, false
	}
	return o.pending.take(), true
}

// run performs the build. Called with lock held.
func (o *Orchestrator) run(ctx context.Context, t Trigger, log *slog.Logger) (Outcome, *content.Result, error) {
	if o.pipeline == nil {
		p, err := o.load(ctx)
		if err != nil {
			return OutcomeFailed, nil, err
		}
		o.pipeline = p
		res, err := p.Build(ctx)
		return OutcomeBuilt, res, err
	}

	if t.Kind == TriggerTooling {
		next, err := o.load(ctx)
		if err != nil {
			return OutcomeFailed, nil, err
		}
		if next.Fingerprint() != o.pipeline.Fingerprint() {
			log.Info("Tooling changed, rebuilding from scratch")
			if err := o.pipeline.Close(); err != nil {
				log.Warn("Closing previous pipeline", logfields.Error(err))
			}
			o.pipeline = next
			res, err := next.Build(ctx)
			return OutcomeHard, res, err
		}
		if err := next.Close(); err != nil {
			log.Warn("Closing unused pipeline", logfields.Error(err))
		}
	}

	res, err := o.pipeline.Rebuild(ctx, t.Changes)
	return OutcomeBuilt, res, err
}

func (o *Orchestrator) observe(ctx context.Context, rec BuildRecord) {
	for _, obs := range o.observers {
		if err := obs.RecordBuild(ctx, rec); err != nil {
			o.log.Warn("Build observer failed", logfields.BuildID(rec.ID), logfields.Error(err))
		}
	}
}

// Close releases the current pipeline.
func (o *Orchestrator) Close() error {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.pipeline == nil {
		return nil
	}
	err := o.pipeline.Close()
	o.pipeline = nil
	return err
}
