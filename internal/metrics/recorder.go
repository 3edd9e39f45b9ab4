package metrics

import "time"

// OutcomeLabel enumerates rebuild outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess OutcomeLabel = "success"
	OutcomeHard    OutcomeLabel = "hard"
	OutcomeStale   OutcomeLabel = "stale"
	OutcomeFailed  OutcomeLabel = "failed"
)

// Recorder defines observability hooks for the rebuild loop and the live-reload
// channel. Implementations may forward to Prometheus; NoopRecorder is the default.
type Recorder interface {
	ObserveRebuildDuration(trigger string, d time.Duration)
	IncRebuildOutcome(outcome OutcomeLabel)
	SetGeneration(n int64)
	SetLiveReloadClients(n int)
	IncLiveReloadBroadcast()
	IncLiveReloadDropped()
	IncHTTPRequest(status int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRebuildDuration(string, time.Duration) {}
func (NoopRecorder) IncRebuildOutcome(OutcomeLabel)               {}
func (NoopRecorder) SetGeneration(int64)                          {}
func (NoopRecorder) SetLiveReloadClients(int)                     {}
func (NoopRecorder) IncLiveReloadBroadcast()                      {}
func (NoopRecorder) IncLiveReloadDropped()                        {}
func (NoopRecorder) IncHTTPRequest(int)                           {}
