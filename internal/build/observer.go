package build

import (
	"context"
	"time"
)

// BuildRecord describes one finished request.
type BuildRecord struct {
	ID         string        `json:"id"`
	Stamp      int64         `json:"stamp"`
	Generation int64         `json:"generation"`
	Trigger    TriggerKind   `json:"trigger"`
	Reason     string        `json:"reason,omitempty"`
	Outcome    Outcome       `json:"outcome"`
	Pages      int           `json:"pages"`
	Assets     int           `json:"assets"`
	Changes    int           `json:"changes"`
	Partial    bool          `json:"partial"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Observer receives a record for every build that ran, successful or failed.
// Stale aborts are not recorded.
type Observer interface {
	RecordBuild(ctx context.Context, rec BuildRecord) error
}

// Notifier is told once after every successful build, outside the rebuild lock.
type Notifier interface {
	Notify()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

func (f NotifierFunc) Notify() { f() }

type noopNotifier struct{}

func (noopNotifier) Notify() {}
