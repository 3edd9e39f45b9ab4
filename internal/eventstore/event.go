package eventstore

import "time"

// Event is one stored fact about a build.
type Event interface {
	ID() int64
	BuildID() string
	Type() string
	Timestamp() time.Time
	Payload() []byte
	Metadata() map[string]string
}

// StoredEvent is the row form of an Event.
type StoredEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *StoredEvent) ID() int64                   { return e.EventID }
func (e *StoredEvent) BuildID() string             { return e.EventBuildID }
func (e *StoredEvent) Type() string                { return e.EventType }
func (e *StoredEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *StoredEvent) Payload() []byte             { return e.EventPayload }
func (e *StoredEvent) Metadata() map[string]string { return e.EventMetadata }

// Event types written by the build observer.
const (
	TypeBuildCompleted = "BuildCompleted"
	TypeBuildFailed    = "BuildFailed"
)
