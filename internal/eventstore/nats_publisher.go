package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/logfields"
)

// BuildMessage is the JSON body published for each build.
type BuildMessage struct {
	Type   string            `json:"type"`
	Site   string            `json:"site"`
	Record build.BuildRecord `json:"record"`
	SentAt time.Time         `json:"sent_at"`
}

// NATSPublisher publishes one message per recorded build.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	site    string
}

// NewNATSPublisher connects to url. site labels messages when several gardens share a
// subject.
func NewNATSPublisher(url, subject, site string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("gardener"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(false))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", logfields.URL(url), slog.String("subject", subject))
	return &NATSPublisher{conn: conn, subject: subject, site: site}, nil
}

// RecordBuild implements build.Observer.
func (p *NATSPublisher) RecordBuild(ctx context.Context, rec build.BuildRecord) error {
	data, err := encodeBuildMessage(p.site, rec, time.Now())
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish build event: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush build event: %w", err)
	}
	slog.Debug("Published build event", logfields.BuildID(rec.ID), logfields.Outcome(string(rec.Outcome)))
	return nil
}

func encodeBuildMessage(site string, rec build.BuildRecord, now time.Time) ([]byte, error) {
	eventType := TypeBuildCompleted
	if rec.Outcome == build.OutcomeFailed {
		eventType = TypeBuildFailed
	}
	data, err := json.Marshal(BuildMessage{Type: eventType, Site: site, Record: rec, SentAt: now.UTC()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

var _ build.Observer = (*NATSPublisher)(nil)
