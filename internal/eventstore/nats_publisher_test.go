package eventstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/build"
)

func TestEncodeBuildMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	data, err := encodeBuildMessage("garden", record("id-1", build.OutcomeFailed, now), now)
	require.NoError(t, err)

	var msg BuildMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, TypeBuildFailed, msg.Type)
	assert.Equal(t, "garden", msg.Site)
	assert.Equal(t, "id-1", msg.Record.ID)
	assert.Equal(t, time.UTC, msg.SentAt.Location())
}

func TestNewNATSPublisherRequiresSubject(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:4222", "", "garden")
	require.Error(t, err)
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	// port 1 is never a NATS server
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "gardener.builds", "garden")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}
