package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Slug", KeySlug, "a/b", Slug("a/b")},
		{"File", KeyFile, "note.md", File("note.md")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"Strategy", KeyStrategy, "shortest", Strategy("shortest")},
		{"Trigger", KeyTrigger, "content", Trigger("content")},
		{"Outcome", KeyOutcome, "stale", Outcome("stale")},
		{"Emitter", KeyEmitter, "page", Emitter("page")},
		{"BuildID", KeyBuildID, "id", BuildID("id")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"RemoteAddr", KeyRemoteAddr, "1.2.3.4", RemoteAddr("1.2.3.4")},
		{"Remote", KeyRemote, "origin", Remote("origin")},
		{"Branch", KeyBranch, "main", Branch("main")},
		{"URL", KeyURL, "http://example", URL("http://example")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
		{"NilError", KeyError, "", Error(nil)},
	}

	for _, tc := range cases {
		// Key drift would break log ingestion schemas.
		assert.Equal(t, tc.attrKey, tc.attr.Key, tc.name)
		assert.Equal(t, tc.attrVal, tc.attr.Value.String(), tc.name)
	}
}

func TestNumericHelpers(t *testing.T) {
	assert.Equal(t, int64(7), Generation(7).Value.Int64())
	assert.Equal(t, int64(3), Stamp(3).Value.Int64())
	assert.Equal(t, int64(2), Clients(2).Value.Int64())
	assert.Equal(t, int64(404), Status(404).Value.Int64())
	assert.InDelta(t, 1500.0, Duration(1500*time.Millisecond).Value.Float64(), 0.001)
	assert.Equal(t, KeyDurationMS, Duration(time.Second).Key)
}
