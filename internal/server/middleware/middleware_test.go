package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/metrics"
)

type statusRecorder struct {
	metrics.NoopRecorder
	codes []int
}

func (s *statusRecorder) IncHTTPRequest(code int) { s.codes = append(s.codes, code) }

func TestChainRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &statusRecorder{}
	h := Chain(logger, nil, rec)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, []int{http.StatusInternalServerError}, rec.codes)
}

func TestChainRecordsStatus(t *testing.T) {
	rec := &statusRecorder{}
	h := Chain(nil, nil, rec)(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, []int{http.StatusNotFound}, rec.codes)
}
