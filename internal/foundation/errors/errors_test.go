package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "gardener.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())
		assert.Equal(t, "gardener.yaml", err.Context()["file"])
		assert.Equal(t, "[config:fatal] invalid configuration", err.Error())
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		cfg := ConfigError("bad").Build()
		assert.True(t, cfg.IsFatal())
		assert.False(t, cfg.CanRetry())

		build := BuildError("emit failed").Build()
		assert.True(t, build.IsFatal())

		net := NetworkError("timeout").Build()
		assert.True(t, net.CanRetry())
		assert.False(t, net.IsFatal())
	})
}

func TestWrapAndChain(t *testing.T) {
	cause := errors.New("merge conflict")
	err := WrapError(cause, CategoryGit, "pull failed").WithContext("remote", "origin").Build()

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[git:error] pull failed: merge conflict", err.Error())

	wrapped := fmt.Errorf("sync: %w", err)
	classified, ok := AsClassified(wrapped)
	require.True(t, ok, "classification survives fmt wrapping")
	assert.Equal(t, CategoryGit, classified.Category())
	assert.True(t, HasCategory(wrapped, CategoryGit))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, NewError(CategoryGit, "pull failed").Build()))
	assert.False(t, IsFatal(wrapped))
	assert.True(t, IsFatal(fmt.Errorf("x: %w", BuildError("y").Build())))
}

func TestBuilderReuse(t *testing.T) {
	b := GitError("push rejected").WithContext("branch", "main")
	first := b.Build()
	b.WithContext("branch", "dev")
	second := b.Build()

	assert.Equal(t, "main", first.Context()["branch"], "built errors are detached from the builder")
	assert.Equal(t, "dev", second.Context()["branch"])
	assert.Nil(t, NewError(CategoryGit, "x").Build().Context())
}

func TestCLIErrorAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	adapter := NewCLIErrorAdapter(false, logger)

	cases := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{errors.New("plain"), 1},
		{ValidationError("bad flag").Build(), 2},
		{ConfigError("bad config").Build(), 7},
		{GitError("pull").Build(), 8},
		{BuildError("render").Build(), 11},
		{ServeError("bind").Build(), 12},
		{NewError(CategoryInternal, "bug").Build(), 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, adapter.ExitCodeFor(tc.err), "%v", tc.err)
	}

	err := WrapError(errors.New("no such file"), CategoryConfig, "load config").Build()
	assert.Equal(t, "Error: load config: no such file", adapter.FormatError(err))
	assert.Equal(t, err.Error(), NewCLIErrorAdapter(true, logger).FormatError(err))

	assert.Equal(t, 7, adapter.Report(err))
	assert.Contains(t, buf.String(), "category=config")
	assert.Contains(t, buf.String(), `msg="load config"`)
}

func TestHTTPErrorAdapter(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	assert.Equal(t, http.StatusOK, adapter.StatusCodeFor(nil))
	assert.Equal(t, http.StatusNotFound, adapter.StatusCodeFor(NewError(CategoryNotFound, "x").Build()))
	assert.Equal(t, http.StatusServiceUnavailable, adapter.StatusCodeFor(ServeError("x").Build()))
	assert.Equal(t, http.StatusInternalServerError, adapter.StatusCodeFor(errors.New("x")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	adapter.WriteErrorResponse(rec, req, NewError(CategoryBuild, "render failed").WithContext("slug", "a/b").Build())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "render failed", body.Error)
	assert.Equal(t, "build", body.Code)
	assert.Equal(t, "a/b", body.Details["slug"])
}
