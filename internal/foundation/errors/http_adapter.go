package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter writes classified errors as JSON responses for the dev server.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the JSON error payload.
type HTTPErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor maps err to a status; unknown errors are 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if k, ok := kindOf(err); ok {
		return k.httpStatus
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse writes the payload for err and logs it against the request path.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := a.StatusCodeFor(err)
	if err == nil {
		w.WriteHeader(status)
		return
	}

	resp := HTTPErrorResponse{Error: err.Error()}
	level := slog.LevelError
	if c, ok := AsClassified(err); ok {
		resp = HTTPErrorResponse{Error: c.message, Code: string(c.category)}
		if len(c.context) > 0 {
			resp.Details = c.context
		}
		level = levelFor(c.severity)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.logger.Warn("failed to encode error response", slog.String("error", err.Error()))
	}
	a.logger.Log(r.Context(), level, resp.Error, slog.String("path", r.URL.Path), slog.Int("status", status))
}
