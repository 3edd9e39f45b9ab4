package livereload

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const maxInjectSize = 2 << 20

// Snippet announces the live-reload socket to the bundled client script, which connects
// on page load and reloads on every rebuild message.
func Snippet(port int) string {
	return fmt.Sprintf(`<script>globalThis.__gardener_ws=(location.protocol==="https:"?"wss://":"ws://")+location.hostname+":%d/";</script>`, port)
}

// Inject wraps next so that full HTML responses carry Snippet(port) before </body>.
// HEAD is answered from a GET so its Content-Length matches the injected body.
func Inject(next http.Handler, port int) http.Handler {
	snippet := []byte(Snippet(port))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injector := &injector{ResponseWriter: w, statusCode: http.StatusOK, snippet: snippet}
		if r.Method == http.MethodHead {
			injector.head = true
			r = r.Clone(r.Context())
			r.Method = http.MethodGet
		}
		next.ServeHTTP(injector, r)
		injector.finalize()
	})
}

// injector buffers HTML bodies up to maxInjectSize; anything else passes straight through.
type injector struct {
	http.ResponseWriter
	statusCode    int
	buffer        []byte
	headerWritten bool
	passthrough   bool
	head          bool
	snippet       []byte
}

func (l *injector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *injector) Write(data []byte) (int, error) {
	if !l.headerWritten && !l.passthrough && l.buffer == nil {
		contentType := l.Header().Get("Content-Type")
		if l.statusCode != http.StatusOK || !strings.Contains(contentType, "text/html") {
			return l.startPassthrough(data)
		}
		l.buffer = make([]byte, 0, 64*1024)
	}
	if l.passthrough {
		return l.write(data)
	}

	if len(l.buffer)+len(data) > maxInjectSize {
		return l.startPassthrough(data)
	}
	l.buffer = append(l.buffer, data...)
	return len(data), nil
}

func (l *injector) startPassthrough(data []byte) (int, error) {
	l.passthrough = true
	l.ResponseWriter.WriteHeader(l.statusCode)
	l.headerWritten = true
	if len(l.buffer) > 0 {
		if _, err := l.write(l.buffer); err != nil {
			return 0, err
		}
		l.buffer = nil
	}
	return l.write(data)
}

// write drops the body of HEAD responses.
func (l *injector) write(data []byte) (int, error) {
	if l.head {
		return len(data), nil
	}
	return l.ResponseWriter.Write(data)
}

// finalize writes the buffered body with the snippet spliced in.
func (l *injector) finalize() {
	if l.passthrough || len(l.buffer) == 0 {
		if !l.headerWritten {
			l.ResponseWriter.WriteHeader(l.statusCode)
		}
		return
	}

	body := l.buffer
	if i := bytes.LastIndex(body, []byte("</body>")); i >= 0 {
		out := make([]byte, 0, len(body)+len(l.snippet))
		out = append(out, body[:i]...)
		out = append(out, l.snippet...)
		out = append(out, body[i:]...)
		body = out
	}
	l.Header().Set("Content-Length", strconv.Itoa(len(body)))
	l.ResponseWriter.WriteHeader(l.statusCode)
	_, _ = l.write(body)
}
