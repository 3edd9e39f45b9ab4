package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/gardener/internal/livereload"
	"git.home.luguber.info/inful/gardener/internal/metrics"
)

type noLock struct{}

func (noLock) ReadLock() func() { return func() {} }

func TestServerEndToEnd(t *testing.T) {
	rec := metrics.NewPrometheusRecorder(nil)
	hub := livereload.NewHub(rec)
	srv := New(Config{Host: "127.0.0.1", OutputDir: writeSite(t)}, Options{
		Lock:     noLock{},
		Hub:      hub,
		Metrics:  rec.Handler(),
		Recorder: rec,
	})
	require.NoError(t, srv.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	}()

	resp, err := http.Get("http://" + srv.SiteAddr() + "/a")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), livereload.Snippet(srv.ControlPort())+"</body>")

	ctrl := "127.0.0.1:" + strconv.Itoa(srv.ControlPort())
	conn, wsResp, err := websocket.DefaultDialer.Dial("ws://"+ctrl+"/", nil)
	require.NoError(t, err)
	_ = wsResp.Body.Close()
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, livereload.Message, string(msg))

	resp, err = http.Get("http://" + ctrl + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "gardener_livereload_broadcasts_total")
	assert.Contains(t, string(body), "gardener_http_requests_total")
}

func TestServerStartFailsOnTakenPort(t *testing.T) {
	first := New(Config{Host: "127.0.0.1"}, Options{})
	require.NoError(t, first.Start(context.Background()))
	defer func() { _ = first.Stop(context.Background()) }()

	_, portStr, err := net.SplitHostPort(first.SiteAddr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	second := New(Config{Host: "127.0.0.1", Port: port}, Options{})
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http startup failed")
}
