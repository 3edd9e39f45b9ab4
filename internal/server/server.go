package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/livereload"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/metrics"
	"git.home.luguber.info/inful/gardener/internal/server/middleware"
)

// ReadLocker is the shared side of the rebuild lock.
type ReadLocker interface {
	ReadLock() func()
}

// Config configures the dev server listeners.
type Config struct {
	Host      string
	Port      int
	WSPort    int
	OutputDir string
	BasePath  string
}

// Options carries the collaborators of a Server. Hub and Metrics are optional.
type Options struct {
	Lock     ReadLocker
	Hub      *livereload.Hub
	Metrics  http.Handler
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Server runs the site listener and the control listener.
type Server struct {
	cfg  Config
	opts Options

	site    *http.Server
	control *http.Server
	siteLn  net.Listener
	ctrlLn  net.Listener
}

// New prepares a server; nothing is bound until Start.
func New(cfg Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{cfg: cfg, opts: opts}
}

// Start binds both ports, failing without side effects if either is taken, then serves
// in the background.
func (s *Server) Start(ctx context.Context) error {
	binds := []struct {
		name string
		port int
		ln   *net.Listener
	}{
		{"site", s.cfg.Port, &s.siteLn},
		{"control", s.cfg.WSPort, &s.ctrlLn},
	}
	var bindErrs []error
	lc := net.ListenConfig{}
	for _, b := range binds {
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(b.port)))
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s port %d: %w", b.name, b.port, err))
			continue
		}
		*b.ln = ln
	}
	if len(bindErrs) > 0 {
		for _, b := range binds {
			if *b.ln != nil {
				_ = (*b.ln).Close()
			}
		}
		return ferrors.WrapError(errors.Join(bindErrs...), ferrors.CategoryServe, "http startup failed").Fatal().Build()
	}

	chain := middleware.Chain(s.opts.Logger, ferrors.NewHTTPErrorAdapter(s.opts.Logger), s.opts.Recorder)

	var lock func() func()
	if s.opts.Lock != nil {
		lock = s.opts.Lock.ReadLock
	}
	var site http.Handler = NewHandler(s.cfg.OutputDir, s.cfg.BasePath, lock)
	if s.opts.Hub != nil {
		site = livereload.Inject(site, s.ControlPort())
	}
	s.site = &http.Server{
		Handler:           chain(site),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	mux := http.NewServeMux()
	if s.opts.Hub != nil {
		mux.Handle("/", s.opts.Hub)
	}
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics)
	}
	// websocket connections are long-lived, so no read or write timeouts
	s.control = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}

	s.serve("site", s.site, s.siteLn)
	s.serve("control", s.control, s.ctrlLn)
	s.opts.Logger.Info("Dev server started",
		logfields.URL(fmt.Sprintf("http://%s%s/", s.siteLn.Addr(), s.cfg.BasePath)),
		slog.Int("ws_port", s.ControlPort()))
	return nil
}

func (s *Server) serve(kind string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error(kind+" server error", logfields.Error(err))
		}
	}()
}

// SiteAddr is the bound site address, valid after Start.
func (s *Server) SiteAddr() string {
	if s.siteLn == nil {
		return ""
	}
	return s.siteLn.Addr().String()
}

// ControlPort is the bound control port, valid after Start.
func (s *Server) ControlPort() int {
	if s.ctrlLn == nil {
		return s.cfg.WSPort
	}
	if addr, ok := s.ctrlLn.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.cfg.WSPort
}

// Stop shuts down both listeners and disconnects live-reload clients.
func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.opts.Hub != nil {
		s.opts.Hub.Shutdown()
	}
	if s.control != nil {
		if err := s.control.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("control server shutdown: %w", err))
		}
	}
	if s.site != nil {
		if err := s.site.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("site server shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	s.opts.Logger.Info("Dev server stopped")
	return nil
}
