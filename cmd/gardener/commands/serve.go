package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/config"
	"git.home.luguber.info/inful/gardener/internal/content"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/git"
	"git.home.luguber.info/inful/gardener/internal/livereload"
	"git.home.luguber.info/inful/gardener/internal/lock"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/metrics"
	"git.home.luguber.info/inful/gardener/internal/server"
	"git.home.luguber.info/inful/gardener/internal/watch"
)

// ServeCmd builds the site, serves it and rebuilds on every change.
type ServeCmd struct {
	SiteFlags `embed:""`
	Host      string        `help:"Interface to bind" default:""`
	Port      int           `short:"p" help:"Site port (overrides serve.port)"`
	WSPort    int           `name:"ws-port" help:"Live-reload and metrics port (overrides serve.ws_port)"`
	BaseDir   string        `name:"base-dir" help:"URL prefix the site is served under (overrides serve.base_dir)"`
	Debounce  time.Duration `help:"Coalesce file events within this window (overrides serve.debounce)"`
	NoSync    bool          `name:"no-sync" help:"Disable scheduled git sync"`
}

func (s *ServeCmd) apply(cfg *config.Config) {
	if s.Port != 0 {
		cfg.Serve.Port = s.Port
	}
	if s.WSPort != 0 {
		cfg.Serve.WSPort = s.WSPort
	}
	if s.BaseDir != "" {
		cfg.Serve.BaseDir = s.BaseDir
	}
	if s.Debounce != 0 {
		cfg.Serve.Debounce = s.Debounce
	}
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root, s.SiteFlags)
	if err != nil {
		return err
	}
	s.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	lk := lock.ForOutput(cfg.Paths.Output)
	if err := lk.TryLock(ctx); err != nil {
		return err
	}
	defer func() { _ = lk.Unlock() }()

	observers, cleanup, err := openObservers(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	rec := metrics.NewPrometheusRecorder(nil)
	hub := livereload.NewHub(rec)
	defer hub.Shutdown()

	cache, err := content.NewPageCache(content.DefaultCacheSize)
	if err != nil {
		return err
	}
	orch, err := build.New(build.Options{
		Load:      newLoader(root, s.SiteFlags, cfg, cache),
		Notifier:  hub,
		Recorder:  rec,
		Observers: observers,
		Logger:    g.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = orch.Close() }()

	if _, err := orch.Request(ctx, build.Trigger{Kind: build.TriggerContent, Reason: "startup"}); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:      s.Host,
		Port:      cfg.Serve.Port,
		WSPort:    cfg.Serve.WSPort,
		OutputDir: cfg.Paths.Output,
		BasePath:  cfg.Serve.BaseDir,
	}, server.Options{
		Lock:     orch,
		Hub:      hub,
		Metrics:  rec.Handler(),
		Recorder: rec,
		Logger:   g.Logger,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		if err := srv.Stop(stopCtx); err != nil {
			g.Logger.Warn("Dev server shutdown", logfields.Error(err))
		}
	}()

	fatal := make(chan error, 1)
	requests := &requestRunner{orch: orch, fatal: fatal, log: g.Logger}
	w, err := watch.New(watch.Options{
		ContentDir: cfg.Paths.Content,
		Tooling:    toolingPaths(root.Config, cfg),
		Ignore:     []string{cfg.Paths.Output},
		Debounce:   cfg.Serve.Debounce,
		Logger:     g.Logger,
	}, func(t build.Trigger) { requests.submit(ctx, t) })
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServe, "failed to start watcher").Build()
	}
	defer func() { _ = w.Close() }()
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			g.Logger.Error("Watcher stopped", logfields.Error(err))
		}
	}()

	if cfg.Sync.Interval > 0 && !s.NoSync {
		syncer, err := newSyncer(cfg, cfg.Sync.ShouldPush())
		if err != nil {
			return err
		}
		sched, err := git.NewScheduler(cfg.Sync.Interval, syncer.Sync)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { _ = sched.Stop() }()
	}

	select {
	case <-ctx.Done():
		g.Logger.Info("Shutting down")
		return nil
	case err := <-fatal:
		return err
	}
}

// requestRunner turns watcher triggers into orchestrator requests off the watcher
// goroutine. The first fatal failure stops serve.
type requestRunner struct {
	orch  *build.Orchestrator
	fatal chan<- error
	log   *slog.Logger
}

func (r *requestRunner) submit(ctx context.Context, t build.Trigger) {
	go func() {
		_, err := r.orch.Request(ctx, t)
		if err == nil || ctx.Err() != nil {
			return
		}
		if ferrors.IsFatal(err) {
			select {
			case r.fatal <- err:
			default:
			}
			return
		}
		r.log.Error("Rebuild failed", logfields.Error(err))
	}()
}

// toolingPaths lists the inputs whose edits reload the pipeline.
func toolingPaths(configPath string, cfg *config.Config) []string {
	var out []string
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			out = append(out, configPath)
		}
	}
	for _, p := range []string{cfg.Paths.Layout, cfg.Paths.Scripts} {
		if p != "" {
			out = append(out, filepath.Clean(p))
		}
	}
	return out
}
