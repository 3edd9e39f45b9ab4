package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/bundle"
	"git.home.luguber.info/inful/gardener/internal/config"
	"git.home.luguber.info/inful/gardener/internal/content"
	"git.home.luguber.info/inful/gardener/internal/eventstore"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/logfields"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"gardener.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build   BuildCmd   `cmd:"" help:"Build the site once"`
	Serve   ServeCmd   `cmd:"" help:"Build, watch and serve the site with live reload"`
	Sync    SyncCmd    `cmd:"" help:"Commit local edits and sync content with the git remote"`
	Publish PublishCmd `cmd:"" help:"Upload the output directory to an S3-compatible bucket"`
	History HistoryCmd `cmd:"" help:"List recorded builds"`
	Init    InitCmd    `cmd:"" help:"Write a default configuration file"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

// SiteFlags override the path and link settings of the config file.
type SiteFlags struct {
	Content  string `help:"Content directory (overrides paths.content)"`
	Output   string `short:"o" help:"Output directory (overrides paths.output)"`
	Strategy string `name:"strategy" help:"Link resolution: shortest, absolute or relative (overrides site.link_resolution)"`
	Minify   bool   `help:"Minify the client script bundle"`
}

func (f SiteFlags) apply(cfg *config.Config) {
	if f.Content != "" {
		cfg.Paths.Content = f.Content
	}
	if f.Output != "" {
		cfg.Paths.Output = f.Output
	}
	if f.Strategy != "" {
		cfg.Site.LinkResolution = f.Strategy
	}
}

// loadConfig reads the config file and applies flag overrides, then validates again so a
// bad flag fails like a bad file.
func loadConfig(root *CLI, flags SiteFlags) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLoader returns the pipeline loader. Each call re-reads the config file, layout and
// scripts, so tooling edits take effect on the next tooling trigger. Paths stay pinned to
// the values the process started with since the watcher and server are bound to them.
func newLoader(root *CLI, flags SiteFlags, pinned *config.Config, cache *content.PageCache) build.Loader {
	return func(ctx context.Context) (build.Pipeline, error) {
		cfg, err := loadConfig(root, flags)
		if err != nil {
			return nil, err
		}
		cfg.Paths.Content = pinned.Paths.Content
		cfg.Paths.Output = pinned.Paths.Output
		return openSite(cfg, flags.Minify, cache)
	}
}

func openSite(cfg *config.Config, minify bool, cache *content.PageCache) (*content.Site, error) {
	var layout []byte
	if cfg.Paths.Layout != "" {
		data, err := os.ReadFile(cfg.Paths.Layout)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read layout template").
				WithContext("path", cfg.Paths.Layout).
				Build()
		}
		layout = data
	}

	out, err := bundle.Build(bundle.Options{ScriptsDir: cfg.Paths.Scripts, Minify: minify})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryBuild, "script bundle failed").
			WithContext("scripts", cfg.Paths.Scripts).
			Build()
	}

	site, err := content.NewSite(content.Options{
		ContentDir:     cfg.Paths.Content,
		OutputDir:      cfg.Paths.Output,
		Title:          cfg.Site.Title,
		BaseURL:        cfg.Site.BaseURL,
		Locale:         cfg.Site.Locale,
		IgnorePatterns: cfg.Site.IgnorePatterns,
		Strategy:       cfg.Strategy(),
		Layout:         layout,
		Bundle:         out,
		Cache:          cache,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryBuild, "failed to prepare content pipeline").Build()
	}
	return site, nil
}

// openObservers wires build history and, when configured, the NATS publisher. The
// returned cleanup closes whatever was opened.
func openObservers(cfg *config.Config, logger *slog.Logger) ([]build.Observer, func(), error) {
	var observers []build.Observer
	var closers []func() error

	if cfg.Events.StorePath != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.StorePath)
		if err != nil {
			return nil, func() {}, err
		}
		observers = append(observers, eventstore.NewObserver(store, nil))
		closers = append(closers, store.Close)
	}

	if cfg.Events.NATSURL != "" {
		pub, err := eventstore.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.NATSSubject, cfg.Site.Title)
		if err != nil {
			// builds must not depend on the broker being up
			logger.Warn("NATS publisher disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			observers = append(observers, pub)
			closers = append(closers, pub.Close)
		}
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("Closing build observer", logfields.Error(err))
			}
		}
	}
	return observers, cleanup, nil
}

// lastBuild keeps the most recent record for command summaries.
type lastBuild struct {
	rec build.BuildRecord
}

func (l *lastBuild) RecordBuild(_ context.Context, rec build.BuildRecord) error {
	l.rec = rec
	return nil
}

func printSummary(rec build.BuildRecord) {
	fmt.Printf("Built %d pages and %d assets in %s (%s)\n",
		rec.Pages, rec.Assets, rec.Duration.Round(time.Millisecond), rec.Outcome)
}
