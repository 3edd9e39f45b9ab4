package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/config"
	"git.home.luguber.info/inful/gardener/internal/content"
	"git.home.luguber.info/inful/gardener/internal/lock"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SiteFlags `embed:""`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root, b.SiteFlags)
	if err != nil {
		return err
	}
	rec, err := RunBuild(ctx, g, root, b.SiteFlags, cfg)
	if err != nil {
		return err
	}
	printSummary(rec)
	return nil
}

// RunBuild performs one full build of cfg under the output lock.
func RunBuild(ctx context.Context, g *Global, root *CLI, flags SiteFlags, cfg *config.Config) (build.BuildRecord, error) {
	lk := lock.ForOutput(cfg.Paths.Output)
	if err := lk.TryLock(ctx); err != nil {
		return build.BuildRecord{}, err
	}
	defer func() { _ = lk.Unlock() }()

	observers, cleanup, err := openObservers(cfg, g.Logger)
	if err != nil {
		return build.BuildRecord{}, err
	}
	defer cleanup()
	last := &lastBuild{}

	// a one-shot build has nothing to reuse the cache for
	orch, err := build.New(build.Options{
		Load:      newLoader(root, flags, cfg, nil),
		Observers: append(observers, last),
		Logger:    g.Logger,
	})
	if err != nil {
		return build.BuildRecord{}, err
	}
	defer func() { _ = orch.Close() }()

	if _, err := orch.Request(ctx, build.Trigger{Kind: build.TriggerContent, Reason: "build"}); err != nil {
		return last.rec, err
	}
	return last.rec, nil
}

var _ build.Pipeline = (*content.Site)(nil)
