package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/gardener/internal/lock"
	"git.home.luguber.info/inful/gardener/internal/publish"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	SiteFlags `embed:""`
	Build     bool   `help:"Build the site before uploading"`
	Prefix    string `help:"Object key prefix (overrides publish.prefix)"`
}

func (p *PublishCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root, p.SiteFlags)
	if err != nil {
		return err
	}
	if p.Prefix != "" {
		cfg.Publish.Prefix = p.Prefix
	}

	pub, err := publish.New(publish.Config{
		Endpoint:  cfg.Publish.Endpoint,
		Region:    cfg.Publish.Region,
		AccessKey: cfg.Publish.AccessKey,
		SecretKey: cfg.Publish.SecretKey,
		Bucket:    cfg.Publish.Bucket,
		Prefix:    cfg.Publish.Prefix,
		UseSSL:    cfg.Publish.SSL(),
		Retry:     cfg.Publish.Retry.Policy(),
	})
	if err != nil {
		return err
	}

	if p.Build {
		rec, err := RunBuild(ctx, g, root, p.SiteFlags, cfg)
		if err != nil {
			return err
		}
		printSummary(rec)
	}

	lk := lock.ForOutput(cfg.Paths.Output)
	if err := lk.TryLock(ctx); err != nil {
		return err
	}
	defer func() { _ = lk.Unlock() }()

	rep, err := pub.Publish(ctx, cfg.Paths.Output)
	if err != nil {
		return err
	}
	fmt.Printf("Published %d files (%d bytes) to %s, removed %d stale objects\n", rep.Uploaded, rep.Bytes, cfg.Publish.Bucket, rep.Removed)
	return nil
}
