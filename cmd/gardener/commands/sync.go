package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/gardener/internal/config"
	"git.home.luguber.info/inful/gardener/internal/git"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	Content string `help:"Content directory (overrides paths.content)"`
	NoPush  bool   `name:"no-push" help:"Commit and pull but do not push"`
}

func (s *SyncCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(root, SiteFlags{Content: s.Content})
	if err != nil {
		return err
	}
	syncer, err := newSyncer(cfg, cfg.Sync.ShouldPush() && !s.NoPush)
	if err != nil {
		return err
	}
	res, err := syncer.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Synced %s/%s: %d files committed, head %s\n", cfg.Sync.Remote, cfg.Sync.Branch, res.Committed, shortHash(res.After))
	return nil
}

func newSyncer(cfg *config.Config, push bool) (*git.Syncer, error) {
	auth, err := git.AuthFromEnv()
	if err != nil {
		return nil, err
	}
	return git.NewSyncer(git.Options{
		Dir:         cfg.Paths.Content,
		Remote:      cfg.Sync.Remote,
		Branch:      cfg.Sync.Branch,
		AuthorName:  cfg.Sync.AuthorName,
		AuthorEmail: cfg.Sync.AuthorEmail,
		Push:        push,
		Auth:        auth,
	})
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
