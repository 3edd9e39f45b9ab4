package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/eventstore"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of builds to show" default:"20"`
	JSON  bool `help:"Print records as JSON lines"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root, SiteFlags{})
	if err != nil {
		return err
	}
	if cfg.Events.StorePath == "" {
		return ferrors.ConfigError("build history is disabled (events.store_path is empty)").Build()
	}
	if _, err := os.Stat(cfg.Events.StorePath); err != nil {
		fmt.Println("No builds recorded yet")
		return nil
	}

	store, err := eventstore.NewSQLiteStore(cfg.Events.StorePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	projection := eventstore.NewBuildHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return err
	}
	return writeHistory(os.Stdout, projection.History(h.Limit), h.JSON)
}

func writeHistory(out io.Writer, records []build.BuildRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tTRIGGER\tOUTCOME\tPAGES\tCHANGES\tDURATION\tERROR")
	for _, rec := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Trigger,
			rec.Outcome,
			rec.Pages,
			rec.Changes,
			rec.Duration.Round(time.Millisecond),
			rec.Error)
	}
	return tw.Flush()
}
