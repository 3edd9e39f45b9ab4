// Command gardener builds, serves, syncs and publishes a digital garden.
package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/gardener/cmd/gardener/commands"
	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("gardener"),
		kong.Description("Static site builder for interlinked markdown notes."),
		kong.UsageOnError(),
		kong.Bind(global),
	)
	global.Logger = slog.Default()

	if err := parser.Run(global, cli); err != nil {
		os.Exit(ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err))
	}
}
