package commands

import (
	"fmt"

	"git.home.luguber.info/inful/gardener/internal/config"
	"git.home.luguber.info/inful/gardener/internal/version"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	fmt.Println("Wrote", root.Config)
	return nil
}

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Println(version.String())
	return nil
}
