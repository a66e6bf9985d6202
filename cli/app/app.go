package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/tribes-emu/dsovm/cli/dso"
	"github.com/tribes-emu/dsovm/cli/store"
	"github.com/tribes-emu/dsovm/cli/vm"
	"github.com/tribes-emu/dsovm/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "dsovm\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a dsovm instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "dsovm"
	ctl.Version = config.Version
	ctl.Usage = "Compiled script object loader and virtual machine"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, dso.NewCommands()...)
	ctl.Commands = append(ctl.Commands, vm.NewCommands()...)
	ctl.Commands = append(ctl.Commands, store.NewCommands()...)
	return ctl
}
