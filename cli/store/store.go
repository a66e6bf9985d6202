/*
Package store implements commands managing compiled scripts kept in the
configured storage.
*/
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/tribes-emu/dsovm/cli/options"
	"github.com/urfave/cli"
)

var errNoName = errors.New("script name is required")

// NewCommands returns 'store' command with its subcommands.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:  "store",
			Usage: "Manage compiled scripts in the storage",
			Subcommands: []cli.Command{
				{
					Name:      "put",
					Usage:     "Validate compiled script file and save it to the storage",
					UsageText: "put [--config <file>] <file.dso> [<name>]",
					Description: `Saves the script under the given name or its path if the name is
   omitted. The script is decoded first, invalid scripts are not saved.
`,
					Action: put,
					Flags:  options.Common,
				},
				{
					Name:      "get",
					Usage:     "Write stored script to a file",
					UsageText: "get [--config <file>] <name> <file.dso>",
					Action:    get,
					Flags:     options.Common,
				},
				{
					Name:      "list",
					Usage:     "List stored scripts",
					UsageText: "list [--config <file>] [<prefix>]",
					Action:    list,
					Flags:     options.Common,
				},
				{
					Name:      "delete",
					Usage:     "Remove script from the storage",
					UsageText: "delete [--config <file>] <name>",
					Action:    remove,
					Flags:     options.Common,
				},
			},
		},
	}
}

func put(ctx *cli.Context) error {
	path := ctx.Args().Get(0)
	if path == "" {
		return cli.NewExitError(errors.New("script file is required"), 1)
	}
	name := ctx.Args().Get(1)
	if name == "" {
		name = path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	if err := env.Loader.Put(name, data); err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "stored %s (%d bytes)\n", name, len(data))
	return nil
}

func get(ctx *cli.Context) error {
	name, path := ctx.Args().Get(0), ctx.Args().Get(1)
	if name == "" || path == "" {
		return cli.NewExitError(errors.New("script name and output file are required"), 1)
	}
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	data, err := env.Loader.Raw(name)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func list(ctx *cli.Context) error {
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	names, err := env.Loader.List(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	for _, n := range names {
		fmt.Fprintln(ctx.App.Writer, n)
	}
	return nil
}

func remove(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "" {
		return cli.NewExitError(errNoName, 1)
	}
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	if err := env.Loader.Delete(name); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
