/*
Package vm implements the command running compiled scripts.
*/
package vm

import (
	"errors"
	"fmt"
	"os"

	"github.com/tribes-emu/dsovm/cli/options"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/services/metrics"
	"github.com/tribes-emu/dsovm/pkg/sim"
	"github.com/tribes-emu/dsovm/pkg/vm"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var errNoScripts = errors.New("no scripts to run")

// NewCommands returns the 'run' command.
func NewCommands() []cli.Command {
	flags := []cli.Flag{
		cli.StringFlag{
			Name:  "call",
			Usage: "function to call after all scripts are registered",
		},
		cli.StringSliceFlag{
			Name:  "arg, a",
			Usage: "value pushed to the stack before the --call function is invoked (can be repeated)",
		},
		cli.BoolFlag{
			Name:  "stored, s",
			Usage: "treat arguments as names of scripts in the configured storage instead of file paths",
		},
		cli.StringFlag{
			Name:  "objects-out",
			Usage: "write CBOR snapshot of the object table to the given file when done",
		},
	}
	return []cli.Command{
		{
			Name:      "run",
			Usage:     "Run compiled scripts",
			UsageText: "run [--config <file>] [--stored] [--call <function> [--arg <value>...]] [--objects-out <file>] <script>...",
			Description: `Registers the given scripts in order (executing their global code) and
   optionally calls a function printing everything it leaves on the stack.
   If a script requests shutdown with 'quit', the remaining scripts and the
   call are skipped and the requested exit code is returned.
`,
			Action: run,
			Flags:  append(flags, options.Common...),
		},
	}
}

func run(ctx *cli.Context) error {
	if len(ctx.Args()) == 0 {
		return cli.NewExitError(errNoScripts, 1)
	}
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	prometheus := metrics.NewPrometheusService(env.Config.Prometheus, env.Log)
	pprof := metrics.NewPprofService(env.Config.Pprof, env.Log)
	for _, srv := range []*metrics.Service{prometheus, pprof} {
		if err := srv.Start(); err != nil {
			return cli.NewExitError(err, 1)
		}
		defer srv.ShutDown()
	}

	opts := []vm.Option{
		vm.WithLogger(env.Log),
		vm.WithOutput(ctx.App.Writer),
		vm.WithMaxCallDepth(env.Config.VM.MaxCallDepth),
	}
	for _, name := range env.Config.VM.DisabledBuiltins {
		opts = append(opts, vm.WithoutBuiltin(name))
	}
	v := vm.New(opts...)
	env.Log.Debug("VM created", zap.Stringer("session", v.Session()))

	err = execute(ctx, env, v)
	if out := ctx.String("objects-out"); out != "" {
		if serr := writeSnapshot(out, v); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if stop, code := v.ShutdownRequested(); stop && code != 0 {
		return cli.NewExitError(fmt.Sprintf("shutdown with code %d", code), code)
	}
	return nil
}

func execute(ctx *cli.Context, env *options.Env, v *vm.VM) error {
	for _, name := range ctx.Args() {
		var (
			cb  *dso.CodeBlock
			err error
		)
		if ctx.Bool("stored") {
			cb, err = env.Loader.Load(name)
		} else {
			cb, err = env.Loader.LoadFile(name)
		}
		if err != nil {
			return err
		}
		if err := v.RegisterCodeBlock(cb); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if stop, _ := v.ShutdownRequested(); stop {
			return nil
		}
	}

	fn := ctx.String("call")
	if fn == "" {
		return nil
	}
	for _, a := range ctx.StringSlice("arg") {
		v.Estack().PushVal(a)
	}
	// Script function names are stored lower-cased, built-ins are not.
	if !v.HasFunction(fn) && v.HasFunction(dso.LowerName(fn)) {
		fn = dso.LowerName(fn)
	}
	res, err := v.Call(fn)
	if err != nil {
		return err
	}
	for _, r := range res {
		fmt.Fprintln(ctx.App.Writer, sim.ToString(r))
	}
	return nil
}

func writeSnapshot(path string, v *vm.VM) error {
	data, err := sim.EncodeSnapshot(sim.Snapshot(v.Objects()))
	if err != nil {
		return fmt.Errorf("object snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("object snapshot: %w", err)
	}
	return nil
}
