/*
Package dso implements commands inspecting compiled script files.
*/
package dso

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tribes-emu/dsovm/cli/options"
	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/vm/opcode"
	"github.com/urfave/cli"
	"gopkg.in/yaml.v3"
)

var errNoInput = errors.New("no input file given")

// NewCommands returns commands working with compiled script files.
func NewCommands() []cli.Command {
	formatFlag := cli.StringFlag{
		Name:  "format, f",
		Value: "text",
		Usage: "output format: text or yaml",
	}
	return []cli.Command{
		{
			Name:      "dump",
			Usage:     "Print contents of a compiled script",
			UsageText: "dump [--format text|yaml] [--config <file>] <file.dso>",
			Description: `Decodes the compiled script and prints its string table, global code
   and functions. String table charset is taken from the configuration.
`,
			Action: dump,
			Flags:  append([]cli.Flag{formatFlag}, options.Common...),
		},
		{
			Name:      "roundtrip",
			Usage:     "Check that a compiled script re-encodes to the same bytes",
			UsageText: "roundtrip [--config <file>] <file.dso>",
			Action:    roundtrip,
			Flags:     options.Common,
		},
	}
}

type dumpFunction struct {
	Name string   `yaml:"name"`
	Code []string `yaml:"code"`
}

type dumpBlock struct {
	Version   string         `yaml:"version"`
	Strings   []string       `yaml:"strings"`
	Global    []string       `yaml:"global"`
	Functions []dumpFunction `yaml:"functions"`
}

func readInput(ctx *cli.Context) (string, []byte, error) {
	path := ctx.Args().First()
	if path == "" {
		return "", nil, errNoInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return path, data, nil
}

func dump(ctx *cli.Context) error {
	path, data, err := readInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	env, err := options.NewEnv(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer env.Close()

	cb, err := env.Loader.Decode(data)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("%s: %w", path, err), 1)
	}
	switch f := ctx.String("format"); f {
	case "yaml":
		err = yaml.NewEncoder(ctx.App.Writer).Encode(toDump(cb))
	case "text", "":
		err = writeText(ctx.App.Writer, cb)
	default:
		err = fmt.Errorf("unknown format: %s", f)
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func toDump(cb *dso.CodeBlock) dumpBlock {
	d := dumpBlock{
		Version: fmt.Sprintf("0x%08x", cb.Version),
		Strings: cb.Strings,
		Global:  codeLines(cb, cb.Global),
	}
	for _, f := range cb.Functions {
		d.Functions = append(d.Functions, dumpFunction{Name: f.Name, Code: codeLines(cb, f.Code)})
	}
	return d
}

// codeLines renders instructions, string operands are followed by the
// quoted string table entry.
func codeLines(cb *dso.CodeBlock, code []dso.Instruction) []string {
	res := make([]string, 0, len(code))
	for _, ins := range code {
		s := ins.String()
		if inf, ok := opcode.Lookup(ins.Op); ok {
			for i, o := range inf.Operands {
				if o != opcode.StringIndex {
					continue
				}
				if str, err := cb.StringAt(int(ins.Params[i])); err == nil {
					s += " " + strconv.Quote(str)
				}
			}
		}
		res = append(res, s)
	}
	return res
}

func writeText(w io.Writer, cb *dso.CodeBlock) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "version: 0x%08x\n", cb.Version)
	fmt.Fprintf(&sb, "strings: %d\n", len(cb.Strings))
	for i, s := range cb.Strings {
		fmt.Fprintf(&sb, "  %4d %q\n", i, s)
	}
	fmt.Fprintf(&sb, "global:\n")
	for i, l := range codeLines(cb, cb.Global) {
		fmt.Fprintf(&sb, "  %4d %s\n", i, l)
	}
	for _, f := range cb.Functions {
		fmt.Fprintf(&sb, "function %s:\n", f.Name)
		for i, l := range codeLines(cb, f.Code) {
			fmt.Fprintf(&sb, "  %4d %s\n", i, l)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func roundtrip(ctx *cli.Context) error {
	path, data, err := readInput(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	charset, err := dso.LookupCharset(cfg.VM.Charset)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	cb, err := dso.Decoder{Charset: charset}.Decode(data)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("%s: %w", path, err), 1)
	}
	res, err := dso.Encoder{Charset: charset}.Encode(cb)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("%s: %w", path, err), 1)
	}
	if !bytes.Equal(data, res) {
		return cli.NewExitError(fmt.Errorf("%s: re-encoded script differs: %d bytes instead of %d, first difference at %d",
			path, len(res), len(data), firstDiff(data, res)), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "%s: OK, %d bytes\n", path, len(data))
	return nil
}

func firstDiff(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
