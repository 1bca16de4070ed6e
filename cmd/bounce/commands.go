package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/bouncegrid/bounce/pkg/config"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/formatter"
	"github.com/bouncegrid/bounce/pkg/help"
	"github.com/bouncegrid/bounce/pkg/runtime"
	"github.com/bouncegrid/bounce/pkg/scenario"
	"github.com/bouncegrid/bounce/pkg/sim"
)

var (
	checkCommand = cli.Command{
		Action:    checkFile,
		Name:      "check",
		Usage:     "Parse and validate a program file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{prettyFlag},
		Description: `The check command parses every program in the file and reports
syntax errors and warnings. It exits with 2 when the file has errors.`,
	}
	fmtCommand = cli.Command{
		Action:    formatFile,
		Name:      "fmt",
		Usage:     "Print a program file in canonical form",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{writeFlag, prettyFlag},
	}
	runCommand = cli.Command{
		Action:    runScenario,
		Name:      "run",
		Usage:     "Replay a scenario file",
		ArgsUsage: "<scenario.toml>",
		Flags:     []cli.Flag{jsonFlag},
		Description: `The run command replays the collisions of a scenario and prints the
actions each one produced. It exits with 5 when expectations fail.`,
	}
	helpCommand = cli.Command{
		Action:    showHelp,
		Name:      "help",
		Usage:     "Show the language reference",
		ArgsUsage: "[topic]",
	}
	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		Description: `The dumpconfig command shows the effective configuration as TOML.`,
	}
)

var (
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	okColor      = color.New(color.FgGreen).SprintFunc()
)

func fileArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", cli.NewExitError(fmt.Sprintf("usage: bounce %s %s", ctx.Command.Name, ctx.Command.ArgsUsage), exitUsage)
	}
	return ctx.Args().First(), nil
}

// readSource reads file. A failure is reported as an E_IO diagnostic.
func readSource(file string, pretty bool) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("could not read %s: %v", file, err), nil, "")
		return "", cli.NewExitError(diagnostics.FormatDiagnostic(diag, pretty), exitUsage)
	}
	return string(data), nil
}

func printDiagnostics(w io.Writer, diags []diagnostics.Diagnostic, pretty bool) {
	if !pretty {
		fmt.Fprintln(w, diagnostics.FormatDiagnostics(diags, false))
		return
	}
	for i, d := range diags {
		if i > 0 {
			fmt.Fprintln(w)
		}
		text := diagnostics.FormatDiagnostic(d, true)
		if d.IsError() {
			fmt.Fprintln(w, errorColor(text))
		} else {
			fmt.Fprintln(w, warningColor(text))
		}
	}
}

func checkFile(ctx *cli.Context) error {
	file, err := fileArg(ctx)
	if err != nil {
		return err
	}
	pretty := ctx.Bool(prettyFlag.Name)
	src, err := readSource(file, pretty)
	if err != nil {
		return err
	}
	programs, diags := runtime.Check(src, file)
	if len(diags) > 0 || !pretty {
		printDiagnostics(os.Stdout, diags, pretty)
	}
	if diagnostics.HasErrors(diags) {
		return cli.NewExitError("", exitDiag)
	}
	if pretty {
		names := make([]string, len(programs))
		for i, p := range programs {
			names[i] = p.Name
		}
		fmt.Println(okColor("ok"), strings.Join(names, ", "))
	}
	return nil
}

func formatFile(ctx *cli.Context) error {
	file, err := fileArg(ctx)
	if err != nil {
		return err
	}
	pretty := ctx.Bool(prettyFlag.Name)
	src, err := readSource(file, pretty)
	if err != nil {
		return err
	}
	out, err := runtime.Format(src, file)
	if err != nil {
		var derr *runtime.DiagnosticError
		if errors.As(err, &derr) {
			printDiagnostics(os.Stderr, derr.Diagnostics, pretty)
			return cli.NewExitError("", exitDiag)
		}
		if errors.Is(err, formatter.ErrNotExpressible) {
			return cli.NewExitError(err.Error(), exitRuntime)
		}
		return cli.NewExitError(err.Error(), exitUsage)
	}
	if !ctx.Bool(writeFlag.Name) {
		fmt.Print(out)
		return nil
	}
	if out == src {
		return nil
	}
	if err := os.WriteFile(file, []byte(out), 0o644); err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	return nil
}

func runScenario(ctx *cli.Context) error {
	file, err := fileArg(ctx)
	if err != nil {
		return err
	}
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	player, err := s.player(ctx)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(file)
	if err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	res, runErr := scenario.Replay(context.Background(), sc, scenario.Options{
		Log:    s.log,
		Player: player,
		Engine: s.engineOptions(),
		World: []sim.Option{
			sim.WithMaxDepth(s.cfg.Engine.MaxProgramDepth),
			sim.WithAudio(s.cfg.Audio.Channel, s.cfg.Audio.Pitch, s.cfg.Audio.Volume),
		},
	})
	if res == nil {
		return cli.NewExitError(runErr.Error(), exitUsage)
	}
	stats := res.World.Executor().Engine().Stats()
	s.log.Debug().
		Int("executions", stats.Executions).
		Int("dropped", stats.DroppedInstructions).
		Int("mismatches", stats.TypeMismatches).
		Strs("unresolved", stats.UnresolvedNames).
		Msg("replay finished")

	if ctx.Bool(jsonFlag.Name) {
		if err := printActionsJSON(os.Stdout, res); err != nil {
			return cli.NewExitError(err.Error(), exitRuntime)
		}
	} else {
		printActionsTable(os.Stdout, sc, res)
	}
	if runErr != nil {
		return cli.NewExitError(runErr.Error(), exitRuntime)
	}
	if err := scenario.Verify(sc, res); err != nil {
		return cli.NewExitError(err.Error(), exitMismatch)
	}
	return nil
}

func printActionsTable(w io.Writer, sc *scenario.Scenario, res *scenario.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Ball", "Square", "Actions"})
	table.SetAutoWrapText(false)
	for i, actions := range res.Strings() {
		c := sc.Collision[i]
		table.Append([]string{
			fmt.Sprint(i),
			c.Ball,
			fmt.Sprintf("(%d,%d)", c.X, c.Y),
			strings.Join(actions, "; "),
		})
	}
	table.Render()
}

func printActionsJSON(w io.Writer, res *scenario.Result) error {
	out := make([]json.RawMessage, len(res.Actions))
	for i, actions := range res.Actions {
		b, err := evaluator.ActionsToJSON(actions)
		if err != nil {
			return err
		}
		out[i] = b
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func showHelp(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		fmt.Print(help.QUICKREF)
		fmt.Println("\nRun 'bounce --help' for the command list.")
		return nil
	}
	_, content, err := help.MatchTopic(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	fmt.Print(content)
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	if err := config.Dump(os.Stdout, s.cfg); err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	return nil
}
