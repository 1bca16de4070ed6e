package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/library"
	"github.com/bouncegrid/bounce/pkg/parser"
)

var libraryCommand = cli.Command{
	Name:     "library",
	Usage:    "Manage the program library",
	Category: "LIBRARY COMMANDS",
	Description: `
The library stores program sources by name. Its location is Library.Path
in the configuration, or the BOUNCE_LIBRARY environment variable.`,
	Subcommands: []cli.Command{
		{
			Name:      "save",
			Usage:     "Store the single program of a file",
			ArgsUsage: "<file>",
			Action:    libraryAction(librarySave),
		},
		{
			Name:      "import",
			Usage:     "Store every program of a file",
			ArgsUsage: "<file>",
			Action:    libraryAction(libraryImport),
		},
		{
			Name:   "list",
			Usage:  "List stored programs",
			Action: libraryAction(libraryList),
		},
		{
			Name:      "show",
			Usage:     "Print the source of a stored program",
			ArgsUsage: "<name>",
			Action:    libraryAction(libraryShow),
		},
		{
			Name:      "rm",
			Usage:     "Remove a stored program",
			ArgsUsage: "<name>",
			Action:    libraryAction(libraryRemove),
		},
	},
}

func openLibrary(s *session) (*library.Library, error) {
	lib, err := library.Open(s.cfg.Library.Path, s.cfg.Library.CacheSize)
	if err != nil {
		return nil, cli.NewExitError(err.Error(), exitUsage)
	}
	return lib, nil
}

// libraryAction opens the library around fn.
func libraryAction(fn func(*cli.Context, *library.Library) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		s, err := newSession(ctx)
		if err != nil {
			return err
		}
		lib, err := openLibrary(s)
		if err != nil {
			return err
		}
		defer lib.Close()
		return fn(ctx, lib)
	}
}

func librarySave(ctx *cli.Context, lib *library.Library) error {
	file, err := fileArg(ctx)
	if err != nil {
		return err
	}
	src, err := readSource(file, true)
	if err != nil {
		return err
	}
	prog, err := parser.ParseProgram(src, file)
	if err != nil {
		return parseExit(err)
	}
	if err := lib.Save(prog.Name, src); err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	fmt.Println("saved", prog.Name)
	return nil
}

func libraryImport(ctx *cli.Context, lib *library.Library) error {
	file, err := fileArg(ctx)
	if err != nil {
		return err
	}
	src, err := readSource(file, true)
	if err != nil {
		return err
	}
	names, err := lib.Import(src, file)
	if err != nil {
		var perr *parser.Error
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "input kept as %q\n", library.UnparsedName)
		}
		return parseExit(err)
	}
	for _, n := range names {
		fmt.Println("saved", n)
	}
	return nil
}

func libraryList(ctx *cli.Context, lib *library.Library) error {
	names, err := lib.List()
	if err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Instructions"})
	for _, n := range names {
		count := "-"
		if prog, err := lib.Load(n); err == nil {
			count = fmt.Sprint(len(prog.Instructions))
		}
		table.Append([]string{n, count})
	}
	table.Render()
	return nil
}

func libraryShow(ctx *cli.Context, lib *library.Library) error {
	name, err := fileArg(ctx)
	if err != nil {
		return err
	}
	src, err := lib.Source(name)
	if err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	fmt.Println(src)
	return nil
}

func libraryRemove(ctx *cli.Context, lib *library.Library) error {
	name, err := fileArg(ctx)
	if err != nil {
		return err
	}
	if err := lib.Delete(name); err != nil {
		return cli.NewExitError(err.Error(), exitUsage)
	}
	return nil
}

func parseExit(err error) error {
	var perr *parser.Error
	if errors.As(err, &perr) {
		printDiagnostics(os.Stderr, []diagnostics.Diagnostic{perr.Diag}, true)
		return cli.NewExitError("", exitDiag)
	}
	return cli.NewExitError(err.Error(), exitUsage)
}
