package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/peterh/liner"
	"gopkg.in/urfave/cli.v1"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/help"
	"github.com/bouncegrid/bounce/pkg/lexer"
	"github.com/bouncegrid/bounce/pkg/library"
	"github.com/bouncegrid/bounce/pkg/parser"
	"github.com/bouncegrid/bounce/pkg/runtime"
	"github.com/bouncegrid/bounce/pkg/samples"
	"github.com/bouncegrid/bounce/pkg/sim"
	"github.com/bouncegrid/bounce/pkg/state"
	"github.com/bouncegrid/bounce/pkg/validator"
)

const (
	historyFile = ".bounce_history"
	promptMain  = "bounce> "
	promptCont  = "...... "
)

var replCommand = cli.Command{
	Action: startRepl,
	Name:   "repl",
	Usage:  "Start an interactive session",
	Description: `The repl command defines programs, places them on squares and
reports collisions by hand. Type :help inside the session.`,
}

const replHelp = `Type a program starting with 'def NAME' and ending with 'return'.

  :place NAME X Y               put a program on square X,Y
  :clear X Y                    remove the program of square X,Y
  :ball ID X Y SPEED DIRECTION  add or replace a ball
  :hit BALL X Y                 report a collision and apply its actions
  :state                        show balls, hit counters and variables
  :reset [X Y]                  zero the counters of one square, or everything
  :programs                     list the programs defined in this session
  :quit                         leave
`

// shell is the state of one interactive session.
type shell struct {
	world    *sim.World
	lib      *library.Library // nil when the library could not be opened
	programs map[string]*ast.Program
	out      io.Writer
	pending  []string
}

func newShell(world *sim.World, lib *library.Library, out io.Writer) *shell {
	return &shell{world: world, lib: lib, programs: make(map[string]*ast.Program), out: out}
}

// continuing reports whether a program definition is being typed.
func (sh *shell) continuing() bool { return len(sh.pending) > 0 }

// feed handles one line of input. It reports true when the session ends.
func (sh *shell) feed(line string) (bool, error) {
	trimmed := strings.TrimSpace(line)
	if sh.continuing() {
		sh.pending = append(sh.pending, line)
		if trimmed == "return" {
			return false, sh.define()
		}
		return false, nil
	}
	switch {
	case trimmed == "" || lexer.IsComment(trimmed):
		return false, nil
	case trimmed == "def" || strings.HasPrefix(trimmed, "def "):
		sh.pending = append(sh.pending, line)
		return false, nil
	case strings.HasPrefix(trimmed, ":"):
		return sh.command(strings.Fields(trimmed))
	}
	return false, errors.New("type a program starting with 'def', or :help")
}

func (sh *shell) define() error {
	src := strings.Join(sh.pending, "\n")
	sh.pending = nil
	prog, err := parser.ParseProgram(src, "repl")
	if err != nil {
		return err
	}
	sh.programs[prog.Name] = prog
	for _, d := range validator.Validate(prog) {
		fmt.Fprintln(sh.out, diagnostics.FormatDiagnostic(d, true))
	}
	fmt.Fprintf(sh.out, "defined %s (%d instructions)\n", prog.Name, len(prog.Instructions))
	return nil
}

func (sh *shell) command(args []string) (bool, error) {
	switch args[0] {
	case ":quit", ":q":
		return true, nil
	case ":help":
		fmt.Fprint(sh.out, replHelp)
	case ":programs":
		names := make([]string, 0, len(sh.programs))
		for n := range sh.programs {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintln(sh.out, strings.Join(names, "\n"))
	case ":place":
		if len(args) != 4 {
			return false, errors.New("usage: :place NAME X Y")
		}
		pos, err := position(args[2], args[3])
		if err != nil {
			return false, err
		}
		prog, err := sh.lookup(args[1])
		if err != nil {
			return false, err
		}
		sh.world.Executor().SetProgram(pos, prog)
		fmt.Fprintf(sh.out, "%s at %s\n", prog.Name, pos)
	case ":clear":
		if len(args) != 3 {
			return false, errors.New("usage: :clear X Y")
		}
		pos, err := position(args[1], args[2])
		if err != nil {
			return false, err
		}
		sh.world.Executor().ClearCell(pos)
	case ":ball":
		return false, sh.addBall(args[1:])
	case ":hit":
		if len(args) != 4 {
			return false, errors.New("usage: :hit BALL X Y")
		}
		pos, err := position(args[2], args[3])
		if err != nil {
			return false, err
		}
		actions, err := sh.world.Collide(state.BallID(args[1]), pos)
		sh.printActions(actions)
		return false, err
	case ":state":
		sh.printState()
	case ":reset":
		store := sh.world.Executor().Store()
		switch len(args) {
		case 1:
			store.Reset()
		case 3:
			pos, err := position(args[1], args[2])
			if err != nil {
				return false, err
			}
			store.ResetHits(pos)
		default:
			return false, errors.New("usage: :reset [X Y]")
		}
	default:
		return false, fmt.Errorf("unknown command %s, type :help", args[0])
	}
	return false, nil
}

// lookup finds a session program, then a library program.
func (sh *shell) lookup(name string) (*ast.Program, error) {
	if p, ok := sh.programs[name]; ok {
		return p, nil
	}
	if sh.lib == nil {
		return nil, fmt.Errorf("no program %q", name)
	}
	return sh.lib.Load(name)
}

func (sh *shell) addBall(args []string) error {
	if len(args) != 5 {
		return errors.New("usage: :ball ID X Y SPEED DIRECTION")
	}
	var nums [3]float64
	for i, s := range args[1:4] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		nums[i] = f
	}
	dir, ok := ast.ParseDirection(args[4])
	if !ok {
		return fmt.Errorf("unknown direction %q", args[4])
	}
	sh.world.AddBall(state.BallID(args[0]), nums[0], nums[1], nums[2], dir)
	return nil
}

func (sh *shell) printActions(actions []evaluator.Action) {
	if len(actions) == 0 {
		fmt.Fprintln(sh.out, "(no actions)")
		return
	}
	for _, s := range evaluator.ActionStrings(actions) {
		fmt.Fprintln(sh.out, s)
	}
}

func (sh *shell) printState() {
	balls := tablewriter.NewWriter(sh.out)
	balls.SetHeader([]string{"Ball", "X", "Y", "Speed", "Direction", "Stopped"})
	for _, b := range sh.world.Balls() {
		balls.Append([]string{
			string(b.ID),
			strconv.FormatFloat(b.X, 'f', -1, 64),
			strconv.FormatFloat(b.Y, 'f', -1, 64),
			strconv.FormatFloat(b.Speed, 'f', -1, 64),
			b.Direction.String(),
			strconv.FormatBool(b.Stopped),
		})
	}
	balls.Render()

	store := sh.world.Executor().Store()
	squares := tablewriter.NewWriter(sh.out)
	squares.SetHeader([]string{"Square", "Hits", "Program"})
	for _, sq := range store.Squares() {
		name := "-"
		if p := sh.world.Executor().Program(sq.Position); p != nil {
			name = p.Name
		}
		squares.Append([]string{sq.Position.String(), fmt.Sprint(sq.Hits), name})
	}
	squares.Render()

	if names := store.Variables(); len(names) > 0 {
		vars := tablewriter.NewWriter(sh.out)
		vars.SetHeader([]string{"Variable", "Value"})
		for _, n := range names {
			v, _ := store.Variable(n)
			vars.Append([]string{n, v.String()})
		}
		vars.Render()
	}
}

func position(xs, ys string) (state.Position, error) {
	x, err := strconv.Atoi(xs)
	if err != nil {
		return state.Position{}, fmt.Errorf("%q is not a column", xs)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return state.Position{}, fmt.Errorf("%q is not a row", ys)
	}
	return state.Position{X: x, Y: y}, nil
}

func startRepl(ctx *cli.Context) error {
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	player, err := s.player(ctx)
	if err != nil {
		return err
	}
	lib, err := openLibrary(s)
	if err != nil {
		s.log.Warn().Err(err).Msg("library unavailable")
		lib = nil
	} else {
		defer lib.Close()
	}

	exec := runtime.New(runtime.WithLogger(s.log), runtime.WithEngine(evaluator.New(s.engineOptions()...)))
	world := sim.NewWorld(exec,
		sim.WithLogger(s.log),
		sim.WithPlayer(player),
		sim.WithSamples(samples.FromPaths(s.cfg.Samples.Paths)),
		sim.WithAudio(s.cfg.Audio.Channel, s.cfg.Audio.Pitch, s.cfg.Audio.Volume),
		sim.WithMaxDepth(s.cfg.Engine.MaxProgramDepth),
		sim.WithPrinter(func(ball state.BallID, text string) {
			fmt.Printf("%s: %s\n", ball, text)
		}),
	)
	sh := newShell(world, lib, os.Stdout)

	fmt.Printf("bounce %s. Ctrl+D exits, :help lists commands.\n", help.Version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	for {
		prompt := promptMain
		if sh.continuing() {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			sh.pending = nil
			continue
		}
		if err != nil {
			fmt.Println()
			return nil
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		done, err := sh.feed(line)
		if err != nil {
			var perr *parser.Error
			if errors.As(err, &perr) {
				fmt.Fprintln(os.Stderr, errorColor(diagnostics.FormatDiagnostic(perr.Diag, true)))
			} else {
				fmt.Fprintln(os.Stderr, errorColor(err.Error()))
			}
		}
		if done {
			return nil
		}
	}
}
