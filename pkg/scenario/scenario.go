// Package scenario loads and replays scenario files: a set of square
// programs, the balls on the grid and a sequence of collisions, with the
// actions each collision is expected to produce.
package scenario

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/naoina/toml"
	"github.com/rs/zerolog"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/audio"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/parser"
	"github.com/bouncegrid/bounce/pkg/runtime"
	"github.com/bouncegrid/bounce/pkg/samples"
	"github.com/bouncegrid/bounce/pkg/sim"
	"github.com/bouncegrid/bounce/pkg/state"
)

// ErrMismatch is wrapped by Verify when actions differ from expectations.
var ErrMismatch = errors.New("scenario expectations not met")

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Step is one legacy step of a square.
type Step struct {
	Trigger uint32
	Effect  string // as accepted by evaluator.ParseStepEffect
}

// Square places a program or a legacy step table on a cell.
type Square struct {
	X      int
	Y      int
	Source string `toml:",omitempty"`
	Step   []Step `toml:",omitempty"`
}

// Ball is a ball present before the first collision. Numbers must be
// written with a decimal point.
type Ball struct {
	ID        string
	X         float64
	Y         float64
	Speed     float64
	Direction string
}

// Collision is one ball hitting the square at X, Y.
type Collision struct {
	Ball string
	X    int
	Y    int
}

// Expect lists the actions collision Index must produce.
type Expect struct {
	Index   int
	Actions []string
}

// Scenario is a parsed scenario file.
type Scenario struct {
	Name string
	// Programs is grammar source for the table legacy execute_program
	// steps index into.
	Programs  string   `toml:",omitempty"`
	Samples   []string `toml:",omitempty"`
	Square    []Square
	Ball      []Ball      `toml:",omitempty"`
	Collision []Collision `toml:",omitempty"`
	Expect    []Expect    `toml:",omitempty"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(bufio.NewReader(f), path)
}

// Parse decodes a scenario from r. Unknown keys are errors.
func Parse(r io.Reader, name string) (*Scenario, error) {
	var sc Scenario
	err := tomlSettings.NewDecoder(r).Decode(&sc)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(name + ", " + err.Error())
	}
	if err != nil {
		return nil, err
	}
	if sc.Name == "" {
		sc.Name = name
	}
	return &sc, nil
}

// Options tunes a replay.
type Options struct {
	Log    zerolog.Logger
	Player audio.Player
	Engine []evaluator.Option
	// World options are applied after the scenario's own samples.
	World []sim.Option
	// Parallel dispatches all collisions as one batch. Collisions on the
	// same square keep their order; the driver's ball state is not applied
	// between them.
	Parallel bool
}

// Result is the outcome of a replay.
type Result struct {
	Actions [][]evaluator.Action
	World   *sim.World
}

// Strings renders the actions of every collision.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Actions))
	for i, a := range r.Actions {
		out[i] = evaluator.ActionStrings(a)
	}
	return out
}

// Build sets up the executor and world described by sc without running
// any collision.
func Build(sc *Scenario, opts Options) (*runtime.Executor, *sim.World, error) {
	var table []*ast.Program
	if strings.TrimSpace(sc.Programs) != "" {
		progs, err := parser.ParseMultiplePrograms(sc.Programs, sc.Name+":Programs")
		if err != nil {
			return nil, nil, fmt.Errorf("program table: %w", err)
		}
		table = progs
	}

	engOpts := append([]evaluator.Option{evaluator.WithLogger(opts.Log)}, opts.Engine...)
	x := runtime.New(
		runtime.WithLogger(opts.Log),
		runtime.WithEngine(evaluator.New(engOpts...)),
		runtime.WithProgramTable(table),
	)

	for i, sq := range sc.Square {
		pos := state.Position{X: sq.X, Y: sq.Y}
		if strings.TrimSpace(sq.Source) != "" {
			prog, err := parser.ParseProgram(sq.Source, fmt.Sprintf("%s:Square[%d]", sc.Name, i))
			if err != nil {
				return nil, nil, fmt.Errorf("square %s: %w", pos, err)
			}
			x.SetProgram(pos, prog)
		}
		if len(sq.Step) > 0 {
			steps := make([]evaluator.ProgramStep, len(sq.Step))
			for j, st := range sq.Step {
				eff, err := evaluator.ParseStepEffect(st.Effect)
				if err != nil {
					return nil, nil, fmt.Errorf("square %s step %d: %w", pos, j, err)
				}
				steps[j] = evaluator.ProgramStep{TriggerHits: st.Trigger, Effect: eff}
			}
			x.SetSteps(pos, steps)
		}
	}

	player := opts.Player
	if player == nil {
		player = audio.Discard{}
	}
	worldOpts := append([]sim.Option{
		sim.WithLogger(opts.Log),
		sim.WithPlayer(player),
		sim.WithSamples(samples.FromPaths(sc.Samples)),
	}, opts.World...)
	w := sim.NewWorld(x, worldOpts...)
	for _, b := range sc.Ball {
		dir := ast.Right
		if b.Direction != "" {
			d, ok := ast.ParseDirection(b.Direction)
			if !ok {
				return nil, nil, fmt.Errorf("ball %q: unknown direction %q", b.ID, b.Direction)
			}
			dir = d
		}
		w.AddBall(state.BallID(b.ID), b.X, b.Y, b.Speed, dir)
	}
	return x, w, nil
}

// Replay runs every collision of sc in order and applies the actions.
func Replay(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	x, w, err := Build(sc, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{World: w}

	if opts.Parallel {
		batch := make([]runtime.Collision, len(sc.Collision))
		for i, c := range sc.Collision {
			b := w.Ball(state.BallID(c.Ball))
			snap := state.Ball{ID: state.BallID(c.Ball), X: float64(c.X), Y: float64(c.Y), Direction: ast.Right}
			if b != nil {
				snap = b.Snapshot()
			}
			batch[i] = runtime.Collision{Ball: snap, Position: state.Position{X: c.X, Y: c.Y}}
		}
		res.Actions, err = x.Dispatch(ctx, batch)
		return res, err
	}

	var errs []error
	for i, c := range sc.Collision {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		actions, err := w.Collide(state.BallID(c.Ball), state.Position{X: c.X, Y: c.Y})
		if err != nil {
			errs = append(errs, fmt.Errorf("collision %d: %w", i, err))
		}
		res.Actions = append(res.Actions, actions)
	}
	return res, errors.Join(errs...)
}

// Verify compares res against the expectations of sc.
func Verify(sc *Scenario, res *Result) error {
	got := res.Strings()
	var msgs []string
	for _, exp := range sc.Expect {
		if exp.Index < 0 || exp.Index >= len(got) {
			msgs = append(msgs, fmt.Sprintf("expect index %d: only %d collisions", exp.Index, len(got)))
			continue
		}
		want := exp.Actions
		if want == nil {
			want = []string{}
		}
		if diff := cmp.Diff(want, got[exp.Index]); diff != "" {
			msgs = append(msgs, fmt.Sprintf("collision %d (-want +got):\n%s", exp.Index, diff))
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%w: %s\n%s", ErrMismatch, sc.Name, strings.Join(msgs, "\n"))
	}
	return nil
}
