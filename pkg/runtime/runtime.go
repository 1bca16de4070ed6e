// Package runtime provides the long-lived executor that owns the active
// program of every square and runs it when a ball collides with it.
package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/formatter"
	"github.com/bouncegrid/bounce/pkg/parser"
	"github.com/bouncegrid/bounce/pkg/state"
	"github.com/bouncegrid/bounce/pkg/validator"
)

// cell is what the executor knows about one square.
type cell struct {
	mu      sync.Mutex // serializes collisions on this square
	program *ast.Program
	writes  bool // program sets a variable
	steps   []evaluator.ProgramStep
}

// Executor wires the engine to the persistent state. It is safe for
// concurrent use. Collisions on one square run one at a time, and so do
// collisions of one ball. Programs that set variables run one at a time
// across the whole grid; everything else may run in parallel.
type Executor struct {
	store    *state.Store
	engine   *evaluator.Engine
	log      zerolog.Logger
	programs []*ast.Program

	// vars is held from snapshot to commit: exclusively by programs that
	// set variables, shared by programs that only read them.
	vars sync.RWMutex

	mu    sync.Mutex
	cells map[state.Position]*cell
	balls map[state.BallID]*sync.Mutex
}

// Option is a functional option for configuring the Executor.
type Option func(*Executor)

// WithStore sets the persistent state store.
func WithStore(s *state.Store) Option {
	return func(x *Executor) {
		x.store = s
	}
}

// WithEngine sets the execution engine.
func WithEngine(e *evaluator.Engine) Option {
	return func(x *Executor) {
		x.engine = e
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(x *Executor) {
		x.log = l
	}
}

// WithProgramTable sets the programs that legacy ExecuteProgram steps
// refer to by index.
func WithProgramTable(programs []*ast.Program) Option {
	return func(x *Executor) {
		x.programs = programs
	}
}

// New creates an Executor with the given options.
// By default it gets a fresh store and an engine with default limits.
func New(opts ...Option) *Executor {
	x := &Executor{
		log:   zerolog.Nop(),
		cells: make(map[state.Position]*cell),
		balls: make(map[state.BallID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.store == nil {
		x.store = state.New()
	}
	if x.engine == nil {
		x.engine = evaluator.New(evaluator.WithLogger(x.log))
	}
	return x
}

// Store returns the executor's persistent state.
func (x *Executor) Store() *state.Store { return x.store }

// Engine returns the executor's engine.
func (x *Executor) Engine() *evaluator.Engine { return x.engine }

func (x *Executor) cell(pos state.Position) *cell {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.cells[pos]
	if !ok {
		c = &cell{}
		x.cells[pos] = c
	}
	return c
}

func (x *Executor) ballLock(id state.BallID) *sync.Mutex {
	x.mu.Lock()
	defer x.mu.Unlock()
	m, ok := x.balls[id]
	if !ok {
		m = new(sync.Mutex)
		x.balls[id] = m
	}
	return m
}

// SetProgram makes program the active program of the square at pos.
func (x *Executor) SetProgram(pos state.Position, program *ast.Program) {
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = program
	c.writes = program != nil && writesVariables(program.Instructions)
	if program != nil {
		x.log.Debug().Stringer("pos", pos).Str("program", program.Name).Msg("program set")
	}
}

// Program returns the active program at pos, or nil.
func (x *Executor) Program(pos state.Position) *ast.Program {
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.program
}

// ClearProgram removes the active program at pos. Legacy steps, if any,
// take over.
func (x *Executor) ClearProgram(pos state.Position) {
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = nil
	c.writes = false
}

// SetSteps sets the legacy step table of the square at pos.
func (x *Executor) SetSteps(pos state.Position, steps []evaluator.ProgramStep) {
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = steps
}

// ClearCell removes the program and steps at pos and resets its hit counter.
func (x *Executor) ClearCell(pos state.Position) {
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.program = nil
	c.writes = false
	c.steps = nil
	x.store.ResetHits(pos)
}

// ExecuteOnCollision records one hit of ball on the square at pos and runs
// the square's active program, or its legacy steps when it has none. The
// ball and square counters are incremented before the context is built, and
// the context's variables are committed afterwards if the program sets any.
func (x *Executor) ExecuteOnCollision(ball state.Ball, pos state.Position) []evaluator.Action {
	bl := x.ballLock(ball.ID)
	bl.Lock()
	defer bl.Unlock()
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()

	ballHits := x.store.IncrementBallHits(ball.ID)
	squareHits := x.store.IncrementSquareHits(pos)

	var actions []evaluator.Action
	switch {
	case c.program != nil:
		actions = x.run(c.program, c.writes, ball, pos)
	case len(c.steps) > 0:
		// steps never touch variables
		actions = x.engine.RunSteps(c.steps, x.programs, x.store.Snapshot(ball, pos))
	}

	x.log.Debug().
		Str("ball", string(ball.ID)).
		Stringer("pos", pos).
		Uint32("ball_hits", ballHits).
		Uint32("square_hits", squareHits).
		Int("actions", len(actions)).
		Msg("collision")
	return actions
}

// RunNested runs program for ball on the square at pos without recording a
// hit. It takes the same locks as ExecuteOnCollision and so must be called
// after that call has returned, never from inside it.
func (x *Executor) RunNested(ball state.Ball, pos state.Position, program *ast.Program) []evaluator.Action {
	if program == nil {
		return nil
	}
	bl := x.ballLock(ball.ID)
	bl.Lock()
	defer bl.Unlock()
	c := x.cell(pos)
	c.mu.Lock()
	defer c.mu.Unlock()
	return x.run(program, writesVariables(program.Instructions), ball, pos)
}

func (x *Executor) run(program *ast.Program, writes bool, ball state.Ball, pos state.Position) []evaluator.Action {
	if writes {
		x.vars.Lock()
		defer x.vars.Unlock()
	} else {
		x.vars.RLock()
		defer x.vars.RUnlock()
	}
	ctx := x.store.Snapshot(ball, pos)
	actions := x.engine.Run(program, ctx)
	if writes {
		x.store.Commit(ctx)
	}
	return actions
}

// writesVariables reports whether any instruction, at any depth, is a
// SetVariable.
func writesVariables(instrs []ast.Instruction) bool {
	for _, in := range instrs {
		switch n := in.(type) {
		case *ast.SetVariable:
			return true
		case *ast.If:
			if writesVariables(n.Then) || writesVariables(n.Else) {
				return true
			}
		case *ast.Loop:
			if writesVariables(n.Body) {
				return true
			}
		}
	}
	return false
}

// Collision is one ball hitting one square.
type Collision struct {
	Ball     state.Ball
	Position state.Position
}

// Dispatch runs a batch of collisions. Collisions on the same square run in
// input order; different squares run concurrently, subject to the ball and
// variable locks of ExecuteOnCollision. The result has one action list per
// collision, in input order.
func (x *Executor) Dispatch(ctx context.Context, batch []Collision) ([][]evaluator.Action, error) {
	groups := make(map[state.Position][]int)
	var order []state.Position
	for i, col := range batch {
		if _, ok := groups[col.Position]; !ok {
			order = append(order, col.Position)
		}
		groups[col.Position] = append(groups[col.Position], i)
	}

	results := make([][]evaluator.Action, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for _, pos := range order {
		idx := groups[pos]
		g.Go(func() error {
			for _, i := range idx {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = x.ExecuteOnCollision(batch[i].Ball, batch[i].Position)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Check parses every program in source and validates them. Parse errors
// stop the check; validation only adds warnings.
func (x *Executor) Check(source, filename string) ([]*ast.Program, []diagnostics.Diagnostic) {
	return Check(source, filename)
}

// Check parses every program in source and validates them.
func Check(source, filename string) ([]*ast.Program, []diagnostics.Diagnostic) {
	programs, err := parser.ParseMultiplePrograms(source, filename)
	if err != nil {
		return nil, []diagnostics.Diagnostic{diagnosticOf(err)}
	}
	if len(programs) == 0 {
		return nil, []diagnostics.Diagnostic{
			diagnostics.MakeDiag(diagnostics.ENoDef, "no programs found", nil, "start a program with 'def <name>'"),
		}
	}
	return programs, validator.ValidateAll(programs)
}

// Format parses every program in source and formats them.
func Format(source, filename string) (string, error) {
	programs, err := parser.ParseMultiplePrograms(source, filename)
	if err != nil {
		return "", &DiagnosticError{Diagnostics: []diagnostics.Diagnostic{diagnosticOf(err)}}
	}
	parts := make([]string, 0, len(programs))
	for _, p := range programs {
		out, err := formatter.Format(p)
		if err != nil {
			return "", fmt.Errorf("program %q: %w", p.Name, err)
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, "\n"), nil
}

func diagnosticOf(err error) diagnostics.Diagnostic {
	if perr, ok := err.(*parser.Error); ok {
		return perr.Diag
	}
	return diagnostics.MakeDiag(diagnostics.EParse, err.Error(), nil, "")
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
