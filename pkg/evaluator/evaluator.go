// Package evaluator implements the bounce execution engine: a fail-soft
// expression evaluator and a tree-walking instruction interpreter that turns
// a program plus an execution context into an ordered list of actions.
package evaluator

import (
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/rs/zerolog"

	"github.com/bouncegrid/bounce/pkg/ast"
)

// Context is the snapshot of world state that one execution reads and
// writes. Variables are mutated in place; every other field is read-only
// for the engine.
type Context struct {
	Variables      map[string]ast.Value
	BallHitCount   uint32
	SquareHitCount uint32
	BallX          float64
	BallY          float64
	BallSpeed      float64
	BallDirection  ast.Direction
}

// NewContext returns a context with an empty variable map.
func NewContext() *Context {
	return &Context{Variables: make(map[string]ast.Value)}
}

// TraceEventType identifies the type of a trace event.
type TraceEventType string

const (
	TraceExecStart TraceEventType = "exec_start"
	TraceExecEnd   TraceEventType = "exec_end"
	TraceInstr     TraceEventType = "instr"
	TraceLoopStart TraceEventType = "loop_start"
	TraceLoopEnd   TraceEventType = "loop_end"
	TraceAction    TraceEventType = "action"
)

// TraceEvent represents a single trace event emitted during execution.
type TraceEvent struct {
	Timestamp string         `json:"ts"`
	Event     TraceEventType `json:"event"`
	Kind      string         `json:"kind,omitempty"`
	Span      *ast.Span      `json:"span,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

// Engine evaluates expressions and executes instructions. An Engine holds
// no per-execution state and is safe for concurrent use; the Context passed
// to each call must not be shared between concurrent calls.
type Engine struct {
	log    zerolog.Logger
	rand   func() float64
	budget Budget
	trace  func(TraceEvent)

	mu         sync.Mutex
	stats      Stats
	unresolved mapset.Set
}

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for fail-soft diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRand sets the source of uniform numbers in [0, 1) used by Random.
// The function must be safe for concurrent use if the engine is shared.
func WithRand(fn func() float64) Option {
	return func(e *Engine) {
		e.rand = fn
	}
}

// WithMaxLoopIterations caps the total loop iterations of one execution.
// Zero or a negative value removes the cap.
func WithMaxLoopIterations(n int64) Option {
	return func(e *Engine) {
		e.budget.MaxLoopIterations = n
	}
}

// WithTrace sets the trace callback.
func WithTrace(fn func(TraceEvent)) Option {
	return func(e *Engine) {
		e.trace = fn
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:        zerolog.Nop(),
		rand:       rand.Float64,
		budget:     Budget{MaxLoopIterations: DefaultMaxLoopIterations},
		unresolved: mapset.NewSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Evaluate evaluates expr against ctx with the default engine.
func Evaluate(expr ast.Expression, ctx *Context) ast.Value {
	return defaultEngine.Evaluate(expr, ctx)
}

// Execute runs instrs against ctx with the default engine.
func Execute(instrs []ast.Instruction, ctx *Context) []Action {
	return defaultEngine.Execute(instrs, ctx)
}

// Stats returns a snapshot of the engine's fail-soft counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.UnresolvedNames = setToSortedStrings(e.unresolved)
	return s
}

// ResetStats zeroes the fail-soft counters.
func (e *Engine) ResetStats() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = Stats{}
	e.unresolved.Clear()
}

// Evaluate evaluates expr against ctx. It never fails: unresolved variables
// and mismatched operand types degrade to Number(0) or Boolean(false).
func (e *Engine) Evaluate(expr ast.Expression, ctx *Context) ast.Value {
	ev := e.newEvaluator(ctx)
	v := ev.evalExpr(expr)
	e.merge(ev)
	return v
}

// Execute runs instrs top to bottom against ctx and returns the emitted
// actions in order. Actions emitted inside If and Loop bodies appear at
// the position of the control instruction. All loops of one call share the
// iteration budget (DefaultMaxLoopIterations unless WithMaxLoopIterations
// says otherwise); once it is spent, the running loop stops early and
// Stats.LoopBudgetHits counts it.
func (e *Engine) Execute(instrs []ast.Instruction, ctx *Context) []Action {
	ev := e.newEvaluator(ctx)
	ev.stats.Executions++
	ev.emit(TraceExecStart, "", nil, "")
	ev.executeBlock(instrs)
	ev.emit(TraceExecEnd, "", nil, "")
	e.merge(ev)
	return ev.actions
}

// Run executes program's instructions against ctx. A nil program yields no
// actions.
func (e *Engine) Run(program *ast.Program, ctx *Context) []Action {
	if program == nil {
		return nil
	}
	return e.Execute(program.Instructions, ctx)
}

func (e *Engine) merge(ev *evaluator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.add(&ev.stats)
	for _, name := range ev.unresolved {
		e.unresolved.Add(name)
	}
}

// --- per-execution state ---

type evaluator struct {
	eng        *Engine
	ctx        *Context
	actions    []Action
	tracker    BudgetTracker
	stats      Stats
	unresolved []string
}

func (e *Engine) newEvaluator(ctx *Context) *evaluator {
	if ctx == nil {
		ctx = NewContext()
	}
	if ctx.Variables == nil {
		ctx.Variables = make(map[string]ast.Value)
	}
	return &evaluator{eng: e, ctx: ctx}
}

func (ev *evaluator) emit(event TraceEventType, kind string, span *ast.Span, detail string) {
	if ev.eng.trace == nil {
		return
	}
	ev.eng.trace(TraceEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Event:     event,
		Kind:      kind,
		Span:      span,
		Detail:    detail,
	})
}

func (ev *evaluator) push(a Action) {
	ev.actions = append(ev.actions, a)
	ev.emit(TraceAction, a.Kind(), nil, a.String())
}

// drop records an instruction that was skipped because an operand had the
// wrong type.
func (ev *evaluator) drop(in ast.Instruction, why string) {
	ev.stats.DroppedInstructions++
	span := in.NodeSpan()
	ev.eng.log.Debug().
		Str("instr", in.Kind()).
		Int("line", span.StartLine).
		Str("reason", why).
		Msg("instruction dropped")
}

func (ev *evaluator) mismatch(op ast.Operator, l, r ast.Value) {
	ev.stats.TypeMismatches++
	ev.eng.log.Debug().
		Str("op", string(op)).
		Str("left", ast.TypeName(l)).
		Str("right", ast.TypeName(r)).
		Msg("operator not defined for operands, yielding false")
}

// --- instructions ---

func (ev *evaluator) executeBlock(instrs []ast.Instruction) {
	for _, in := range instrs {
		ev.execute(in)
	}
}

func (ev *evaluator) execute(in ast.Instruction) {
	if in == nil {
		return
	}
	span := in.NodeSpan()
	ev.emit(TraceInstr, in.Kind(), &span, "")

	switch n := in.(type) {
	case *ast.SetSpeed:
		if v, ok := ev.evalExpr(n.Value).(ast.NumberValue); ok {
			ev.push(ActionSetSpeed{Speed: v.Value})
			return
		}
		ev.drop(in, "speed is not a number")

	case *ast.SetDirection:
		if v, ok := ev.evalExpr(n.Value).(ast.DirectionValue); ok {
			ev.push(ActionSetDirection{Direction: v.Value})
			return
		}
		ev.drop(in, "direction is not a direction")

	case *ast.Bounce:
		ev.push(ActionBounce{})

	case *ast.Stop:
		ev.push(ActionStop{})

	case *ast.SetVariable:
		ev.ctx.Variables[n.Name] = ev.evalExpr(n.Value)

	case *ast.If:
		if b, ok := ev.evalExpr(n.Cond).(ast.BoolValue); ok && b.Value {
			ev.executeBlock(n.Then)
		} else {
			ev.executeBlock(n.Else)
		}

	case *ast.Loop:
		ev.executeLoop(n)

	case *ast.PlaySample:
		v, ok := ev.evalExpr(n.Index).(ast.NumberValue)
		if !ok {
			ev.drop(in, "sample index is not a number")
			return
		}
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			ev.drop(in, "sample index is not finite")
			return
		}
		ev.push(ActionPlaySample{Index: int(v.Value)})

	case *ast.SpawnBall:
		x, okX := ev.evalExpr(n.X).(ast.NumberValue)
		y, okY := ev.evalExpr(n.Y).(ast.NumberValue)
		speed, okS := ev.evalExpr(n.Speed).(ast.NumberValue)
		dir, okD := ev.evalExpr(n.Direction).(ast.DirectionValue)
		if !okX || !okY || !okS || !okD {
			ev.drop(in, "spawn operands must be number, number, number, direction")
			return
		}
		ev.push(ActionSpawnBall{X: x.Value, Y: y.Value, Speed: speed.Value, Direction: dir.Value})

	case *ast.Print:
		ev.push(ActionPrint{Text: ev.evalExpr(n.Value).String()})
	}
}

func (ev *evaluator) executeLoop(n *ast.Loop) {
	count, ok := ev.evalExpr(n.Count).(ast.NumberValue)
	if !ok {
		ev.drop(n, "loop count is not a number")
		return
	}
	times := loopTimes(count.Value)

	span := n.Span
	ev.emit(TraceLoopStart, n.Kind(), &span, strconv.FormatInt(times, 10))
	for i := int64(0); i < times; i++ {
		if !ev.tracker.take(ev.eng.budget) {
			ev.stats.LoopBudgetHits++
			ev.eng.log.Warn().
				Int64("max", ev.eng.budget.MaxLoopIterations).
				Int("line", span.StartLine).
				Msg("loop iteration budget exhausted")
			break
		}
		ev.executeBlock(n.Body)
	}
	ev.emit(TraceLoopEnd, n.Kind(), &span, "")
}

// loopTimes truncates a loop count toward zero. NaN and negative counts run
// zero times; counts beyond int64 are clamped.
func loopTimes(count float64) int64 {
	t := math.Trunc(count)
	switch {
	case math.IsNaN(t) || t <= 0:
		return 0
	case t >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(t)
}

// --- expressions ---

func (ev *evaluator) evalExpr(expr ast.Expression) ast.Value {
	switch e := expr.(type) {
	case *ast.Literal:
		if e.Value == nil {
			return ast.NewNumber(0)
		}
		return e.Value

	case *ast.Variable:
		if v, ok := ev.ctx.Variables[e.Name]; ok {
			return v
		}
		ev.stats.UnresolvedVariables++
		ev.unresolved = append(ev.unresolved, e.Name)
		ev.eng.log.Debug().Str("name", e.Name).Msg("unresolved variable, using 0")
		return ast.NewNumber(0)

	case *ast.BallProperty:
		return ev.evalProperty(e.Property)

	case *ast.Random:
		return ast.NewNumber(e.Min + ev.eng.rand()*(e.Max-e.Min))

	case *ast.BinaryExpr:
		return ev.evalBinaryOp(e)
	}
	return ast.NewNumber(0)
}

func (ev *evaluator) evalProperty(p ast.Property) ast.Value {
	switch p {
	case ast.PropSpeed:
		return ast.NewNumber(ev.ctx.BallSpeed)
	case ast.PropDirection:
		return ast.NewDirection(ev.ctx.BallDirection)
	case ast.PropX:
		return ast.NewNumber(ev.ctx.BallX)
	case ast.PropY:
		return ast.NewNumber(ev.ctx.BallY)
	case ast.PropHitCount:
		return ast.NewNumber(float64(ev.ctx.BallHitCount))
	}
	return ast.NewNumber(0)
}

func (ev *evaluator) evalBinaryOp(e *ast.BinaryExpr) ast.Value {
	left := ev.evalExpr(e.Left)
	right := ev.evalExpr(e.Right)

	if l, ok := left.(ast.NumberValue); ok {
		if r, ok := right.(ast.NumberValue); ok {
			return ev.numberOp(e.Op, l.Value, r.Value)
		}
	}
	if l, ok := left.(ast.BoolValue); ok {
		if r, ok := right.(ast.BoolValue); ok {
			return ev.boolOp(e.Op, l.Value, r.Value)
		}
	}
	ev.mismatch(e.Op, left, right)
	return ast.NewBool(false)
}

func (ev *evaluator) numberOp(op ast.Operator, l, r float64) ast.Value {
	switch op {
	case ast.OpAdd:
		return ast.NewNumber(l + r)
	case ast.OpSub:
		return ast.NewNumber(l - r)
	case ast.OpMul:
		return ast.NewNumber(l * r)
	case ast.OpDiv:
		if r == 0 {
			ev.zeroDivision(op)
			return ast.NewNumber(0)
		}
		return ast.NewNumber(l / r)
	case ast.OpMod:
		if r == 0 {
			ev.zeroDivision(op)
			return ast.NewNumber(0)
		}
		return ast.NewNumber(math.Mod(l, r))
	case ast.OpEqual:
		return ast.NewBool(ast.NumbersEqual(l, r))
	case ast.OpNotEqual:
		return ast.NewBool(!ast.NumbersEqual(l, r))
	case ast.OpLess:
		return ast.NewBool(l < r)
	case ast.OpGreater:
		return ast.NewBool(l > r)
	case ast.OpLessEqual:
		return ast.NewBool(l <= r)
	case ast.OpGreaterEqual:
		return ast.NewBool(l >= r)
	}
	ev.mismatch(op, ast.NewNumber(l), ast.NewNumber(r))
	return ast.NewBool(false)
}

func (ev *evaluator) boolOp(op ast.Operator, l, r bool) ast.Value {
	switch op {
	case ast.OpAnd:
		return ast.NewBool(l && r)
	case ast.OpOr:
		return ast.NewBool(l || r)
	case ast.OpEqual:
		return ast.NewBool(l == r)
	case ast.OpNotEqual:
		return ast.NewBool(l != r)
	}
	ev.mismatch(op, ast.NewBool(l), ast.NewBool(r))
	return ast.NewBool(false)
}

func (ev *evaluator) zeroDivision(op ast.Operator) {
	ev.stats.ZeroDivisions++
	ev.eng.log.Debug().Str("op", string(op)).Msg("division by zero, yielding 0")
}
