package evaluator_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/parser"
)

// --- helpers ---

func num(t *testing.T, v ast.Value) float64 {
	t.Helper()
	n, ok := v.(ast.NumberValue)
	require.True(t, ok, "expected NumberValue, got %T (%v)", v, v)
	return n.Value
}

func boolean(t *testing.T, v ast.Value) bool {
	t.Helper()
	b, ok := v.(ast.BoolValue)
	require.True(t, ok, "expected BoolValue, got %T (%v)", v, v)
	return b.Value
}

func exec(t *testing.T, ctx *evaluator.Context, instrs ...ast.Instruction) []evaluator.Action {
	t.Helper()
	return evaluator.New().Execute(instrs, ctx)
}

func diffActions(t *testing.T, want, got []evaluator.Action) {
	t.Helper()
	if diff := cmp.Diff(evaluator.ActionStrings(want), evaluator.ActionStrings(got)); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

// ---- 1. Expressions ----

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		l    float64
		op   ast.Operator
		r    float64
		want float64
	}{
		{"add", 2, ast.OpAdd, 3, 5},
		{"sub", 2, ast.OpSub, 3, -1},
		{"mul", 2.5, ast.OpMul, 4, 10},
		{"div", 9, ast.OpDiv, 2, 4.5},
		{"mod", 7, ast.OpMod, 3, 1},
		{"mod negative", -7, ast.OpMod, 3, -1},
		{"div by zero", 4, ast.OpDiv, 0, 0},
		{"mod by zero", 4, ast.OpMod, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluator.Evaluate(ast.Bin(ast.Num(tt.l), tt.op, ast.Num(tt.r)), evaluator.NewContext())
			assert.Equal(t, tt.want, num(t, got))
		})
	}
}

func TestComparison(t *testing.T) {
	tests := []struct {
		name string
		l    float64
		op   ast.Operator
		r    float64
		want bool
	}{
		{"eq within epsilon", 3, ast.OpEqual, 3.0000001, true},
		{"eq outside epsilon", 3, ast.OpEqual, 3.001, false},
		{"ne within epsilon", 3, ast.OpNotEqual, 3.0000001, false},
		{"lt", 1, ast.OpLess, 2, true},
		{"gt", 1, ast.OpGreater, 2, false},
		{"le equal", 2, ast.OpLessEqual, 2, true},
		{"ge", 3, ast.OpGreaterEqual, 2, true},
		{"and on numbers", 1, ast.OpAnd, 1, false},
		{"or on numbers", 1, ast.OpOr, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluator.Evaluate(ast.Bin(ast.Num(tt.l), tt.op, ast.Num(tt.r)), evaluator.NewContext())
			assert.Equal(t, tt.want, boolean(t, got))
		})
	}
}

func TestBooleanOps(t *testing.T) {
	tests := []struct {
		name string
		l    bool
		op   ast.Operator
		r    bool
		want bool
	}{
		{"and", true, ast.OpAnd, false, false},
		{"or", true, ast.OpOr, false, true},
		{"eq", false, ast.OpEqual, false, true},
		{"ne", true, ast.OpNotEqual, false, true},
		{"add on bools", true, ast.OpAdd, true, false},
		{"lt on bools", false, ast.OpLess, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluator.Evaluate(ast.Bin(ast.Bool(tt.l), tt.op, ast.Bool(tt.r)), evaluator.NewContext())
			assert.Equal(t, tt.want, boolean(t, got))
		})
	}
}

func TestMixedOperandsYieldFalse(t *testing.T) {
	eng := evaluator.New()
	exprs := []ast.Expression{
		ast.Bin(ast.Num(1), ast.OpAdd, ast.Bool(true)),
		ast.Bin(ast.Str("a"), ast.OpEqual, ast.Str("a")),
		ast.Bin(ast.Dir(ast.Up), ast.OpEqual, ast.Dir(ast.Up)),
		ast.Bin(ast.Num(1), ast.OpEqual, ast.Dir(ast.Up)),
	}
	for _, e := range exprs {
		assert.False(t, boolean(t, eng.Evaluate(e, evaluator.NewContext())))
	}
	assert.Equal(t, len(exprs), eng.Stats().TypeMismatches)
}

func TestUnresolvedVariable(t *testing.T) {
	eng := evaluator.New()
	ctx := evaluator.NewContext()
	assert.Equal(t, 0.0, num(t, eng.Evaluate(ast.Var("missing"), ctx)))
	assert.Equal(t, 0.0, num(t, eng.Evaluate(ast.Bin(ast.Var("other"), ast.OpAdd, ast.Var("missing")), ctx)))

	stats := eng.Stats()
	assert.Equal(t, 3, stats.UnresolvedVariables)
	assert.Equal(t, []string{"missing", "other"}, stats.UnresolvedNames)

	eng.ResetStats()
	assert.Zero(t, eng.Stats().UnresolvedVariables)
	assert.Empty(t, eng.Stats().UnresolvedNames)
}

func TestBallProperties(t *testing.T) {
	ctx := &evaluator.Context{
		BallHitCount:  7,
		BallX:         3,
		BallY:         4.5,
		BallSpeed:     1.25,
		BallDirection: ast.DownLeft,
	}
	assert.Equal(t, 1.25, num(t, evaluator.Evaluate(ast.Prop(ast.PropSpeed), ctx)))
	assert.Equal(t, 3.0, num(t, evaluator.Evaluate(ast.Prop(ast.PropX), ctx)))
	assert.Equal(t, 4.5, num(t, evaluator.Evaluate(ast.Prop(ast.PropY), ctx)))
	assert.Equal(t, 7.0, num(t, evaluator.Evaluate(ast.Prop(ast.PropHitCount), ctx)))
	assert.Equal(t, ast.NewDirection(ast.DownLeft), evaluator.Evaluate(ast.Prop(ast.PropDirection), ctx))
}

func TestRandomRange(t *testing.T) {
	draws := []float64{0, 0.5, 0.999}
	i := 0
	eng := evaluator.New(evaluator.WithRand(func() float64 {
		r := draws[i%len(draws)]
		i++
		return r
	}))
	expr := ast.Rand(2, 6)
	assert.Equal(t, 2.0, num(t, eng.Evaluate(expr, nil)))
	assert.Equal(t, 4.0, num(t, eng.Evaluate(expr, nil)))
	assert.InDelta(t, 5.996, num(t, eng.Evaluate(expr, nil)), 1e-9)
}

func TestRandomRerollsPerVisit(t *testing.T) {
	calls := 0
	eng := evaluator.New(evaluator.WithRand(func() float64 {
		calls++
		return 0.1
	}))
	eng.Execute([]ast.Instruction{
		&ast.If{Cond: ast.Bin(ast.Rand(0, 1), ast.OpLess, ast.Num(0.5))},
		&ast.If{Cond: ast.Bin(ast.Rand(0, 1), ast.OpLess, ast.Num(0.5))},
	}, nil)
	assert.Equal(t, 2, calls)
}

// ---- 2. Instructions ----

func TestIfHitCount(t *testing.T) {
	instr := &ast.If{
		Cond: ast.Bin(ast.Prop(ast.PropHitCount), ast.OpGreaterEqual, ast.Num(3)),
		Then: []ast.Instruction{&ast.Bounce{}},
	}
	diffActions(t, []evaluator.Action{evaluator.ActionBounce{}}, exec(t, &evaluator.Context{BallHitCount: 3}, instr))
	diffActions(t, nil, exec(t, &evaluator.Context{BallHitCount: 2}, instr))
}

func TestIfNonBooleanTakesElse(t *testing.T) {
	instr := &ast.If{
		Cond: ast.Num(1),
		Then: []ast.Instruction{&ast.Bounce{}},
		Else: []ast.Instruction{&ast.Stop{}},
	}
	diffActions(t, []evaluator.Action{evaluator.ActionStop{}}, exec(t, nil, instr))
}

func TestLoopAccumulates(t *testing.T) {
	ctx := evaluator.NewContext()
	exec(t, ctx,
		&ast.SetVariable{Name: "x", Value: ast.Num(0)},
		&ast.Loop{Count: ast.Num(3), Body: []ast.Instruction{
			&ast.SetVariable{Name: "x", Value: ast.Bin(ast.Var("x"), ast.OpAdd, ast.Num(1))},
		}},
	)
	assert.Equal(t, ast.NewNumber(3), ctx.Variables["x"])
}

func TestLoopCounts(t *testing.T) {
	tests := []struct {
		name  string
		count ast.Expression
		want  int
	}{
		{"integral", ast.Num(2), 2},
		{"fractional truncates", ast.Num(2.9), 2},
		{"negative clamps", ast.Num(-4), 0},
		{"zero", ast.Num(0), 0},
		{"non-number", ast.Bool(true), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exec(t, nil, &ast.Loop{Count: tt.count, Body: []ast.Instruction{&ast.Bounce{}}})
			assert.Len(t, got, tt.want)
		})
	}
}

func TestLoopBudget(t *testing.T) {
	eng := evaluator.New(evaluator.WithMaxLoopIterations(5))
	got := eng.Execute([]ast.Instruction{
		&ast.Loop{Count: ast.Num(1e9), Body: []ast.Instruction{&ast.Bounce{}}},
	}, nil)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, eng.Stats().LoopBudgetHits)

	// The budget covers every loop of one execution.
	eng = evaluator.New(evaluator.WithMaxLoopIterations(4))
	got = eng.Execute([]ast.Instruction{
		&ast.Loop{Count: ast.Num(2), Body: []ast.Instruction{
			&ast.Loop{Count: ast.Num(3), Body: []ast.Instruction{&ast.Stop{}}},
		}},
	}, nil)
	assert.Len(t, got, 3)
}

func TestDefaultBudgetRunsLargeCounts(t *testing.T) {
	eng := evaluator.New()
	got := eng.Execute([]ast.Instruction{
		&ast.Loop{Count: ast.Num(100000), Body: []ast.Instruction{&ast.Bounce{}}},
	}, nil)
	assert.Len(t, got, 100000)
	assert.Zero(t, eng.Stats().LoopBudgetHits)
}

func TestActionsSplicedInOrder(t *testing.T) {
	got := exec(t, &evaluator.Context{BallHitCount: 1},
		&ast.SetSpeed{Value: ast.Num(1)},
		&ast.If{
			Cond: ast.Bool(true),
			Then: []ast.Instruction{&ast.Bounce{}, &ast.PlaySample{Index: ast.Num(2)}},
		},
		&ast.Loop{Count: ast.Num(2), Body: []ast.Instruction{&ast.Print{Value: ast.Str("tick")}}},
		&ast.Stop{},
	)
	diffActions(t, []evaluator.Action{
		evaluator.ActionSetSpeed{Speed: 1},
		evaluator.ActionBounce{},
		evaluator.ActionPlaySample{Index: 2},
		evaluator.ActionPrint{Text: "tick"},
		evaluator.ActionPrint{Text: "tick"},
		evaluator.ActionStop{},
	}, got)
}

func TestDroppedInstructions(t *testing.T) {
	tests := []struct {
		name  string
		instr ast.Instruction
	}{
		{"speed not number", &ast.SetSpeed{Value: ast.Dir(ast.Up)}},
		{"direction not direction", &ast.SetDirection{Value: ast.Num(1)}},
		{"sample not number", &ast.PlaySample{Index: ast.Str("kick")}},
		{"spawn bad x", &ast.SpawnBall{X: ast.Bool(true), Y: ast.Num(1), Speed: ast.Num(1), Direction: ast.Dir(ast.Up)}},
		{"spawn bad direction", &ast.SpawnBall{X: ast.Num(1), Y: ast.Num(1), Speed: ast.Num(1), Direction: ast.Num(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := evaluator.New()
			assert.Empty(t, eng.Execute([]ast.Instruction{tt.instr}, nil))
			assert.Equal(t, 1, eng.Stats().DroppedInstructions)
		})
	}
}

func TestSpawnBall(t *testing.T) {
	got := exec(t, &evaluator.Context{BallX: 2, BallY: 3, BallSpeed: 1.5},
		&ast.SpawnBall{
			X:         ast.Prop(ast.PropX),
			Y:         ast.Bin(ast.Prop(ast.PropY), ast.OpAdd, ast.Num(1)),
			Speed:     ast.Prop(ast.PropSpeed),
			Direction: ast.Dir(ast.UpRight),
		},
	)
	diffActions(t, []evaluator.Action{
		evaluator.ActionSpawnBall{X: 2, Y: 4, Speed: 1.5, Direction: ast.UpRight},
	}, got)
}

func TestPrintFormatsValues(t *testing.T) {
	ctx := evaluator.NewContext()
	ctx.Variables["d"] = ast.NewDirection(ast.DownRight)
	got := exec(t, ctx,
		&ast.Print{Value: ast.Num(2.5)},
		&ast.Print{Value: ast.Var("d")},
		&ast.Print{Value: ast.Bool(false)},
		&ast.Print{Value: ast.Str("hello")},
		&ast.Print{Value: ast.Var("unset")},
	)
	want := []string{"2.5", "down-right", "false", "hello", "0"}
	require.Len(t, got, len(want))
	for i, a := range got {
		p, ok := a.(evaluator.ActionPrint)
		require.True(t, ok)
		assert.Equal(t, want[i], p.Text)
	}
}

func TestSetVariableVisibleImmediately(t *testing.T) {
	ctx := evaluator.NewContext()
	got := exec(t, ctx,
		&ast.SetVariable{Name: "s", Value: ast.Num(4)},
		&ast.SetSpeed{Value: ast.Bin(ast.Var("s"), ast.OpMul, ast.Num(2))},
	)
	diffActions(t, []evaluator.Action{evaluator.ActionSetSpeed{Speed: 8}}, got)
}

func TestSetSpeedDoesNotChangeSnapshot(t *testing.T) {
	ctx := &evaluator.Context{BallSpeed: 1}
	got := exec(t, ctx,
		&ast.SetSpeed{Value: ast.Num(5)},
		&ast.SetSpeed{Value: ast.Bin(ast.Prop(ast.PropSpeed), ast.OpAdd, ast.Num(1))},
	)
	diffActions(t, []evaluator.Action{
		evaluator.ActionSetSpeed{Speed: 5},
		evaluator.ActionSetSpeed{Speed: 2},
	}, got)
	assert.Equal(t, 1.0, ctx.BallSpeed)
}

// ---- 3. Parsed programs ----

func TestRunParsedProgram(t *testing.T) {
	prog, err := parser.ParseProgram("def t\nset speed 2.5\nreturn", "t.bnc")
	require.NoError(t, err)
	got := evaluator.New().Run(prog, evaluator.NewContext())
	diffActions(t, []evaluator.Action{evaluator.ActionSetSpeed{Speed: 2.5}}, got)
}

func TestRunParsedRelativeAndIf(t *testing.T) {
	src := "def t\nif red hits wall 2 times\nset speed relative -0.5\nset direction up-left\nreturn"
	prog, err := parser.ParseProgram(src, "t.bnc")
	require.NoError(t, err)

	eng := evaluator.New()
	got := eng.Run(prog, &evaluator.Context{BallHitCount: 2, BallSpeed: 2})
	diffActions(t, []evaluator.Action{
		evaluator.ActionBounce{},
		evaluator.ActionSetSpeed{Speed: 1.5},
		evaluator.ActionSetDirection{Direction: ast.UpLeft},
	}, got)

	got = eng.Run(prog, &evaluator.Context{BallHitCount: 1, BallSpeed: 2})
	assert.Len(t, got, 2)
	assert.Nil(t, eng.Run(nil, nil))
}

// ---- 4. Engine plumbing ----

func TestTraceEvents(t *testing.T) {
	var events []evaluator.TraceEventType
	eng := evaluator.New(evaluator.WithTrace(func(ev evaluator.TraceEvent) {
		events = append(events, ev.Event)
	}))
	eng.Execute([]ast.Instruction{
		&ast.Loop{Count: ast.Num(1), Body: []ast.Instruction{&ast.Bounce{}}},
	}, nil)
	want := []evaluator.TraceEventType{
		evaluator.TraceExecStart,
		evaluator.TraceInstr, // loop
		evaluator.TraceLoopStart,
		evaluator.TraceInstr, // bounce
		evaluator.TraceAction,
		evaluator.TraceLoopEnd,
		evaluator.TraceExecEnd,
	}
	assert.Equal(t, want, events)
}

func TestConcurrentExecutions(t *testing.T) {
	eng := evaluator.New()
	instrs := []ast.Instruction{
		&ast.SetVariable{Name: "n", Value: ast.Bin(ast.Var("n"), ast.OpAdd, ast.Num(1))},
		&ast.Bounce{},
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := evaluator.NewContext()
			eng.Execute(instrs, ctx)
		}()
	}
	wg.Wait()
	stats := eng.Stats()
	assert.Equal(t, 16, stats.Executions)
	assert.Equal(t, 16, stats.UnresolvedVariables)
	assert.Equal(t, []string{"n"}, stats.UnresolvedNames)
}

func TestActionsToJSON(t *testing.T) {
	data, err := evaluator.ActionsToJSON([]evaluator.Action{
		evaluator.ActionSetSpeed{Speed: 2},
		evaluator.ActionSetDirection{Direction: ast.Left},
		evaluator.ActionPrint{Text: "hi"},
		evaluator.ActionExecuteProgram{Program: &ast.Program{Name: "sub"}},
	})
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	want := []map[string]any{
		{"kind": "set_speed", "speed": 2.0},
		{"kind": "set_direction", "direction": "left"},
		{"kind": "print", "text": "hi"},
		{"kind": "execute_program", "program": "sub"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}
}
