package sim_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/audio"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/parser"
	"github.com/bouncegrid/bounce/pkg/runtime"
	"github.com/bouncegrid/bounce/pkg/samples"
	"github.com/bouncegrid/bounce/pkg/sim"
	"github.com/bouncegrid/bounce/pkg/state"
)

func sequentialIDs() func() state.BallID {
	n := 0
	return func() state.BallID {
		n++
		return state.BallID(fmt.Sprintf("spawn-%d", n))
	}
}

func TestApplyInOrder(t *testing.T) {
	w := sim.NewWorld(runtime.New())
	b := w.AddBall("a", 1, 1, 1, ast.Right)
	err := w.Apply("a", state.Position{X: 1, Y: 1}, []evaluator.Action{
		evaluator.ActionSetSpeed{Speed: 3},
		evaluator.ActionSetDirection{Direction: ast.UpLeft},
		evaluator.ActionBounce{},
		evaluator.ActionNone{},
		evaluator.ActionStop{},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, b.Speed)
	assert.Equal(t, ast.DownRight, b.Direction)
	assert.True(t, b.Stopped)
}

func TestCollideRunsProgram(t *testing.T) {
	x := runtime.New()
	pos := state.Position{X: 2, Y: 0}
	prog, err := parser.ParseProgram("def p\nif red hits wall 2 times\nset speed relative +1\nreturn", "p.bnc")
	require.NoError(t, err)
	x.SetProgram(pos, prog)

	w := sim.NewWorld(x)
	w.AddBall("a", 2, 0, 1, ast.Left)

	_, err = w.Collide("a", pos)
	require.NoError(t, err)
	assert.Equal(t, 2.0, w.Ball("a").Speed)
	assert.Equal(t, ast.Left, w.Ball("a").Direction)

	actions, err := w.Collide("a", pos)
	require.NoError(t, err)
	assert.Equal(t, []string{"bounce", "set_speed 3"}, evaluator.ActionStrings(actions))
	assert.Equal(t, ast.Right, w.Ball("a").Direction)
	assert.Equal(t, 3.0, w.Ball("a").Speed)
}

func TestCollideUnknownBall(t *testing.T) {
	w := sim.NewWorld(runtime.New())
	_, err := w.Collide("ghost", state.Position{X: 4, Y: 5})
	require.NoError(t, err)
	b := w.Ball("ghost")
	require.NotNil(t, b)
	assert.Equal(t, state.Position{X: 4, Y: 5}, b.Cell())
}

func TestPlaySample(t *testing.T) {
	rec := &audio.Recorder{}
	w := sim.NewWorld(runtime.New(),
		sim.WithSamples(samples.FromPaths([]string{"kick.wav", "snare.wav"})),
		sim.WithPlayer(rec),
		sim.WithAudio(2, 1.5, 0.25),
	)
	w.AddBall("a", 0, 0, 1, ast.Up)
	err := w.Apply("a", state.Position{}, []evaluator.Action{
		evaluator.ActionPlaySample{Index: 1},
		evaluator.ActionPlaySample{Index: 7},
		evaluator.ActionPlaySample{Index: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []audio.Played{
		{Channel: 2, Path: "snare.wav", Pitch: 1.5, Volume: 0.25},
		{Channel: 2, Path: "kick.wav", Pitch: 1.5, Volume: 0.25},
	}, rec.Played())
}

func TestAudioErrorsDoNotStopActions(t *testing.T) {
	rec := &audio.Recorder{Err: errors.New("busy")}
	w := sim.NewWorld(runtime.New(),
		sim.WithSamples(samples.FromPaths([]string{"kick.wav"})),
		sim.WithPlayer(rec),
	)
	b := w.AddBall("a", 0, 0, 1, ast.Up)
	err := w.Apply("a", state.Position{}, []evaluator.Action{
		evaluator.ActionPlaySample{Index: 0},
		evaluator.ActionStop{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.True(t, b.Stopped)
}

func TestSpawnBall(t *testing.T) {
	w := sim.NewWorld(runtime.New(), sim.WithIDs(sequentialIDs()))
	w.AddBall("a", 0, 0, 1, ast.Up)
	require.NoError(t, w.Apply("a", state.Position{}, []evaluator.Action{
		evaluator.ActionSpawnBall{X: 3, Y: 4, Speed: 2, Direction: ast.Down},
	}))
	balls := w.Balls()
	require.Len(t, balls, 2)
	assert.Equal(t, sim.Ball{ID: "spawn-1", X: 3, Y: 4, Speed: 2, Direction: ast.Down}, balls[1])
}

func TestSpawnBallDefaultIDs(t *testing.T) {
	w := sim.NewWorld(runtime.New())
	a := w.AddBall("", 0, 0, 1, ast.Up)
	b := w.AddBall("", 0, 0, 1, ast.Up)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPrinter(t *testing.T) {
	var got []string
	w := sim.NewWorld(runtime.New(), sim.WithPrinter(func(ball state.BallID, text string) {
		got = append(got, string(ball)+":"+text)
	}))
	w.AddBall("a", 0, 0, 0, ast.Up)
	require.NoError(t, w.Apply("a", state.Position{}, []evaluator.Action{evaluator.ActionPrint{Text: "hi"}}))
	assert.Equal(t, []string{"a:hi"}, got)
}

func TestExecuteProgramNested(t *testing.T) {
	sub, err := parser.ParseProgram("def sub\nset speed relative +2\nset direction down\nreturn", "sub.bnc")
	require.NoError(t, err)
	x := runtime.New(runtime.WithProgramTable([]*ast.Program{sub}))
	pos := state.Position{X: 0, Y: 0}
	x.SetSteps(pos, []evaluator.ProgramStep{
		{Effect: evaluator.StepEffect{Kind: evaluator.EffectSpeedMultiply, Factor: 2}},
		{Effect: evaluator.StepEffect{Kind: evaluator.EffectExecuteProgram, Index: 0}},
	})

	w := sim.NewWorld(x)
	w.AddBall("a", 0, 0, 1, ast.Up)
	_, err = w.Collide("a", pos)
	require.NoError(t, err)

	// The nested program sees the speed set by the action before it.
	assert.Equal(t, 4.0, w.Ball("a").Speed)
	assert.Equal(t, ast.Down, w.Ball("a").Direction)
}

func TestExecuteProgramNestedCommitsVariables(t *testing.T) {
	sub := &ast.Program{Name: "count", Instructions: []ast.Instruction{
		&ast.SetVariable{Name: "n", Value: ast.Bin(ast.Var("n"), ast.OpAdd, ast.Num(1))},
	}}
	x := runtime.New(runtime.WithProgramTable([]*ast.Program{sub}))
	pos := state.Position{X: 2, Y: 2}
	x.SetSteps(pos, []evaluator.ProgramStep{
		{Effect: evaluator.StepEffect{Kind: evaluator.EffectExecuteProgram, Index: 0}},
	})

	w := sim.NewWorld(x)
	for i := 0; i < 3; i++ {
		_, err := w.Collide("a", pos)
		require.NoError(t, err)
	}
	n, ok := x.Store().Variable("n")
	require.True(t, ok)
	assert.Equal(t, "3", n.String())
	assert.Equal(t, uint32(3), x.Store().SquareHits(pos), "nested runs are not hits")
}

func TestExecuteProgramDepthLimit(t *testing.T) {
	sub := &ast.Program{Name: "sub", Instructions: []ast.Instruction{&ast.Stop{}}}
	w := sim.NewWorld(runtime.New(), sim.WithMaxDepth(0))
	b := w.AddBall("a", 0, 0, 1, ast.Up)
	require.NoError(t, w.Apply("a", state.Position{}, []evaluator.Action{evaluator.ActionExecuteProgram{Program: sub}}))
	assert.False(t, b.Stopped)
}

func TestStep(t *testing.T) {
	w := sim.NewWorld(runtime.New())
	w.AddBall("a", 1, 1, 2, ast.DownRight)
	stopped := w.AddBall("b", 5, 5, 1, ast.Up)
	stopped.Stopped = true
	w.Step()
	balls := w.Balls()
	assert.Equal(t, 3.0, balls[0].X)
	assert.Equal(t, 3.0, balls[0].Y)
	assert.Equal(t, 5.0, balls[1].Y)
}
