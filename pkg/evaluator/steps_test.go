package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/evaluator"
)

func TestStepFires(t *testing.T) {
	tests := []struct {
		trigger uint32
		hits    uint32
		want    bool
	}{
		{0, 1, true},
		{0, 7, true},
		{2, 1, false},
		{2, 2, true},
		{2, 4, true},
		{3, 4, false},
	}
	for _, tt := range tests {
		step := evaluator.ProgramStep{TriggerHits: tt.trigger}
		assert.Equal(t, tt.want, step.Fires(tt.hits), "trigger %d hits %d", tt.trigger, tt.hits)
	}
}

func TestRunSteps(t *testing.T) {
	sub := &ast.Program{Name: "sub"}
	steps := []evaluator.ProgramStep{
		{TriggerHits: 0, Effect: evaluator.StepEffect{Kind: evaluator.EffectBounce}},
		{TriggerHits: 2, Effect: evaluator.StepEffect{Kind: evaluator.EffectSpeedMultiply, Factor: 1.5}},
		{TriggerHits: 2, Effect: evaluator.StepEffect{Kind: evaluator.EffectChangeDirection, Direction: ast.Left}},
		{TriggerHits: 3, Effect: evaluator.StepEffect{Kind: evaluator.EffectStop}},
		{TriggerHits: 1, Effect: evaluator.StepEffect{Kind: evaluator.EffectPlaySample, Index: 4}},
		{TriggerHits: 1, Effect: evaluator.StepEffect{Kind: evaluator.EffectExecuteProgram, Index: 0}},
		{TriggerHits: 1, Effect: evaluator.StepEffect{Kind: evaluator.EffectExecuteProgram, Index: 9}},
		{TriggerHits: 1, Effect: evaluator.StepEffect{Kind: evaluator.EffectNone}},
	}

	eng := evaluator.New()
	got := eng.RunSteps(steps, []*ast.Program{sub}, &evaluator.Context{SquareHitCount: 4, BallSpeed: 2})
	diffActions(t, []evaluator.Action{
		evaluator.ActionBounce{},
		evaluator.ActionSetSpeed{Speed: 3},
		evaluator.ActionSetDirection{Direction: ast.Left},
		evaluator.ActionPlaySample{Index: 4},
		evaluator.ActionExecuteProgram{Program: sub},
		evaluator.ActionNone{},
	}, got)
	assert.Equal(t, 1, eng.Stats().DroppedInstructions)
}

func TestParseStepEffect(t *testing.T) {
	inputs := []string{
		"bounce",
		"stop",
		"none",
		"speed_multiply 0.5",
		"change_direction up-left",
		"play_sample 2",
		"execute_program 0",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			eff, err := evaluator.ParseStepEffect(in)
			require.NoError(t, err)
			assert.Equal(t, in, eff.String())
		})
	}
}

func TestParseStepEffectErrors(t *testing.T) {
	inputs := []string{
		"",
		"bounce twice",
		"speed_multiply",
		"speed_multiply fast",
		"change_direction sideways",
		"play_sample one",
		"teleport 3",
	}
	for _, in := range inputs {
		_, err := evaluator.ParseStepEffect(in)
		assert.Error(t, err, "input %q", in)
	}
}
