package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bouncegrid/bounce/pkg/ast"
)

// EffectKind names a static effect of a legacy program step.
type EffectKind string

const (
	EffectBounce          EffectKind = "bounce"
	EffectStop            EffectKind = "stop"
	EffectSpeedMultiply   EffectKind = "speed_multiply"
	EffectChangeDirection EffectKind = "change_direction"
	EffectPlaySample      EffectKind = "play_sample"
	EffectExecuteProgram  EffectKind = "execute_program"
	EffectNone            EffectKind = "none"
)

// StepEffect is one static effect. Factor is used by SpeedMultiply,
// Direction by ChangeDirection and Index by PlaySample and ExecuteProgram.
type StepEffect struct {
	Kind      EffectKind
	Factor    float64
	Direction ast.Direction
	Index     int
}

// ProgramStep fires its effect when the square's hit count is a multiple of
// TriggerHits. A TriggerHits of zero fires on every hit.
type ProgramStep struct {
	TriggerHits uint32
	Effect      StepEffect
}

// Fires reports whether the step applies at the given square hit count.
func (s ProgramStep) Fires(squareHits uint32) bool {
	return s.TriggerHits == 0 || squareHits%s.TriggerHits == 0
}

// String renders the effect in the form accepted by ParseStepEffect.
func (e StepEffect) String() string {
	switch e.Kind {
	case EffectSpeedMultiply:
		return fmt.Sprintf("%s %s", e.Kind, strconv.FormatFloat(e.Factor, 'f', -1, 64))
	case EffectChangeDirection:
		return fmt.Sprintf("%s %s", e.Kind, e.Direction)
	case EffectPlaySample, EffectExecuteProgram:
		return fmt.Sprintf("%s %d", e.Kind, e.Index)
	}
	return string(e.Kind)
}

// ParseStepEffect parses "bounce", "stop", "none", "speed_multiply 1.5",
// "change_direction up-left", "play_sample 2" or "execute_program 0".
func ParseStepEffect(s string) (StepEffect, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return StepEffect{}, fmt.Errorf("empty step effect")
	}
	kind := EffectKind(fields[0])
	args := fields[1:]

	switch kind {
	case EffectBounce, EffectStop, EffectNone:
		if len(args) != 0 {
			return StepEffect{}, fmt.Errorf("step effect %q takes no argument", kind)
		}
		return StepEffect{Kind: kind}, nil
	}
	if len(args) != 1 {
		return StepEffect{}, fmt.Errorf("step effect %q takes one argument", kind)
	}

	switch kind {
	case EffectSpeedMultiply:
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return StepEffect{}, fmt.Errorf("speed factor %q: %w", args[0], err)
		}
		return StepEffect{Kind: kind, Factor: f}, nil
	case EffectChangeDirection:
		d, ok := ast.ParseDirection(args[0])
		if !ok {
			return StepEffect{}, fmt.Errorf("unknown direction %q", args[0])
		}
		return StepEffect{Kind: kind, Direction: d}, nil
	case EffectPlaySample, EffectExecuteProgram:
		i, err := strconv.Atoi(args[0])
		if err != nil {
			return StepEffect{}, fmt.Errorf("index %q: %w", args[0], err)
		}
		return StepEffect{Kind: kind, Index: i}, nil
	}
	return StepEffect{}, fmt.Errorf("unknown step effect %q", kind)
}

// RunSteps is the legacy path used when a square has no active program.
// Every step that fires at ctx.SquareHitCount contributes its effect in
// table order. ExecuteProgram indexes into programs; an index outside the
// table is dropped.
func (e *Engine) RunSteps(steps []ProgramStep, programs []*ast.Program, ctx *Context) []Action {
	ev := e.newEvaluator(ctx)
	ev.stats.Executions++
	ev.emit(TraceExecStart, "steps", nil, "")
	for _, step := range steps {
		if !step.Fires(ev.ctx.SquareHitCount) {
			continue
		}
		if a, ok := ev.stepAction(step.Effect, programs); ok {
			ev.push(a)
		}
	}
	ev.emit(TraceExecEnd, "steps", nil, "")
	e.merge(ev)
	return ev.actions
}

func (ev *evaluator) stepAction(eff StepEffect, programs []*ast.Program) (Action, bool) {
	switch eff.Kind {
	case EffectBounce:
		return ActionBounce{}, true
	case EffectStop:
		return ActionStop{}, true
	case EffectSpeedMultiply:
		return ActionSetSpeed{Speed: ev.ctx.BallSpeed * eff.Factor}, true
	case EffectChangeDirection:
		return ActionSetDirection{Direction: eff.Direction}, true
	case EffectPlaySample:
		return ActionPlaySample{Index: eff.Index}, true
	case EffectExecuteProgram:
		if eff.Index < 0 || eff.Index >= len(programs) || programs[eff.Index] == nil {
			ev.stats.DroppedInstructions++
			ev.eng.log.Debug().Int("index", eff.Index).Msg("program step index out of range, dropped")
			return nil, false
		}
		return ActionExecuteProgram{Program: programs[eff.Index]}, true
	case EffectNone:
		return ActionNone{}, true
	}
	return nil, false
}
