// Package validator implements static checks of bounce programs. Every
// check reports a warning: the engine is fail-soft, so a warning names a
// spot where the program will silently degrade at runtime.
package validator

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
)

// staticType is the type an expression is known to produce before it runs.
type staticType int

const (
	typeUnknown staticType = iota
	typeNumber
	typeDirection
	typeBool
	typeString
)

func (t staticType) String() string {
	switch t {
	case typeNumber:
		return "number"
	case typeDirection:
		return "direction"
	case typeBool:
		return "boolean"
	case typeString:
		return "string"
	}
	return "unknown"
}

type validator struct {
	diags    []diagnostics.Diagnostic
	assigned mapset.Set
	warned   mapset.Set
}

// Validate checks program and returns its warnings in source order.
func Validate(program *ast.Program) []diagnostics.Diagnostic {
	if program == nil {
		return nil
	}
	v := &validator{
		assigned: mapset.NewThreadUnsafeSet(),
		warned:   mapset.NewThreadUnsafeSet(),
	}
	v.validateBlock(program.Instructions)
	return v.diags
}

// ValidateAll validates each program in turn.
func ValidateAll(programs []*ast.Program) []diagnostics.Diagnostic {
	var out []diagnostics.Diagnostic
	for _, p := range programs {
		out = append(out, Validate(p)...)
	}
	return out
}

func (v *validator) warn(code string, in ast.Instruction, msg, hint string) {
	span := in.NodeSpan()
	if span.StartLine > 0 {
		msg = fmt.Sprintf("line %d: %s", span.StartLine, msg)
	}
	v.diags = append(v.diags, diagnostics.MakeWarning(code, msg, &span, hint))
}

func (v *validator) validateBlock(instrs []ast.Instruction) {
	for _, in := range instrs {
		v.validateInstr(in)
	}
}

func (v *validator) validateInstr(in ast.Instruction) {
	switch n := in.(type) {
	case *ast.SetSpeed:
		v.expectType(in, "set speed", n.Value, typeNumber)

	case *ast.SetDirection:
		v.expectType(in, "set direction", n.Value, typeDirection)

	case *ast.SetVariable:
		v.checkExpr(in, n.Value)
		v.assigned.Add(n.Name)

	case *ast.If:
		if n.Trigger != nil {
			v.warn(diagnostics.WTriggerIgnored, in,
				fmt.Sprintf("color %q and target %q are not part of the condition", n.Trigger.Color, n.Trigger.Target),
				"the condition only compares the ball's hit count")
		}
		v.checkExpr(in, n.Cond)
		if t := v.typeOf(n.Cond); t != typeUnknown && t != typeBool {
			v.warn(diagnostics.WCondType, in,
				fmt.Sprintf("condition is a %s, the else branch always runs", t), "")
		}
		v.validateBlock(n.Then)
		v.validateBlock(n.Else)

	case *ast.Loop:
		v.checkExpr(in, n.Count)
		if t := v.typeOf(n.Count); t != typeUnknown && t != typeNumber {
			v.warn(diagnostics.WLoopCount, in, fmt.Sprintf("loop count is a %s, the body never runs", t), "")
		} else if lit, ok := n.Count.(*ast.Literal); ok {
			if num, ok := lit.Value.(ast.NumberValue); ok && num.Value < 1 {
				v.warn(diagnostics.WLoopCount, in, fmt.Sprintf("loop count %s runs the body zero times", num), "")
			}
		}
		v.validateBlock(n.Body)

	case *ast.PlaySample:
		v.expectType(in, "play sample", n.Index, typeNumber)

	case *ast.SpawnBall:
		v.expectType(in, "spawn ball x", n.X, typeNumber)
		v.expectType(in, "spawn ball y", n.Y, typeNumber)
		v.expectType(in, "spawn ball speed", n.Speed, typeNumber)
		v.expectType(in, "spawn ball direction", n.Direction, typeDirection)

	case *ast.Print:
		v.checkExpr(in, n.Value)
	}
}

func (v *validator) expectType(in ast.Instruction, what string, expr ast.Expression, want staticType) {
	v.checkExpr(in, expr)
	if got := v.typeOf(expr); got != typeUnknown && got != want {
		v.warn(diagnostics.WTypeDrop, in,
			fmt.Sprintf("%s needs a %s but gets a %s, the instruction is dropped", what, want, got), "")
	}
}

// checkExpr walks expr for reads of unassigned variables and literal
// division by zero.
func (v *validator) checkExpr(in ast.Instruction, expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.Variable:
		if !v.assigned.Contains(e.Name) && !v.warned.Contains(e.Name) {
			v.warned.Add(e.Name)
			v.warn(diagnostics.WUnsetVar, in,
				fmt.Sprintf("variable %q is read before it is set and evaluates to 0", e.Name), "")
		}
	case *ast.BinaryExpr:
		v.checkExpr(in, e.Left)
		v.checkExpr(in, e.Right)
		if e.Op == ast.OpDiv || e.Op == ast.OpMod {
			if lit, ok := e.Right.(*ast.Literal); ok {
				if num, ok := lit.Value.(ast.NumberValue); ok && num.Value == 0 {
					v.warn(diagnostics.WZeroDiv, in, fmt.Sprintf("'%s' by zero evaluates to 0", e.Op), "")
				}
			}
		}
	}
}

func (v *validator) typeOf(expr ast.Expression) staticType {
	switch e := expr.(type) {
	case *ast.Literal:
		switch e.Value.(type) {
		case ast.NumberValue, nil:
			return typeNumber
		case ast.DirectionValue:
			return typeDirection
		case ast.BoolValue:
			return typeBool
		case ast.StringValue:
			return typeString
		}
	case *ast.BallProperty:
		if e.Property == ast.PropDirection {
			return typeDirection
		}
		return typeNumber
	case *ast.Random:
		return typeNumber
	case *ast.BinaryExpr:
		if !e.Op.IsArithmetic() {
			return typeBool
		}
		l, r := v.typeOf(e.Left), v.typeOf(e.Right)
		if l == typeNumber && r == typeNumber {
			return typeNumber
		}
		if l != typeUnknown && r != typeUnknown {
			// Arithmetic on anything but two numbers yields false.
			return typeBool
		}
	}
	return typeUnknown
}
