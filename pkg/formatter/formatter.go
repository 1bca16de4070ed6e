// Package formatter renders bounce programs back to text: Format emits
// grammar source for programs the line grammar can express, Dump emits an
// indented tree for any program.
package formatter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bouncegrid/bounce/pkg/ast"
)

const indent = "  "

// ErrNotExpressible is returned by Format for instructions that have no
// form in the line grammar.
var ErrNotExpressible = errors.New("instruction cannot be written in program syntax")

// Precedence table for binary operators (higher = tighter binding)
var precedence = map[ast.Operator]int{
	ast.OpOr:    1,
	ast.OpAnd:   2,
	ast.OpEqual: 3, ast.OpNotEqual: 3,
	ast.OpGreater: 4, ast.OpLess: 4, ast.OpGreaterEqual: 4, ast.OpLessEqual: 4,
	ast.OpAdd: 5, ast.OpSub: 5,
	ast.OpMul: 6, ast.OpDiv: 6, ast.OpMod: 6,
}

func needsParens(child ast.Expression, parentOp ast.Operator, isRight bool) bool {
	bin, ok := child.(*ast.BinaryExpr)
	if !ok {
		return false
	}
	childPrec := precedence[bin.Op]
	parentPrec := precedence[parentOp]
	if childPrec < parentPrec {
		return true
	}
	// Left-associative: same precedence on the right needs parens
	if childPrec == parentPrec && isRight {
		return true
	}
	return false
}

// Format writes program as grammar source: a def line, one line per
// instruction and a closing return. Parsing the output yields an equal
// program.
func Format(program *ast.Program) (string, error) {
	lines := []string{"def " + program.Name}
	for i, in := range program.Instructions {
		line, err := formatInstr(in)
		if err != nil {
			return "", fmt.Errorf("instruction %d (%s): %w", i+1, in.Kind(), err)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "return")
	return strings.Join(lines, "\n") + "\n", nil
}

func formatInstr(in ast.Instruction) (string, error) {
	switch n := in.(type) {
	case *ast.SetSpeed:
		if v, ok := numberLiteral(n.Value); ok {
			return "set speed " + formatNumber(v), nil
		}
		if bin, ok := n.Value.(*ast.BinaryExpr); ok && bin.Op == ast.OpAdd && isProp(bin.Left, ast.PropSpeed) {
			if v, ok := numberLiteral(bin.Right); ok {
				return "set speed relative " + formatSigned(v), nil
			}
		}

	case *ast.SetDirection:
		if lit, ok := n.Value.(*ast.Literal); ok {
			if d, ok := lit.Value.(ast.DirectionValue); ok {
				return "set direction " + d.Value.String(), nil
			}
		}

	case *ast.If:
		if n.Trigger != nil && len(n.Else) == 0 && isBounceOnly(n.Then) && isHitTrigger(n.Cond, n.Trigger.Count) {
			return fmt.Sprintf("if %s hits %s %d times", n.Trigger.Color, n.Trigger.Target, n.Trigger.Count), nil
		}
	}
	return "", ErrNotExpressible
}

func numberLiteral(e ast.Expression) (float64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, false
	}
	n, ok := lit.Value.(ast.NumberValue)
	return n.Value, ok
}

func isProp(e ast.Expression, p ast.Property) bool {
	bp, ok := e.(*ast.BallProperty)
	return ok && bp.Property == p
}

func isBounceOnly(block []ast.Instruction) bool {
	if len(block) != 1 {
		return false
	}
	_, ok := block[0].(*ast.Bounce)
	return ok
}

func isHitTrigger(cond ast.Expression, count uint32) bool {
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok || bin.Op != ast.OpGreaterEqual || !isProp(bin.Left, ast.PropHitCount) {
		return false
	}
	v, ok := numberLiteral(bin.Right)
	return ok && v == float64(count)
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatSigned(f float64) string {
	if f >= 0 {
		return "+" + formatNumber(f)
	}
	return formatNumber(f)
}

// --- Dump ---

// Dump renders any program as an indented instruction tree.
func Dump(program *ast.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "program %q\n", program.Name)
	dumpBlock(&b, program.Instructions, 1)
	return b.String()
}

func dumpBlock(b *strings.Builder, instrs []ast.Instruction, depth int) {
	pad := strings.Repeat(indent, depth)
	for _, in := range instrs {
		switch n := in.(type) {
		case *ast.SetSpeed:
			fmt.Fprintf(b, "%sset_speed %s\n", pad, FormatExpr(n.Value))
		case *ast.SetDirection:
			fmt.Fprintf(b, "%sset_direction %s\n", pad, FormatExpr(n.Value))
		case *ast.Bounce:
			fmt.Fprintf(b, "%sbounce\n", pad)
		case *ast.Stop:
			fmt.Fprintf(b, "%sstop\n", pad)
		case *ast.SetVariable:
			fmt.Fprintf(b, "%s%s = %s\n", pad, n.Name, FormatExpr(n.Value))
		case *ast.If:
			fmt.Fprintf(b, "%sif %s\n", pad, FormatExpr(n.Cond))
			dumpBlock(b, n.Then, depth+1)
			if len(n.Else) > 0 {
				fmt.Fprintf(b, "%selse\n", pad)
				dumpBlock(b, n.Else, depth+1)
			}
		case *ast.Loop:
			fmt.Fprintf(b, "%sloop %s\n", pad, FormatExpr(n.Count))
			dumpBlock(b, n.Body, depth+1)
		case *ast.PlaySample:
			fmt.Fprintf(b, "%splay_sample %s\n", pad, FormatExpr(n.Index))
		case *ast.SpawnBall:
			fmt.Fprintf(b, "%sspawn_ball %s %s %s %s\n", pad,
				FormatExpr(n.X), FormatExpr(n.Y), FormatExpr(n.Speed), FormatExpr(n.Direction))
		case *ast.Print:
			fmt.Fprintf(b, "%sprint %s\n", pad, FormatExpr(n.Value))
		}
	}
}

// FormatExpr renders an expression with the minimum parentheses.
func FormatExpr(e ast.Expression) string {
	switch n := e.(type) {
	case *ast.Literal:
		switch v := n.Value.(type) {
		case ast.StringValue:
			return strconv.Quote(v.Value)
		case ast.NumberValue:
			return formatNumber(v.Value)
		case nil:
			return "0"
		default:
			return v.String()
		}
	case *ast.Variable:
		return n.Name
	case *ast.BallProperty:
		return "ball." + n.Property.String()
	case *ast.Random:
		return fmt.Sprintf("random(%s, %s)", formatNumber(n.Min), formatNumber(n.Max))
	case *ast.BinaryExpr:
		left := FormatExpr(n.Left)
		if needsParens(n.Left, n.Op, false) {
			left = "(" + left + ")"
		}
		right := FormatExpr(n.Right)
		if needsParens(n.Right, n.Op, true) {
			right = "(" + right + ")"
		}
		return left + " " + string(n.Op) + " " + right
	}
	return "<nil>"
}
