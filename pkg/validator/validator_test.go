package validator_test

import (
	"strings"
	"testing"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/parser"
	"github.com/bouncegrid/bounce/pkg/validator"
)

// helper parses source and validates, returning diagnostics from validation only.
// It fatals on parse errors so test cases focus on validator behavior.
func mustParseAndValidate(t *testing.T, source string) []diagnostics.Diagnostic {
	t.Helper()
	prog, err := parser.ParseProgram(source, "test.bnc")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return validator.Validate(prog)
}

func validate(instrs ...ast.Instruction) []diagnostics.Diagnostic {
	return validator.Validate(&ast.Program{Name: "t", Instructions: instrs})
}

// assertNoDiags asserts zero diagnostics were produced.
func assertNoDiags(t *testing.T, diags []diagnostics.Diagnostic) {
	t.Helper()
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %d:\n  %s", len(diags), codes(diags))
	}
}

// assertCodes asserts the exact sequence of diagnostic codes.
func assertCodes(t *testing.T, diags []diagnostics.Diagnostic, want ...string) {
	t.Helper()
	got := make([]string, len(diags))
	for i, d := range diags {
		got[i] = d.Code
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("codes: got %v, want %v\n  %s", got, want, codes(diags))
	}
	for _, d := range diags {
		if d.Severity != diagnostics.SeverityWarning {
			t.Errorf("%s: severity %q, want warning", d.Code, d.Severity)
		}
	}
}

func codes(diags []diagnostics.Diagnostic) string {
	var msgs []string
	for _, d := range diags {
		msgs = append(msgs, d.Code+": "+d.Message)
	}
	return strings.Join(msgs, "\n  ")
}

// ===== Parsed programs =====

func TestValid_SetOnly(t *testing.T) {
	diags := mustParseAndValidate(t, "def p\nset speed 2\nset speed relative -1\nset direction left\nreturn")
	assertNoDiags(t, diags)
}

func TestTriggerIgnored(t *testing.T) {
	diags := mustParseAndValidate(t, "def p\nif red hits wall 2 times\nreturn")
	assertCodes(t, diags, diagnostics.WTriggerIgnored)
	if !strings.Contains(diags[0].Message, "line 2") || !strings.Contains(diags[0].Message, `"red"`) {
		t.Errorf("unexpected message %q", diags[0].Message)
	}
	if diags[0].Span == nil || diags[0].Span.StartLine != 2 {
		t.Errorf("span should point at line 2, got %+v", diags[0].Span)
	}
}

func TestValidateNil(t *testing.T) {
	assertNoDiags(t, validator.Validate(nil))
}

// ===== Built programs =====

func TestTypeDrop(t *testing.T) {
	tests := []struct {
		name  string
		instr ast.Instruction
	}{
		{"speed direction", &ast.SetSpeed{Value: ast.Dir(ast.Up)}},
		{"speed comparison", &ast.SetSpeed{Value: ast.Bin(ast.Num(1), ast.OpLess, ast.Num(2))}},
		{"direction number", &ast.SetDirection{Value: ast.Prop(ast.PropSpeed)}},
		{"sample string", &ast.PlaySample{Index: ast.Str("kick")}},
		{"spawn bool y", &ast.SpawnBall{X: ast.Num(0), Y: ast.Bool(true), Speed: ast.Num(1), Direction: ast.Dir(ast.Up)}},
		{"mixed arithmetic", &ast.SetSpeed{Value: ast.Bin(ast.Num(1), ast.OpAdd, ast.Dir(ast.Up))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertCodes(t, validate(tt.instr), diagnostics.WTypeDrop)
		})
	}
}

func TestUnknownTypesNotReported(t *testing.T) {
	diags := validate(
		&ast.SetVariable{Name: "d", Value: ast.Dir(ast.Up)},
		&ast.SetDirection{Value: ast.Var("d")},
		&ast.SetSpeed{Value: ast.Bin(ast.Var("d"), ast.OpAdd, ast.Num(1))},
		&ast.PlaySample{Index: ast.Rand(0, 4)},
	)
	assertNoDiags(t, diags)
}

func TestZeroDivision(t *testing.T) {
	diags := validate(
		&ast.SetSpeed{Value: ast.Bin(ast.Prop(ast.PropSpeed), ast.OpDiv, ast.Num(0))},
		&ast.Print{Value: ast.Bin(ast.Num(3), ast.OpMod, ast.Num(0))},
		&ast.SetSpeed{Value: ast.Bin(ast.Prop(ast.PropSpeed), ast.OpDiv, ast.Num(2))},
	)
	assertCodes(t, diags, diagnostics.WZeroDiv, diagnostics.WZeroDiv)
}

func TestUnsetVariable(t *testing.T) {
	diags := validate(
		&ast.Print{Value: ast.Var("a")},
		&ast.Print{Value: ast.Var("a")},
		&ast.SetVariable{Name: "b", Value: ast.Num(1)},
		&ast.Print{Value: ast.Var("b")},
	)
	assertCodes(t, diags, diagnostics.WUnsetVar)
}

func TestUnsetVariableSelfReference(t *testing.T) {
	diags := validate(
		&ast.Loop{Count: ast.Num(3), Body: []ast.Instruction{
			&ast.SetVariable{Name: "x", Value: ast.Bin(ast.Var("x"), ast.OpAdd, ast.Num(1))},
		}},
	)
	assertCodes(t, diags, diagnostics.WUnsetVar)
}

func TestLoopCount(t *testing.T) {
	tests := []struct {
		name  string
		count ast.Expression
		warn  bool
	}{
		{"positive", ast.Num(3), false},
		{"negative", ast.Num(-1), true},
		{"zero", ast.Num(0), true},
		{"boolean", ast.Bool(true), true},
		{"property", ast.Prop(ast.PropHitCount), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validate(&ast.Loop{Count: tt.count})
			if tt.warn {
				assertCodes(t, diags, diagnostics.WLoopCount)
			} else {
				assertNoDiags(t, diags)
			}
		})
	}
}

func TestConditionType(t *testing.T) {
	assertCodes(t, validate(&ast.If{Cond: ast.Num(1)}), diagnostics.WCondType)
	assertCodes(t, validate(&ast.If{Cond: ast.Prop(ast.PropDirection)}), diagnostics.WCondType)
	assertNoDiags(t, validate(&ast.If{Cond: ast.Bin(ast.Prop(ast.PropX), ast.OpGreater, ast.Num(2))}))
}

func TestNestedBlocks(t *testing.T) {
	diags := validate(&ast.If{
		Cond: ast.Bool(true),
		Then: []ast.Instruction{&ast.SetSpeed{Value: ast.Str("fast")}},
		Else: []ast.Instruction{&ast.Loop{Count: ast.Num(1), Body: []ast.Instruction{
			&ast.PlaySample{Index: ast.Bin(ast.Num(1), ast.OpDiv, ast.Num(0))},
		}}},
	})
	assertCodes(t, diags, diagnostics.WTypeDrop, diagnostics.WZeroDiv)
}

func TestValidateAll(t *testing.T) {
	progs, err := parser.ParseMultiplePrograms("def a\nif red hits x 1 times\nreturn\ndef b\nif blue hits y 2 times\n", "multi.bnc")
	if err != nil {
		t.Fatal(err)
	}
	assertCodes(t, validator.ValidateAll(progs), diagnostics.WTriggerIgnored, diagnostics.WTriggerIgnored)
}
