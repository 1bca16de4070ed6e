// Package parser implements the bounce program parser.
//
// Grammar (one statement per line, surrounding whitespace ignored):
//
//	program   ::= "def" NAME NEWLINE statement* ("return")?
//	statement ::= "if" COLOR "hits" TARGET COUNT "times"
//	            | "set" "speed" NUMBER
//	            | "set" "speed" "relative" SIGNED_NUMBER
//	            | "set" "direction" DIRECTION_WORD
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/diagnostics"
	"github.com/bouncegrid/bounce/pkg/lexer"
)

// Error wraps the diagnostic of a parse failure.
type Error struct {
	Diag diagnostics.Diagnostic
}

func (e *Error) Error() string {
	return e.Diag.Message
}

type parser struct {
	lines    []lexer.Line
	raw      []string
	pos      int
	filename string
	// multi stops a block at the next def line instead of rejecting it.
	multi bool
}

func newParser(source, filename string, multi bool) *parser {
	return &parser{
		lines:    lexer.Tokenize(source, filename),
		raw:      strings.Split(source, "\n"),
		filename: filename,
		multi:    multi,
	}
}

// ParseProgram parses a single program. Parsing stops at the first line
// that is exactly "return"; anything after it is ignored.
func ParseProgram(source, filename string) (*ast.Program, error) {
	p := newParser(source, filename, false)
	if len(p.lines) == 0 {
		return nil, p.errorAt(nil, diagnostics.ENoDef, "empty program: expected 'def <name>'", "start the program with a line such as 'def bouncy'")
	}
	prog, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	prog.Source = source
	return prog, nil
}

// ParseMultiplePrograms extracts every def block from source. A block ends
// at its return line, at the next def line, or at end of input; lines
// between a return and the next def are ignored. Blank input yields no
// programs.
func ParseMultiplePrograms(source, filename string) ([]*ast.Program, error) {
	p := newParser(source, filename, true)
	var progs []*ast.Program
	for p.pos < len(p.lines) {
		prog, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		prog.Source = p.rawText(prog.Span)
		progs = append(progs, prog)
		for p.pos < len(p.lines) && !isDefLine(p.lines[p.pos]) {
			p.pos++
		}
	}
	return progs, nil
}

func isDefLine(l lexer.Line) bool {
	return l.First() == "def"
}

func (p *parser) errorAt(line *lexer.Line, code, msg, hint string) *Error {
	var span *ast.Span
	if line != nil {
		s := line.Span
		span = &s
		msg = fmt.Sprintf("line %d: %s", s.StartLine, msg)
	}
	return &Error{Diag: diagnostics.MakeDiag(code, msg, span, hint)}
}

func (p *parser) rawText(span ast.Span) string {
	start, end := span.StartLine-1, span.EndLine
	if start < 0 || end > len(p.raw) || start >= end {
		return ""
	}
	return strings.Join(p.raw[start:end], "\n")
}

// --- Program ---

func (p *parser) parseBlock() (*ast.Program, error) {
	head := p.lines[p.pos]
	if !strings.HasPrefix(head.Text, "def ") {
		return nil, p.errorAt(&head, diagnostics.ENoDef, fmt.Sprintf("expected 'def <name>', got %q", head.Text), "every program starts with 'def <name>'")
	}
	name := strings.TrimSpace(strings.TrimPrefix(head.Text, "def "))
	p.pos++

	prog := &ast.Program{
		Span: head.Span,
		Name: name,
	}
	last := head.Span

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if line.Text == "return" {
			last = line.Span
			p.pos++
			break
		}
		if p.multi && isDefLine(line) {
			break
		}
		instr, err := p.parseStatement(line)
		if err != nil {
			return nil, err
		}
		prog.Instructions = append(prog.Instructions, instr)
		last = line.Span
		p.pos++
	}

	prog.Span.EndLine = last.EndLine
	prog.Span.EndCol = last.EndCol
	return prog, nil
}

// --- Statements ---

func (p *parser) parseStatement(line lexer.Line) (ast.Instruction, error) {
	switch {
	case strings.HasPrefix(line.Text, "if "):
		return p.parseIf(line)
	case strings.HasPrefix(line.Text, "set "):
		return p.parseSet(line)
	}
	return nil, p.errorAt(&line, diagnostics.EUnknownCmd, fmt.Sprintf("unrecognized statement %q", line.Text), "statements start with 'if' or 'set'")
}

// parseIf handles "if <color> hits <target> <count> times". Color and target
// are recorded on the node but the condition only compares the hit count.
func (p *parser) parseIf(line lexer.Line) (ast.Instruction, error) {
	tokens := line.Fields[1:]
	if len(tokens) != 5 || tokens[1] != "hits" || tokens[4] != "times" {
		return nil, p.errorAt(&line, diagnostics.EIfSyntax, fmt.Sprintf("malformed if statement %q", line.Text), "expected 'if <color> hits <target> <count> times'")
	}
	count, err := strconv.ParseUint(tokens[3], 10, 32)
	if err != nil {
		return nil, p.errorAt(&line, diagnostics.ENumber, fmt.Sprintf("hit count %q is not an unsigned integer", tokens[3]), "")
	}
	return &ast.If{
		Span: line.Span,
		Cond: ast.Bin(ast.Prop(ast.PropHitCount), ast.OpGreaterEqual, ast.Num(float64(count))),
		Then: []ast.Instruction{&ast.Bounce{Span: line.Span}},
		Trigger: &ast.Trigger{
			Color:  tokens[0],
			Target: tokens[2],
			Count:  uint32(count),
		},
	}, nil
}

func (p *parser) parseSet(line lexer.Line) (ast.Instruction, error) {
	tokens := line.Fields[1:]
	switch tokens[0] {
	case "speed":
		return p.parseSetSpeed(line, tokens[1:])
	case "direction":
		if len(tokens) != 2 {
			return nil, p.errorAt(&line, diagnostics.ESetSyntax, fmt.Sprintf("malformed set direction %q", line.Text), "expected 'set direction <word>'")
		}
		dir, ok := ast.ParseDirection(tokens[1])
		if !ok {
			return nil, p.errorAt(&line, diagnostics.EDirection, fmt.Sprintf("unknown direction %q", tokens[1]), "use one of: "+directionList())
		}
		return &ast.SetDirection{Span: line.Span, Value: ast.Dir(dir)}, nil
	}
	return nil, p.errorAt(&line, diagnostics.ESetSyntax, fmt.Sprintf("unknown property %q in %q", tokens[0], line.Text), "only 'speed' and 'direction' can be set")
}

func (p *parser) parseSetSpeed(line lexer.Line, args []string) (ast.Instruction, error) {
	switch {
	case len(args) == 1 && args[0] != "relative":
		n, err := p.parseNumber(line, args[0])
		if err != nil {
			return nil, err
		}
		return &ast.SetSpeed{Span: line.Span, Value: ast.Num(n)}, nil
	case len(args) == 2 && args[0] == "relative":
		n, err := p.parseNumber(line, args[1])
		if err != nil {
			return nil, err
		}
		return &ast.SetSpeed{
			Span:  line.Span,
			Value: ast.Bin(ast.Prop(ast.PropSpeed), ast.OpAdd, ast.Num(n)),
		}, nil
	}
	return nil, p.errorAt(&line, diagnostics.ESetSyntax, fmt.Sprintf("malformed set speed %q", line.Text), "expected 'set speed <number>' or 'set speed relative <+/-number>'")
}

func (p *parser) parseNumber(line lexer.Line, tok string) (float64, error) {
	n, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, p.errorAt(&line, diagnostics.ENumber, fmt.Sprintf("%q is not a number", tok), "")
	}
	return n, nil
}

func directionList() string {
	words := make([]string, 0, 8)
	for _, d := range ast.Directions() {
		words = append(words, d.String())
	}
	return strings.Join(words, ", ")
}
