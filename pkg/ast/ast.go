// Package ast defines the bounce scripting language data model: values,
// expressions, instructions and programs.
package ast

// Span represents a source location range.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// Node is the interface implemented by all expression and instruction nodes.
type Node interface {
	Kind() string
}

// Program is a named, parsed sequence of instructions.
// The instruction list must not be mutated after parsing; build a new
// Program instead.
type Program struct {
	Span         Span
	Name         string
	Instructions []Instruction
	// Source is the raw text the program was parsed from, kept verbatim so
	// an editor can show it again. Empty for programs built in code.
	Source string
}

func (p *Program) Kind() string { return "Program" }

// Inspect walks instrs depth-first, descending into If and Loop bodies.
// If fn returns false the children of that instruction are skipped.
func Inspect(instrs []Instruction, fn func(Instruction) bool) {
	for _, in := range instrs {
		if !fn(in) {
			continue
		}
		switch n := in.(type) {
		case *If:
			Inspect(n.Then, fn)
			Inspect(n.Else, fn)
		case *Loop:
			Inspect(n.Body, fn)
		}
	}
}
