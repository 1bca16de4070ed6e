// Package lexer splits bounce program source into significant lines.
//
// The language is line oriented: every statement occupies exactly one line,
// so the lexer's job is to trim, drop blank lines, and split the remaining
// lines into whitespace-separated fields while keeping their source
// position. A line starting with # is not special to the lexer; the parser
// rejects it like any other unknown statement.
package lexer

import (
	"strings"

	"github.com/bouncegrid/bounce/pkg/ast"
)

// CommentPrefix starts a note line. Programs never contain one; the REPL
// skips them at its prompt and library annotations use them.
const CommentPrefix = "#"

// Line is one significant source line.
type Line struct {
	Span   ast.Span
	Text   string   // trimmed line text
	Fields []string // whitespace-separated fields of Text
}

// First returns the first field, or "" for an empty line.
func (l Line) First() string {
	if len(l.Fields) == 0 {
		return ""
	}
	return l.Fields[0]
}

// IsComment reports whether the trimmed text is a note line.
func IsComment(text string) bool {
	return strings.HasPrefix(text, CommentPrefix)
}

// Tokenize returns the significant lines of source in order.
// Blank lines are dropped. Line numbers are 1-based.
func Tokenize(source, filename string) []Line {
	var lines []Line
	for i, raw := range strings.Split(source, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		col := strings.Index(raw, text) + 1
		lines = append(lines, Line{
			Span: ast.Span{
				File:      filename,
				StartLine: i + 1,
				StartCol:  col,
				EndLine:   i + 1,
				EndCol:    col + len(text),
			},
			Text:   text,
			Fields: strings.Fields(text),
		})
	}
	return lines
}
