// Package diagnostics defines bounce diagnostic types for parse and lint results.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bouncegrid/bounce/pkg/ast"
)

// Diagnostic code constants.
const (
	EParse      = "E_PARSE"
	ENoDef      = "E_NO_DEF"
	EIfSyntax   = "E_IF_SYNTAX"
	ESetSyntax  = "E_SET_SYNTAX"
	ENumber     = "E_NUMBER"
	EDirection  = "E_DIRECTION"
	EUnknownCmd = "E_UNKNOWN_STATEMENT"
	EIO         = "E_IO"
	EConfig     = "E_CONFIG"

	WTriggerIgnored = "W_TRIGGER_IGNORED"
	WTypeDrop       = "W_TYPE_DROP"
	WZeroDiv        = "W_ZERO_DIV"
	WUnsetVar       = "W_UNSET_VAR"
	WLoopCount      = "W_LOOP_COUNT"
	WCondType       = "W_COND_TYPE"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Diagnostic represents a parse, validation, or runtime diagnostic.
type Diagnostic struct {
	Code     string    `json:"code"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Span     *ast.Span `json:"span,omitempty"`
	Hint     string    `json:"hint,omitempty"`
}

// MakeDiag creates a new error Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Message:  message,
		Span:     span,
		Hint:     hint,
	}
}

// MakeWarning creates a new warning Diagnostic.
func MakeWarning(code, message string, span *ast.Span, hint string) Diagnostic {
	d := MakeDiag(code, message, span, hint)
	d.Severity = SeverityWarning
	return d
}

// IsError reports whether d blocks execution.
func (d Diagnostic) IsError() bool {
	return d.Severity != SeverityWarning
}

// HasErrors reports whether any diagnostic in diags is an error.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.IsError() {
			return true
		}
	}
	return false
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	sev := d.Severity
	if sev == "" {
		sev = SeverityError
	}
	out := fmt.Sprintf("%s[%s]: %s\n  --> %s", sev, d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		if diags == nil {
			diags = []Diagnostic{}
		}
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}
