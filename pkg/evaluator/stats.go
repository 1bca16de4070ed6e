package evaluator

import (
	"sort"

	mapset "github.com/deckarep/golang-set"
)

// Stats counts the fail-soft paths taken by an engine. None of these change
// what a program does; they exist so a host can see them.
type Stats struct {
	Executions          int
	UnresolvedVariables int
	TypeMismatches      int
	DroppedInstructions int
	ZeroDivisions       int
	LoopBudgetHits      int
	// UnresolvedNames lists every variable name that evaluated to the
	// default because it was unset, sorted.
	UnresolvedNames []string
}

func (s *Stats) add(o *Stats) {
	s.Executions += o.Executions
	s.UnresolvedVariables += o.UnresolvedVariables
	s.TypeMismatches += o.TypeMismatches
	s.DroppedInstructions += o.DroppedInstructions
	s.ZeroDivisions += o.ZeroDivisions
	s.LoopBudgetHits += o.LoopBudgetHits
}

func setToSortedStrings(set mapset.Set) []string {
	items := set.ToSlice()
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
