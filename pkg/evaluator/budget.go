package evaluator

// DefaultMaxLoopIterations caps the loop iterations of one execution. It is
// far above what a square's program needs and only stops runaway counts.
const DefaultMaxLoopIterations = 1 << 22

// Budget holds the resource limits for one execution.
type Budget struct {
	MaxLoopIterations int64
}

// BudgetTracker tracks resource consumption during one execution.
type BudgetTracker struct {
	Iterations int64
	Exhausted  bool
}

// take reserves one loop iteration, reporting false once the budget is spent.
func (t *BudgetTracker) take(b Budget) bool {
	if b.MaxLoopIterations > 0 && t.Iterations >= b.MaxLoopIterations {
		t.Exhausted = true
		return false
	}
	t.Iterations++
	return true
}
