package ast

// Instruction is the interface for all executable statements.
type Instruction interface {
	Node
	instrNode() // sealed marker
	NodeSpan() Span
}

// SetSpeed asks the driver to change the ball's speed.
type SetSpeed struct {
	Span  Span
	Value Expression
}

func (n *SetSpeed) Kind() string   { return "SetSpeed" }
func (n *SetSpeed) NodeSpan() Span { return n.Span }
func (n *SetSpeed) instrNode()     {}

// SetDirection asks the driver to change the ball's direction.
type SetDirection struct {
	Span  Span
	Value Expression
}

func (n *SetDirection) Kind() string   { return "SetDirection" }
func (n *SetDirection) NodeSpan() Span { return n.Span }
func (n *SetDirection) instrNode()     {}

// Bounce reverses the ball.
type Bounce struct {
	Span Span
}

func (n *Bounce) Kind() string   { return "Bounce" }
func (n *Bounce) NodeSpan() Span { return n.Span }
func (n *Bounce) instrNode()     {}

// Stop halts the ball.
type Stop struct {
	Span Span
}

func (n *Stop) Kind() string   { return "Stop" }
func (n *Stop) NodeSpan() Span { return n.Span }
func (n *Stop) instrNode()     {}

// SetVariable writes Name in the context's variables.
type SetVariable struct {
	Span  Span
	Name  string
	Value Expression
}

func (n *SetVariable) Kind() string   { return "SetVariable" }
func (n *SetVariable) NodeSpan() Span { return n.Span }
func (n *SetVariable) instrNode()     {}

// Trigger records the color and target words of a parsed
// "if <color> hits <target> N times" line. Evaluation ignores it.
type Trigger struct {
	Color  string
	Target string
	Count  uint32
}

// If runs Then when Cond evaluates to true, otherwise Else (which may be nil).
type If struct {
	Span    Span
	Cond    Expression
	Then    []Instruction
	Else    []Instruction
	Trigger *Trigger // set only for parsed hit triggers
}

func (n *If) Kind() string   { return "If" }
func (n *If) NodeSpan() Span { return n.Span }
func (n *If) instrNode()     {}

// Loop runs Body Count times. Count is evaluated once. The engine stops the
// loop early when the execution's iteration budget runs out, so a count
// above the budget (4194304 by default) does not run in full.
type Loop struct {
	Span  Span
	Count Expression
	Body  []Instruction
}

func (n *Loop) Kind() string   { return "Loop" }
func (n *Loop) NodeSpan() Span { return n.Span }
func (n *Loop) instrNode()     {}

// PlaySample asks the driver to play the sample at Index.
type PlaySample struct {
	Span  Span
	Index Expression
}

func (n *PlaySample) Kind() string   { return "PlaySample" }
func (n *PlaySample) NodeSpan() Span { return n.Span }
func (n *PlaySample) instrNode()     {}

// SpawnBall asks the driver to create a ball.
type SpawnBall struct {
	Span      Span
	X         Expression
	Y         Expression
	Speed     Expression
	Direction Expression
}

func (n *SpawnBall) Kind() string   { return "SpawnBall" }
func (n *SpawnBall) NodeSpan() Span { return n.Span }
func (n *SpawnBall) instrNode()     {}

// Print emits the value as a diagnostic string.
type Print struct {
	Span  Span
	Value Expression
}

func (n *Print) Kind() string   { return "Print" }
func (n *Print) NodeSpan() Span { return n.Span }
func (n *Print) instrNode()     {}
