package ast

// Operator is a binary operator.
type Operator string

const (
	OpAdd          Operator = "+"
	OpSub          Operator = "-"
	OpMul          Operator = "*"
	OpDiv          Operator = "/"
	OpMod          Operator = "%"
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpAnd          Operator = "and"
	OpOr           Operator = "or"
)

// IsArithmetic reports whether o produces a number from two numbers.
func (o Operator) IsArithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return true
	}
	return false
}

// IsComparison reports whether o produces a boolean from two numbers.
func (o Operator) IsComparison() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual:
		return true
	}
	return false
}

// Property names a field of the colliding ball that an expression can read.
type Property int

const (
	PropSpeed Property = iota
	PropDirection
	PropX
	PropY
	PropHitCount
)

func (p Property) String() string {
	switch p {
	case PropSpeed:
		return "speed"
	case PropDirection:
		return "direction"
	case PropX:
		return "x"
	case PropY:
		return "y"
	case PropHitCount:
		return "hit_count"
	}
	return "unknown"
}

// Expression is the interface for all side-effect-free value nodes.
type Expression interface {
	Node
	exprNode() // sealed marker
}

// Literal is a constant value.
type Literal struct {
	Value Value
}

func (n *Literal) Kind() string { return "Literal" }
func (n *Literal) exprNode()    {}

// Variable reads a name from the execution context's variables.
// Unknown names evaluate to 0.
type Variable struct {
	Name string
}

func (n *Variable) Kind() string { return "Variable" }
func (n *Variable) exprNode()    {}

// BinaryExpr applies Op to Left and Right.
type BinaryExpr struct {
	Left  Expression
	Op    Operator
	Right Expression
}

func (n *BinaryExpr) Kind() string { return "BinaryExpr" }
func (n *BinaryExpr) exprNode()    {}

// BallProperty reads a property of the colliding ball from the context.
type BallProperty struct {
	Property Property
}

func (n *BallProperty) Kind() string { return "BallProperty" }
func (n *BallProperty) exprNode()    {}

// Random draws a uniform number in [Min, Max) each time it is evaluated.
type Random struct {
	Min float64
	Max float64
}

func (n *Random) Kind() string { return "Random" }
func (n *Random) exprNode()    {}

// --- constructors ---

// Num returns a numeric literal.
func Num(n float64) Expression { return &Literal{Value: NewNumber(n)} }

// Dir returns a direction literal.
func Dir(d Direction) Expression { return &Literal{Value: NewDirection(d)} }

// Bool returns a boolean literal.
func Bool(b bool) Expression { return &Literal{Value: NewBool(b)} }

// Str returns a string literal.
func Str(s string) Expression { return &Literal{Value: NewString(s)} }

// Var returns a variable reference.
func Var(name string) Expression { return &Variable{Name: name} }

// Prop returns a ball property read.
func Prop(p Property) Expression { return &BallProperty{Property: p} }

// Bin returns a binary expression.
func Bin(left Expression, op Operator, right Expression) Expression {
	return &BinaryExpr{Left: left, Op: op, Right: right}
}

// Rand returns a random draw in [min, max).
func Rand(min, max float64) Expression { return &Random{Min: min, Max: max} }
