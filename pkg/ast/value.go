package ast

import (
	"math"
	"strconv"
)

// Epsilon is the tolerance used when comparing numbers for equality.
// It matches the machine epsilon of a 32-bit float.
const Epsilon = 1.1920929e-07

// Value is the interface for all runtime values of the scripting language.
// The set of implementations is closed: NumberValue, DirectionValue,
// BoolValue and StringValue.
type Value interface {
	value() // sealed marker
	String() string
}

// NumberValue represents a numeric value.
type NumberValue struct {
	Value float64
}

func (NumberValue) value() {}

func (v NumberValue) String() string {
	return strconv.FormatFloat(v.Value, 'f', -1, 64)
}

// DirectionValue represents a compass direction.
type DirectionValue struct {
	Value Direction
}

func (DirectionValue) value() {}

func (v DirectionValue) String() string { return v.Value.String() }

// BoolValue represents a boolean value.
type BoolValue struct {
	Value bool
}

func (BoolValue) value() {}

func (v BoolValue) String() string { return strconv.FormatBool(v.Value) }

// StringValue represents a string value.
type StringValue struct {
	Value string
}

func (StringValue) value() {}

func (v StringValue) String() string { return v.Value }

// NewNumber creates a numeric value.
func NewNumber(n float64) Value { return NumberValue{Value: n} }

// NewDirection creates a direction value.
func NewDirection(d Direction) Value { return DirectionValue{Value: d} }

// NewBool creates a boolean value.
func NewBool(b bool) Value { return BoolValue{Value: b} }

// NewString creates a string value.
func NewString(s string) Value { return StringValue{Value: s} }

// NumbersEqual reports whether a and b are within Epsilon of each other.
func NumbersEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Equal compares two values structurally. Numbers compare with Epsilon
// tolerance; values of different kinds are never equal.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case NumberValue:
		y, ok := b.(NumberValue)
		return ok && NumbersEqual(x.Value, y.Value)
	case DirectionValue:
		y, ok := b.(DirectionValue)
		return ok && x.Value == y.Value
	case BoolValue:
		y, ok := b.(BoolValue)
		return ok && x.Value == y.Value
	case StringValue:
		y, ok := b.(StringValue)
		return ok && x.Value == y.Value
	}
	return false
}

// TypeName returns a short human-readable name for the kind of v.
func TypeName(v Value) string {
	switch v.(type) {
	case NumberValue:
		return "number"
	case DirectionValue:
		return "direction"
	case BoolValue:
		return "boolean"
	case StringValue:
		return "string"
	case nil:
		return "nil"
	}
	return "unknown"
}
