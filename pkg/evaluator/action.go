package evaluator

import (
	"fmt"
	"strconv"

	"github.com/bouncegrid/bounce/pkg/ast"
)

// Action is an effect the engine asks the caller to apply. The engine never
// applies actions itself; it returns them in order.
type Action interface {
	action() // sealed marker
	Kind() string
	String() string
}

// ActionSetSpeed sets the colliding ball's speed.
type ActionSetSpeed struct {
	Speed float64
}

// ActionSetDirection sets the colliding ball's direction.
type ActionSetDirection struct {
	Direction ast.Direction
}

// ActionBounce reverses the colliding ball.
type ActionBounce struct{}

// ActionStop halts the colliding ball.
type ActionStop struct{}

// ActionPlaySample plays the sample at Index in the sample library.
type ActionPlaySample struct {
	Index int
}

// ActionSpawnBall creates a new ball.
type ActionSpawnBall struct {
	X         float64
	Y         float64
	Speed     float64
	Direction ast.Direction
}

// ActionPrint carries diagnostic text.
type ActionPrint struct {
	Text string
}

// ActionExecuteProgram asks the caller to run Program through the engine.
type ActionExecuteProgram struct {
	Program *ast.Program
}

// ActionNone does nothing.
type ActionNone struct{}

func (ActionSetSpeed) action()       {}
func (ActionSetDirection) action()   {}
func (ActionBounce) action()         {}
func (ActionStop) action()           {}
func (ActionPlaySample) action()     {}
func (ActionSpawnBall) action()      {}
func (ActionPrint) action()          {}
func (ActionExecuteProgram) action() {}
func (ActionNone) action()           {}

func (ActionSetSpeed) Kind() string       { return "set_speed" }
func (ActionSetDirection) Kind() string   { return "set_direction" }
func (ActionBounce) Kind() string         { return "bounce" }
func (ActionStop) Kind() string           { return "stop" }
func (ActionPlaySample) Kind() string     { return "play_sample" }
func (ActionSpawnBall) Kind() string      { return "spawn_ball" }
func (ActionPrint) Kind() string          { return "print" }
func (ActionExecuteProgram) Kind() string { return "execute_program" }
func (ActionNone) Kind() string           { return "none" }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (a ActionSetSpeed) String() string     { return "set_speed " + num(a.Speed) }
func (a ActionSetDirection) String() string { return "set_direction " + a.Direction.String() }
func (ActionBounce) String() string         { return "bounce" }
func (ActionStop) String() string           { return "stop" }
func (a ActionPlaySample) String() string   { return "play_sample " + strconv.Itoa(a.Index) }
func (a ActionSpawnBall) String() string {
	return fmt.Sprintf("spawn_ball %s %s %s %s", num(a.X), num(a.Y), num(a.Speed), a.Direction)
}
func (a ActionPrint) String() string { return "print " + strconv.Quote(a.Text) }
func (a ActionExecuteProgram) String() string {
	if a.Program == nil {
		return "execute_program"
	}
	return "execute_program " + a.Program.Name
}
func (ActionNone) String() string { return "none" }

// ActionStrings renders each action with its String method.
func ActionStrings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.String()
	}
	return out
}
