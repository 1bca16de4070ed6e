// Package help holds the reference text shown by `bounce help`.
package help

import (
	"fmt"
	"sort"
	"strings"
)

// Version of the scripting language described here.
const Version = "v0.1"

// QUICKREF is printed by `bounce help` with no topic.
var QUICKREF = `bounce ` + Version + ` - collision scripting for the bounce grid

A square runs its program every time a ball hits it. The program turns the
hit into actions: bounce, change speed or direction, play a sample.

  def wall
  if red hits wall 3 times
  set speed relative +0.5
  set direction up-left
  return

Topics (bounce help <topic>):
  syntax       program grammar, one statement per line
  values       numbers, directions, booleans and strings
  actions      what a program can ask the driver to do
  steps        legacy step tables used when a square has no program
  diagnostics  error and warning codes
  scenarios    scenario files replayed by 'bounce run'
  examples     complete programs
`

// TopicList is the display order of the help topics.
var TopicList = []string{"syntax", "values", "actions", "steps", "diagnostics", "scenarios", "examples"}

// Topics maps a topic name to its text.
var Topics = map[string]string{
	"syntax": `SYNTAX

  program ::= "def" NAME NEWLINE statement* ["return"]
  statement ::= "if" COLOR "hits" TARGET COUNT "times"
              | "set" "speed" NUMBER
              | "set" "speed" "relative" SIGNED_NUMBER
              | "set" "direction" DIRECTION

Lines are trimmed and blank lines are skipped. There are no comments: any
other line must be a statement. The first line must be 'def <name>'. A line that is exactly 'return' ends
the program and anything after it is ignored.

'if C hits T N times' bounces the ball once it has hit N or more times.
C and T are recorded but do not restrict which ball or square matches.

A file may hold several programs; each starts at its own def line.
`,
	"values": `VALUES

  number     64-bit float; == and != compare within 1.1920929e-07
  direction  up down left right up-left up-right down-left down-right
  boolean    true false
  string     text, used by print

Evaluation never fails:
  - an unset variable reads as 0
  - x / 0 and x % 0 are 0
  - an operator on the wrong operand types yields false
  - an instruction whose operands have the wrong type is skipped
`,
	"actions": `ACTIONS

  set_speed N          set the ball's speed
  set_direction D      point the ball in direction D
  bounce               reverse the ball's direction
  stop                 halt the ball
  play_sample I        play sample I of the sample library
  spawn_ball X Y S D   create a new ball
  print "TEXT"         diagnostic output
  execute_program P    run program P for the same hit
  none                 nothing

Actions are applied by the driver in the order the program emitted them.
`,
	"steps": `STEPS

A square without a program may carry a step table. Every step whose
trigger divides the square's hit count fires, in table order. Trigger 0
fires on every hit.

  bounce | stop | none
  speed_multiply F       set_speed ball.speed * F
  change_direction D     set_direction D
  play_sample I
  execute_program I      run entry I of the program table
`,
	"diagnostics": `DIAGNOSTICS

Errors (parsing stops):
  E_NO_DEF              missing 'def <name>' line
  E_IF_SYNTAX           malformed if statement
  E_SET_SYNTAX          malformed set statement
  E_NUMBER              not a number
  E_DIRECTION           unknown direction word
  E_UNKNOWN_STATEMENT   line is neither if nor set

Warnings (the program still runs):
  W_TRIGGER_IGNORED     color and target are not part of the condition
  W_TYPE_DROP           operand of the wrong type, instruction skipped
  W_ZERO_DIV            division or modulo by zero
  W_UNSET_VAR           variable read before it is set
  W_LOOP_COUNT          loop body never runs
  W_COND_TYPE           condition is not a boolean
`,
	"scenarios": `SCENARIOS

A scenario is a TOML file:

  Name = "demo"
  Samples = ["kick.wav"]

  [[Square]]
  X = 1
  Y = 0
  Source = """
  def wall
  set speed 2
  """

  [[Ball]]
  ID = "red"
  Speed = 1.0
  Direction = "right"

  [[Collision]]
  Ball = "red"
  X = 1
  Y = 0

  [[Expect]]
  Index = 0
  Actions = ["set_speed 2"]

Write float fields with a decimal point.
`,
	"examples": `EXAMPLES

Speed up a ball on every hit:

  def faster
  set speed relative +0.25

Turn after the fourth hit:

  def corner
  if blue hits corner 4 times
  set direction down-left
  return
`,
}

// MatchTopic resolves an exact topic name or a unique prefix.
func MatchTopic(query string) (string, string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if content, ok := Topics[q]; ok {
		return q, content, nil
	}
	var matches []string
	for _, name := range TopicList {
		if q != "" && strings.HasPrefix(name, q) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], Topics[matches[0]], nil
	case 0:
		return "", "", fmt.Errorf("unknown help topic %q", query)
	}
	sort.Strings(matches)
	return "", "", fmt.Errorf("ambiguous help topic %q: %s", query, strings.Join(matches, ", "))
}
