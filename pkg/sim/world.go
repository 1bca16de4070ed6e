// Package sim is a minimal driver for the bounce engine. It keeps the
// balls, reports collisions to the executor and applies the returned
// actions in order.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/audio"
	"github.com/bouncegrid/bounce/pkg/evaluator"
	"github.com/bouncegrid/bounce/pkg/runtime"
	"github.com/bouncegrid/bounce/pkg/samples"
	"github.com/bouncegrid/bounce/pkg/state"
)

// DefaultMaxDepth bounds nested ExecuteProgram dispatch.
const DefaultMaxDepth = 8

// Ball is a ball on the grid.
type Ball struct {
	ID        state.BallID
	X         float64
	Y         float64
	Speed     float64
	Direction ast.Direction
	Stopped   bool
}

// Snapshot returns the view of b the executor reads.
func (b *Ball) Snapshot() state.Ball {
	return state.Ball{ID: b.ID, X: b.X, Y: b.Y, Speed: b.Speed, Direction: b.Direction}
}

// Cell returns the grid square b is on.
func (b *Ball) Cell() state.Position {
	return state.Position{X: int(math.Floor(b.X)), Y: int(math.Floor(b.Y))}
}

// World owns the balls and applies actions to them.
type World struct {
	exec     *runtime.Executor
	samples  *samples.Registry
	player   audio.Player
	log      zerolog.Logger
	maxDepth int
	channel  int
	pitch    float64
	volume   float64
	newID    func() state.BallID
	printer  func(ball state.BallID, text string)

	mu    sync.Mutex
	balls map[state.BallID]*Ball
	order []state.BallID
}

// Option is a functional option for configuring a World.
type Option func(*World)

// WithSamples sets the sample library PlaySample indexes into.
func WithSamples(r *samples.Registry) Option {
	return func(w *World) {
		w.samples = r
	}
}

// WithPlayer sets the audio player.
func WithPlayer(p audio.Player) Option {
	return func(w *World) {
		w.player = p
	}
}

// WithAudio sets the channel, pitch and volume samples are played with.
func WithAudio(channel int, pitch, volume float64) Option {
	return func(w *World) {
		w.channel = channel
		w.pitch = pitch
		w.volume = volume
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *World) {
		w.log = l
	}
}

// WithMaxDepth bounds nested ExecuteProgram dispatch.
func WithMaxDepth(n int) Option {
	return func(w *World) {
		w.maxDepth = n
	}
}

// WithIDs sets the generator of ids for spawned balls.
func WithIDs(fn func() state.BallID) Option {
	return func(w *World) {
		w.newID = fn
	}
}

// WithPrinter receives the text of Print actions. By default it is logged.
func WithPrinter(fn func(ball state.BallID, text string)) Option {
	return func(w *World) {
		w.printer = fn
	}
}

// NewWorld creates an empty world driving exec.
func NewWorld(exec *runtime.Executor, opts ...Option) *World {
	w := &World{
		exec:     exec,
		samples:  samples.NewRegistry(),
		player:   audio.Discard{},
		log:      zerolog.Nop(),
		maxDepth: DefaultMaxDepth,
		pitch:    1,
		volume:   1,
		newID:    func() state.BallID { return state.BallID(uuid.New().String()) },
		balls:    make(map[state.BallID]*Ball),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.printer == nil {
		w.printer = func(ball state.BallID, text string) {
			w.log.Info().Str("ball", string(ball)).Str("text", text).Msg("print")
		}
	}
	return w
}

// Executor returns the executor the world reports collisions to.
func (w *World) Executor() *runtime.Executor { return w.exec }

// AddBall places a ball. An empty id gets a fresh one.
func (w *World) AddBall(id state.BallID, x, y, speed float64, dir ast.Direction) *Ball {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addBallLocked(id, x, y, speed, dir)
}

func (w *World) addBallLocked(id state.BallID, x, y, speed float64, dir ast.Direction) *Ball {
	if id == "" {
		id = w.newID()
	}
	b, ok := w.balls[id]
	if !ok {
		b = &Ball{ID: id}
		w.balls[id] = b
		w.order = append(w.order, id)
	}
	b.X, b.Y, b.Speed, b.Direction, b.Stopped = x, y, speed, dir, false
	return b
}

// Ball returns the ball with id, or nil.
func (w *World) Ball(id state.BallID) *Ball {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balls[id]
}

// Balls returns copies of all balls in creation order.
func (w *World) Balls() []Ball {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Ball, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.balls[id])
	}
	return out
}

// Collide reports that ball id hit the square at pos, applies the actions
// and returns them. An unknown id is added at the square's origin.
func (w *World) Collide(id state.BallID, pos state.Position) ([]evaluator.Action, error) {
	w.mu.Lock()
	b, ok := w.balls[id]
	if !ok {
		b = w.addBallLocked(id, float64(pos.X), float64(pos.Y), 0, ast.Right)
	}
	snap := b.Snapshot()
	w.mu.Unlock()

	actions := w.exec.ExecuteOnCollision(snap, pos)
	return actions, w.Apply(id, pos, actions)
}

// Apply applies actions to ball id in order. ExecuteProgram runs the
// nested program with a fresh snapshot and applies its actions in place.
// Audio failures do not stop the remaining actions; they are returned
// joined.
func (w *World) Apply(id state.BallID, pos state.Position, actions []evaluator.Action) error {
	return w.apply(id, pos, actions, 0)
}

func (w *World) apply(id state.BallID, pos state.Position, actions []evaluator.Action, depth int) error {
	var errs []error
	for _, a := range actions {
		if err := w.applyOne(id, pos, a, depth); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) applyOne(id state.BallID, pos state.Position, a evaluator.Action, depth int) error {
	switch act := a.(type) {
	case evaluator.ActionPlaySample:
		return w.play(act.Index)
	case evaluator.ActionPrint:
		w.printer(id, act.Text)
		return nil
	case evaluator.ActionExecuteProgram:
		return w.executeNested(id, pos, act.Program, depth)
	case evaluator.ActionSpawnBall:
		w.mu.Lock()
		b := w.addBallLocked("", act.X, act.Y, act.Speed, act.Direction)
		w.mu.Unlock()
		w.log.Debug().Str("ball", string(b.ID)).Float64("x", act.X).Float64("y", act.Y).Msg("spawned")
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.balls[id]
	if !ok {
		return nil
	}
	switch act := a.(type) {
	case evaluator.ActionSetSpeed:
		b.Speed = act.Speed
	case evaluator.ActionSetDirection:
		b.Direction = act.Direction
	case evaluator.ActionBounce:
		b.Direction = b.Direction.Reverse()
	case evaluator.ActionStop:
		b.Stopped = true
	}
	return nil
}

func (w *World) play(index int) error {
	path, ok := w.samples.Path(index)
	if !ok {
		w.log.Debug().Int("index", index).Msg("no sample at index")
		return nil
	}
	if err := w.player.Play(w.channel, path, w.pitch, w.volume); err != nil {
		return fmt.Errorf("play sample %d: %w", index, err)
	}
	return nil
}

func (w *World) executeNested(id state.BallID, pos state.Position, program *ast.Program, depth int) error {
	if program == nil {
		return nil
	}
	if depth >= w.maxDepth {
		w.log.Warn().Str("program", program.Name).Int("depth", depth).Msg("nested program depth exceeded, skipped")
		return nil
	}
	w.mu.Lock()
	b, ok := w.balls[id]
	var snap state.Ball
	if ok {
		snap = b.Snapshot()
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}

	actions := w.exec.RunNested(snap, pos, program)
	return w.apply(id, pos, actions, depth+1)
}

// Step moves every running ball one grid step per unit of speed.
func (w *World) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range w.order {
		b := w.balls[id]
		if b.Stopped {
			continue
		}
		dx, dy := b.Direction.Delta()
		b.X += float64(dx) * b.Speed
		b.Y += float64(dy) * b.Speed
	}
}
