// Package state holds the programmer state that outlives a single
// execution: hit counters per ball and per square, and the variable store.
package state

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bouncegrid/bounce/pkg/ast"
	"github.com/bouncegrid/bounce/pkg/evaluator"
)

// BallID identifies a ball across collisions.
type BallID string

// Position is a square's cell on the grid.
type Position struct {
	X int
	Y int
}

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Ball is the snapshot of a colliding ball handed in by the driver.
type Ball struct {
	ID        BallID
	X         float64
	Y         float64
	Speed     float64
	Direction ast.Direction
}

// Store is the long-lived state of one session. It is safe for concurrent
// use; serializing executions for one entity is the caller's job.
type Store struct {
	mu         sync.RWMutex
	variables  map[string]ast.Value
	ballHits   map[BallID]uint32
	squareHits map[Position]uint32
}

// New returns an empty store.
func New() *Store {
	return &Store{
		variables:  make(map[string]ast.Value),
		ballHits:   make(map[BallID]uint32),
		squareHits: make(map[Position]uint32),
	}
}

// IncrementBallHits adds one hit for id and returns the new count.
func (s *Store) IncrementBallHits(id BallID) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ballHits[id]++
	return s.ballHits[id]
}

// IncrementSquareHits adds one hit for pos and returns the new count.
func (s *Store) IncrementSquareHits(pos Position) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.squareHits[pos]++
	return s.squareHits[pos]
}

// BallHits returns the hit count of id; zero when it never hit.
func (s *Store) BallHits(id BallID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ballHits[id]
}

// SquareHits returns the hit count of pos; zero when it was never hit.
func (s *Store) SquareHits(pos Position) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.squareHits[pos]
}

// Snapshot builds an execution context for ball colliding with the square
// at pos. Counters and variables are read, never changed; the context gets
// its own copy of the variable map.
func (s *Store) Snapshot(ball Ball, pos Position) *evaluator.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vars := make(map[string]ast.Value, len(s.variables))
	for k, v := range s.variables {
		vars[k] = v
	}
	return &evaluator.Context{
		Variables:      vars,
		BallHitCount:   s.ballHits[ball.ID],
		SquareHitCount: s.squareHits[pos],
		BallX:          ball.X,
		BallY:          ball.Y,
		BallSpeed:      ball.Speed,
		BallDirection:  ball.Direction,
	}
}

// Commit writes the context's variables back into the store.
func (s *Store) Commit(ctx *evaluator.Context) {
	if ctx == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range ctx.Variables {
		s.variables[k] = v
	}
}

// ResetHits zeroes the hit counter of the square at pos.
func (s *Store) ResetHits(pos Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.squareHits, pos)
}

// ResetBallHits zeroes the hit counter of id.
func (s *Store) ResetBallHits(id BallID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ballHits, id)
}

// Reset clears every counter and variable.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables = make(map[string]ast.Value)
	s.ballHits = make(map[BallID]uint32)
	s.squareHits = make(map[Position]uint32)
}

// Variable returns the stored value of name.
func (s *Store) Variable(name string) (ast.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.variables[name]
	return v, ok
}

// SetVariable stores a value under name.
func (s *Store) SetVariable(name string, v ast.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variables[name] = v
}

// Variables returns the variable names in sorted order.
func (s *Store) Variables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.variables))
	for k := range s.variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SquareCount is one entry of Squares.
type SquareCount struct {
	Position Position
	Hits     uint32
}

// Squares lists the hit counters of every square that was hit, ordered by
// row then column.
func (s *Store) Squares() []SquareCount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SquareCount, 0, len(s.squareHits))
	for p, n := range s.squareHits {
		out = append(out, SquareCount{Position: p, Hits: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.Y != out[j].Position.Y {
			return out[i].Position.Y < out[j].Position.Y
		}
		return out[i].Position.X < out[j].Position.X
	})
	return out
}
