package ast

// Direction is one of the eight compass directions a ball can travel in.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
	UpLeft
	UpRight
	DownLeft
	DownRight
)

var directionWords = [...]string{
	Up:        "up",
	Down:      "down",
	Left:      "left",
	Right:     "right",
	UpLeft:    "up-left",
	UpRight:   "up-right",
	DownLeft:  "down-left",
	DownRight: "down-right",
}

// Directions returns all eight directions in declaration order.
func Directions() []Direction {
	return []Direction{Up, Down, Left, Right, UpLeft, UpRight, DownLeft, DownRight}
}

// String returns the lowercase word used for d in program source.
func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionWords) {
		return "unknown"
	}
	return directionWords[d]
}

// ParseDirection maps a source word to a Direction. Matching is
// case-sensitive: only the lowercase forms are accepted.
func ParseDirection(word string) (Direction, bool) {
	for i, w := range directionWords {
		if w == word {
			return Direction(i), true
		}
	}
	return 0, false
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	case UpLeft:
		return DownRight
	case UpRight:
		return DownLeft
	case DownLeft:
		return UpRight
	case DownRight:
		return UpLeft
	}
	return d
}

// Delta returns the grid step for d. Y grows downwards.
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	case UpLeft:
		return -1, -1
	case UpRight:
		return 1, -1
	case DownLeft:
		return -1, 1
	case DownRight:
		return 1, 1
	}
	return 0, 0
}
