package search

import (
	"fmt"

	"github.com/har-viewer/backend/internal/models"
)

// Direction selects which way the cursor moves.
type Direction int

const (
	Next Direction = iota
	Prev
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// ParseDirection accepts "next" or "prev".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "next":
		return Next, nil
	case "prev":
		return Prev, nil
	}
	return Next, fmt.Errorf("unknown direction %q", s)
}

// Navigate moves cursor one step through n matches, wrapping at both ends.
// With no matches the cursor is returned unchanged. Any negative cursor counts as
// no selection.
func Navigate(n, cursor int, dir Direction) int {
	if n <= 0 {
		return cursor
	}
	if dir == Prev {
		if cursor < 0 {
			cursor = 0
		}
		return (cursor - 1 + n) % n
	}
	if cursor < 0 {
		cursor = -1
	}
	return (cursor + 1) % n
}

// Navigator is a cursor over a match sequence. The zero value has no matches and
// cursor -1.
type Navigator struct {
	matches []models.MatchLocation
	cursor  int
	init    bool
}

// Reset replaces the sequence. The cursor lands on 0, or -1 when empty.
func (n *Navigator) Reset(matches []models.MatchLocation) {
	n.matches = matches
	n.init = true
	n.cursor = -1
	if len(matches) > 0 {
		n.cursor = 0
	}
}

// Move steps the cursor in dir and returns the new position.
func (n *Navigator) Move(dir Direction) int {
	n.cursor = Navigate(len(n.matches), n.Cursor(), dir)
	n.init = true
	return n.cursor
}

// Cursor returns the current position, -1 when nothing is selected.
func (n *Navigator) Cursor() int {
	if !n.init {
		return -1
	}
	return n.cursor
}

func (n *Navigator) Len() int { return len(n.matches) }

// Matches returns the sequence the navigator walks.
func (n *Navigator) Matches() []models.MatchLocation { return n.matches }

// Current returns the selected match, if any.
func (n *Navigator) Current() (models.MatchLocation, bool) {
	c := n.Cursor()
	if c < 0 || c >= len(n.matches) {
		return models.MatchLocation{}, false
	}
	return n.matches[c], true
}
