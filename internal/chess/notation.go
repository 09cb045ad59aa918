package chess

import (
	"fmt"
	"strings"
)

// ParseCoordinateMove reads a "from-to" instruction such as "e2e3" or "e2-e3".
// Promotion suffixes are rejected: promotion is always to a queen.
func ParseCoordinateMove(s string) (from, to Pos, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 4 {
		return Pos{}, Pos{}, fmt.Errorf("move %q: want four characters like e2e3", s)
	}
	if from, err = ParsePos(s[:2]); err != nil {
		return Pos{}, Pos{}, err
	}
	if to, err = ParsePos(s[2:]); err != nil {
		return Pos{}, Pos{}, err
	}
	return from, to, nil
}

// CoordinateMove is the inverse of ParseCoordinateMove.
func CoordinateMove(from, to Pos) string { return from.String() + to.String() }
