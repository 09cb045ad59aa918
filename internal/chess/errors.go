package chess

import (
	"errors"
	"fmt"
)

// ErrInvalidMove is matched by every *InvalidMoveError via errors.Is.
var ErrInvalidMove = errors.New("invalid chess move")

// Reason narrows down why a move was rejected.
type Reason string

const (
	ReasonOffBoard    Reason = "off_board"
	ReasonNoPiece     Reason = "no_piece"
	ReasonNotOwnPiece Reason = "not_own_piece"
	ReasonUnreachable Reason = "unreachable"
	ReasonSelfCheck   Reason = "self_check"
)

type InvalidMoveError struct {
	From   Pos
	To     Pos
	Reason Reason
}

func (e *InvalidMoveError) Error() string {
	return fmt.Sprintf("invalid chess move %s-%s: %s", e.From, e.To, e.Reason)
}

func (e *InvalidMoveError) Is(target error) bool { return target == ErrInvalidMove }

func invalidMove(from, to Pos, r Reason) error {
	return &InvalidMoveError{From: from, To: to, Reason: r}
}
