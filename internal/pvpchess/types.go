package pvpchess

import (
	"time"

	"github.com/park285/cheese-arena/internal/chess"
)

// Status represents a match lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "inProgress"
	StatusCheckmate  Status = "checkmate"
	StatusStalemate  Status = "stalemate"
	StatusDraw       Status = "draw"
	StatusTimeout    Status = "timeout"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCheckmate, StatusStalemate, StatusDraw, StatusTimeout, StatusCancelled:
		return true
	default:
		return false
	}
}

func statusFromRules(s chess.Status) Status {
	switch s {
	case chess.Checkmate:
		return StatusCheckmate
	case chess.Stalemate:
		return StatusStalemate
	case chess.Draw:
		return StatusDraw
	default:
		return StatusInProgress
	}
}

// Player is a participant as resolved by the identity collaborator.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skill int    `json:"skill"`
}

// Move is one applied ply. Board is the position after the move.
type Move struct {
	Ply     int         `json:"ply"`
	From    chess.Pos   `json:"from"`
	To      chess.Pos   `json:"to"`
	Color   chess.Color `json:"color"`
	MoverID string      `json:"mover_id"`
	Board   chess.Board `json:"board"`
	At      time.Time   `json:"at"`
}

// Notation returns the coordinate form, e.g. "e2e3".
func (mv Move) Notation() string { return chess.CoordinateMove(mv.From, mv.To) }

// Match is both the in-memory state machine and the persisted record.
type Match struct {
	ID           string      `json:"id"`
	Player1      Player      `json:"player1"`
	Player2      Player      `json:"player2"`
	Player1Color chess.Color `json:"player1_color"`
	Player2Color chess.Color `json:"player2_color"`
	Status       Status      `json:"status"`
	Board        chess.Board `json:"board"`
	Turn         chess.Color `json:"turn"`
	Moves        []Move      `json:"moves"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
	Winner       chess.Color `json:"winner,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	EndedBy      string      `json:"ended_by,omitempty"`
}

// StatusUpdate carries a lifecycle transition to the store.
type StatusUpdate struct {
	Status    Status
	StartedAt *time.Time
	EndedAt   *time.Time
	Winner    chess.Color
	Reason    string
	EndedBy   string
	At        time.Time
}
