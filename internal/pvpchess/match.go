package pvpchess

import (
	"time"

	"github.com/park285/cheese-arena/internal/chess"
)

// NewMatch creates a pending match on the standard board. player1Color must be
// White or Black; player2 gets the other one.
func NewMatch(id string, p1, p2 Player, player1Color chess.Color, now time.Time) *Match {
	return &Match{
		ID:           id,
		Player1:      p1,
		Player2:      p2,
		Player1Color: player1Color,
		Player2Color: player1Color.Opposite(),
		Status:       StatusPending,
		Board:        chess.NewBoard(),
		Turn:         chess.White,
		Moves:        []Move{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ColorOf returns the color played by userID.
func (m *Match) ColorOf(userID string) (chess.Color, bool) {
	switch userID {
	case m.Player1.ID:
		return m.Player1Color, true
	case m.Player2.ID:
		return m.Player2Color, true
	default:
		return chess.NoColor, false
	}
}

// PlayerOf returns the participant playing color.
func (m *Match) PlayerOf(color chess.Color) Player {
	if m.Player1Color == color {
		return m.Player1
	}
	return m.Player2
}

// Opponent returns the other participant.
func (m *Match) Opponent(userID string) Player {
	if m.Player1.ID == userID {
		return m.Player2
	}
	return m.Player1
}

func (m *Match) IsParticipant(userID string) bool {
	_, ok := m.ColorOf(userID)
	return ok
}

// Start moves a pending match to in-progress and anchors the clock. Calling it
// again while in progress is a no-op; changed reports whether a transition happened.
func (m *Match) Start(now time.Time) (changed bool, err error) {
	switch {
	case m.Status.Terminal():
		return false, ErrStaleMatch
	case m.Status == StatusInProgress:
		return false, nil
	}
	t := now
	m.StartedAt = &t
	m.Status = StatusInProgress
	m.UpdatedAt = now
	return true, nil
}

// ApplyMove validates and plays from->to for userID. On any error the match is
// left untouched.
func (m *Match) ApplyMove(userID string, from, to chess.Pos, now time.Time) (Move, error) {
	switch {
	case m.Status.Terminal():
		return Move{}, ErrStaleMatch
	case m.Status != StatusInProgress:
		return Move{}, ErrNotStarted
	}
	color, ok := m.ColorOf(userID)
	if !ok {
		return Move{}, ErrNotParticipant
	}
	if color != m.Turn {
		return Move{}, ErrOutOfTurn
	}
	next, err := chess.Apply(m.Board, from, to, color)
	if err != nil {
		return Move{}, err
	}
	if n := len(m.Moves); n > 0 && now.Before(m.Moves[n-1].At) {
		now = m.Moves[n-1].At
	}

	mv := Move{
		Ply:     len(m.Moves) + 1,
		From:    from,
		To:      to,
		Color:   color,
		MoverID: userID,
		Board:   next,
		At:      now,
	}
	m.Moves = append(m.Moves, mv)
	m.Board = next
	m.Turn = color.Opposite()
	m.UpdatedAt = now

	if term := chess.EvaluateTermination(m.Board, m.Turn); term.Status != chess.InProgress {
		m.end(statusFromRules(term.Status), term.Winner, string(term.Status), "", now)
	}
	return mv, nil
}

// Expire ends the match with a timeout once the budget has elapsed, measured
// from StartedAt, or from CreatedAt while still pending.
func (m *Match) Expire(now time.Time, budget time.Duration) error {
	if m.Status.Terminal() {
		return ErrStaleMatch
	}
	anchor := m.CreatedAt
	if m.StartedAt != nil {
		anchor = *m.StartedAt
	}
	if now.Sub(anchor) <= budget {
		return ErrNotExpired
	}
	m.end(StatusTimeout, chess.NoColor, "time budget exhausted", "", now)
	return nil
}

// Cancel ends any non-terminal match. by is the initiating player, empty for
// server-initiated cancellation.
func (m *Match) Cancel(reason, by string, now time.Time) error {
	if m.Status.Terminal() {
		return ErrStaleMatch
	}
	m.end(StatusCancelled, chess.NoColor, reason, by, now)
	return nil
}

func (m *Match) end(status Status, winner chess.Color, reason, by string, now time.Time) {
	t := now
	m.Status = status
	m.Winner = winner
	m.Reason = reason
	m.EndedBy = by
	m.EndedAt = &t
	m.UpdatedAt = now
}

// Remaining is the time left on the match clock. It is always derived from
// StartedAt, never from anything a client reports.
func (m *Match) Remaining(now time.Time, budget time.Duration) time.Duration {
	if m.StartedAt == nil {
		return budget
	}
	until := now
	if m.EndedAt != nil {
		until = *m.EndedAt
	}
	left := budget - until.Sub(*m.StartedAt)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy safe to hand out of the arena.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Moves = make([]Move, len(m.Moves))
	copy(c.Moves, m.Moves)
	if m.StartedAt != nil {
		t := *m.StartedAt
		c.StartedAt = &t
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func (m *Match) statusUpdate() StatusUpdate {
	return StatusUpdate{
		Status:    m.Status,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
		Winner:    m.Winner,
		Reason:    m.Reason,
		EndedBy:   m.EndedBy,
		At:        m.UpdatedAt,
	}
}

// applyUpdate is used by stores to replay a StatusUpdate. Terminal states are
// absorbing here as well.
func (m *Match) applyUpdate(u StatusUpdate) bool {
	if m.Status.Terminal() || u.Status == m.Status {
		return false
	}
	m.Status = u.Status
	if u.StartedAt != nil {
		t := *u.StartedAt
		m.StartedAt = &t
	}
	if u.EndedAt != nil {
		t := *u.EndedAt
		m.EndedAt = &t
	}
	m.Winner = u.Winner
	m.Reason = u.Reason
	m.EndedBy = u.EndedBy
	if u.At.After(m.UpdatedAt) {
		m.UpdatedAt = u.At
	}
	return true
}

// appendMove is used by stores. Already stored plies are ignored; gaps are errors.
func (m *Match) appendMove(mv Move, status Status) error {
	switch {
	case mv.Ply <= len(m.Moves):
		return nil
	case mv.Ply != len(m.Moves)+1:
		return ErrMoveGap
	}
	m.Moves = append(m.Moves, mv)
	m.Board = mv.Board
	m.Turn = mv.Color.Opposite()
	if mv.At.After(m.UpdatedAt) {
		m.UpdatedAt = mv.At
	}
	if !m.Status.Terminal() && status == StatusInProgress {
		m.Status = status
	}
	return nil
}
