package realtime

import (
	"errors"
	"strings"

	"github.com/park285/cheese-arena/internal/chess"
	"github.com/park285/cheese-arena/internal/domain"
	"github.com/park285/cheese-arena/internal/pvpchess"
	"github.com/park285/cheese-arena/pkg/chessdto"
)

func playerView(p pvpchess.Player, c chess.Color) chessdto.PlayerView {
	return chessdto.PlayerView{ID: p.ID, Name: p.Name, Skill: p.Skill, Color: string(c)}
}

func matchState(m *pvpchess.Match, a *pvpchess.Arena) chessdto.MatchState {
	moves := make([]chessdto.MoveView, len(m.Moves))
	for i, mv := range m.Moves {
		moves[i] = chessdto.MoveView{Ply: mv.Ply, Move: mv.Notation(), Color: string(mv.Color)}
	}
	return chessdto.MatchState{
		MatchID: m.ID,
		Status:  string(m.Status),
		Board:   m.Board.Placement(),
		Turn:    string(m.Turn),
		Players: []chessdto.PlayerView{
			playerView(m.Player1, m.Player1Color),
			playerView(m.Player2, m.Player2Color),
		},
		Moves:       moves,
		CreatedAt:   m.CreatedAt,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		Winner:      string(m.Winner),
		Reason:      m.Reason,
		RemainingMs: a.Remaining(m).Milliseconds(),
		BudgetMs:    a.Config().MatchBudget.Milliseconds(),
	}
}

func resultView(rec domain.MatchRecord) chessdto.ResultView {
	moves := rec.Moves
	if moves == nil {
		moves = []string{}
	}
	return chessdto.ResultView{
		MatchID:    rec.MatchID,
		White:      chessdto.PlayerView{ID: rec.WhiteID, Name: rec.WhiteName, Color: string(chess.White)},
		Black:      chessdto.PlayerView{ID: rec.BlackID, Name: rec.BlackName, Color: string(chess.Black)},
		Status:     rec.Status,
		Result:     rec.Result,
		Reason:     rec.Reason,
		EndedBy:    rec.EndedBy,
		Moves:      moves,
		Movetext:   rec.Movetext,
		FinalBoard: rec.FinalBoard,
		CreatedAt:  rec.CreatedAt,
		StartedAt:  rec.StartedAt,
		EndedAt:    rec.EndedAt,
		DurationMs: rec.Duration.Milliseconds(),
	}
}

// errorKind maps match subsystem errors onto wire kinds.
func errorKind(err error) chessdto.ErrorKind {
	switch {
	case errors.Is(err, chess.ErrInvalidMove):
		return chessdto.ErrInvalidMove
	case errors.Is(err, pvpchess.ErrOutOfTurn):
		return chessdto.ErrOutOfTurn
	case errors.Is(err, pvpchess.ErrMatchNotFound):
		return chessdto.ErrMatchNotFound
	case errors.Is(err, pvpchess.ErrStaleMatch):
		return chessdto.ErrStaleMatch
	case errors.Is(err, pvpchess.ErrMatchBusy):
		return chessdto.ErrMatchBusy
	case errors.Is(err, pvpchess.ErrNotStarted):
		return chessdto.ErrNotStarted
	case errors.Is(err, pvpchess.ErrNotParticipant):
		return chessdto.ErrNotParticipant
	case errors.Is(err, pvpchess.ErrPersistenceUnavailable):
		return chessdto.ErrPersistenceUnavailable
	default:
		return chessdto.ErrBadRequest
	}
}

func errorDetail(err error) string {
	var ime *chess.InvalidMoveError
	if errors.As(err, &ime) {
		return string(ime.Reason)
	}
	return ""
}

// parseSubmitMove accepts either explicit squares or a coordinate move.
func parseSubmitMove(in chessdto.SubmitMove) (from, to chess.Pos, err error) {
	if strings.TrimSpace(in.Move) != "" {
		return chess.ParseCoordinateMove(in.Move)
	}
	if from, err = chess.ParsePos(in.From); err != nil {
		return chess.Pos{}, chess.Pos{}, err
	}
	if to, err = chess.ParsePos(in.To); err != nil {
		return chess.Pos{}, chess.Pos{}, err
	}
	return from, to, nil
}
