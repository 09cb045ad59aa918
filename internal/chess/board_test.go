package chess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBoard(t *testing.T, placement string) Board {
	t.Helper()
	b, err := ParsePlacement(placement)
	require.NoError(t, err)
	return b
}

func destinations(ds []Destination) []Pos {
	out := make([]Pos, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.To)
	}
	return out
}

func TestNewBoardLayout(t *testing.T) {
	b := NewBoard()
	require.Len(t, b.Cells(), 64)
	assert.Equal(t, Piece{Type: King, Color: Black}, b.At(Pos{0, 4}))
	assert.Equal(t, Piece{Type: King, Color: White}, b.At(Pos{7, 4}))
	assert.Equal(t, Piece{Type: Pawn, Color: White}, b.At(Pos{6, 4}))
	assert.Equal(t, StartPlacement, b.Placement())
	for _, c := range b.Cells() {
		assert.True(t, c.Pos.Valid())
	}
}

func TestParsePlacementRejectsBadInput(t *testing.T) {
	for _, s := range []string{
		"8/8/8",
		"9/8/8/8/8/8/8/8",
		"kk6/8/8/8/8/8/8/7K",
		"x7/8/8/8/8/8/8/8",
		"7/8/8/8/8/8/8/8",
	} {
		_, err := ParsePlacement(s)
		assert.Error(t, err, s)
	}
}

func TestPawnMovesOneStepOnly(t *testing.T) {
	b := NewBoard()
	got := destinations(LegalMoves(b, Pos{6, 4}, White, true))
	assert.Equal(t, []Pos{{5, 4}}, got)

	got = destinations(LegalMoves(b, Pos{1, 3}, Black, true))
	assert.Equal(t, []Pos{{2, 3}}, got)
}

func TestPawnCapturesStraightAheadOnly(t *testing.T) {
	b := mustBoard(t, "k7/8/8/3pp3/4P3/8/8/K7")
	got := destinations(LegalMoves(b, Pos{4, 4}, White, false))
	assert.Equal(t, []Pos{{3, 4}}, got)
}

func TestKnightFromStart(t *testing.T) {
	b := NewBoard()
	got := destinations(LegalMoves(b, Pos{7, 1}, White, true))
	assert.ElementsMatch(t, []Pos{{5, 0}, {5, 2}}, got)
}

func TestSlidersStopAtBlockers(t *testing.T) {
	b := mustBoard(t, "k7/8/8/1p6/8/8/8/R3K3")
	got := destinations(LegalMoves(b, Pos{7, 0}, White, false))
	assert.ElementsMatch(t, []Pos{{6, 0}, {5, 0}, {4, 0}, {3, 0}, {2, 0}, {1, 0}, {7, 1}, {7, 2}, {7, 3}}, got)

	b = mustBoard(t, "k7/8/8/8/3Q4/8/8/7K")
	assert.Len(t, LegalMoves(b, Pos{4, 3}, White, false), 27)
}

func TestWrongColorOrEmptyHasNoMoves(t *testing.T) {
	b := NewBoard()
	assert.Empty(t, LegalMoves(b, Pos{6, 4}, Black, true))
	assert.Empty(t, LegalMoves(b, Pos{4, 4}, White, true))
}

func TestLegalMovesNeverTargetOwnPieces(t *testing.T) {
	boards := []Board{
		NewBoard(),
		mustBoard(t, "r1bqk2r/pppp1ppp/2n2n2/2b1p3/2B1P3/2N2N2/PPPP1PPP/R1BQK2R"),
		mustBoard(t, "k7/1Q6/2K5/8/8/8/8/8"),
	}
	for _, b := range boards {
		for _, color := range []Color{White, Black} {
			for _, from := range b.Occupied(color) {
				for _, d := range LegalMoves(b, from, color, true) {
					target := b.At(d.To)
					if !target.Empty() {
						assert.NotEqual(t, color, target.Color, "%s %s->%s", b, from, d.To)
					}
				}
			}
		}
	}
}

func TestEnemyKingIsNeverListed(t *testing.T) {
	b := mustBoard(t, "k7/8/8/8/8/8/8/Q6K")
	for _, p := range destinations(LegalMoves(b, Pos{7, 0}, White, false)) {
		assert.NotEqual(t, Pos{0, 0}, p)
	}
	assert.True(t, IsKingInCheck(b, Black))
}

func TestSelfCheckIsFlaggedNotHidden(t *testing.T) {
	b := mustBoard(t, "k3r3/8/8/8/8/8/4R3/4K3")
	moves := LegalMoves(b, Pos{6, 4}, White, true)
	unsafe := map[Pos]bool{}
	for _, d := range moves {
		unsafe[d.To] = d.Unsafe
	}
	require.Contains(t, unsafe, Pos{6, 3})
	assert.True(t, unsafe[Pos{6, 3}])
	assert.False(t, unsafe[Pos{5, 4}])

	for _, d := range LegalMoves(b, Pos{6, 4}, White, false) {
		assert.False(t, d.Unsafe)
	}
}

func TestApplyRejectsWithoutMutation(t *testing.T) {
	b := mustBoard(t, "k3r3/8/8/8/8/8/4R3/4K3")
	before := b.Placement()

	cases := []struct {
		from, to Pos
		color    Color
		reason   Reason
	}{
		{Pos{6, 4}, Pos{6, 3}, White, ReasonSelfCheck},
		{Pos{6, 4}, Pos{5, 3}, White, ReasonUnreachable},
		{Pos{4, 4}, Pos{3, 4}, White, ReasonNoPiece},
		{Pos{6, 4}, Pos{5, 4}, Black, ReasonNotOwnPiece},
		{Pos{6, 4}, Pos{8, 4}, White, ReasonOffBoard},
	}
	for _, tc := range cases {
		_, err := Apply(b, tc.from, tc.to, tc.color)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidMove))
		var ime *InvalidMoveError
		require.True(t, errors.As(err, &ime))
		assert.Equal(t, tc.reason, ime.Reason)
		assert.Equal(t, before, b.Placement())
	}
}

func TestApplyPromotesToQueen(t *testing.T) {
	b := mustBoard(t, "7k/P7/8/8/8/8/8/K7")
	next, err := Apply(b, Pos{1, 0}, Pos{0, 0}, White)
	require.NoError(t, err)
	assert.Equal(t, Piece{Type: Queen, Color: White}, next.At(Pos{0, 0}))
	assert.True(t, next.At(Pos{1, 0}).Empty())

	b = mustBoard(t, "k7/8/8/8/8/8/7p/K7")
	next, err = Apply(b, Pos{6, 7}, Pos{7, 7}, Black)
	require.NoError(t, err)
	assert.Equal(t, Piece{Type: Queen, Color: Black}, next.At(Pos{7, 7}))
}

func TestCheckmate(t *testing.T) {
	b := mustBoard(t, "k7/1Q6/2K5/8/8/8/8/8")
	require.True(t, IsKingInCheck(b, Black))
	require.False(t, HasSafeMove(b, Black))
	got := EvaluateTermination(b, Black)
	assert.Equal(t, Termination{Status: Checkmate, Winner: White}, got)
}

func TestStalemate(t *testing.T) {
	b := mustBoard(t, "k7/8/1Q6/8/8/8/8/7K")
	require.False(t, IsKingInCheck(b, Black))
	got := EvaluateTermination(b, Black)
	assert.Equal(t, Termination{Status: Stalemate}, got)
}

func TestInsufficientMaterialDraw(t *testing.T) {
	assert.Equal(t, Draw, EvaluateTermination(mustBoard(t, "k7/8/8/8/8/8/8/7K"), White).Status)
	assert.Equal(t, Draw, EvaluateTermination(mustBoard(t, "k7/8/8/8/8/8/8/6NK"), Black).Status)
	assert.Equal(t, InProgress, EvaluateTermination(mustBoard(t, "k7/8/8/8/8/8/8/5BNK"), Black).Status)
	assert.Equal(t, InProgress, EvaluateTermination(NewBoard(), White).Status)
}

func TestReplayIsDeterministic(t *testing.T) {
	plies := []struct {
		from, to string
		color    Color
	}{
		{"e2", "e3", White},
		{"e7", "e6", Black},
		{"d1", "h5", White},
		{"g8", "f6", Black},
		{"h5", "f7", White},
	}
	replay := func() Board {
		b := NewBoard()
		for _, p := range plies {
			from, err := ParsePos(p.from)
			require.NoError(t, err)
			to, err := ParsePos(p.to)
			require.NoError(t, err)
			b, err = Apply(b, from, to, p.color)
			require.NoError(t, err, "%s%s", p.from, p.to)
		}
		return b
	}
	first, second := replay(), replay()
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Placement(), second.Placement())
}

func TestOpeningPliesScenario(t *testing.T) {
	b, err := Apply(NewBoard(), Pos{6, 4}, Pos{5, 4}, White)
	require.NoError(t, err)
	assert.Equal(t, InProgress, EvaluateTermination(b, Black).Status)
	b, err = Apply(b, Pos{1, 4}, Pos{2, 4}, Black)
	require.NoError(t, err)
	assert.Equal(t, InProgress, EvaluateTermination(b, White).Status)
	assert.Equal(t, "rnbqkbnr/pppp1ppp/4p3/8/8/4P3/PPPP1PPP/RNBQKBNR", b.Placement())
}

func TestAnnotationsDoNotAffectRules(t *testing.T) {
	plain := NewBoard()
	marked := NewBoard()
	marked.Annotate(Pos{6, 4}, []Pos{{5, 4}, {4, 4}})
	assert.True(t, marked.Cell(Pos{6, 4}).Selected)
	assert.True(t, marked.Cell(Pos{4, 4}).Highlighted)
	assert.True(t, plain.Equal(marked))
	assert.Equal(t, LegalMoves(plain, Pos{6, 4}, White, true), LegalMoves(marked, Pos{6, 4}, White, true))

	next, err := Apply(marked, Pos{6, 4}, Pos{5, 4}, White)
	require.NoError(t, err)
	for _, c := range next.Cells() {
		assert.False(t, c.Selected || c.Highlighted)
	}
}

func TestNotation(t *testing.T) {
	p, err := ParsePos("e2")
	require.NoError(t, err)
	assert.Equal(t, Pos{6, 4}, p)
	assert.Equal(t, "a8", Pos{0, 0}.String())
	assert.Equal(t, "h1", Pos{7, 7}.String())

	from, to, err := ParseCoordinateMove("E2-E3")
	require.NoError(t, err)
	assert.Equal(t, "e2e3", CoordinateMove(from, to))

	_, _, err = ParseCoordinateMove("e7e8q")
	assert.Error(t, err)
	_, err = ParsePos("z9")
	assert.Error(t, err)
}

func TestBoardTextRoundTrip(t *testing.T) {
	b := mustBoard(t, "k7/1Q6/2K5/8/8/8/8/8")
	text, err := b.MarshalText()
	require.NoError(t, err)
	var back Board
	require.NoError(t, back.UnmarshalText(text))
	assert.True(t, b.Equal(back))
}
