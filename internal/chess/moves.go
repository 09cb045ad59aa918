package chess

var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	rookDirs      = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirs    = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// reach returns every square the piece on from geometrically reaches, including
// squares holding enemy pieces (the enemy king too). Own pieces block.
func reach(b *Board, from Pos) []Pos {
	pc := b.At(from)
	if pc.Empty() {
		return nil
	}
	var out []Pos
	step := func(to Pos) {
		if !to.Valid() {
			return
		}
		if t := b.At(to); t.Empty() || t.Color != pc.Color {
			out = append(out, to)
		}
	}
	slide := func(dirs [][2]int) {
		for _, d := range dirs {
			for to := from.add(d[0], d[1]); to.Valid(); to = to.add(d[0], d[1]) {
				t := b.At(to)
				if t.Empty() {
					out = append(out, to)
					continue
				}
				if t.Color != pc.Color {
					out = append(out, to)
				}
				break
			}
		}
	}

	switch pc.Type {
	case Pawn:
		step(from.add(pc.Color.forward(), 0))
	case Knight:
		for _, o := range knightOffsets {
			step(from.add(o[0], o[1]))
		}
	case Bishop:
		slide(bishopDirs[:])
	case Rook:
		slide(rookDirs[:])
	case Queen:
		slide(rookDirs[:])
		slide(bishopDirs[:])
	case King:
		for _, o := range kingOffsets {
			step(from.add(o[0], o[1]))
		}
	}
	return out
}

// LegalMoves lists the destinations of the piece of color on from. Squares
// holding the enemy king are never listed. With filterSelfCheck, each
// destination is simulated and flagged Unsafe when it leaves color's king attacked.
func LegalMoves(b Board, from Pos, color Color, filterSelfCheck bool) []Destination {
	pc := b.At(from)
	if pc.Empty() || pc.Color != color {
		return nil
	}
	targets := reach(&b, from)
	out := make([]Destination, 0, len(targets))
	for _, to := range targets {
		if t := b.At(to); t.Type == King {
			continue
		}
		d := Destination{To: to}
		if filterSelfCheck {
			next := b
			move(&next, from, to)
			d.Unsafe = IsKingInCheck(next, color)
		}
		out = append(out, d)
	}
	return out
}

// IsKingInCheck reports whether any opposing piece reaches color's king.
// A board without that king is never in check.
func IsKingInCheck(b Board, color Color) bool {
	king, ok := b.KingPos(color)
	if !ok {
		return false
	}
	return attacked(&b, king, color.Opposite())
}

func attacked(b *Board, target Pos, by Color) bool {
	for _, from := range b.Occupied(by) {
		for _, to := range reach(b, from) {
			if to == target {
				return true
			}
		}
	}
	return false
}

// HasSafeMove reports whether color has at least one move that does not leave
// its king in check.
func HasSafeMove(b Board, color Color) bool {
	for _, from := range b.Occupied(color) {
		for _, d := range LegalMoves(b, from, color, true) {
			if !d.Unsafe {
				return true
			}
		}
	}
	return false
}

// Apply validates and plays from->to for color and returns the resulting board.
// The input board is never modified; on error the zero Board is returned.
func Apply(b Board, from, to Pos, color Color) (Board, error) {
	if !from.Valid() || !to.Valid() {
		return Board{}, invalidMove(from, to, ReasonOffBoard)
	}
	pc := b.At(from)
	if pc.Empty() {
		return Board{}, invalidMove(from, to, ReasonNoPiece)
	}
	if pc.Color != color {
		return Board{}, invalidMove(from, to, ReasonNotOwnPiece)
	}
	for _, d := range LegalMoves(b, from, color, true) {
		if d.To != to {
			continue
		}
		if d.Unsafe {
			return Board{}, invalidMove(from, to, ReasonSelfCheck)
		}
		next := b
		next.ClearAnnotations()
		move(&next, from, to)
		return next, nil
	}
	return Board{}, invalidMove(from, to, ReasonUnreachable)
}

// move relocates a piece without validation. Pawns reaching the far back rank
// become queens.
func move(b *Board, from, to Pos) {
	pc := b.At(from)
	if pc.Type == Pawn && to.Row == pc.Color.backRank() {
		pc.Type = Queen
	}
	b.Set(from, Piece{})
	b.Set(to, pc)
}

// EvaluateTermination judges the position with colorToMove on turn.
func EvaluateTermination(b Board, colorToMove Color) Termination {
	if !HasSafeMove(b, colorToMove) {
		if IsKingInCheck(b, colorToMove) {
			return Termination{Status: Checkmate, Winner: colorToMove.Opposite()}
		}
		return Termination{Status: Stalemate}
	}
	if insufficientMaterial(&b) {
		return Termination{Status: Draw}
	}
	return Termination{Status: InProgress}
}

// insufficientMaterial covers bare kings and a lone minor piece against a bare king.
func insufficientMaterial(b *Board) bool {
	minors := 0
	for _, c := range b.Cells() {
		switch c.Piece.Type {
		case NoPieceType, King:
		case Knight, Bishop:
			minors++
		default:
			return false
		}
	}
	return minors <= 1
}
