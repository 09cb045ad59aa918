package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// StartPlacement is the standard initial position in FEN placement form.
const StartPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// Board is the 8x8 grid. It is a value type: copying a Board copies every cell,
// so callers can hand one out without sharing state.
type Board struct {
	cells [8][8]Cell
}

// EmptyBoard returns a board with 64 positioned, empty cells.
func EmptyBoard() Board {
	var b Board
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			b.cells[r][c].Pos = Pos{Row: r, Col: c}
		}
	}
	return b
}

// NewBoard returns the standard starting position.
func NewBoard() Board {
	b, err := ParsePlacement(StartPlacement)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Board) At(p Pos) Piece {
	if !p.Valid() {
		return Piece{}
	}
	return b.cells[p.Row][p.Col].Piece
}

func (b *Board) Cell(p Pos) Cell {
	if !p.Valid() {
		return Cell{Pos: p}
	}
	return b.cells[p.Row][p.Col]
}

// Set places a piece (or clears the cell when piece is empty).
func (b *Board) Set(p Pos, piece Piece) {
	if !p.Valid() {
		return
	}
	b.cells[p.Row][p.Col].Pos = p
	b.cells[p.Row][p.Col].Piece = piece
}

// Cells returns the grid in row-major order.
func (b *Board) Cells() []Cell {
	out := make([]Cell, 0, 64)
	for r := 0; r < 8; r++ {
		out = append(out, b.cells[r][:]...)
	}
	return out
}

// KingPos finds the king of the given color.
func (b *Board) KingPos(color Color) (Pos, bool) {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			pc := b.cells[r][c].Piece
			if pc.Type == King && pc.Color == color {
				return Pos{Row: r, Col: c}, true
			}
		}
	}
	return Pos{}, false
}

// Occupied lists the squares holding pieces of color.
func (b *Board) Occupied(color Color) []Pos {
	var out []Pos
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			pc := b.cells[r][c].Piece
			if !pc.Empty() && pc.Color == color {
				out = append(out, Pos{Row: r, Col: c})
			}
		}
	}
	return out
}

// Annotate marks a selected cell and highlighted targets. Rules ignore these.
func (b *Board) Annotate(selected Pos, highlighted []Pos) {
	b.ClearAnnotations()
	if selected.Valid() {
		b.cells[selected.Row][selected.Col].Selected = true
	}
	for _, p := range highlighted {
		if p.Valid() {
			b.cells[p.Row][p.Col].Highlighted = true
		}
	}
}

func (b *Board) ClearAnnotations() {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			b.cells[r][c].Selected = false
			b.cells[r][c].Highlighted = false
		}
	}
}

// Equal compares piece placement only.
func (b Board) Equal(o Board) bool {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			if b.cells[r][c].Piece != o.cells[r][c].Piece {
				return false
			}
		}
	}
	return true
}

// Placement renders the FEN piece-placement field, row 0 first.
func (b Board) Placement() string {
	var sb strings.Builder
	for r := 0; r < 8; r++ {
		empty := 0
		for c := 0; c < 8; c++ {
			pc := b.cells[r][c].Piece
			if pc.Empty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(pc.letter())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if r < 7 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// ParsePlacement reads a FEN piece-placement field. A full FEN is accepted;
// everything after the first space is ignored.
func ParsePlacement(s string) (Board, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	rows := strings.Split(s, "/")
	if len(rows) != 8 {
		return Board{}, fmt.Errorf("placement %q: want 8 rows, got %d", s, len(rows))
	}
	b := EmptyBoard()
	kings := map[Color]int{}
	for r, row := range rows {
		c := 0
		for i := 0; i < len(row); i++ {
			ch := row[i]
			if ch >= '1' && ch <= '8' {
				c += int(ch - '0')
				continue
			}
			pc, ok := pieceFromLetter(ch)
			if !ok {
				return Board{}, fmt.Errorf("placement %q: bad piece %q", s, ch)
			}
			if c >= 8 {
				return Board{}, fmt.Errorf("placement %q: row %d overflows", s, r)
			}
			if pc.Type == King {
				kings[pc.Color]++
				if kings[pc.Color] > 1 {
					return Board{}, fmt.Errorf("placement %q: more than one %s king", s, pc.Color)
				}
			}
			b.cells[r][c].Piece = pc
			c++
		}
		if c != 8 {
			return Board{}, fmt.Errorf("placement %q: row %d has %d columns", s, r, c)
		}
	}
	return b, nil
}

func (b Board) MarshalText() ([]byte, error) { return []byte(b.Placement()), nil }

func (b *Board) UnmarshalText(text []byte) error {
	nb, err := ParsePlacement(string(text))
	if err != nil {
		return err
	}
	*b = nb
	return nil
}

func (b Board) String() string { return b.Placement() }
