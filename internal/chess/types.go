package chess

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color identifies a side.
type Color string

const (
	NoColor Color = ""
	White   Color = "white"
	Black   Color = "black"
)

// Opposite returns the other side. NoColor stays NoColor.
func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) Valid() bool { return c == White || c == Black }

// forward is the row delta a pawn of this color advances by.
func (c Color) forward() int {
	if c == White {
		return -1
	}
	return 1
}

// backRank is the row a pawn of this color promotes on.
func (c Color) backRank() int {
	if c == White {
		return 0
	}
	return 7
}

type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var pieceTypeNames = [...]string{"", "pawn", "knight", "bishop", "rook", "queen", "king"}

func (t PieceType) String() string {
	if int(t) < len(pieceTypeNames) {
		return pieceTypeNames[t]
	}
	return "unknown"
}

// Piece is a typed, colored piece. The zero value is "no piece".
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

func (p Piece) Empty() bool { return p.Type == NoPieceType }

// letter returns the FEN letter: upper case for white.
func (p Piece) letter() byte {
	var l byte
	switch p.Type {
	case Pawn:
		l = 'p'
	case Knight:
		l = 'n'
	case Bishop:
		l = 'b'
	case Rook:
		l = 'r'
	case Queen:
		l = 'q'
	case King:
		l = 'k'
	default:
		return '.'
	}
	if p.Color == White {
		l -= 'a' - 'A'
	}
	return l
}

func pieceFromLetter(l byte) (Piece, bool) {
	color := Black
	if l >= 'A' && l <= 'Z' {
		color = White
		l += 'a' - 'A'
	}
	var t PieceType
	switch l {
	case 'p':
		t = Pawn
	case 'n':
		t = Knight
	case 'b':
		t = Bishop
	case 'r':
		t = Rook
	case 'q':
		t = Queen
	case 'k':
		t = King
	default:
		return Piece{}, false
	}
	return Piece{Type: t, Color: color}, true
}

// Pos is a board coordinate. Row 0 is black's back rank, Col 0 is the a-file.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Pos) Valid() bool { return p.Row >= 0 && p.Row < 8 && p.Col >= 0 && p.Col < 8 }

func (p Pos) add(dr, dc int) Pos { return Pos{Row: p.Row + dr, Col: p.Col + dc} }

// Square converts to the algebraic square of the notation library.
func (p Pos) Square() nchess.Square {
	if !p.Valid() {
		return nchess.NoSquare
	}
	return nchess.NewSquare(nchess.File(p.Col), nchess.Rank(7-p.Row))
}

// String renders the square in algebraic form, e.g. "e2".
func (p Pos) String() string {
	if !p.Valid() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return p.Square().String()
}

// PosFromSquare maps an algebraic square back to a board coordinate.
func PosFromSquare(sq nchess.Square) Pos {
	return Pos{Row: 7 - int(sq.Rank()), Col: int(sq.File())}
}

// ParsePos parses an algebraic square such as "e2".
func ParsePos(s string) (Pos, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		if sq.String() == s {
			return PosFromSquare(sq), nil
		}
	}
	return Pos{}, fmt.Errorf("invalid square %q", s)
}

// Cell is one square of the board. Selected and Highlighted are UI-only marks
// and never take part in rule evaluation.
type Cell struct {
	Pos         Pos   `json:"pos"`
	Piece       Piece `json:"piece"`
	Selected    bool  `json:"selected,omitempty"`
	Highlighted bool  `json:"highlighted,omitempty"`
}

// Destination is a reachable target square. Unsafe marks a move that would
// leave the mover's own king attacked.
type Destination struct {
	To     Pos  `json:"to"`
	Unsafe bool `json:"unsafe,omitempty"`
}

// Status is the rule engine's verdict on a position.
type Status string

const (
	InProgress Status = "inProgress"
	Checkmate  Status = "checkmate"
	Stalemate  Status = "stalemate"
	Draw       Status = "draw"
)

type Termination struct {
	Status Status
	Winner Color
}
