package board

import (
	"fmt"
	"strings"
)

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
	NoColor Color = 2
)

// Other returns the opposite color.
func (c Color) Other() Color {
	if c >= NoColor {
		return NoColor
	}
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "NoColor"
	}
}

// Name returns the upper-case name used by the export format.
func (c Color) Name() string {
	return strings.ToUpper(c.String())
}

// ParseColor parses "WHITE" or "BLACK" in any case.
func ParseColor(s string) (Color, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WHITE":
		return White, true
	case "BLACK":
		return Black, true
	default:
		return NoColor, false
	}
}

// forward returns the rank direction pawns of this color advance in.
func (c Color) forward() int {
	if c == White {
		return 1
	}
	return -1
}

// PieceType represents the type of a chess piece.
// The zero value is NoPieceType so an empty board cell needs no sentinel.
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

// String returns the piece type name.
func (pt PieceType) String() string {
	switch pt {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Letter returns the upper-case letter for the piece type.
func (pt PieceType) Letter() byte {
	if pt > King {
		return ' '
	}
	return " PNBRQK"[pt]
}

// PieceTypeFromLetter converts a piece letter (either case) to a PieceType.
func PieceTypeFromLetter(c byte) (PieceType, bool) {
	switch c {
	case 'P', 'p':
		return Pawn, true
	case 'N', 'n':
		return Knight, true
	case 'B', 'b':
		return Bishop, true
	case 'R', 'r':
		return Rook, true
	case 'Q', 'q':
		return Queen, true
	case 'K', 'k':
		return King, true
	default:
		return NoPieceType, false
	}
}

// ParsePieceType accepts a piece name ("queen", "Knight") or a single letter.
func ParsePieceType(s string) (PieceType, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 1 {
		return PieceTypeFromLetter(s[0])
	}
	switch strings.ToUpper(s) {
	case "PAWN":
		return Pawn, true
	case "KNIGHT":
		return Knight, true
	case "BISHOP":
		return Bishop, true
	case "ROOK":
		return Rook, true
	case "QUEEN":
		return Queen, true
	case "KING":
		return King, true
	default:
		return NoPieceType, false
	}
}

// Piece is a piece on the board. Pieces are plain values owned by the
// Board cell that holds them; copying a Board copies its pieces.
type Piece struct {
	Color  Color
	Type   PieceType
	Square Square
	Moved  bool
	// ID is fixed at creation (letter plus creation square) and is only
	// meant for display and lookup by the "find" command.
	ID string
}

// NewPiece creates an unmoved piece standing on sq.
func NewPiece(pt PieceType, c Color, sq Square) Piece {
	p := Piece{Color: c, Type: pt, Square: sq}
	p.ID = p.Token()
	return p
}

// IsZero reports whether p is the empty piece.
func (p Piece) IsZero() bool {
	return p.Type == NoPieceType
}

// Letter returns the piece letter: upper-case for white, lower-case for black.
func (p Piece) Letter() byte {
	l := p.Type.Letter()
	if p.Color == Black {
		return l + ('a' - 'A')
	}
	return l
}

// Token returns the export token for the piece, e.g. "Ke1" or "pd7".
func (p Piece) Token() string {
	if p.IsZero() {
		return ""
	}
	return string(p.Letter()) + p.Square.String()
}

// String returns the export token for the piece.
func (p Piece) String() string {
	return p.Token()
}

// ParsePiece parses a token such as "Ke1" or "pd7*". The trailing '*'
// marks a piece that has already moved.
func ParsePiece(token string) (Piece, error) {
	token = strings.TrimSpace(token)
	moved := strings.HasSuffix(token, "*")
	token = strings.TrimSuffix(token, "*")
	if len(token) != 3 {
		return Piece{}, fmt.Errorf("invalid piece token %q", token)
	}

	pt, ok := PieceTypeFromLetter(token[0])
	if !ok {
		return Piece{}, fmt.Errorf("unknown piece letter %q", token[0])
	}
	c := White
	if token[0] >= 'a' && token[0] <= 'z' {
		c = Black
	}

	sq, err := ParseSquare(token[1:])
	if err != nil {
		return Piece{}, err
	}

	p := NewPiece(pt, c, sq)
	p.Moved = moved
	return p, nil
}
