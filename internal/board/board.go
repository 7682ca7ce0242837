package board

import (
	"fmt"
	"strings"
)

// LastMove remembers the most recent move made on the board. It is only
// consulted for en passant eligibility.
type LastMove struct {
	From  Square
	To    Square
	Piece Piece
}

// IsZero reports whether no move has been recorded.
func (lm LastMove) IsZero() bool {
	return lm.Piece.IsZero()
}

// IsDoublePawnPush reports whether the last move advanced a pawn two ranks.
func (lm LastMove) IsDoublePawnPush() bool {
	if lm.Piece.Type != Pawn || !lm.From.IsValid() || !lm.To.IsValid() {
		return false
	}
	d := lm.To.Rank() - lm.From.Rank()
	return d == 2 || d == -2
}

// Board maps squares to pieces. A Board is a plain value: assigning or
// copying it yields a fully independent board.
type Board struct {
	cells [64]Piece
	last  LastMove
}

// backRank is the order of pieces on the first and eighth ranks.
var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// New creates a board in the standard starting position.
func New() *Board {
	b := NewEmpty()
	b.Reset()
	return b
}

// NewEmpty creates a board with no pieces.
func NewEmpty() *Board {
	return &Board{last: LastMove{From: NoSquare, To: NoSquare}}
}

// Reset sets up the standard chess starting position.
func (b *Board) Reset() {
	b.Clear()
	for file := 0; file < Size; file++ {
		b.Place(NewPiece(backRank[file], White, NewSquare(file, 0)), NewSquare(file, 0))
		b.Place(NewPiece(Pawn, White, NewSquare(file, 1)), NewSquare(file, 1))
		b.Place(NewPiece(Pawn, Black, NewSquare(file, 6)), NewSquare(file, 6))
		b.Place(NewPiece(backRank[file], Black, NewSquare(file, 7)), NewSquare(file, 7))
	}
}

// Size returns the board dimension.
func (b *Board) Size() int {
	return Size
}

// Copy creates a deep copy of the board.
func (b *Board) Copy() *Board {
	nb := *b
	return &nb
}

// Equal reports whether two boards hold identical pieces, moved flags and
// last move.
func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	return *b == *o
}

// PieceAt returns the piece at the given square. It reports false for an
// empty or invalid square.
func (b *Board) PieceAt(sq Square) (Piece, bool) {
	if !sq.IsValid() {
		return Piece{}, false
	}
	p := b.cells[sq]
	return p, !p.IsZero()
}

// IsEmpty returns true if the square holds no piece.
func (b *Board) IsEmpty(sq Square) bool {
	_, ok := b.PieceAt(sq)
	return !ok
}

func mustBeValid(sq Square) {
	if !sq.IsValid() {
		panic(fmt.Sprintf("board: square %d out of range", sq))
	}
}

// Place puts p on sq, replacing whatever stood there.
func (b *Board) Place(p Piece, sq Square) {
	mustBeValid(sq)
	if p.IsZero() {
		panic("board: placing empty piece")
	}
	p.Square = sq
	b.cells[sq] = p
}

// Remove takes the piece off sq and returns it.
func (b *Board) Remove(sq Square) (Piece, bool) {
	mustBeValid(sq)
	p := b.cells[sq]
	b.cells[sq] = Piece{}
	return p, !p.IsZero()
}

// Move relocates the piece on from to to, capturing anything on to. The
// piece is marked as moved and the move is recorded as the last move.
func (b *Board) Move(from, to Square) (captured Piece) {
	mustBeValid(from)
	mustBeValid(to)
	p, ok := b.PieceAt(from)
	if !ok {
		panic(fmt.Sprintf("board: no piece on %s", from))
	}
	captured = b.cells[to]
	b.cells[from] = Piece{}
	p.Moved = true
	p.Square = to
	b.cells[to] = p
	b.last = LastMove{From: from, To: to, Piece: p}
	return captured
}

// SetLastMove overrides the recorded last move.
func (b *Board) SetLastMove(from, to Square, p Piece) {
	b.last = LastMove{From: from, To: to, Piece: p}
}

// LastMove returns the most recent move made on the board.
func (b *Board) LastMove() LastMove {
	return b.last
}

// Clear removes every piece and forgets the last move.
func (b *Board) Clear() {
	*b = Board{last: LastMove{From: NoSquare, To: NoSquare}}
}

// Pieces returns every piece on the board in square order a1..h8.
func (b *Board) Pieces() []Piece {
	pieces := make([]Piece, 0, 32)
	for sq := A1; sq < NoSquare; sq++ {
		if p, ok := b.PieceAt(sq); ok {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// PiecesOf returns the pieces of color c in square order.
func (b *Board) PiecesOf(c Color) []Piece {
	pieces := make([]Piece, 0, 16)
	for sq := A1; sq < NoSquare; sq++ {
		if p, ok := b.PieceAt(sq); ok && p.Color == c {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// PieceByID finds a piece by its creation ID.
func (b *Board) PieceByID(id string) (Piece, bool) {
	for sq := A1; sq < NoSquare; sq++ {
		if p, ok := b.PieceAt(sq); ok && p.ID == id {
			return p, true
		}
	}
	return Piece{}, false
}

// FindKing returns the square of the king of color c.
func (b *Board) FindKing(c Color) (Square, bool) {
	for sq := A1; sq < NoSquare; sq++ {
		if p, ok := b.PieceAt(sq); ok && p.Type == King && p.Color == c {
			return sq, true
		}
	}
	return NoSquare, false
}

// IsClearPath reports whether from and to share a rank and every square
// strictly between them is empty.
func (b *Board) IsClearPath(from, to Square) bool {
	if !from.IsValid() || !to.IsValid() || from.Rank() != to.Rank() {
		return false
	}
	lo, hi := from.File(), to.File()
	if lo > hi {
		lo, hi = hi, lo
	}
	for file := lo + 1; file < hi; file++ {
		if !b.IsEmpty(NewSquare(file, from.Rank())) {
			return false
		}
	}
	return true
}

// String returns a visual representation of the board.
func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "%d  ", rank+1)
		for file := 0; file < 8; file++ {
			if p, ok := b.PieceAt(NewSquare(file, rank)); ok {
				sb.WriteByte(p.Letter())
			} else {
				sb.WriteByte('.')
			}
			sb.WriteByte(' ')
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n   a b c d e f g h\n")
	return sb.String()
}
