package board

import (
	"errors"
	"fmt"
)

// ErrCannotPromote is returned by Promote for a piece that is not a pawn on
// its last rank, or for a target type a pawn cannot become.
var ErrCannotPromote = errors.New("cannot promote")

// castleSquares returns the king destination and the rook source and
// destination for castling on the given side.
func castleSquares(c Color, kingside bool) (kingTo, rookFrom, rookTo Square) {
	rank := 0
	if c == Black {
		rank = 7
	}
	if kingside {
		return NewSquare(6, rank), NewSquare(7, rank), NewSquare(5, rank)
	}
	return NewSquare(2, rank), NewSquare(0, rank), NewSquare(3, rank)
}

// homeKingSquare is e1 for white and e8 for black.
func homeKingSquare(c Color) Square {
	if c == Black {
		return E8
	}
	return E1
}

// CanCastle reports whether the king on kingSq may castle with the rook on
// rookSq. Both pieces must be unmoved and the king on its home square,
// every square between them empty, and the king must not be in check nor
// cross or land on an attacked square. The b-file square on the queen side
// only needs to be empty.
func (b *Board) CanCastle(kingSq, rookSq Square) bool {
	king, ok := b.PieceAt(kingSq)
	if !ok || king.Type != King || king.Moved || kingSq != homeKingSquare(king.Color) {
		return false
	}
	rook, ok := b.PieceAt(rookSq)
	if !ok || rook.Type != Rook || rook.Moved || rook.Color != king.Color {
		return false
	}
	if rookSq.Rank() != kingSq.Rank() || (rookSq.File() != 0 && rookSq.File() != 7) {
		return false
	}
	if !b.IsClearPath(kingSq, rookSq) {
		return false
	}

	enemy := king.Color.Other()
	kingTo, _, rookTo := castleSquares(king.Color, rookSq.File() == 7)
	for _, sq := range []Square{kingSq, rookTo, kingTo} {
		if b.IsSquareAttacked(sq, enemy) {
			return false
		}
	}
	return true
}

// CastleDestination maps a castling request to the king's landing square.
// A king may be sent either two files toward a rook or onto its own rook.
// ok is false if the request is not a castling request at all.
func (b *Board) CastleDestination(from, to Square) (kingTo Square, ok bool) {
	if b.Classify(from, to) != Castling {
		return NoSquare, false
	}
	king, _ := b.PieceAt(from)
	kingTo, _, _ = castleSquares(king.Color, to.File() > from.File())
	return kingTo, true
}

// EnPassantTarget returns the square the pawn on sq would land on when
// capturing en passant. The previous move must have been an enemy pawn's
// double step ending beside it.
func (b *Board) EnPassantTarget(sq Square) (Square, bool) {
	p, ok := b.PieceAt(sq)
	if !ok || p.Type != Pawn {
		return NoSquare, false
	}
	last := b.last
	if !last.IsDoublePawnPush() || last.Piece.Color == p.Color {
		return NoSquare, false
	}
	if last.To.Rank() != sq.Rank() {
		return NoSquare, false
	}
	if d := last.To.File() - sq.File(); d != 1 && d != -1 {
		return NoSquare, false
	}
	// The pawn that double-stepped must still be there.
	if victim, ok := b.PieceAt(last.To); !ok || victim.Type != Pawn || victim.Color == p.Color {
		return NoSquare, false
	}
	to, ok := last.To.Offset(0, p.Color.forward())
	if !ok || !b.IsEmpty(to) {
		return NoSquare, false
	}
	return to, true
}

// Classify determines how a move from one square to another would be
// executed. It only looks at geometry and the last move; it does not check
// that the move is allowed.
func (b *Board) Classify(from, to Square) MoveKind {
	p, ok := b.PieceAt(from)
	if !ok || !to.IsValid() {
		return Normal
	}
	switch p.Type {
	case King:
		if from.Rank() != to.Rank() {
			return Normal
		}
		df := to.File() - from.File()
		if df == 2 || df == -2 {
			return Castling
		}
		if target, ok := b.PieceAt(to); ok && target.Color == p.Color && target.Type == Rook {
			return Castling
		}
	case Pawn:
		if ep, ok := b.EnPassantTarget(from); ok && ep == to {
			return EnPassant
		}
	}
	return Normal
}

// Apply executes m on the board without checking legality and returns the
// captured piece, if any. Castling moves the rook as well and records the
// king's move as the last move. En passant removes the passed pawn. A move
// carrying a promotion type promotes the pawn when it reaches the last
// rank.
func (b *Board) Apply(m Move) (captured Piece) {
	switch m.Kind {
	case Castling:
		king, _ := b.PieceAt(m.From)
		kingTo, rookFrom, rookTo := castleSquares(king.Color, m.To.File() > m.From.File())
		b.Move(rookFrom, rookTo)
		b.Move(m.From, kingTo)
		return Piece{}
	case EnPassant:
		victim := NewSquare(m.To.File(), m.From.Rank())
		captured, _ = b.Remove(victim)
		b.Move(m.From, m.To)
		return captured
	}

	captured = b.Move(m.From, m.To)
	if m.IsPromotion() {
		if p, _ := b.PieceAt(m.To); p.CanPromote() {
			// Promotion type was validated by the caller; a bad one just
			// leaves the pawn in place for PromotePawn to handle.
			_ = b.Promote(m.To, m.Promotion)
		}
	}
	return captured
}

// CanPromote reports whether p is a pawn standing on its last rank.
func (p Piece) CanPromote() bool {
	return p.Type == Pawn && p.Square.RelativeRank(p.Color) == Size-1
}

// IsPromotionType reports whether a pawn may become pt.
func IsPromotionType(pt PieceType) bool {
	return pt == Knight || pt == Bishop || pt == Rook || pt == Queen
}

// Promote replaces the pawn on sq with a new piece of type pt.
func (b *Board) Promote(sq Square, pt PieceType) error {
	p, ok := b.PieceAt(sq)
	if !ok || !p.CanPromote() {
		return fmt.Errorf("%w: no pawn on last rank at %s", ErrCannotPromote, sq)
	}
	if !IsPromotionType(pt) {
		return fmt.Errorf("%w: pawn cannot become %s", ErrCannotPromote, pt)
	}
	np := NewPiece(pt, p.Color, sq)
	np.Moved = true
	b.cells[sq] = np
	if b.last.To == sq {
		b.last.Piece = np
	}
	return nil
}
