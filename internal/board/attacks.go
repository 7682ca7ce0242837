package board

// firstPieceAlong walks from sq in direction off and returns the first
// piece met, if any.
func (b *Board) firstPieceAlong(sq Square, off offset) (Piece, bool) {
	to := sq
	for {
		var ok bool
		to, ok = to.Offset(off.df, off.dr)
		if !ok {
			return Piece{}, false
		}
		if p, occupied := b.PieceAt(to); occupied {
			return p, true
		}
	}
}

// pieceAtOffset returns the piece standing df, dr away from sq.
func (b *Board) pieceAtOffset(sq Square, off offset) (Piece, bool) {
	to, ok := sq.Offset(off.df, off.dr)
	if !ok {
		return Piece{}, false
	}
	return b.PieceAt(to)
}

// IsSquareAttacked returns true if any piece of color by attacks sq.
//
// The scan runs outward from sq using the same step vectors the pieces move
// with. Kings only attack one step and never through castling, which keeps
// two kings from recursing into each other. Pawns attack diagonally forward
// only; a push is not an attack.
func (b *Board) IsSquareAttacked(sq Square, by Color) bool {
	if !sq.IsValid() {
		return false
	}

	// A pawn of color by attacks sq from one rank behind it.
	behind := -by.forward()
	for _, df := range []int{-1, 1} {
		if p, ok := b.pieceAtOffset(sq, offset{df, behind}); ok && p.Color == by && p.Type == Pawn {
			return true
		}
	}

	for _, off := range moveRules[Knight].offsets {
		if p, ok := b.pieceAtOffset(sq, off); ok && p.Color == by && p.Type == Knight {
			return true
		}
	}

	for _, off := range moveRules[King].offsets {
		if p, ok := b.pieceAtOffset(sq, off); ok && p.Color == by && p.Type == King {
			return true
		}
	}

	for _, off := range moveRules[Rook].offsets {
		if p, ok := b.firstPieceAlong(sq, off); ok && p.Color == by && (p.Type == Rook || p.Type == Queen) {
			return true
		}
	}

	for _, off := range moveRules[Bishop].offsets {
		if p, ok := b.firstPieceAlong(sq, off); ok && p.Color == by && (p.Type == Bishop || p.Type == Queen) {
			return true
		}
	}

	return false
}

// Attackers returns the squares of every piece of color by attacking sq.
func (b *Board) Attackers(sq Square, by Color) []Square {
	if !sq.IsValid() {
		return nil
	}
	// A stand-in enemy on sq makes the scan include it as a capture.
	scratch := *b
	scratch.cells[sq] = Piece{Type: Pawn, Color: by.Other(), Square: sq}

	var attackers []Square
	for _, p := range b.PiecesOf(by) {
		if p.Square == sq {
			continue
		}
		for _, to := range scratch.attackSet(p) {
			if to == sq {
				attackers = append(attackers, p.Square)
				break
			}
		}
	}
	return attackers
}

// attackSet returns the squares p attacks.
func (b *Board) attackSet(p Piece) []Square {
	if p.Type != Pawn {
		return b.basicMoves(p)
	}
	var squares []Square
	for _, df := range []int{-1, 1} {
		if to, ok := p.Square.Offset(df, p.Color.forward()); ok {
			squares = append(squares, to)
		}
	}
	return squares
}
