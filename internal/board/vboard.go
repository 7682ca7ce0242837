package board

// IsLegal reports whether m can be played without leaving the mover's king
// in check. The move is applied in full (rook hop, en passant victim) to a
// scratch copy of the board; the receiver is never touched.
func (b *Board) IsLegal(m Move) bool {
	p, ok := b.PieceAt(m.From)
	if !ok || !m.To.IsValid() {
		return false
	}
	if m.Kind == Castling {
		_, rookFrom, _ := castleSquares(p.Color, m.To.File() > m.From.File())
		if !b.CanCastle(m.From, rookFrom) {
			return false
		}
	}
	scratch := b.Simulate(m)
	return !scratch.InCheck(p.Color)
}

// Simulate returns a copy of the board with m applied.
func (b *Board) Simulate(m Move) Board {
	scratch := *b
	scratch.Apply(m)
	return scratch
}
