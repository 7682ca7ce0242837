package board

// Perft counts the leaf nodes of the legal move tree at the given depth.
// Pawn moves to the last rank count once per promotion piece.
func Perft(b *Board, side Color, depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := b.GenerateLegalMoves(side)
	var nodes int64
	for _, m := range moves {
		p, _ := b.PieceAt(m.From)
		promotes := p.Type == Pawn && m.To.RelativeRank(side) == Size-1
		if depth == 1 {
			if promotes {
				nodes += 4
			} else {
				nodes++
			}
			continue
		}
		if promotes {
			for _, pt := range []PieceType{Knight, Bishop, Rook, Queen} {
				m.Promotion = pt
				next := b.Simulate(m)
				nodes += Perft(&next, side.Other(), depth-1)
			}
			continue
		}
		next := b.Simulate(m)
		nodes += Perft(&next, side.Other(), depth-1)
	}
	return nodes
}
