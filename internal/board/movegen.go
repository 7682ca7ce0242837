package board

// offset is a (file, rank) step.
type offset struct{ df, dr int }

var (
	orthogonals   = []offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonals     = []offset{{1, 1}, {-1, -1}, {1, -1}, {-1, 1}}
	allDirections = append(append([]offset{}, orthogonals...), diagonals...)
	knightOffsets = []offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
)

// moveRule describes how a piece type moves: its step vectors and whether
// it keeps sliding along them until blocked.
type moveRule struct {
	offsets []offset
	sliding bool
}

// moveRules is indexed by PieceType. Pawns have no entry; their moves
// depend on color and occupancy and are generated by pawnMoves.
var moveRules = [7]moveRule{
	Knight: {offsets: knightOffsets},
	Bishop: {offsets: diagonals, sliding: true},
	Rook:   {offsets: orthogonals, sliding: true},
	Queen:  {offsets: allDirections, sliding: true},
	King:   {offsets: allDirections},
}

// reach classifies a destination square while scanning a direction.
type reach uint8

const (
	blocked       reach = iota // own piece: stop, exclude
	captureStop                // enemy piece: include, stop
	emptyStop                  // empty, stepping piece: include, stop
	emptyContinue              // empty, sliding piece: include, keep scanning
)

func (b *Board) classify(p Piece, to Square, sliding bool) reach {
	target, occupied := b.PieceAt(to)
	switch {
	case !occupied && sliding:
		return emptyContinue
	case !occupied:
		return emptyStop
	case target.Color != p.Color:
		return captureStop
	default:
		return blocked
	}
}

// basicMoves scans the piece's offsets. For a king this is the one-step
// set without castling.
func (b *Board) basicMoves(p Piece) []Square {
	rule := moveRules[p.Type]
	moves := make([]Square, 0, 28)
	for _, off := range rule.offsets {
		to := p.Square
		for {
			var ok bool
			to, ok = to.Offset(off.df, off.dr)
			if !ok {
				break
			}
			r := b.classify(p, to, rule.sliding)
			if r == blocked {
				break
			}
			moves = append(moves, to)
			if r != emptyContinue {
				break
			}
		}
	}
	return moves
}

// pawnMoves generates pushes, the double step from the starting rank,
// diagonal captures and en passant.
func (b *Board) pawnMoves(p Piece) []Square {
	moves := make([]Square, 0, 4)
	dir := p.Color.forward()

	if one, ok := p.Square.Offset(0, dir); ok && b.IsEmpty(one) {
		moves = append(moves, one)
		// Both squares must be empty; pawns never jump.
		if !p.Moved && p.Square.RelativeRank(p.Color) == 1 {
			if two, ok := p.Square.Offset(0, 2*dir); ok && b.IsEmpty(two) {
				moves = append(moves, two)
			}
		}
	}

	for _, df := range []int{-1, 1} {
		to, ok := p.Square.Offset(df, dir)
		if !ok {
			continue
		}
		if target, occupied := b.PieceAt(to); occupied && target.Color != p.Color {
			moves = append(moves, to)
		}
	}

	if to, ok := b.EnPassantTarget(p.Square); ok {
		moves = append(moves, to)
	}
	return moves
}

// RawMoves returns the destinations the piece on sq can reach by its
// movement rules, including castling and en passant, without checking
// whether the move leaves its own king in check.
func (b *Board) RawMoves(sq Square) []Square {
	p, ok := b.PieceAt(sq)
	if !ok {
		return nil
	}
	switch p.Type {
	case Pawn:
		return b.pawnMoves(p)
	case King:
		moves := b.basicMoves(p)
		for _, kingside := range []bool{true, false} {
			kingTo, rookFrom, _ := castleSquares(p.Color, kingside)
			if b.CanCastle(sq, rookFrom) {
				moves = append(moves, kingTo)
			}
		}
		return moves
	default:
		return b.basicMoves(p)
	}
}

// LegalMoves returns the destinations of RawMoves that do not leave the
// mover's king in check.
func (b *Board) LegalMoves(sq Square) []Square {
	raw := b.RawMoves(sq)
	legal := make([]Square, 0, len(raw))
	for _, to := range raw {
		if b.IsLegal(b.resolve(sq, to)) {
			legal = append(legal, to)
		}
	}
	return legal
}

// resolve builds the move from sq to to with its kind filled in.
func (b *Board) resolve(sq, to Square) Move {
	return Move{From: sq, To: to, Kind: b.Classify(sq, to)}
}

// GenerateLegalMoves returns every legal move for color c, in square order.
// Promotions are returned once per destination without a promotion piece.
func (b *Board) GenerateLegalMoves(c Color) []Move {
	var moves []Move
	for _, p := range b.PiecesOf(c) {
		for _, to := range b.LegalMoves(p.Square) {
			moves = append(moves, b.resolve(p.Square, to))
		}
	}
	return moves
}

// HasLegalMoves returns true if color c has at least one legal move. It
// stops at the first one found.
func (b *Board) HasLegalMoves(c Color) bool {
	for _, p := range b.PiecesOf(c) {
		for _, to := range b.RawMoves(p.Square) {
			if b.IsLegal(b.resolve(p.Square, to)) {
				return true
			}
		}
	}
	return false
}

// InCheck returns true if the king of color c is attacked.
func (b *Board) InCheck(c Color) bool {
	ksq, ok := b.FindKing(c)
	if !ok {
		return false
	}
	return b.IsSquareAttacked(ksq, c.Other())
}

// IsCheckmate returns true if color c is in check and has no legal move.
func (b *Board) IsCheckmate(c Color) bool {
	return b.InCheck(c) && !b.HasLegalMoves(c)
}

// IsStalemate returns true if color c is not in check and has no legal move.
func (b *Board) IsStalemate(c Color) bool {
	return !b.InCheck(c) && !b.HasLegalMoves(c)
}
