package board

import "fmt"

// MoveKind tells how a move is executed on the board.
type MoveKind uint8

const (
	Normal MoveKind = iota
	Castling
	EnPassant
)

// String returns the move kind name.
func (k MoveKind) String() string {
	switch k {
	case Castling:
		return "castling"
	case EnPassant:
		return "en passant"
	default:
		return "normal"
	}
}

// Move is a resolved board move. Promotion is NoPieceType unless the move
// carries an explicit promotion choice.
type Move struct {
	From      Square
	To        Square
	Kind      MoveKind
	Promotion PieceType
}

// NoMove represents an invalid or null move.
var NoMove = Move{From: NoSquare, To: NoSquare}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Kind == Castling
}

// IsPromotion returns true if the move names a promotion piece.
func (m Move) IsPromotion() bool {
	return m.Promotion != NoPieceType
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if !m.From.IsValid() || !m.To.IsValid() {
		return "0000"
	}
	s := m.From.String() + m.To.String()
	if m.IsPromotion() {
		s += string(m.Promotion.Letter() + ('a' - 'A'))
	}
	return s
}

// ParseMove parses a UCI format move string. The kind is resolved against
// the board so castling and en passant come out right.
func ParseMove(s string, b *Board) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	m := Move{From: from, To: to, Kind: b.Classify(from, to)}
	if len(s) == 5 {
		promo, ok := PieceTypeFromLetter(s[4])
		if !ok || promo == Pawn || promo == King {
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		m.Promotion = promo
	}
	return m, nil
}
