package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrInvalidFEN is wrapped by every ParseFEN error.
var ErrInvalidFEN = errors.New("invalid FEN")

// FENPosition is the result of parsing a FEN string.
type FENPosition struct {
	Board          *Board
	SideToMove     Color
	HalfMoveClock  int
	FullMoveNumber int
}

func fenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFEN, fmt.Sprintf(format, args...))
}

// ParseFEN parses a FEN string into a board.
//
// The board has no castling-rights field of its own, so rights are mapped
// onto moved flags: a king or rook keeps its unmoved flag only if some
// castling right still needs it. Pawns count as unmoved on their starting
// rank. The en passant square becomes the board's last move.
func ParseFEN(fen string) (*FENPosition, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fenError("need at least 4 fields, got %d", len(parts))
	}

	pos := &FENPosition{Board: NewEmpty(), FullMoveNumber: 1}

	// Parse piece placement (field 0)
	if err := parsePiecePlacement(pos.Board, parts[0]); err != nil {
		return nil, err
	}

	// Parse side to move (field 1)
	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fenError("invalid side to move: %s", parts[1])
	}

	// Parse castling rights (field 2)
	if err := applyCastlingRights(pos.Board, parts[2]); err != nil {
		return nil, err
	}

	// Parse en passant square (field 3)
	if parts[3] != "-" {
		if err := applyEnPassant(pos.Board, parts[3], pos.SideToMove); err != nil {
			return nil, err
		}
	}

	// Parse half-move clock (field 4, optional)
	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fenError("invalid half-move clock: %s", parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	// Parse full-move number (field 5, optional)
	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, fenError("invalid full-move number: %s", parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
func parsePiecePlacement(b *Board, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fenError("need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fenError("too many squares in rank %d", rank+1)
			}

			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}

			pt, ok := PieceTypeFromLetter(byte(c))
			if !ok {
				return fenError("invalid piece character: %c", c)
			}
			color := White
			if c >= 'a' && c <= 'z' {
				color = Black
			}
			sq := NewSquare(file, rank)
			p := NewPiece(pt, color, sq)
			p.Moved = !onHomeSquare(p)
			b.Place(p, sq)
			file++
		}

		if file != 8 {
			return fenError("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// onHomeSquare reports whether p stands where a piece of its kind starts.
func onHomeSquare(p Piece) bool {
	if p.Type == Pawn {
		return p.Square.RelativeRank(p.Color) == 1
	}
	if p.Square.RelativeRank(p.Color) != 0 {
		return false
	}
	file := p.Square.File()
	if backRank[file] == p.Type {
		return true
	}
	return false
}

// applyCastlingRights marks kings and rooks as moved unless a castling
// right keeps them unmoved.
func applyCastlingRights(b *Board, castling string) error {
	var rights [2][2]bool // [color][kingside]
	if castling != "-" {
		for _, c := range castling {
			switch c {
			case 'K':
				rights[White][1] = true
			case 'Q':
				rights[White][0] = true
			case 'k':
				rights[Black][1] = true
			case 'q':
				rights[Black][0] = true
			default:
				return fenError("invalid castling character: %c", c)
			}
		}
	}

	for _, c := range []Color{White, Black} {
		for side, kingside := range []bool{false, true} {
			_, rookFrom, _ := castleSquares(c, kingside)
			if rook, ok := b.PieceAt(rookFrom); ok && rook.Type == Rook && rook.Color == c {
				rook.Moved = !rights[c][side]
				b.cells[rookFrom] = rook
			}
		}
		home := homeKingSquare(c)
		if king, ok := b.PieceAt(home); ok && king.Type == King && king.Color == c {
			king.Moved = !rights[c][0] && !rights[c][1]
			b.cells[home] = king
		}
	}
	return nil
}

// applyEnPassant records the double step that created the en passant
// square as the board's last move.
func applyEnPassant(b *Board, field string, sideToMove Color) error {
	ep, err := ParseSquare(field)
	if err != nil {
		return fenError("invalid en passant square: %s", field)
	}
	mover := sideToMove.Other()
	dir := mover.forward()
	to, ok1 := ep.Offset(0, dir)
	from, ok2 := ep.Offset(0, -dir)
	if !ok1 || !ok2 {
		return fenError("en passant square %s on wrong rank", field)
	}
	p, ok := b.PieceAt(to)
	if !ok || p.Type != Pawn || p.Color != mover {
		return fenError("no pawn behind en passant square %s", field)
	}
	b.SetLastMove(from, to, p)
	return nil
}

// ToFEN returns the FEN representation of the board.
func (b *Board) ToFEN(sideToMove Color, halfMoveClock, fullMoveNumber int) string {
	var sb strings.Builder

	// Piece placement
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			p, ok := b.PieceAt(NewSquare(file, rank))
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(p.Letter())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	// Side to move
	sb.WriteByte(' ')
	if sideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(b.castlingString())

	sb.WriteByte(' ')
	if b.last.IsDoublePawnPush() {
		sq, _ := b.last.To.Offset(0, -b.last.Piece.Color.forward())
		sb.WriteString(sq.String())
	} else {
		sb.WriteByte('-')
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(halfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(fullMoveNumber))

	return sb.String()
}

// castlingString derives FEN castling rights from the moved flags.
func (b *Board) castlingString() string {
	var sb strings.Builder
	for _, c := range []Color{White, Black} {
		king, ok := b.PieceAt(homeKingSquare(c))
		if !ok || king.Type != King || king.Color != c || king.Moved {
			continue
		}
		for _, kingside := range []bool{true, false} {
			_, rookFrom, _ := castleSquares(c, kingside)
			rook, ok := b.PieceAt(rookFrom)
			if !ok || rook.Type != Rook || rook.Color != c || rook.Moved {
				continue
			}
			letter := byte('Q')
			if kingside {
				letter = 'K'
			}
			if c == Black {
				letter += 'a' - 'A'
			}
			sb.WriteByte(letter)
		}
	}
	if sb.Len() == 0 {
		return "-"
	}
	return sb.String()
}
