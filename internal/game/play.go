package game

import (
	"slices"

	"github.com/hailam/chessrules/internal/board"
)

// Move describes a move that was applied to the game.
type Move struct {
	From     board.Square
	To       board.Square
	Piece    board.Piece
	Captured board.Piece
	Kind     board.MoveKind
	// Promotion is the piece the pawn became, if the move promoted.
	Promotion board.PieceType
	// PromotionPending is set when a pawn reached its last rank and waits
	// for PromotePawn.
	PromotionPending bool
	SAN              string
	Player           board.Color

	Check     bool
	Checkmate bool
	Stalemate bool
}

// IsCapture reports whether the move took a piece.
func (m Move) IsCapture() bool {
	return !m.Captured.IsZero()
}

// Play applies a move and reports whether it was accepted.
func (s *State) Play(from, to board.Square) bool {
	_, res := s.PlayMove(from, to)
	return res.Applied()
}

// PlayMove validates and applies the move from one square to another. A
// pawn reaching its last rank stays a pawn until PromotePawn is called.
func (s *State) PlayMove(from, to board.Square) (Move, MoveResult) {
	return s.play(from, to, board.NoPieceType)
}

// PlayPromote plays a pawn move to the last rank and promotes in one step.
// Unrecognized kinds promote to a queen. For any other move the kind is
// ignored.
func (s *State) PlayPromote(from, to board.Square, kind board.PieceType) (Move, MoveResult) {
	if !board.IsPromotionType(kind) {
		kind = board.Queen
	}
	return s.play(from, to, kind)
}

// Validate returns the move that would be played, or the reason it would
// be rejected. The state is not changed.
func (s *State) Validate(from, to board.Square) (board.Move, MoveResult) {
	if s.gameOver {
		return board.NoMove, GameOver
	}
	if s.pending != board.NoSquare {
		return board.NoMove, AwaitingPromotion
	}
	if !from.IsValid() || !to.IsValid() {
		return board.NoMove, InvalidPosition
	}
	piece, ok := s.board.PieceAt(from)
	if !ok {
		return board.NoMove, NoPiece
	}
	if piece.Color != s.turn {
		return board.NoMove, NotYourTurn
	}

	// A king sent onto its own rook is asking to castle.
	if piece.Type == board.King {
		if kingTo, ok := s.board.CastleDestination(from, to); ok {
			to = kingTo
		}
	}

	m := board.Move{From: from, To: to, Kind: s.board.Classify(from, to)}
	if !slices.Contains(s.board.RawMoves(from), to) {
		return board.NoMove, InvalidMove
	}
	if !s.board.IsLegal(m) {
		return board.NoMove, IllegalMove
	}

	switch m.Kind {
	case board.Castling:
		return m, Castle
	case board.EnPassant:
		return m, EnPassant
	default:
		return m, Success
	}
}

func (s *State) play(from, to board.Square, promo board.PieceType) (Move, MoveResult) {
	m, res := s.Validate(from, to)
	if !res.Applied() {
		return Move{From: from, To: to}, res
	}

	piece, _ := s.board.PieceAt(m.From)
	promotes := piece.Type == board.Pawn && m.To.RelativeRank(piece.Color) == board.Size-1
	if promotes && promo != board.NoPieceType {
		m.Promotion = promo
	}

	rec := Move{
		From:   m.From,
		To:     m.To,
		Piece:  piece,
		Kind:   m.Kind,
		SAN:    s.board.SAN(m),
		Player: s.turn,
	}
	rec.Captured = s.board.Apply(m)

	if promotes && m.IsPromotion() {
		rec.Promotion = m.Promotion
	}
	s.pending = s.findPendingPromotion()
	rec.PromotionPending = s.pending != board.NoSquare

	s.turn = s.turn.Other()
	s.ply++

	end := s.CheckGameOver()
	rec.Check = s.board.InCheck(s.turn)
	rec.Checkmate = end == Checkmate
	rec.Stalemate = end == Stalemate
	return rec, res
}

// PossibleMoves returns the legal destinations of the piece on sq, whoever
// owns it. It returns nil for an empty or invalid square.
func (s *State) PossibleMoves(sq board.Square) []board.Square {
	if _, ok := s.board.PieceAt(sq); !ok {
		return nil
	}
	return s.board.LegalMoves(sq)
}

// LegalMoves returns every legal move for the side to move.
func (s *State) LegalMoves() []board.Move {
	if s.gameOver || s.pending != board.NoSquare {
		return nil
	}
	return s.board.GenerateLegalMoves(s.turn)
}

// PromotePawn replaces the pawn on sq, which must stand on its last rank,
// with a piece of the given kind. Kinds a pawn cannot become promote to a
// queen. The terminal state is re-evaluated afterwards.
func (s *State) PromotePawn(sq board.Square, kind board.PieceType) bool {
	p, ok := s.board.PieceAt(sq)
	if !ok || !p.CanPromote() {
		return false
	}
	if !board.IsPromotionType(kind) {
		kind = board.Queen
	}
	if err := s.board.Promote(sq, kind); err != nil {
		return false
	}
	s.pending = s.findPendingPromotion()
	s.CheckGameOver()
	return true
}

// IsCheck reports whether the king of color c is attacked.
func (s *State) IsCheck(c board.Color) bool {
	return s.board.InCheck(c)
}

// IsCheckmate reports whether color c is checkmated.
func (s *State) IsCheckmate(c board.Color) bool {
	return s.board.IsCheckmate(c)
}

// IsStalemate reports whether color c is stalemated.
func (s *State) IsStalemate(c board.Color) bool {
	return s.board.IsStalemate(c)
}

// CheckGameOver evaluates the side to move and updates gameOver and
// winner accordingly. A position with a pawn still waiting for promotion
// is not judged; PromotePawn evaluates it once the piece is chosen.
func (s *State) CheckGameOver() EndType {
	switch {
	case s.pending != board.NoSquare:
		s.gameOver = false
		s.winner = board.NoColor
		return Continue
	case s.board.IsCheckmate(s.turn):
		s.gameOver = true
		s.winner = s.turn.Other()
		return Checkmate
	case s.board.IsStalemate(s.turn):
		s.gameOver = true
		s.winner = board.NoColor
		return Stalemate
	default:
		s.gameOver = false
		s.winner = board.NoColor
		return Continue
	}
}

// Result returns a short description of how the game ended, or "" while it
// is still running.
func (s *State) Result() string {
	if !s.gameOver {
		return ""
	}
	if s.winner == board.NoColor {
		return "Draw by stalemate"
	}
	return s.winner.String() + " (" + s.PlayerName(s.winner) + ") wins by checkmate"
}
