// Package game runs a chess game on top of the board package: turn order,
// move validation and application, promotion and terminal-state detection.
package game

import (
	"unicode/utf8"

	"github.com/hailam/chessrules/internal/board"
)

// Default player names.
const (
	DefaultWhiteName = "Player 1"
	DefaultBlackName = "Player 2"
)

// MaxNameLen is the longest player name, in characters, a game keeps.
// Longer names are cut.
const MaxNameLen = 64

func clipName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLen {
		return name
	}
	return string([]rune(name)[:MaxNameLen])
}

// State is the complete state of one game. The zero value is not usable;
// create states with New, FromBoard or FromFEN.
//
// State is not safe for concurrent use. Callers sharing a State across
// goroutines must serialize every call.
type State struct {
	board     board.Board
	turn      board.Color
	gameOver  bool
	winner    board.Color
	whiteName string
	blackName string

	// ply counts moves applied since the game was created or imported.
	ply int
	// pending is the square of a pawn waiting for PromotePawn.
	pending board.Square
}

// New creates a game in the starting position. Empty names fall back to
// the defaults and long ones are cut to MaxNameLen.
func New(whiteName, blackName string) *State {
	return FromBoard(board.New(), board.White, whiteName, blackName)
}

// FromBoard creates a game from an existing board. The board is copied.
// Terminal state is evaluated immediately so an imported mate is reported
// as such.
func FromBoard(b *board.Board, turn board.Color, whiteName, blackName string) *State {
	if whiteName == "" {
		whiteName = DefaultWhiteName
	}
	if blackName == "" {
		blackName = DefaultBlackName
	}
	s := &State{
		board:     *b,
		turn:      turn,
		winner:    board.NoColor,
		whiteName: clipName(whiteName),
		blackName: clipName(blackName),
		pending:   board.NoSquare,
	}
	s.pending = s.findPendingPromotion()
	s.CheckGameOver()
	return s
}

// FromFEN creates a game from a FEN string.
func FromFEN(fen, whiteName, blackName string) (*State, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return FromBoard(pos.Board, pos.SideToMove, whiteName, blackName), nil
}

// Clone returns a deep, independent copy of the state.
func (s *State) Clone() *State {
	ns := *s
	return &ns
}

// Equal reports whether two states are identical.
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}

// Board returns a copy of the board. Changes to it do not affect the game.
func (s *State) Board() *board.Board {
	return s.board.Copy()
}

// Turn returns the color to move.
func (s *State) Turn() board.Color {
	return s.turn
}

// GameOver reports whether the last terminal check ended the game.
func (s *State) GameOver() bool {
	return s.gameOver
}

// Winner returns the winning color, or NoColor while the game runs or
// after a stalemate.
func (s *State) Winner() board.Color {
	return s.winner
}

// WhiteName returns the white player's name.
func (s *State) WhiteName() string {
	return s.whiteName
}

// BlackName returns the black player's name.
func (s *State) BlackName() string {
	return s.blackName
}

// SetNames renames the players. Empty names are left unchanged; long
// ones are cut to MaxNameLen.
func (s *State) SetNames(whiteName, blackName string) {
	if whiteName != "" {
		s.whiteName = clipName(whiteName)
	}
	if blackName != "" {
		s.blackName = clipName(blackName)
	}
}

// PlayerName returns the name of the player with color c.
func (s *State) PlayerName(c board.Color) string {
	if c == board.Black {
		return s.blackName
	}
	return s.whiteName
}

// CurrentPlayerName returns the name of the player to move.
func (s *State) CurrentPlayerName() string {
	return s.PlayerName(s.turn)
}

// Ply returns the number of moves applied so far.
func (s *State) Ply() int {
	return s.ply
}

// PendingPromotion returns the square of a pawn that reached its last rank
// and has not been promoted yet.
func (s *State) PendingPromotion() (board.Square, bool) {
	return s.pending, s.pending != board.NoSquare
}

// Hash returns the board hash folded with the side to move.
func (s *State) Hash() uint64 {
	h := s.board.Hash()
	if s.turn == board.Black {
		h ^= board.ZobristSideToMove()
	}
	return h
}

// FEN returns the position as a FEN string.
func (s *State) FEN() string {
	return s.board.ToFEN(s.turn, 0, s.ply/2+1)
}

// PieceAt returns the piece on sq.
func (s *State) PieceAt(sq board.Square) (board.Piece, bool) {
	return s.board.PieceAt(sq)
}

// PieceByID finds a piece by its creation ID.
func (s *State) PieceByID(id string) (board.Piece, bool) {
	return s.board.PieceByID(id)
}

// Pieces returns every piece in square order a1..h8.
func (s *State) Pieces() []board.Piece {
	return s.board.Pieces()
}

// String returns a diagram of the board with the side to move.
func (s *State) String() string {
	return s.board.String() + "\n" + s.turn.String() + " to move (" + s.CurrentPlayerName() + ")\n"
}

func (s *State) findPendingPromotion() board.Square {
	for _, p := range s.board.Pieces() {
		if p.CanPromote() {
			return p.Square
		}
	}
	return board.NoSquare
}
