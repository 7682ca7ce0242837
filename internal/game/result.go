package game

// MoveResult tells why a requested move was or was not applied.
type MoveResult int

const (
	Success MoveResult = iota
	InvalidPosition
	NoPiece
	NotYourTurn
	InvalidMove
	IllegalMove
	Castle
	EnPassant
	GameOver
	AwaitingPromotion
)

var moveResultNames = [...]string{
	Success:           "success",
	InvalidPosition:   "invalid position",
	NoPiece:           "no piece",
	NotYourTurn:       "not your turn",
	InvalidMove:       "invalid move",
	IllegalMove:       "illegal move",
	Castle:            "castle",
	EnPassant:         "en passant",
	GameOver:          "game over",
	AwaitingPromotion: "awaiting promotion",
}

func (r MoveResult) String() string {
	if r < 0 || int(r) >= len(moveResultNames) {
		return "unknown"
	}
	return moveResultNames[r]
}

// Applied reports whether the board changed.
func (r MoveResult) Applied() bool {
	return r == Success || r == Castle || r == EnPassant
}

// Message returns a sentence suitable for showing to a player.
func (r MoveResult) Message() string {
	switch r {
	case Success:
		return "Move played."
	case Castle:
		return "Castled."
	case EnPassant:
		return "Captured en passant."
	case InvalidPosition:
		return "Invalid position."
	case NoPiece:
		return "There is no piece on the starting square."
	case NotYourTurn:
		return "It is not your turn."
	case InvalidMove:
		return "That piece cannot move there."
	case IllegalMove:
		return "That move would leave your king in check."
	case GameOver:
		return "The game is over."
	case AwaitingPromotion:
		return "A pawn is waiting to be promoted."
	default:
		return "Unknown result."
	}
}

// EndType is the outcome of a terminal-state check for the side to move.
type EndType int

const (
	Continue EndType = iota
	Checkmate
	Stalemate
)

func (e EndType) String() string {
	switch e {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "continue"
	}
}
