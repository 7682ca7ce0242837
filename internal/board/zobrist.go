package board

// Zobrist hash keys for board hashing.
// Uses PRNG with fixed seed for reproducibility.
var (
	zobristPiece     [2][7][64]uint64 // [Color][PieceType][Square] - 7 to handle NoPieceType safely
	zobristMoved     [64]uint64       // XOR when the piece on the square has moved
	zobristEnPassant [8]uint64        // One per file
	zobristBlack     uint64           // XOR when black to move
)

func init() {
	initZobrist()
}

// Simple PRNG for reproducible Zobrist keys
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x98F107A2BEEF1234) // Fixed seed

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for sq := A1; sq <= H8; sq++ {
				zobristPiece[c][pt][sq] = rng.next()
			}
		}
	}

	for sq := A1; sq <= H8; sq++ {
		zobristMoved[sq] = rng.next()
	}

	for file := 0; file < 8; file++ {
		zobristEnPassant[file] = rng.next()
	}

	zobristBlack = rng.next()
}

// ZobristSideToMove returns the key to fold into a board hash when black
// is to move.
func ZobristSideToMove() uint64 {
	return zobristBlack
}

// Hash computes a Zobrist hash of the board from scratch. Two boards with
// the same pieces, moved flags and en passant opportunity hash the same.
// Piece IDs do not take part.
func (b *Board) Hash() uint64 {
	var hash uint64
	for sq := A1; sq < NoSquare; sq++ {
		p := b.cells[sq]
		if p.IsZero() {
			continue
		}
		hash ^= zobristPiece[p.Color][p.Type][sq]
		if p.Moved {
			hash ^= zobristMoved[sq]
		}
	}
	if b.last.IsDoublePawnPush() {
		hash ^= zobristEnPassant[b.last.To.File()]
	}
	return hash
}
