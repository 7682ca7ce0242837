package board

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSquare(t *testing.T) {
	tests := []struct {
		in      string
		want    Square
		wantErr bool
	}{
		{"a1", A1, false},
		{"h8", H8, false},
		{"e4", E4, false},
		{"i1", NoSquare, true},
		{"a9", NoSquare, true},
		{"a", NoSquare, true},
		{"", NoSquare, true},
	}
	for _, tc := range tests {
		got, err := ParseSquare(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSquare(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidSquare) {
			t.Errorf("ParseSquare(%q) err = %v, want ErrInvalidSquare", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseSquare(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSquareOffset(t *testing.T) {
	if sq, ok := A1.Offset(-1, 0); ok || sq != NoSquare {
		t.Errorf("A1.Offset(-1,0) = %v, %v", sq, ok)
	}
	if sq, ok := H1.Offset(1, 0); ok {
		t.Errorf("H1.Offset(1,0) wrapped to %v", sq)
	}
	if sq, ok := E2.Offset(0, 2); !ok || sq != E4 {
		t.Errorf("E2.Offset(0,2) = %v, %v", sq, ok)
	}
}

func TestStartingPosition(t *testing.T) {
	b := New()

	if got := len(b.Pieces()); got != 32 {
		t.Fatalf("start position has %d pieces, want 32", got)
	}
	k, ok := b.PieceAt(E1)
	if !ok || k.Type != King || k.Color != White || k.Moved {
		t.Errorf("PieceAt(e1) = %+v", k)
	}
	if k.ID != "Ke1" {
		t.Errorf("king ID = %q, want Ke1", k.ID)
	}
	q, _ := b.PieceAt(D8)
	if q.Type != Queen || q.Color != Black {
		t.Errorf("PieceAt(d8) = %+v", q)
	}
	for _, sq := range []Square{E4, D5, A3, H6} {
		if !b.IsEmpty(sq) {
			t.Errorf("%s should be empty", sq)
		}
	}
	if !b.LastMove().IsZero() {
		t.Errorf("fresh board has a last move: %+v", b.LastMove())
	}
	if got, want := b.ToFEN(White, 0, 1), StartFEN; got != want {
		t.Errorf("ToFEN = %q, want %q", got, want)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	b := New()
	c := b.Copy()
	if !b.Equal(c) {
		t.Fatal("copy differs from original")
	}

	c.Move(E2, E4)
	if b.Equal(c) {
		t.Fatal("moving on the copy changed equality")
	}
	p, ok := b.PieceAt(E2)
	if !ok || p.Moved {
		t.Errorf("original pawn changed: %+v", p)
	}
	if !b.LastMove().IsZero() {
		t.Error("original picked up the copy's last move")
	}
}

func TestPlaceAndRemove(t *testing.T) {
	b := NewEmpty()
	b.Place(NewPiece(Knight, Black, C3), C3)

	p, ok := b.PieceAt(C3)
	if !ok || p.Square != C3 {
		t.Fatalf("PieceAt(c3) = %+v, %v", p, ok)
	}
	got, ok := b.Remove(C3)
	if !ok || got.Type != Knight {
		t.Errorf("Remove(c3) = %+v, %v", got, ok)
	}
	if _, ok := b.Remove(C3); ok {
		t.Error("second Remove found a piece")
	}
}

func TestPlaceInvalidSquarePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Place on NoSquare did not panic")
		}
	}()
	NewEmpty().Place(NewPiece(Pawn, White, A2), NoSquare)
}

func TestParsePiece(t *testing.T) {
	tests := []struct {
		in   string
		want Piece
	}{
		{"Ke1", Piece{Color: White, Type: King, Square: E1, ID: "Ke1"}},
		{"pd7", Piece{Color: Black, Type: Pawn, Square: D7, ID: "pd7"}},
		{"Ra1*", Piece{Color: White, Type: Rook, Square: A1, Moved: true, ID: "Ra1"}},
	}
	for _, tc := range tests {
		got, err := ParsePiece(tc.in)
		if err != nil {
			t.Errorf("ParsePiece(%q): %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParsePiece(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}

	for _, bad := range []string{"", "X", "Xe1", "Ke9", "Kee1"} {
		if _, err := ParsePiece(bad); err == nil {
			t.Errorf("ParsePiece(%q) succeeded", bad)
		}
	}
}

func TestPawnMoves(t *testing.T) {
	b := New()
	if diff := cmp.Diff([]Square{E3, E4}, b.LegalMoves(E2)); diff != "" {
		t.Errorf("e2 pawn moves (-want +got):\n%s", diff)
	}

	// A blocker on e3 stops both pushes; pawns never jump.
	b.Place(NewPiece(Knight, Black, E3), E3)
	if got := b.LegalMoves(E2); len(got) != 0 {
		t.Errorf("blocked pawn moves = %v, want none", got)
	}

	// A blocker on e4 leaves the single step.
	b.Remove(E3)
	b.Place(NewPiece(Knight, Black, E4), E4)
	if diff := cmp.Diff([]Square{E3}, b.LegalMoves(E2)); diff != "" {
		t.Errorf("pawn with e4 blocked (-want +got):\n%s", diff)
	}
}

func TestMovedPawnHasNoDoubleStep(t *testing.T) {
	b := NewEmpty()
	p := NewPiece(Pawn, White, E2)
	p.Moved = true
	b.Place(p, E2)
	b.Place(NewPiece(King, White, A1), A1)
	b.Place(NewPiece(King, Black, H8), H8)

	if diff := cmp.Diff([]Square{E3}, b.LegalMoves(E2)); diff != "" {
		t.Errorf("moved pawn (-want +got):\n%s", diff)
	}
}

func TestEnPassant(t *testing.T) {
	b := New()
	play := func(uci string) {
		t.Helper()
		m, err := ParseMove(uci, b)
		if err != nil {
			t.Fatal(err)
		}
		if !b.IsLegal(m) {
			t.Fatalf("%s illegal on%s", uci, b)
		}
		b.Apply(m)
	}

	play("e2e4")
	play("a7a6")
	play("e4e5")
	play("d7d5")

	to, ok := b.EnPassantTarget(E5)
	if !ok || to != D6 {
		t.Fatalf("EnPassantTarget(e5) = %v, %v, want d6", to, ok)
	}
	if kind := b.Classify(E5, D6); kind != EnPassant {
		t.Fatalf("Classify(e5,d6) = %v", kind)
	}

	c := b.Copy()
	captured := c.Apply(Move{From: E5, To: D6, Kind: EnPassant})
	if captured.Type != Pawn || captured.Color != Black {
		t.Errorf("captured = %+v", captured)
	}
	if !c.IsEmpty(D5) {
		t.Error("d5 pawn not removed")
	}

	// The right expires after any other move.
	play("h2h3")
	play("h7h6")
	if _, ok := b.EnPassantTarget(E5); ok {
		t.Error("en passant still available a move later")
	}
}

func TestCastlingRules(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		king Square
		want []Square // castling destinations present in LegalMoves
	}{
		{"both sides", "4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1", E1, []Square{G1, C1}},
		{"in check", "4k3/8/8/8/8/8/4r3/R3K2R w KQ - 0 1", E1, nil},
		{"through attacked f1", "4k3/8/8/8/8/5r2/8/R3K2R w KQ - 0 1", E1, []Square{C1}},
		{"landing attacked g1", "4k3/8/8/8/8/6r1/8/R3K2R w KQ - 0 1", E1, []Square{C1}},
		{"b1 attacked is fine", "1r2k3/8/8/8/8/8/8/R3K2R w KQ - 0 1", E1, []Square{G1, C1}},
		{"b1 occupied", "4k3/8/8/8/8/8/8/RN2K2R w KQ - 0 1", E1, []Square{G1}},
		{"rook moved", "4k3/8/8/8/8/8/8/R3K2R w K - 0 1", E1, []Square{G1}},
		{"king moved", "4k3/8/8/8/8/8/8/R3K2R w - - 0 1", E1, nil},
		{"black", "r3k2r/8/8/8/8/8/8/4K3 b kq - 0 1", E8, []Square{G8, C8}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos := mustParseFEN(t, tc.fen)
			var got []Square
			for _, to := range pos.Board.LegalMoves(tc.king) {
				if pos.Board.Classify(tc.king, to) == Castling {
					got = append(got, to)
				}
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("castling moves (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCastlingMovesRook(t *testing.T) {
	pos := mustParseFEN(t, "4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1")
	b := pos.Board

	// Moving the king onto its own rook is a castling request too.
	kingTo, ok := b.CastleDestination(E1, H1)
	if !ok || kingTo != G1 {
		t.Fatalf("CastleDestination(e1,h1) = %v, %v", kingTo, ok)
	}

	b.Apply(Move{From: E1, To: G1, Kind: Castling})
	k, _ := b.PieceAt(G1)
	r, _ := b.PieceAt(F1)
	if k.Type != King || r.Type != Rook || !k.Moved || !r.Moved {
		t.Errorf("after O-O: g1=%+v f1=%+v", k, r)
	}
	if !b.IsEmpty(E1) || !b.IsEmpty(H1) {
		t.Error("e1/h1 not vacated")
	}
	if lm := b.LastMove(); lm.From != E1 || lm.To != G1 {
		t.Errorf("last move = %+v, want king e1-g1", lm)
	}
}

func TestPinnedPieceCannotMove(t *testing.T) {
	pos := mustParseFEN(t, "4k3/4r3/8/8/8/8/4B3/4K3 w - - 0 1")
	if got := pos.Board.LegalMoves(E2); len(got) != 0 {
		t.Errorf("pinned bishop moves = %v", got)
	}
	if got := pos.Board.RawMoves(E2); len(got) == 0 {
		t.Error("pinned bishop should still have raw moves")
	}
}

func TestIsSquareAttacked(t *testing.T) {
	b := New()
	tests := []struct {
		sq   Square
		by   Color
		want bool
	}{
		{E3, White, true},  // pawns d2/f2
		{E4, White, false}, // pawn pushes are not attacks
		{F3, White, true},  // knight g1
		{E6, Black, true},
		{E5, Black, false},
		{D1, White, true}, // defended by own king
	}
	for _, tc := range tests {
		if got := b.IsSquareAttacked(tc.sq, tc.by); got != tc.want {
			t.Errorf("IsSquareAttacked(%s, %s) = %v, want %v", tc.sq, tc.by, got, tc.want)
		}
	}

	if diff := cmp.Diff([]Square{D1, E1, F1, G1}, b.Attackers(E2, White)); diff != "" {
		t.Errorf("Attackers(e2) (-want +got):\n%s", diff)
	}
}

func TestPromote(t *testing.T) {
	b := NewEmpty()
	b.Place(NewPiece(Pawn, White, A7), A7)
	b.Move(A7, A8)

	if err := b.Promote(A8, King); !errors.Is(err, ErrCannotPromote) {
		t.Errorf("Promote to king err = %v", err)
	}
	if err := b.Promote(A8, Queen); err != nil {
		t.Fatalf("Promote: %v", err)
	}
	q, _ := b.PieceAt(A8)
	if q.Type != Queen || q.Color != White || !q.Moved {
		t.Errorf("promoted piece = %+v", q)
	}
	if err := b.Promote(A8, Queen); err == nil {
		t.Error("promoting a queen succeeded")
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
		"4k3/8/8/8/8/8/8/R3K2R b Q - 5 40",
	}
	for _, fen := range fens {
		pos := mustParseFEN(t, fen)
		got := pos.Board.ToFEN(pos.SideToMove, pos.HalfMoveClock, pos.FullMoveNumber)
		if got != fen {
			t.Errorf("round trip:\n got %s\nwant %s", got, fen)
		}
	}

	for _, bad := range []string{"", "8/8/8 w - -", "8/8/8/8/8/8/8/8 x - -", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq e3"} {
		if _, err := ParseFEN(bad); !errors.Is(err, ErrInvalidFEN) {
			t.Errorf("ParseFEN(%q) err = %v, want ErrInvalidFEN", bad, err)
		}
	}
}

func TestSAN(t *testing.T) {
	tests := []struct {
		fen  string
		move Move
		want string
	}{
		{StartFEN, Move{From: E2, To: E4}, "e4"},
		{StartFEN, Move{From: G1, To: F3}, "Nf3"},
		{"4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1", Move{From: E1, To: G1, Kind: Castling}, "O-O"},
		{"4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1", Move{From: E1, To: C1, Kind: Castling}, "O-O-O"},
		{"4k3/8/8/8/8/8/8/R3K2R w KQ - 0 1", Move{From: A1, To: A8}, "Ra8+"},
		{"4k3/8/8/8/8/8/8/R6R w - - 0 1", Move{From: A1, To: D1}, "Rad1"},
		{"7k/R7/8/8/8/8/8/R6K w - - 0 1", Move{From: A1, To: A4}, "R1a4"},
		{"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3", Move{From: E5, To: F6, Kind: EnPassant}, "exf6"},
		{"8/P6k/8/8/8/8/8/K7 w - - 0 1", Move{From: A7, To: A8, Promotion: Queen}, "a8=Q"},
		{"6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1", Move{From: A1, To: A8}, "Ra8#"},
	}
	for _, tc := range tests {
		pos := mustParseFEN(t, tc.fen)
		if got := pos.Board.SAN(tc.move); got != tc.want {
			t.Errorf("SAN(%s) on %q = %q, want %q", tc.move, tc.fen, got, tc.want)
		}
	}
}

func TestParseSAN(t *testing.T) {
	b := New()
	m, err := b.ParseSAN("Nf3", White)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Move{From: G1, To: F3}, m); diff != "" {
		t.Errorf("ParseSAN(Nf3) (-want +got):\n%s", diff)
	}
	if _, err := b.ParseSAN("Nf6", White); err == nil {
		t.Error("ParseSAN accepted an impossible move")
	}

	pos := mustParseFEN(t, "8/P6k/8/8/8/8/8/K7 w - - 0 1")
	m, err = pos.Board.ParseSAN("a8=N", White)
	if err != nil {
		t.Fatal(err)
	}
	if m.Promotion != Knight {
		t.Errorf("promotion = %v, want Knight", m.Promotion)
	}
}

func TestHash(t *testing.T) {
	a := New()
	b := New()
	if a.Hash() != b.Hash() {
		t.Fatal("equal boards hash differently")
	}

	b.Apply(Move{From: G1, To: F3})
	b.Apply(Move{From: F3, To: G1})
	if a.Hash() == b.Hash() {
		t.Error("moved flag should change the hash")
	}

	c := New()
	c.Apply(Move{From: E2, To: E4})
	d := New()
	d.Apply(Move{From: E2, To: E3})
	d.Apply(Move{From: E3, To: E4})
	if c.Hash() == d.Hash() {
		t.Error("en passant opportunity should change the hash")
	}
}
