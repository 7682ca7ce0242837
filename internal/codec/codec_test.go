package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
)

func TestExportStartPosition(t *testing.T) {
	got := Export(game.New("", ""))
	want := "WHITE," +
		"Ra1,Nb1,Bc1,Qd1,Ke1,Bf1,Ng1,Rh1," +
		"Pa2,Pb2,Pc2,Pd2,Pe2,Pf2,Pg2,Ph2," +
		"pa7,pb7,pc7,pd7,pe7,pf7,pg7,ph7," +
		"ra8,nb8,bc8,qd8,ke8,bf8,ng8,rh8"
	if got != want {
		t.Errorf("Export:\n got %s\nwant %s", got, want)
	}
}

func TestImportExample(t *testing.T) {
	s, err := Import("WHITE,Ke1,Qd1,ra8,ke8", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if s.Turn() != board.White {
		t.Errorf("turn = %v", s.Turn())
	}
	var tokens []string
	for _, p := range s.Pieces() {
		tokens = append(tokens, p.Token())
	}
	if diff := cmp.Diff([]string{"Qd1", "Ke1", "ra8", "ke8"}, tokens); diff != "" {
		t.Errorf("pieces (-want +got):\n%s", diff)
	}
}

func TestImportLenient(t *testing.T) {
	s, err := Import("  black , Ke1,, ke8 ,Ra1*,\n", "w", "b")
	if err != nil {
		t.Fatal(err)
	}
	if s.Turn() != board.Black {
		t.Errorf("turn = %v", s.Turn())
	}
	r, _ := s.PieceAt(board.A1)
	if !r.Moved {
		t.Error("'*' marker not honored")
	}
	k, _ := s.PieceAt(board.E1)
	if k.Moved {
		t.Error("unmarked piece imported as moved")
	}
	if s.WhiteName() != "w" || s.BlackName() != "b" {
		t.Errorf("names = %q %q", s.WhiteName(), s.BlackName())
	}
}

func TestRoundTrip(t *testing.T) {
	s := game.New("", "")
	for _, m := range [][2]board.Square{
		{board.E2, board.E4}, {board.D7, board.D5},
		{board.E4, board.D5}, {board.G8, board.F6},
		{board.F1, board.B5}, {board.C7, board.C6},
	} {
		if !s.Play(m[0], m[1]) {
			t.Fatalf("%s-%s rejected", m[0], m[1])
		}

		text := Export(s)
		got, err := Import(text, "", "")
		if err != nil {
			t.Fatalf("Import(%q): %v", text, err)
		}
		if got.Turn() != s.Turn() {
			t.Errorf("turn = %v, want %v", got.Turn(), s.Turn())
		}
		if Export(got) != text {
			t.Errorf("re-export differs:\n got %s\nwant %s", Export(got), text)
		}
		for _, p := range s.Pieces() {
			q, ok := got.PieceAt(p.Square)
			if !ok || q.Type != p.Type || q.Color != p.Color {
				t.Errorf("%s: got %+v, want %+v", p.Square, q, p)
			}
		}
	}
}

func TestRoundTripMarked(t *testing.T) {
	s := game.New("", "")
	s.Play(board.G1, board.F3)
	s.Play(board.G8, board.F6)
	s.Play(board.F3, board.G1)
	s.Play(board.F6, board.G8)

	got, err := Import(ExportWith(s, Options{MarkMoved: true}), "", "")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range s.Pieces() {
		q, _ := got.PieceAt(p.Square)
		if q.Moved != p.Moved {
			t.Errorf("%s moved = %v, want %v", p.Square, q.Moved, p.Moved)
		}
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		index int
	}{
		{"empty", "   ", 0},
		{"bad color", "GREEN,Ke1", 0},
		{"bad letter", "WHITE,Ke1,Xe2", 2},
		{"bad square", "WHITE,Ke1,Qz9", 2},
		{"short token", "WHITE,K", 1},
		{"duplicate square", "WHITE,Ke1,qe1", 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Import(tc.in, "", "")
			if s != nil {
				t.Error("state returned with error")
			}
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("err %T is not *FormatError", err)
			}
			if fe.Index != tc.index {
				t.Errorf("Index = %d, want %d", fe.Index, tc.index)
			}
		})
	}

	_, err := Import("WHITE,Qz9", "", "")
	if !errors.Is(err, board.ErrInvalidSquare) {
		t.Errorf("underlying square error lost: %v", err)
	}
}

func TestReadWrite(t *testing.T) {
	s := game.New("", "")
	s.Play(board.E2, board.E4)

	var buf bytes.Buffer
	if err := Write(&buf, s, Options{}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Error("missing newline")
	}

	got, err := Read(strings.NewReader("\n\n"+buf.String()), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if Export(got) != Export(s) {
		t.Errorf("Read = %s", Export(got))
	}

	if _, err := Read(strings.NewReader("\n \n"), "", ""); !errors.Is(err, ErrFormat) {
		t.Errorf("empty reader err = %v", err)
	}
}
