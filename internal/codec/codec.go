// Package codec converts games to and from the one-line text format
//
//	WHITE,Ke1,Qd1,ra8,ke8
//
// The first field is the color to move; every other field is a piece
// token: letter (upper case for white), file and rank. Import also accepts
// a trailing '*' on a token to mark a piece that has already moved.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
)

// ErrFormat is matched by every import error.
var ErrFormat = errors.New("invalid game data")

// FormatError reports which field of the input could not be used.
type FormatError struct {
	Token string // The offending field, trimmed
	Index int    // 0-based field index; 0 is the color field
	Err   error  // The underlying problem
}

// Error returns a message naming the field and the problem.
func (e *FormatError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%v: field %d: %v", ErrFormat, e.Index, e.Err)
	}
	return fmt.Sprintf("%v: field %d %q: %v", ErrFormat, e.Index, e.Token, e.Err)
}

// Unwrap returns the underlying error.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is makes every FormatError match ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// Options control the exported text.
type Options struct {
	// MarkMoved appends '*' to pieces that have moved, so castling and
	// pawn double-step rights survive a round trip.
	MarkMoved bool
}

// Export writes the state as a single line, pieces in square order a1..h8.
func Export(s *game.State) string {
	return ExportWith(s, Options{})
}

// ExportWith is Export with options.
func ExportWith(s *game.State, opts Options) string {
	var sb strings.Builder
	sb.WriteString(s.Turn().Name())
	for _, p := range s.Pieces() {
		sb.WriteByte(',')
		sb.WriteString(p.Token())
		if opts.MarkMoved && p.Moved {
			sb.WriteByte('*')
		}
	}
	return sb.String()
}

// Import parses a line produced by Export into a new game. The whole input
// is validated before anything is built, so on error nothing is returned.
// Player names are passed through to the new state.
func Import(data, whiteName, blackName string) (*game.State, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, &FormatError{Index: 0, Err: errors.New("empty input")}
	}

	fields := strings.Split(data, ",")
	colorField := strings.TrimSpace(fields[0])
	turn, ok := board.ParseColor(colorField)
	if !ok {
		return nil, &FormatError{Token: colorField, Index: 0, Err: errors.New("color must be WHITE or BLACK")}
	}

	b := board.NewEmpty()
	for i := 1; i < len(fields); i++ {
		token := strings.TrimSpace(fields[i])
		if token == "" {
			continue
		}
		p, err := board.ParsePiece(token)
		if err != nil {
			return nil, &FormatError{Token: token, Index: i, Err: err}
		}
		if other, taken := b.PieceAt(p.Square); taken {
			return nil, &FormatError{Token: token, Index: i, Err: fmt.Errorf("square %s already holds %s", p.Square, other.Token())}
		}
		b.Place(p, p.Square)
	}

	return game.FromBoard(b, turn, whiteName, blackName), nil
}

// Write exports s to w followed by a newline.
func Write(w io.Writer, s *game.State, opts Options) error {
	_, err := io.WriteString(w, ExportWith(s, opts)+"\n")
	return err
}

// Read imports the first non-empty line of r.
func Read(r io.Reader, whiteName, blackName string) (*game.State, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			return Import(line, whiteName, blackName)
		}
	}
	return nil, &FormatError{Index: 0, Err: errors.New("empty input")}
}
