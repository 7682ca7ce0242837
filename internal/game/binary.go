package game

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hailam/chessrules/internal/board"
)

// ErrCorruptSnapshot is returned when binary state data is truncated, has
// the wrong header, or fails its hash check.
var ErrCorruptSnapshot = errors.New("corrupt game snapshot")

const (
	snapshotMagic   uint32 = 0x43485331 // "CHS1"
	snapshotVersion uint16 = 1
)

// snapshotHeader is the fixed-size leading part of the binary layout.
type snapshotHeader struct {
	Magic    uint32
	Version  uint16
	Turn     uint8
	Flags    uint8 // bit 0: game over
	Winner   uint8
	Pending  uint8
	Ply      uint32
	LastFrom uint8
	LastTo   uint8
	Count    uint8
	_        uint8 // padding
}

// pieceRecord is one occupied square.
type pieceRecord struct {
	Square uint8
	Color  uint8
	Type   uint8
	Moved  uint8
}

const flagGameOver = 1 << 0

// MarshalBinary encodes the complete state. The layout is private to this
// version of the program: header, player names, piece records, the piece
// that made the last move, then the state hash as a trailer.
func (s *State) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	pieces := s.board.Pieces()
	last := s.board.LastMove()
	h := snapshotHeader{
		Magic:    snapshotMagic,
		Version:  snapshotVersion,
		Turn:     uint8(s.turn),
		Winner:   uint8(s.winner),
		Pending:  uint8(s.pending),
		Ply:      uint32(s.ply),
		LastFrom: uint8(last.From),
		LastTo:   uint8(last.To),
		Count:    uint8(len(pieces)),
	}
	if s.gameOver {
		h.Flags |= flagGameOver
	}
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}

	if err := writeString(&buf, s.whiteName); err != nil {
		return nil, err
	}
	if err := writeString(&buf, s.blackName); err != nil {
		return nil, err
	}

	for _, p := range pieces {
		if err := writePiece(&buf, p); err != nil {
			return nil, err
		}
	}
	if last.From.IsValid() && last.To.IsValid() {
		if err := writePiece(&buf, last.Piece); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.LittleEndian, s.Hash()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes data produced by MarshalBinary into s. On error
// s is left unchanged.
func (s *State) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var h snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: header: %v", ErrCorruptSnapshot, err)
	}
	if h.Magic != snapshotMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrCorruptSnapshot, h.Magic)
	}
	if h.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, h.Version)
	}
	if board.Color(h.Turn) > board.Black || board.Color(h.Winner) > board.NoColor {
		return fmt.Errorf("%w: bad color", ErrCorruptSnapshot)
	}

	var ns State
	var err error
	if ns.whiteName, err = readString(r); err != nil {
		return err
	}
	if ns.blackName, err = readString(r); err != nil {
		return err
	}

	b := board.NewEmpty()
	for i := 0; i < int(h.Count); i++ {
		p, err := readPiece(r)
		if err != nil {
			return err
		}
		if !b.IsEmpty(p.Square) {
			return fmt.Errorf("%w: two pieces on %s", ErrCorruptSnapshot, p.Square)
		}
		b.Place(p, p.Square)
	}

	lastFrom, lastTo := board.Square(h.LastFrom), board.Square(h.LastTo)
	if lastFrom.IsValid() && lastTo.IsValid() {
		p, err := readPiece(r)
		if err != nil {
			return err
		}
		b.SetLastMove(lastFrom, lastTo, p)
	}

	ns.board = *b
	ns.turn = board.Color(h.Turn)
	ns.winner = board.Color(h.Winner)
	ns.gameOver = h.Flags&flagGameOver != 0
	ns.pending = board.Square(h.Pending)
	ns.ply = int(h.Ply)

	var want uint64
	if err := binary.Read(r, binary.LittleEndian, &want); err != nil {
		return fmt.Errorf("%w: hash: %v", ErrCorruptSnapshot, err)
	}
	if got := ns.Hash(); got != want {
		return fmt.Errorf("%w: hash mismatch %#x != %#x", ErrCorruptSnapshot, got, want)
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptSnapshot, r.Len())
	}

	*s = ns
	return nil
}

// writeString writes str with a uint16 length prefix.
func writeString(w *bytes.Buffer, str string) error {
	if len(str) > math.MaxUint16 {
		return fmt.Errorf("snapshot string of %d bytes exceeds %d", len(str), math.MaxUint16)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(str))); err != nil {
		return err
	}
	w.WriteString(str)
	return nil
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("%w: string length: %v", ErrCorruptSnapshot, err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: string: %v", ErrCorruptSnapshot, err)
	}
	return string(buf), nil
}

func writePiece(w *bytes.Buffer, p board.Piece) error {
	rec := pieceRecord{
		Square: uint8(p.Square),
		Color:  uint8(p.Color),
		Type:   uint8(p.Type),
	}
	if p.Moved {
		rec.Moved = 1
	}
	if err := binary.Write(w, binary.LittleEndian, rec); err != nil {
		return err
	}
	return writeString(w, p.ID)
}

func readPiece(r io.Reader) (board.Piece, error) {
	var rec pieceRecord
	if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
		return board.Piece{}, fmt.Errorf("%w: piece: %v", ErrCorruptSnapshot, err)
	}
	sq, c, pt := board.Square(rec.Square), board.Color(rec.Color), board.PieceType(rec.Type)
	if !sq.IsValid() || c > board.Black || pt == board.NoPieceType || pt > board.King {
		return board.Piece{}, fmt.Errorf("%w: bad piece record %+v", ErrCorruptSnapshot, rec)
	}
	id, err := readString(r)
	if err != nil {
		return board.Piece{}, err
	}
	return board.Piece{Color: c, Type: pt, Square: sq, Moved: rec.Moved != 0, ID: id}, nil
}
