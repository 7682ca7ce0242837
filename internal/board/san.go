package board

import (
	"fmt"
	"strings"
)

// IsCapture returns true if m takes a piece.
func (b *Board) IsCapture(m Move) bool {
	if m.Kind == EnPassant {
		return true
	}
	if m.Kind == Castling {
		return false
	}
	mover, ok := b.PieceAt(m.From)
	if !ok {
		return false
	}
	target, ok := b.PieceAt(m.To)
	return ok && target.Color != mover.Color
}

// SAN converts a move to Standard Algebraic Notation. The move must be
// legal on b; check and mate markers are computed by playing it on a copy.
func (b *Board) SAN(m Move) string {
	if m == NoMove {
		return "-"
	}

	piece, ok := b.PieceAt(m.From)
	if !ok {
		return m.String() // Fallback to UCI
	}

	var sb strings.Builder

	if m.IsCastling() {
		if m.To.File() > m.From.File() {
			sb.WriteString("O-O")
		} else {
			sb.WriteString("O-O-O")
		}
	} else {
		if piece.Type != Pawn {
			sb.WriteByte(piece.Type.Letter())
			sb.WriteString(b.disambiguation(m, piece))
		}

		if b.IsCapture(m) {
			if piece.Type == Pawn {
				// Pawn captures include the file of origin
				sb.WriteByte(m.From.FileLetter())
			}
			sb.WriteByte('x')
		}

		sb.WriteString(m.To.String())

		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte(m.Promotion.Letter())
		}
	}

	after := b.Simulate(m)
	them := piece.Color.Other()
	if after.IsCheckmate(them) {
		sb.WriteByte('#')
	} else if after.InCheck(them) {
		sb.WriteByte('+')
	}

	return sb.String()
}

// disambiguation returns the file, rank or square needed to tell m apart
// from another piece of the same type that can reach the same square.
func (b *Board) disambiguation(m Move, piece Piece) string {
	var candidates []Square
	for _, other := range b.PiecesOf(piece.Color) {
		if other.Square == m.From || other.Type != piece.Type {
			continue
		}
		for _, to := range b.LegalMoves(other.Square) {
			if to == m.To {
				candidates = append(candidates, other.Square)
				break
			}
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	sameFile, sameRank := false, false
	for _, sq := range candidates {
		if sq.File() == m.From.File() {
			sameFile = true
		}
		if sq.Rank() == m.From.Rank() {
			sameRank = true
		}
	}

	if !sameFile {
		return string(m.From.FileLetter())
	}
	if !sameRank {
		return string(byte('1' + m.From.Rank()))
	}
	return m.From.String()
}

// ParseSAN finds the legal move for side that matches a SAN string.
func (b *Board) ParseSAN(s string, side Color) (Move, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#")

	if s == "O-O" || s == "0-0" || s == "O-O-O" || s == "0-0-0" {
		from := homeKingSquare(side)
		kingTo, _, _ := castleSquares(side, len(s) == 3)
		m := Move{From: from, To: kingTo, Kind: Castling}
		if !b.IsLegal(m) {
			return NoMove, fmt.Errorf("illegal castling: %s", orig)
		}
		return m, nil
	}

	promo := NoPieceType
	if idx := strings.Index(s, "="); idx >= 0 && idx+1 < len(s) {
		pt, ok := PieceTypeFromLetter(s[idx+1])
		if !ok || !IsPromotionType(pt) {
			return NoMove, fmt.Errorf("invalid promotion in %q", orig)
		}
		promo = pt
		s = s[:idx]
	}

	isCapture := strings.Contains(s, "x")
	s = strings.ReplaceAll(s, "x", "")

	pt := Pawn
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		var ok bool
		if pt, ok = PieceTypeFromLetter(s[0]); !ok {
			return NoMove, fmt.Errorf("invalid piece in %q", orig)
		}
		s = s[1:]
	}

	if len(s) < 2 {
		return NoMove, fmt.Errorf("invalid SAN: %q", orig)
	}
	dest, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, err
	}
	s = s[:len(s)-2]

	disambigFile, disambigRank := -1, -1
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'h':
			disambigFile = int(c - 'a')
		case c >= '1' && c <= '8':
			disambigRank = int(c - '1')
		}
	}

	for _, m := range b.GenerateLegalMoves(side) {
		if m.To != dest || m.IsCastling() {
			continue
		}
		p, _ := b.PieceAt(m.From)
		if p.Type != pt {
			continue
		}
		if disambigFile >= 0 && m.From.File() != disambigFile {
			continue
		}
		if disambigRank >= 0 && m.From.Rank() != disambigRank {
			continue
		}
		if isCapture && !b.IsCapture(m) {
			continue
		}
		if promo != NoPieceType {
			if p.Type != Pawn || m.To.RelativeRank(side) != Size-1 {
				continue
			}
			m.Promotion = promo
		}
		return m, nil
	}

	return NoMove, fmt.Errorf("no legal move matches %q", orig)
}
