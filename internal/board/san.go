package board

import (
	"fmt"
	"strings"
)

// ToSAN converts a move played by side to Standard Algebraic Notation.
func (m Move) ToSAN(pos *Position, side Color) string {
	if m.IsNull() {
		return "-"
	}

	piece := pos.PieceAt(m.From)
	if piece.IsEmpty() {
		return m.String() // Fallback to UCI
	}

	var sb strings.Builder

	switch m.Kind {
	case CastleKingside:
		sb.WriteString("O-O")
	case CastleQueenside:
		sb.WriteString("O-O-O")
	default:
		pt := piece.Type

		if pt != Pawn {
			sb.WriteByte(" PNBRQK"[pt])
			sb.WriteString(getDisambiguation(pos, m, pt, side))
		}

		if m.IsCapture(pos) {
			if pt == Pawn {
				sb.WriteByte('a' + byte(m.From.File))
			}
			sb.WriteByte('x')
		}

		sb.WriteString(m.To.String())

		if m.IsPromotion() {
			sb.WriteByte('=')
			sb.WriteByte(" PNBRQK"[m.Promote])
		}
	}

	// Check/checkmate marker
	if next, err := pos.After(m); err == nil {
		them := side.Other()
		if next.IsCheckmate(them) {
			sb.WriteByte('#')
		} else if next.InCheck(them) {
			sb.WriteByte('+')
		}
	}

	return sb.String()
}

// getDisambiguation returns the origin file, rank or square needed when another
// piece of the same type can reach the same destination.
func getDisambiguation(pos *Position, m Move, pt PieceType, side Color) string {
	var candidates []Square
	for _, move := range pos.LegalMoves(side) {
		if move.To != m.To || move.From == m.From {
			continue
		}
		if pos.PieceAt(move.From).Type == pt {
			candidates = append(candidates, move.From)
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	sameFile := false
	sameRank := false
	for _, sq := range candidates {
		if sq.File == m.From.File {
			sameFile = true
		}
		if sq.Rank == m.From.Rank {
			sameRank = true
		}
	}

	if !sameFile {
		return string(rune('a' + m.From.File))
	}
	if !sameRank {
		return string(rune('8' - m.From.Rank))
	}
	return m.From.String()
}

// ParseSAN parses a SAN string and returns the matching legal move for side.
func ParseSAN(s string, pos *Position, side Color) (Move, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "+#!?")

	legal := pos.LegalMoves(side)

	switch s {
	case "O-O", "0-0":
		for _, m := range legal {
			if m.Kind == CastleKingside {
				return m, nil
			}
		}
		return NoMove, fmt.Errorf("castling kingside not legal")
	case "O-O-O", "0-0-0":
		for _, m := range legal {
			if m.Kind == CastleQueenside {
				return m, nil
			}
		}
		return NoMove, fmt.Errorf("castling queenside not legal")
	}

	promo := NoPieceType
	if idx := strings.Index(s, "="); idx >= 0 && idx+1 < len(s) {
		promo = PieceTypeFromChar(s[idx+1])
		s = s[:idx]
	}

	isCapture := strings.Contains(s, "x")
	s = strings.ReplaceAll(s, "x", "")

	pt := Pawn
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		pt = PieceTypeFromChar(s[0])
		s = s[1:]
	}

	if len(s) < 2 {
		return NoMove, fmt.Errorf("invalid SAN: missing destination")
	}
	dest, err := ParseSquare(s[len(s)-2:])
	if err != nil {
		return NoMove, err
	}
	s = s[:len(s)-2]

	disambigFile, disambigRank := -1, -1
	for _, c := range s {
		if c >= 'a' && c <= 'h' {
			disambigFile = int(c - 'a')
		} else if c >= '1' && c <= '8' {
			disambigRank = int('8' - c)
		}
	}

	for _, m := range legal {
		if m.To != dest || pos.PieceAt(m.From).Type != pt {
			continue
		}
		if disambigFile >= 0 && m.From.File != disambigFile {
			continue
		}
		if disambigRank >= 0 && m.From.Rank != disambigRank {
			continue
		}
		if isCapture && !m.IsCapture(pos) {
			continue
		}
		if m.Promote != promo {
			continue
		}
		return m, nil
	}

	return NoMove, fmt.Errorf("no legal move matches %q", s)
}

// MovesToSAN converts a sequence of moves starting with side to SAN notation.
func MovesToSAN(pos *Position, side Color, moves []Move) []string {
	result := make([]string, len(moves))
	p := pos.Copy()

	for i, m := range moves {
		result[i] = m.ToSAN(p, side)
		_ = p.Apply(m)
		side = side.Other()
	}

	return result
}
