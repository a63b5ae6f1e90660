package board

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// MoveKind distinguishes the moves whose side effects go beyond from/to.
type MoveKind uint8

const (
	Normal MoveKind = iota
	EnPassant
	CastleKingside
	CastleQueenside
)

// String returns the wire name of the kind ("enpassant", "castle-k", "castle-q").
func (k MoveKind) String() string {
	switch k {
	case EnPassant:
		return "enpassant"
	case CastleKingside:
		return "castle-k"
	case CastleQueenside:
		return "castle-q"
	default:
		return ""
	}
}

// ParseMoveKind is the inverse of MoveKind.String. Unknown names map to Normal.
func ParseMoveKind(s string) MoveKind {
	switch s {
	case "enpassant":
		return EnPassant
	case "castle-k":
		return CastleKingside
	case "castle-q":
		return CastleQueenside
	default:
		return Normal
	}
}

// Move is a from/to pair with its kind and an optional promotion piece.
// Promote is NoPieceType unless the move promotes; it never co-occurs with castling.
type Move struct {
	From    Square
	To      Square
	Kind    MoveKind
	Promote PieceType
}

// NoMove represents an invalid or null move.
var NoMove = Move{From: NoSquare, To: NoSquare}

// NewMove creates a normal move.
func NewMove(from, to Square) Move {
	return Move{From: from, To: to}
}

// NewPromotion creates a promotion move.
func NewPromotion(from, to Square, promo PieceType) Move {
	return Move{From: from, To: to, Promote: promo}
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return Move{From: from, To: to, Kind: EnPassant}
}

// NewCastling creates a castling move described by the king's movement.
func NewCastling(from, to Square) Move {
	if to.File > from.File {
		return Move{From: from, To: to, Kind: CastleKingside}
	}
	return Move{From: from, To: to, Kind: CastleQueenside}
}

// IsNull returns true for NoMove and any move that does not go anywhere.
func (m Move) IsNull() bool {
	return m.From == m.To || !m.From.IsValid() || !m.To.IsValid()
}

// IsPromotion returns true if this is a promotion move.
func (m Move) IsPromotion() bool {
	return m.Promote != NoPieceType
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m.Kind == CastleKingside || m.Kind == CastleQueenside
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m.Kind == EnPassant
}

// IsCapture returns true if this move captures a piece.
func (m Move) IsCapture(pos *Position) bool {
	if m.IsEnPassant() {
		return true
	}
	return !pos.IsEmpty(m.To)
}

// Captured returns the piece removed from the board by the move, if any.
func (m Move) Captured(pos *Position) Piece {
	if m.IsEnPassant() {
		return pos.PieceAt(Square{Rank: m.From.Rank, File: m.To.File})
	}
	return pos.PieceAt(m.To)
}

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m.IsNull() {
		return "0000"
	}

	s := m.From.String() + m.To.String()
	if m.IsPromotion() {
		s += string(m.Promote.Char())
	}
	return s
}

// ParseMove resolves a UCI format move string against the legal moves of side.
// Strings that do not name a legal move are rejected.
func ParseMove(s string, pos *Position, side Color) (Move, error) {
	if len(s) < 4 || len(s) > 5 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	promo := NoPieceType
	if len(s) == 5 {
		promo = PieceTypeFromChar(s[4])
		if promo == NoPieceType || promo == Pawn || promo == King {
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
	}

	m, ok := FindMove(pos.LegalMovesFrom(from, side), from, to, promo)
	if !ok {
		return NoMove, fmt.Errorf("illegal move: %s", s)
	}
	return m, nil
}

// FindMove looks up the move with the given endpoints and promotion in moves.
func FindMove(moves []Move, from, to Square, promo PieceType) (Move, bool) {
	i := slices.IndexFunc(moves, func(m Move) bool {
		return m.From == from && m.To == to && m.Promote == promo
	})
	if i < 0 {
		return NoMove, false
	}
	return moves[i], true
}
