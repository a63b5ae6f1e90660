package board

import "fmt"

// Color represents the color of a piece or player.
type Color uint8

const (
	White Color = iota
	Black
	NoColor Color = 2
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return "NoColor"
	}
}

// Code returns "w" or "b", the color as written in FEN and saved games.
func (c Color) Code() string {
	switch c {
	case White:
		return "w"
	case Black:
		return "b"
	default:
		return "-"
	}
}

// ParseColorCode is the inverse of Code.
func ParseColorCode(s string) (Color, error) {
	switch s {
	case "w":
		return White, nil
	case "b":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("invalid color %q", s)
	}
}

// Forward returns the rank delta of a pawn push for the color.
func (c Color) Forward() int {
	if c == White {
		return -1
	}
	return 1
}

// HomeRank returns the rank index of the color's back rank.
func (c Color) HomeRank() int {
	if c == White {
		return 7
	}
	return 0
}

// PawnRank returns the rank index pawns of the color start on.
func (c Color) PawnRank() int {
	if c == White {
		return 6
	}
	return 1
}

// PromotionRank returns the rank index on which pawns of the color promote.
func (c Color) PromotionRank() int {
	return c.Other().HomeRank()
}

// PieceType represents the kind of a chess piece. The zero value is no piece,
// so the zero Piece is an empty square.
type PieceType uint8

const (
	NoPieceType PieceType = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

// PromotionTypes lists the promotion choices in generation order.
var PromotionTypes = [4]PieceType{Queen, Rook, Bishop, Knight}

// String returns the piece type name.
func (pt PieceType) String() string {
	switch pt {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return "None"
	}
}

// Char returns the FEN character for the piece type (lowercase).
func (pt PieceType) Char() byte {
	if pt > King {
		return ' '
	}
	return " pnbrqk"[pt]
}

// PieceTypeFromChar converts a piece letter of either case to a PieceType.
func PieceTypeFromChar(c byte) PieceType {
	switch c | 0x20 {
	case 'p':
		return Pawn
	case 'n':
		return Knight
	case 'b':
		return Bishop
	case 'r':
		return Rook
	case 'q':
		return Queen
	case 'k':
		return King
	default:
		return NoPieceType
	}
}

// PieceValue returns the material value of the piece type in centipawns.
var PieceValue = [7]int{0, 100, 320, 330, 500, 900, 20000}

// Piece is the content of one square. Moved is set once the piece has left
// its starting square; castling legality reads the rights flags instead.
type Piece struct {
	Type  PieceType
	Color Color
	Moved bool
}

// NoPiece is an empty square.
var NoPiece = Piece{}

// NewPiece creates an unmoved piece.
func NewPiece(pt PieceType, c Color) Piece {
	if pt == NoPieceType || pt > King || c >= NoColor {
		return NoPiece
	}
	return Piece{Type: pt, Color: c}
}

// IsEmpty returns true if the square holds no piece.
func (p Piece) IsEmpty() bool {
	return p.Type == NoPieceType
}

// Is reports whether the piece has the given type and color.
func (p Piece) Is(pt PieceType, c Color) bool {
	return p.Type == pt && p.Color == c
}

// String returns the FEN character for the piece.
// Uppercase for white, lowercase for black.
func (p Piece) String() string {
	if p.IsEmpty() {
		return " "
	}
	ch := p.Type.Char()
	if p.Color == White {
		ch -= 'a' - 'A'
	}
	return string(ch)
}

// PieceFromChar converts a FEN character to a Piece.
func PieceFromChar(c byte) Piece {
	pt := PieceTypeFromChar(c)
	if pt == NoPieceType {
		return NoPiece
	}
	if c >= 'a' {
		return NewPiece(pt, Black)
	}
	return NewPiece(pt, White)
}

// Value returns the material value of the piece in centipawns.
func (p Piece) Value() int {
	return PieceValue[p.Type]
}
