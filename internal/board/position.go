package board

import (
	"errors"
	"fmt"
)

// CastlingRights represents the available castling options.
type CastlingRights uint8

const (
	WhiteKingSideCastle  CastlingRights = 1 << iota // K
	WhiteQueenSideCastle                            // Q
	BlackKingSideCastle                             // k
	BlackQueenSideCastle                            // q
	NoCastling           CastlingRights = 0
	AllCastling          CastlingRights = WhiteKingSideCastle | WhiteQueenSideCastle | BlackKingSideCastle | BlackQueenSideCastle
)

// String returns the FEN castling rights string.
func (cr CastlingRights) String() string {
	if cr == NoCastling {
		return "-"
	}
	s := ""
	if cr&WhiteKingSideCastle != 0 {
		s += "K"
	}
	if cr&WhiteQueenSideCastle != 0 {
		s += "Q"
	}
	if cr&BlackKingSideCastle != 0 {
		s += "k"
	}
	if cr&BlackQueenSideCastle != 0 {
		s += "q"
	}
	return s
}

// castleRight returns the single flag for a color and direction.
func castleRight(c Color, kingSide bool) CastlingRights {
	switch {
	case c == White && kingSide:
		return WhiteKingSideCastle
	case c == White:
		return WhiteQueenSideCastle
	case kingSide:
		return BlackKingSideCastle
	default:
		return BlackQueenSideCastle
	}
}

// CanCastle returns true if the given side can castle in the given direction.
func (cr CastlingRights) CanCastle(c Color, kingSide bool) bool {
	return cr&castleRight(c, kingSide) != 0
}

// Any returns true if the color keeps at least one castling right.
func (cr CastlingRights) Any(c Color) bool {
	return cr.CanCastle(c, true) || cr.CanCastle(c, false)
}

// Errors returned by Apply. The position is left untouched when one is returned.
var (
	ErrOutOfBounds = errors.New("square out of bounds")
	ErrNoPiece     = errors.New("no piece on source square")
)

// Position is the search and simulation unit: the grid, the en passant
// target and the castling rights. Side to move is passed alongside it.
// Position is a value type; Copy yields a fully independent board.
type Position struct {
	Board          [8][8]Piece
	EnPassant      Square
	CastlingRights CastlingRights
}

// NewPosition creates the starting position.
func NewPosition() *Position {
	pos, _, _ := ParseFEN(StartFEN)
	return pos
}

// EmptyPosition returns a board with no pieces and no rights.
func EmptyPosition() *Position {
	return &Position{EnPassant: NoSquare}
}

// Copy creates a deep copy of the position.
func (p *Position) Copy() *Position {
	newPos := *p
	return &newPos
}

// PieceAt returns the piece at the given square, or NoPiece if empty or off the board.
func (p *Position) PieceAt(sq Square) Piece {
	if !sq.IsValid() {
		return NoPiece
	}
	return p.Board[sq.Rank][sq.File]
}

// IsEmpty returns true if the square is on the board and empty.
func (p *Position) IsEmpty(sq Square) bool {
	return sq.IsValid() && p.Board[sq.Rank][sq.File].IsEmpty()
}

// SetPiece places a piece on a square. Off-board squares are ignored.
func (p *Position) SetPiece(sq Square, piece Piece) {
	if sq.IsValid() {
		p.Board[sq.Rank][sq.File] = piece
	}
}

// removePiece clears a square and returns what was there.
func (p *Position) removePiece(sq Square) Piece {
	piece := p.PieceAt(sq)
	p.SetPiece(sq, NoPiece)
	return piece
}

// KingSquare finds the king of the given color, or NoSquare.
func (p *Position) KingSquare(c Color) Square {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if p.Board[r][f].Is(King, c) {
				return Square{Rank: r, File: f}
			}
		}
	}
	return NoSquare
}

// ForEach calls fn for every occupied square.
func (p *Position) ForEach(fn func(sq Square, piece Piece)) {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if !p.Board[r][f].IsEmpty() {
				fn(Square{Rank: r, File: f}, p.Board[r][f])
			}
		}
	}
}

// Count returns how many pieces of the type and color are on the board.
func (p *Position) Count(pt PieceType, c Color) int {
	n := 0
	p.ForEach(func(_ Square, piece Piece) {
		if piece.Is(pt, c) {
			n++
		}
	})
	return n
}

// Material returns the material balance (positive favors white).
func (p *Position) Material() int {
	score := 0
	p.ForEach(func(_ Square, piece Piece) {
		if piece.Type == King {
			return
		}
		if piece.Color == White {
			score += piece.Value()
		} else {
			score -= piece.Value()
		}
	})
	return score
}

// String returns a visual representation of the position.
func (p *Position) String() string {
	s := "\n"
	for rank := 0; rank < 8; rank++ {
		s += fmt.Sprintf("%d  ", 8-rank)
		for file := 0; file < 8; file++ {
			piece := p.Board[rank][file]
			if piece.IsEmpty() {
				s += ". "
			} else {
				s += piece.String() + " "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n\n"
	s += fmt.Sprintf("Castling: %s\n", p.CastlingRights)
	s += fmt.Sprintf("En passant: %s\n", p.EnPassant)
	s += fmt.Sprintf("Hash: %016x\n", p.Hash())
	return s
}

// Validate checks that each side has one king and no pawn stands on a back rank.
func (p *Position) Validate() error {
	if p.Count(King, White) != 1 {
		return fmt.Errorf("white must have exactly one king")
	}
	if p.Count(King, Black) != 1 {
		return fmt.Errorf("black must have exactly one king")
	}
	for f := 0; f < 8; f++ {
		if p.Board[0][f].Type == Pawn || p.Board[7][f].Type == Pawn {
			return fmt.Errorf("pawns cannot be on rank 1 or 8")
		}
	}
	return nil
}

// IsInsufficientMaterial returns true if neither side can possibly mate:
// bare kings, or a single minor piece against a bare king.
func (p *Position) IsInsufficientMaterial() bool {
	minors := 0
	insufficient := true
	p.ForEach(func(_ Square, piece Piece) {
		switch piece.Type {
		case King:
		case Knight, Bishop:
			minors++
		default:
			insufficient = false
		}
	})
	return insufficient && minors <= 1
}
