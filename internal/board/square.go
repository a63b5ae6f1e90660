// Package board implements the mailbox chess board, rule-complete move
// generation and the attack oracle used by the engine and the session.
package board

import "fmt"

// Square addresses one cell of the 8x8 grid.
// Rank 0 is the 8th rank (Black's back rank), rank 7 is the 1st rank.
// File 0 is the a-file.
type Square struct {
	Rank int
	File int
}

// NoSquare marks an absent square (no en passant target, no move).
var NoSquare = Square{Rank: -1, File: -1}

// NewSquare creates a square from rank and file indices.
func NewSquare(rank, file int) Square {
	return Square{Rank: rank, File: file}
}

// IsValid returns true if both coordinates are on the board.
func (sq Square) IsValid() bool {
	return sq.Rank >= 0 && sq.Rank < 8 && sq.File >= 0 && sq.File < 8
}

// Offset returns the square dr ranks and df files away. The result may be off the board.
func (sq Square) Offset(dr, df int) Square {
	return Square{Rank: sq.Rank + dr, File: sq.File + df}
}

// String returns the algebraic notation for the square (e.g., "e4").
func (sq Square) String() string {
	if !sq.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%c%c", 'a'+sq.File, '8'-sq.Rank)
}

// ParseSquare parses algebraic notation (e.g., "e4") into a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}

	file := int(s[0]) - 'a'
	rank := '8' - int(s[1])

	sq := Square{Rank: rank, File: file}
	if !sq.IsValid() {
		return NoSquare, fmt.Errorf("invalid square: %s", s)
	}
	return sq, nil
}

// Mirror returns the square seen from the other side of the board.
func (sq Square) Mirror() Square {
	return Square{Rank: 7 - sq.Rank, File: sq.File}
}

// RelativeRank returns how far the square is from the color's own back rank (0-7).
func (sq Square) RelativeRank(c Color) int {
	if c == White {
		return 7 - sq.Rank
	}
	return sq.Rank
}

// CenterDistance returns the Manhattan distance to the nearest of d4, d5, e4, e5.
func (sq Square) CenterDistance() int {
	dr := sq.Rank - 3
	if sq.Rank >= 4 {
		dr = sq.Rank - 4
	}
	df := sq.File - 3
	if sq.File >= 4 {
		df = sq.File - 4
	}
	return abs(dr) + abs(df)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
