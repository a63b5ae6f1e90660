package relay

import (
	"errors"
	"fmt"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Coord is a board coordinate: R is the row from the top (Black's back rank
// is 0) and C the column from the a-file.
type Coord struct {
	R int `json:"r"`
	C int `json:"c"`
}

// MoveMeta carries the special-move tag and promotion piece of a move.
type MoveMeta struct {
	Special string `json:"special,omitempty"` // "enpassant", "castle-k" or "castle-q"
	Promote string `json:"promote,omitempty"` // "Q", "R", "B" or "N"
}

// Move is the move payload sent through the relay.
type Move struct {
	From Coord     `json:"from"`
	To   Coord     `json:"to"`
	Meta *MoveMeta `json:"meta,omitempty"`
}

// ErrIllegalMove is returned when a relayed move is not legal in the position.
var ErrIllegalMove = errors.New("illegal relayed move")

func (c Coord) square() board.Square {
	return board.NewSquare(c.R, c.C)
}

func coordOf(sq board.Square) Coord {
	return Coord{R: sq.Rank, C: sq.File}
}

// Validate checks coordinates and tags without looking at a position.
func (m Move) Validate() error {
	if !m.From.square().IsValid() || !m.To.square().IsValid() {
		return fmt.Errorf("move coordinates out of range: %+v -> %+v", m.From, m.To)
	}
	if m.Meta == nil {
		return nil
	}
	switch m.Meta.Special {
	case "", "enpassant", "castle-k", "castle-q":
	default:
		return fmt.Errorf("unknown special move %q", m.Meta.Special)
	}
	if m.Meta.Promote != "" {
		if len(m.Meta.Promote) != 1 {
			return fmt.Errorf("invalid promotion piece %q", m.Meta.Promote)
		}
		switch board.PieceTypeFromChar(m.Meta.Promote[0]) {
		case board.Queen, board.Rook, board.Bishop, board.Knight:
		default:
			return fmt.Errorf("invalid promotion piece %q", m.Meta.Promote)
		}
	}
	return nil
}

// FromBoard converts a board move into its relay payload.
func FromBoard(m board.Move) Move {
	out := Move{From: coordOf(m.From), To: coordOf(m.To)}
	if m.Kind != board.Normal || m.IsPromotion() {
		out.Meta = &MoveMeta{Special: m.Kind.String()}
		if m.IsPromotion() {
			out.Meta.Promote = string(m.Promote.Char() - 'a' + 'A')
		}
	}
	return out
}

// Resolve finds the legal move in pos matching the payload. A promotion
// without a piece resolves to a queen. A special tag that disagrees with the
// legal move is rejected.
func (m Move) Resolve(pos *board.Position, side board.Color) (board.Move, error) {
	if err := m.Validate(); err != nil {
		return board.NoMove, err
	}

	from, to := m.From.square(), m.To.square()
	legal := pos.LegalMovesFrom(from, side)

	promote := board.NoPieceType
	if m.Meta != nil && m.Meta.Promote != "" {
		promote = board.PieceTypeFromChar(m.Meta.Promote[0])
	}

	found, ok := board.FindMove(legal, from, to, promote)
	if !ok && promote == board.NoPieceType {
		found, ok = board.FindMove(legal, from, to, board.Queen)
	}
	if !ok {
		return board.NoMove, fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}

	if m.Meta != nil && m.Meta.Special != "" && board.ParseMoveKind(m.Meta.Special) != found.Kind {
		return board.NoMove, fmt.Errorf("%w: %s%s is not %s", ErrIllegalMove, from, to, m.Meta.Special)
	}
	return found, nil
}
