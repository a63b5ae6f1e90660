// Package game is the session controller around the chess core: it owns the
// current GameState, commits moves with their side effects, keeps undo/redo
// history and drives the AI and remote opponents.
package game

import (
	"encoding/json"
	"fmt"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/relay"
)

// DefaultAIDepth is the search depth of a fresh game.
const DefaultAIDepth = 2

// PieceState is a piece as stored in a snapshot.
type PieceState struct {
	Type     string `json:"type"`  // "P", "N", "B", "R", "Q" or "K"
	Color    string `json:"color"` // "w" or "b"
	HasMoved bool   `json:"hasMoved"`
}

// CastleSides records the remaining castling rights of one color.
type CastleSides struct {
	K bool `json:"K"`
	Q bool `json:"Q"`
}

// CastlingState holds both colors' castling rights.
type CastlingState struct {
	W CastleSides `json:"w"`
	B CastleSides `json:"b"`
}

// LastMove is the from/to pair of the most recent move.
type LastMove struct {
	From relay.Coord `json:"from"`
	To   relay.Coord `json:"to"`
}

// GameState is the serializable snapshot of a game. Its JSON form is the
// contract shared by persistence and undo/redo.
type GameState struct {
	Board           [8][8]*PieceState `json:"board"`
	Turn            string            `json:"turn"`
	EnPassantTarget *relay.Coord      `json:"enPassantTarget"`
	CastlingRights  CastlingState     `json:"castlingRights"`
	CapturedByWhite []string          `json:"capturedByWhite"`
	CapturedByBlack []string          `json:"capturedByBlack"`
	GameOver        bool              `json:"gameOver"`
	LastMove        *LastMove         `json:"lastMove"`
	AIEnabled       bool              `json:"aiEnabled"`
	AIColor         string            `json:"aiColor"`
	AIDepth         int               `json:"aiDepth"`
}

// NewGameState returns the snapshot of a new game.
func NewGameState() GameState {
	st := StateFromPosition(board.NewPosition(), board.White)
	st.AIColor = "b"
	st.AIDepth = DefaultAIDepth
	return st
}

// StateFromPosition builds a snapshot of pos with side to move. Session
// fields are left at their zero values.
func StateFromPosition(pos *board.Position, side board.Color) GameState {
	st := GameState{
		Turn:            side.Code(),
		CapturedByWhite: []string{},
		CapturedByBlack: []string{},
	}

	pos.ForEach(func(sq board.Square, p board.Piece) {
		st.Board[sq.Rank][sq.File] = &PieceState{
			Type:     pieceLetter(p.Type),
			Color:    p.Color.Code(),
			HasMoved: p.Moved,
		}
	})

	if pos.EnPassant.IsValid() {
		st.EnPassantTarget = &relay.Coord{R: pos.EnPassant.Rank, C: pos.EnPassant.File}
	}

	cr := pos.CastlingRights
	st.CastlingRights = CastlingState{
		W: CastleSides{K: cr.CanCastle(board.White, true), Q: cr.CanCastle(board.White, false)},
		B: CastleSides{K: cr.CanCastle(board.Black, true), Q: cr.CanCastle(board.Black, false)},
	}
	return st
}

// Position rebuilds the board position and side to move from the snapshot.
func (st *GameState) Position() (*board.Position, board.Color, error) {
	side, err := board.ParseColorCode(st.Turn)
	if err != nil {
		return nil, board.NoColor, fmt.Errorf("turn: %w", err)
	}

	pos := board.EmptyPosition()
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			ps := st.Board[r][c]
			if ps == nil {
				continue
			}
			if len(ps.Type) != 1 {
				return nil, board.NoColor, fmt.Errorf("square %s: invalid piece type %q", board.NewSquare(r, c), ps.Type)
			}
			pt := board.PieceTypeFromChar(ps.Type[0])
			if pt == board.NoPieceType {
				return nil, board.NoColor, fmt.Errorf("square %s: invalid piece type %q", board.NewSquare(r, c), ps.Type)
			}
			color, err := board.ParseColorCode(ps.Color)
			if err != nil {
				return nil, board.NoColor, fmt.Errorf("square %s: %w", board.NewSquare(r, c), err)
			}
			piece := board.NewPiece(pt, color)
			piece.Moved = ps.HasMoved
			pos.SetPiece(board.NewSquare(r, c), piece)
		}
	}

	if ep := st.EnPassantTarget; ep != nil {
		sq := board.NewSquare(ep.R, ep.C)
		if !sq.IsValid() {
			return nil, board.NoColor, fmt.Errorf("en passant target out of range: %+v", *ep)
		}
		pos.EnPassant = sq
	}

	cr := board.NoCastling
	if st.CastlingRights.W.K {
		cr |= board.WhiteKingSideCastle
	}
	if st.CastlingRights.W.Q {
		cr |= board.WhiteQueenSideCastle
	}
	if st.CastlingRights.B.K {
		cr |= board.BlackKingSideCastle
	}
	if st.CastlingRights.B.Q {
		cr |= board.BlackQueenSideCastle
	}
	pos.CastlingRights = cr

	if err := pos.Validate(); err != nil {
		return nil, board.NoColor, err
	}
	return pos, side, nil
}

// Clone returns a deep copy of the snapshot.
func (st *GameState) Clone() GameState {
	out := *st
	for r := range out.Board {
		for c := range out.Board[r] {
			if p := st.Board[r][c]; p != nil {
				cp := *p
				out.Board[r][c] = &cp
			}
		}
	}
	if st.EnPassantTarget != nil {
		ep := *st.EnPassantTarget
		out.EnPassantTarget = &ep
	}
	if st.LastMove != nil {
		lm := *st.LastMove
		out.LastMove = &lm
	}
	out.CapturedByWhite = append([]string{}, st.CapturedByWhite...)
	out.CapturedByBlack = append([]string{}, st.CapturedByBlack...)
	return out
}

// UnmarshalJSON applies the defaults of a missing or partial snapshot: empty
// capture lists, AI color "b" unless "w", and the default depth.
func (st *GameState) UnmarshalJSON(data []byte) error {
	type plain GameState
	raw := plain{AIDepth: DefaultAIDepth}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*st = GameState(raw)
	if st.CapturedByWhite == nil {
		st.CapturedByWhite = []string{}
	}
	if st.CapturedByBlack == nil {
		st.CapturedByBlack = []string{}
	}
	if st.AIColor != "w" {
		st.AIColor = "b"
	}
	return nil
}

func pieceLetter(pt board.PieceType) string {
	return string(pt.Char() - 'a' + 'A')
}
