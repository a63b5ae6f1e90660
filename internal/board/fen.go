package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns the position and the side to move.
// The move counters are accepted but not kept.
func ParseFEN(fen string) (*Position, Color, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, NoColor, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	pos := EmptyPosition()

	// Parse piece placement (field 0)
	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, NoColor, err
	}

	// Parse side to move (field 1)
	var side Color
	switch parts[1] {
	case "w":
		side = White
	case "b":
		side = Black
	default:
		return nil, NoColor, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	// Parse castling rights (field 2)
	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, NoColor, err
	}

	// Parse en passant square (field 3)
	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, NoColor, fmt.Errorf("invalid en passant square: %s", parts[3])
		}
		pos.EnPassant = sq
	}

	for i := 4; i < len(parts) && i < 6; i++ {
		if _, err := strconv.Atoi(parts[i]); err != nil {
			return nil, NoColor, fmt.Errorf("invalid move counter: %s", parts[i])
		}
	}

	return pos, side, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
// Pieces off their starting squares are marked as moved.
func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for rank, rankStr := range ranks {
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", 8-rank)
			}

			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}

			piece := PieceFromChar(byte(c))
			if piece.IsEmpty() {
				return fmt.Errorf("invalid piece character: %c", c)
			}
			sq := Square{Rank: rank, File: file}
			piece.Moved = !IsStartSquare(piece, sq)
			pos.SetPiece(sq, piece)
			file++
		}

		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", 8-rank, file)
		}
	}

	return nil
}

var backRankOrder = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// IsStartSquare reports whether sq is a square the piece's type and color
// occupies in the initial position.
func IsStartSquare(piece Piece, sq Square) bool {
	if piece.Type == Pawn {
		return sq.Rank == piece.Color.PawnRank()
	}
	return sq.Rank == piece.Color.HomeRank() && backRankOrder[sq.File] == piece.Type
}

// parseCastlingRights parses the castling rights section of a FEN string.
func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	for _, c := range castling {
		switch c {
		case 'K':
			pos.CastlingRights |= WhiteKingSideCastle
		case 'Q':
			pos.CastlingRights |= WhiteQueenSideCastle
		case 'k':
			pos.CastlingRights |= BlackKingSideCastle
		case 'q':
			pos.CastlingRights |= BlackQueenSideCastle
		default:
			return fmt.Errorf("invalid castling character: %c", c)
		}
	}

	return nil
}

// PlacementFEN returns the piece placement field of the FEN.
func (p *Position) PlacementFEN() string {
	var sb strings.Builder

	for rank := 0; rank < 8; rank++ {
		empty := 0
		for file := 0; file < 8; file++ {
			piece := p.Board[rank][file]
			if piece.IsEmpty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank < 7 {
			sb.WriteByte('/')
		}
	}

	return sb.String()
}

// ToFEN returns the FEN representation of the position with side to move.
// Move counters are not tracked and are always written as "0 1".
func (p *Position) ToFEN(side Color) string {
	var sb strings.Builder

	sb.WriteString(p.PlacementFEN())

	sb.WriteByte(' ')
	if side == Black {
		sb.WriteByte('b')
	} else {
		sb.WriteByte('w')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	sb.WriteString(" 0 1")

	return sb.String()
}
