package board

// Direction tables as (rank, file) deltas.
var (
	knightOffsets = [8][2]int{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingOffsets   = [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	rookDirs      = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	bishopDirs    = [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// IsSquareAttacked returns true if the square is attacked by the given color.
// Off-board squares are never attacked.
func (p *Position) IsSquareAttacked(sq Square, byColor Color) bool {
	if !sq.IsValid() {
		return false
	}

	// A pawn of byColor attacks sq from one rank behind it, relative to its push direction.
	back := -byColor.Forward()
	for _, df := range [2]int{-1, 1} {
		if p.PieceAt(sq.Offset(back, df)).Is(Pawn, byColor) {
			return true
		}
	}

	for _, o := range knightOffsets {
		if p.PieceAt(sq.Offset(o[0], o[1])).Is(Knight, byColor) {
			return true
		}
	}

	for _, o := range kingOffsets {
		if p.PieceAt(sq.Offset(o[0], o[1])).Is(King, byColor) {
			return true
		}
	}

	if p.slidingAttack(sq, byColor, rookDirs[:], Rook) {
		return true
	}
	return p.slidingAttack(sq, byColor, bishopDirs[:], Bishop)
}

// slidingAttack walks each ray from sq to the first occupant and reports
// whether it is a queen or a slider of the given type owned by byColor.
func (p *Position) slidingAttack(sq Square, byColor Color, dirs [][2]int, slider PieceType) bool {
	for _, d := range dirs {
		for cur := sq.Offset(d[0], d[1]); cur.IsValid(); cur = cur.Offset(d[0], d[1]) {
			piece := p.Board[cur.Rank][cur.File]
			if piece.IsEmpty() {
				continue
			}
			if piece.Color == byColor && (piece.Type == slider || piece.Type == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// InCheck returns true if the king of side is attacked.
// A side without a king is never in check.
func (p *Position) InCheck(side Color) bool {
	ksq := p.KingSquare(side)
	if ksq == NoSquare {
		return false
	}
	return p.IsSquareAttacked(ksq, side.Other())
}

// AttackCount returns how many of the given squares byColor attacks.
func (p *Position) AttackCount(byColor Color, squares ...Square) int {
	n := 0
	for _, sq := range squares {
		if p.IsSquareAttacked(sq, byColor) {
			n++
		}
	}
	return n
}
