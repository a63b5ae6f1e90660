package board

// LegalMoves generates all legal moves for side.
func (p *Position) LegalMoves(side Color) []Move {
	moves := make([]Move, 0, 48)
	p.ForEach(func(sq Square, piece Piece) {
		if piece.Color == side {
			moves = p.appendLegal(moves, sq, side, false)
		}
	})
	return moves
}

// LegalMovesFrom generates the legal moves of the piece on sq.
// The result is empty if the square is off the board, empty, or not owned by side.
func (p *Position) LegalMovesFrom(sq Square, side Color) []Move {
	piece := p.PieceAt(sq)
	if piece.IsEmpty() || piece.Color != side {
		return nil
	}
	return p.appendLegal(nil, sq, side, false)
}

// Captures generates the legal capturing moves for side, en passant included.
func (p *Position) Captures(side Color) []Move {
	var moves []Move
	p.ForEach(func(sq Square, piece Piece) {
		if piece.Color == side {
			moves = p.appendLegal(moves, sq, side, true)
		}
	})
	return moves
}

// appendLegal filters the pseudo-legal moves of sq by simulation: each move is
// applied to a copy and dropped if it leaves the king of side attacked.
func (p *Position) appendLegal(moves []Move, sq Square, side Color, capturesOnly bool) []Move {
	for _, m := range p.PseudoLegalMoves(sq) {
		if capturesOnly && !m.IsCapture(p) {
			continue
		}
		if p.IsLegal(m, side) {
			moves = append(moves, m)
		}
	}
	return moves
}

// IsLegal returns true if the pseudo-legal move does not leave side's king in check.
func (p *Position) IsLegal(m Move, side Color) bool {
	sim := p.Copy()
	if err := sim.Apply(m); err != nil {
		return false
	}
	return !sim.InCheck(side)
}

// PseudoLegalMoves generates the moves of the piece on sq that obey movement
// geometry and occupancy. They may leave the mover's king in check.
func (p *Position) PseudoLegalMoves(sq Square) []Move {
	piece := p.PieceAt(sq)
	if piece.IsEmpty() {
		return nil
	}

	moves := make([]Move, 0, 16)
	us := piece.Color

	switch piece.Type {
	case Pawn:
		moves = p.generatePawnMoves(moves, sq, us)
	case Knight:
		moves = p.generateStepMoves(moves, sq, us, knightOffsets[:])
	case Bishop:
		moves = p.generateSlidingMoves(moves, sq, us, bishopDirs[:])
	case Rook:
		moves = p.generateSlidingMoves(moves, sq, us, rookDirs[:])
	case Queen:
		moves = p.generateSlidingMoves(moves, sq, us, rookDirs[:])
		moves = p.generateSlidingMoves(moves, sq, us, bishopDirs[:])
	case King:
		moves = p.generateStepMoves(moves, sq, us, kingOffsets[:])
		moves = p.generateCastlingMoves(moves, sq, us)
	}
	return moves
}

// generatePawnMoves generates pushes, captures, en passant and promotions.
func (p *Position) generatePawnMoves(moves []Move, from Square, us Color) []Move {
	dir := us.Forward()

	one := from.Offset(dir, 0)
	if p.IsEmpty(one) {
		moves = addPawnMove(moves, from, one, us)

		two := one.Offset(dir, 0)
		if from.Rank == us.PawnRank() && p.IsEmpty(two) {
			moves = append(moves, NewMove(from, two))
		}
	}

	for _, df := range [2]int{-1, 1} {
		to := from.Offset(dir, df)
		if !to.IsValid() {
			continue
		}
		target := p.PieceAt(to)
		if !target.IsEmpty() {
			if target.Color != us {
				moves = addPawnMove(moves, from, to, us)
			}
			continue
		}
		if to == p.EnPassant && p.PieceAt(Square{Rank: from.Rank, File: to.File}).Is(Pawn, us.Other()) {
			moves = append(moves, NewEnPassant(from, to))
		}
	}
	return moves
}

// addPawnMove adds a pawn move, expanded into all four promotions on the last rank.
func addPawnMove(moves []Move, from, to Square, us Color) []Move {
	if to.Rank != us.PromotionRank() {
		return append(moves, NewMove(from, to))
	}
	for _, pt := range PromotionTypes {
		moves = append(moves, NewPromotion(from, to, pt))
	}
	return moves
}

// generateStepMoves generates single-step moves (knight, king) onto empty or enemy squares.
func (p *Position) generateStepMoves(moves []Move, from Square, us Color, offsets [][2]int) []Move {
	for _, o := range offsets {
		to := from.Offset(o[0], o[1])
		if !to.IsValid() {
			continue
		}
		target := p.Board[to.Rank][to.File]
		if target.IsEmpty() || target.Color != us {
			moves = append(moves, NewMove(from, to))
		}
	}
	return moves
}

// generateSlidingMoves walks each ray until the board edge or the first occupant,
// including that occupant if it is an enemy.
func (p *Position) generateSlidingMoves(moves []Move, from Square, us Color, dirs [][2]int) []Move {
	for _, d := range dirs {
		for to := from.Offset(d[0], d[1]); to.IsValid(); to = to.Offset(d[0], d[1]) {
			target := p.Board[to.Rank][to.File]
			if target.IsEmpty() {
				moves = append(moves, NewMove(from, to))
				continue
			}
			if target.Color != us {
				moves = append(moves, NewMove(from, to))
			}
			break
		}
	}
	return moves
}

// generateCastlingMoves generates castling moves. The king must stand on its
// home square, not be attacked, and the squares it crosses and lands on must
// not be attacked. The queenside b-file square must be empty but may be attacked.
func (p *Position) generateCastlingMoves(moves []Move, from Square, us Color) []Move {
	home := us.HomeRank()
	if from != (Square{Rank: home, File: 4}) || !p.CastlingRights.Any(us) {
		return moves
	}

	them := us.Other()
	if p.IsSquareAttacked(from, them) {
		return moves
	}

	sq := func(file int) Square { return Square{Rank: home, File: file} }

	if p.CastlingRights.CanCastle(us, true) &&
		p.IsEmpty(sq(5)) && p.IsEmpty(sq(6)) &&
		p.PieceAt(sq(7)).Is(Rook, us) &&
		!p.IsSquareAttacked(sq(5), them) && !p.IsSquareAttacked(sq(6), them) {
		moves = append(moves, NewCastling(from, sq(6)))
	}

	if p.CastlingRights.CanCastle(us, false) &&
		p.IsEmpty(sq(1)) && p.IsEmpty(sq(2)) && p.IsEmpty(sq(3)) &&
		p.PieceAt(sq(0)).Is(Rook, us) &&
		!p.IsSquareAttacked(sq(3), them) && !p.IsSquareAttacked(sq(2), them) {
		moves = append(moves, NewCastling(from, sq(2)))
	}

	return moves
}

// Apply plays the move on the position. Simulation and commit share this path.
// It returns an error and leaves the position untouched if a square is off the
// board or the source square is empty. Legality is not checked.
func (p *Position) Apply(m Move) error {
	if !m.From.IsValid() || !m.To.IsValid() {
		return ErrOutOfBounds
	}
	mover := p.PieceAt(m.From)
	if mover.IsEmpty() {
		return ErrNoPiece
	}
	us := mover.Color

	if m.Kind == EnPassant {
		p.removePiece(Square{Rank: m.From.Rank, File: m.To.File})
	}

	captured := p.PieceAt(m.To)

	placed := mover
	if m.Promote != NoPieceType {
		placed.Type = m.Promote
	}
	placed.Moved = true
	p.SetPiece(m.To, placed)
	p.SetPiece(m.From, NoPiece)

	if mover.Type == King {
		p.CastlingRights &^= castleRight(us, true) | castleRight(us, false)

		rank := m.From.Rank
		switch m.Kind {
		case CastleKingside:
			p.moveRook(Square{Rank: rank, File: 7}, Square{Rank: rank, File: 5})
		case CastleQueenside:
			p.moveRook(Square{Rank: rank, File: 0}, Square{Rank: rank, File: 3})
		}
	}

	if mover.Type == Rook {
		p.clearCornerRight(m.From, us)
	}
	if captured.Type == Rook {
		p.clearCornerRight(m.To, captured.Color)
	}

	if mover.Type == Pawn && abs(m.To.Rank-m.From.Rank) == 2 {
		p.EnPassant = Square{Rank: (m.From.Rank + m.To.Rank) / 2, File: m.From.File}
	} else {
		p.EnPassant = NoSquare
	}

	return nil
}

// After returns a copy of the position with the move applied.
func (p *Position) After(m Move) (*Position, error) {
	next := p.Copy()
	if err := next.Apply(m); err != nil {
		return nil, err
	}
	return next, nil
}

func (p *Position) moveRook(from, to Square) {
	rook := p.removePiece(from)
	if rook.IsEmpty() {
		return
	}
	rook.Moved = true
	p.SetPiece(to, rook)
}

// clearCornerRight drops the castling right tied to a rook corner of color c.
func (p *Position) clearCornerRight(sq Square, c Color) {
	if sq.Rank != c.HomeRank() {
		return
	}
	switch sq.File {
	case 7:
		p.CastlingRights &^= castleRight(c, true)
	case 0:
		p.CastlingRights &^= castleRight(c, false)
	}
}

// HasLegalMoves returns true if side has any legal move.
func (p *Position) HasLegalMoves(side Color) bool {
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			if p.Board[r][f].IsEmpty() || p.Board[r][f].Color != side {
				continue
			}
			for _, m := range p.PseudoLegalMoves(Square{Rank: r, File: f}) {
				if p.IsLegal(m, side) {
					return true
				}
			}
		}
	}
	return false
}

// IsCheckmate returns true if side is in check and has no legal moves.
func (p *Position) IsCheckmate(side Color) bool {
	return p.InCheck(side) && !p.HasLegalMoves(side)
}

// IsStalemate returns true if side is not in check but has no legal moves.
func (p *Position) IsStalemate(side Color) bool {
	return !p.InCheck(side) && !p.HasLegalMoves(side)
}

// GivesCheck returns true if playing m leaves the opponent of side in check.
func (p *Position) GivesCheck(m Move, side Color) bool {
	next, err := p.After(m)
	if err != nil {
		return false
	}
	return next.InCheck(side.Other())
}

// Perft counts the leaf nodes of the legal move tree to the given depth.
func (p *Position) Perft(side Color, depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := p.LegalMoves(side)
	if depth == 1 {
		return int64(len(moves))
	}

	var nodes int64
	for _, m := range moves {
		next := p.Copy()
		_ = next.Apply(m)
		nodes += next.Perft(side.Other(), depth-1)
	}
	return nodes
}
