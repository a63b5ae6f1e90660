// Package engine implements the chess AI: static evaluation, negamax search
// with a transposition table, and the move selector that drives it.
package engine

import (
	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

// Piece values indexed by board.PieceType.
var pieceValues = [7]int{0, PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue}

// Game phase weights; the phase is the sum over non-pawn pieces on the board.
var phaseWeight = [7]int{0, 0, 1, 1, 2, 4, 0}

const (
	maxPhase     = 24
	endgamePhase = 8 // At or below this the endgame terms apply
)

// Passed pawn bonuses by relative rank (1 = pawn on its starting rank).
var passedPawnBonus = [8]int{0, 5, 10, 20, 35, 60, 100, 0}

// Pawn structure
const (
	doubledPawnPenalty  = -15
	isolatedPawnPenalty = -20
	pawnChainBonus      = 8
	passedPawnEgScale   = 2
)

// Center control
const (
	centerOccupyBonus = 20
	centerAttackBonus = 10
)

// Bonus for pawns and minor pieces by Manhattan distance to the center.
var centerDecay = [7]int{12, 8, 4, 2, 0, 0, 0}

const (
	undevelopedMinorPenalty = -15
	undevelopedRookPenalty  = -5
	checkPenalty            = -30
	castlingRightsBonus     = 15
	kingCenterPenalty       = -8 // Per step of proximity to the center, middlegame only
	kingActivityBonus       = 10 // Per step of proximity to the center, endgame only
	kingPawnProximity       = 2  // Per step of closeness to each pawn, endgame only
	repetitionPenalty       = -50
	mobilityDivisor         = 10
)

// Piece-Square Tables from White's point of view, indexed [rank][file] with
// rank 0 being the 8th rank. Black reads them mirrored.

var pawnPST = [8][8]int{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{50, 50, 50, 50, 50, 50, 50, 50},
	{10, 10, 20, 30, 30, 20, 10, 10},
	{5, 5, 10, 25, 25, 10, 5, 5},
	{0, 0, 0, 20, 20, 0, 0, 0},
	{5, -5, -10, 0, 0, -10, -5, 5},
	{5, 10, 10, -20, -20, 10, 10, 5},
	{0, 0, 0, 0, 0, 0, 0, 0},
}

var knightPST = [8][8]int{
	{-50, -40, -30, -30, -30, -30, -40, -50},
	{-40, -20, 0, 0, 0, 0, -20, -40},
	{-30, 0, 10, 15, 15, 10, 0, -30},
	{-30, 5, 15, 20, 20, 15, 5, -30},
	{-30, 0, 15, 20, 20, 15, 0, -30},
	{-30, 5, 10, 15, 15, 10, 5, -30},
	{-40, -20, 0, 5, 5, 0, -20, -40},
	{-50, -40, -30, -30, -30, -30, -40, -50},
}

var bishopPST = [8][8]int{
	{-20, -10, -10, -10, -10, -10, -10, -20},
	{-10, 0, 0, 0, 0, 0, 0, -10},
	{-10, 0, 5, 10, 10, 5, 0, -10},
	{-10, 5, 5, 10, 10, 5, 5, -10},
	{-10, 0, 10, 10, 10, 10, 0, -10},
	{-10, 10, 10, 10, 10, 10, 10, -10},
	{-10, 5, 0, 0, 0, 0, 5, -10},
	{-20, -10, -10, -10, -10, -10, -10, -20},
}

var rookPST = [8][8]int{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{5, 10, 10, 10, 10, 10, 10, 5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{-5, 0, 0, 0, 0, 0, 0, -5},
	{0, 0, 0, 5, 5, 0, 0, 0},
}

var queenPST = [8][8]int{
	{-20, -10, -10, -5, -5, -10, -10, -20},
	{-10, 0, 0, 0, 0, 0, 0, -10},
	{-10, 0, 5, 5, 5, 5, 0, -10},
	{-5, 0, 5, 5, 5, 5, 0, -5},
	{0, 0, 5, 5, 5, 5, 0, -5},
	{-10, 5, 5, 5, 5, 5, 0, -10},
	{-10, 0, 5, 0, 0, 0, 0, -10},
	{-20, -10, -10, -5, -5, -10, -10, -20},
}

// King PST (middlegame) - encourages castling
var kingMidgamePST = [8][8]int{
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-30, -40, -40, -50, -50, -40, -40, -30},
	{-20, -30, -30, -40, -40, -30, -30, -20},
	{-10, -20, -20, -20, -20, -20, -20, -10},
	{20, 20, 0, 0, 0, 0, 20, 20},
	{20, 30, 10, 0, 0, 10, 30, 20},
}

var psts = [...]*[8][8]int{
	board.Pawn:   &pawnPST,
	board.Knight: &knightPST,
	board.Bishop: &bishopPST,
	board.Rook:   &rookPST,
	board.Queen:  &queenPST,
	board.King:   &kingMidgamePST,
}

var centerSquares = [4]board.Square{{Rank: 3, File: 3}, {Rank: 3, File: 4}, {Rank: 4, File: 3}, {Rank: 4, File: 4}}

// Evaluator scores positions. The pawn table and the history are optional.
type Evaluator struct {
	pawns   *PawnTable
	history *PositionHistory
}

// NewEvaluator creates an evaluator backed by a pawn cache and the game history
// used for the repetition term. Either may be nil.
func NewEvaluator(pawns *PawnTable, history *PositionHistory) *Evaluator {
	return &Evaluator{pawns: pawns, history: history}
}

// Evaluate returns the static score of pos with side to move, positive
// favoring White. It uses no cache and no history.
func Evaluate(pos *board.Position, side board.Color) int {
	return (&Evaluator{}).Evaluate(pos, side)
}

// Evaluate returns the static score of pos with side to move, positive
// favoring White. Terminal positions score as mate against side, or 0 for stalemate
// and for material that cannot mate.
func (ev *Evaluator) Evaluate(pos *board.Position, side board.Color) int {
	if !pos.HasLegalMoves(side) {
		if pos.InCheck(side) {
			return -sign(side) * MateScore
		}
		return 0
	}
	if pos.IsInsufficientMaterial() {
		return 0
	}
	return ev.score(pos, side)
}

// score sums every term without the terminal check. Each term is isolated so a
// failing one contributes zero.
func (ev *Evaluator) score(pos *board.Position, side board.Color) int {
	phase := gamePhase(pos)
	endgame := phase <= endgamePhase

	score := safeTerm(func() int { return evaluateMaterialAndPST(pos, endgame) })
	score += safeTerm(func() int { return ev.evaluatePawnStructure(pos, endgame) })
	score += safeTerm(func() int { return evaluateCenterControl(pos) })
	score += safeTerm(func() int { return evaluateChecks(pos) })
	score += safeTerm(func() int { return evaluateCastlingRights(pos) })
	score += safeTerm(func() int { return evaluateMobility(pos) })

	if endgame {
		score += safeTerm(func() int { return evaluateEndgameKings(pos) })
	} else {
		score += safeTerm(func() int { return evaluateKingSafety(pos) })
		score += safeTerm(func() int { return evaluateDevelopment(pos) })
	}

	score += safeTerm(func() int { return ev.evaluateRepetition(pos, side) })

	return score
}

// safeTerm runs one evaluation term, recovering any panic as a zero contribution.
func safeTerm(term func() int) (score int) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
		}
	}()
	return term()
}

// sign returns +1 for White and -1 for Black.
func sign(c board.Color) int {
	if c == board.White {
		return 1
	}
	return -1
}

// gamePhase returns the phase-weight sum of the remaining pieces, capped at maxPhase.
func gamePhase(pos *board.Position) int {
	phase := 0
	pos.ForEach(func(_ board.Square, p board.Piece) {
		phase += phaseWeight[p.Type]
	})
	if phase > maxPhase {
		phase = maxPhase
	}
	return phase
}

// IsEndgame reports whether the endgame terms apply to pos.
func IsEndgame(pos *board.Position) bool {
	return gamePhase(pos) <= endgamePhase
}

// pstValue returns the table bonus of a piece standing on sq.
func pstValue(p board.Piece, sq board.Square) int {
	if p.Color == board.Black {
		sq = sq.Mirror()
	}
	return psts[p.Type][sq.Rank][sq.File]
}

func evaluateMaterialAndPST(pos *board.Position, endgame bool) int {
	score := 0
	pos.ForEach(func(sq board.Square, p board.Piece) {
		v := pieceValues[p.Type]
		if p.Type != board.King || !endgame {
			v += pstValue(p, sq)
		}
		score += sign(p.Color) * v
	})
	return score
}

// EvaluateMaterial returns the material balance from White's perspective.
func EvaluateMaterial(pos *board.Position) int {
	return pos.Material()
}

// evaluatePawnStructure scores doubled, isolated, passed and chained pawns,
// cached by pawn placement when a table is available.
func (ev *Evaluator) evaluatePawnStructure(pos *board.Position, endgame bool) int {
	key := pos.PawnKey()
	if ev.pawns != nil {
		if mg, eg, ok := ev.pawns.Probe(key); ok {
			if endgame {
				return eg
			}
			return mg
		}
	}

	mg, eg := pawnStructure(pos)
	if ev.pawns != nil {
		ev.pawns.Store(key, mg, eg)
	}
	if endgame {
		return eg
	}
	return mg
}

func pawnStructure(pos *board.Position) (mg, eg int) {
	var files [2][8]int
	pos.ForEach(func(sq board.Square, p board.Piece) {
		if p.Type == board.Pawn {
			files[p.Color][sq.File]++
		}
	})

	for c := board.White; c <= board.Black; c++ {
		s := sign(c)
		for f := 0; f < 8; f++ {
			if files[c][f] > 1 {
				mg += s * doubledPawnPenalty * (files[c][f] - 1)
				eg += s * doubledPawnPenalty * (files[c][f] - 1)
			}
		}
	}

	pos.ForEach(func(sq board.Square, p board.Piece) {
		if p.Type != board.Pawn {
			return
		}
		c := p.Color
		s := sign(c)

		left, right := 0, 0
		if sq.File > 0 {
			left = files[c][sq.File-1]
		}
		if sq.File < 7 {
			right = files[c][sq.File+1]
		}
		if left == 0 && right == 0 {
			mg += s * isolatedPawnPenalty
			eg += s * isolatedPawnPenalty
		}

		if isPassedPawn(pos, sq, c) {
			bonus := passedPawnBonus[sq.RelativeRank(c)]
			mg += s * bonus
			eg += s * bonus * passedPawnEgScale
		}

		behind := -c.Forward()
		if pos.PieceAt(sq.Offset(behind, -1)).Is(board.Pawn, c) || pos.PieceAt(sq.Offset(behind, 1)).Is(board.Pawn, c) {
			mg += s * pawnChainBonus
			eg += s * pawnChainBonus
		}
	})

	return mg, eg
}

// isPassedPawn returns true if no enemy pawn stands ahead of the pawn on its
// own or an adjacent file.
func isPassedPawn(pos *board.Position, sq board.Square, c board.Color) bool {
	them := c.Other()
	dir := c.Forward()
	for r := sq.Rank + dir; r >= 0 && r < 8; r += dir {
		for df := -1; df <= 1; df++ {
			if pos.PieceAt(board.NewSquare(r, sq.File+df)).Is(board.Pawn, them) {
				return false
			}
		}
	}
	return true
}

func evaluateCenterControl(pos *board.Position) int {
	score := 0
	for _, sq := range centerSquares {
		p := pos.PieceAt(sq)
		if !p.IsEmpty() && p.Type != board.King {
			score += sign(p.Color) * centerOccupyBonus
		}
		if pos.IsSquareAttacked(sq, board.White) {
			score += centerAttackBonus
		}
		if pos.IsSquareAttacked(sq, board.Black) {
			score -= centerAttackBonus
		}
	}

	pos.ForEach(func(sq board.Square, p board.Piece) {
		switch p.Type {
		case board.Pawn, board.Knight, board.Bishop:
			score += sign(p.Color) * centerDecay[sq.CenterDistance()]
		}
	})
	return score
}

func evaluateDevelopment(pos *board.Position) int {
	score := 0
	pos.ForEach(func(sq board.Square, p board.Piece) {
		if !board.IsStartSquare(p, sq) {
			return
		}
		switch p.Type {
		case board.Knight, board.Bishop:
			score += sign(p.Color) * undevelopedMinorPenalty
		case board.Rook:
			score += sign(p.Color) * undevelopedRookPenalty
		}
	})
	return score
}

func evaluateChecks(pos *board.Position) int {
	score := 0
	if pos.InCheck(board.White) {
		score += checkPenalty
	}
	if pos.InCheck(board.Black) {
		score -= checkPenalty
	}
	return score
}

func evaluateCastlingRights(pos *board.Position) int {
	score := 0
	if pos.CastlingRights.Any(board.White) {
		score += castlingRightsBonus
	}
	if pos.CastlingRights.Any(board.Black) {
		score -= castlingRightsBonus
	}
	return score
}

// evaluateKingSafety penalizes kings standing near the center outside the endgame.
func evaluateKingSafety(pos *board.Position) int {
	score := 0
	for c := board.White; c <= board.Black; c++ {
		ksq := pos.KingSquare(c)
		if ksq == board.NoSquare {
			continue
		}
		proximity := 6 - ksq.CenterDistance()
		score += sign(c) * kingCenterPenalty * proximity
	}
	return score
}

// evaluateEndgameKings rewards central kings and kings close to the pawns.
func evaluateEndgameKings(pos *board.Position) int {
	var kings [2]board.Square
	kings[board.White] = pos.KingSquare(board.White)
	kings[board.Black] = pos.KingSquare(board.Black)

	score := 0
	for c := board.White; c <= board.Black; c++ {
		ksq := kings[c]
		if ksq == board.NoSquare {
			continue
		}
		s := sign(c)
		score += s * kingActivityBonus * (6 - ksq.CenterDistance())

		pos.ForEach(func(sq board.Square, p board.Piece) {
			if p.Type == board.Pawn {
				score += s * kingPawnProximity * (7 - chebyshevDistance(ksq, sq))
			}
		})
	}
	return score
}

// evaluateMobility is 0.1 x (White moves - Black moves), counting pseudo-legal moves.
func evaluateMobility(pos *board.Position) int {
	var count [2]int
	pos.ForEach(func(sq board.Square, p board.Piece) {
		count[p.Color] += len(pos.PseudoLegalMoves(sq))
	})
	return (count[board.White] - count[board.Black]) / mobilityDivisor
}

// evaluateRepetition penalizes the side that just moved when the position has
// already occurred twice in the recent history.
func (ev *Evaluator) evaluateRepetition(pos *board.Position, side board.Color) int {
	if ev.history == nil {
		return 0
	}
	if ev.history.Count(positionKey(pos, side)) >= 2 {
		return sign(side.Other()) * repetitionPenalty
	}
	return 0
}

func chebyshevDistance(a, b board.Square) int {
	return max(abs(a.Rank-b.Rank), abs(a.File-b.File))
}
