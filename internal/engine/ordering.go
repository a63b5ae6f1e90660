package engine

import (
	"sort"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Move ordering priorities. Each class outranks every move of the next one.
const (
	TTMoveScore    = 10000000 // TT move gets highest priority
	CaptureBase    = 1000000
	CheckScore     = 500000
	PromotionBase  = 400000
	CastlingScore  = 300000
	centerDistBase = 100
)

// MVV-LVA (Most Valuable Victim - Least Valuable Attacker) scores
// Higher score = search first
// Score = victimValue * 10 - attackerValue
var mvvLva = [7][7]int{
	//        -  P   N   B   R   Q   K  (attacker)
	/* - */ {0, 0, 0, 0, 0, 0, 0},
	/* P */ {0, 15, 14, 14, 13, 12, 11},
	/* N */ {0, 25, 24, 24, 23, 22, 21},
	/* B */ {0, 35, 34, 34, 33, 32, 31},
	/* R */ {0, 45, 44, 44, 43, 42, 41},
	/* Q */ {0, 55, 54, 54, 53, 52, 51},
	/* K */ {0, 0, 0, 0, 0, 0, 0}, // King can't be captured
}

type scoredMove struct {
	move  board.Move
	score int
}

// scoreMove ranks a move: captures by victim/attacker, then checks, then
// promotions, then castling, then closeness of the destination to the center.
func scoreMove(pos *board.Position, side board.Color, m board.Move, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	if m.IsCapture(pos) {
		victim := m.Captured(pos).Type
		attacker := pos.PieceAt(m.From).Type
		return CaptureBase + mvvLva[victim][attacker]*100 + pieceValues[m.Promote]/10
	}

	if pos.GivesCheck(m, side) {
		return CheckScore
	}

	if m.IsPromotion() {
		return PromotionBase + pieceValues[m.Promote]
	}

	if m.IsCastling() {
		return CastlingScore
	}

	return centerDistBase - m.To.CenterDistance()
}

// OrderMoves sorts moves best-first. Ties keep generation order, so the
// result is deterministic for a given position.
func OrderMoves(pos *board.Position, side board.Color, moves []board.Move, ttMove board.Move) []board.Move {
	scored := make([]scoredMove, len(moves))
	for i, m := range moves {
		scored[i] = scoredMove{move: m, score: scoreMove(pos, side, m, ttMove)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	ordered := make([]board.Move, len(moves))
	for i, sm := range scored {
		ordered[i] = sm.move
	}
	return ordered
}

// orderCaptures sorts captures by victim value, most valuable first.
func orderCaptures(pos *board.Position, moves []board.Move) {
	sort.SliceStable(moves, func(i, j int) bool {
		vi := pieceValues[moves[i].Captured(pos).Type]
		vj := pieceValues[moves[j].Captured(pos).Type]
		if vi != vj {
			return vi > vj
		}
		return pieceValues[pos.PieceAt(moves[i].From).Type] < pieceValues[pos.PieceAt(moves[j].From).Type]
	})
}
