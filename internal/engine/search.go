package engine

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 64
)

// nodesPerPoll is how often a worker checks for cancellation.
const nodesPerPoll = 1024

var (
	// ErrNoLegalMoves is returned when the side to move has no legal move.
	ErrNoLegalMoves = errors.New("no legal moves")
	// ErrContextDropped is returned by a SearchContext after Drop.
	ErrContextDropped = errors.New("search context dropped")

	errSearchAborted = errors.New("search aborted")
)

// SearchInfo contains information about a completed iteration.
type SearchInfo struct {
	Depth    int
	Score    int // From the side to move's point of view
	Nodes    uint64
	Time     time.Duration
	Move     board.Move
	HashFull int // Permille of hash table used
}

// SearchResult is the outcome of an iterative deepening run.
type SearchResult struct {
	Move  board.Move
	Score int
	Depth int
	Nodes uint64
	Time  time.Duration
	// Ranked lists the root moves by their score at the last completed depth,
	// best first.
	Ranked []RootMove
}

// RootMove is a root move with its score from the side to move's point of
// view. The best move's score is exact; the others may be upper bounds,
// since alpha-beta only proves they are no better than the best.
type RootMove struct {
	Move  board.Move
	Score int
}

// SearchContext owns the state that outlives a single search: the
// transposition table, the pawn cache and the position history. It is
// created with NewSearchContext, reset with Clear on a new game and released
// with Drop.
type SearchContext struct {
	cfg     Config
	tt      *TranspositionTable
	shards  []*TranspositionTable
	pawns   *PawnTable
	history *PositionHistory

	// checkStreak counts consecutive chosen moves that gave check with a knight or queen.
	checkStreak int

	nodes   atomic.Uint64
	stop    atomic.Bool
	dropped bool
}

// NewSearchContext allocates the tables described by cfg.
func NewSearchContext(cfg Config) *SearchContext {
	cfg = cfg.normalized()
	sc := &SearchContext{
		cfg:     cfg,
		tt:      NewTranspositionTable(cfg.TTEntries),
		pawns:   NewPawnTable(pawnTableSlots),
		history: NewPositionHistory(),
	}
	if cfg.Threads > 1 {
		sc.shards = make([]*TranspositionTable, cfg.Threads)
		for i := range sc.shards {
			sc.shards[i] = NewTranspositionTable(cfg.TTEntries / cfg.Threads)
		}
	}
	return sc
}

const pawnTableSlots = 1 << 14

// Clear empties the tables and the history, as on a new game.
func (sc *SearchContext) Clear() {
	if sc.dropped {
		return
	}
	sc.tt.Clear()
	for _, shard := range sc.shards {
		shard.Clear()
	}
	sc.pawns.Clear()
	sc.history.Clear()
	sc.checkStreak = 0
	sc.stop.Store(false)
}

// Drop releases the tables. Searching a dropped context returns ErrContextDropped.
func (sc *SearchContext) Drop() {
	sc.Stop()
	sc.tt = nil
	sc.shards = nil
	sc.pawns = nil
	sc.history = NewPositionHistory()
	sc.dropped = true
}

// History returns the position history consulted by evaluation and repetition avoidance.
func (sc *SearchContext) History() *PositionHistory {
	return sc.history
}

// TT returns the main transposition table, or nil after Drop.
func (sc *SearchContext) TT() *TranspositionTable {
	return sc.tt
}

// Config returns the configuration the context was built with.
func (sc *SearchContext) Config() Config {
	return sc.cfg
}

// Stop signals a running search to stop after its current node.
func (sc *SearchContext) Stop() {
	sc.stop.Store(true)
}

// Nodes returns the number of nodes searched by the last search.
func (sc *SearchContext) Nodes() uint64 {
	return sc.nodes.Load()
}

// Search runs iterative deepening from depth 1 to maxDepth. The elapsed time
// is compared with budget between depths only, so one deep iteration may run
// past it. Cancelling ctx or calling Stop aborts iterations after the first,
// keeping the last completed result. A Stop that arrives before the search
// starts applies to it; the stop request is consumed when the search returns.
func (sc *SearchContext) Search(ctx context.Context, pos *board.Position, side board.Color, maxDepth int, budget time.Duration, report func(SearchInfo)) (SearchResult, error) {
	if sc.dropped {
		return SearchResult{}, ErrContextDropped
	}
	defer sc.stop.Store(false)

	rootMoves := pos.LegalMoves(side)
	if len(rootMoves) == 0 {
		return SearchResult{}, ErrNoLegalMoves
	}

	sc.nodes.Store(0)

	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxDepth > MaxPly/2 {
		maxDepth = MaxPly / 2
	}

	start := time.Now()
	rootMoves = OrderMoves(pos, side, rootMoves, board.NoMove)
	result := SearchResult{Move: rootMoves[0]}

	for depth := 1; depth <= maxDepth; depth++ {
		if depth > 1 && (ctx.Err() != nil || sc.stop.Load() || (budget > 0 && time.Since(start) >= budget)) {
			break
		}

		move, score, scores, err := sc.searchDepth(ctx, pos, side, depth, rootMoves)
		if err != nil {
			break
		}

		ranked := rankRootMoves(rootMoves, scores, move)
		rootMoves = moveToFront(rootMoves, move)
		result = SearchResult{
			Move:   move,
			Score:  score,
			Depth:  depth,
			Nodes:  sc.nodes.Load(),
			Time:   time.Since(start),
			Ranked: ranked,
		}

		if report != nil {
			report(SearchInfo{
				Depth:    depth,
				Score:    score,
				Nodes:    result.Nodes,
				Time:     result.Time,
				Move:     move,
				HashFull: sc.tt.HashFull(),
			})
		}

		// Early termination: found mate
		if score > MateScore-MaxPly || score < -MateScore+MaxPly {
			break
		}
	}

	return result, nil
}

// searchDepth searches every root move to depth and returns the best move,
// its score and the score of each root move. The first iteration cannot be
// aborted so a move is always available.
func (sc *SearchContext) searchDepth(ctx context.Context, pos *board.Position, side board.Color, depth int, rootMoves []board.Move) (board.Move, int, []int, error) {
	if len(sc.shards) > 1 && len(rootMoves) > 1 {
		return sc.searchRootParallel(ctx, pos, side, depth, rootMoves)
	}

	w := sc.newWorker(ctx, sc.tt, sc.pawns, depth > 1)
	move, score, scores := w.searchRoot(pos, side, depth, rootMoves)
	sc.nodes.Add(w.nodes)
	if w.aborted {
		return board.NoMove, 0, nil, errSearchAborted
	}
	return move, score, scores, nil
}

// ScoreMove returns the exact score of playing m, searched to depth with a
// full window. It cannot be stopped.
func (sc *SearchContext) ScoreMove(pos *board.Position, side board.Color, depth int, m board.Move) (int, error) {
	if sc.dropped {
		return 0, ErrContextDropped
	}
	next, err := pos.After(m)
	if err != nil {
		return 0, err
	}
	w := sc.newWorker(context.Background(), sc.tt, sc.pawns, false)
	score := -w.negamax(next, side.Other(), max(depth-1, 0), 1, -Infinity, Infinity)
	sc.nodes.Add(w.nodes)
	return score, nil
}

// rankRootMoves sorts the root moves by score with best first. Equal scores
// keep the search order.
func rankRootMoves(moves []board.Move, scores []int, best board.Move) []RootMove {
	ranked := make([]RootMove, 0, len(moves))
	for i, m := range moves {
		if m == best {
			ranked = append(ranked, RootMove{Move: m, Score: scores[i]})
		}
	}
	for i, m := range moves {
		if m != best {
			ranked = append(ranked, RootMove{Move: m, Score: scores[i]})
		}
	}
	rest := ranked[1:]
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Score > rest[j].Score
	})
	return ranked
}

func (sc *SearchContext) newWorker(ctx context.Context, tt *TranspositionTable, pawns *PawnTable, abortable bool) *worker {
	if sc.cfg.DisableTT {
		tt = nil
	}
	return &worker{
		ctx:       ctx,
		tt:        tt,
		eval:      NewEvaluator(pawns, sc.history),
		stop:      &sc.stop,
		qdepth:    sc.cfg.QuiescenceDepth,
		abortable: abortable,
	}
}

// moveToFront returns moves with m first and the rest in their previous order.
func moveToFront(moves []board.Move, m board.Move) []board.Move {
	out := make([]board.Move, 0, len(moves))
	out = append(out, m)
	for _, mv := range moves {
		if mv != m {
			out = append(out, mv)
		}
	}
	return out
}

// worker runs one recursive search. It is not safe for concurrent use.
type worker struct {
	ctx       context.Context
	tt        *TranspositionTable
	eval      *Evaluator
	stop      *atomic.Bool
	qdepth    int
	abortable bool
	aborted   bool
	nodes     uint64
}

// shouldStop reports whether the search must unwind.
func (w *worker) shouldStop() bool {
	if !w.abortable {
		return false
	}
	if w.aborted {
		return true
	}
	if w.stop.Load() {
		w.aborted = true
		return true
	}
	if w.nodes%nodesPerPoll == 0 && w.ctx != nil && w.ctx.Err() != nil {
		w.aborted = true
		return true
	}
	return false
}

// searchRoot searches each root move in order with a shared alpha and
// returns the first move reaching the best score. Scores of moves that fail
// low are upper bounds.
func (w *worker) searchRoot(pos *board.Position, side board.Color, depth int, rootMoves []board.Move) (board.Move, int, []int) {
	alpha, beta := -Infinity, Infinity
	bestMove := board.NoMove
	bestScore := -Infinity
	scores := make([]int, len(rootMoves))

	for i, m := range rootMoves {
		scores[i] = -Infinity
		next, err := pos.After(m)
		if err != nil {
			continue
		}
		score := -w.negamax(next, side.Other(), depth-1, 1, -beta, -alpha)
		if w.aborted {
			return board.NoMove, 0, nil
		}
		scores[i] = score
		if score > bestScore {
			bestScore = score
			bestMove = m
		}
		if score > alpha {
			alpha = score
		}
	}

	if w.tt != nil && bestMove != board.NoMove {
		w.tt.Store(positionKey(pos, side), depth, AdjustScoreToTT(bestScore, 0), TTExact, bestMove)
	}
	return bestMove, bestScore, scores
}

// negamax returns the score of pos for side searched to depth.
func (w *worker) negamax(pos *board.Position, side board.Color, depth, ply, alpha, beta int) int {
	w.nodes++
	if w.shouldStop() {
		return 0
	}

	moves := pos.LegalMoves(side)
	if len(moves) == 0 {
		if pos.InCheck(side) {
			return -MateScore + ply
		}
		return 0
	}
	if depth <= 0 {
		return w.quiescence(pos, side, 0, ply, alpha, beta)
	}

	key := positionKey(pos, side)
	alphaOrig := alpha
	ttMove := board.NoMove

	// Bounds are only reused from exactly the same depth, not from deeper
	// entries as is usual: a deeper bound can change which of two equal moves
	// wins, and the chosen move must not depend on the table.
	if w.tt != nil {
		if entry, ok := w.tt.Probe(key); ok {
			ttMove = entry.BestMove
			if entry.Depth == depth {
				score := AdjustScoreFromTT(entry.Score, ply)
				switch entry.Flag {
				case TTExact:
					return score
				case TTLowerBound:
					alpha = max(alpha, score)
				case TTUpperBound:
					beta = min(beta, score)
				}
				if alpha >= beta {
					return score
				}
			}
		}
	}

	bestScore := -Infinity
	bestMove := board.NoMove

	for _, m := range OrderMoves(pos, side, moves, ttMove) {
		next, err := pos.After(m)
		if err != nil {
			continue
		}
		score := -w.negamax(next, side.Other(), depth-1, ply+1, -beta, -alpha)
		if w.aborted {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}

	if w.tt != nil {
		flag := TTExact
		if bestScore <= alphaOrig {
			flag = TTUpperBound
		} else if bestScore >= beta {
			flag = TTLowerBound
		}
		w.tt.Store(key, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)
	}

	return bestScore
}

// quiescence extends the search along captures only, up to the quiescence
// depth, using the static score as a lower bound.
func (w *worker) quiescence(pos *board.Position, side board.Color, qply, ply, alpha, beta int) int {
	w.nodes++
	if w.shouldStop() {
		return 0
	}

	if !pos.HasLegalMoves(side) {
		if pos.InCheck(side) {
			return -MateScore + ply
		}
		return 0
	}

	standPat := sign(side) * w.eval.score(pos, side)
	if qply >= w.qdepth || standPat >= beta {
		return standPat
	}
	if standPat > alpha {
		alpha = standPat
	}

	captures := pos.Captures(side)
	orderCaptures(pos, captures)

	for _, m := range captures {
		next, err := pos.After(m)
		if err != nil {
			continue
		}
		score := -w.quiescence(next, side.Other(), qply+1, ply+1, -beta, -alpha)
		if w.aborted {
			return 0
		}
		if score >= beta {
			return score
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}
