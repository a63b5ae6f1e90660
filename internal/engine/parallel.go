package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// rootScore is the full-window score of one root move.
type rootScore struct {
	index int
	score int
}

// searchRootParallel splits the root moves across the table shards. Every
// move gets a full window so its score does not depend on which worker ran
// it, and the merge picks the highest score with ties going to the earliest
// move. The result is therefore the same for any thread count.
func (sc *SearchContext) searchRootParallel(ctx context.Context, pos *board.Position, side board.Color, depth int, rootMoves []board.Move) (board.Move, int, []int, error) {
	threads := min(len(sc.shards), len(rootMoves))
	results := make([][]rootScore, threads)
	workers := make([]*worker, threads)

	g, gctx := errgroup.WithContext(ctx)
	for t := 0; t < threads; t++ {
		t := t
		// Each worker has its own pawn cache; the shared history is read-only during search.
		w := sc.newWorker(gctx, sc.shards[t], NewPawnTable(pawnTableSlots/threads), depth > 1)
		workers[t] = w
		g.Go(func() error {
			for i := t; i < len(rootMoves); i += threads {
				next, err := pos.After(rootMoves[i])
				if err != nil {
					continue
				}
				score := -w.negamax(next, side.Other(), depth-1, 1, -Infinity, Infinity)
				if w.aborted {
					return errSearchAborted
				}
				results[t] = append(results[t], rootScore{index: i, score: score})
			}
			return nil
		})
	}

	err := g.Wait()
	for _, w := range workers {
		sc.nodes.Add(w.nodes)
	}
	if err != nil {
		return board.NoMove, 0, nil, err
	}

	scores := make([]int, len(rootMoves))
	for i := range scores {
		scores[i] = -Infinity
	}
	best := rootScore{index: -1, score: -Infinity}
	for _, rs := range results {
		for _, r := range rs {
			scores[r.index] = r.score
			if best.index < 0 || r.score > best.score || (r.score == best.score && r.index < best.index) {
				best = r
			}
		}
	}
	if best.index < 0 {
		return board.NoMove, 0, nil, ErrNoLegalMoves
	}

	if !sc.cfg.DisableTT {
		sc.tt.Store(positionKey(pos, side), depth, best.score, TTExact, rootMoves[best.index])
	}
	return rootMoves[best.index], best.score, scores, nil
}
