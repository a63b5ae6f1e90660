package engine

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

func mustParseFEN(t *testing.T, fen string) (*board.Position, board.Color) {
	t.Helper()
	pos, side, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos, side
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TimeBudget = 0
	cfg.UseBook = false
	cfg.TTEntries = 1 << 14
	return cfg
}

var searchFENs = []string{
	"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	"4k3/8/8/3r4/8/8/3Q4/4K3 w - - 0 1",
	"r3k2r/ppp2ppp/2n5/3qp3/8/2N2N2/PPP2PPP/R2QK2R b KQkq - 0 1",
	"8/5pk1/6p1/8/8/6P1/5PK1/8 w - - 0 1",
}

func TestSearchBasic(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(testConfig(), nil)
	eng.SetDifficulty(Easy)

	move, err := eng.ChooseMove(context.Background(), pos, board.White, SearchLimits{})
	if err != nil {
		t.Fatalf("ChooseMove: %v", err)
	}
	if !pos.IsLegal(move, board.White) {
		t.Errorf("ChooseMove returned illegal move %s", move)
	}
	t.Logf("Best move: %s", move)
}

func TestMateInOne(t *testing.T) {
	pos, side := mustParseFEN(t, "6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")

	eng := NewEngine(testConfig(), nil)
	move, err := eng.ChooseMove(context.Background(), pos, side, SearchLimits{Depth: 1})
	if err != nil {
		t.Fatalf("ChooseMove: %v", err)
	}
	if move.String() != "a1a8" {
		t.Errorf("got %s, want a1a8", move)
	}

	// The search finds it too, with a mate score.
	sc := NewSearchContext(testConfig())
	res, err := sc.Search(context.Background(), pos, side, 3, 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Move.String() != "a1a8" {
		t.Errorf("search got %s, want a1a8", res.Move)
	}
	if res.Score != MateScore-1 {
		t.Errorf("score = %d, want %d", res.Score, MateScore-1)
	}
	if res.Depth != 1 {
		t.Errorf("search should stop after finding mate, reached depth %d", res.Depth)
	}
}

func TestNoLegalMoves(t *testing.T) {
	pos, side := mustParseFEN(t, "k7/2Q5/1K6/8/8/8/8/8 b - - 0 1")
	eng := NewEngine(testConfig(), nil)

	_, err := eng.ChooseMove(context.Background(), pos, side, SearchLimits{})
	if !errors.Is(err, ErrNoLegalMoves) {
		t.Errorf("err = %v, want ErrNoLegalMoves", err)
	}
}

func TestSearchDeterministic(t *testing.T) {
	for _, fen := range searchFENs {
		pos, side := mustParseFEN(t, fen)

		var first board.Move
		for i := 0; i < 3; i++ {
			eng := NewEngine(testConfig(), nil)
			move, err := eng.ChooseMove(context.Background(), pos, side, SearchLimits{Depth: 3})
			if err != nil {
				t.Fatalf("%s: %v", fen, err)
			}
			if i == 0 {
				first = move
			} else if move != first {
				t.Errorf("%s: run %d chose %s, first run chose %s", fen, i, move, first)
			}
		}
	}
}

func TestTranspositionTableDoesNotChangeMove(t *testing.T) {
	for _, fen := range searchFENs {
		pos, side := mustParseFEN(t, fen)

		withTT := NewSearchContext(testConfig())
		cfg := testConfig()
		cfg.DisableTT = true
		withoutTT := NewSearchContext(cfg)

		for depth := 1; depth <= 3; depth++ {
			a, err := withTT.Search(context.Background(), pos, side, depth, 0, nil)
			if err != nil {
				t.Fatal(err)
			}
			b, err := withoutTT.Search(context.Background(), pos, side, depth, 0, nil)
			if err != nil {
				t.Fatal(err)
			}
			if a.Move != b.Move || a.Score != b.Score {
				t.Errorf("%s depth %d: with TT %s (%d), without %s (%d)",
					fen, depth, a.Move, a.Score, b.Move, b.Score)
			}
		}
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	for _, fen := range searchFENs {
		pos, side := mustParseFEN(t, fen)

		seq := NewSearchContext(testConfig())
		cfg := testConfig()
		cfg.Threads = 3
		par := NewSearchContext(cfg)

		a, err := seq.Search(context.Background(), pos, side, 2, 0, nil)
		if err != nil {
			t.Fatal(err)
		}
		b, err := par.Search(context.Background(), pos, side, 2, 0, nil)
		if err != nil {
			t.Fatal(err)
		}
		if a.Move != b.Move || a.Score != b.Score {
			t.Errorf("%s: sequential %s (%d), parallel %s (%d)", fen, a.Move, a.Score, b.Move, b.Score)
		}
	}
}

func TestCancelledSearchKeepsFirstIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := NewSearchContext(testConfig())
	res, err := sc.Search(ctx, board.NewPosition(), board.White, 6, 0, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Depth != 1 {
		t.Errorf("depth = %d, want 1", res.Depth)
	}
	if res.Move.IsNull() {
		t.Error("cancelled search returned no move")
	}
}

func TestSearchReportsEachDepth(t *testing.T) {
	sc := NewSearchContext(testConfig())
	var depths []int
	_, err := sc.Search(context.Background(), board.NewPosition(), board.White, 2, 0, func(info SearchInfo) {
		depths = append(depths, info.Depth)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(depths) != 2 || depths[0] != 1 || depths[1] != 2 {
		t.Errorf("reported depths %v, want [1 2]", depths)
	}
}

func TestDroppedContext(t *testing.T) {
	sc := NewSearchContext(testConfig())
	sc.Drop()
	if _, err := sc.Search(context.Background(), board.NewPosition(), board.White, 1, 0, nil); !errors.Is(err, ErrContextDropped) {
		t.Errorf("err = %v, want ErrContextDropped", err)
	}
}

func TestAvoidsRepetition(t *testing.T) {
	ctx := context.Background()
	pos, side := mustParseFEN(t, "6k1/5ppp/2p1p3/3p4/8/8/PPP2PPP/3Q2K1 w - - 0 1")

	first, err := NewEngine(testConfig(), nil).ChooseMove(ctx, pos, side, SearchLimits{Depth: 3})
	if err != nil {
		t.Fatal(err)
	}
	after, err := pos.After(first)
	if err != nil {
		t.Fatal(err)
	}

	for seed := int64(1); seed <= 5; seed++ {
		cfg := testConfig()
		cfg.Seed = seed
		eng := NewEngine(cfg, nil)
		eng.Observe(after, side.Other())

		second, err := eng.ChooseMove(ctx, pos, side, SearchLimits{Depth: 3})
		if err != nil {
			t.Fatal(err)
		}
		if second == first {
			t.Errorf("seed %d: engine repeated position with %s", seed, first)
		}
		if !pos.IsLegal(second, side) {
			t.Fatalf("seed %d: replacement %s is illegal", seed, second)
		}

		best := eng.LastResult().Score
		score, err := eng.Context().ScoreMove(pos, side, 3, second)
		if err != nil {
			t.Fatal(err)
		}
		if score < best-maxRepetitionCost {
			t.Errorf("seed %d: %s scores %d, best %d: repetition avoided at a loss", seed, second, score, best)
		}
	}
}

func TestAvoidsPerpetualCheck(t *testing.T) {
	ctx := context.Background()
	eng := NewEngine(testConfig(), nil)

	// Back-rank mate with the queen: a knight or queen check every time.
	mate, mateSide := mustParseFEN(t, "6k1/5ppp/8/8/8/8/8/3Q2K1 w - - 0 1")
	for i := 1; i <= 2; i++ {
		m, err := eng.ChooseMove(ctx, mate, mateSide, SearchLimits{Depth: 2})
		if err != nil {
			t.Fatal(err)
		}
		if !isHeavyCheck(mate, mateSide, m) {
			t.Fatalf("%s is not a queen check", m)
		}
		if got := eng.Context().checkStreak; got != i {
			t.Fatalf("check streak = %d, want %d", got, i)
		}
	}

	// d1d8 checks without mating; the third check in a row is replaced.
	pos, side := mustParseFEN(t, "6k1/5pp1/7p/8/8/8/5PPP/3Q2K1 w - - 0 1")
	check, err := board.ParseMove("d1d8", pos, side)
	if err != nil {
		t.Fatal(err)
	}
	result, err := eng.Context().Search(ctx, pos, side, 2, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	result.Move = check
	if result.Score, err = eng.Context().ScoreMove(pos, side, 2, check); err != nil {
		t.Fatal(err)
	}
	if m := eng.avoidRepetition(pos, side, result); m == check || isHeavyCheck(pos, side, m) {
		t.Errorf("third check in a row not avoided: %s", m)
	}

	m, err := eng.ChooseMove(ctx, pos, side, SearchLimits{Depth: 2})
	if err != nil {
		t.Fatal(err)
	}
	if isHeavyCheck(pos, side, m) {
		t.Errorf("ChooseMove played a third consecutive check: %s", m)
	}
	if got := eng.Context().checkStreak; got != 0 {
		t.Errorf("check streak after a quiet move = %d, want 0", got)
	}

	// The count starts over.
	if _, err := eng.ChooseMove(ctx, mate, mateSide, SearchLimits{Depth: 2}); err != nil {
		t.Fatal(err)
	}
	if got := eng.Context().checkStreak; got != 1 {
		t.Errorf("check streak = %d, want 1", got)
	}
}

func TestRankedRootMoves(t *testing.T) {
	pos, side := mustParseFEN(t, "6k1/5ppp/2p1p3/3p4/8/8/PPP2PPP/3Q2K1 w - - 0 1")
	sc := NewSearchContext(testConfig())

	result, err := sc.Search(context.Background(), pos, side, 3, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Ranked) != len(pos.LegalMoves(side)) {
		t.Fatalf("ranked %d moves, want %d", len(result.Ranked), len(pos.LegalMoves(side)))
	}
	if result.Ranked[0].Move != result.Move || result.Ranked[0].Score != result.Score {
		t.Errorf("ranked[0] = %+v, want %s %d", result.Ranked[0], result.Move, result.Score)
	}
	for i := 1; i < len(result.Ranked); i++ {
		if result.Ranked[i].Score > result.Ranked[0].Score {
			t.Errorf("%s scores above the best move", result.Ranked[i].Move)
		}
		if i > 1 && result.Ranked[i].Score > result.Ranked[i-1].Score {
			t.Errorf("ranked out of order at %d: %+v after %+v", i, result.Ranked[i], result.Ranked[i-1])
		}
	}

	// Qxd5 drops the queen for a pawn and ranks below the quiet queen moves.
	for _, rm := range result.Ranked[:3] {
		if rm.Move.String() == "d1d5" {
			t.Errorf("d1d5 ranked among the top moves: %+v", result.Ranked[:3])
		}
	}
}

func TestStopBeforeSearch(t *testing.T) {
	ctx := context.Background()
	pos := board.NewPosition()
	sc := NewSearchContext(testConfig())

	sc.Stop()
	result, err := sc.Search(ctx, pos, board.White, 4, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Depth != 1 {
		t.Errorf("stopped search reached depth %d, want 1", result.Depth)
	}

	// The stop request applied to one search only.
	result, err = sc.Search(ctx, pos, board.White, 2, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Depth != 2 {
		t.Errorf("depth = %d, want 2", result.Depth)
	}
}

func TestClearDoesNotStopNextSearch(t *testing.T) {
	eng := NewEngine(testConfig(), nil)
	eng.Clear()
	if _, err := eng.ChooseMove(context.Background(), board.NewPosition(), board.White, SearchLimits{Depth: 2}); err != nil {
		t.Fatal(err)
	}
	if got := eng.LastResult().Depth; got != 2 {
		t.Errorf("depth after Clear = %d, want 2", got)
	}
}

func TestStopDuringResize(t *testing.T) {
	eng := NewEngine(testConfig(), nil)
	pos := board.NewPosition()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			eng.Stop()
			eng.Evaluate(pos, board.White)
		}
	}()
	for i := 0; i < 5; i++ {
		eng.Resize(1<<10, 1+i%2)
	}
	<-done

	if cfg := eng.Config(); cfg.TTEntries != 1<<10 || cfg.Threads != 1 {
		t.Errorf("config = %+v", cfg)
	}
}

type stubBook struct {
	move board.Move
}

func (b stubBook) Probe(*board.Position, board.Color, int, *rand.Rand) (board.Move, bool) {
	return b.move, true
}

func TestBookMovesAreValidated(t *testing.T) {
	pos := board.NewPosition()
	cfg := testConfig()
	cfg.UseBook = true

	legal, err := board.ParseMove("d2d4", pos, board.White)
	if err != nil {
		t.Fatal(err)
	}
	eng := NewEngine(cfg, stubBook{move: legal})
	move, err := eng.ChooseMove(context.Background(), pos, board.White, SearchLimits{Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if move != legal {
		t.Errorf("got %s, want book move d2d4", move)
	}

	bogus := board.NewMove(board.NewSquare(6, 4), board.NewSquare(3, 4)) // e2e5
	eng = NewEngine(cfg, stubBook{move: bogus})
	move, err = eng.ChooseMove(context.Background(), pos, board.White, SearchLimits{Depth: 1})
	if err != nil {
		t.Fatal(err)
	}
	if move == bogus || !pos.IsLegal(move, board.White) {
		t.Errorf("illegal book move %s was played", move)
	}

	// Past the book plies the book is not consulted.
	eng = NewEngine(cfg, stubBook{move: legal})
	move, err = eng.ChooseMove(context.Background(), pos, board.White, SearchLimits{Depth: 1, Ply: cfg.BookPlies})
	if err != nil {
		t.Fatal(err)
	}
	if !pos.IsLegal(move, board.White) {
		t.Errorf("illegal move %s", move)
	}
}

func TestTranspositionTable(t *testing.T) {
	tt := NewTranspositionTable(64)
	move := board.NewMove(board.NewSquare(6, 4), board.NewSquare(4, 4))

	tt.Store(1, 5, 120, TTExact, move)
	tt.Store(1, 3, -40, TTUpperBound, board.NoMove)

	entry, ok := tt.Probe(1)
	if !ok {
		t.Fatal("expected hit")
	}
	if entry.Depth != 5 || entry.Score != 120 || entry.Flag != TTExact || entry.BestMove != move {
		t.Errorf("shallower store replaced deeper entry: %+v", entry)
	}

	for key := uint64(100); key < 200; key++ {
		tt.Store(key, 1, 0, TTExact, board.NoMove)
	}
	if tt.Len() > tt.Capacity() {
		t.Errorf("Len %d exceeds capacity %d", tt.Len(), tt.Capacity())
	}
	if _, ok := tt.Probe(1); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := tt.Probe(199); !ok {
		t.Error("newest entry should be present")
	}

	tt.Clear()
	if tt.Len() != 0 {
		t.Errorf("Len after Clear = %d", tt.Len())
	}
}

func TestMateScoreAdjustment(t *testing.T) {
	score := MateScore - 5
	stored := AdjustScoreToTT(score, 3)
	if got := AdjustScoreFromTT(stored, 3); got != score {
		t.Errorf("round trip = %d, want %d", got, score)
	}
	if AdjustScoreToTT(150, 7) != 150 {
		t.Error("non-mate scores must not be adjusted")
	}
}

func TestPawnHashTable(t *testing.T) {
	pt := NewPawnTable(100)
	pos := board.NewPosition()

	if _, _, found := pt.Probe(pos.PawnKey()); found {
		t.Error("Expected cache miss on first probe")
	}

	pt.Store(pos.PawnKey(), -15, -20)
	mg, eg, found := pt.Probe(pos.PawnKey())
	if !found {
		t.Error("Expected cache hit after store")
	}
	if mg != -15 || eg != -20 {
		t.Errorf("Wrong values: got mg=%d, eg=%d, want -15, -20", mg, eg)
	}

	after, err := pos.After(board.NewMove(board.NewSquare(6, 4), board.NewSquare(4, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if after.PawnKey() == pos.PawnKey() {
		t.Error("PawnKey should change when pawn moves")
	}
}

func TestPositionHistoryLimit(t *testing.T) {
	h := NewPositionHistory()
	for key := uint64(0); key < 25; key++ {
		h.Push(key)
	}
	if h.Len() != HistoryLimit {
		t.Errorf("Len = %d, want %d", h.Len(), HistoryLimit)
	}
	if h.Contains(0) {
		t.Error("oldest key should be dropped")
	}
	if !h.Contains(24) {
		t.Error("newest key missing")
	}

	h.Push(24)
	if h.Count(24) != 2 {
		t.Errorf("Count = %d, want 2", h.Count(24))
	}
}

func TestEvaluate(t *testing.T) {
	if score := Evaluate(board.NewPosition(), board.White); score != 0 {
		t.Errorf("start position = %d, want 0", score)
	}

	pos, side := mustParseFEN(t, "4k3/8/8/8/8/8/8/3QK3 w - - 0 1")
	if score := Evaluate(pos, side); score < QueenValue/2 {
		t.Errorf("queen up = %d, want clearly positive", score)
	}

	pos, side = mustParseFEN(t, "R6k/6pp/8/8/8/8/8/K7 b - - 0 1")
	if score := Evaluate(pos, side); score != MateScore {
		t.Errorf("black mated = %d, want %d", score, MateScore)
	}

	pos, side = mustParseFEN(t, "k7/2Q5/1K6/8/8/8/8/8 b - - 0 1")
	if score := Evaluate(pos, side); score != 0 {
		t.Errorf("stalemate = %d, want 0", score)
	}

	pos, side = mustParseFEN(t, "4k3/8/8/8/8/8/8/2N1K3 w - - 0 1")
	if score := Evaluate(pos, side); score != 0 {
		t.Errorf("king and knight = %d, want 0", score)
	}
}

func TestRepetitionTerm(t *testing.T) {
	pos := board.NewPosition()
	h := NewPositionHistory()
	ev := NewEvaluator(nil, h)
	base := ev.Evaluate(pos, board.White)

	h.Push(PositionKey(pos, board.White))
	h.Push(PositionKey(pos, board.White))
	if got := ev.Evaluate(pos, board.White); got != base-repetitionPenalty {
		t.Errorf("repeated position = %d, want %d", got, base-repetitionPenalty)
	}
}

func TestSafeTerm(t *testing.T) {
	if got := safeTerm(func() int { panic("broken term") }); got != 0 {
		t.Errorf("panicking term = %d, want 0", got)
	}
	if got := safeTerm(func() int { return 42 }); got != 42 {
		t.Errorf("safeTerm = %d, want 42", got)
	}
}

func TestOrderMovesCapturesFirst(t *testing.T) {
	pos, side := mustParseFEN(t, "4k3/8/8/3r4/8/8/3Q4/4K3 w - - 0 1")
	ordered := OrderMoves(pos, side, pos.LegalMoves(side), board.NoMove)
	if ordered[0].String() != "d2d5" {
		t.Errorf("first move = %s, want d2d5", ordered[0])
	}

	tt := ordered[len(ordered)-1]
	ordered = OrderMoves(pos, side, pos.LegalMoves(side), tt)
	if ordered[0] != tt {
		t.Errorf("TT move %s not ordered first", tt)
	}
}

func TestMoveBudget(t *testing.T) {
	if got := MoveBudget(ClockLimits{MoveTime: time.Second}, board.White, 0); got != time.Second {
		t.Errorf("movetime budget = %v", got)
	}
	if got := MoveBudget(ClockLimits{Infinite: true}, board.White, 0); got != 0 {
		t.Errorf("infinite budget = %v, want 0", got)
	}

	var limits ClockLimits
	limits.Time[board.Black] = time.Minute
	got := MoveBudget(limits, board.Black, 40)
	if got <= 0 || got > time.Minute/5 {
		t.Errorf("clock budget = %v", got)
	}
}

func TestScoreToString(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{150, "1.50"},
		{-5, "-0.05"},
		{0, "0.00"},
		{MateScore - 1, "Mate in 1"},
		{-MateScore + 2, "Mated in 1"},
	}
	for _, tt := range tests {
		if got := ScoreToString(tt.score); got != tt.want {
			t.Errorf("ScoreToString(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
