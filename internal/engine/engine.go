package engine

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Config holds the engine settings.
type Config struct {
	MaxDepth        int           // Deepest iteration
	TimeBudget      time.Duration // Checked between iterations (0 = no limit)
	TTEntries       int           // Transposition table entry budget
	QuiescenceDepth int           // Extra capture-only plies
	BookPlies       int           // Book is consulted while fewer plies were played
	Threads         int           // Root split workers
	UseBook         bool
	Seed            int64 // Seed for book and tie-break randomization
	DisableTT       bool
}

// DefaultConfig returns the settings used by the browser game.
func DefaultConfig() Config {
	return Config{
		MaxDepth:        4,
		TimeBudget:      2 * time.Second,
		TTEntries:       1 << 18,
		QuiescenceDepth: 5,
		BookPlies:       10,
		Threads:         1,
		UseBook:         true,
		Seed:            1,
	}
}

// normalized fills in zero values with defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxDepth <= 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.TTEntries <= 0 {
		c.TTEntries = def.TTEntries
	}
	if c.QuiescenceDepth <= 0 {
		c.QuiescenceDepth = def.QuiescenceDepth
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	return c
}

// SearchLimits overrides the configured limits for one move.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = configured)
	MoveTime time.Duration // Time budget (0 = configured)
	Ply      int           // Half-moves already played, for the book cutoff
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // 2 ply, 500ms
	Medium                   // 4 ply, 2s
	Hard                     // 6 ply, 5s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 2, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 4, MoveTime: 2 * time.Second},
	Hard:   {Depth: 6, MoveTime: 5 * time.Second},
}

func (d Difficulty) String() string {
	switch d {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("difficulty(%d)", int(d))
	}
}

// ParseDifficulty accepts "easy", "medium" or "hard".
func ParseDifficulty(s string) (Difficulty, error) {
	for d := Easy; d <= Hard; d++ {
		if d.String() == s {
			return d, nil
		}
	}
	return Medium, fmt.Errorf("unknown difficulty %q", s)
}

// OpeningBook supplies moves for the first plies of a game. Returned moves
// are re-validated by the engine before they are played.
type OpeningBook interface {
	Probe(pos *board.Position, side board.Color, ply int, rng *rand.Rand) (board.Move, bool)
}

// perpetualStreak is the number of consecutive knight or queen checks after
// which the engine looks for another move.
const perpetualStreak = 3

// candidatePool is how many of the best non-repeating moves are sampled from.
const candidatePool = 3

// repetitionMargin is how far below the best alternative a sampled
// alternative may score.
const repetitionMargin = 30

// maxRepetitionCost is the most the engine gives up to avoid a repetition or
// a perpetual check. Below it the chosen move is kept.
const maxRepetitionCost = 150

// Engine is the chess AI engine.
type Engine struct {
	mu   sync.Mutex
	cfg  Config
	sc   atomic.Pointer[SearchContext] // swapped by Resize, read without mu by Stop
	book OpeningBook
	rng  *rand.Rand

	difficulty Difficulty
	last       SearchResult

	// Callbacks
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine. book may be nil.
func NewEngine(cfg Config, book OpeningBook) *Engine {
	cfg = cfg.normalized()
	e := &Engine{
		cfg:        cfg,
		book:       book,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		difficulty: Medium,
	}
	e.sc.Store(NewSearchContext(cfg))
	return e
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Context returns the search context owning the tables and history.
func (e *Engine) Context() *SearchContext {
	return e.sc.Load()
}

// SetDifficulty sets the depth and time budget from a preset.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.mu.Lock()
	defer e.mu.Unlock()
	limits, ok := DifficultySettings[d]
	if !ok {
		return
	}
	e.difficulty = d
	e.cfg.MaxDepth = limits.Depth
	e.cfg.TimeBudget = limits.MoveTime
}

// SetBook replaces the opening book. nil disables it.
func (e *Engine) SetBook(book OpeningBook) {
	e.mu.Lock()
	e.book = book
	e.mu.Unlock()
}

// Observe records a position that occurred in the game.
func (e *Engine) Observe(pos *board.Position, sideToMove board.Color) {
	e.Context().History().Push(positionKey(pos, sideToMove))
}

// ChooseMove picks a move for side. It never returns NoMove while a legal
// move exists; ErrNoLegalMoves means checkmate or stalemate.
func (e *Engine) ChooseMove(ctx context.Context, pos *board.Position, side board.Color, limits SearchLimits) (board.Move, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	legal := pos.LegalMoves(side)
	if len(legal) == 0 {
		return board.NoMove, ErrNoLegalMoves
	}

	if e.cfg.UseBook && e.book != nil && limits.Ply < e.cfg.BookPlies {
		if m, ok := e.book.Probe(pos, side, limits.Ply, e.rng); ok {
			if bm, found := board.FindMove(legal, m.From, m.To, m.Promote); found {
				log.Printf("[BOOK] %s", bm)
				e.updateStreak(pos, side, bm)
				return bm, nil
			}
			log.Printf("[BOOK] ignoring illegal book move %s", m)
		}
	}

	if m, ok := findMateInOne(pos, side, legal); ok {
		log.Printf("[AI] mate in one: %s", m)
		e.updateStreak(pos, side, m)
		return m, nil
	}

	depth := e.cfg.MaxDepth
	if limits.Depth > 0 {
		depth = limits.Depth
	}
	budget := e.cfg.TimeBudget
	if limits.MoveTime > 0 {
		budget = limits.MoveTime
	}

	result, err := e.Context().Search(ctx, pos, side, depth, budget, e.OnInfo)
	if err != nil {
		return board.NoMove, err
	}
	e.last = result

	log.Printf("[AI] depth %d score %s nodes %d time %v move %s",
		result.Depth, ScoreToString(result.Score), result.Nodes, result.Time.Round(time.Millisecond), result.Move)

	move := e.avoidRepetition(pos, side, result)
	e.updateStreak(pos, side, move)
	return move, nil
}

// LastResult returns the result of the most recent completed search.
func (e *Engine) LastResult() SearchResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// findMateInOne returns the first move in generation order that checkmates.
func findMateInOne(pos *board.Position, side board.Color, legal []board.Move) (board.Move, bool) {
	opp := side.Other()
	for _, m := range legal {
		next, err := pos.After(m)
		if err != nil {
			continue
		}
		if next.InCheck(opp) && !next.HasLegalMoves(opp) {
			return m, true
		}
	}
	return board.NoMove, false
}

// isHeavyCheck reports whether m gives check with a knight or a queen.
func isHeavyCheck(pos *board.Position, side board.Color, m board.Move) bool {
	pt := pos.PieceAt(m.From).Type
	if m.IsPromotion() {
		pt = m.Promote
	}
	return (pt == board.Knight || pt == board.Queen) && pos.GivesCheck(m, side)
}

// repeats reports whether playing m recreates a position from the history.
func (e *Engine) repeats(pos *board.Position, side board.Color, m board.Move) bool {
	next, err := pos.After(m)
	if err != nil {
		return true
	}
	return e.Context().History().Contains(positionKey(next, side.Other()))
}

// avoidRepetition replaces a chosen move that repeats a recent position, or
// that continues a long knight or queen check sequence, with a random pick
// among the best alternatives. Alternatives are re-searched with a full
// window at the depth of the result and only those within repetitionMargin
// of the best one are sampled. If every alternative costs more than
// maxRepetitionCost the chosen move stands.
func (e *Engine) avoidRepetition(pos *board.Position, side board.Color, result SearchResult) board.Move {
	sc := e.Context()
	chosen := result.Move
	perpetual := sc.checkStreak+1 >= perpetualStreak && isHeavyCheck(pos, side, chosen)
	if !perpetual && !e.repeats(pos, side, chosen) {
		return chosen
	}

	var alternatives []RootMove
	bestAlt := -Infinity
	for _, rm := range result.Ranked {
		if rm.Move == chosen || e.repeats(pos, side, rm.Move) {
			continue
		}
		if perpetual && isHeavyCheck(pos, side, rm.Move) {
			continue
		}
		// Ranked scores are upper bounds in descending order: nothing
		// further down can come within the margin.
		if len(alternatives) > 0 && rm.Score < bestAlt-repetitionMargin {
			break
		}
		score, err := sc.ScoreMove(pos, side, result.Depth, rm.Move)
		if err != nil {
			continue
		}
		alternatives = append(alternatives, RootMove{Move: rm.Move, Score: score})
		bestAlt = max(bestAlt, score)
	}

	if len(alternatives) == 0 || bestAlt < result.Score-maxRepetitionCost {
		log.Printf("[AI] keeping %s: no alternative within %d", chosen, maxRepetitionCost)
		return chosen
	}

	sort.SliceStable(alternatives, func(i, j int) bool {
		return alternatives[i].Score > alternatives[j].Score
	})
	candidates := make([]board.Move, 0, candidatePool)
	for _, rm := range alternatives {
		if len(candidates) == candidatePool || rm.Score < bestAlt-repetitionMargin {
			break
		}
		candidates = append(candidates, rm.Move)
	}

	picked := candidates[e.rng.Intn(len(candidates))]
	log.Printf("[AI] avoiding repetition: %s instead of %s", picked, chosen)
	return picked
}

func (e *Engine) updateStreak(pos *board.Position, side board.Color, m board.Move) {
	sc := e.Context()
	if isHeavyCheck(pos, side, m) {
		sc.checkStreak++
	} else {
		sc.checkStreak = 0
	}
}

// Stop stops the running search after its first iteration. With no search
// running it stops the next one to start.
func (e *Engine) Stop() {
	e.Context().Stop()
}

// Clear clears the transposition table, caches and history for a new game.
func (e *Engine) Clear() {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Context().Clear()
	e.last = SearchResult{}
	e.rng = rand.New(rand.NewSource(e.cfg.Seed))
}

// Resize rebuilds the search context with a new table budget and thread count.
// The history is carried over.
func (e *Engine) Resize(ttEntries, threads int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	old := e.Context()
	keys := old.History().Keys()
	e.cfg.TTEntries = ttEntries
	e.cfg.Threads = threads
	e.cfg = e.cfg.normalized()
	sc := NewSearchContext(e.cfg)
	sc.History().Reset(keys)
	e.sc.Store(sc)
	old.Drop()
}

// SetUseBook enables or disables the opening book.
func (e *Engine) SetUseBook(on bool) {
	e.mu.Lock()
	e.cfg.UseBook = on
	e.mu.Unlock()
}

// Close releases the search context.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Context().Drop()
}

// Evaluate returns the static evaluation of a position, positive favoring White.
func (e *Engine) Evaluate(pos *board.Position, side board.Color) int {
	return NewEvaluator(nil, e.Context().History()).Evaluate(pos, side)
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-MaxPly {
		return fmt.Sprintf("Mate in %d", (MateScore-score+1)/2)
	}
	if score < -MateScore+MaxPly {
		return fmt.Sprintf("Mated in %d", (MateScore+score+1)/2)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	return fmt.Sprintf("%s%d.%02d", sign, score/100, score%100)
}
