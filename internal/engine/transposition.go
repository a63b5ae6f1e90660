package engine

import (
	"sync"
	"sync/atomic"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// String returns the bound name.
func (f TTFlag) String() string {
	switch f {
	case TTExact:
		return "exact"
	case TTLowerBound:
		return "lower"
	case TTUpperBound:
		return "upper"
	default:
		return "unknown"
	}
}

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Score    int
	Depth    int
	Flag     TTFlag
	BestMove board.Move // NoMove if none was found
}

// TranspositionTable caches search results by position key under a fixed
// entry budget. Entries live in two generations: new stores go to the
// current one, and when it reaches half the budget it becomes the old
// generation and the previous old one is dropped. Filling up therefore
// evicts the oldest half in one step.
type TranspositionTable struct {
	mu       sync.RWMutex
	current  map[uint64]TTEntry
	previous map[uint64]TTEntry
	capacity int

	// Statistics
	hits   atomic.Uint64
	probes atomic.Uint64
}

// minTTEntries keeps tiny budgets usable.
const minTTEntries = 64

// NewTranspositionTable creates a table holding at most entries results.
func NewTranspositionTable(entries int) *TranspositionTable {
	if entries < minTTEntries {
		entries = minTTEntries
	}
	return &TranspositionTable{
		current:  make(map[uint64]TTEntry),
		previous: make(map[uint64]TTEntry),
		capacity: entries,
	}
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(key uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	tt.mu.RLock()
	entry, ok := tt.current[key]
	if !ok {
		entry, ok = tt.previous[key]
	}
	tt.mu.RUnlock()

	if ok {
		tt.hits.Add(1)
	}
	return entry, ok
}

// Store saves a search result. An entry already in the current generation is
// only replaced by one searched at least as deep.
func (tt *TranspositionTable) Store(key uint64, depth, score int, flag TTFlag, bestMove board.Move) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if old, ok := tt.current[key]; ok && old.Depth > depth {
		return
	}

	if len(tt.current) >= tt.capacity/2 {
		tt.previous = tt.current
		tt.current = make(map[uint64]TTEntry, tt.capacity/2)
	}

	tt.current[key] = TTEntry{Score: score, Depth: depth, Flag: flag, BestMove: bestMove}
}

// Len returns the number of stored entries across both generations.
func (tt *TranspositionTable) Len() int {
	tt.mu.RLock()
	defer tt.mu.RUnlock()
	return len(tt.current) + len(tt.previous)
}

// Capacity returns the entry budget.
func (tt *TranspositionTable) Capacity() int {
	return tt.capacity
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	tt.mu.Lock()
	tt.current = make(map[uint64]TTEntry)
	tt.previous = make(map[uint64]TTEntry)
	tt.mu.Unlock()
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// HashFull returns the permille (parts per thousand) of the budget in use.
func (tt *TranspositionTable) HashFull() int {
	return tt.Len() * 1000 / tt.capacity
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// AdjustScoreFromTT converts a stored mate score back to a distance from the current ply.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT stores mate scores relative to the node instead of the root.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
