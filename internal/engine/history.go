package engine

import (
	"sync"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// HistoryLimit is how many recent positions the history keeps.
const HistoryLimit = 20

// PositionHistory is the append-only record of recent position keys used for
// repetition and perpetual check heuristics. Only the newest HistoryLimit
// entries are kept.
type PositionHistory struct {
	mu     sync.RWMutex
	hashes []uint64
}

// NewPositionHistory creates an empty history.
func NewPositionHistory() *PositionHistory {
	return &PositionHistory{hashes: make([]uint64, 0, HistoryLimit)}
}

// positionKey combines the placement hash with the side to move.
func positionKey(pos *board.Position, side board.Color) uint64 {
	return pos.Hash() ^ board.SideKey(side)
}

// PositionKey returns the key under which a position with side to move is recorded.
func PositionKey(pos *board.Position, side board.Color) uint64 {
	return positionKey(pos, side)
}

// Push appends a key, dropping the oldest one past the limit.
func (h *PositionHistory) Push(key uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hashes = append(h.hashes, key)
	if len(h.hashes) > HistoryLimit {
		h.hashes = append(h.hashes[:0], h.hashes[len(h.hashes)-HistoryLimit:]...)
	}
}

// Count returns how many times key occurs in the history.
func (h *PositionHistory) Count(key uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, k := range h.hashes {
		if k == key {
			n++
		}
	}
	return n
}

// Contains returns true if key has been seen.
func (h *PositionHistory) Contains(key uint64) bool {
	return h.Count(key) > 0
}

// Len returns the number of stored keys.
func (h *PositionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hashes)
}

// Keys returns a copy of the stored keys, oldest first.
func (h *PositionHistory) Keys() []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]uint64(nil), h.hashes...)
}

// Reset replaces the contents with keys, keeping only the newest HistoryLimit.
func (h *PositionHistory) Reset(keys []uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(keys) > HistoryLimit {
		keys = keys[len(keys)-HistoryLimit:]
	}
	h.hashes = append(h.hashes[:0], keys...)
}

// Clear empties the history.
func (h *PositionHistory) Clear() {
	h.mu.Lock()
	h.hashes = h.hashes[:0]
	h.mu.Unlock()
}
