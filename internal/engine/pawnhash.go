package engine

// PawnEntry stores cached pawn structure evaluation.
type PawnEntry struct {
	Key     uint64
	MgScore int16 // Middlegame score
	EgScore int16 // Endgame score
	Used    bool
}

// PawnTable is a direct-mapped cache of pawn structure scores keyed by the
// pawn-only hash. It is owned by one search worker and not synchronized.
type PawnTable struct {
	entries []PawnEntry
	mask    uint64
	hits    uint64
	probes  uint64
}

// NewPawnTable creates a pawn table with at least the given number of slots,
// rounded up to a power of two.
func NewPawnTable(slots int) *PawnTable {
	size := 1
	for size < slots {
		size *= 2
	}
	return &PawnTable{
		entries: make([]PawnEntry, size),
		mask:    uint64(size - 1),
	}
}

// Probe returns the cached middlegame and endgame scores for key.
func (pt *PawnTable) Probe(key uint64) (mg, eg int, found bool) {
	pt.probes++
	entry := &pt.entries[key&pt.mask]
	if entry.Used && entry.Key == key {
		pt.hits++
		return int(entry.MgScore), int(entry.EgScore), true
	}
	return 0, 0, false
}

// Store saves a pawn structure evaluation, replacing whatever shared the slot.
func (pt *PawnTable) Store(key uint64, mg, eg int) {
	pt.entries[key&pt.mask] = PawnEntry{Key: key, MgScore: int16(mg), EgScore: int16(eg), Used: true}
}

// HitRate returns the cache hit rate as a percentage.
func (pt *PawnTable) HitRate() float64 {
	if pt.probes == 0 {
		return 0
	}
	return float64(pt.hits) / float64(pt.probes) * 100
}

// Clear clears the pawn hash table.
func (pt *PawnTable) Clear() {
	for i := range pt.entries {
		pt.entries[i] = PawnEntry{}
	}
	pt.hits, pt.probes = 0, 0
}
