// Package book implements the opening book: a table from a position key to
// an ordered list of candidate moves.
package book

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

//go:embed openings.json
var defaultOpenings []byte

// Book maps position keys to moves in coordinate notation, most preferred first.
type Book struct {
	entries map[string][]string
}

// New creates an empty book.
func New() *Book {
	return &Book{
		entries: make(map[string][]string),
	}
}

// Default returns the book compiled into the binary.
func Default() (*Book, error) {
	return Parse(defaultOpenings)
}

// Load reads a JSON book of the form {"<key>": ["e2e4", ...]} from r.
func Load(r io.Reader) (*Book, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadFile loads a JSON book from a file.
func LoadFile(filename string) (*Book, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Load(file)
}

// Parse decodes a JSON book. Keys may be full FEN strings; they are reduced
// with NormalizeKey.
func Parse(data []byte) (*Book, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse opening book: %w", err)
	}

	b := New()
	for key, moves := range raw {
		b.Add(key, moves...)
	}
	return b, nil
}

// Key returns the book key of a position: placement, side to move and
// castling rights. The en passant square is not part of the key.
func Key(pos *board.Position, side board.Color) string {
	return NormalizeKey(pos.ToFEN(side))
}

// NormalizeKey reduces a FEN or partial FEN to the first three fields.
func NormalizeKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 3 {
		fields = fields[:3]
	}
	return strings.Join(fields, " ")
}

// Add appends moves to the entry for key.
func (b *Book) Add(key string, moves ...string) {
	key = NormalizeKey(key)
	b.entries[key] = append(b.entries[key], moves...)
}

// Probe returns a book move for the position using weighted random selection,
// where earlier entries weigh more. Entries that are not legal in the position
// are skipped. ply is ignored; the caller decides how long the book applies.
func (b *Book) Probe(pos *board.Position, side board.Color, ply int, rng *rand.Rand) (board.Move, bool) {
	moves := b.ProbeAll(pos, side)
	if len(moves) == 0 {
		return board.NoMove, false
	}

	// Weights n, n-1, ..., 1
	n := len(moves)
	total := n * (n + 1) / 2

	var r int
	if rng != nil {
		r = rng.Intn(total)
	} else {
		r = rand.Intn(total)
	}

	cumulative := 0
	for i, m := range moves {
		cumulative += n - i
		if r < cumulative {
			return m, true
		}
	}

	// Fallback to first entry
	return moves[0], true
}

// ProbeAll returns the legal book moves for the position in book order.
func (b *Book) ProbeAll(pos *board.Position, side board.Color) []board.Move {
	if b == nil {
		return nil
	}

	entries, ok := b.entries[Key(pos, side)]
	if !ok {
		return nil
	}

	moves := make([]board.Move, 0, len(entries))
	for _, s := range entries {
		m, err := board.ParseMove(s, pos, side)
		if err != nil {
			continue
		}
		moves = append(moves, m)
	}
	return moves
}

// Size returns the number of unique positions in the book.
func (b *Book) Size() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
