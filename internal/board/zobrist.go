package board

// Zobrist hash keys for position hashing.
// Uses PRNG with fixed seed for reproducibility.
var (
	zobristPiece      [2][7][8][8]uint64 // [Color][PieceType][Rank][File]
	zobristEnPassant  [8]uint64          // One per file
	zobristCastling   [16]uint64         // All 16 castling combinations
	zobristSideToMove uint64             // XOR when black to move
)

func init() {
	initZobrist()
}

// Simple PRNG for reproducible Zobrist keys
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

// xorshift64* algorithm
func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x98F107A2BEEF1234) // Fixed seed

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			for r := 0; r < 8; r++ {
				for f := 0; f < 8; f++ {
					zobristPiece[c][pt][r][f] = rng.next()
				}
			}
		}
	}

	for file := 0; file < 8; file++ {
		zobristEnPassant[file] = rng.next()
	}

	for i := 0; i < 16; i++ {
		zobristCastling[i] = rng.next()
	}

	zobristSideToMove = rng.next()
}

// Hash computes the Zobrist hash of piece placement, castling rights and the
// en passant file. Side to move is not included; see SideKey.
func (p *Position) Hash() uint64 {
	var hash uint64

	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := p.Board[r][f]
			if !piece.IsEmpty() {
				hash ^= zobristPiece[piece.Color][piece.Type][r][f]
			}
		}
	}

	hash ^= zobristCastling[p.CastlingRights&AllCastling]

	if p.EnPassant.IsValid() {
		hash ^= zobristEnPassant[p.EnPassant.File]
	}

	return hash
}

// PawnKey hashes only pawn placement, for pawn structure caching.
func (p *Position) PawnKey() uint64 {
	var key uint64
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			piece := p.Board[r][f]
			if piece.Type == Pawn {
				key ^= zobristPiece[piece.Color][Pawn][r][f]
			}
		}
	}
	return key
}

// SideKey returns the key mixed into Hash by callers that need a side-dependent key.
func SideKey(side Color) uint64 {
	if side == Black {
		return zobristSideToMove
	}
	return 0
}
