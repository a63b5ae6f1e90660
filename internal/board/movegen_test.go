package board

import (
	"errors"
	"testing"
)

func sq(s string) Square {
	square, err := ParseSquare(s)
	if err != nil {
		panic(err)
	}
	return square
}

func hasMove(moves []Move, uci string) bool {
	for _, m := range moves {
		if m.String() == uci {
			return true
		}
	}
	return false
}

func TestSquareNotation(t *testing.T) {
	tests := []struct {
		name string
		sq   Square
	}{
		{"a8", NewSquare(0, 0)},
		{"h1", NewSquare(7, 7)},
		{"e4", NewSquare(4, 4)},
		{"d5", NewSquare(3, 3)},
	}
	for _, tc := range tests {
		if got := tc.sq.String(); got != tc.name {
			t.Errorf("%v.String() = %s, want %s", tc.sq, got, tc.name)
		}
		parsed, err := ParseSquare(tc.name)
		if err != nil || parsed != tc.sq {
			t.Errorf("ParseSquare(%s) = %v, %v", tc.name, parsed, err)
		}
	}
	if _, err := ParseSquare("i9"); err == nil {
		t.Error("Expected error for off-board square")
	}
}

func TestCastling(t *testing.T) {
	tests := []struct {
		name      string
		fen       string
		kingside  bool
		queenside bool
	}{
		{"both available", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", true, true},
		{"f-file occupied", "r3k2r/8/8/8/8/8/8/R3KB1R w KQkq - 0 1", false, true},
		{"g-file occupied", "r3k2r/8/8/8/8/8/8/R3K1NR w KQkq - 0 1", false, true},
		{"king in check", "4k3/4r3/8/8/8/8/8/R3K2R w KQ - 0 1", false, false},
		{"f-file attacked", "4k3/5r2/8/8/8/8/8/R3K2R w KQ - 0 1", false, true},
		{"g-file attacked", "4k3/6r1/8/8/8/8/8/R3K2R w KQ - 0 1", false, true},
		{"b-file attacked is allowed", "4k3/1r6/8/8/8/8/8/R3K2R w KQ - 0 1", true, true},
		{"d-file attacked", "4k3/3r4/8/8/8/8/8/R3K2R w KQ - 0 1", true, false},
		{"b-file occupied", "4k3/8/8/8/8/8/8/RN2K2R w KQ - 0 1", true, false},
		{"no rights", "4k3/8/8/8/8/8/8/R3K2R w - - 0 1", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, side := mustParseFEN(t, tc.fen)
			moves := pos.LegalMoves(side)
			if got := hasMove(moves, "e1g1"); got != tc.kingside {
				t.Errorf("kingside castling = %v, want %v", got, tc.kingside)
			}
			if got := hasMove(moves, "e1c1"); got != tc.queenside {
				t.Errorf("queenside castling = %v, want %v", got, tc.queenside)
			}
		})
	}
}

func TestCastlingAfterKingMoved(t *testing.T) {
	pos, _ := mustParseFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")

	for _, m := range []Move{NewMove(sq("e1"), sq("f1")), NewMove(sq("e8"), sq("f8")), NewMove(sq("f1"), sq("e1")), NewMove(sq("f8"), sq("e8"))} {
		if err := pos.Apply(m); err != nil {
			t.Fatalf("Apply(%v): %v", m, err)
		}
	}

	if pos.CastlingRights != NoCastling {
		t.Errorf("castling rights = %s, want -", pos.CastlingRights)
	}
	moves := pos.LegalMoves(White)
	if hasMove(moves, "e1g1") || hasMove(moves, "e1c1") {
		t.Error("castling must be illegal after the king has moved")
	}
}

func TestApplyCastlingMovesRook(t *testing.T) {
	pos, side := mustParseFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")

	m, err := ParseMove("e1g1", pos, side)
	if err != nil {
		t.Fatal(err)
	}
	if m.Kind != CastleKingside {
		t.Fatalf("kind = %v, want castle-k", m.Kind)
	}
	if err := pos.Apply(m); err != nil {
		t.Fatal(err)
	}

	if !pos.PieceAt(sq("f1")).Is(Rook, White) || !pos.IsEmpty(sq("h1")) {
		t.Errorf("rook not relocated:%v", pos)
	}
	if pos.CastlingRights.Any(White) {
		t.Errorf("white keeps castling rights %s", pos.CastlingRights)
	}
	if pos.CastlingRights != BlackKingSideCastle|BlackQueenSideCastle {
		t.Errorf("black rights changed: %s", pos.CastlingRights)
	}
}

func TestRookCaptureClearsRight(t *testing.T) {
	pos, _ := mustParseFEN(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")

	if err := pos.Apply(NewMove(sq("h1"), sq("h8"))); err != nil {
		t.Fatal(err)
	}
	if pos.CastlingRights.CanCastle(White, true) {
		t.Error("moving rook must clear its own right")
	}
	if pos.CastlingRights.CanCastle(Black, true) {
		t.Error("captured corner rook must clear its right")
	}
	if !pos.CastlingRights.CanCastle(Black, false) || !pos.CastlingRights.CanCastle(White, false) {
		t.Error("queenside rights must be untouched")
	}
}

func TestEnPassantExpires(t *testing.T) {
	pos, _ := mustParseFEN(t, "4k3/3p4/8/4P3/8/8/7P/4K3 b - - 0 1")

	if err := pos.Apply(NewMove(sq("d7"), sq("d5"))); err != nil {
		t.Fatal(err)
	}
	if pos.EnPassant != sq("d6") {
		t.Fatalf("en passant target = %v, want d6", pos.EnPassant)
	}

	moves := pos.LegalMovesFrom(sq("e5"), White)
	m, ok := FindMove(moves, sq("e5"), sq("d6"), NoPieceType)
	if !ok || !m.IsEnPassant() {
		t.Fatalf("expected e5xd6 en passant in %v", moves)
	}

	captured, err := pos.After(m)
	if err != nil {
		t.Fatal(err)
	}
	if !captured.IsEmpty(sq("d5")) {
		t.Error("en passant must remove the pawn behind the destination")
	}

	// One ply later the capture is gone.
	if err := pos.Apply(NewMove(sq("h2"), sq("h3"))); err != nil {
		t.Fatal(err)
	}
	if pos.EnPassant != NoSquare {
		t.Errorf("en passant target = %v after a quiet move", pos.EnPassant)
	}
	if err := pos.Apply(NewMove(sq("e8"), sq("f7"))); err != nil {
		t.Fatal(err)
	}
	if hasMove(pos.LegalMoves(White), "e5d6") {
		t.Error("en passant must expire after one ply")
	}
}

func TestPromotionExpandsToFourMoves(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		from string
		want int
	}{
		{"push", "8/P7/8/8/8/8/8/k1K5 w - - 0 1", "a7", 4},
		{"push and capture", "1n6/P7/8/8/8/8/8/k1K5 w - - 0 1", "a7", 8},
		{"black push", "k1K5/8/8/8/8/8/7p/8 b - - 0 1", "h2", 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pos, side := mustParseFEN(t, tc.fen)
			moves := pos.LegalMovesFrom(sq(tc.from), side)
			if len(moves) != tc.want {
				t.Fatalf("got %d moves %v, want %d", len(moves), moves, tc.want)
			}
			seen := map[PieceType]int{}
			for _, m := range moves {
				if !m.IsPromotion() {
					t.Errorf("bare pawn move %v onto the last rank", m)
				}
				seen[m.Promote]++
			}
			for _, pt := range PromotionTypes {
				if seen[pt] != tc.want/4 {
					t.Errorf("promotion to %v seen %d times", pt, seen[pt])
				}
			}
		})
	}
}

func TestLegalMovesDoNotMutate(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3",
	}
	for _, fen := range fens {
		pos, side := mustParseFEN(t, fen)
		before := *pos

		moves := pos.LegalMoves(side)
		for _, m := range moves {
			if _, err := pos.After(m); err != nil {
				t.Fatalf("After(%v): %v", m, err)
			}
		}
		pos.HasLegalMoves(side)
		pos.Perft(side, 2)

		if *pos != before {
			t.Errorf("position mutated by generation: %s", fen)
		}
		if pos.ToFEN(side) != before.ToFEN(side) {
			t.Errorf("FEN changed for %s", fen)
		}
	}
}

func TestLegalMovesNeverLeaveKingInCheck(t *testing.T) {
	pos, side := mustParseFEN(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")

	var walk func(p *Position, side Color, depth int)
	walk = func(p *Position, side Color, depth int) {
		for _, m := range p.LegalMoves(side) {
			next, err := p.After(m)
			if err != nil {
				t.Fatalf("After(%v): %v", m, err)
			}
			if next.InCheck(side) {
				t.Fatalf("%v leaves %v in check", m, side)
			}
			if depth > 1 {
				walk(next, side.Other(), depth-1)
			}
		}
	}
	walk(pos, side, 2)
}

func TestApplyRejectsBadInput(t *testing.T) {
	pos := NewPosition()
	before := *pos

	if err := pos.Apply(NewMove(sq("e4"), sq("e5"))); !errors.Is(err, ErrNoPiece) {
		t.Errorf("Apply from empty square: err = %v, want ErrNoPiece", err)
	}
	if err := pos.Apply(NewMove(Square{Rank: -1, File: 0}, sq("a1"))); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Apply off board: err = %v, want ErrOutOfBounds", err)
	}
	if *pos != before {
		t.Error("failed Apply must not mutate the position")
	}

	if moves := pos.LegalMovesFrom(Square{Rank: 9, File: 9}, White); len(moves) != 0 {
		t.Errorf("off-board square yielded moves %v", moves)
	}
	if moves := pos.LegalMovesFrom(sq("e7"), White); len(moves) != 0 {
		t.Errorf("wrong side yielded moves %v", moves)
	}
	if pos.IsSquareAttacked(Square{Rank: 8, File: 0}, Black) {
		t.Error("off-board square reported attacked")
	}
}

func TestParseMoveRejectsIllegal(t *testing.T) {
	pos := NewPosition()

	if _, err := ParseMove("e2e5", pos, White); err == nil {
		t.Error("expected e2e5 to be rejected")
	}
	if _, err := ParseMove("e7e5", pos, White); err == nil {
		t.Error("expected black move to be rejected for white")
	}
	m, err := ParseMove("g1f3", pos, White)
	if err != nil || m != NewMove(sq("g1"), sq("f3")) {
		t.Errorf("ParseMove(g1f3) = %v, %v", m, err)
	}
}

func TestFENRoundTrip(t *testing.T) {
	fens := []string{
		StartFEN,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 1",
		"8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1",
	}
	for _, fen := range fens {
		pos, side := mustParseFEN(t, fen)
		if got := pos.ToFEN(side); got != fen {
			t.Errorf("ToFEN = %s, want %s", got, fen)
		}
	}
}

func TestHashDistinguishesPositions(t *testing.T) {
	a := NewPosition()
	b, err := a.After(NewMove(sq("e2"), sq("e4")))
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash() == b.Hash() {
		t.Error("different positions share a hash")
	}
	if a.Hash() != NewPosition().Hash() {
		t.Error("equal positions must hash equally")
	}
	if SideKey(White) == SideKey(Black) {
		t.Error("side keys must differ")
	}
}

func TestSAN(t *testing.T) {
	pos2, side2 := mustParseFEN(t, "7k/6pp/8/8/8/8/8/R3K2R w KQ - 0 1")
	tests := []struct {
		pos  *Position
		side Color
		uci  string
		want string
	}{
		{pos2, side2, "a1a8", "Ra8#"},
		{pos2, side2, "e1g1", "O-O"},
		{pos2, side2, "e1c1", "O-O-O"},
		{NewPosition(), White, "g1f3", "Nf3"},
		{NewPosition(), White, "e2e4", "e4"},
	}
	for _, tc := range tests {
		m, err := ParseMove(tc.uci, tc.pos, tc.side)
		if err != nil {
			t.Fatalf("ParseMove(%s): %v", tc.uci, err)
		}
		if got := m.ToSAN(tc.pos, tc.side); got != tc.want {
			t.Errorf("ToSAN(%s) = %s, want %s", tc.uci, got, tc.want)
		}
		back, err := ParseSAN(tc.want, tc.pos, tc.side)
		if err != nil || back != m {
			t.Errorf("ParseSAN(%s) = %v, %v", tc.want, back, err)
		}
	}
}
