package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/game"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustMove(t *testing.T, s *game.Session, from, to string) {
	t.Helper()
	f, err := board.ParseSquare(from)
	if err != nil {
		t.Fatal(err)
	}
	tt, err := board.ParseSquare(to)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Move(f, tt, board.NoPieceType); err != nil {
		t.Fatalf("move %s%s: %v", from, to, err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := openTest(t)

	if _, found, err := s.LoadState(); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	sess := game.NewSession(nil)
	mustMove(t, sess, "e2", "e4")
	mustMove(t, sess, "d7", "d5")
	mustMove(t, sess, "e4", "d5")
	st := sess.State()
	if err := s.SaveState(&st); err != nil {
		t.Fatal(err)
	}

	loaded, found, err := s.LoadState()
	if err != nil || !found {
		t.Fatalf("LoadState: found=%v err=%v", found, err)
	}
	if len(loaded.CapturedByWhite) != 1 || loaded.LastMove == nil {
		t.Errorf("loaded state lost fields: %+v", loaded)
	}

	want, side := sess.Position()
	got, gotSide, err := loaded.Position()
	if err != nil {
		t.Fatal(err)
	}
	if got.ToFEN(gotSide) != want.ToFEN(side) {
		t.Errorf("got %s, want %s", got.ToFEN(gotSide), want.ToFEN(side))
	}
}

func TestClearState(t *testing.T) {
	s := openTest(t)

	st := game.NewGameState()
	if err := s.SaveState(&st); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveHistory(&game.History{StartFEN: board.StartFEN}); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearState(); err != nil {
		t.Fatal(err)
	}

	if _, found, _ := s.LoadState(); found {
		t.Error("state survived ClearState")
	}
	if _, found, _ := s.LoadHistory(); found {
		t.Error("history survived ClearState")
	}
	// Clearing twice is harmless.
	if err := s.ClearState(); err != nil {
		t.Errorf("second ClearState: %v", err)
	}
}

func TestSessionResumesFromStore(t *testing.T) {
	s := openTest(t)

	sess := game.NewSession(nil, game.WithPersister(s))
	mustMove(t, sess, "g1", "f3")
	mustMove(t, sess, "g8", "f6")
	mustMove(t, sess, "b1", "c3")

	st, found, err := s.LoadState()
	if err != nil || !found {
		t.Fatalf("LoadState: found=%v err=%v", found, err)
	}
	h, found, err := s.LoadHistory()
	if err != nil || !found {
		t.Fatalf("LoadHistory: found=%v err=%v", found, err)
	}
	if len(h.Undo) != 3 || len(h.Moves) != 3 {
		t.Fatalf("history: %d snapshots, moves %v", len(h.Undo), h.Moves)
	}

	resumed := game.NewSession(nil)
	if err := resumed.Restore(*st, h); err != nil {
		t.Fatal(err)
	}
	if resumed.Turn() != board.Black {
		t.Errorf("turn = %v, want Black", resumed.Turn())
	}
	if err := resumed.Undo(); err != nil {
		t.Fatal(err)
	}
	pos, _ := resumed.Position()
	b1, _ := board.ParseSquare("b1")
	if pos.PieceAt(b1).Type != board.Knight {
		t.Error("undo after resume did not bring the knight back to b1")
	}

	sess.Reset()
	if _, found, _ := s.LoadState(); found {
		t.Error("Reset should clear the saved game")
	}
}

func TestPreferences(t *testing.T) {
	s := openTest(t)

	prefs, err := s.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Username != "Player" || prefs.AIColor != "b" || prefs.AIDepth != game.DefaultAIDepth {
		t.Errorf("defaults = %+v", prefs)
	}
	if prefs.Difficulty != engine.Medium || !prefs.AIEnabled {
		t.Errorf("defaults = %+v", prefs)
	}

	prefs.Username = "matin"
	prefs.AIColor = "w"
	prefs.AIDepth = 5
	prefs.Difficulty = engine.Hard
	if err := s.SavePreferences(prefs); err != nil {
		t.Fatal(err)
	}
	if prefs.LastPlayed.IsZero() {
		t.Error("LastPlayed not stamped")
	}

	got, err := s.LoadPreferences()
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "matin" || got.AIColor != "w" || got.AIDepth != 5 || got.Difficulty != engine.Hard {
		t.Errorf("loaded = %+v", got)
	}
}

func TestRecordGame(t *testing.T) {
	s := openTest(t)

	results := []game.Outcome{
		{Status: game.Checkmate, Winner: board.White},
		{Status: game.Checkmate, Winner: board.White},
		{Status: game.Stalemate, Winner: board.NoColor},
		{Status: game.Checkmate, Winner: board.Black},
	}
	for _, out := range results {
		if err := s.RecordGame(out, "w", engine.Easy); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordGame(game.Outcome{Status: game.Check}, "w", engine.Easy); err == nil {
		t.Error("recording an unfinished game should fail")
	}

	stats, err := s.LoadStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.GamesPlayed != 4 || stats.Wins != 2 || stats.Draws != 1 || stats.Losses != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LongestWinStrk != 2 || stats.CurrentStreak != 0 {
		t.Errorf("streaks = %d/%d", stats.LongestWinStrk, stats.CurrentStreak)
	}
	if stats.WinsByDiff["easy"] != 2 {
		t.Errorf("wins by difficulty = %v", stats.WinsByDiff)
	}
	if stats.WinRate() != 50 {
		t.Errorf("win rate = %.2f", stats.WinRate())
	}
}

func TestFirstLaunch(t *testing.T) {
	s := openTest(t)

	first, err := s.IsFirstLaunch()
	if err != nil || !first {
		t.Fatalf("first=%v err=%v", first, err)
	}
	if err := s.MarkFirstLaunchComplete(); err != nil {
		t.Fatal(err)
	}
	if first, _ := s.IsFirstLaunch(); first {
		t.Error("still first launch after marking")
	}
}

func TestOpenOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	st := game.NewGameState()
	st.AIEnabled = true
	if err := s.SaveState(&st); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	loaded, found, err := s.LoadState()
	if err != nil || !found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if !loaded.AIEnabled {
		t.Error("AIEnabled lost across reopen")
	}
}

func TestDataPaths(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout only applies on linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	dbDir, err := DatabaseDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, appName, "db"); dbDir != want {
		t.Errorf("DatabaseDir = %s, want %s", dbDir, want)
	}
	if _, err := os.Stat(dbDir); err != nil {
		t.Errorf("database directory was not created: %v", err)
	}
}
