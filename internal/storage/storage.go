package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/game"
)

// Storage keys
const (
	keyState       = "game_state"
	keyHistory     = "game_history"
	keyPreferences = "preferences"
	keyStats       = "stats"
	keyFirstLaunch = "first_launch"
)

// Preferences stores the player's settings between sessions.
type Preferences struct {
	Username   string            `json:"username"`
	AIEnabled  bool              `json:"ai_enabled"`
	AIColor    string            `json:"ai_color"`
	AIDepth    int               `json:"ai_depth"`
	Difficulty engine.Difficulty `json:"difficulty"`
	UseBook    bool              `json:"use_book"`
	LastPlayed time.Time         `json:"last_played"`
}

// DefaultPreferences returns the settings of a first launch.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Username:   "Player",
		AIEnabled:  true,
		AIColor:    "b",
		AIDepth:    game.DefaultAIDepth,
		Difficulty: engine.Medium,
		UseBook:    true,
	}
}

// GameStats stores results of finished games.
type GameStats struct {
	GamesPlayed    int            `json:"games_played"`
	Wins           int            `json:"wins"`
	Losses         int            `json:"losses"`
	Draws          int            `json:"draws"`
	WinsByDiff     map[string]int `json:"wins_by_difficulty"`
	LongestWinStrk int            `json:"longest_win_streak"`
	CurrentStreak  int            `json:"current_streak"`
}

// NewGameStats returns empty game statistics
func NewGameStats() *GameStats {
	return &GameStats{WinsByDiff: make(map[string]int)}
}

// WinRate returns the win rate as a percentage (0-100).
func (s *GameStats) WinRate() float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.GamesPlayed) * 100
}

// Store persists games and settings in BadgerDB. It implements game.Persister.
type Store struct {
	db *badger.DB
}

var _ game.Persister = (*Store)(nil)

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenDefault opens the database in the per-user data directory.
func OpenDefault() (*Store, error) {
	dir, err := DatabaseDir()
	if err != nil {
		return nil, err
	}
	return Open(dir)
}

// OpenInMemory opens a database that lives only as long as the Store.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// get decodes key into v and reports whether the key existed.
func (s *Store) get(key string, v any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	return found, nil
}

// SaveState stores the current game snapshot.
func (s *Store) SaveState(st *game.GameState) error {
	return s.put(keyState, st)
}

// LoadState returns the saved snapshot, or false when there is none.
func (s *Store) LoadState() (*game.GameState, bool, error) {
	var st game.GameState
	found, err := s.get(keyState, &st)
	if err != nil || !found {
		return nil, false, err
	}
	return &st, true, nil
}

// ClearState removes the saved game and its history.
func (s *Store) ClearState() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(keyState)); err != nil {
			return err
		}
		return txn.Delete([]byte(keyHistory))
	})
}

// SaveHistory stores the undo/redo record.
func (s *Store) SaveHistory(h *game.History) error {
	return s.put(keyHistory, h)
}

// LoadHistory returns the saved undo/redo record, or false when there is none.
func (s *Store) LoadHistory() (*game.History, bool, error) {
	var h game.History
	found, err := s.get(keyHistory, &h)
	if err != nil || !found {
		return nil, false, err
	}
	return &h, true, nil
}

// SavePreferences saves user preferences
func (s *Store) SavePreferences(prefs *Preferences) error {
	prefs.LastPlayed = time.Now()
	return s.put(keyPreferences, prefs)
}

// LoadPreferences loads user preferences, returns defaults if not found
func (s *Store) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()
	if _, err := s.get(keyPreferences, prefs); err != nil {
		return DefaultPreferences(), err
	}
	if prefs.AIColor != "w" {
		prefs.AIColor = "b"
	}
	if prefs.AIDepth <= 0 {
		prefs.AIDepth = game.DefaultAIDepth
	}
	return prefs, nil
}

// LoadStats loads game statistics, returns empty stats if not found
func (s *Store) LoadStats() (*GameStats, error) {
	stats := NewGameStats()
	if _, err := s.get(keyStats, stats); err != nil {
		return NewGameStats(), err
	}
	if stats.WinsByDiff == nil {
		stats.WinsByDiff = make(map[string]int)
	}
	return stats, nil
}

// RecordGame adds a finished game to the statistics from the point of view
// of the player of color human.
func (s *Store) RecordGame(out game.Outcome, human string, diff engine.Difficulty) error {
	if !out.Status.Terminal() {
		return fmt.Errorf("record game: game is not over (%s)", out.Status)
	}
	stats, err := s.LoadStats()
	if err != nil {
		return err
	}

	stats.GamesPlayed++
	switch {
	case out.Status == game.Stalemate:
		stats.Draws++
		stats.CurrentStreak = 0
	case out.Winner.Code() == human:
		stats.Wins++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.LongestWinStrk {
			stats.LongestWinStrk = stats.CurrentStreak
		}
		stats.WinsByDiff[diff.String()]++
	default:
		stats.Losses++
		stats.CurrentStreak = 0
	}

	return s.put(keyStats, stats)
}

// IsFirstLaunch returns true if this is the first launch
func (s *Store) IsFirstLaunch() (bool, error) {
	var marker string
	found, err := s.get(keyFirstLaunch, &marker)
	return !found, err
}

// MarkFirstLaunchComplete marks that first launch setup is complete
func (s *Store) MarkFirstLaunchComplete() error {
	return s.put(keyFirstLaunch, "done")
}
