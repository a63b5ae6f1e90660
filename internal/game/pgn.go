package game

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// PGN exports the moves played since the start position.
func (s *Session) PGN() (string, error) {
	s.mu.Lock()
	start := s.history.StartFEN
	moves := append([]string(nil), s.history.Moves...)
	s.mu.Unlock()

	return ExportPGN(start, moves)
}

// ExportPGN replays coordinate moves from a FEN and renders the game as PGN.
func ExportPGN(startFEN string, moves []string) (string, error) {
	var g *chess.Game
	if startFEN == "" || startFEN == board.StartFEN {
		g = chess.NewGame()
	} else {
		opt, err := chess.FEN(startFEN)
		if err != nil {
			return "", fmt.Errorf("pgn start position: %w", err)
		}
		g = chess.NewGame(opt)
	}

	for i, uci := range moves {
		var played bool
		for _, m := range g.ValidMoves() {
			if m.String() == uci {
				if err := g.Move(m); err != nil {
					return "", fmt.Errorf("pgn move %d (%s): %w", i+1, uci, err)
				}
				played = true
				break
			}
		}
		if !played {
			return "", fmt.Errorf("pgn move %d (%s) is not legal", i+1, uci)
		}
	}

	return g.String(), nil
}
