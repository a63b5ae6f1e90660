package game

import (
	"fmt"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// Status is the state of play for the side to move.
type Status int

const (
	Playing Status = iota
	Check
	Checkmate
	Stalemate
)

// String returns the status name.
func (st Status) String() string {
	switch st {
	case Playing:
		return "playing"
	case Check:
		return "check"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	default:
		return "unknown"
	}
}

// Terminal reports whether the game ended.
func (st Status) Terminal() bool {
	return st == Checkmate || st == Stalemate
}

// Outcome is a status with the winner, which is NoColor unless checkmate.
type Outcome struct {
	Status Status
	Winner board.Color
}

// String describes the outcome the way the status bar shows it.
func (o Outcome) String() string {
	switch o.Status {
	case Checkmate:
		return fmt.Sprintf("Checkmate - %s wins", o.Winner)
	case Stalemate:
		return "Stalemate - Draw"
	case Check:
		return "Check!"
	default:
		return ""
	}
}

// Result returns the PGN result token.
func (o Outcome) Result() string {
	switch {
	case o.Status == Checkmate && o.Winner == board.White:
		return "1-0"
	case o.Status == Checkmate:
		return "0-1"
	case o.Status == Stalemate:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func evaluateOutcome(pos *board.Position, side board.Color) Outcome {
	check := pos.InCheck(side)
	any := pos.HasLegalMoves(side)
	switch {
	case check && !any:
		return Outcome{Status: Checkmate, Winner: side.Other()}
	case !any:
		return Outcome{Status: Stalemate, Winner: board.NoColor}
	case check:
		return Outcome{Status: Check, Winner: board.NoColor}
	default:
		return Outcome{Status: Playing, Winner: board.NoColor}
	}
}
