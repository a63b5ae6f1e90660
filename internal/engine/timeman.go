package engine

import (
	"time"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
)

// ClockLimits contains UCI time control parameters.
type ClockLimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth
	Infinite  bool             // search until stopped
}

// Minimum budget so depth 1 always has time to run.
const minBudget = 10 * time.Millisecond

// MoveBudget converts clock limits into the budget checked between
// iterations. ply is the number of half-moves already played. A zero result
// means no time limit.
func MoveBudget(limits ClockLimits, us board.Color, ply int) time.Duration {
	if limits.MoveTime > 0 {
		return limits.MoveTime
	}
	if limits.Infinite || limits.Time[us] == 0 {
		return 0
	}

	timeLeft := limits.Time[us]
	inc := limits.Inc[us]

	// Estimate moves to go
	mtg := limits.MovesToGo
	if mtg == 0 {
		// Sudden death: expect fewer remaining moves later in the game
		mtg = min(max(50-ply/4, 10), 50)
	}

	budget := timeLeft/time.Duration(mtg) + inc*9/10

	// Leave a buffer in the opening
	if ply < 8 {
		budget = budget * 85 / 100
	}

	// An iteration may overrun the budget, so keep well clear of the flag.
	if limit := timeLeft / 5; budget > limit {
		budget = limit
	}
	return max(budget, minBudget)
}
