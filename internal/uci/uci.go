// Package uci drives the engine over the Universal Chess Interface text
// protocol, for engine-vs-engine play, diagnostics and perft.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine *engine.Engine

	position *board.Position
	side     board.Color
	ply      int

	// Position keys for repetition avoidance
	positionKeys []uint64

	// Defaults for "go" without limits, set through setoption
	depth    int
	moveTime time.Duration

	outMu sync.Mutex
	out   io.Writer

	// Search state
	searchMu   sync.Mutex
	cancel     context.CancelFunc
	searchDone chan struct{}

	// CPU profiling
	profileFile *os.File
}

// New creates a UCI protocol handler writing responses to out.
func New(eng *engine.Engine, out io.Writer) *UCI {
	u := &UCI{
		engine: eng,
		out:    out,
	}
	u.setPosition(board.NewPosition(), board.White, 0)
	eng.OnInfo = u.sendInfo
	return u
}

// Run reads commands from in until "quit" or end of input. At end of input a
// running search is allowed to finish.
func (u *UCI) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			u.println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
			return nil
		case "setoption":
			u.handleSetOption(args)
		// Debug commands
		case "d":
			u.handleDisplay()
		case "perft":
			u.handlePerft(args)
		default:
			u.infoString("unknown command: %s", cmd)
		}
	}

	u.wait()
	u.stopProfile()
	return scanner.Err()
}

func (u *UCI) printf(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *UCI) println(s string) {
	u.printf("%s\n", s)
}

func (u *UCI) infoString(format string, args ...any) {
	u.printf("info string "+format+"\n", args...)
}

// handleUCI responds to the "uci" command.
func (u *UCI) handleUCI() {
	cfg := u.engine.Config()
	u.println("id name Chesstention")
	u.println("id author Chesstention Team")
	u.println("")
	u.printf("option name Hash type spin default %d min 1 max 65536\n", cfg.TTEntries/1024)
	u.printf("option name Threads type spin default %d min 1 max 64\n", cfg.Threads)
	u.printf("option name OwnBook type check default %t\n", cfg.UseBook)
	u.printf("option name Depth type spin default %d min 1 max %d\n", cfg.MaxDepth, engine.MaxPly/2)
	u.printf("option name MoveTime type spin default %d min 0 max 600000\n", cfg.TimeBudget.Milliseconds())
	u.println("option name CPUProfile type string default <empty>")
	u.println("uciok")
}

// handleNewGame resets the engine for a new game.
func (u *UCI) handleNewGame() {
	u.handleStop()
	u.engine.Clear()
	u.setPosition(board.NewPosition(), board.White, 0)
}

func (u *UCI) setPosition(pos *board.Position, side board.Color, ply int) {
	u.position = pos
	u.side = side
	u.ply = ply
	u.positionKeys = []uint64{engine.PositionKey(pos, side)}
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	// Find "moves" keyword
	fenEnd, moveStart := len(args), len(args)
	for i, arg := range args {
		if arg == "moves" {
			fenEnd, moveStart = i, i+1
			break
		}
	}

	switch args[0] {
	case "startpos":
		u.setPosition(board.NewPosition(), board.White, 0)
	case "fen":
		fenStr := strings.Join(args[1:fenEnd], " ")
		pos, side, err := board.ParseFEN(fenStr)
		if err != nil {
			u.infoString("Invalid FEN: %v", err)
			return
		}
		if err := pos.Validate(); err != nil {
			u.infoString("Invalid FEN: %v", err)
			return
		}
		u.setPosition(pos, side, fenPly(args[1:fenEnd], side))
	default:
		return
	}

	// Moves are only accepted when they are in the legal-move list.
	for _, moveStr := range args[moveStart:] {
		move, err := board.ParseMove(moveStr, u.position, u.side)
		if err != nil {
			u.infoString("Invalid move: %s", moveStr)
			break
		}
		if err := u.position.Apply(move); err != nil {
			u.infoString("Invalid move: %s: %v", moveStr, err)
			break
		}
		u.side = u.side.Other()
		u.ply++
		u.positionKeys = append(u.positionKeys, engine.PositionKey(u.position, u.side))
	}
}

// fenPly derives the half-move count from the fullmove field.
func fenPly(fields []string, side board.Color) int {
	if len(fields) < 6 {
		return 0
	}
	full, err := strconv.Atoi(fields[5])
	if err != nil || full < 1 {
		return 0
	}
	ply := 2 * (full - 1)
	if side == board.Black {
		ply++
	}
	return ply
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) {
	u.handleStop()

	opts := parseGoOptions(args)
	limits := u.calculateLimits(opts)

	u.engine.Context().History().Reset(u.positionKeys)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	u.searchMu.Lock()
	u.cancel = cancel
	u.searchDone = done
	u.searchMu.Unlock()

	pos, side := u.position.Copy(), u.side

	go func() {
		defer close(done)
		defer cancel()

		bestMove, err := u.engine.ChooseMove(ctx, pos, side, limits)
		switch {
		case errors.Is(err, engine.ErrNoLegalMoves):
			// Only send 0000 for checkmate/stalemate
			u.println("bestmove 0000")
			return
		case err != nil:
			u.infoString("search failed: %v", err)
		case pos.IsLegal(bestMove, side):
			u.printf("bestmove %s\n", bestMove)
			return
		default:
			u.infoString("CRITICAL: search returned illegal move %s", bestMove)
		}

		// Fallback: first legal move
		if legal := pos.LegalMoves(side); len(legal) > 0 {
			u.printf("bestmove %s\n", legal[0])
		} else {
			u.println("bestmove 0000")
		}
	}()
}

// parseGoOptions parses "go" command arguments.
func parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	millis := func(i int) time.Duration {
		ms, _ := strconv.Atoi(args[i])
		return time.Duration(ms) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		hasValue := i+1 < len(args)
		switch args[i] {
		case "depth":
			if hasValue {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if hasValue {
				opts.MoveTime = millis(i + 1)
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if hasValue {
				opts.WTime = millis(i + 1)
				i++
			}
		case "btime":
			if hasValue {
				opts.BTime = millis(i + 1)
				i++
			}
		case "winc":
			if hasValue {
				opts.WInc = millis(i + 1)
				i++
			}
		case "binc":
			if hasValue {
				opts.BInc = millis(i + 1)
				i++
			}
		case "movestogo":
			if hasValue {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		}
	}

	return opts
}

// infiniteTime stands in for "no limit"; the search ends on stop.
const infiniteTime = 24 * time.Hour

// calculateLimits converts GoOptions to engine.SearchLimits.
func (u *UCI) calculateLimits(opts GoOptions) engine.SearchLimits {
	limits := engine.SearchLimits{
		Depth:    u.depth,
		MoveTime: u.moveTime,
		Ply:      u.ply,
	}

	if opts.Infinite {
		limits.Depth = engine.MaxPly / 2
		limits.MoveTime = infiniteTime
		return limits
	}

	if opts.Depth > 0 {
		limits.Depth = opts.Depth
		// A fixed depth is searched in full unless a time is also given.
		limits.MoveTime = infiniteTime
	}

	clock := engine.ClockLimits{
		Time:      [2]time.Duration{opts.WTime, opts.BTime},
		Inc:       [2]time.Duration{opts.WInc, opts.BInc},
		MovesToGo: opts.MovesToGo,
		MoveTime:  opts.MoveTime,
	}
	if budget := engine.MoveBudget(clock, u.side, u.ply); budget > 0 {
		limits.MoveTime = budget
		if opts.Depth == 0 {
			limits.Depth = engine.MaxPly / 2
		}
		u.infoString("time_allocated=%dms", budget.Milliseconds())
	}

	return limits
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))

	// Score
	if info.Score > engine.MateScore-engine.MaxPly {
		mateIn := (engine.MateScore - info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else if info.Score < -engine.MateScore+engine.MaxPly {
		mateIn := -(engine.MateScore + info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	} else {
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}

	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	if !info.Move.IsNull() {
		parts = append(parts, "pv "+info.Move.String())
	}

	u.printf("info %s\n", strings.Join(parts, " "))
}

// handleStop stops the current search and waits for its bestmove.
func (u *UCI) handleStop() {
	u.searchMu.Lock()
	cancel := u.cancel
	u.searchMu.Unlock()
	if cancel != nil {
		cancel()
	}
	u.wait()
}

// wait blocks until the running search, if any, has reported.
func (u *UCI) wait() {
	u.searchMu.Lock()
	done := u.searchDone
	u.searchMu.Unlock()
	if done != nil {
		<-done
	}

	u.searchMu.Lock()
	if u.searchDone == done {
		u.searchDone = nil
		u.cancel = nil
	}
	u.searchMu.Unlock()
}

// handleQuit stops searching and profiling.
func (u *UCI) handleQuit() {
	u.handleStop()
	u.stopProfile()
}

func (u *UCI) stopProfile() {
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		u.profileFile = nil
		u.infoString("CPU profile saved")
	}
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	// Format: setoption name <name> value <value>
	var name, value string
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	// Options change the tables, so no search may be running.
	u.handleStop()

	switch strings.ToLower(name) {
	case "hash":
		kilo, err := strconv.Atoi(value)
		if err != nil || kilo < 1 {
			u.infoString("Invalid Hash value: %s", value)
			return
		}
		u.engine.Resize(kilo*1024, u.engine.Config().Threads)
	case "threads":
		threads, err := strconv.Atoi(value)
		if err != nil || threads < 1 {
			u.infoString("Invalid Threads value: %s", value)
			return
		}
		u.engine.Resize(u.engine.Config().TTEntries, threads)
	case "ownbook":
		u.engine.SetUseBook(strings.ToLower(value) == "true")
	case "depth":
		depth, err := strconv.Atoi(value)
		if err == nil && depth >= 1 {
			u.depth = depth
		}
	case "movetime":
		ms, err := strconv.Atoi(value)
		if err == nil && ms >= 0 {
			u.moveTime = time.Duration(ms) * time.Millisecond
		}
	case "cpuprofile":
		u.stopProfile()
		if value != "" && value != "stop" {
			f, err := os.Create(value)
			if err != nil {
				u.infoString("Failed to create profile: %v", err)
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				u.infoString("Failed to start profile: %v", err)
				return
			}
			u.profileFile = f
			u.infoString("CPU profiling to %s", value)
		}
	default:
		u.infoString("unknown option: %s", name)
	}
}

// handleDisplay prints the board, its FEN and the static evaluation.
func (u *UCI) handleDisplay() {
	u.printf("%s", u.position.String())
	u.printf("Fen: %s\n", u.position.ToFEN(u.side))
	u.printf("Side: %s\n", u.side)
	u.printf("Eval: %s\n", engine.ScoreToString(u.engine.Evaluate(u.position, u.side)))
}

// handlePerft runs a perft test with a per-move breakdown.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		if d, err := strconv.Atoi(args[0]); err == nil && d > 0 {
			depth = d
		}
	}

	start := time.Now()
	var nodes int64
	for _, m := range u.position.LegalMoves(u.side) {
		next, err := u.position.After(m)
		if err != nil {
			continue
		}
		n := int64(1)
		if depth > 1 {
			n = next.Perft(u.side.Other(), depth-1)
		}
		u.printf("%s: %d\n", m, n)
		nodes += n
	}
	elapsed := time.Since(start)

	u.printf("Nodes: %d\n", nodes)
	u.printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		u.printf("NPS: %.0f\n", nps)
	}
}
