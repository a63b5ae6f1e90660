// Package console is the terminal front end: it reads commands, drives a
// game.Session against the engine and keeps preferences and the current game
// in storage between runs.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/game"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/storage"
)

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// Game is a chess game played from a terminal.
type Game struct {
	session *game.Session
	engine  *engine.Engine
	storage *storage.Store // nil runs without persistence
	prefs   *storage.Preferences

	difficulty engine.Difficulty
	recorded   bool

	out io.Writer
}

// NewGame creates a game, restoring the saved one when store holds it.
func NewGame(eng *engine.Engine, store *storage.Store, out io.Writer) *Game {
	g := &Game{
		engine:  eng,
		storage: store,
		out:     out,
	}

	var opts []game.Option
	if store != nil {
		opts = append(opts, game.WithPersister(store))
	}
	g.session = game.NewSession(eng, opts...)

	// Restore before applying preferences: SetAI saves the state.
	g.restoreGame()
	g.loadPreferences()
	g.checkFirstLaunch()
	return g
}

// loadPreferences loads user preferences from storage.
func (g *Game) loadPreferences() {
	if g.storage == nil {
		g.prefs = storage.DefaultPreferences()
	} else {
		var err error
		g.prefs, err = g.storage.LoadPreferences()
		if err != nil {
			log.Printf("[STORE] Warning: Failed to load preferences: %v", err)
		}
	}

	g.difficulty = g.prefs.Difficulty
	g.engine.SetDifficulty(g.difficulty)
	g.engine.SetUseBook(g.prefs.UseBook)

	aiColor, err := board.ParseColorCode(g.prefs.AIColor)
	if err != nil {
		aiColor = board.Black
	}
	g.session.SetAI(g.prefs.AIEnabled, aiColor, g.prefs.AIDepth)
}

// savePreferences saves the current settings to storage.
func (g *Game) savePreferences() {
	if g.storage == nil {
		return
	}
	st := g.session.State()
	g.prefs.AIEnabled = st.AIEnabled
	g.prefs.AIColor = st.AIColor
	g.prefs.AIDepth = st.AIDepth
	g.prefs.Difficulty = g.difficulty
	if err := g.storage.SavePreferences(g.prefs); err != nil {
		log.Printf("[STORE] Warning: Failed to save preferences: %v", err)
	}
}

// restoreGame resumes the saved game, if any. The current preferences win
// over the AI settings stored with it.
func (g *Game) restoreGame() {
	if g.storage == nil {
		return
	}
	st, found, err := g.storage.LoadState()
	if err != nil {
		log.Printf("[STORE] Warning: Failed to load game: %v", err)
		return
	}
	if !found {
		return
	}
	h, _, err := g.storage.LoadHistory()
	if err != nil {
		log.Printf("[STORE] Warning: Failed to load history: %v", err)
		h = nil
	}
	if err := g.session.Restore(*st, h); err != nil {
		log.Printf("[STORE] Warning: Saved game is invalid: %v", err)
		return
	}
	g.recorded = st.GameOver
	g.printf("Resumed saved game.\n")
}

func (g *Game) checkFirstLaunch() {
	if g.storage == nil {
		return
	}
	first, err := g.storage.IsFirstLaunch()
	if err != nil {
		log.Printf("[STORE] Warning: Failed to check first launch: %v", err)
		return
	}
	if !first {
		return
	}
	g.printf("Welcome to Chesstention, %s! Type \"help\" for the commands.\n", g.prefs.Username)
	if err := g.storage.MarkFirstLaunchComplete(); err != nil {
		log.Printf("[STORE] Warning: Failed to mark first launch complete: %v", err)
	}
	g.savePreferences()
}

// Session returns the underlying game session.
func (g *Game) Session() *game.Session {
	return g.session
}

func (g *Game) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

// Run reads commands until "quit" or end of input.
func (g *Game) Run(ctx context.Context, in io.Reader) error {
	g.showBoard()
	if err := g.playAI(ctx); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for {
		g.printf("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := g.execute(ctx, strings.Fields(line))
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.printf("error: %v\n", err)
		}
	}
	g.savePreferences()
	return scanner.Err()
}

func (g *Game) execute(ctx context.Context, args []string) error {
	cmd, rest := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help":
		g.printf("%s", helpText)
	case "quit", "exit":
		return errQuit
	case "board", "b":
		g.showBoard()
	case "fen":
		pos, side := g.session.Position()
		g.printf("%s\n", pos.ToFEN(side))
	case "pgn":
		pgn, err := g.session.PGN()
		if err != nil {
			return err
		}
		g.printf("%s\n", pgn)
	case "moves":
		return g.listMoves(rest)
	case "new":
		g.session.Reset()
		g.recorded = false
		g.showBoard()
		return g.playAI(ctx)
	case "undo":
		if err := g.session.Undo(); err != nil {
			return err
		}
		// Against the AI, take back its reply too.
		if st := g.session.State(); st.AIEnabled && st.AIColor == g.session.Turn().Code() {
			if err := g.session.Undo(); err != nil && !errors.Is(err, game.ErrNothingToUndo) {
				return err
			}
		}
		g.showBoard()
	case "redo":
		if err := g.session.Redo(); err != nil {
			return err
		}
		g.showBoard()
	case "ai":
		return g.setAI(ctx, rest)
	case "depth":
		if len(rest) != 1 {
			return fmt.Errorf("usage: depth N")
		}
		depth, err := strconv.Atoi(rest[0])
		if err != nil || depth < 1 || depth > engine.MaxPly/2 {
			return fmt.Errorf("invalid depth %q", rest[0])
		}
		st := g.session.State()
		g.session.SetAI(st.AIEnabled, colorOf(st.AIColor), depth)
		g.savePreferences()
	case "difficulty":
		if len(rest) != 1 {
			return fmt.Errorf("usage: difficulty easy|medium|hard")
		}
		d, err := engine.ParseDifficulty(strings.ToLower(rest[0]))
		if err != nil {
			return err
		}
		g.difficulty = d
		g.engine.SetDifficulty(d)
		st := g.session.State()
		g.session.SetAI(st.AIEnabled, colorOf(st.AIColor), engine.DifficultySettings[d].Depth)
		g.savePreferences()
	case "promote":
		if len(rest) != 1 || len(rest[0]) != 1 {
			return fmt.Errorf("usage: promote q|r|b|n")
		}
		res, err := g.session.Promote(board.PieceTypeFromChar(rest[0][0]))
		if err != nil {
			return err
		}
		return g.afterMove(ctx, res)
	default:
		return g.humanMove(ctx, cmd)
	}
	return nil
}

const helpText = `Commands:
  e2e4, e7e8q      play a move (coordinate notation)
  promote q|r|b|n  finish a promotion
  moves [e2]       list legal moves
  undo, redo       take back or replay a move
  new              start a new game
  ai on|off [w|b]  toggle the computer opponent and its color
  depth N          search depth of the computer
  difficulty easy|medium|hard
  board, fen, pgn  show the game
  quit
`

func (g *Game) humanMove(ctx context.Context, s string) error {
	if len(s) < 4 || len(s) > 5 {
		return fmt.Errorf("unknown command %q (try \"help\")", s)
	}
	from, err := board.ParseSquare(s[:2])
	if err != nil {
		return err
	}
	to, err := board.ParseSquare(s[2:4])
	if err != nil {
		return err
	}
	promote := board.NoPieceType
	if len(s) == 5 {
		promote = board.PieceTypeFromChar(s[4])
	}

	res, err := g.session.Move(from, to, promote)
	if err != nil {
		return err
	}
	if res.PromotionPending {
		g.printf("Promote to? (promote q|r|b|n)\n")
		return nil
	}
	return g.afterMove(ctx, res)
}

func (g *Game) afterMove(ctx context.Context, res game.MoveResult) error {
	g.printf("%s\n", res.SAN)
	g.showStatus(res.Outcome)
	if res.Outcome.Status.Terminal() {
		g.recordResult(res.Outcome)
		return nil
	}
	return g.playAI(ctx)
}

// playAI lets the computer move while it is its turn.
func (g *Game) playAI(ctx context.Context) error {
	for g.session.AITurn() {
		g.printf("Thinking...\n")
		res, err := g.session.AIMove(ctx)
		if errors.Is(err, game.ErrGameOver) {
			g.showStatus(res.Outcome)
			return nil
		}
		if err != nil {
			return err
		}
		g.printf("AI plays %s\n", res.SAN)
		g.showBoard()
		if res.Outcome.Status.Terminal() {
			g.recordResult(res.Outcome)
			return nil
		}
	}
	return nil
}

func (g *Game) setAI(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: ai on|off [w|b]")
	}
	st := g.session.State()
	color := colorOf(st.AIColor)
	if len(args) > 1 {
		c, err := board.ParseColorCode(strings.ToLower(args[1]))
		if err != nil {
			return err
		}
		color = c
	}

	switch strings.ToLower(args[0]) {
	case "on":
		g.session.SetAI(true, color, st.AIDepth)
	case "off":
		g.session.SetAI(false, color, st.AIDepth)
	default:
		return fmt.Errorf("usage: ai on|off [w|b]")
	}
	g.savePreferences()
	return g.playAI(ctx)
}

func (g *Game) listMoves(args []string) error {
	pos, side := g.session.Position()
	var moves []board.Move
	if len(args) > 0 {
		sq, err := board.ParseSquare(args[0])
		if err != nil {
			return err
		}
		moves = g.session.LegalMovesFrom(sq)
	} else if !g.session.State().GameOver {
		moves = pos.LegalMoves(side)
	}
	g.printf("%s\n", strings.Join(board.MovesToSAN(pos, side, moves), " "))
	return nil
}

// recordResult adds a finished game against the computer to the statistics.
func (g *Game) recordResult(out game.Outcome) {
	st := g.session.State()
	if g.storage == nil || g.recorded || !st.AIEnabled {
		return
	}
	g.recorded = true
	human := colorOf(st.AIColor).Other().Code()
	if err := g.storage.RecordGame(out, human, g.difficulty); err != nil {
		log.Printf("[STORE] Warning: Failed to record game: %v", err)
		return
	}
	if stats, err := g.storage.LoadStats(); err == nil {
		g.printf("Games: %d  Wins: %d  Losses: %d  Draws: %d (%.0f%%)\n",
			stats.GamesPlayed, stats.Wins, stats.Losses, stats.Draws, stats.WinRate())
	}
}

func (g *Game) showBoard() {
	pos, side := g.session.Position()
	st := g.session.State()

	var sb strings.Builder
	for r := 0; r < 8; r++ {
		fmt.Fprintf(&sb, "%d  ", 8-r)
		for c := 0; c < 8; c++ {
			p := pos.PieceAt(board.NewSquare(r, c))
			if p.IsEmpty() {
				sb.WriteString(". ")
			} else {
				sb.WriteString(p.String() + " ")
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("\n   a b c d e f g h\n")
	if len(st.CapturedByWhite) > 0 || len(st.CapturedByBlack) > 0 {
		fmt.Fprintf(&sb, "White took: %s  Black took: %s\n",
			strings.Join(st.CapturedByWhite, " "), strings.Join(st.CapturedByBlack, " "))
	}
	fmt.Fprintf(&sb, "%s to move\n", side)
	g.printf("%s", sb.String())
	g.showStatus(g.session.Status())
}

func (g *Game) showStatus(out game.Outcome) {
	if s := out.String(); s != "" {
		g.printf("%s\n", s)
	}
}

func colorOf(code string) board.Color {
	if code == "w" {
		return board.White
	}
	return board.Black
}
