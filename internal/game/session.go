package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/MatinHoseiny/ChesstensionOnline/internal/board"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/engine"
	"github.com/MatinHoseiny/ChesstensionOnline/internal/relay"
)

// MaxUndo is the number of snapshots kept for undo.
const MaxUndo = 200

// Session errors
var (
	ErrGameOver         = errors.New("game is over")
	ErrIllegalMove      = errors.New("illegal move")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNothingToRedo    = errors.New("nothing to redo")
	ErrPromotionPending = errors.New("promotion choice pending")
	ErrNoPromotion      = errors.New("no promotion pending")
)

// Persister stores snapshots after each change.
type Persister interface {
	SaveState(st *GameState) error
	ClearState() error
	SaveHistory(h *History) error
}

// History is the undo/redo record of a session. Moves are the coordinate
// strings played from StartFEN and feed the PGN export and the engine's
// position history.
type History struct {
	Undo      []GameState `json:"undo"`
	Redo      []GameState `json:"redo"`
	StartFEN  string      `json:"startFen"`
	Moves     []string    `json:"moves"`
	RedoMoves []string    `json:"redoMoves"`
}

// MoveResult describes a committed move.
type MoveResult struct {
	Move     board.Move
	SAN      string
	Captured board.Piece
	Outcome  Outcome
	// PromotionPending is set when the move waits for Promote.
	PromotionPending bool
}

type pendingPromotion struct {
	from, to board.Square
}

// Session is one game between a human and the AI, two local humans, or a
// local player and a relayed opponent. All methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	state   GameState
	pos     *board.Position
	turn    board.Color
	outcome Outcome
	pending *pendingPromotion
	history History

	engine    *engine.Engine
	persister Persister

	online     bool
	localColor board.Color
}

// Option configures a Session.
type Option func(*Session)

// WithPersister saves the state and history after every change.
func WithPersister(p Persister) Option {
	return func(s *Session) {
		s.persister = p
	}
}

// WithOnline makes the session a relayed game where the local player has color.
func WithOnline(color board.Color) Option {
	return func(s *Session) {
		s.online = true
		s.localColor = color
	}
}

// NewSession starts a new game. eng may be nil when no AI or position
// history is wanted.
func NewSession(eng *engine.Engine, opts ...Option) *Session {
	s := &Session{engine: eng}
	for _, opt := range opts {
		opt(s)
	}
	s.resetLocked(NewGameState())
	return s
}

// Restore replaces the game with a saved snapshot and history. h may be nil.
func (s *Session) Restore(st GameState, h *History) error {
	pos, side, err := st.Position()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st.Clone()
	s.pos = pos
	s.turn = side
	s.pending = nil
	if h != nil {
		s.history = *h
	} else {
		s.history = History{StartFEN: pos.ToFEN(side)}
	}
	if s.history.StartFEN == "" {
		s.history.StartFEN = pos.ToFEN(side)
		s.history.Moves = nil
	}
	s.refreshOutcome()
	s.syncEngineHistory()
	return nil
}

// Reset starts a new game, keeping the AI settings.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := NewGameState()
	st.AIEnabled = s.state.AIEnabled
	st.AIColor = s.state.AIColor
	st.AIDepth = s.state.AIDepth
	s.resetLocked(st)

	if s.persister != nil {
		if err := s.persister.ClearState(); err != nil {
			log.Printf("[STORE] clear state: %v", err)
		}
	}
}

func (s *Session) resetLocked(st GameState) {
	pos, side, _ := st.Position()
	s.state = st
	s.pos = pos
	s.turn = side
	s.pending = nil
	s.outcome = Outcome{Status: Playing, Winner: board.NoColor}
	s.history = History{StartFEN: board.StartFEN}
	if s.engine != nil {
		s.engine.Clear()
		s.engine.Observe(s.pos, s.turn)
	}
}

// State returns a copy of the current snapshot.
func (s *Session) State() GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// History returns a copy of the undo/redo record.
func (s *Session) History() History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyCopy()
}

func (s *Session) historyCopy() History {
	h := History{StartFEN: s.history.StartFEN}
	h.Undo = append([]GameState(nil), s.history.Undo...)
	h.Redo = append([]GameState(nil), s.history.Redo...)
	h.Moves = append([]string(nil), s.history.Moves...)
	h.RedoMoves = append([]string(nil), s.history.RedoMoves...)
	return h
}

// Position returns a copy of the current position and the side to move.
func (s *Session) Position() (*board.Position, board.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.Copy(), s.turn
}

// Turn returns the side to move.
func (s *Session) Turn() board.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Status reports whether the game is on, in check or finished.
func (s *Session) Status() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// PromotionPending reports whether a promotion choice is awaited.
func (s *Session) PromotionPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// LegalMovesFrom lists the legal moves of the piece on sq, for move hints.
func (s *Session) LegalMovesFrom(sq board.Square) []board.Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.GameOver || s.pending != nil {
		return nil
	}
	return s.pos.LegalMovesFrom(sq, s.turn)
}

// SetAI configures the computer opponent.
func (s *Session) SetAI(enabled bool, color board.Color, depth int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AIEnabled = enabled
	s.state.AIColor = color.Code()
	if depth > 0 {
		s.state.AIDepth = depth
	}
	s.persist()
}

// AITurn reports whether the AI is due to move.
func (s *Session) AITurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiTurn()
}

func (s *Session) aiTurn() bool {
	return s.state.AIEnabled && !s.state.GameOver && s.pending == nil && s.state.AIColor == s.turn.Code()
}

// Move plays a move for the local player. When a pawn reaches the last rank
// and promote is NoPieceType the move waits for Promote.
func (s *Session) Move(from, to board.Square, promote board.PieceType) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPlayable(); err != nil {
		return MoveResult{}, err
	}
	if s.state.AIEnabled && s.state.AIColor == s.turn.Code() {
		return MoveResult{}, ErrNotYourTurn
	}
	if s.online && s.turn != s.localColor {
		return MoveResult{}, ErrNotYourTurn
	}

	legal := s.pos.LegalMovesFrom(from, s.turn)
	if promote == board.NoPieceType {
		if _, ok := board.FindMove(legal, from, to, board.Queen); ok {
			s.pending = &pendingPromotion{from: from, to: to}
			return MoveResult{PromotionPending: true, Outcome: s.outcome}, nil
		}
	}

	m, ok := board.FindMove(legal, from, to, promote)
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: %s%s", ErrIllegalMove, from, to)
	}
	return s.commit(m), nil
}

// Promote completes a pending promotion with the chosen piece.
func (s *Session) Promote(pt board.PieceType) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil {
		return MoveResult{}, ErrNoPromotion
	}
	legal := s.pos.LegalMovesFrom(s.pending.from, s.turn)
	m, ok := board.FindMove(legal, s.pending.from, s.pending.to, pt)
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: cannot promote to %s", ErrIllegalMove, pt)
	}
	s.pending = nil
	return s.commit(m), nil
}

// CancelPromotion abandons a pending promotion; the pawn stays put.
func (s *Session) CancelPromotion() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// AIMove lets the engine choose and play a move.
func (s *Session) AIMove(ctx context.Context) (MoveResult, error) {
	s.mu.Lock()
	if err := s.checkPlayable(); err != nil {
		s.mu.Unlock()
		return MoveResult{}, err
	}
	if s.engine == nil || !s.aiTurn() {
		s.mu.Unlock()
		return MoveResult{}, ErrNotYourTurn
	}
	pos, side := s.pos.Copy(), s.turn
	limits := engine.SearchLimits{Depth: s.state.AIDepth, Ply: len(s.history.Moves)}
	s.mu.Unlock()

	m, err := s.engine.ChooseMove(ctx, pos, side, limits)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, engine.ErrNoLegalMoves) {
		s.refreshOutcome()
		return MoveResult{Outcome: s.outcome}, ErrGameOver
	}
	if err != nil {
		return MoveResult{}, err
	}
	// The game may have changed while the engine was thinking.
	if s.turn != side || !s.pos.IsLegal(m, s.turn) {
		return MoveResult{}, fmt.Errorf("%w: position changed during search", ErrIllegalMove)
	}
	return s.commit(m), nil
}

// ApplyRemoteMove plays a move received from the relay for the opponent. It
// is resolved against the legal moves like any other move.
func (s *Session) ApplyRemoteMove(rm relay.Move) (MoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPlayable(); err != nil {
		return MoveResult{}, err
	}
	if s.online && s.turn == s.localColor {
		return MoveResult{}, ErrNotYourTurn
	}

	m, err := rm.Resolve(s.pos, s.turn)
	if err != nil {
		return MoveResult{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return s.commit(m), nil
}

func (s *Session) checkPlayable() error {
	if s.state.GameOver {
		return ErrGameOver
	}
	if s.pending != nil {
		return ErrPromotionPending
	}
	return nil
}

// commit applies a legal move with its side effects.
func (s *Session) commit(m board.Move) MoveResult {
	san := m.ToSAN(s.pos, s.turn)
	captured := m.Captured(s.pos)

	s.pushUndo()
	s.history.Redo = nil
	s.history.RedoMoves = nil

	if err := s.pos.Apply(m); err != nil {
		// Only legal moves reach here.
		panic(fmt.Sprintf("commit %s: %v", m, err))
	}

	if !captured.IsEmpty() {
		letter := pieceLetter(captured.Type)
		if captured.Color == board.White {
			s.state.CapturedByBlack = append(s.state.CapturedByBlack, letter)
		} else {
			s.state.CapturedByWhite = append(s.state.CapturedByWhite, letter)
		}
	}

	mover := s.turn
	s.turn = s.turn.Other()
	s.history.Moves = append(s.history.Moves, m.String())
	s.syncBoard()
	s.state.LastMove = &LastMove{
		From: relay.Coord{R: m.From.Rank, C: m.From.File},
		To:   relay.Coord{R: m.To.Rank, C: m.To.File},
	}

	if s.engine != nil {
		s.engine.Observe(s.pos, s.turn)
	}
	s.refreshOutcome()
	s.persist()

	log.Printf("[MOVE] %s %s (%s)", mover, san, m)

	return MoveResult{Move: m, SAN: san, Captured: captured, Outcome: s.outcome}
}

// syncBoard copies the position and turn into the snapshot.
func (s *Session) syncBoard() {
	st := StateFromPosition(s.pos, s.turn)
	s.state.Board = st.Board
	s.state.Turn = st.Turn
	s.state.EnPassantTarget = st.EnPassantTarget
	s.state.CastlingRights = st.CastlingRights
}

func (s *Session) pushUndo() {
	s.history.Undo = append(s.history.Undo, s.state.Clone())
	if len(s.history.Undo) > MaxUndo {
		s.history.Undo = s.history.Undo[len(s.history.Undo)-MaxUndo:]
	}
}

// Undo restores the snapshot before the last move.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending = nil
		return nil
	}
	n := len(s.history.Undo)
	if n == 0 {
		return ErrNothingToUndo
	}

	s.history.Redo = append(s.history.Redo, s.state.Clone())
	prev := s.history.Undo[n-1]
	s.history.Undo = s.history.Undo[:n-1]
	if k := len(s.history.Moves); k > 0 {
		s.history.RedoMoves = append(s.history.RedoMoves, s.history.Moves[k-1])
		s.history.Moves = s.history.Moves[:k-1]
	}
	return s.applyLocked(prev)
}

// Redo re-applies the last undone move.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.history.Redo)
	if n == 0 {
		return ErrNothingToRedo
	}

	s.pushUndo()
	next := s.history.Redo[n-1]
	s.history.Redo = s.history.Redo[:n-1]
	if k := len(s.history.RedoMoves); k > 0 {
		s.history.Moves = append(s.history.Moves, s.history.RedoMoves[k-1])
		s.history.RedoMoves = s.history.RedoMoves[:k-1]
	}
	return s.applyLocked(next)
}

func (s *Session) applyLocked(st GameState) error {
	pos, side, err := st.Position()
	if err != nil {
		return err
	}
	// AI settings belong to the session, not to the move history.
	st.AIEnabled = s.state.AIEnabled
	st.AIColor = s.state.AIColor
	st.AIDepth = s.state.AIDepth

	s.state = st
	s.pos = pos
	s.turn = side
	s.pending = nil
	s.refreshOutcome()
	s.syncEngineHistory()
	s.persist()
	return nil
}

// refreshOutcome recomputes the status and sets GameOver on mate or stalemate.
func (s *Session) refreshOutcome() {
	s.outcome = evaluateOutcome(s.pos, s.turn)
	s.state.GameOver = s.outcome.Status.Terminal()
}

// syncEngineHistory rebuilds the engine's recent positions from the move list.
func (s *Session) syncEngineHistory() {
	if s.engine == nil {
		return
	}
	pos, side, err := board.ParseFEN(s.history.StartFEN)
	if err != nil {
		return
	}
	keys := []uint64{engine.PositionKey(pos, side)}
	for _, uci := range s.history.Moves {
		m, err := board.ParseMove(uci, pos, side)
		if err != nil {
			break
		}
		if err := pos.Apply(m); err != nil {
			break
		}
		side = side.Other()
		keys = append(keys, engine.PositionKey(pos, side))
	}
	s.engine.Context().History().Reset(keys)
}

func (s *Session) persist() {
	if s.persister == nil || s.pending != nil {
		return
	}
	st := s.state.Clone()
	if err := s.persister.SaveState(&st); err != nil {
		log.Printf("[STORE] save state: %v", err)
	}
	h := s.historyCopy()
	if err := s.persister.SaveHistory(&h); err != nil {
		log.Printf("[STORE] save history: %v", err)
	}
}
