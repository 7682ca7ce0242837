// Package session manages one game for a front-end: the game state, its
// undo history, the current selection and the player-facing modes. Every
// method is safe for concurrent use.
package session

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/codec"
	"github.com/hailam/chessrules/internal/events"
	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/history"
	"github.com/hailam/chessrules/internal/modellog"
	"github.com/hailam/chessrules/internal/storage"
)

var (
	// ErrGameNotFound is returned when a saved game or session does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrNoStorage is returned by Save and Open when no store is configured.
	ErrNoStorage = errors.New("no storage configured")
)

// Store persists games and statistics. *storage.Storage implements it.
type Store interface {
	SaveGame(name string, s *game.State) (storage.SavedGame, error)
	LoadGame(name string) (*game.State, storage.SavedGame, error)
	RecordGame(result storage.GameResult) (*storage.Stats, error)
	LoadStats() (*storage.Stats, error)
}

// Session owns a game and its history.
type Session struct {
	id     string
	logger *zap.Logger
	sink   modellog.Sink
	store  Store
	bus    *events.Bus
	depth  int

	mu        sync.Mutex
	state     *game.State
	history   *history.History
	learning  bool
	showMoves bool
	markMoved bool
	selected  board.Square
	selMoves  []board.Square
	// endRecorded is set once the current game's result reached the store.
	endRecorded bool
	// pending holds events published when the lock is released.
	pending []events.Event
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSink sets where human-readable action messages go.
func WithSink(sink modellog.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithStore enables Save, Open and statistics.
func WithStore(st Store) Option {
	return func(s *Session) {
		s.store = st
	}
}

// WithHistoryDepth bounds the undo history.
func WithHistoryDepth(n int) Option {
	return func(s *Session) {
		s.depth = n
	}
}

// WithID sets the session id. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithPlayers sets the names of the first game.
func WithPlayers(white, black string) Option {
	return func(s *Session) {
		s.state.SetNames(white, black)
	}
}

// WithLearningMode starts the session with undo and redo enabled.
func WithLearningMode(on bool) Option {
	return func(s *Session) {
		s.learning = on
	}
}

// WithMarkMoved makes exports tag moved pieces with '*'.
func WithMarkMoved(on bool) Option {
	return func(s *Session) {
		s.markMoved = on
	}
}

// New creates a session holding a game in the starting position.
func New(opts ...Option) *Session {
	s := &Session{
		id:       uuid.NewString(),
		logger:   zap.NewNop(),
		sink:     modellog.Discard,
		bus:      events.NewBus(),
		depth:    history.DefaultDepth,
		state:    game.New("", ""),
		selected: board.NoSquare,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	s.history = history.New(history.WithDepth(s.depth), history.WithLogger(s.logger))
	s.history.Initialize(s.state)
	return s
}

func (s *Session) lock() {
	s.mu.Lock()
}

// unlock releases the session and then delivers the events queued while
// it was held, so handlers may call back into the session.
func (s *Session) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, evt := range pending {
		s.bus.Publish(evt)
	}
}

func (s *Session) emit(evt events.Event) {
	s.pending = append(s.pending, evt)
}

func (s *Session) log(msg string, fields ...zap.Field) {
	s.sink.Record(msg)
	s.logger.Debug(msg, fields...)
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Events returns the bus on which the session publishes its events.
func (s *Session) Events() *events.Bus {
	return s.bus
}

// NewGame starts a new game. Empty names fall back to the defaults.
func (s *Session) NewGame(white, black string) {
	s.lock()
	defer s.unlock()

	s.replace(game.New(white, black), "new")
	s.log(fmt.Sprintf("New game: %s vs %s", s.state.WhiteName(), s.state.BlackName()))
}

// replace installs st as the current game with a fresh history.
func (s *Session) replace(st *game.State, reason string) {
	s.state = st
	s.history.Initialize(st)
	s.endRecorded = st.GameOver()
	s.clearSelection()
	s.emit(events.BoardReset{Reason: reason})
}

// Play applies a move and reports whether it was accepted.
func (s *Session) Play(from, to board.Square) bool {
	_, res := s.PlayMove(from, to)
	return res.Applied()
}

// PlayMove applies a move and returns what happened.
func (s *Session) PlayMove(from, to board.Square) (game.Move, game.MoveResult) {
	return s.play(from, to, board.NoPieceType)
}

// PlayPromote applies a pawn move to the last rank together with its
// promotion.
func (s *Session) PlayPromote(from, to board.Square, kind board.PieceType) (game.Move, game.MoveResult) {
	if !board.IsPromotionType(kind) {
		kind = board.Queen
	}
	return s.play(from, to, kind)
}

func (s *Session) play(from, to board.Square, kind board.PieceType) (game.Move, game.MoveResult) {
	s.lock()
	defer s.unlock()

	var (
		mv  game.Move
		res game.MoveResult
	)
	if kind == board.NoPieceType {
		mv, res = s.state.PlayMove(from, to)
	} else {
		mv, res = s.state.PlayPromote(from, to, kind)
	}
	s.clearSelection()

	if !res.Applied() {
		s.log(fmt.Sprintf("Invalid move: %s -> %s (%s)", from, to, res.Message()),
			zap.Stringer("result", res))
		return mv, res
	}

	s.history.Save(s.state)
	verb := "moves"
	if mv.IsCapture() {
		verb = "captures"
	}
	s.log(fmt.Sprintf("%s %s %s -> %s", mv.Player, verb, mv.From, mv.To),
		zap.String("san", mv.SAN), zap.Int("ply", s.state.Ply()))

	s.emit(events.MoveApplied{
		Move:      mv,
		Player:    mv.Player,
		Check:     mv.Check,
		Checkmate: mv.Checkmate,
		Stalemate: mv.Stalemate,
	})
	if mv.Promotion != board.NoPieceType {
		s.log(fmt.Sprintf("Pawn promoted to %s at %s", mv.Promotion, mv.To))
		s.emit(events.PawnPromoted{Square: mv.To, Kind: mv.Promotion})
	}
	s.noteTerminal()
	return mv, res
}

// PromotePawn promotes the pawn waiting on sq. Unrecognized kinds become a
// queen.
func (s *Session) PromotePawn(sq board.Square, kind board.PieceType) bool {
	s.lock()
	defer s.unlock()

	if !board.IsPromotionType(kind) {
		kind = board.Queen
	}
	if !s.state.PromotePawn(sq, kind) {
		s.log(fmt.Sprintf("Cannot promote at %s", sq))
		return false
	}
	s.history.Amend(s.state)
	s.log(fmt.Sprintf("Pawn promoted to %s at %s", kind, sq))
	s.emit(events.PawnPromoted{Square: sq, Kind: kind})
	s.noteTerminal()
	return true
}

// noteTerminal logs a finished game and records it in the store once.
func (s *Session) noteTerminal() {
	if !s.state.GameOver() || s.endRecorded {
		return
	}
	s.endRecorded = true

	winner := s.state.Winner()
	if winner == board.NoColor {
		s.log("Stalemate")
	} else {
		s.log(fmt.Sprintf("Checkmate, winner: %s (%s)", winner, s.state.PlayerName(winner)))
	}
	if s.store == nil {
		return
	}
	if _, err := s.store.RecordGame(storage.GameResult{Winner: winner, Plies: s.state.Ply()}); err != nil {
		s.logger.Warn("record game result", zap.Error(err))
	}
}

// CheckGameOver re-evaluates the terminal state of the current game.
func (s *Session) CheckGameOver() game.EndType {
	s.lock()
	defer s.unlock()
	end := s.state.CheckGameOver()
	s.noteTerminal()
	return end
}

// Undo restores the previous position. It only works in learning mode.
func (s *Session) Undo() bool {
	return s.restore("undo", s.history.Undo)
}

// Redo re-applies an undone move. It only works in learning mode.
func (s *Session) Redo() bool {
	return s.restore("redo", s.history.Redo)
}

func (s *Session) restore(reason string, step func() (*game.State, bool)) bool {
	s.lock()
	defer s.unlock()

	if !s.learning {
		s.log(fmt.Sprintf("Cannot %s outside learning mode", reason))
		return false
	}
	st, ok := step()
	if !ok {
		s.log(fmt.Sprintf("Nothing to %s", reason))
		return false
	}
	s.state = st
	s.clearSelection()
	s.emit(events.BoardReset{Reason: reason})
	if reason == "undo" {
		s.log("Move undone", zap.Int("ply", st.Ply()))
	} else {
		s.log("Move redone", zap.Int("ply", st.Ply()))
	}
	return true
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool {
	s.lock()
	defer s.unlock()
	return s.learning && s.history.CanUndo()
}

// CanRedo reports whether Redo would succeed.
func (s *Session) CanRedo() bool {
	s.lock()
	defer s.unlock()
	return s.learning && s.history.CanRedo()
}

// SetLearningMode enables or disables undo and redo. Disabling it clears
// the selection.
func (s *Session) SetLearningMode(on bool) {
	s.lock()
	defer s.unlock()
	s.learning = on
	if !on {
		s.clearSelection()
	}
	if on {
		s.log("Learning mode enabled")
	} else {
		s.log("Learning mode disabled")
	}
}

// LearningMode reports whether learning mode is on.
func (s *Session) LearningMode() bool {
	s.lock()
	defer s.unlock()
	return s.learning
}

// SetShowMovesMode sets whether front-ends highlight the moves of the
// selected piece.
func (s *Session) SetShowMovesMode(on bool) {
	s.lock()
	defer s.unlock()
	s.showMoves = on
}

// ShowMovesMode reports whether move highlighting is on.
func (s *Session) ShowMovesMode() bool {
	s.lock()
	defer s.unlock()
	return s.showMoves
}

// SelectPiece selects the piece on sq and returns its legal destinations.
// Selecting an empty square clears the selection.
func (s *Session) SelectPiece(sq board.Square) []board.Square {
	s.lock()
	defer s.unlock()

	if _, ok := s.state.PieceAt(sq); !ok {
		s.clearSelection()
		return nil
	}
	s.selected = sq
	s.selMoves = s.state.PossibleMoves(sq)
	s.emit(events.SelectionChanged{Square: sq, Moves: append([]board.Square(nil), s.selMoves...)})
	return append([]board.Square(nil), s.selMoves...)
}

// ClearSelection drops the current selection.
func (s *Session) ClearSelection() {
	s.lock()
	defer s.unlock()
	s.clearSelection()
}

func (s *Session) clearSelection() {
	if s.selected == board.NoSquare {
		return
	}
	s.selected = board.NoSquare
	s.selMoves = nil
	s.emit(events.SelectionChanged{Square: board.NoSquare})
}

// Selection returns the selected square and its moves. The square is
// NoSquare when nothing is selected.
func (s *Session) Selection() (board.Square, []board.Square) {
	s.lock()
	defer s.unlock()
	return s.selected, append([]board.Square(nil), s.selMoves...)
}

// PossibleMoves returns the legal destinations of the piece on sq.
func (s *Session) PossibleMoves(sq board.Square) []board.Square {
	s.lock()
	defer s.unlock()
	return s.state.PossibleMoves(sq)
}

// PieceAt returns the piece on sq.
func (s *Session) PieceAt(sq board.Square) (board.Piece, bool) {
	s.lock()
	defer s.unlock()
	return s.state.PieceAt(sq)
}

// FindPiece returns the piece with the given creation id, e.g. "Pe2".
func (s *Session) FindPiece(id string) (board.Piece, bool) {
	s.lock()
	defer s.unlock()
	return s.state.PieceByID(id)
}

// IsCheck reports whether c's king is attacked.
func (s *Session) IsCheck(c board.Color) bool {
	s.lock()
	defer s.unlock()
	return s.state.IsCheck(c)
}

// IsCheckmate reports whether c is checkmated.
func (s *Session) IsCheckmate(c board.Color) bool {
	s.lock()
	defer s.unlock()
	return s.state.IsCheckmate(c)
}

// IsStalemate reports whether c is stalemated.
func (s *Session) IsStalemate(c board.Color) bool {
	s.lock()
	defer s.unlock()
	return s.state.IsStalemate(c)
}

// Turn returns the color to move.
func (s *Session) Turn() board.Color {
	s.lock()
	defer s.unlock()
	return s.state.Turn()
}

// GameOver reports whether the game has ended.
func (s *Session) GameOver() bool {
	s.lock()
	defer s.unlock()
	return s.state.GameOver()
}

// MovesPlayed returns the number of moves in the current line of play.
func (s *Session) MovesPlayed() int {
	s.lock()
	defer s.unlock()
	return s.state.Ply()
}

// WhiteName returns the white player's name.
func (s *Session) WhiteName() string {
	s.lock()
	defer s.unlock()
	return s.state.WhiteName()
}

// BlackName returns the black player's name.
func (s *Session) BlackName() string {
	s.lock()
	defer s.unlock()
	return s.state.BlackName()
}

// Snapshot returns an independent copy of the current game.
func (s *Session) Snapshot() *game.State {
	s.lock()
	defer s.unlock()
	return s.state.Clone()
}

// Export returns the current position in the text format.
func (s *Session) Export() string {
	s.lock()
	defer s.unlock()
	return codec.ExportWith(s.state, codec.Options{MarkMoved: s.markMoved})
}

// ExportTo writes the current position to w.
func (s *Session) ExportTo(w io.Writer) error {
	s.lock()
	defer s.unlock()
	if err := codec.Write(w, s.state, codec.Options{MarkMoved: s.markMoved}); err != nil {
		s.log(fmt.Sprintf("Export failed: %v", err))
		return err
	}
	s.log("Game exported")
	return nil
}

// Import replaces the game with the position in data. Empty names keep
// the current players. On error the game is unchanged.
func (s *Session) Import(data, white, black string) error {
	s.lock()
	defer s.unlock()
	white, black = s.namesOr(white, black)
	st, err := codec.Import(data, white, black)
	return s.finishImport(st, err)
}

// ImportFrom reads a position from r, as Import.
func (s *Session) ImportFrom(r io.Reader, white, black string) error {
	s.lock()
	defer s.unlock()
	white, black = s.namesOr(white, black)
	st, err := codec.Read(r, white, black)
	return s.finishImport(st, err)
}

func (s *Session) namesOr(white, black string) (string, string) {
	if white == "" {
		white = s.state.WhiteName()
	}
	if black == "" {
		black = s.state.BlackName()
	}
	return white, black
}

func (s *Session) finishImport(st *game.State, err error) error {
	if err != nil {
		s.log(fmt.Sprintf("Import failed: %v", err))
		return err
	}
	s.replace(st, "import")
	s.log("Game imported", zap.Int("pieces", len(st.Pieces())))
	return nil
}

// Save stores the whole game under name.
func (s *Session) Save(name string) (storage.SavedGame, error) {
	s.lock()
	defer s.unlock()
	if s.store == nil {
		return storage.SavedGame{}, ErrNoStorage
	}
	rec, err := s.store.SaveGame(name, s.state)
	if err != nil {
		s.log(fmt.Sprintf("Save failed: %v", err))
		return storage.SavedGame{}, err
	}
	s.log(fmt.Sprintf("Game saved: %s", rec.Name), zap.String("game_id", rec.ID))
	return rec, nil
}

// Open replaces the game with the one stored under name.
func (s *Session) Open(name string) error {
	s.lock()
	defer s.unlock()
	if s.store == nil {
		return ErrNoStorage
	}
	st, rec, err := s.store.LoadGame(name)
	if errors.Is(err, storage.ErrNotFound) {
		err = fmt.Errorf("%w: %s", ErrGameNotFound, name)
	}
	if err != nil {
		s.log(fmt.Sprintf("Open failed: %v", err))
		return err
	}
	s.replace(st, "load")
	s.log(fmt.Sprintf("Game loaded: %s", rec.Name), zap.String("game_id", rec.ID))
	return nil
}

// Stats returns the statistics of finished games.
func (s *Session) Stats() (*storage.Stats, error) {
	if s.store == nil {
		return nil, ErrNoStorage
	}
	return s.store.LoadStats()
}
