package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/codec"
	"github.com/hailam/chessrules/internal/game"
	"github.com/hailam/chessrules/internal/session"
	"github.com/hailam/chessrules/internal/storage"
)

type pieceView struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Color  string `json:"color"`
	Square string `json:"square"`
	Moved  bool   `json:"moved"`
}

type stateView struct {
	Board            []pieceView `json:"board"`
	Turn             string      `json:"turn"`
	White            string      `json:"white"`
	Black            string      `json:"black"`
	Ply              int         `json:"ply"`
	Check            bool        `json:"check"`
	GameOver         bool        `json:"gameOver"`
	Winner           string      `json:"winner,omitempty"`
	Result           string      `json:"result,omitempty"`
	PendingPromotion string      `json:"pendingPromotion,omitempty"`
	LearningMode     bool        `json:"learningMode"`
	CanUndo          bool        `json:"canUndo"`
	CanRedo          bool        `json:"canRedo"`
	FEN              string      `json:"fen"`
	Export           string      `json:"export"`
}

type moveView struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Piece     string `json:"piece"`
	Captured  string `json:"captured,omitempty"`
	Kind      string `json:"kind"`
	Promotion string `json:"promotion,omitempty"`
	Pending   bool   `json:"promotionPending,omitempty"`
	SAN       string `json:"san"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Stalemate bool   `json:"stalemate"`
}

func newPieceView(p board.Piece) pieceView {
	return pieceView{
		ID:     p.ID,
		Type:   p.Type.String(),
		Color:  p.Color.String(),
		Square: p.Square.String(),
		Moved:  p.Moved,
	}
}

func newStateView(sess *session.Session) stateView {
	snap := sess.Snapshot()
	v := stateView{
		Turn:         snap.Turn().String(),
		White:        snap.WhiteName(),
		Black:        snap.BlackName(),
		Ply:          snap.Ply(),
		Check:        snap.IsCheck(snap.Turn()),
		GameOver:     snap.GameOver(),
		Result:       snap.Result(),
		LearningMode: sess.LearningMode(),
		CanUndo:      sess.CanUndo(),
		CanRedo:      sess.CanRedo(),
		FEN:          snap.FEN(),
		Export:       codec.Export(snap),
	}
	for _, p := range snap.Pieces() {
		v.Board = append(v.Board, newPieceView(p))
	}
	if w := snap.Winner(); w != board.NoColor {
		v.Winner = w.String()
	}
	if sq, ok := snap.PendingPromotion(); ok {
		v.PendingPromotion = sq.String()
	}
	return v
}

func newMoveView(m game.Move) moveView {
	v := moveView{
		From:      m.From.String(),
		To:        m.To.String(),
		Piece:     m.Piece.Token(),
		Captured:  m.Captured.Token(),
		Kind:      m.Kind.String(),
		Pending:   m.PromotionPending,
		SAN:       m.SAN,
		Check:     m.Check,
		Checkmate: m.Checkmate,
		Stalemate: m.Stalemate,
	}
	if m.Promotion != board.NoPieceType {
		v.Promotion = m.Promotion.String()
	}
	return v
}

func squareNames(sqs []board.Square) []string {
	names := make([]string, len(sqs))
	for i, sq := range sqs {
		names[i] = sq.String()
	}
	return names
}

// ---- JSON helpers ----

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into v, writing the error reply itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func parseSquare(s string) (board.Square, bool) {
	return board.LookupSquare(strings.ToLower(strings.TrimSpace(s)))
}

// validNames rejects player names longer than a game keeps.
func validNames(w http.ResponseWriter, names ...string) bool {
	for _, n := range names {
		if utf8.RuneCountInString(n) > game.MaxNameLen {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("player name longer than %d characters", game.MaxNameLen))
			return false
		}
	}
	return true
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// withSession resolves the {id} path variable.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Session(mux.Vars(r)["id"])
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h(w, r, sess)
	}
}

// ---- API: sessions ----

type createBody struct {
	White string `json:"white"`
	Black string `json:"black"`
}

type sessionReply struct {
	ID    string    `json:"id"`
	State stateView `json:"state"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	if !validNames(w, body.White, body.Black) {
		return
	}
	sess := s.newSession(body.White, body.Black)
	writeJSON(w, http.StatusCreated, sessionReply{ID: sess.ID(), State: newStateView(sess)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, newStateView(sess))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.removeSession(sess.ID()) {
		s.logger.Info("session closed", zap.String("session", sess.ID()))
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- API: moves ----

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sq, ok := parseSquare(mux.Vars(r)["square"])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid square")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"square": sq.String(),
		"moves":  squareNames(sess.PossibleMoves(sq)),
	})
}

type playBody struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion"`
}

type playReply struct {
	Applied bool      `json:"applied"`
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
	Move    *moveView `json:"move,omitempty"`
	State   stateView `json:"state"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body playBody
	if !decodeJSON(w, r, &body) {
		return
	}
	from, ok := parseSquare(body.From)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid from square")
		return
	}
	to, ok := parseSquare(body.To)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid to square")
		return
	}

	var (
		mv  game.Move
		res game.MoveResult
	)
	if promo := strings.TrimSpace(body.Promotion); promo != "" {
		kind, ok := board.ParsePieceType(promo)
		if !ok || !board.IsPromotionType(kind) {
			writeError(w, http.StatusBadRequest, "invalid promotion choice")
			return
		}
		mv, res = sess.PlayPromote(from, to, kind)
	} else {
		mv, res = sess.PlayMove(from, to)
	}

	reply := playReply{
		Applied: res.Applied(),
		Reason:  res.String(),
		Message: res.Message(),
		State:   newStateView(sess),
	}
	status := http.StatusUnprocessableEntity
	if res.Applied() {
		v := newMoveView(mv)
		reply.Move = &v
		status = http.StatusOK
	}
	writeJSON(w, status, reply)
}

type promoteBody struct {
	Square string `json:"square"`
	Kind   string `json:"kind"`
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body promoteBody
	if !decodeJSON(w, r, &body) {
		return
	}
	sq, ok := parseSquare(body.Square)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid square")
		return
	}
	kind, _ := board.ParsePieceType(body.Kind)
	if !sess.PromotePawn(sq, kind) {
		writeError(w, http.StatusConflict, "no pawn awaiting promotion on "+sq.String())
		return
	}
	writeJSON(w, http.StatusOK, newStateView(sess))
}

// ---- API: history ----

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.step(w, sess, "undo", sess.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.step(w, sess, "redo", sess.Redo)
}

func (s *Server) step(w http.ResponseWriter, sess *session.Session, what string, fn func() bool) {
	if !sess.LearningMode() {
		writeError(w, http.StatusConflict, what+" requires learning mode")
		return
	}
	if !fn() {
		writeError(w, http.StatusConflict, "nothing to "+what)
		return
	}
	writeJSON(w, http.StatusOK, newStateView(sess))
}

type learningBody struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body learningBody
	if !decodeJSON(w, r, &body) {
		return
	}
	sess.SetLearningMode(body.Enabled)
	writeJSON(w, http.StatusOK, newStateView(sess))
}

// ---- API: text format ----

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = sess.ExportTo(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request too large")
		return
	}
	q := r.URL.Query()
	if !validNames(w, q.Get("white"), q.Get("black")) {
		return
	}
	if err := sess.Import(string(data), q.Get("white"), q.Get("black")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newStateView(sess))
}

// ---- API: storage ----

type nameBody struct {
	Name string `json:"name"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, session.ErrNoStorage.Error())
		return
	}
	var body nameBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	rec, err := sess.Save(body.Name)
	if err != nil {
		s.logger.Error("save game", zap.String("session", sess.ID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, session.ErrNoStorage.Error())
		return
	}
	var body nameBody
	if !decodeJSON(w, r, &body) {
		return
	}

	// Open into a detached session first so a missing game leaves no
	// empty session behind.
	sess := session.New(
		session.WithLogger(s.logger),
		session.WithSink(s.sink),
		session.WithHistoryDepth(s.depth),
		session.WithStore(s.store),
	)
	if err := sess.Open(body.Name); err != nil {
		if errors.Is(err, session.ErrGameNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, sessionReply{ID: sess.ID(), State: newStateView(sess)})
}

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []storage.SavedGame{})
		return
	}
	games, err := s.store.ListGames()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if games == nil {
		games = []storage.SavedGame{}
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, session.ErrNoStorage.Error())
		return
	}
	stats, err := s.store.LoadStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, session.ErrNoStorage.Error())
		return
	}
	name := mux.Vars(r)["name"]
	if err := s.store.DeleteGame(name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("saved game deleted", zap.String("name", name))
	w.WriteHeader(http.StatusNoContent)
}

// handleResetStats clears the recorded statistics.
func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotImplemented, session.ErrNoStorage.Error())
		return
	}
	stats := storage.NewStats()
	if err := s.store.SaveStats(stats); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("statistics reset")
	writeJSON(w, http.StatusOK, stats)
}
