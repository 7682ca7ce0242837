// Package server exposes sessions over an HTTP JSON API and streams
// session events over websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/history"
	"github.com/hailam/chessrules/internal/modellog"
	"github.com/hailam/chessrules/internal/session"
	"github.com/hailam/chessrules/internal/storage"
)

const maxBodyBytes int64 = 1 << 20

// Store is the persistence the server needs. *storage.Storage implements it.
type Store interface {
	session.Store
	ListGames() ([]storage.SavedGame, error)
	DeleteGame(name string) error
	SaveStats(stats *storage.Stats) error
}

// Server wires the HTTP layer to a registry of sessions.
type Server struct {
	logger   *zap.Logger
	store    Store
	sink     modellog.Sink
	depth    int
	router   *mux.Router
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session.Session

	srvMu sync.Mutex
	srv   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Access logs go through it too.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore enables saving, loading and statistics.
func WithStore(st Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithSink sends every session's action messages to sink.
func WithSink(sink modellog.Sink) Option {
	return func(s *Server) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithHistoryDepth bounds the undo history of new sessions.
func WithHistoryDepth(n int) Option {
	return func(s *Server) {
		s.depth = n
	}
}

// New creates a server with no sessions.
func New(opts ...Option) *Server {
	s := &Server{
		logger:   zap.NewNop(),
		sink:     modellog.Discard,
		depth:    history.DefaultDepth,
		sessions: make(map[string]*session.Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("server")
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/games", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/games/load", s.handleLoad).Methods(http.MethodPost)
	r.HandleFunc("/saved", s.handleSaved).Methods(http.MethodGet)
	r.HandleFunc("/saved/{name}", s.handleDeleteSaved).Methods(http.MethodDelete)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleResetStats).Methods(http.MethodDelete)

	g := r.PathPrefix("/games/{id}").Subrouter()
	g.HandleFunc("", s.withSession(s.handleState)).Methods(http.MethodGet)
	g.HandleFunc("", s.withSession(s.handleDelete)).Methods(http.MethodDelete)
	g.HandleFunc("/moves/{square}", s.withSession(s.handleMoves)).Methods(http.MethodGet)
	g.HandleFunc("/moves", s.withSession(s.handlePlay)).Methods(http.MethodPost)
	g.HandleFunc("/promote", s.withSession(s.handlePromote)).Methods(http.MethodPost)
	g.HandleFunc("/undo", s.withSession(s.handleUndo)).Methods(http.MethodPost)
	g.HandleFunc("/redo", s.withSession(s.handleRedo)).Methods(http.MethodPost)
	g.HandleFunc("/learning", s.withSession(s.handleLearning)).Methods(http.MethodPut)
	g.HandleFunc("/export", s.withSession(s.handleExport)).Methods(http.MethodGet)
	g.HandleFunc("/import", s.withSession(s.handleImport)).Methods(http.MethodPut)
	g.HandleFunc("/save", s.withSession(s.handleSave)).Methods(http.MethodPost)
	g.HandleFunc("/events", s.withSession(s.handleEvents)).Methods(http.MethodGet)
	return r
}

// Handler returns the router wrapped with access logging and panic
// recovery.
func (s *Server) Handler() http.Handler {
	stdlog, err := zap.NewStdLogAt(s.logger.Named("http"), zap.InfoLevel)
	if err != nil {
		stdlog = zap.NewStdLog(s.logger.Named("http"))
	}
	h := handlers.RecoveryHandler(
		handlers.RecoveryLogger(stdlog),
		handlers.PrintRecoveryStack(true),
	)(s.router)
	return handlers.LoggingHandler(stdlog.Writer(), h)
}

// ServeHTTP serves the API without the logging middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Listen serves the API on addr until Close is called.
func (s *Server) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	s.srvMu.Lock()
	s.srv = srv
	s.srvMu.Unlock()
	defer func() {
		s.srvMu.Lock()
		s.srv = nil
		s.srvMu.Unlock()
	}()

	s.logger.Info("listening", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts the HTTP server down gracefully.
func (s *Server) Close(ctx context.Context) error {
	s.srvMu.Lock()
	srv := s.srv
	s.srvMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// newSession creates and registers a session.
func (s *Server) newSession(white, black string) *session.Session {
	opts := []session.Option{
		session.WithLogger(s.logger),
		session.WithSink(s.sink),
		session.WithHistoryDepth(s.depth),
		session.WithPlayers(white, black),
	}
	if s.store != nil {
		opts = append(opts, session.WithStore(s.store))
	}
	sess := session.New(opts...)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.logger.Info("session created", zap.String("session", sess.ID()), zap.Int("sessions", n))
	return sess
}

// Session returns the session with the given id.
func (s *Server) Session(id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", session.ErrGameNotFound, id)
	}
	return sess, nil
}

func (s *Server) removeSession(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
