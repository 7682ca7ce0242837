package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/events"
	"github.com/hailam/chessrules/internal/session"
)

const (
	writeWait  = 10 * time.Second
	eventQueue = 64
)

// eventMessage turns an event into the JSON object sent to clients.
func eventMessage(evt events.Event) map[string]any {
	msg := map[string]any{"type": evt.Type()}
	switch e := evt.(type) {
	case events.MoveApplied:
		msg["move"] = newMoveView(e.Move)
		msg["player"] = e.Player.String()
		msg["check"] = e.Check
		msg["checkmate"] = e.Checkmate
		msg["stalemate"] = e.Stalemate
	case events.SelectionChanged:
		if e.Square.IsValid() {
			msg["square"] = e.Square.String()
		}
		msg["moves"] = squareNames(e.Moves)
	case events.BoardReset:
		msg["reason"] = e.Reason
	case events.PawnPromoted:
		msg["square"] = e.Square.String()
		msg["kind"] = e.Kind.String()
	case events.LogRecorded:
		msg["message"] = e.Message
	}
	return msg
}

// handleEvents streams the session's events to a websocket client. The
// first message is the current state.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	logger := s.logger.With(zap.String("session", sess.ID()), zap.Stringer("remote", conn.RemoteAddr()))
	logger.Info("websocket connected")

	queue := make(chan events.Event, eventQueue)
	unsubscribe := sess.Events().Subscribe(func(evt events.Event) {
		select {
		case queue <- evt:
		default:
			logger.Warn("websocket client too slow, event dropped", zap.String("type", evt.Type()))
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Clients only send close frames; reading detects disconnects.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		conn.Close()
		logger.Info("websocket disconnected")
	}()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]any{"type": "state", "state": newStateView(sess)}); err != nil {
		return
	}
	for {
		select {
		case evt := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(eventMessage(evt)); err != nil {
				logger.Debug("websocket write", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}
