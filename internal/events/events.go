// Package events delivers typed notifications about game changes to
// registered listeners.
package events

import (
	"sync"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
)

// Event is implemented by every event type.
type Event interface {
	// Type returns the event name used on the wire.
	Type() string
}

// MoveApplied is published after a move has been committed.
type MoveApplied struct {
	Move      game.Move
	Player    board.Color
	Check     bool
	Checkmate bool
	Stalemate bool
}

// Type returns "move_applied".
func (MoveApplied) Type() string { return "move_applied" }

// SelectionChanged is published when a piece is selected or the selection
// is cleared. Square is NoSquare after clearing.
type SelectionChanged struct {
	Square board.Square
	Moves  []board.Square
}

// Type returns "selection_changed".
func (SelectionChanged) Type() string { return "selection_changed" }

// BoardReset is published when the whole state is replaced.
type BoardReset struct {
	Reason string // "new", "undo", "redo", "import", "load"
}

// Type returns "board_reset".
func (BoardReset) Type() string { return "board_reset" }

// PawnPromoted is published after a promotion.
type PawnPromoted struct {
	Square board.Square
	Kind   board.PieceType
}

// Type returns "pawn_promoted".
func (PawnPromoted) Type() string { return "pawn_promoted" }

// LogRecorded is published for every entry added to the model log.
type LogRecorded struct {
	Message string
}

// Type returns "log_recorded".
func (LogRecorded) Type() string { return "log_recorded" }

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus calls every subscribed handler, in subscription order, on the
// publishing goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

// NewBus creates a bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers evt to every handler. Handlers may subscribe or
// unsubscribe while being called; such changes apply to the next event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(evt)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
