// Package history keeps bounded undo and redo stacks of game snapshots.
//
// The top of the undo stack is always the current state. Undo therefore
// needs at least two snapshots: it moves the current one to the redo stack
// and hands back the one below it.
package history

import (
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/game"
)

// DefaultDepth is the maximum number of snapshots kept on the undo stack.
const DefaultDepth = 100

type snapshot struct {
	state *game.State
	// hash is recorded at save time and checked before a snapshot is
	// handed back.
	hash uint64
}

func newSnapshot(s *game.State) snapshot {
	c := s.Clone()
	return snapshot{state: c, hash: c.Hash()}
}

func (sn snapshot) intact() bool {
	return sn.state != nil && sn.state.Hash() == sn.hash
}

// History holds the undo and redo stacks. It is not safe for concurrent
// use; the owning session serializes access.
type History struct {
	undo   []snapshot
	redo   []snapshot
	depth  int
	logger *zap.Logger
}

// Option configures a History.
type Option func(*History)

// WithDepth sets the undo stack limit. Values below 2 are raised to 2 so
// that a single undo stays possible.
func WithDepth(n int) Option {
	return func(h *History) {
		if n < 2 {
			n = 2
		}
		h.depth = n
	}
}

// WithLogger sets the logger used to report corrupt snapshots.
func WithLogger(l *zap.Logger) Option {
	return func(h *History) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an empty history.
func New(opts ...Option) *History {
	h := &History{
		depth:  DefaultDepth,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Depth returns the undo stack limit.
func (h *History) Depth() int {
	return h.depth
}

// Initialize clears both stacks and seeds the undo stack with s.
func (h *History) Initialize(s *game.State) {
	h.Clear()
	h.Save(s)
}

// Clear empties both stacks.
func (h *History) Clear() {
	h.undo = h.undo[:0]
	h.redo = h.redo[:0]
}

// Save pushes a copy of s onto the undo stack and clears the redo stack.
// The oldest snapshot is dropped when the stack is full.
func (h *History) Save(s *game.State) {
	h.redo = h.redo[:0]
	if len(h.undo) >= h.depth {
		copy(h.undo, h.undo[1:])
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, newSnapshot(s))
}

// Amend replaces the current snapshot with a copy of s. It is used when a
// committed move is completed in a second step, such as a promotion.
func (h *History) Amend(s *game.State) {
	if len(h.undo) == 0 {
		h.Save(s)
		return
	}
	h.undo[len(h.undo)-1] = newSnapshot(s)
}

// CanUndo reports whether a previous state exists.
func (h *History) CanUndo() bool {
	return len(h.undo) > 1
}

// CanRedo reports whether an undone state can be restored.
func (h *History) CanRedo() bool {
	return len(h.redo) > 0
}

// Len returns the number of snapshots on the undo stack.
func (h *History) Len() int {
	return len(h.undo)
}

// RedoLen returns the number of snapshots on the redo stack.
func (h *History) RedoLen() int {
	return len(h.redo)
}

// Undo moves the current snapshot to the redo stack and returns a copy of
// the previous one. It reports false, leaving both stacks untouched, when
// there is nothing to undo or the previous snapshot is corrupt.
func (h *History) Undo() (*game.State, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	n := len(h.undo)
	current, previous := h.undo[n-1], h.undo[n-2]
	if !previous.intact() {
		h.logger.Error("undo: snapshot failed integrity check",
			zap.Int("index", n-2),
			zap.Uint64("want_hash", previous.hash),
		)
		return nil, false
	}
	h.undo = h.undo[:n-1]
	h.redo = append(h.redo, current)
	return previous.state.Clone(), true
}

// Redo moves the most recently undone snapshot back onto the undo stack
// and returns a copy of it. It reports false, leaving both stacks
// untouched, when there is nothing to redo or the snapshot is corrupt.
func (h *History) Redo() (*game.State, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	n := len(h.redo)
	next := h.redo[n-1]
	if !next.intact() {
		h.logger.Error("redo: snapshot failed integrity check",
			zap.Int("index", n-1),
			zap.Uint64("want_hash", next.hash),
		)
		return nil, false
	}
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, next)
	return next.state.Clone(), true
}

// Current returns a copy of the snapshot on top of the undo stack.
func (h *History) Current() (*game.State, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	return h.undo[len(h.undo)-1].state.Clone(), true
}
