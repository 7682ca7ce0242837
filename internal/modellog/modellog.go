// Package modellog keeps the human-readable action log shown to players.
// The host creates one Log at startup, hands it to sessions as a Sink and
// closes it at shutdown.
package modellog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/events"
)

// Sink receives log messages. Sessions depend on this interface only.
type Sink interface {
	Record(message string)
}

// Entry is one logged message.
type Entry struct {
	Time    time.Time
	Message string
}

// DefaultLimit is the number of entries kept before the oldest are dropped.
const DefaultLimit = 1000

// Log stores entries in memory, mirrors them to zap and publishes a
// LogRecorded event for each. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	logger  *zap.Logger
	bus     *events.Bus
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithLogger mirrors entries to l.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Log) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithLimit caps the number of stored entries. Zero or less means no cap.
func WithLimit(n int) Option {
	return func(lg *Log) {
		lg.limit = n
	}
}

// New creates an empty log.
func New(opts ...Option) *Log {
	lg := &Log{
		limit:  DefaultLimit,
		logger: zap.NewNop(),
		bus:    events.NewBus(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(lg)
	}
	lg.logger = lg.logger.Named("modellog")
	return lg
}

// Record appends message to the log.
func (lg *Log) Record(message string) {
	lg.mu.Lock()
	lg.entries = append(lg.entries, Entry{Time: lg.now(), Message: message})
	if lg.limit > 0 && len(lg.entries) > lg.limit {
		drop := len(lg.entries) - lg.limit
		lg.entries = append(lg.entries[:0:0], lg.entries[drop:]...)
	}
	lg.mu.Unlock()

	lg.logger.Info(message)
	lg.bus.Publish(events.LogRecorded{Message: message})
}

// Entries returns a copy of the stored entries, oldest first.
func (lg *Log) Entries() []Entry {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	out := make([]Entry, len(lg.entries))
	copy(out, lg.entries)
	return out
}

// Messages returns the stored messages, oldest first.
func (lg *Log) Messages() []string {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	out := make([]string, len(lg.entries))
	for i, e := range lg.entries {
		out[i] = e.Message
	}
	return out
}

// Clear removes every entry.
func (lg *Log) Clear() {
	lg.mu.Lock()
	lg.entries = nil
	lg.mu.Unlock()
}

// Subscribe registers fn to be called with every new message.
func (lg *Log) Subscribe(fn func(message string)) (unsubscribe func()) {
	return lg.bus.Subscribe(func(e events.Event) {
		if rec, ok := e.(events.LogRecorded); ok {
			fn(rec.Message)
		}
	})
}

// Close flushes the zap logger.
func (lg *Log) Close() error {
	return lg.logger.Sync()
}

// Discard is a Sink that drops every message.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(string) {}
