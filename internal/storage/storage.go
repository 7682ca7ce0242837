package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/board"
	"github.com/hailam/chessrules/internal/game"
)

// Storage keys
const (
	keyPreferences = "preferences"
	keyStats       = "stats"
	keyFirstLaunch = "first_launch"
	gamePrefix     = "game:"
)

// ErrNotFound is returned when a saved game does not exist.
var ErrNotFound = errors.New("storage: not found")

// maxConflictRetries bounds read-modify-write retries on transaction conflicts.
const maxConflictRetries = 5

// Preferences stores user settings
type Preferences struct {
	WhiteName    string    `json:"white_name"`
	BlackName    string    `json:"black_name"`
	LearningMode bool      `json:"learning_mode"`
	ShowMoves    bool      `json:"show_moves"`
	MarkMoved    bool      `json:"mark_moved"`
	LastPlayed   time.Time `json:"last_played"`
}

// DefaultPreferences returns default user preferences
func DefaultPreferences() *Preferences {
	return &Preferences{
		WhiteName: game.DefaultWhiteName,
		BlackName: game.DefaultBlackName,
		ShowMoves: true,
	}
}

// Stats stores finished game statistics
type Stats struct {
	GamesPlayed int `json:"games_played"`
	WhiteWins   int `json:"white_wins"`
	BlackWins   int `json:"black_wins"`
	Draws       int `json:"draws"`
	TotalPlies  int `json:"total_plies"`
	LongestGame int `json:"longest_game"`
}

// NewStats returns empty statistics
func NewStats() *Stats {
	return &Stats{}
}

// GameResult represents the result of a completed game
type GameResult struct {
	Winner board.Color // NoColor for a draw
	Plies  int
}

// WinRate returns the share of games won by c as a percentage (0-100).
func (s *Stats) WinRate(c board.Color) float64 {
	if s.GamesPlayed == 0 {
		return 0
	}
	wins := s.WhiteWins
	if c == board.Black {
		wins = s.BlackWins
	}
	return float64(wins) / float64(s.GamesPlayed) * 100
}

// SavedGame describes a stored game. State holds the binary snapshot.
type SavedGame struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WhiteName string    `json:"white_name"`
	BlackName string    `json:"black_name"`
	Ply       int       `json:"ply"`
	GameOver  bool      `json:"game_over"`
	SavedAt   time.Time `json:"saved_at"`
	State     []byte    `json:"state,omitempty"`
}

// Storage wraps BadgerDB for persistent storage
type Storage struct {
	db     *badger.DB
	logger *zap.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	inMemory bool
}

// WithLogger sets the logger used by storage and by badger itself.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// InMemory keeps the database in memory. The directory is ignored.
func InMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// Open opens (creating if needed) the database under dir.
func Open(dir string, opts ...Option) (*Storage, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.Named("storage")

	var bopts badger.Options
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		bopts = badger.DefaultOptions(dir)
	}
	bopts.Logger = &badgerLogger{s: logger.Named("badger").Sugar()}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Debug("database opened", zap.String("dir", dir), zap.Bool("in_memory", o.inMemory))
	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// IsFirstLaunch returns true if this is the first launch
func (s *Storage) IsFirstLaunch() (bool, error) {
	firstLaunch := true

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyFirstLaunch))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		firstLaunch = false
		return nil
	})

	return firstLaunch, err
}

// MarkFirstLaunchComplete marks that first launch setup is complete
func (s *Storage) MarkFirstLaunchComplete() error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyFirstLaunch), []byte("done"))
	})
}

// SavePreferences saves user preferences
func (s *Storage) SavePreferences(prefs *Preferences) error {
	prefs.LastPlayed = time.Now()
	return s.putJSON(keyPreferences, prefs)
}

// LoadPreferences loads user preferences, returns defaults if not found
func (s *Storage) LoadPreferences() (*Preferences, error) {
	prefs := DefaultPreferences()
	_, err := s.getJSON(keyPreferences, prefs)
	return prefs, err
}

// SaveStats saves game statistics
func (s *Storage) SaveStats(stats *Stats) error {
	return s.putJSON(keyStats, stats)
}

// LoadStats loads game statistics, returns empty stats if not found
func (s *Storage) LoadStats() (*Stats, error) {
	stats := NewStats()
	_, err := s.getJSON(keyStats, stats)
	return stats, err
}

// RecordGame records a completed game and updates statistics
func (s *Storage) RecordGame(result GameResult) (*Stats, error) {
	var stats *Stats
	err := s.retry(func(txn *badger.Txn) error {
		stats = NewStats()
		if err := txnGetJSON(txn, keyStats, stats); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		stats.GamesPlayed++
		stats.TotalPlies += result.Plies
		if result.Plies > stats.LongestGame {
			stats.LongestGame = result.Plies
		}
		switch result.Winner {
		case board.White:
			stats.WhiteWins++
		case board.Black:
			stats.BlackWins++
		default:
			stats.Draws++
		}
		return txnSetJSON(txn, keyStats, stats)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("game recorded",
		zap.Stringer("winner", result.Winner),
		zap.Int("plies", result.Plies),
		zap.Int("games_played", stats.GamesPlayed))
	return stats, nil
}

// SaveGame stores s under name, replacing any game with the same name.
// The returned record keeps the id of a replaced game.
func (s *Storage) SaveGame(name string, st *game.State) (SavedGame, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SavedGame{}, fmt.Errorf("save game: empty name")
	}
	data, err := st.MarshalBinary()
	if err != nil {
		return SavedGame{}, fmt.Errorf("save game %q: %w", name, err)
	}

	rec := SavedGame{
		Name:      name,
		WhiteName: st.WhiteName(),
		BlackName: st.BlackName(),
		Ply:       st.Ply(),
		GameOver:  st.GameOver(),
		SavedAt:   time.Now().UTC(),
		State:     data,
	}
	err = s.retry(func(txn *badger.Txn) error {
		var prev SavedGame
		err := txnGetJSON(txn, gamePrefix+name, &prev)
		switch {
		case err == nil:
			rec.ID = prev.ID
		case errors.Is(err, badger.ErrKeyNotFound):
			rec.ID = uuid.NewString()
		default:
			return err
		}
		return txnSetJSON(txn, gamePrefix+name, rec)
	})
	if err != nil {
		return SavedGame{}, fmt.Errorf("save game %q: %w", name, err)
	}
	s.logger.Info("game saved", zap.String("name", name), zap.String("id", rec.ID), zap.Int("ply", rec.Ply))
	return rec, nil
}

// LoadGame returns the game stored under name.
func (s *Storage) LoadGame(name string) (*game.State, SavedGame, error) {
	var rec SavedGame
	found, err := s.getJSON(gamePrefix+strings.TrimSpace(name), &rec)
	if err != nil {
		return nil, SavedGame{}, fmt.Errorf("load game %q: %w", name, err)
	}
	if !found {
		return nil, SavedGame{}, fmt.Errorf("load game %q: %w", name, ErrNotFound)
	}

	st := game.New("", "")
	if err := st.UnmarshalBinary(rec.State); err != nil {
		return nil, SavedGame{}, fmt.Errorf("load game %q: %w", name, err)
	}
	return st, rec, nil
}

// ListGames returns every saved game without its state, ordered by name.
func (s *Storage) ListGames() ([]SavedGame, error) {
	var games []SavedGame
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(gamePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec SavedGame
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			rec.State = nil
			games = append(games, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(games, func(i, j int) bool { return games[i].Name < games[j].Name })
	return games, nil
}

// DeleteGame removes the game stored under name.
func (s *Storage) DeleteGame(name string) error {
	key := []byte(gamePrefix + strings.TrimSpace(name))
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete game %q: %w", name, ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (s *Storage) putJSON(key string, v any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txnSetJSON(txn, key, v)
	})
}

// getJSON decodes the value under key into v and reports whether it existed.
func (s *Storage) getJSON(key string, v any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		err := txnGetJSON(txn, key, v)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, err
}

// retry runs fn in an update transaction, retrying on commit conflicts.
func (s *Storage) retry(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying", zap.Int("attempt", i+1))
	}
	return err
}

func txnGetJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func txnSetJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.s.Errorf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.s.Warnf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.s.Debugf(strings.TrimSpace(format), args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.s.Debugf(strings.TrimSpace(format), args...)
}
