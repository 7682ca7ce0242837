// Package config holds runtime configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hailam/chessrules/internal/history"
	"github.com/hailam/chessrules/internal/storage"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix is the prefix of environment overrides, e.g. CHESSPLAY_LOG_LEVEL.
const EnvPrefix = "CHESSPLAY_"

// Config holds runtime configuration.
type Config struct {
	// Storage
	DataDir  string // directory holding the database
	InMemory bool   // keep the database in memory; DataDir is ignored

	// Engine
	HistoryDepth int // maximum undo snapshots per game

	// Server
	ListenAddr string

	// Logging
	LogLevel    string // debug, info, warn, error
	Development bool   // human-readable console logs
}

// Default returns the default configuration. DataDir falls back to the
// working directory when the platform data directory cannot be resolved.
func Default() Config {
	dir, err := storage.DefaultDataDir()
	if err != nil {
		dir = ".chessplay"
	}
	return Config{
		DataDir:      dir,
		HistoryDepth: history.DefaultDepth,
		ListenAddr:   "localhost:8080",
		LogLevel:     "info",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !c.InMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("%w: data dir is empty", ErrInvalidConfig)
	}
	if c.HistoryDepth < 2 {
		return fmt.Errorf("%w: history depth %d, need at least 2", ErrInvalidConfig, c.HistoryDepth)
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("%w: listen address %q: %v", ErrInvalidConfig, c.ListenAddr, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// FromEnv applies overrides from environment variables named prefix + KEY:
// DATA_DIR, IN_MEMORY, HISTORY_DEPTH, LISTEN_ADDR, LOG_LEVEL, DEVELOPMENT.
// Unset variables leave the field unchanged.
func (c Config) FromEnv(prefix string) (Config, error) {
	return c.fromLookup(prefix, os.LookupEnv)
}

func (c Config) fromLookup(prefix string, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(prefix + "DATA_DIR"); ok {
		c.DataDir = v
	}
	if v, ok := lookup(prefix + "LISTEN_ADDR"); ok {
		c.ListenAddr = v
	}
	if v, ok := lookup(prefix + "LOG_LEVEL"); ok {
		c.LogLevel = strings.ToLower(v)
	}

	var err error
	if v, ok := lookup(prefix + "IN_MEMORY"); ok {
		if c.InMemory, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("%w: %sIN_MEMORY: %v", ErrInvalidConfig, prefix, err)
		}
	}
	if v, ok := lookup(prefix + "DEVELOPMENT"); ok {
		if c.Development, err = strconv.ParseBool(v); err != nil {
			return c, fmt.Errorf("%w: %sDEVELOPMENT: %v", ErrInvalidConfig, prefix, err)
		}
	}
	if v, ok := lookup(prefix + "HISTORY_DEPTH"); ok {
		if c.HistoryDepth, err = strconv.Atoi(v); err != nil {
			return c, fmt.Errorf("%w: %sHISTORY_DEPTH: %v", ErrInvalidConfig, prefix, err)
		}
	}
	return c, nil
}

// NewLogger builds the zap logger described by the configuration.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OpenStorage opens the database the configuration points at.
func (c Config) OpenStorage(logger *zap.Logger) (*storage.Storage, error) {
	if c.InMemory {
		return storage.Open("", storage.InMemory(), storage.WithLogger(logger))
	}
	dir, err := storage.DatabaseDir(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("database dir: %w", err)
	}
	return storage.Open(dir, storage.WithLogger(logger))
}
