package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/cli"
	"github.com/hailam/chessrules/internal/config"
	"github.com/hailam/chessrules/internal/modellog"
	"github.com/hailam/chessrules/internal/session"
)

func main() {
	cfg, err := config.Default().FromEnv(config.EnvPrefix)
	if err != nil {
		log.Fatal(err)
	}
	// Keep the terminal quiet unless asked otherwise.
	if _, ok := os.LookupEnv(config.EnvPrefix + "LOG_LEVEL"); !ok {
		cfg.LogLevel = "warn"
	}

	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "directory holding saved games")
	flag.BoolVar(&cfg.InMemory, "memory", cfg.InMemory, "keep saved games in memory only")
	flag.IntVar(&cfg.HistoryDepth, "history", cfg.HistoryDepth, "maximum undo depth")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Development, "dev", cfg.Development, "development logging")
	white := flag.String("white", "", "white player name")
	black := flag.String("black", "", "black player name")
	learn := flag.Bool("learn", false, "start in learning mode (undo/redo enabled)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store, err := cfg.OpenStorage(logger)
	if err != nil {
		logger.Fatal("open storage", zap.Error(err))
	}
	defer store.Close()

	if first, err := store.IsFirstLaunch(); err == nil && first {
		fmt.Println("Welcome to ChessPlay. Type help to list the commands.")
		if err := store.MarkFirstLaunchComplete(); err != nil {
			logger.Warn("mark first launch", zap.Error(err))
		}
	}

	prefs, err := store.LoadPreferences()
	if err != nil {
		logger.Warn("load preferences", zap.Error(err))
	}
	if *white == "" {
		*white = prefs.WhiteName
	}
	if *black == "" {
		*black = prefs.BlackName
	}

	mlog := modellog.New(modellog.WithLogger(logger))
	defer mlog.Close()

	sess := session.New(
		session.WithLogger(logger),
		session.WithSink(mlog),
		session.WithStore(store),
		session.WithHistoryDepth(cfg.HistoryDepth),
		session.WithPlayers(*white, *black),
		session.WithLearningMode(*learn || prefs.LearningMode),
		session.WithMarkMoved(prefs.MarkMoved),
	)
	sess.SetShowMovesMode(prefs.ShowMoves)

	c := cli.New(sess,
		cli.WithLog(mlog),
		cli.WithLibrary(store),
		cli.WithLogger(logger),
	)
	if err := c.Run(os.Stdin); err != nil {
		logger.Error("read commands", zap.Error(err))
	}

	prefs.WhiteName = sess.WhiteName()
	prefs.BlackName = sess.BlackName()
	prefs.LearningMode = sess.LearningMode()
	prefs.ShowMoves = sess.ShowMovesMode()
	if err := store.SavePreferences(prefs); err != nil {
		logger.Warn("save preferences", zap.Error(err))
	}
}
