package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hailam/chessrules/internal/config"
	"github.com/hailam/chessrules/internal/modellog"
	"github.com/hailam/chessrules/internal/server"
)

func main() {
	cfg, err := config.Default().FromEnv(config.EnvPrefix)
	if err != nil {
		log.Fatal(err)
	}

	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "address to listen on")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "directory holding saved games")
	flag.BoolVar(&cfg.InMemory, "memory", cfg.InMemory, "keep saved games in memory only")
	flag.IntVar(&cfg.HistoryDepth, "history", cfg.HistoryDepth, "maximum undo depth per game")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Development, "dev", cfg.Development, "development logging")
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

	mlog := modellog.New(modellog.WithLogger(logger))
	defer mlog.Close()

	srv := server.New(
		server.WithLogger(logger),
		server.WithStore(store),
		server.WithSink(mlog),
		server.WithHistoryDepth(cfg.HistoryDepth),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Close(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	if err := srv.Listen(cfg.ListenAddr); err != nil {
		logger.Error("serve", zap.Error(err))
	}
}
