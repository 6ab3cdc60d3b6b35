package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "dyndnsd.yml", "path to the configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dyndnsd: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	for _, warning := range cfg.hostWarnings() {
		logger.Warn(warning)
	}
	if cfg.APIToken == "" {
		logger.Warn("api_token is empty, admin endpoints are open")
	}

	store, err := openStore(cfg.DB)
	if err != nil {
		logger.Error("open store failed", "err", err)
		os.Exit(1)
	}

	dmn, err := newDaemon(cfg, store, newUpdater(cfg, logger), logger)
	if err != nil {
		logger.Error("daemon init failed", "err", err)
		os.Exit(1)
	}

	srv := &server{
		cfg:    cfg,
		log:    logger,
		daemon: dmn,
		reply:  newResponder(cfg),
		start:  time.Now().UTC(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 3)
	go func() { errCh <- srv.runHTTP(ctx) }()
	if cfg.DNS.Enabled {
		go func() { errCh <- srv.runDNS(ctx, "udp") }()
		go func() { errCh <- srv.runDNS(ctx, "tcp") }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("fatal server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
