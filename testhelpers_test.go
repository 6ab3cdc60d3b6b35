package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) config {
	t.Helper()

	return config{
		Listen:       ":0",
		Domain:       "dyn.example.org",
		RealIPHeader: "X-Real-IP",
		Responder:    "dyndns",
		APIToken:     "token",
		DB:           dbConfig{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")},
		Users: map[string]userConfig{
			"alice": {Password: "secret", Hosts: []string{"home.dyn.example.org", "office.dyn.example.org"}},
			"bob":   {Password: "hunter2", Hosts: []string{"cave.dyn.example.org"}},
		},
		DNS: dnsConfig{NS: []string{"ns1.example.org"}, SOATTL: 60},
	}
}

func newTestDaemon(t *testing.T, cfg config) *daemon {
	t.Helper()

	store, err := openStore(cfg.DB)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}

	d, err := newDaemon(cfg, store, nil, discardLogger())
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	return d
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(t))
}

func newTestServerWithConfig(t *testing.T, cfg config) *server {
	t.Helper()

	logger := discardLogger()
	store, err := openStore(cfg.DB)
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}

	d, err := newDaemon(cfg, store, newUpdater(cfg, logger), logger)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}

	return &server{
		cfg:    cfg,
		log:    logger,
		daemon: d,
		reply:  newResponder(cfg),
		start:  time.Now().Add(-time.Second),
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
