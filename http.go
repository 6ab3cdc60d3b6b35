package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *server) runHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.newRouter(),
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info("http listening", "addr", s.cfg.Listen)
	return httpServer.ListenAndServe()
}

func (s *server) newRouter() http.Handler {
	r := chi.NewRouter()

	// Unknown paths and wrong methods never reach the engine; the responder
	// still owns their wire format so ddclient-style clients see the dialect
	// they expect.
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.reply.respondError(w, http.StatusNotFound, statusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.reply.respondError(w, http.StatusMethodNotAllowed, statusMethodForbidden)
	})

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuthMiddleware)
		r.Get(updatePath, s.handleNicUpdate)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.apiAuthMiddleware)
		r.Get("/v1/hosts", s.handleHosts)
		r.Get("/v1/zone", s.handleZone)
		r.Post("/v1/propagate", s.handlePropagate)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"domain":     s.cfg.Domain,
		"serial":     s.daemon.currentSerial(),
		"uptime_sec": int(time.Since(s.start).Seconds()),
	})
}

func (s *server) handleNicUpdate(w http.ResponseWriter, r *http.Request) {
	username, _, _ := r.BasicAuth()
	q := r.URL.Query()

	req := updateRequest{
		username:    username,
		hostname:    q.Get("hostname"),
		hasHostname: q.Has("hostname"),
		myIP:        q.Get("myip"),
		hasMyIP:     q.Has("myip"),
		myIP6:       q.Get("myip6"),
		hasMyIP6:    q.Has("myip6"),
		offline:     q.Get("offline") == offlineSentinel,
		headerIP:    s.trustedHeaderIP(r),
		peerIP:      remoteIP(r),
	}

	res := s.daemon.handleUpdate(req)
	updateRequests.WithLabelValues(string(res.status)).Inc()

	if res.status != statusSuccess {
		s.reply.respondError(w, res.code, res.status)
		return
	}
	s.reply.respondChanges(w, res.outcomes, res.myIPs)
}

// trustedHeaderIP reads the reverse proxy header, if one is configured.
// Without a real_ip_header setting the header is ignored entirely, so a
// direct client cannot spoof its own address.
func (s *server) trustedHeaderIP(r *http.Request) string {
	if s.cfg.RealIPHeader == "" {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(s.cfg.RealIPHeader))
}

type hostEntry struct {
	Hostname string   `json:"hostname"`
	IPs      []string `json:"ips"`
}

func (s *server) handleHosts(w http.ResponseWriter, _ *http.Request) {
	snap := s.daemon.snapshot()

	hosts := make([]hostEntry, 0, len(snap.Hosts))
	for _, name := range sortedHostnames(snap.Hosts) {
		hosts = append(hosts, hostEntry{Hostname: name, IPs: snap.Hosts[name]})
	}

	writeJSON(w, http.StatusOK, map[string]any{"serial": snap.Serial, "hosts": hosts})
}

func (s *server) handleZone(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Updater.Name != "zonefile" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no zonefile updater configured"})
		return
	}

	content := renderZone(s.daemon.snapshot(), s.cfg.Updater)
	writeText(w, http.StatusOK, strings.TrimRight(content, "\n"))
}

func (s *server) handlePropagate(w http.ResponseWriter, _ *http.Request) {
	if err := s.daemon.propagateNow(); err != nil {
		if errors.Is(err, errNoUpdater) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "serial": s.daemon.currentSerial()})
}

func (s *server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || !userAllowed(username, password, s.cfg.Users) {
			authFailures.Inc()
			s.log.Warn("authentication failed", "user", username, "remote", r.RemoteAddr)
			s.reply.respondAuthRequired(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *server) apiAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIToken != "" && !validToken(r, s.cfg.APIToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
