// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/sidechat/internal/cloud"
	"github.com/jeranaias/sidechat/internal/config"
	"github.com/jeranaias/sidechat/internal/copybutton"
	"github.com/jeranaias/sidechat/internal/credstore"
	"github.com/jeranaias/sidechat/internal/highlight"
)

// Version is reported by /health. The CLI sets it at startup.
var Version = "dev"

//go:embed web/*
var webFS embed.FS

// ============================================================================
// SERVER
// ============================================================================

// Server is the panel host.
type Server struct {
	client      *cloud.Client
	store       credstore.Store
	highlighter *highlight.Highlighter
	clipboard   copybutton.Clipboard
	upgrader    websocket.Upgrader
	mux         *http.ServeMux
	started     time.Time

	mu    sync.RWMutex
	ui    config.UIConfig
	addr  string
	conns map[*panelConn]struct{}
}

// New returns a Server for cfg that sends completions through client and
// reads the API key from store.
func New(cfg *config.Config, client *cloud.Client, store credstore.Store) *Server {
	s := &Server{
		client:      client,
		store:       store,
		highlighter: highlight.New(cfg.UI.HighlightStyle),
		clipboard:   copybutton.SystemClipboard{},
		mux:         http.NewServeMux(),
		started:     time.Now(),
		ui:          cfg.UI,
		addr:        cfg.Server.Addr,
		conns:       make(map[*panelConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     sameOrigin,
	}
	s.setupRoutes()
	return s
}

// WithHighlighter replaces the highlighter built from the config.
func (s *Server) WithHighlighter(h *highlight.Highlighter) *Server {
	s.highlighter = h
	return s
}

// WithClipboard replaces the system clipboard used by copy frames.
func (s *Server) WithClipboard(c copybutton.Clipboard) *Server {
	s.clipboard = c
	return s
}

// ApplyConfig applies a reloaded config. Model and endpoint changes take
// effect on the next message; UI changes on the next panel opened.
func (s *Server) ApplyConfig(cfg *config.Config) {
	s.client.SetModel(cfg.API.Model)
	s.client.SetEndpoint(cfg.API.BaseURL)

	s.mu.Lock()
	s.ui = cfg.UI
	s.mu.Unlock()

	log.Info().
		Str("component", "server").
		Str("model", cfg.API.Model).
		Str("locale", cfg.UI.Locale).
		Msg("config applied")
}

func (s *Server) uiConfig() config.UIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ui
}

// Sessions returns the number of open panels.
func (s *Server) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	static, _ := fs.Sub(webFS, "web")

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	s.mux.HandleFunc("GET /highlight.css", s.handleHighlightCSS)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(),
		SecurityHeadersMiddleware(),
		LocalOriginMiddleware(),
	)(s.mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := webFS.ReadFile("web/index.html")
	if err != nil {
		http.Error(w, "panel page missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	css, err := s.highlighter.CSS()
	if err != nil {
		log.Error().Err(err).Str("component", "server").Msg("highlight stylesheet failed")
		http.Error(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(css))
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Model    string `json:"model"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  Version,
		Model:    s.client.Model(),
		Sessions: s.Sessions(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "server").Msg("websocket upgrade failed")
		return
	}

	pc := newPanelConn(s, ws)
	s.mu.Lock()
	s.conns[pc] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, pc)
		s.mu.Unlock()
	}()

	pc.run(r.Context())
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Listen binds the configured address. The caller passes the listener to
// Serve; splitting the two lets the CLI print the real URL first.
func (s *Server) Listen() (net.Listener, error) {
	s.mu.RLock()
	addr := s.addr
	s.mu.RUnlock()
	return net.Listen("tcp", addr)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully and closes every panel.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Str("addr", ln.Addr().String()).Str("version", Version).Msg("panel host listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Str("component", "server").Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// closeAll closes every open panel. Hijacked connections are not closed by
// http.Server.Shutdown.
func (s *Server) closeAll() {
	s.mu.RLock()
	conns := make([]*panelConn, 0, len(s.conns))
	for pc := range s.conns {
		conns = append(conns, pc)
	}
	s.mu.RUnlock()

	for _, pc := range conns {
		pc.close()
	}
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
