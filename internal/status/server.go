// Package status serves the HTTP status API: health probes, a snapshot of
// the controller, mode switch requests, recent ledger entries and a
// websocket stream of controller events.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/chromad/internal/controller"
	"github.com/dokzlo13/chromad/internal/eventbus"
	"github.com/dokzlo13/chromad/internal/ledger"
	"github.com/dokzlo13/chromad/internal/watchlist"
)

const (
	clientBuffer   = 32
	writeTimeout   = 5 * time.Second
	maxEventsLimit = 500
)

// Controller is the part of the controller the API exposes.
type Controller interface {
	Snapshot() controller.Status
	RequestMode(name string) error
}

// Selector reports the watch list selection.
type Selector interface {
	Selection() (watchlist.Selection, bool)
}

// History lists recent ledger entries.
type History interface {
	Recent(limit int) ([]*ledger.Entry, error)
}

// Counters reports event bus delivery counts.
type Counters interface {
	Stats() eventbus.Stats
}

// Deps are the collaborators behind the API. Everything but Controller may be nil.
type Deps struct {
	Controller Controller
	Selector   Selector
	History    History
	Events     Counters
}

// Message is what websocket clients receive.
type Message struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	controller.Status
	Selection *watchlist.Selection `json:"selection,omitempty"`
	Events    *eventbus.Stats      `json:"events,omitempty"`
}

// Server is the status HTTP server.
type Server struct {
	addr string
	deps Deps

	ready atomic.Bool

	mu      sync.Mutex
	clients map[*websocket.Conn]chan Message

	httpServer *http.Server
}

// NewServer creates a status server listening on host:port.
func NewServer(host string, port int, deps Deps) *Server {
	return &Server{
		addr:    fmt.Sprintf("%s:%d", host, port),
		deps:    deps,
		clients: make(map[*websocket.Conn]chan Message),
	}
}

// SetReady flips the /ready probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.handleEvents)
	r.Post("/modes/{name}", s.handleMode)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting status server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.closeClients()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Status server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Status: s.deps.Controller.Snapshot()}
	if s.deps.Selector != nil {
		if sel, ok := s.deps.Selector.Selection(); ok {
			resp.Selection = &sel
		}
	}
	if s.deps.Events != nil {
		stats := s.deps.Events.Stats()
		resp.Events = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ledger disabled"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxEventsLimit)
	}

	entries, err := s.deps.History.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ledger")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "ledger read failed"})
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.deps.Controller.RequestMode(name); err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, controller.ErrRequestQueueFull) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}

	log.Info().Str("mode", name).Str("remote", r.RemoteAddr).Msg("Mode switch requested over HTTP")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "mode": name})
}
