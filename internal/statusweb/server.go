// Package statusweb is a diagnostic HTTP/WebSocket console exposing
// the Dongle Dispatcher's mode and lifecycle events through functional
// server options, an API-key middleware, and a WSHub broadcasting
// JSON events to connected browsers.
package statusweb

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"goezsp/internal/dongle"
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAPIKey requires the given key on every request via the
// X-API-Key header.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithAllowedOrigins restricts which origins may open the diagnostic
// WebSocket.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) { s.allowedOrigins = origins }
}

// Server is the diagnostic HTTP server.
type Server struct {
	d              *dongle.Dispatcher
	hub            *wsHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	unsub          func()
}

// NewServer builds a Server wired to d's event bus; it does not start
// listening until the caller runs it behind an http.Server.
func NewServer(d *dongle.Dispatcher, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		d:      d,
		hub:    newWSHub(logger),
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	s.mux.HandleFunc("/events", s.withAuth(s.handleWS))
	s.mux.HandleFunc("/send", s.withAuth(s.handleSend))

	go s.hub.Run()
	s.unsub = d.OnAll(func(ev dongle.Event) {
		s.hub.Broadcast(statusEvent{
			Type:    ev.Type,
			CmdID:   ev.CmdID,
			Payload: ev.Payload,
			Mode:    d.Mode().String(),
		})
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Stop unsubscribes from dispatcher events and shuts down the
// WebSocket hub.
func (s *Server) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
	s.hub.Stop()
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.apiKey == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type statusEvent struct {
	Type    string `json:"type"`
	CmdID   byte   `json:"cmd_id,omitempty"`
	Payload []byte `json:"payload,omitempty"`
	Mode    string `json:"mode"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"mode": s.d.Mode().String(),
	})
}

type sendCommandRequest struct {
	CmdID   byte   `json:"cmd_id"`
	Payload []byte `json:"payload"`
}

// handleSend lets a field technician POST a raw EZSP command straight
// at the dongle, bypassing the facade's named operations. It exists
// for diagnostics only: whatever comes back arrives asynchronously on
// the /events feed, not in this response.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req sendCommandRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Payload) > 128 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payload limited to 128 bytes"})
		return
	}

	s.d.SendCommand(req.CmdID, req.Payload)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
