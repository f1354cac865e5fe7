// Package web is the assistant's HTTP surface: the confirmation endpoint
// that completes deferred actions, plus health and status endpoints.
//
// The confirmation link arrives in a chat message and is opened in a
// browser, so GET performs the action and every outcome renders a small
// HTML page rather than a JSON error.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/polarisbot/polaris/common/version"
	"github.com/polarisbot/polaris/internal/polaris/pending"
	"github.com/polarisbot/polaris/internal/polaris/specialists"
)

// confirmActionMail is the only action the confirmation endpoint currently
// dispatches. It must match the handler_key stamped on pending actions by
// the mail draft flow.
const confirmActionMail = "mail_send_confirm"

// Server handles the confirmation and health routes.
type Server struct {
	addr      string
	confirmer *specialists.MailConfirmer
	startedAt time.Time
	server    *http.Server
	mux       *http.ServeMux
}

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status     string    `json:"status"`
	Version    string    `json:"version"`
	Commit     string    `json:"commit"`
	BuildTime  string    `json:"build_time"`
	StartedAt  time.Time `json:"started_at"`
	UptimeSecs float64   `json:"uptime_seconds"`
}

// NewServer creates and configures the HTTP server (does not start it).
func NewServer(addr string, confirmer *specialists.MailConfirmer) *Server {
	mux := http.NewServeMux()
	s := &Server{
		addr:      addr,
		confirmer: confirmer,
		startedAt: time.Now(),
		mux:       mux,
	}
	mux.HandleFunc("/confirm", s.handleConfirm)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return s
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener (e.g. with httptest.NewRecorder).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. Blocks until the listener is
// established so the caller knows the port is open before returning.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web server: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("web server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("web server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("web server shutdown error", "err", err)
		}
	}()

	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("web server shutdown error", "err", err)
	}
}

// handleConfirm handles GET /confirm?action=<action>&id=<action_id>.
//
// The link is single-use: the first successful click executes the deferred
// action, any later click lands on the expired/used page.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	action := r.URL.Query().Get("action")
	id := r.URL.Query().Get("id")
	if action != confirmActionMail || id == "" {
		http.NotFound(w, r)
		return
	}

	recipient, err := s.confirmer.Confirm(r.Context(), id)
	switch {
	case err == nil:
		slog.Info("web: deferred send confirmed", "action_id", id)
		renderSuccessPage(w, recipient)
	case errors.Is(err, pending.ErrNotFound),
		errors.Is(err, specialists.ErrExpired),
		errors.Is(err, specialists.ErrAlreadyDone):
		renderExpiredPage(w)
	default:
		slog.Error("web: confirm deferred send", "action_id", id, "err", err)
		renderFailurePage(w)
	}
}

// handleHealth responds with a simple ok JSON payload.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

// handleStatus responds with runtime statistics.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     "ok",
		Version:    version.Version,
		Commit:     version.GitCommit,
		BuildTime:  version.BuildTime,
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web: encode JSON response", "err", err)
	}
}
