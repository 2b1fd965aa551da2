// ABOUTME: HTTP facade: status page, QR/pairing retrieval, logs, health, controls
// ABOUTME: Reads manager snapshots and enqueues operations; thin by design

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/wabridge/internal/logbuf"
	"github.com/2389/wabridge/internal/manager"
)

// Controller is the manager surface the facade drives.
type Controller interface {
	Snapshot() manager.Snapshot
	Pair(ctx context.Context, phone string) error
	Reset(ctx context.Context) error
}

// Sender is the relay surface for manual sends.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// Config holds facade configuration.
type Config struct {
	Addr      string
	JWTSecret string
}

// Server is the HTTP facade.
type Server struct {
	controller Controller
	sender     Sender
	logs       *logbuf.Buffer
	logger     *slog.Logger
	jwtSecret  string
	httpServer *http.Server
}

// New creates the facade server.
func New(cfg Config, controller Controller, sender Sender, logs *logbuf.Buffer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		controller: controller,
		sender:     sender,
		logs:       logs,
		logger:     logger.With("component", "http"),
		jwtSecret:  cfg.JWTSecret,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatusPage)
	mux.HandleFunc("GET /qr", s.handleQR)
	mux.HandleFunc("GET /logs", s.handleLogs)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /pair", s.requireAuth(s.handlePair))
	mux.HandleFunc("GET /reset", s.requireAuth(s.handleReset))
	mux.HandleFunc("POST /send", s.requireAuth(s.handleSend))
	return corsMiddleware(mux)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http facade listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// corsMiddleware allows browser frontends on other origins to poll the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// qrResponse is the JSON body for GET /qr.
type qrResponse struct {
	Status      string `json:"status"`
	QR          string `json:"qr,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, qrResponse{
		Status:      string(snap.Status),
		QR:          snap.QRDataURL,
		PairingCode: snap.PairingCode,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"logs": s.logs.Lines()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"whatsapp": string(snap.Status),
	})
}

// pairRequest is the JSON body for POST /pair.
type pairRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	phone := digitsOnly(req.PhoneNumber)
	if phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "phoneNumber is required"})
		return
	}
	if err := s.controller.Pair(r.Context(), phone); err != nil {
		s.logger.Error("pair request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reset(r.Context()); err != nil {
		s.logger.Error("reset request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// sendRequest is the JSON body for POST /send.
type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.To == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to and text are required"})
		return
	}
	if err := s.sender.Send(r.Context(), req.To, req.Text); err != nil {
		if errors.Is(err, manager.ErrNotConnected) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "not connected"})
			return
		}
		s.logger.Error("send request failed", "to", req.To, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
