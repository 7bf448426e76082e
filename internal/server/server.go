// Package server exposes the bill service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"billbot/internal/bill"
	"billbot/internal/mail"
)

// Check is a named subsystem probe for the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Server handles HTTP requests for bills
type Server struct {
	bills   *bill.Service
	storage bill.Storage
	mailer  mail.Mailer
	checks  []Check
	mux     *http.ServeMux
}

// NewServer creates a new Server with a default mux
func NewServer(bills *bill.Service, storage bill.Storage, mailer mail.Mailer, checks []Check) *Server {
	return NewServerWithMux(bills, storage, mailer, checks, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(bills *bill.Service, storage bill.Storage, mailer mail.Mailer, checks []Check, mux *http.ServeMux) *Server {
	s := &Server{
		bills:   bills,
		storage: storage,
		mailer:  mailer,
		checks:  checks,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes, most specific first
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /bills/process", s.handleProcess)
	s.mux.HandleFunc("POST /bills/email", s.handleEmail)
	s.mux.HandleFunc("GET /bills/{owner}/export", s.handleExport)
	s.mux.HandleFunc("GET /bills/{owner}/{id}/image", s.handleImage)
	s.mux.HandleFunc("GET /bills/{owner}/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /bills/{owner}/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /bills/{owner}", s.handleList)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting HTTP server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
