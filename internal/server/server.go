package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zombor/invoice-ai/internal/ocr"
	"github.com/zombor/invoice-ai/internal/pipeline"
)

// Processor runs the extraction pipeline for one source
type Processor interface {
	Process(ctx context.Context, src ocr.Source) *pipeline.Envelope
}

// ProcessorFunc returns the shared Processor, or the error that prevented building it
type ProcessorFunc func() (Processor, error)

// Server handles HTTP requests for invoice processing
type Server struct {
	processor ProcessorFunc
	mux       *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(processor ProcessorFunc) *Server {
	return NewServerWithMux(processor, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(processor ProcessorFunc, mux *http.ServeMux) *Server {
	s := &Server{
		processor: processor,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /process-invoice", s.handleProcessInvoice)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	corsMiddleware(s.mux).ServeHTTP(w, r)
}
