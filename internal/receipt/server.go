package receipt

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayumu/warikan/internal/scanning"
)

// ScannerFactory builds an extraction backend from saved settings.
type ScannerFactory func(settings *Settings) (scanning.Scanner, error)

// Server handles HTTP requests for the bill-splitting session
type Server struct {
	session    *Session
	newScanner ScannerFactory
	basicAuth  BasicAuth
	mux        *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(session *Session, newScanner ScannerFactory, basicAuth BasicAuth) *Server {
	return NewServerWithMux(session, newScanner, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(session *Session, newScanner ScannerFactory, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		session:    session,
		newScanner: newScanner,
		basicAuth:  basicAuth,
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Warikan"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Scanning
	s.mux.HandleFunc("POST /api/scan", s.requireAuth(s.handleScan))

	// Working item list
	s.mux.HandleFunc("PATCH /api/items/{id}", s.requireAuth(s.handleUpdateItem))
	s.mux.HandleFunc("GET /api/items", s.requireAuth(s.handleListItems))
	s.mux.HandleFunc("POST /api/items", s.requireAuth(s.handleAddItem))
	s.mux.HandleFunc("DELETE /api/items", s.requireAuth(s.handleClearItems))

	// Totals and session state
	s.mux.HandleFunc("GET /api/totals", s.requireAuth(s.handleTotals))
	s.mux.HandleFunc("POST /api/tax-rate", s.requireAuth(s.handleTaxRate))
	s.mux.HandleFunc("POST /api/currency", s.requireAuth(s.handleCurrency))
	s.mux.HandleFunc("POST /api/edit-mode", s.requireAuth(s.handleEditMode))

	// Receipt history
	s.mux.HandleFunc("POST /api/receipts/{id}/load", s.requireAuth(s.handleLoadReceipt))
	s.mux.HandleFunc("GET /api/receipts/{id}", s.requireAuth(s.handleGetReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireAuth(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireAuth(s.handleSaveReceipt))

	// Scanner settings
	s.mux.HandleFunc("GET /api/settings", s.requireAuth(s.handleGetSettings))
	s.mux.HandleFunc("PUT /api/settings", s.requireAuth(s.handleSaveSettings))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
