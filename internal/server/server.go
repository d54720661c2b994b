// Package server exposes the library and the scan flow over HTTP.
package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/zombor/book-scanner/internal/capture"
	"github.com/zombor/book-scanner/internal/library"
)

// Server handles HTTP requests for books and scan sessions
type Server struct {
	library   *library.Service
	sessions  *capture.Manager
	basicAuth BasicAuth
	mux       *http.ServeMux

	// trustProxy honours X-Forwarded-Proto from a TLS-terminating proxy
	trustProxy bool
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(lib *library.Service, sessions *capture.Manager, basicAuth BasicAuth) *Server {
	return NewServerWithMux(lib, sessions, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(lib *library.Service, sessions *capture.Manager, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		library:   lib,
		sessions:  sessions,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// SetTrustProxy controls whether X-Forwarded-Proto counts when deciding if
// a request came over HTTPS. Enable it only behind a proxy that sets the
// header itself, since any client can send it.
func (s *Server) SetTrustProxy(trust bool) {
	s.trustProxy = trust
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

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Book Scanner"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Library
	s.mux.HandleFunc("GET /api/books/{id}/image", s.requireAuth(s.handleGetBookImage))
	s.mux.HandleFunc("GET /api/books/{id}", s.requireAuth(s.handleGetBook))
	s.mux.HandleFunc("PUT /api/books/{id}", s.requireAuth(s.handleUpdateBook))
	s.mux.HandleFunc("DELETE /api/books/{id}", s.requireAuth(s.handleDeleteBook))
	s.mux.HandleFunc("GET /api/books", s.requireAuth(s.handleListBooks))
	s.mux.HandleFunc("POST /api/books", s.requireAuth(s.handleAddBook))

	// Scan sessions
	s.mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleStartSession))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.withSession(s.handleGetSession)))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleCloseSession))
	s.mux.HandleFunc("GET /api/sessions/{id}/image", s.requireAuth(s.withSession(s.handleSessionImage)))
	s.mux.HandleFunc("POST /api/sessions/{id}/camera", s.requireAuth(s.withSession(s.handleStartCamera)))
	s.mux.HandleFunc("POST /api/sessions/{id}/capture", s.requireAuth(s.withSession(s.handleCapture)))
	s.mux.HandleFunc("POST /api/sessions/{id}/retake", s.requireAuth(s.withSession(s.handleRetake)))
	s.mux.HandleFunc("POST /api/sessions/{id}/photo", s.requireAuth(s.withSession(s.handleUploadPhoto)))
	s.mux.HandleFunc("POST /api/sessions/{id}/crop", s.requireAuth(s.withSession(s.handleBeginCrop)))
	s.mux.HandleFunc("POST /api/sessions/{id}/crop/drag", s.requireAuth(s.withSession(s.handleDragCrop)))
	s.mux.HandleFunc("POST /api/sessions/{id}/crop/resize", s.requireAuth(s.withSession(s.handleResizeCrop)))
	s.mux.HandleFunc("POST /api/sessions/{id}/crop/confirm", s.requireAuth(s.withSession(s.handleCommitCrop)))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/crop", s.requireAuth(s.withSession(s.handleCancelCrop)))
	s.mux.HandleFunc("POST /api/sessions/{id}/analyze", s.requireAuth(s.withSession(s.handleAnalyze)))
	s.mux.HandleFunc("POST /api/sessions/{id}/isbn", s.requireAuth(s.withSession(s.handleSubmitISBN)))
	s.mux.HandleFunc("POST /api/sessions/{id}/manual", s.requireAuth(s.withSession(s.handleEnterManual)))
	s.mux.HandleFunc("POST /api/sessions/{id}/search", s.requireAuth(s.withSession(s.handleSearchTitle)))
	s.mux.HandleFunc("POST /api/sessions/{id}/book", s.requireAuth(s.withSession(s.handleAddManual)))
	s.mux.HandleFunc("POST /api/sessions/{id}/cancel", s.requireAuth(s.withSession(s.handleCancel)))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// isSecureRequest reports whether the page making r may use the camera
func (s *Server) isSecureRequest(r *http.Request) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); s.trustProxy && proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return capture.IsSecureOrigin(scheme, r.Host)
}
