package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gihan9a/patchstore/internal/config"
	"gihan9a/patchstore/internal/documents"
	"gihan9a/patchstore/pkg/store"
)

// Server exposes the documents of a session over HTTP
type Server struct {
	config        *config.Config
	sess          *store.Session
	catalog       *documents.Catalog
	logger        *slog.Logger
	mu            sync.Mutex
	subscriptions map[string]map[string]*Subscription
}

// New creates a Server
func New(cfg *config.Config, sess *store.Session, catalog *documents.Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:        cfg,
		sess:          sess,
		catalog:       catalog,
		logger:        logger,
		subscriptions: make(map[string]map[string]*Subscription),
	}
}

// Close ends every subscription stream
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subs := range s.subscriptions {
		for _, sub := range subs {
			sub.stop()
		}
	}
}

// SetupRoutes configures the HTTP routes for the server
func (s *Server) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	if s.config.CORS.Enabled {
		router.Use(s.corsMiddleware)
		// preflight requests only need a matching route for the middleware to run
		router.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/history/undo", s.handleUndo).Methods(http.MethodPost)
	router.HandleFunc("/history/redo", s.handleRedo).Methods(http.MethodPost)

	router.HandleFunc("/containers", s.handleList).Methods(http.MethodGet)
	router.HandleFunc("/containers/{id:.+}", s.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/containers/{id:.+}", s.handlePatch).Methods(http.MethodPatch)
	router.HandleFunc("/containers/{id:.+}", s.handlePut).Methods(http.MethodPut)

	return router
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.addCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// addCORSHeaders adds CORS headers to the response
func (s *Server) addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", s.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", s.config.CORS.AllowHeaders)

	if s.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.config.CORS.MaxAge))
}
