// Package httpapi exposes the read-only HTTP collaborator surface: record
// queries, a system status snapshot, the latest health report, and a
// websocket diagnostics stream. Every endpoint requires a matching
// X-API-Key header when one is configured.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"github.com/ldpj/backend/internal/health"
	"github.com/ldpj/backend/internal/pipeline"
	"github.com/ldpj/backend/internal/store"
)

// statusCacheTTL bounds how long /status and /health responses are served
// from cache before the next request re-collects them, protecting the
// foreground processing loop and health checker from query storms.
const statusCacheTTL = 1 * time.Second

// Server is the HTTP read API surface over the record store, the
// processing loop's diagnostics, and the health checker's latest report.
type Server struct {
	recorder *store.Store
	checker  *health.Checker
	loop     *pipeline.Loop
	apiKey   string
	hub      *Hub

	cache  *cache.Cache
	addr   string
	server *http.Server
}

// New builds a Server bound to its read-only collaborators. apiKey empty
// disables the X-API-Key check (intended for local development only).
func New(recorder *store.Store, checker *health.Checker, loop *pipeline.Loop, apiKey, host string, port int) *Server {
	return &Server{
		recorder: recorder,
		checker:  checker,
		loop:     loop,
		apiKey:   apiKey,
		hub:      NewHub(),
		cache:    cache.New(statusCacheTTL, 2*statusCacheTTL),
		addr:     fmt.Sprintf("%s:%d", host, normalizePort(port)),
	}
}

func normalizePort(port int) int {
	if port <= 0 {
		return 8080
	}
	return port
}

// Start builds the router and begins serving in a background goroutine. It
// returns once the listener is bound (or an error if binding fails).
func (s *Server) Start() error {
	router := mux.NewRouter()
	router.Use(s.authMiddleware)

	router.HandleFunc("/records", s.handleRecords).Methods(http.MethodGet)
	router.HandleFunc("/records/{id}", s.handleRecordDetail).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ws/diagnostics", s.handleDiagnosticsWS)

	s.server = &http.Server{Addr: s.addr, Handler: router}

	go s.hub.Run()
	go s.broadcastDiagnostics()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("httpapi: server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// broadcastDiagnostics pushes a diagnostics snapshot to every connected
// websocket client once per second.
func (s *Server) broadcastDiagnostics() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if s.loop == nil {
			continue
		}
		s.hub.Broadcast(s.loop.GetDiagnostics())
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != s.apiKey {
			http.Error(w, "invalid or missing X-API-Key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
