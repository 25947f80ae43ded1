// Package api wires the HTTP routes of the consensus service.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/elevenvotes/consensus/internal/domain/dedupe"
	"github.com/elevenvotes/consensus/internal/domain/model"
	"github.com/elevenvotes/consensus/internal/domain/types"
	"github.com/elevenvotes/consensus/pkg/logger"
)

// DefaultMaxSnapshotBytes bounds POST /snapshots bodies.
const DefaultMaxSnapshotBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue hands a snapshot to the workers. It fails on backpressure.
	Enqueue(ctx context.Context, s model.Snapshot) error

	// View returns the current view of a match.
	View(ctx context.Context, matchID string) (types.MatchView, error)
}

// Server holds the route handlers.
type Server struct {
	snapshots *SnapshotsHandler
	matches   *MatchesHandler
	health    *HealthHandler
	stats     *StatsHandler
	live      http.Handler
	docs      map[string]http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxSnapshotBytes bounds the size of an accepted snapshot body.
func WithMaxSnapshotBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.snapshots.maxBytes = n
		}
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.snapshots.logger = l
		}
	}
}

// WithLive mounts the WebSocket push handler on GET /ws.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// WithDocs mounts documentation handlers by path, e.g. /openapi.yaml.
func WithDocs(routes map[string]http.Handler) Option {
	return func(s *Server) {
		for path, h := range routes {
			s.docs[path] = h
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		snapshots: NewSnapshotsHandler(deps),
		matches:   NewMatchesHandler(deps),
		health:    NewHealthHandler(),
		stats:     NewStatsHandler(stats),
		docs:      make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))
	mux.HandleFunc("POST /snapshots", MetricsMiddleware(s.snapshots.HandlePostSnapshot, "snapshots"))
	mux.HandleFunc("GET /matches/{id}", MetricsMiddleware(s.matches.HandleGetView, "matches"))
	mux.HandleFunc("GET /matches/{id}/{section}", MetricsMiddleware(s.matches.HandleGetSection, "matches_section"))
	if s.live != nil {
		mux.Handle("GET /ws", s.live)
	}
	for path, h := range s.docs {
		mux.Handle("GET "+path, h)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
