// Package api provides the HTTP host for the particle worker.
// GET endpoints are public (observation of the running simulation).
// POST endpoints require a bearer token; without an admin key they are
// disabled unless the server is explicitly opened.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/particle-worker/internal/persistence"
	"github.com/talgya/particle-worker/internal/worker"
)

const maxSSEConns = 8

// DefaultMaxPoints caps numPoints on configure when Server.MaxPoints is 0.
const DefaultMaxPoints = 100_000

// Server exposes a worker over HTTP.
type Server struct {
	Worker   *worker.Worker
	Hub      *Hub
	DB       *persistence.DB // Optional; run history endpoints return 503 without it
	Port     int
	AdminKey string // Bearer token for POST endpoints

	// OpenControl accepts POSTs without a token when AdminKey is empty.
	// Without it, a server with no key rejects every POST.
	OpenControl bool

	// MaxPoints bounds numPoints on configure; 0 means DefaultMaxPoints.
	MaxPoints int

	// Active SSE connection count (atomic).
	sseConns int32

	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	configureLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/frame", s.handleFrame)
	mux.HandleFunc("/api/v1/stream", s.handleStream)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/run/", s.handleRunDetail)

	// Control endpoints (POST requires bearer token when configured).
	mux.HandleFunc("/api/v1/configure", s.adminOnly(RateLimitMiddleware(configureLimiter, s.handleConfigure)))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:8080": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				if !s.OpenControl {
					http.Error(w, "admin endpoints disabled (no PARTICLESIM_ADMIN_KEY set)", http.StatusForbidden)
					return
				}
			} else if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) maxPoints() int {
	if s.MaxPoints > 0 {
		return s.MaxPoints
	}
	return DefaultMaxPoints
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	eng := s.Worker.Engine()
	status := map[string]any{
		"name":        "particle-worker",
		"running":     eng.Running(),
		"speed":       eng.Speed(),
		"ticks":       eng.Ticks(),
		"subscribers": s.Hub.Subscribers(),
		"dropped":     s.Hub.Dropped(),
	}
	if info := s.Worker.Current(); info != nil {
		status["run"] = info
	}
	if res, ok := s.Hub.Latest(); ok {
		status["tick"] = res.Tick
		status["elapsed"] = res.Elapsed
		status["stats"] = res.Stats
		if res.Phase != nil {
			status["phase"] = *res.Phase
			status["cover_opacity"] = *res.CoverOpacity
		}
	}
	writeJSON(w, status)
}

// handleFrame returns the latest tick result.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	res, ok := s.Hub.Latest()
	if !ok {
		http.Error(w, "no frame yet", http.StatusNotFound)
		return
	}
	writeJSON(w, res)
}

// handleConfigure resets the simulation (POST) or reports the current run (GET).
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		info := s.Worker.Current()
		if info == nil {
			http.Error(w, "not configured", http.StatusNotFound)
			return
		}
		writeJSON(w, info)
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg worker.Configure
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if limit := s.maxPoints(); msg.NumPoints > limit {
		http.Error(w, fmt.Sprintf("numPoints exceeds limit of %d", limit), http.StatusRequestEntityTooLarge)
		return
	}

	info, err := s.Worker.Configure(r.Context(), msg)
	if err != nil {
		slog.Error("configure failed", "error", err)
		http.Error(w, "configure failed", http.StatusServiceUnavailable)
		return
	}

	if s.DB != nil {
		if err := s.DB.SaveRun(info, time.Now()); err != nil {
			slog.Error("save run failed", "run", info.RunID, "error", err)
		}
	}

	writeJSON(w, info)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	eng := s.Worker.Engine()
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": eng.Speed()})
}

// handleRuns lists recent runs from the history database.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	runs, err := s.DB.RecentRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// handleRunDetail returns phase events and samples for GET /api/v1/run/:id.
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/run/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "run id required", http.StatusBadRequest)
		return
	}

	events, err := s.DB.PhaseEvents(id)
	if err != nil {
		slog.Error("phase events query failed", "run", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	samples, err := s.DB.Samples(id)
	if err != nil {
		slog.Error("samples query failed", "run", id, "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"id":      id,
		"phases":  events,
		"samples": samples,
	})
}

// handleStream provides an SSE endpoint for tick results.
// ?every=N forwards one frame in N; phase switches are always forwarded.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	every := uint64(1)
	if v := r.URL.Query().Get("every"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
			every = n
		}
	}

	// Connection limit.
	current := atomic.AddInt32(&s.sseConns, 1)
	if current > maxSSEConns {
		atomic.AddInt32(&s.sseConns, -1)
		http.Error(w, "too many SSE connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.sseConns, -1)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	subID, ch := s.Hub.Subscribe(16)
	defer s.Hub.Unsubscribe(subID)
	slog.Info("SSE client connected", "sub_id", subID, "every", every)

	// Stream loop with heartbeat.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case res, ok := <-ch:
			if !ok {
				return
			}
			phase := res.PhaseSwitch != nil && *res.PhaseSwitch
			if !phase && res.Tick%every != 0 {
				continue
			}
			writeSSEResult(w, res, phase)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEResult writes a single result in SSE format.
func writeSSEResult(w http.ResponseWriter, res worker.Result, phase bool) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	event := "frame"
	if phase {
		event = "phase"
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
