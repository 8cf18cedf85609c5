package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"pressline.sync/internal/core/domain"
	"pressline.sync/internal/core/ports"
	"pressline.sync/internal/core/services"
)

// StateSource is the read surface of the mirror the relay exposes.
type StateSource interface {
	Jobs() []*domain.Job
	Recent() []*domain.Job
	Stats() *domain.QueueStats
	ConnectionState() domain.ConnectionState
	LastError() error
}

type Server struct {
	router    *chi.Mux
	state     StateSource
	healthSvc *services.HealthService
	hub       *Hub
	archive   ports.JobArchive // nil when history is disabled
}

func NewServer(state StateSource, healthSvc *services.HealthService, hub *Hub, archive ports.JobArchive) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		state:     state,
		healthSvc: healthSvc,
		hub:       hub,
		archive:   archive,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		MetricsHandler().ServeHTTP(w, r)
	})

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/health/detailed", s.handleDetailedHealth)
	s.router.Get("/api/ws", s.handleWS)

	s.router.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Get("/recent", s.handleRecentJobs)
		r.Get("/history", s.handleJobHistory)
	})
	s.router.Get("/api/stats", s.handleStats)
	s.router.Get("/api/connection", s.handleConnection)
}

func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	// Liveness probe - just check if server is running
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	switch report.Status {
	case services.HealthStatusUnhealthy:
		statusCode = http.StatusServiceUnavailable
	case services.HealthStatusDegraded:
		statusCode = http.StatusOK // still serving requests
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, w, r)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.state.Jobs()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func (s *Server) handleRecentJobs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jobs": s.state.Recent(),
	})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		http.Error(w, `{"error": "history not enabled"}`, http.StatusNotFound)
		return
	}

	offset := 0
	limit := 20
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 100 {
			limit = val
		}
	}

	jobs, err := s.archive.ListJobs(r.Context(), offset, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := s.archive.CountJobs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jobs":   jobs,
		"total":  total,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.state.Stats()
	if stats == nil {
		stats = &domain.QueueStats{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"state": string(s.state.ConnectionState()),
	}
	if err := s.state.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
