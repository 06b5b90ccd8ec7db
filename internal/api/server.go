// Package api provides the REST API for contract management, analysis runs
// and report queries.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/internal/contract"
	"github.com/driftwatch/driftwatch/internal/inference"
	"github.com/driftwatch/driftwatch/internal/report"
	"github.com/driftwatch/driftwatch/internal/storage"
	"github.com/driftwatch/driftwatch/internal/storage/archive"
	"github.com/driftwatch/driftwatch/internal/usage"
)

// Server is the REST API server.
type Server struct {
	store      storage.Store
	archives   *archive.Store
	contracts  *contract.Holder
	inferencer *inference.Inferencer
	usage      *usage.Registry
	runner     *report.Runner
	logger     *zap.Logger
	router     *chi.Mux
	server     *http.Server
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=100, offset=0, max_limit=1000
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// paginateSlice applies pagination to a slice.
func paginateSlice[T any](items []T, params PaginationParams) PaginatedResponse {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	if start >= total {
		return PaginatedResponse{
			Data:    []T{},
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: false,
		}
	}

	if end > total {
		end = total
	}

	return PaginatedResponse{
		Data:    items[start:end],
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: end < total,
	}
}

// Deps bundles the components the API server exposes.
type Deps struct {
	Store      storage.Store
	Archives   *archive.Store
	Contracts  *contract.Holder
	Inferencer *inference.Inferencer
	Usage      *usage.Registry
	Runner     *report.Runner
	Logger     *zap.Logger
}

// NewServer creates a new API server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		store:      deps.Store,
		archives:   deps.Archives,
		contracts:  deps.Contracts,
		inferencer: deps.Inferencer,
		usage:      deps.Usage,
		runner:     deps.Runner,
		logger:     logger,
		router:     chi.NewRouter(),
	}

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.HandleHealth)

		// Contract endpoints
		r.Put("/contract", s.putContract)
		r.Get("/contract", s.getContract)

		// Usage data endpoints
		r.Post("/usage", s.postUsage)
		r.Get("/usage", s.getUsage)

		// Live window endpoints; endpoints are "METHOD /path" so they ride
		// in the ?endpoint query parameter rather than the URL path.
		r.Get("/endpoints", s.listEndpoints)
		r.Get("/schemas/live", s.getLiveSchema)
		r.Get("/schemas/history", s.listSchemaHistory)

		// Analysis endpoints
		r.Post("/analyze", s.runAnalysis)
		r.Get("/reports", s.listReports)
		r.Get("/reports/{id}", s.getReport)
		r.Get("/reports/{id}/issues", s.getReportIssues)
		r.Get("/reports/{id}/assessments", s.getReportAssessments)

		// Archive endpoints
		r.Get("/archives", s.listArchives)
		r.Post("/archives", s.createArchive)
		r.Get("/archives/{name}", s.getArchive)
		r.Delete("/archives/{name}", s.deleteArchive)

		// Admin endpoints
		r.Post("/admin/clear", s.clearAllData)
	})

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// putContract replaces the active declared contract.
// PUT /api/v1/contract
func (s *Server) putContract(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to read body")
		return
	}
	defer r.Body.Close()

	format := contract.DetectFormat(body)
	switch r.Header.Get("Content-Type") {
	case "application/json":
		format = contract.FormatJSON
	case "application/yaml", "application/x-yaml", "text/yaml":
		format = contract.FormatYAML
	}

	parsed, err := s.contracts.Set(body, format)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("contract updated",
		zap.String("version", parsed.Version),
		zap.Int("endpoints", len(parsed.Endpoints)))

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":   parsed.Version,
		"endpoints": parsed.EndpointOrder,
	})
}

// getContract describes the active declared contract.
// GET /api/v1/contract
func (s *Server) getContract(w http.ResponseWriter, r *http.Request) {
	c := s.contracts.Get()
	if c == nil {
		s.respondError(w, http.StatusNotFound, "no contract uploaded")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":   c.Version,
		"endpoints": c.EndpointOrder,
	})
}
