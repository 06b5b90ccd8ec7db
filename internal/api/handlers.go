package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/driftwatch/driftwatch/pkg/models"
)

// postUsage uploads a batch of client usage records. The batch replaces the
// current usage data unless ?mode=append is given; usage data comes from
// periodic exports, not incremental updates.
// POST /api/v1/usage
func (s *Server) postUsage(w http.ResponseWriter, r *http.Request) {
	var records []models.ClientUsageRecord
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse usage records: "+err.Error())
		return
	}
	defer r.Body.Close()

	for _, rec := range records {
		if rec.ClientID == "" || rec.Endpoint == "" {
			s.respondError(w, http.StatusBadRequest, "usage records need client_id and endpoint")
			return
		}
	}

	if r.URL.Query().Get("mode") == "append" {
		s.usage.Add(records)
	} else {
		s.usage.Replace(records)
	}

	s.respondJSON(w, http.StatusOK, map[string]int{
		"records": s.usage.Len(),
	})
}

// getUsage returns the current usage batch.
// GET /api/v1/usage
func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(s.usage.Records(), params))
}

// listEndpoints returns the endpoints with an open observation window.
// GET /api/v1/endpoints
func (s *Server) listEndpoints(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"endpoints": s.inferencer.Endpoints(),
	})
}

// getLiveSchema returns the open window's observed schema for an endpoint
// without closing the window.
// GET /api/v1/schemas/live?endpoint=GET%20/orders
func (s *Server) getLiveSchema(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		s.respondError(w, http.StatusBadRequest, "endpoint query parameter is required")
		return
	}

	// Windows only exist once a record has been observed, so an empty
	// snapshot means no open window.
	snap := s.inferencer.Snapshot(endpoint)
	if snap.TotalCount == 0 {
		s.respondError(w, http.StatusNotFound, "no open window for endpoint")
		return
	}

	s.respondJSON(w, http.StatusOK, snap)
}

// listSchemaHistory returns stored window snapshots for an endpoint, oldest
// first.
// GET /api/v1/schemas/history?endpoint=GET%20/orders
func (s *Server) listSchemaHistory(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		s.respondError(w, http.StatusBadRequest, "endpoint query parameter is required")
		return
	}

	snaps, err := s.store.ListSnapshots(r.Context(), endpoint)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(snaps, params))
}

// runAnalysis closes all open windows, persists their snapshots, and runs a
// full analysis against the active contract and usage data.
// POST /api/v1/analyze
func (s *Server) runAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	declared := s.contracts.Get()
	if declared == nil {
		s.respondError(w, http.StatusConflict, "no contract uploaded")
		return
	}

	snapshots := s.inferencer.FlushAll()
	for _, snap := range snapshots {
		if err := s.store.SaveSnapshot(ctx, snap); err != nil {
			s.respondError(w, http.StatusInternalServerError, "Failed to save snapshot: "+err.Error())
			return
		}
	}

	rep, err := s.runner.Run(declared, snapshots, s.usage.Records())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Analysis failed: "+err.Error())
		return
	}

	if err := s.store.SaveReport(ctx, rep); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to save report: "+err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, rep)
}

// listReports returns stored report summaries.
// GET /api/v1/reports
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(reports, params))
}

// getReport returns a full report by id.
// GET /api/v1/reports/{id}
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, rep)
}

// getReportIssues returns only the classified findings of a report.
// GET /api/v1/reports/{id}/issues
func (s *Server) getReportIssues(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(rep.Issues, params))
}

// getReportAssessments returns only the impact assessments of a report.
// GET /api/v1/reports/{id}/assessments
func (s *Server) getReportAssessments(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(rep.Assessments, params))
}

// loadReport fetches the report addressed by the {id} URL parameter,
// writing the error response itself on failure.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (*models.AnalysisReport, bool) {
	id := chi.URLParam(r, "id")

	rep, err := s.store.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "report not found")
			return nil, false
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return rep, true
}

// createArchiveRequest names a stored report to archive.
type createArchiveRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ReportID    string `json:"report_id"`
}

// createArchive saves a named durable copy of a stored report.
// POST /api/v1/archives
func (s *Server) createArchive(w http.ResponseWriter, r *http.Request) {
	var req createArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Failed to parse request: "+err.Error())
		return
	}
	defer r.Body.Close()

	rep, err := s.store.GetReport(r.Context(), req.ReportID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "report not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	arc := &models.ReportArchive{
		Name:        req.Name,
		Description: req.Description,
		Report:      rep,
	}

	if err := s.archives.Save(r.Context(), arc); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidArchiveName):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, models.ErrTooManyArchives),
			errors.Is(err, models.ErrArchiveTooLarge):
			s.respondError(w, http.StatusConflict, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.logger.Info("report archived",
		zap.String("name", req.Name),
		zap.String("report_id", req.ReportID))

	s.respondJSON(w, http.StatusCreated, map[string]string{
		"name": arc.Name,
	})
}

// listArchives returns metadata for all saved archives.
// GET /api/v1/archives
func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	metas, err := s.archives.List(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	params := parsePaginationParams(r)
	s.respondJSON(w, http.StatusOK, paginateSlice(metas, params))
}

// getArchive returns a full archive by name.
// GET /api/v1/archives/{name}
func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	arc, err := s.archives.Load(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrArchiveNotFound):
			s.respondError(w, http.StatusNotFound, "archive not found")
		case errors.Is(err, models.ErrInvalidArchiveName):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, arc)
}

// deleteArchive removes an archive.
// DELETE /api/v1/archives/{name}
func (s *Server) deleteArchive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.archives.Delete(r.Context(), name); err != nil {
		switch {
		case errors.Is(err, models.ErrArchiveNotFound):
			s.respondError(w, http.StatusNotFound, "archive not found")
		case errors.Is(err, models.ErrInvalidArchiveName):
			s.respondError(w, http.StatusBadRequest, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "archive deleted",
	})
}

// clearAllData clears stored snapshots and reports and discards all open
// observation windows.
// POST /api/v1/admin/clear
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	// Closing the windows first keeps records from landing in storage
	// between the two steps.
	s.inferencer.FlushAll()

	if err := s.store.Clear(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "All data cleared successfully",
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("writing response", zap.Error(err))
	}
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
