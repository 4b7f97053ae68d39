package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/domain"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/service"
)

// AnalysisService is the part of service.AnalysisService used over HTTP.
type AnalysisService interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.SubmitResponse, error)
	GetStatus(ctx context.Context, id domain.JobID) (*service.StatusResponse, error)
	Tiers() (string, []service.TierInfo)
	Plan(tier string, duration float64, types []domain.AnalysisType, combined bool) (*service.PlanResponse, error)
}

// AnalysisHandler handles analysis job requests.
type AnalysisHandler struct {
	svc    AnalysisService
	logger *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(svc AnalysisService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		svc:    svc,
		logger: logger,
	}
}

// SubmitRequest is the JSON request body for an analysis submission.
type SubmitRequest struct {
	SourceRef string   `json:"source_ref"`
	Tier      string   `json:"tier,omitempty"`
	Types     []string `json:"types,omitempty"`
	Combined  *bool    `json:"combined,omitempty"`
}

// SubmitResponse is the JSON response after submission.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is returned for job status queries. Result is only set
// once the job has completed.
type StatusResponse struct {
	JobID     string                   `json:"job_id"`
	Status    string                   `json:"status"`
	Request   domain.AnalysisRequest   `json:"request"`
	Attempts  int                      `json:"attempts"`
	Error     string                   `json:"error,omitempty"`
	Progress  domain.Progress          `json:"progress"`
	Result    *domain.AggregatedResult `json:"result,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// TiersResponse lists the capability tiers.
type TiersResponse struct {
	Version string             `json:"version"`
	Tiers   []service.TierInfo `json:"tiers"`
}

// Submit handles POST /api/v1/analyses
func (h *AnalysisHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Submit(r.Context(), service.SubmitRequest{
		SourceRef: req.SourceRef,
		Tier:      req.Tier,
		Types:     req.Types,
		Combined:  req.Combined,
	})
	if err != nil {
		if status, ok := clientErrorStatus(err); ok {
			writeError(w, status, err.Error())
			return
		}
		h.logger.Error("submit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to submit analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, SubmitResponse{
		JobID:   string(result.JobID),
		Status:  string(result.Status),
		Message: result.Message,
	})
}

// Get handles GET /api/v1/analyses/{jobID}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := domain.JobID(chi.URLParam(r, "jobID"))

	status, err := h.svc.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("get job failed", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		JobID:     string(status.JobID),
		Status:    string(status.Status),
		Request:   status.Request,
		Attempts:  status.Attempts,
		Error:     status.Error,
		Progress:  status.Progress,
		Result:    status.Result,
		CreatedAt: status.CreatedAt,
		UpdatedAt: status.UpdatedAt,
	})
}

// Tiers handles GET /api/v1/tiers
func (h *AnalysisHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	version, tiers := h.svc.Tiers()
	writeJSON(w, http.StatusOK, TiersResponse{Version: version, Tiers: tiers})
}

// Plan handles GET /api/v1/plan?tier=pro&duration=3600&types=summary,chapters&combined=true
func (h *AnalysisHandler) Plan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	duration, err := strconv.ParseFloat(q.Get("duration"), 64)
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be a positive number of seconds")
		return
	}

	types, err := domain.ParseAnalysisTypes(q.Get("types"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	combined := false
	if v := q.Get("combined"); v != "" {
		combined, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "combined must be a boolean")
			return
		}
	}

	plan, err := h.svc.Plan(q.Get("tier"), duration, types, combined)
	if err != nil {
		if status, ok := clientErrorStatus(err); ok {
			writeError(w, status, err.Error())
			return
		}
		h.logger.Error("plan failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to plan analysis")
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// clientErrorStatus maps request validation errors to 4xx statuses.
func clientErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidSource),
		errors.Is(err, domain.ErrUnknownTier),
		errors.Is(err, domain.ErrUnknownAnalysisType),
		errors.Is(err, domain.ErrPlanning):
		return http.StatusBadRequest, true
	case errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, true
	}
	return 0, false
}
