package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/sessionlens/internal/api/middleware"
	"github.com/kiranshivaraju/sessionlens/internal/api/response"
	"github.com/kiranshivaraju/sessionlens/internal/cache"
	"github.com/kiranshivaraju/sessionlens/internal/pipeline"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"

	"github.com/go-chi/chi/v5"
)

// RunTrigger defines the interface the trigger handler depends on.
type RunTrigger interface {
	TriggerRun(ctx context.Context, tenant *models.Tenant, opts pipeline.RunOptions) (*models.Job, error)
}

// NewTriggerRunHandler returns an http.HandlerFunc for POST /api/v1/runs.
// The run executes asynchronously; the response carries the job to poll.
func NewTriggerRunHandler(runner RunTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var opts pipeline.RunOptions
		if r.Body != nil && r.ContentLength != 0 {
			var req struct {
				Since string `json:"since"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
				return
			}
			if req.Since != "" {
				since, err := time.Parse(time.RFC3339, req.Since)
				if err != nil {
					response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
						"since must be a valid RFC3339 timestamp", nil)
					return
				}
				opts.Since = &since
			}
		}

		job, err := runner.TriggerRun(r.Context(), &models.Tenant{ID: tenantID}, opts)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start clustering run", nil)
			return
		}

		response.Accepted(w, jobResponse(job))
	}
}

// NewGetRunHandler returns an http.HandlerFunc for GET /api/v1/runs/{jobID}.
// In-flight jobs are answered from the cache when possible; terminal jobs
// always come from the store so run stats are included.
func NewGetRunHandler(st store.Store, ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid job ID", nil)
			return
		}

		status, found, _ := ca.GetJobStatus(r.Context(), jobID)
		if found && status != models.JobStatusCompleted && status != models.JobStatusFailed {
			response.JSON(w, map[string]any{
				"id":     jobID,
				"status": status,
			})
			return
		}

		job, err := st.GetJob(r.Context(), jobID, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		response.JSON(w, jobResponse(job))
	}
}

func jobResponse(job *models.Job) map[string]any {
	resp := map[string]any{
		"id":         job.ID,
		"type":       job.Type,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if job.ErrorMessage != nil {
		resp["error_message"] = *job.ErrorMessage
	}
	if job.SegmentsProcessed != nil {
		resp["segments_processed"] = *job.SegmentsProcessed
	}
	if job.IssuesCreated != nil {
		resp["issues_created"] = *job.IssuesCreated
	}
	if job.IssuesUpdated != nil {
		resp["issues_updated"] = *job.IssuesUpdated
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = *job.CompletedAt
	}
	return resp
}
