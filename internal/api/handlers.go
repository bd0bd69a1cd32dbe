package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/job"
)

// JobService is the orchestrator surface the handlers depend on.
type JobService interface {
	CreateJob(ctx context.Context, keyword string, targetCount int, filters domain.Filters) (string, error)
	GetStatus(jobID string) (*domain.Snapshot, error)
	Cancel(jobID string) error
	Acknowledge(ctx context.Context, jobID string, rank int) error
	Continue(ctx context.Context, sessionID, keyword string, filters domain.Filters, additionalCount int) (string, error)
}

// JobsHandler handles job-related HTTP requests.
type JobsHandler struct {
	service JobService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(service JobService) *JobsHandler {
	return &JobsHandler{service: service}
}

// CreateJob handles POST /api/v1/jobs
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	jobID, err := h.service.CreateJob(c.Request.Context(), req.Keyword, req.TargetCount, req.Filters)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, CreateJobResponse{
		JobID: jobID,
		State: domain.JobPending,
	})
}

// GetJob handles GET /api/v1/jobs/:id. The snapshot always returns
// immediately with whatever has been enriched so far; clients poll.
func (h *JobsHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	if id == "" || id == "undefined" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	snapshot, err := h.service.GetStatus(id)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobsHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.Cancel(id); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  id,
		"message": "Cancellation requested",
	})
}

// AcknowledgeJob handles POST /api/v1/jobs/:id/ack
func (h *JobsHandler) AcknowledgeJob(c *gin.Context) {
	id := c.Param("id")

	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rank == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: rank is required"})
		return
	}

	if err := h.service.Acknowledge(c.Request.Context(), id, *req.Rank); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": id,
		"rank":   *req.Rank,
	})
}

// ContinueJob handles POST /api/v1/jobs/continue
func (h *JobsHandler) ContinueJob(c *gin.Context) {
	var req ContinueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	jobID, err := h.service.Continue(c.Request.Context(), req.SessionID, req.Keyword, req.Filters, req.AdditionalCount)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, CreateJobResponse{
		JobID: jobID,
		State: domain.JobPending,
	})
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, job.ErrJobNotFound), errors.Is(err, job.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrEmptyKeyword), errors.Is(err, job.ErrInvalidTargetCount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
