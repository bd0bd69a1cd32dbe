package api

import "github.com/jonesrussell/channelscout/internal/domain"

// CreateJobRequest is the payload for POST /api/v1/jobs.
type CreateJobRequest struct {
	Keyword     string         `json:"keyword" binding:"required"`
	TargetCount int            `json:"target_count" binding:"required"`
	Filters     domain.Filters `json:"filters"`
}

// ContinueRequest is the payload for POST /api/v1/jobs/continue. Either
// SessionID or Keyword identifies the session to resume.
type ContinueRequest struct {
	SessionID       string         `json:"session_id"`
	Keyword         string         `json:"keyword"`
	Filters         domain.Filters `json:"filters"`
	AdditionalCount int            `json:"additional_count" binding:"required"`
}

// AcknowledgeRequest is the payload for POST /api/v1/jobs/:id/ack. Rank is
// the highest rank the client has displayed.
type AcknowledgeRequest struct {
	Rank *int `json:"rank" binding:"required"`
}

// CreateJobResponse is returned when a job is accepted.
type CreateJobResponse struct {
	JobID string          `json:"job_id"`
	State domain.JobState `json:"state"`
}
