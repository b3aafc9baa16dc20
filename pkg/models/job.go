package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job tracks one clustering run. The API returns a job_id on
// POST /api/v1/runs; the client polls GET /api/v1/runs/{job_id} until
// status is completed or failed. The job id doubles as the run identity
// from which deterministic issue ids are derived.
type Job struct {
	ID                uuid.UUID  `db:"id"                 json:"id"`
	TenantID          uuid.UUID  `db:"tenant_id"          json:"tenant_id"`
	Type              string     `db:"type"               json:"type"`
	Status            string     `db:"status"             json:"status"`
	ErrorMessage      *string    `db:"error_message"      json:"error_message,omitempty"`
	SegmentsProcessed *int       `db:"segments_processed" json:"segments_processed,omitempty"`
	IssuesCreated     *int       `db:"issues_created"     json:"issues_created,omitempty"`
	IssuesUpdated     *int       `db:"issues_updated"     json:"issues_updated,omitempty"`
	StartedAt         *time.Time `db:"started_at"         json:"started_at,omitempty"`
	CompletedAt       *time.Time `db:"completed_at"       json:"completed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"         json:"updated_at"`
}
