package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultTenant(ctx context.Context) (*models.Tenant, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	// ListIssueCentroids returns the centroid and running counters of every
	// issue for the tenant, ordered by creation time so tie-breaking in the
	// matcher is deterministic.
	ListIssueCentroids(ctx context.Context, tenantID uuid.UUID) ([]models.IssueCentroid, error)
	// CreateIssue inserts an issue with a caller-chosen id. The insert does
	// nothing on id conflict, so a retried run attempting to re-create the
	// same issue reports created=false instead of duplicating it.
	CreateIssue(ctx context.Context, issue *models.Issue) (created bool, err error)
	GetIssue(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Issue, error)
	// UpdateIssueMetrics writes the merged centroid and counters computed by
	// the materializer. last_occurrence_at never moves backwards.
	UpdateIssueMetrics(ctx context.Context, issue *models.Issue) error
	ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, int, error)

	// UpsertSegmentLink creates or replaces the link row keyed by
	// (issue_id, session_id, segment_start_time, segment_end_time).
	UpsertSegmentLink(ctx context.Context, link *models.SegmentLink) error
	ListSegmentLinks(ctx context.Context, issueID, tenantID uuid.UUID, page, limit int) ([]*models.SegmentLink, int, error)

	GetClusteringState(ctx context.Context, tenantID uuid.UUID) (*models.ClusteringState, error)
	// UpsertClusteringState advances the tenant watermark. The stored
	// last_processed_at only ever increases.
	UpsertClusteringState(ctx context.Context, state *models.ClusteringState) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

type IssueFilter struct {
	TenantID    uuid.UUID
	MinPriority float64
	Since       time.Time
	Page        int
	Limit       int
}

type jobUpdateParams struct {
	ErrorMessage      *string
	SegmentsProcessed *int
	IssuesCreated     *int
	IssuesUpdated     *int
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithRunStats(segmentsProcessed, issuesCreated, issuesUpdated int) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.SegmentsProcessed = &segmentsProcessed
		p.IssuesCreated = &issuesCreated
		p.IssuesUpdated = &issuesUpdated
	}
}
