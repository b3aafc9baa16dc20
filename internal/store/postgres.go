package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) GetDefaultTenant(ctx context.Context) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, store_org_id, created_at, updated_at FROM tenants WHERE name = 'default' LIMIT 1`,
	).Scan(&t.ID, &t.Name, &t.StoreOrgID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default tenant: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Issues ---

func (s *PostgresStore) ListIssueCentroids(ctx context.Context, tenantID uuid.UUID) ([]models.IssueCentroid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, centroid, occurrence_count, distinct_user_count, avg_impact_score, last_occurrence_at, created_at
		 FROM issues WHERE tenant_id = $1 ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list issue centroids: %w", err)
	}
	defer rows.Close()

	centroids := make([]models.IssueCentroid, 0)
	for rows.Next() {
		var c models.IssueCentroid
		if err := rows.Scan(&c.IssueID, &c.Centroid, &c.OccurrenceCount, &c.DistinctUserCount,
			&c.AvgImpactScore, &c.LastOccurrenceAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan issue centroid: %w", err)
		}
		centroids = append(centroids, c)
	}
	return centroids, rows.Err()
}

func (s *PostgresStore) CreateIssue(ctx context.Context, issue *models.Issue) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO issues (id, tenant_id, title, description, centroid, centroid_updated_at,
		                     priority_score, distinct_user_count, occurrence_count, avg_impact_score,
		                     last_occurrence_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (id) DO NOTHING`,
		issue.ID, issue.TenantID, issue.Title, issue.Description, issue.Centroid, issue.CentroidUpdatedAt,
		issue.PriorityScore, issue.DistinctUserCount, issue.OccurrenceCount, issue.AvgImpactScore,
		issue.LastOccurrenceAt, issue.CreatedAt, issue.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("create issue: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Issue, error) {
	var i models.Issue
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, title, description, centroid, centroid_updated_at, priority_score,
		        distinct_user_count, occurrence_count, avg_impact_score, last_occurrence_at, created_at, updated_at
		 FROM issues WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&i.ID, &i.TenantID, &i.Title, &i.Description, &i.Centroid, &i.CentroidUpdatedAt,
		&i.PriorityScore, &i.DistinctUserCount, &i.OccurrenceCount, &i.AvgImpactScore,
		&i.LastOccurrenceAt, &i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &i, nil
}

func (s *PostgresStore) UpdateIssueMetrics(ctx context.Context, issue *models.Issue) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE issues SET
		   centroid = $3,
		   centroid_updated_at = NOW(),
		   priority_score = $4,
		   distinct_user_count = $5,
		   occurrence_count = $6,
		   avg_impact_score = $7,
		   last_occurrence_at = GREATEST(last_occurrence_at, $8),
		   updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2`,
		issue.ID, issue.TenantID, issue.Centroid, issue.PriorityScore,
		issue.DistinctUserCount, issue.OccurrenceCount, issue.AvgImpactScore, issue.LastOccurrenceAt)
	if err != nil {
		return fmt.Errorf("update issue metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListIssues(ctx context.Context, filter IssueFilter) ([]*models.Issue, int, error) {
	// Build WHERE clause dynamically
	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if filter.MinPriority > 0 {
		conditions = append(conditions, fmt.Sprintf("priority_score >= $%d", argIdx))
		args = append(args, filter.MinPriority)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("last_occurrence_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	// Count query
	var total int
	countQuery := "SELECT COUNT(*) FROM issues WHERE " + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count issues: %w", err)
	}

	// Normalize pagination
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	// Data query
	dataQuery := fmt.Sprintf(
		`SELECT id, tenant_id, title, description, centroid, centroid_updated_at, priority_score,
		        distinct_user_count, occurrence_count, avg_impact_score, last_occurrence_at, created_at, updated_at
		 FROM issues WHERE %s ORDER BY priority_score DESC, last_occurrence_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var issues []*models.Issue
	for rows.Next() {
		var i models.Issue
		if err := rows.Scan(&i.ID, &i.TenantID, &i.Title, &i.Description, &i.Centroid, &i.CentroidUpdatedAt,
			&i.PriorityScore, &i.DistinctUserCount, &i.OccurrenceCount, &i.AvgImpactScore,
			&i.LastOccurrenceAt, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, &i)
	}
	return issues, total, rows.Err()
}

// --- Segment Links ---

func (s *PostgresStore) UpsertSegmentLink(ctx context.Context, link *models.SegmentLink) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO segment_links (id, issue_id, tenant_id, session_id, distinct_id, content,
		                            impact_score, failure_detected, confusion_detected, abandonment_detected,
		                            distance_to_centroid, segment_timestamp, segment_start_time, segment_end_time,
		                            created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (issue_id, session_id, segment_start_time, segment_end_time) DO UPDATE SET
		   distinct_id = EXCLUDED.distinct_id,
		   content = EXCLUDED.content,
		   impact_score = EXCLUDED.impact_score,
		   failure_detected = EXCLUDED.failure_detected,
		   confusion_detected = EXCLUDED.confusion_detected,
		   abandonment_detected = EXCLUDED.abandonment_detected,
		   distance_to_centroid = EXCLUDED.distance_to_centroid,
		   segment_timestamp = EXCLUDED.segment_timestamp,
		   updated_at = NOW()`,
		link.ID, link.IssueID, link.TenantID, link.SessionID, link.DistinctID, link.Content,
		link.ImpactScore, link.FailureDetected, link.ConfusionDetected, link.AbandonmentDetected,
		link.DistanceToCentroid, link.SegmentTimestamp, link.SegmentStartTime, link.SegmentEndTime,
		link.CreatedAt, link.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert segment link: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSegmentLinks(ctx context.Context, issueID, tenantID uuid.UUID, page, limit int) ([]*models.SegmentLink, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM segment_links WHERE issue_id = $1 AND tenant_id = $2`,
		issueID, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count segment links: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, err := s.pool.Query(ctx,
		`SELECT id, issue_id, tenant_id, session_id, distinct_id, content, impact_score,
		        failure_detected, confusion_detected, abandonment_detected, distance_to_centroid,
		        segment_timestamp, segment_start_time, segment_end_time, created_at, updated_at
		 FROM segment_links WHERE issue_id = $1 AND tenant_id = $2
		 ORDER BY segment_timestamp DESC LIMIT $3 OFFSET $4`,
		issueID, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list segment links: %w", err)
	}
	defer rows.Close()

	var links []*models.SegmentLink
	for rows.Next() {
		var l models.SegmentLink
		if err := rows.Scan(&l.ID, &l.IssueID, &l.TenantID, &l.SessionID, &l.DistinctID, &l.Content,
			&l.ImpactScore, &l.FailureDetected, &l.ConfusionDetected, &l.AbandonmentDetected,
			&l.DistanceToCentroid, &l.SegmentTimestamp, &l.SegmentStartTime, &l.SegmentEndTime,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan segment link: %w", err)
		}
		links = append(links, &l)
	}
	return links, total, rows.Err()
}

// --- Clustering State ---

func (s *PostgresStore) GetClusteringState(ctx context.Context, tenantID uuid.UUID) (*models.ClusteringState, error) {
	var st models.ClusteringState
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id, last_processed_at, segments_processed, updated_at
		 FROM clustering_state WHERE tenant_id = $1`, tenantID,
	).Scan(&st.TenantID, &st.LastProcessedAt, &st.SegmentsProcessed, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clustering state: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) UpsertClusteringState(ctx context.Context, state *models.ClusteringState) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO clustering_state (tenant_id, last_processed_at, segments_processed, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (tenant_id) DO UPDATE SET
		   last_processed_at = GREATEST(clustering_state.last_processed_at, EXCLUDED.last_processed_at),
		   segments_processed = EXCLUDED.segments_processed,
		   updated_at = NOW()`,
		state.TenantID, state.LastProcessedAt, state.SegmentsProcessed)
	if err != nil {
		return fmt.Errorf("upsert clustering state: %w", err)
	}
	return nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, tenant_id, type, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		job.ID, job.TenantID, job.Type, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, type, status, error_message, segments_processed, issues_created, issues_updated,
		        started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&j.ID, &j.TenantID, &j.Type, &j.Status, &j.ErrorMessage, &j.SegmentsProcessed,
		&j.IssuesCreated, &j.IssuesUpdated, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

var validTransitions = map[string][]string{
	"pending": {"running"},
	"running": {"completed", "failed"},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}

	// Fetch current status
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	// Validate transition
	allowed := validTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == "running" {
		query += fmt.Sprintf(", started_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == "completed" || status == "failed" {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.SegmentsProcessed != nil {
		query += fmt.Sprintf(", segments_processed = $%d, issues_created = $%d, issues_updated = $%d",
			argIdx, argIdx+1, argIdx+2)
		args = append(args, *params.SegmentsProcessed, *params.IssuesCreated, *params.IssuesUpdated)
		argIdx += 3
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
