package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/internal/cache"
	"github.com/kiranshivaraju/sessionlens/internal/clustering"
	"github.com/kiranshivaraju/sessionlens/internal/segments"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// RunOptions tweaks a single run.
type RunOptions struct {
	// Since overrides the stored watermark when set.
	Since *time.Time
}

// Runner sequences one clustering run end to end: fetch, cluster, match,
// label, materialize, link. Steps within a run are strictly sequential.
type Runner struct {
	fetcher      segments.Client
	engine       *clustering.Engine
	matcher      *Matcher
	labeler      *Labeler
	materializer *Materializer
	linker       *Linker
	store        store.Store
	cache        cache.Cache
	lookback     time.Duration
	fetchLimit   int
}

// NewRunner creates a Runner wired with all pipeline stages.
func NewRunner(fetcher segments.Client, engine *clustering.Engine, matcher *Matcher, labeler *Labeler, materializer *Materializer, linker *Linker, st store.Store, ca cache.Cache, lookback time.Duration, fetchLimit int) *Runner {
	return &Runner{
		fetcher:      fetcher,
		engine:       engine,
		matcher:      matcher,
		labeler:      labeler,
		materializer: materializer,
		linker:       linker,
		store:        st,
		cache:        ca,
		lookback:     lookback,
		fetchLimit:   fetchLimit,
	}
}

// TriggerRun creates a pending job and dispatches the pipeline in a
// background goroutine. Returns the job immediately.
func (r *Runner) TriggerRun(ctx context.Context, tenant *models.Tenant, opts RunOptions) (*models.Job, error) {
	if tenant == nil || tenant.ID == uuid.Nil {
		return nil, fmt.Errorf("invalid tenant: ID is required")
	}

	job := &models.Job{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Type:      "clustering_run",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	_ = r.cache.SetJobStatus(ctx, job.ID, models.JobStatusPending, jobStatusTTL)

	// Observability marker only: steps never take a lock on it.
	if _, err := r.cache.SetNX(ctx, cache.RunMarkerKey(tenant.ID), []byte(job.ID.String()), jobStatusTTL); err != nil {
		slog.Warn("failed to set run marker", "tenant_id", tenant.ID, "error", err)
	}

	go r.run(tenant, job.ID, opts)

	return job, nil
}

// run executes the pipeline for one job. It recovers from panics and always
// marks the job completed or failed.
func (r *Runner) run(tenant *models.Tenant, jobID uuid.UUID, opts RunOptions) {
	ctx := context.Background()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in clustering run", "error", rec, "job_id", jobID)
			r.failJob(ctx, jobID, fmt.Sprintf("panic: %v", rec))
		}
		_ = r.cache.Delete(ctx, cache.RunMarkerKey(tenant.ID))
	}()

	_ = r.store.UpdateJobStatus(ctx, jobID, models.JobStatusRunning)
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusRunning, jobStatusTTL)

	now := time.Now().UTC()

	// Step 1: fetch segments newer than the watermark.
	since, err := r.resolveSince(ctx, tenant.ID, opts)
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("resolving watermark: %v", err))
		return
	}

	segs, err := r.fetcher.FetchSegments(ctx, segments.FetchRequest{
		TenantID: tenant.ID,
		Since:    since,
		Lookback: r.lookback,
		Limit:    r.fetchLimit,
	})
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("fetching segments: %v", err))
		return
	}
	if len(segs) == 0 {
		slog.Info("no new segments, run complete", "job_id", jobID, "tenant_id", tenant.ID)
		r.completeJob(ctx, jobID, 0, 0, 0)
		return
	}

	segmentsByID := make(map[string]models.Segment, len(segs))
	var watermark time.Time
	for _, seg := range segs {
		segmentsByID[seg.DocumentID] = seg
		if seg.Timestamp.After(watermark) {
			watermark = seg.Timestamp
		}
	}

	// Step 2: cluster the batch.
	clusters, assignments, err := r.engine.Cluster(segs)
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("clustering: %v", err))
		return
	}

	// Step 3: match clusters against existing issue centroids.
	existing, err := r.store.ListIssueCentroids(ctx, tenant.ID)
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("listing issue centroids: %v", err))
		return
	}
	matches := r.matcher.Match(clusters, existing)
	matchedClusters := make(map[models.ClusterID]bool, len(matches))
	for _, match := range matches {
		matchedClusters[match.ClusterID] = true
	}

	// Step 4: label only the clusters that will become new issues.
	var newClusters []models.Cluster
	for _, cluster := range clusters {
		if !matchedClusters[cluster.ID] {
			newClusters = append(newClusters, cluster)
		}
	}
	labels := r.labeler.GenerateLabels(ctx, newClusters, segmentsByID)

	// Step 5: persist issues.
	materialized, err := r.materializer.Materialize(ctx, MaterializeInput{
		TenantID: tenant.ID,
		RunID:    jobID,
		Clusters: clusters,
		Segments: segmentsByID,
		Matches:  matches,
		Labels:   labels,
		Existing: existing,
		Now:      now,
	})
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("materializing issues: %v", err))
		return
	}

	// Step 6: link segments and advance the watermark.
	linked, err := r.linker.Link(ctx, LinkInput{
		TenantID:      tenant.ID,
		Segments:      segs,
		Assignments:   assignments,
		ClusterIssues: materialized.ClusterIssues,
		Centroids:     materialized.Centroids,
		Watermark:     watermark,
		Now:           now,
	})
	if err != nil {
		r.failJob(ctx, jobID, fmt.Sprintf("linking segments: %v", err))
		return
	}

	slog.Info("clustering run complete",
		"job_id", jobID,
		"tenant_id", tenant.ID,
		"segments", len(segs),
		"clusters", len(clusters),
		"issues_created", materialized.Created,
		"issues_updated", materialized.Updated,
		"links", linked)

	r.completeJob(ctx, jobID, len(segs), materialized.Created, materialized.Updated)
}

// resolveSince returns the explicit override, the stored watermark, or zero
// (cold start, lookback window applies at the fetcher).
func (r *Runner) resolveSince(ctx context.Context, tenantID uuid.UUID, opts RunOptions) (time.Time, error) {
	if opts.Since != nil {
		return opts.Since.UTC(), nil
	}
	state, err := r.store.GetClusteringState(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return state.LastProcessedAt, nil
}

func (r *Runner) failJob(ctx context.Context, jobID uuid.UUID, msg string) {
	_ = r.store.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(msg))
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
}

func (r *Runner) completeJob(ctx context.Context, jobID uuid.UUID, segmentsProcessed, created, updated int) {
	_ = r.store.UpdateJobStatus(ctx, jobID, models.JobStatusCompleted,
		store.WithRunStats(segmentsProcessed, created, updated))
	_ = r.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
}
