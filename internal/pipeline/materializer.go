package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
	"github.com/kiranshivaraju/sessionlens/pkg/vectormath"
)

// issueNamespace seeds deterministic issue ids. Never change this value:
// retried runs rely on reproducing the same UUID for the same cluster.
var issueNamespace = uuid.MustParse("b9f6d1a4-52c7-4dd0-9df1-3a8f05c2e7b1")

// MaterializeInput carries everything the materializer needs for one run.
type MaterializeInput struct {
	TenantID uuid.UUID
	RunID    uuid.UUID
	Clusters []models.Cluster
	Segments map[string]models.Segment
	Matches  []Match
	Labels   map[models.ClusterID]models.ClusterLabel
	Existing []models.IssueCentroid
	Now      time.Time
}

// MaterializeResult reports what was persisted and the post-update centroids
// the linker measures distances against.
type MaterializeResult struct {
	ClusterIssues map[models.ClusterID]uuid.UUID
	Centroids     map[uuid.UUID][]float32
	Created       int
	Updated       int
}

// Materializer turns clusters into persistent issues: matched clusters fold
// their batch into the existing issue's running metrics, unmatched clusters
// become new issues.
type Materializer struct {
	store store.Store
}

func NewMaterializer(st store.Store) *Materializer {
	return &Materializer{store: st}
}

func (m *Materializer) Materialize(ctx context.Context, in MaterializeInput) (*MaterializeResult, error) {
	result := &MaterializeResult{
		ClusterIssues: make(map[models.ClusterID]uuid.UUID, len(in.Clusters)),
		Centroids:     make(map[uuid.UUID][]float32, len(in.Clusters)),
	}

	existing := make(map[uuid.UUID]models.IssueCentroid, len(in.Existing))
	for _, ic := range in.Existing {
		existing[ic.IssueID] = ic
	}
	matched := make(map[models.ClusterID]Match, len(in.Matches))
	for _, match := range in.Matches {
		matched[match.ClusterID] = match
	}

	for _, cluster := range in.Clusters {
		members := clusterMembers(cluster, in.Segments)
		if len(members) == 0 {
			continue
		}

		if match, ok := matched[cluster.ID]; ok {
			if err := m.updateIssue(ctx, in, cluster, members, existing[match.IssueID], result); err != nil {
				return nil, err
			}
			continue
		}
		if err := m.createIssue(ctx, in, cluster, members, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// updateIssue folds a matched cluster's batch into the existing issue using
// the incremental formulas: running-mean centroid, additive counts,
// count-weighted average impact, max last occurrence.
func (m *Materializer) updateIssue(ctx context.Context, in MaterializeInput, cluster models.Cluster, members []models.Segment, old models.IssueCentroid, result *MaterializeResult) error {
	batch := batchMetrics(members)

	embeddings := make([][]float32, len(members))
	for i, seg := range members {
		embeddings[i] = seg.Embedding
	}
	centroid := vectormath.IncrementalMean(old.Centroid, old.OccurrenceCount, embeddings)

	users := old.DistinctUserCount + batch.distinctUsers
	occurrences := old.OccurrenceCount + len(members)
	avgImpact := vectormath.WeightedAverage(old.AvgImpactScore, old.OccurrenceCount, batch.avgImpact, len(members))

	lastOccurrence := old.LastOccurrenceAt
	if batch.lastOccurrence.After(lastOccurrence) {
		lastOccurrence = batch.lastOccurrence
	}

	issue := &models.Issue{
		ID:                old.IssueID,
		TenantID:          in.TenantID,
		Centroid:          centroid,
		PriorityScore:     PriorityScore(users, avgImpact, lastOccurrence, in.Now),
		DistinctUserCount: users,
		OccurrenceCount:   occurrences,
		AvgImpactScore:    avgImpact,
		LastOccurrenceAt:  lastOccurrence,
	}
	if err := m.store.UpdateIssueMetrics(ctx, issue); err != nil {
		return fmt.Errorf("updating issue %s: %w", old.IssueID, err)
	}

	result.ClusterIssues[cluster.ID] = old.IssueID
	result.Centroids[old.IssueID] = centroid
	result.Updated++
	return nil
}

func (m *Materializer) createIssue(ctx context.Context, in MaterializeInput, cluster models.Cluster, members []models.Segment, result *MaterializeResult) error {
	batch := batchMetrics(members)
	label := in.Labels[cluster.ID]
	if label.Title == "" {
		label = fallbackLabel(cluster, members)
	}

	issueID := deterministicIssueID(in.TenantID, in.RunID, cluster)
	issue := &models.Issue{
		ID:                issueID,
		TenantID:          in.TenantID,
		Title:             label.Title,
		Description:       label.Description,
		Centroid:          cluster.Centroid,
		CentroidUpdatedAt: in.Now,
		PriorityScore:     PriorityScore(batch.distinctUsers, batch.avgImpact, batch.lastOccurrence, in.Now),
		DistinctUserCount: batch.distinctUsers,
		OccurrenceCount:   len(members),
		AvgImpactScore:    batch.avgImpact,
		LastOccurrenceAt:  batch.lastOccurrence,
		CreatedAt:         in.Now,
		UpdatedAt:         in.Now,
	}

	created, err := m.store.CreateIssue(ctx, issue)
	if err != nil {
		return fmt.Errorf("creating issue for %s: %w", cluster.ID, err)
	}
	if created {
		result.Created++
	} else {
		// A retried run already persisted this issue; reuse it as-is.
		slog.Info("issue already exists, skipping create",
			"issue_id", issueID, "cluster", cluster.ID.String())
	}

	result.ClusterIssues[cluster.ID] = issueID
	result.Centroids[issueID] = cluster.Centroid
	return nil
}

// deterministicIssueID derives a stable UUID from the tenant, the run, and
// the cluster's membership so a retried run cannot create duplicates.
func deterministicIssueID(tenantID, runID uuid.UUID, cluster models.Cluster) uuid.UUID {
	ids := make([]string, len(cluster.SegmentIDs))
	copy(ids, cluster.SegmentIDs)
	sort.Strings(ids)

	signature := tenantID.String() + "\n" + runID.String() + "\n" + strings.Join(ids, "\n")
	return uuid.NewSHA1(issueNamespace, []byte(signature))
}

func clusterMembers(cluster models.Cluster, segments map[string]models.Segment) []models.Segment {
	members := make([]models.Segment, 0, len(cluster.SegmentIDs))
	for _, id := range cluster.SegmentIDs {
		if seg, ok := segments[id]; ok {
			members = append(members, seg)
		}
	}
	return members
}

type batchStats struct {
	distinctUsers  int
	avgImpact      float64
	lastOccurrence time.Time
}

func batchMetrics(members []models.Segment) batchStats {
	var stats batchStats
	users := make(map[string]bool)
	var impactSum float64
	for _, seg := range members {
		if seg.DistinctID != "" {
			users[seg.DistinctID] = true
		}
		impactSum += seg.Impact.ImpactScore
		if seg.Timestamp.After(stats.lastOccurrence) {
			stats.lastOccurrence = seg.Timestamp
		}
	}
	stats.distinctUsers = len(users)
	if len(members) > 0 {
		stats.avgImpact = impactSum / float64(len(members))
	}
	return stats
}
