package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/sessionlens/internal/store"
	"github.com/kiranshivaraju/sessionlens/pkg/models"
	"github.com/kiranshivaraju/sessionlens/pkg/vectormath"
)

const linkContentLen = 1000

// LinkInput carries everything the linker needs for one run.
type LinkInput struct {
	TenantID uuid.UUID
	Segments []models.Segment
	// Assignments maps document id to its cluster. Noise segments are absent.
	Assignments   map[string]models.ClusterID
	ClusterIssues map[models.ClusterID]uuid.UUID
	// Centroids holds the post-update issue centroids from the materializer.
	Centroids map[uuid.UUID][]float32
	// Watermark is the max timestamp among all fetched segments.
	Watermark time.Time
	Now       time.Time
}

// Linker writes segment-to-issue links and advances the tenant watermark.
type Linker struct {
	store store.Store
}

func NewLinker(st store.Store) *Linker {
	return &Linker{store: st}
}

// Link upserts one SegmentLink per clustered segment, measuring distance to
// the post-update issue centroid. Noise segments produce no links. The
// watermark is written last and only ever advances; a watermark write failure
// is logged but does not undo the links (re-processing is harmless because
// the upsert key dedupes).
func (l *Linker) Link(ctx context.Context, in LinkInput) (int, error) {
	linked := 0
	for _, seg := range in.Segments {
		clusterID, ok := in.Assignments[seg.DocumentID]
		if !ok {
			continue
		}
		issueID, ok := in.ClusterIssues[clusterID]
		if !ok {
			continue
		}

		link := &models.SegmentLink{
			ID:                  uuid.New(),
			IssueID:             issueID,
			TenantID:            in.TenantID,
			SessionID:           seg.SessionID,
			DistinctID:          seg.DistinctID,
			Content:             truncateString(seg.Content, linkContentLen),
			ImpactScore:         seg.Impact.ImpactScore,
			FailureDetected:     seg.Impact.FailureDetected,
			ConfusionDetected:   seg.Impact.ConfusionDetected,
			AbandonmentDetected: seg.Impact.AbandonmentDetected,
			DistanceToCentroid:  vectormath.CosineDistance(seg.Embedding, in.Centroids[issueID]),
			SegmentTimestamp:    seg.Timestamp,
			SegmentStartTime:    seg.StartTime,
			SegmentEndTime:      seg.EndTime,
			CreatedAt:           in.Now,
			UpdatedAt:           in.Now,
		}
		if err := l.store.UpsertSegmentLink(ctx, link); err != nil {
			return linked, fmt.Errorf("linking segment %s: %w", seg.DocumentID, err)
		}
		linked++
	}

	if !in.Watermark.IsZero() {
		state := &models.ClusteringState{
			TenantID:          in.TenantID,
			LastProcessedAt:   in.Watermark,
			SegmentsProcessed: len(in.Segments),
		}
		if err := l.store.UpsertClusteringState(ctx, state); err != nil {
			slog.Error("failed to advance watermark",
				"tenant_id", in.TenantID, "watermark", in.Watermark, "error", err)
		}
	}

	return linked, nil
}
