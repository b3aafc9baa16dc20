package models

import (
	"time"

	"github.com/google/uuid"
)

// Issue is the persistent, evolving entity that clusters are merged into
// over time. The centroid is a true running mean of every linked segment
// embedding; occurrence_count only increases; avg_impact_score is the
// count-weighted average over all segments ever linked.
type Issue struct {
	ID                uuid.UUID `db:"id"                  json:"id"`
	TenantID          uuid.UUID `db:"tenant_id"           json:"tenant_id"`
	Title             string    `db:"title"               json:"title"`
	Description       string    `db:"description"         json:"description"`
	Centroid          []float32 `db:"centroid"            json:"-"`
	CentroidUpdatedAt time.Time `db:"centroid_updated_at" json:"centroid_updated_at"`
	PriorityScore     float64   `db:"priority_score"      json:"priority_score"`
	DistinctUserCount int       `db:"distinct_user_count" json:"distinct_user_count"`
	OccurrenceCount   int       `db:"occurrence_count"    json:"occurrence_count"`
	AvgImpactScore    float64   `db:"avg_impact_score"    json:"avg_impact_score"`
	LastOccurrenceAt  time.Time `db:"last_occurrence_at"  json:"last_occurrence_at"`
	CreatedAt         time.Time `db:"created_at"          json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"          json:"updated_at"`
}

// IssueCentroid is the slice of issue state the cluster matcher needs:
// the centroid plus the running counters required for incremental merging.
type IssueCentroid struct {
	IssueID           uuid.UUID
	Centroid          []float32
	OccurrenceCount   int
	DistinctUserCount int
	AvgImpactScore    float64
	LastOccurrenceAt  time.Time
	CreatedAt         time.Time
}
