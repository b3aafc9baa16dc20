package models

import (
	"time"

	"github.com/google/uuid"
)

// SegmentLink associates one processed segment with its resolved issue.
// The upsert key is (issue_id, session_id, segment_start_time,
// segment_end_time): re-processing the same segment updates the existing
// row instead of duplicating it. Noise segments never get a link.
type SegmentLink struct {
	ID                  uuid.UUID `db:"id"                    json:"id"`
	IssueID             uuid.UUID `db:"issue_id"              json:"issue_id"`
	TenantID            uuid.UUID `db:"tenant_id"             json:"tenant_id"`
	SessionID           string    `db:"session_id"            json:"session_id"`
	DistinctID          string    `db:"distinct_id"           json:"distinct_id"`
	Content             string    `db:"content"               json:"content"`
	ImpactScore         float64   `db:"impact_score"          json:"impact_score"`
	FailureDetected     bool      `db:"failure_detected"      json:"failure_detected"`
	ConfusionDetected   bool      `db:"confusion_detected"    json:"confusion_detected"`
	AbandonmentDetected bool      `db:"abandonment_detected"  json:"abandonment_detected"`
	DistanceToCentroid  float64   `db:"distance_to_centroid"  json:"distance_to_centroid"`
	SegmentTimestamp    time.Time `db:"segment_timestamp"     json:"segment_timestamp"`
	SegmentStartTime    int64     `db:"segment_start_time"    json:"segment_start_time"`
	SegmentEndTime      int64     `db:"segment_end_time"      json:"segment_end_time"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"            json:"updated_at"`
}
